package trace

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/joshuapare/heapkit/heap/alloc"
	"github.com/joshuapare/heapkit/heap/pool"
	"github.com/joshuapare/heapkit/internal/logger"
)

var (
	// ErrUnknownID is returned when an operation names an id that is not live.
	ErrUnknownID = errors.New("trace: unknown id")

	// ErrDuplicateID is returned when an allocation reuses a live id.
	ErrDuplicateID = errors.New("trace: id already live")

	// ErrDataMismatch is returned when a block no longer holds the pattern
	// written when it was allocated.
	ErrDataMismatch = errors.New("trace: data mismatch")

	// ErrNoPool is returned for pool operations when the player has no pool.
	ErrNoPool = errors.New("trace: no pool configured")

	// ErrUnsupported is returned for operations the allocator does not offer.
	ErrUnsupported = errors.New("trace: operation not supported by allocator")
)

// Optional allocator capabilities, satisfied by *alloc.Arena.
type (
	pageAligner interface {
		Valloc(n int) (alloc.Ptr, error)
		Pvalloc(n int) (alloc.Ptr, error)
	}
	trimmer interface {
		Trim(pad int) (bool, error)
	}
	checker interface {
		Check() error
	}
	statser interface {
		Stats() alloc.Stats
	}
)

// PlayerOptions configures a Player.
type PlayerOptions struct {
	Check  bool         // run the allocator's consistency check after every op
	Logger *slog.Logger // nil uses the package logger
}

// Result summarizes a replay.
type Result struct {
	Ops       int         `json:"ops"`
	Live      int         `json:"live"`       // heap blocks live at the end
	LiveBytes int         `json:"live_bytes"` // requested bytes live at the end
	PeakLive  int         `json:"peak_live_bytes"`
	Released  int         `json:"trims_released"` // trims that gave memory back
	Arena     alloc.Stats `json:"arena"`
	Pool      *pool.Stats `json:"pool,omitempty"`
}

type block struct {
	ptr  alloc.Ptr
	size int
}

// Player replays operations against an allocator and an optional pool,
// filling every allocation with an id-derived pattern and verifying it
// before the block is freed or resized.
type Player struct {
	heap alloc.Allocator
	pool *pool.Pool
	opts PlayerOptions
	log  *slog.Logger

	live     map[int]block
	poolLive map[int]pool.Ptr

	ops, liveBytes, peak, released int
}

// NewPlayer creates a player. p may be nil when the trace has no pool
// operations.
func NewPlayer(heap alloc.Allocator, p *pool.Pool, opts PlayerOptions) *Player {
	log := opts.Logger
	if log == nil {
		log = logger.L
	}
	return &Player{
		heap:     heap,
		pool:     p,
		opts:     opts,
		log:      log,
		live:     make(map[int]block),
		poolLive: make(map[int]pool.Ptr),
	}
}

// Run replays ops in order and stops at the first failure.
func (pl *Player) Run(ops []Op) (Result, error) {
	for _, op := range ops {
		if err := pl.Step(op); err != nil {
			return pl.Result(), err
		}
	}
	return pl.Result(), nil
}

// Step replays one operation.
func (pl *Player) Step(op Op) error {
	if err := pl.step(op); err != nil {
		if op.Line > 0 {
			return fmt.Errorf("line %d: %s: %w", op.Line, op, err)
		}
		return fmt.Errorf("op %d: %s: %w", pl.ops+1, op, err)
	}
	pl.ops++
	if pl.opts.Check {
		if c, ok := pl.heap.(checker); ok {
			if err := c.Check(); err != nil {
				return fmt.Errorf("after %s: %w", op, err)
			}
		}
	}
	return nil
}

func (pl *Player) step(op Op) error {
	switch op.Kind {
	case Malloc, Calloc, Memalign, Valloc, Pvalloc:
		if _, dup := pl.live[op.ID]; dup {
			return fmt.Errorf("%w: %d", ErrDuplicateID, op.ID)
		}
		p, n, err := pl.allocate(op)
		if err != nil {
			return err
		}
		if op.Kind == Calloc {
			if err := pl.verifyZero(p, n); err != nil {
				return err
			}
		}
		pl.fill(op.ID, p, n)
		pl.track(op.ID, block{p, n})

	case Realloc:
		b, ok := pl.live[op.ID]
		if !ok {
			return fmt.Errorf("%w: %d", ErrUnknownID, op.ID)
		}
		if err := pl.verify(op.ID, b); err != nil {
			return err
		}
		p, err := pl.heap.Realloc(b.ptr, op.Size)
		if err != nil {
			return err
		}
		if op.Size == 0 {
			pl.untrack(op.ID)
			return nil
		}
		if err := pl.verify(op.ID, block{p, min(b.size, op.Size)}); err != nil {
			return err
		}
		pl.fill(op.ID, p, op.Size)
		pl.untrack(op.ID)
		pl.track(op.ID, block{p, op.Size})

	case Free:
		b, ok := pl.live[op.ID]
		if !ok {
			return fmt.Errorf("%w: %d", ErrUnknownID, op.ID)
		}
		if err := pl.verify(op.ID, b); err != nil {
			return err
		}
		if err := pl.heap.Free(b.ptr); err != nil {
			return err
		}
		pl.untrack(op.ID)

	case Trim:
		t, ok := pl.heap.(trimmer)
		if !ok {
			return ErrUnsupported
		}
		released, err := t.Trim(op.Size)
		if err != nil {
			return err
		}
		if released {
			pl.released++
		}

	case PoolAlloc, PoolFree, PoolClear:
		return pl.poolStep(op)

	default:
		return fmt.Errorf("unknown operation %d", op.Kind)
	}
	return nil
}

func (pl *Player) allocate(op Op) (alloc.Ptr, int, error) {
	switch op.Kind {
	case Calloc:
		p, err := pl.heap.Calloc(op.Count, op.Size)
		return p, op.Count * op.Size, err
	case Memalign:
		p, err := pl.heap.Memalign(op.Align, op.Size)
		return p, op.Size, err
	case Valloc, Pvalloc:
		pa, ok := pl.heap.(pageAligner)
		if !ok {
			return alloc.Nil, 0, ErrUnsupported
		}
		if op.Kind == Valloc {
			p, err := pa.Valloc(op.Size)
			return p, op.Size, err
		}
		p, err := pa.Pvalloc(op.Size)
		return p, op.Size, err
	default:
		p, err := pl.heap.Malloc(op.Size)
		return p, op.Size, err
	}
}

func (pl *Player) poolStep(op Op) error {
	if pl.pool == nil {
		return ErrNoPool
	}
	switch op.Kind {
	case PoolAlloc:
		if _, dup := pl.poolLive[op.ID]; dup {
			return fmt.Errorf("%w: %d", ErrDuplicateID, op.ID)
		}
		p, err := pl.pool.Alloc()
		if err != nil {
			return err
		}
		fillPattern(pl.pool.Bytes(p), op.ID)
		pl.poolLive[op.ID] = p
	case PoolFree:
		p, ok := pl.poolLive[op.ID]
		if !ok {
			return fmt.Errorf("%w: %d", ErrUnknownID, op.ID)
		}
		if at := checkPattern(pl.pool.Bytes(p), op.ID); at >= 0 {
			return fmt.Errorf("%w: pool id %d byte %d", ErrDataMismatch, op.ID, at)
		}
		if err := pl.pool.Free(p); err != nil {
			return err
		}
		delete(pl.poolLive, op.ID)
	case PoolClear:
		pl.pool.Clear()
		clear(pl.poolLive)
	}
	return nil
}

func (pl *Player) track(id int, b block) {
	pl.live[id] = b
	pl.liveBytes += b.size
	pl.peak = max(pl.peak, pl.liveBytes)
}

func (pl *Player) untrack(id int) {
	pl.liveBytes -= pl.live[id].size
	delete(pl.live, id)
}

func (pl *Player) fill(id int, p alloc.Ptr, n int) {
	fillPattern(pl.heap.Bytes(p)[:n], id)
}

func (pl *Player) verify(id int, b block) error {
	data := pl.heap.Bytes(b.ptr)
	if len(data) < b.size {
		return fmt.Errorf("%w: id %d has %d usable bytes, want %d", ErrDataMismatch, id, len(data), b.size)
	}
	if at := checkPattern(data[:b.size], id); at >= 0 {
		pl.log.Error("trace data mismatch", "id", id, "ptr", uint32(b.ptr), "offset", at)
		return fmt.Errorf("%w: id %d byte %d", ErrDataMismatch, id, at)
	}
	return nil
}

func (pl *Player) verifyZero(p alloc.Ptr, n int) error {
	for i, v := range pl.heap.Bytes(p)[:n] {
		if v != 0 {
			return fmt.Errorf("%w: calloc byte %d is 0x%02x", ErrDataMismatch, i, v)
		}
	}
	return nil
}

// Result returns the summary so far.
func (pl *Player) Result() Result {
	r := Result{
		Ops:       pl.ops,
		Live:      len(pl.live),
		LiveBytes: pl.liveBytes,
		PeakLive:  pl.peak,
		Released:  pl.released,
	}
	if s, ok := pl.heap.(statser); ok {
		r.Arena = s.Stats()
	}
	if pl.pool != nil {
		ps := pl.pool.Stats()
		r.Pool = &ps
	}
	return r
}

func patternByte(id, i int) byte { return byte(id*131 + i*7 + 1) }

func fillPattern(b []byte, id int) {
	for i := range b {
		b[i] = patternByte(id, i)
	}
}

// checkPattern returns the offset of the first byte that does not match,
// or -1.
func checkPattern(b []byte, id int) int {
	for i, v := range b {
		if v != patternByte(id, i) {
			return i
		}
	}
	return -1
}
