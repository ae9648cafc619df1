package alloc

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"runtime"

	"github.com/joshuapare/heapkit/heap/brk"
	"github.com/joshuapare/heapkit/internal/format"
)

// Runtime debug flag for allocation logging - controlled by HEAPKIT_LOG_ALLOC env var.
var logAlloc = os.Getenv("HEAPKIT_LOG_ALLOC") != ""

// Options tunes an Arena. The zero value selects the defaults.
type Options struct {
	// TrimThreshold is the top size at which a large free gives memory back
	// to the break. 0 selects DefaultTrimThreshold; negative disables trimming.
	TrimThreshold int

	// TopPad is extra space requested on every break growth.
	TopPad int

	// MaxFast is the largest request served from fastbins, up to
	// MaxFastLimit. 0 selects DefaultMaxFast; DisableFastbins turns them off.
	MaxFast int

	// PerturbByte, when non-zero, fills allocations with PerturbByte^0xff
	// and freed memory with PerturbByte, to surface use of uninitialized or
	// freed memory.
	PerturbByte byte

	// PageSize is the granularity of growth and trimming; a power of two.
	// 0 selects DefaultPageSize.
	PageSize int

	// Logger receives debug events (growth, trim, consolidation) and
	// corruption reports. nil discards, unless HEAPKIT_LOG_ALLOC is set.
	Logger *slog.Logger

	// OnCorruption is called once when an operation detects heap
	// corruption. The default logs the error and panics. If the hook
	// returns, the operation fails with the error and so does every later
	// call on the arena.
	OnCorruption func(*CorruptionError)
}

// Arena is a boundary-tag heap over a Break. It is not safe for concurrent
// use.
type Arena struct {
	brk brk.Break
	mem []byte // brk.Bytes(), re-fetched after every Sbrk

	fastbins       [nFastbins]chunk
	haveFastchunks bool
	bins           [nBins]binHead
	binmap         [binmapSize]uint32
	top            chunk
	lastRemainder  chunk

	sbrkBase     uint32
	systemMem    uint32
	maxSystemMem uint32
	segments     []uint32 // start of each contiguous run of chunks

	maxFast       uint32
	trimThreshold uint32 // 0 = never trim
	topPad        uint32
	pageSize      uint32
	perturb       byte

	log          *slog.Logger
	onCorruption func(*CorruptionError)
	broken       *CorruptionError

	counters counters
}

// New creates an arena that grows through b. Nothing is requested from the
// break until the first allocation.
func New(b brk.Break, opts *Options) (*Arena, error) {
	if b == nil {
		return nil, fmt.Errorf("%w: nil break", ErrInvalidOption)
	}
	if opts == nil {
		opts = &Options{}
	}

	a := &Arena{
		brk:          b,
		mem:          b.Bytes(),
		top:          unsortedBin,
		perturb:      opts.PerturbByte,
		log:          opts.Logger,
		onCorruption: opts.OnCorruption,
	}
	for i := range a.bins {
		a.bins[i] = binHead{fd: binAt(i), bk: binAt(i)}
	}

	switch {
	case opts.MaxFast == 0:
		a.maxFast = fastMaxFor(DefaultMaxFast)
	case opts.MaxFast == DisableFastbins:
		a.maxFast = fastMaxFor(0)
	case opts.MaxFast < 0 || opts.MaxFast > MaxFastLimit:
		return nil, fmt.Errorf("%w: max fast %d outside [0, %d]", ErrInvalidOption, opts.MaxFast, MaxFastLimit)
	default:
		a.maxFast = fastMaxFor(uint32(opts.MaxFast))
	}

	switch {
	case opts.TrimThreshold == 0:
		a.trimThreshold = DefaultTrimThreshold
	case opts.TrimThreshold < 0:
		a.trimThreshold = 0
	case opts.TrimThreshold > MaxRequest:
		return nil, fmt.Errorf("%w: trim threshold %d", ErrInvalidOption, opts.TrimThreshold)
	default:
		a.trimThreshold = uint32(opts.TrimThreshold)
	}

	if opts.TopPad < 0 || opts.TopPad > MaxRequest {
		return nil, fmt.Errorf("%w: top pad %d", ErrInvalidOption, opts.TopPad)
	}
	a.topPad = uint32(opts.TopPad)

	a.pageSize = DefaultPageSize
	if opts.PageSize != 0 {
		if opts.PageSize < MinPageSize || opts.PageSize > MaxAlignment || !format.IsPowerOfTwo(uint32(opts.PageSize)) {
			return nil, fmt.Errorf("%w: page size %d must be a power of two >= %d", ErrInvalidOption, opts.PageSize, MinPageSize)
		}
		a.pageSize = uint32(opts.PageSize)
	}

	if a.log == nil {
		if logAlloc {
			a.log = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
		} else {
			a.log = slog.New(slog.NewTextHandler(io.Discard, nil))
		}
	}
	return a, nil
}

// refresh re-fetches the memory view; growth may have moved it.
func (a *Arena) refresh() { a.mem = a.brk.Bytes() }

func (a *Arena) fill(p Ptr, n uint32, v byte) {
	format.Fill(a.mem[p:uint32(p)+n], v)
}

// corrupt aborts the current operation. The public entry point that
// started it turns the panic into the corruption report.
func (a *Arena) corrupt(kind CorruptionKind, msg string, c chunk) {
	panic(&CorruptionError{Kind: kind, Msg: msg, Chunk: uint32(c)})
}

// enter refuses work on an arena that already reported corruption, and
// picks up growth of a break shared with other users.
func (a *Arena) enter() error {
	if a.broken != nil {
		return a.broken
	}
	a.refresh()
	return nil
}

// recoverCorruption converts a corruption panic raised during op into an
// error, after marking the arena broken and running the hook. Other panics
// propagate. It returns true when r was a corruption.
func (a *Arena) recoverCorruption(r any, op string, errp *error) bool {
	if r == nil {
		return false
	}
	ce, ok := r.(*CorruptionError)
	if !ok {
		// Damaged headers can send an access outside the break before any
		// inline check sees them.
		re, isRuntime := r.(runtime.Error)
		if !isRuntime {
			panic(r)
		}
		ce = &CorruptionError{Kind: CorruptMemory, Msg: "memory access outside the heap: " + re.Error()}
	}
	ce.Op = op
	a.broken = ce
	a.log.Error("heap corruption", "op", op, "kind", ce.Kind.String(), "msg", ce.Msg, "chunk", ce.Chunk)
	if a.onCorruption != nil {
		a.onCorruption(ce)
	} else {
		panic(ce)
	}
	*errp = ce
	return true
}
