package brk

import (
	"errors"
	"fmt"
	"math"
)

const (
	// DefaultOrigin is the address of the first byte a break hands out.
	DefaultOrigin = 0x1000

	// DefaultLimit bounds how far a break may grow when no limit is given.
	DefaultLimit = 1 << 30

	// MaxLimit keeps every address representable as a positive int32 so
	// that chunk arithmetic in the allocators never wraps.
	MaxLimit = math.MaxInt32
)

var (
	// ErrNoMemory indicates that the break cannot grow by the requested amount.
	ErrNoMemory = errors.New("brk: out of memory")

	// ErrInvalidDelta indicates a shrink below the origin.
	ErrInvalidDelta = errors.New("brk: shrink below origin")

	// ErrUnsupported indicates that the break kind is not available on this platform.
	ErrUnsupported = errors.New("brk: unsupported on this platform")

	// ErrClosed indicates use of a break after Close.
	ErrClosed = errors.New("brk: closed")
)

// Break is the growth primitive shared by the heap and pool allocators.
type Break interface {
	// Sbrk moves the end of the region by delta bytes and returns the
	// previous end. A zero delta only queries the current end.
	Sbrk(delta int) (uint32, error)

	// Bytes returns the addressable memory [0, end). The returned slice is
	// only valid until the next Sbrk call.
	Bytes() []byte
}

func normalizeLimit(limit int) uint32 {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return uint32(limit)
}

// Slice is a Break backed by an ordinary Go byte slice.
type Slice struct {
	mem    []byte
	origin uint32
	limit  uint32

	// OnSbrk, if set, is called with every delta before it is applied.
	OnSbrk func(delta int)
}

// NewSlice creates a slice-backed break that can grow up to limit bytes
// (including the origin). A limit <= 0 selects DefaultLimit.
func NewSlice(limit int) *Slice {
	l := normalizeLimit(limit)
	if l < DefaultOrigin {
		l = DefaultOrigin
	}
	return &Slice{
		mem:    make([]byte, DefaultOrigin),
		origin: DefaultOrigin,
		limit:  l,
	}
}

// Sbrk implements Break.
func (s *Slice) Sbrk(delta int) (uint32, error) {
	if s.OnSbrk != nil {
		s.OnSbrk(delta)
	}

	prev := uint32(len(s.mem))
	switch {
	case delta == 0:
		return prev, nil

	case delta > 0:
		if uint64(delta) > uint64(s.limit-prev) {
			return 0, fmt.Errorf("%w: end=%d grow=%d limit=%d", ErrNoMemory, prev, delta, s.limit)
		}
		newEnd := int(prev) + delta
		if newEnd <= cap(s.mem) {
			s.mem = s.mem[:newEnd]
			// Bytes released by an earlier shrink must read as fresh memory.
			clear(s.mem[prev:])
			return prev, nil
		}
		newCap := min(max(newEnd, 2*cap(s.mem)), int(s.limit))
		grown := make([]byte, newEnd, newCap)
		copy(grown, s.mem)
		s.mem = grown
		return prev, nil

	default:
		if uint64(-delta) > uint64(prev-s.origin) {
			return 0, fmt.Errorf("%w: end=%d shrink=%d origin=%d", ErrInvalidDelta, prev, -delta, s.origin)
		}
		s.mem = s.mem[:int(prev)+delta]
		return prev, nil
	}
}

// Bytes implements Break.
func (s *Slice) Bytes() []byte { return s.mem }

// Origin returns the first address the break hands out.
func (s *Slice) Origin() uint32 { return s.origin }

// Limit returns the maximum end address.
func (s *Slice) Limit() uint32 { return s.limit }

// Compile-time interface check
var _ Break = (*Slice)(nil)
