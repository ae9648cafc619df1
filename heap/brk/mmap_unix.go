//go:build unix

package brk

import (
	"fmt"

	"golang.org/x/sys/unix"

	"github.com/joshuapare/heapkit/internal/format"
)

// Mmap is a Break backed by a reserved anonymous mapping. Pages between the
// origin and the break are readable and writable; everything else in the
// reservation is PROT_NONE.
type Mmap struct {
	region    []byte
	origin    uint32
	end       uint32
	committed uint32 // page-aligned end of the read/write part
	highWater uint32 // highest committed end ever; pages below it may be dirty
	pageSize  uint32
	closed    bool

	// OnSbrk, if set, is called with every delta before it is applied.
	OnSbrk func(delta int)
}

// NewMmap reserves limit bytes of address space (DefaultLimit when <= 0).
// Nothing is committed until the break grows.
func NewMmap(limit int) (*Mmap, error) {
	pageSize := uint32(unix.Getpagesize())
	origin := max(uint32(DefaultOrigin), pageSize)
	l := format.AlignDown(normalizeLimit(limit), pageSize)
	if l <= origin {
		return nil, fmt.Errorf("%w: limit %d leaves no room past origin %d", ErrNoMemory, limit, origin)
	}

	region, err := unix.Mmap(-1, 0, int(l), unix.PROT_NONE, unix.MAP_PRIVATE|unix.MAP_ANON)
	if err != nil {
		return nil, fmt.Errorf("brk: reserve %d bytes: %w", l, err)
	}
	return &Mmap{
		region:    region,
		origin:    origin,
		end:       origin,
		committed: origin,
		highWater: origin,
		pageSize:  pageSize,
	}, nil
}

// Sbrk implements Break.
func (m *Mmap) Sbrk(delta int) (uint32, error) {
	if m.closed {
		return 0, ErrClosed
	}
	if m.OnSbrk != nil {
		m.OnSbrk(delta)
	}

	prev := m.end
	limit := uint32(len(m.region))
	switch {
	case delta == 0:
		return prev, nil

	case delta > 0:
		if uint64(delta) > uint64(limit-prev) {
			return 0, fmt.Errorf("%w: end=%d grow=%d limit=%d", ErrNoMemory, prev, delta, limit)
		}
		newEnd := prev + uint32(delta)
		if newEnd > m.committed {
			hi := min(format.AlignUp(newEnd, m.pageSize), limit)
			if err := unix.Mprotect(m.region[m.committed:hi], unix.PROT_READ|unix.PROT_WRITE); err != nil {
				return 0, fmt.Errorf("%w: commit [%d,%d): %v", ErrNoMemory, m.committed, hi, err)
			}
			// MADV_DONTNEED does not zero pages on every platform.
			if m.committed < m.highWater {
				clear(m.region[m.committed:min(hi, m.highWater)])
			}
			m.committed = hi
			m.highWater = max(m.highWater, hi)
		}
		m.end = newEnd
		return prev, nil

	default:
		if uint64(-delta) > uint64(prev-m.origin) {
			return 0, fmt.Errorf("%w: end=%d shrink=%d origin=%d", ErrInvalidDelta, prev, -delta, m.origin)
		}
		newEnd := prev - uint32(-delta)
		lo := format.AlignUp(newEnd, m.pageSize)
		// The partial page stays committed; wipe its tail so regrowth sees zeros.
		clear(m.region[newEnd:min(lo, m.committed)])
		if lo < m.committed {
			released := m.region[lo:m.committed]
			if err := unix.Madvise(released, unix.MADV_DONTNEED); err != nil {
				return 0, fmt.Errorf("brk: release [%d,%d): %w", lo, m.committed, err)
			}
			if err := unix.Mprotect(released, unix.PROT_NONE); err != nil {
				return 0, fmt.Errorf("brk: protect [%d,%d): %w", lo, m.committed, err)
			}
			m.committed = lo
		}
		m.end = newEnd
		return prev, nil
	}
}

// Bytes implements Break. The slice never moves for the lifetime of the
// mapping, but only [Origin, end) may be touched.
func (m *Mmap) Bytes() []byte {
	if m.closed {
		return nil
	}
	return m.region[:m.end]
}

// Origin returns the first address the break hands out.
func (m *Mmap) Origin() uint32 { return m.origin }

// Close unmaps the whole reservation. Any slice obtained from Bytes becomes
// invalid.
func (m *Mmap) Close() error {
	if m.closed {
		return nil
	}
	m.closed = true
	return unix.Munmap(m.region)
}

// Compile-time interface check
var _ Break = (*Mmap)(nil)
