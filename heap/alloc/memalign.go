package alloc

import (
	"fmt"

	"github.com/joshuapare/heapkit/internal/format"
)

// intMemalign returns a chunk of at least bytes whose user pointer is a
// multiple of alignment, a power of two greater than MallocAlignment. It
// over-allocates and gives back the leading and trailing slack.
func (a *Arena) intMemalign(alignment uint32, bytes int) (Ptr, error) {
	nb, ok := request2size(bytes)
	if !ok {
		return Nil, fmt.Errorf("%w: %d bytes", ErrInvalidSize, bytes)
	}

	m, err := a.intMalloc(int(nb) + int(alignment) + minSize)
	if err != nil {
		return Nil, err
	}
	p := mem2chunk(m)

	if !format.IsAligned(uint32(m), alignment) {
		// Find an aligned spot far enough in that the leader is a chunk.
		lead := mem2chunk(Ptr(format.AlignUp(uint32(m), alignment)))
		if uint32(lead-p) < minSize {
			lead += chunk(alignment)
		}
		leadSize := uint32(lead - p)
		newSize := a.chunksize(p) - leadSize

		a.setHead(lead, newSize|prevInuse)
		a.setInuseBitAtOffset(lead, newSize)
		a.setHeadSize(p, leadSize)
		a.intFree(p, true)
		p = lead
	}

	if size := a.chunksize(p); size > nb+minSize {
		remainder := chunkAt(p, nb)
		a.setHead(remainder, (size-nb)|prevInuse)
		a.setHeadSize(p, nb)
		a.intFree(remainder, true)
	}
	return chunk2mem(p), nil
}
