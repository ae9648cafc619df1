package alloc

import "fmt"

// intRealloc resizes the in-use chunk oldp to hold nb bytes, in place when
// the chunk already fits, can grow into top or can absorb a free successor.
func (a *Arena) intRealloc(oldp chunk, oldSize, nb uint32) (Ptr, error) {
	if a.sizeField(oldp) <= 2*sizeSz || oldSize >= a.systemMem {
		a.corrupt(CorruptInvalidSize, "realloc(): invalid old size", oldp)
	}
	next := chunkAt(oldp, oldSize)
	if uint64(next)+2*sizeSz > uint64(len(a.mem)) {
		a.corrupt(CorruptInvalidPointer, "realloc(): invalid pointer", oldp)
	}
	if !a.prevInuse(next) {
		a.corrupt(CorruptDoubleFree, "realloc(): chunk is not in use", oldp)
	}
	nextSize := a.chunksize(next)
	if a.sizeField(next) <= 2*sizeSz || nextSize >= a.systemMem {
		a.corrupt(CorruptInvalidSize, "realloc(): invalid next size", oldp)
	}

	newp, newSize := oldp, oldSize
	if oldSize < nb {
		switch {
		case next == a.top && oldSize+nextSize >= nb+minSize:
			newSize = oldSize + nextSize
			a.setHeadSize(oldp, nb)
			a.top = chunkAt(oldp, nb)
			a.setHead(a.top, (newSize-nb)|prevInuse)
			return chunk2mem(oldp), nil

		case next != a.top && !a.inuse(next) && oldSize+nextSize >= nb:
			newSize = oldSize + nextSize
			a.unlink(next)

		default:
			newmem, err := a.intMalloc(int(nb - mallocAlignMask))
			if err != nil {
				return Nil, fmt.Errorf("realloc to %d bytes: %w", nb, err)
			}
			np := mem2chunk(newmem)
			if np != next {
				copy(a.mem[newmem:], a.mem[chunk2mem(oldp):uint32(chunk2mem(oldp))+oldSize-sizeSz])
				a.intFree(oldp, true)
				return newmem, nil
			}
			// malloc handed back our own successor: just merge with it.
			newSize = oldSize + a.chunksize(np)
		}
	}

	a.shrinkInuse(newp, newSize, nb)
	return chunk2mem(newp), nil
}

// shrinkInuse sets an in-use chunk spanning size bytes to nb bytes and
// frees the tail when it is big enough to be a chunk.
func (a *Arena) shrinkInuse(p chunk, size, nb uint32) {
	remSize := size - nb
	if remSize < minSize {
		a.setHeadSize(p, size)
		a.setInuseBitAtOffset(p, size)
		return
	}
	remainder := chunkAt(p, nb)
	a.setHeadSize(p, nb)
	a.setHead(remainder, remSize|prevInuse)
	// Mark the remainder in use so free accepts it.
	a.setInuseBitAtOffset(remainder, remSize)
	a.intFree(remainder, true)
}
