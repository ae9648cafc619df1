package alloc

import "math"

// validChunk reports whether c could be a chunk header inside the heap:
// aligned, at or past the heap base and with its header inside the break.
func (a *Arena) validChunk(c chunk) bool {
	return a.sbrkBase != 0 &&
		uint32(c) >= a.sbrkBase &&
		uint64(c)+2*sizeSz <= uint64(len(a.mem)) &&
		alignedOK(uint32(c))
}

// validLink reports whether c may appear in a free list: a bin head or a
// valid chunk.
func (a *Arena) validLink(c chunk) bool {
	return isBin(c) || a.validChunk(c)
}

// intFree releases chunk p. trim allows a systrim when the free leaves a
// large top; sysmalloc clears it while fencing an old top.
func (a *Arena) intFree(p chunk, trim bool) {
	if !a.validChunk(p) {
		a.corrupt(CorruptInvalidPointer, "free(): invalid pointer", p)
	}
	top := a.top
	if topSize := a.chunksize(top); p > top && p < chunkAt(top, topSize) {
		a.corrupt(CorruptDoubleFree, "double free or corruption (top)", p)
	}
	size := a.chunksize(p)
	if uint64(p)+uint64(size) > math.MaxUint32 {
		a.corrupt(CorruptInvalidPointer, "free(): invalid pointer", p)
	}
	if size < minSize || !alignedOK(size) {
		a.corrupt(CorruptInvalidSize, "free(): invalid size", p)
	}
	next := chunkAt(p, size)
	if uint64(next)+2*sizeSz > uint64(len(a.mem)) {
		a.corrupt(CorruptDoubleFree, "double free or corruption (out)", p)
	}

	// Chunks that border top skip the fastbins so that the merge into top,
	// and a possible trim, happen right away.
	if size <= a.maxFast && next != top {
		if a.sizeField(next) <= 2*sizeSz || a.chunksize(next) >= a.systemMem {
			a.corrupt(CorruptInvalidSize, "free(): invalid next size (fast)", p)
		}
		a.freePerturb(p, size)
		a.pushFast(p, size)
		return
	}

	if p == top {
		a.corrupt(CorruptDoubleFree, "double free or corruption (top)", p)
	}
	if next >= chunkAt(top, a.chunksize(top)) {
		a.corrupt(CorruptDoubleFree, "double free or corruption (out)", p)
	}
	if !a.prevInuse(next) {
		a.corrupt(CorruptDoubleFree, "double free or corruption (!prev)", p)
	}
	nextSize := a.chunksize(next)
	if a.sizeField(next) <= 2*sizeSz || nextSize >= a.systemMem {
		a.corrupt(CorruptInvalidSize, "free(): invalid next size (normal)", p)
	}

	a.freePerturb(p, size)

	if !a.prevInuse(p) {
		prev := a.prevSize(p)
		size += prev
		p = p - chunk(prev)
		a.unlink(p)
	}

	if next != top {
		if !a.inuseBitAtOffset(next, nextSize) {
			a.unlink(next)
			size += nextSize
		} else {
			a.clearInuseBitAtOffset(next, 0)
		}
		a.pushUnsorted(p, size, "free(): corrupted unsorted chunks")
		a.setHead(p, size|prevInuse)
		a.setFoot(p, size)
	} else {
		size += nextSize
		a.setHead(p, size|prevInuse)
		a.top = p
	}

	// Freeing something big is the moment to fold fastbins back in and
	// see whether top has grown past the trim threshold.
	if size >= FastbinConsolidationThreshold {
		if a.haveFastchunks {
			a.consolidate()
		}
		if trim && a.trimThreshold > 0 && a.chunksize(a.top) >= a.trimThreshold {
			a.systrim(a.topPad)
		}
	}
}

func (a *Arena) freePerturb(p chunk, size uint32) {
	if a.perturb != 0 && size > 2*sizeSz {
		a.fill(chunk2mem(p), size-2*sizeSz, a.perturb)
	}
}
