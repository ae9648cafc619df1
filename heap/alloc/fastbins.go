package alloc

// Fastbins are singly linked LIFO stacks of small freed chunks, one per
// 8-byte size step from 16 bytes. Chunks on a fastbin still look allocated
// to their neighbors (the successor keeps PREV_INUSE), so they are never
// coalesced until malloc_consolidate sweeps them into the regular bins.

func fastbinIndex(sz uint32) int { return int(sz>>3) - 2 }

// fastMaxFor converts a MaxFast request size to the chunk-size bound used by
// the fast paths. A zero request disables fastbins: no chunk is that small.
func fastMaxFor(req uint32) uint32 {
	if req == 0 {
		return smallbinWidth
	}
	return (req + sizeSz) &^ mallocAlignMask
}

// pushFast links p onto the head of its fastbin.
func (a *Arena) pushFast(p chunk, size uint32) {
	idx := fastbinIndex(size)
	old := a.fastbins[idx]
	// Only the head can be checked cheaply: freeing it again is the common
	// double free.
	if old == p {
		a.corrupt(CorruptDoubleFree, "double free or corruption (fasttop)", p)
	}
	if old != noChunk && (!a.validChunk(old) || fastbinIndex(a.chunksize(old)) != idx) {
		a.corrupt(CorruptFastbinIndex, "invalid fastbin entry (free)", old)
	}
	a.setFd(p, old)
	a.fastbins[idx] = p
	a.haveFastchunks = true
}

// popFast unlinks and returns the head of fastbin idx, or noChunk.
func (a *Arena) popFast(idx int) chunk {
	victim := a.fastbins[idx]
	if victim == noChunk {
		return noChunk
	}
	if !a.validChunk(victim) {
		a.corrupt(CorruptListLinks, "malloc(): memory corruption (fast)", victim)
	}
	if fastbinIndex(a.chunksize(victim)) != idx {
		a.corrupt(CorruptFastbinIndex, "malloc(): memory corruption (fast)", victim)
	}
	a.fastbins[idx] = a.fd(victim)
	return victim
}
