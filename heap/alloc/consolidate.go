package alloc

// consolidate empties every fastbin, merging each chunk with its free
// neighbors and filing the result on the unsorted bin or into top.
func (a *Arena) consolidate() {
	a.counters.consolidations++
	a.haveFastchunks = false

	var merged int
	for idx := range a.fastbins {
		p := a.fastbins[idx]
		a.fastbins[idx] = noChunk
		for p != noChunk {
			if !a.validChunk(p) {
				a.corrupt(CorruptListLinks, "malloc_consolidate(): invalid chunk size", p)
			}
			if fastbinIndex(a.chunksize(p)) != idx {
				a.corrupt(CorruptFastbinIndex, "malloc_consolidate(): invalid chunk size", p)
			}
			nextp := a.fd(p)
			a.mergeFreed(p)
			merged++
			p = nextp
		}
	}
	if merged > 0 {
		a.log.Debug("consolidate", "chunks", merged, "top", a.chunksize(a.top))
	}
}

// mergeFreed coalesces a chunk leaving a fastbin with its free neighbors.
// Unlike intFree it runs no double-free checks: the chunk was validated
// when it was pushed.
func (a *Arena) mergeFreed(p chunk) {
	size := a.chunksize(p)
	next := chunkAt(p, size)
	nextSize := a.chunksize(next)

	if !a.prevInuse(p) {
		prev := a.prevSize(p)
		size += prev
		p = p - chunk(prev)
		a.unlink(p)
	}

	if next == a.top {
		size += nextSize
		a.setHead(p, size|prevInuse)
		a.top = p
		return
	}
	if !a.inuseBitAtOffset(next, nextSize) {
		size += nextSize
		a.unlink(next)
	} else {
		a.clearInuseBitAtOffset(next, 0)
	}
	a.pushUnsorted(p, size, "malloc_consolidate(): corrupted unsorted chunks")
	a.setHead(p, size|prevInuse)
	a.setFoot(p, size)
}
