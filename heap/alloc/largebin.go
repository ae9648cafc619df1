package alloc

// Large bins hold a range of sizes each, kept in decreasing size order. On
// top of the fd/bk ring, the first chunk of every distinct size (its
// representative) is linked into a second circular list through
// fd_nextsize/bk_nextsize, so a best-fit search skips runs of equal sizes:
//
//	bin -> [512 rep] -> [512] -> [512] -> [480 rep] -> [448 rep] -> bin
//	          |  fd_nextsize               ^   |            ^
//	          +----------------------------+   +------------+
//
// Chunks that are not representatives have nil size links.

// insertLarge threads victim into the skip list of its large bin and
// returns the fd/bk neighbors it must be spliced between. The caller does
// the fd/bk splice.
func (a *Arena) insertLarge(victim chunk, size uint32) (bck, fwd chunk) {
	bck = binAt(largebinIndex(size))
	fwd = a.fd(bck)

	if fwd == bck {
		a.setFdNextsize(victim, victim)
		a.setBkNextsize(victim, victim)
		return bck, fwd
	}

	// Compare with PREV_INUSE set so flag noise cannot change the order.
	size |= prevInuse
	if size < a.sizeField(a.bk(bck)) {
		// Smaller than the smallest chunk: append at the tail.
		fwd = bck
		bck = a.bk(bck)
		first := a.fd(fwd)
		a.setFdNextsize(victim, first)
		a.setBkNextsize(victim, a.bkNextsize(first))
		a.setFdNextsize(a.bkNextsize(first), victim)
		a.setBkNextsize(first, victim)
		return bck, fwd
	}

	for size < a.sizeField(fwd) {
		fwd = a.fdNextsize(fwd)
	}
	if size == a.sizeField(fwd) {
		// Tie: go right behind the representative so it never moves.
		fwd = a.fd(fwd)
		a.setFdNextsize(victim, noChunk)
		a.setBkNextsize(victim, noChunk)
	} else {
		a.setFdNextsize(victim, fwd)
		a.setBkNextsize(victim, a.bkNextsize(fwd))
		if a.fdNextsize(a.bkNextsize(fwd)) != fwd {
			a.corrupt(CorruptListLinks, "malloc(): largebin double linked list corrupted (nextsize)", fwd)
		}
		a.setBkNextsize(fwd, victim)
		a.setFdNextsize(a.bkNextsize(victim), victim)
	}
	bck = a.bk(fwd)
	if a.fd(bck) != fwd {
		a.corrupt(CorruptListLinks, "malloc(): largebin double linked list corrupted (bk)", fwd)
	}
	return bck, fwd
}

// bestFitLarge returns the smallest chunk in large bin idx whose size is at
// least nb, or noChunk. Of several chunks of that size it prefers the one
// behind the representative, so the skip list does not need rerouting.
func (a *Arena) bestFitLarge(idx int, nb uint32) chunk {
	bin := binAt(idx)
	first := a.fd(bin)
	if first == bin || a.chunksize(first) < nb {
		return noChunk
	}
	victim := a.bkNextsize(first)
	for a.chunksize(victim) < nb {
		victim = a.bkNextsize(victim)
	}
	if victim != a.bk(bin) && a.sizeField(victim) == a.sizeField(a.fd(victim)) {
		victim = a.fd(victim)
	}
	return victim
}
