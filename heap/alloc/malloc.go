package alloc

import "fmt"

// intMalloc serves a request of the given byte count. The search order is
// fastbin, exact small bin, unsorted drain, best-fit large bin, next
// non-empty bin from the binmap, top, and finally break growth.
func (a *Arena) intMalloc(bytes int) (Ptr, error) {
	nb, ok := request2size(bytes)
	if !ok {
		return Nil, fmt.Errorf("%w: %d bytes", ErrInvalidSize, bytes)
	}

	if nb <= a.maxFast {
		if victim := a.popFast(fastbinIndex(nb)); victim != noChunk {
			return a.allocated(victim, bytes), nil
		}
	}

	var idx int
	if inSmallbinRange(nb) {
		idx = smallbinIndex(nb)
		bin := binAt(idx)
		if victim := a.bk(bin); victim != bin {
			bck := a.bk(victim)
			if a.fd(bck) != victim {
				a.corrupt(CorruptListLinks, "malloc(): smallbin double linked list corrupted", victim)
			}
			a.setInuseBitAtOffset(victim, nb)
			a.setBk(bin, bck)
			a.setFd(bck, bin)
			return a.allocated(victim, bytes), nil
		}
	} else {
		// Large requests first fold fastbin chunks back in, so that a
		// run of small frees cannot fragment the space a large one needs.
		idx = largebinIndex(nb)
		if a.haveFastchunks {
			a.consolidate()
		}
	}

	for {
		if victim, done := a.drainUnsorted(nb); done {
			return a.allocated(victim, bytes), nil
		}

		if !inSmallbinRange(nb) {
			if victim := a.bestFitLarge(idx, nb); victim != noChunk {
				a.unlink(victim)
				a.splitTaken(victim, nb, "malloc(): corrupted unsorted chunks", false)
				return a.allocated(victim, bytes), nil
			}
		}

		if victim := a.scanBinmap(idx + 1); victim != noChunk {
			a.unlink(victim)
			a.splitTaken(victim, nb, "malloc(): corrupted unsorted chunks 2", inSmallbinRange(nb))
			return a.allocated(victim, bytes), nil
		}

		victim := a.top
		if size := a.chunksize(victim); size >= nb+minSize {
			remainder := chunkAt(victim, nb)
			a.top = remainder
			a.setHead(victim, nb|prevInuse)
			a.setHead(remainder, (size-nb)|prevInuse)
			return a.allocated(victim, bytes), nil
		}

		if !a.haveFastchunks {
			p, err := a.sysmalloc(nb)
			if err != nil {
				return Nil, err
			}
			return a.allocated(mem2chunk(p), bytes), nil
		}
		// Fastbin chunks may coalesce into something big enough; retry.
		a.consolidate()
		idx = binIndex(nb)
	}
}

// drainUnsorted sorts chunks out of the unsorted bin into their bins,
// returning early with an exact fit or a split of the last remainder.
func (a *Arena) drainUnsorted(nb uint32) (chunk, bool) {
	for iters := 0; iters < MaxUnsortedIters; iters++ {
		victim := a.bk(unsortedBin)
		if victim == unsortedBin {
			break
		}
		if !a.validChunk(victim) {
			a.corrupt(CorruptListLinks, "malloc(): corrupted unsorted chunks", victim)
		}
		bck := a.bk(victim)
		if !a.validLink(bck) {
			a.corrupt(CorruptListLinks, "malloc(): corrupted unsorted chunks", victim)
		}
		if a.sizeField(victim) <= 2*sizeSz || a.chunksize(victim) > a.systemMem {
			a.corrupt(CorruptInvalidSize, "malloc(): memory corruption", victim)
		}
		size := a.chunksize(victim)

		// A small request that finds only the last remainder keeps carving
		// it, so runs of small allocations stay adjacent.
		if inSmallbinRange(nb) && bck == unsortedBin && victim == a.lastRemainder && size > nb+minSize {
			remSize := size - nb
			remainder := chunkAt(victim, nb)
			a.setFd(unsortedBin, remainder)
			a.setBk(unsortedBin, remainder)
			a.setFd(remainder, unsortedBin)
			a.setBk(remainder, unsortedBin)
			a.lastRemainder = remainder
			if !inSmallbinRange(remSize) {
				a.setFdNextsize(remainder, noChunk)
				a.setBkNextsize(remainder, noChunk)
			}
			a.setHead(victim, nb|prevInuse)
			a.setHead(remainder, remSize|prevInuse)
			a.setFoot(remainder, remSize)
			return victim, true
		}

		a.setBk(unsortedBin, bck)
		a.setFd(bck, unsortedBin)

		if size == nb {
			a.setInuseBitAtOffset(victim, size)
			return victim, true
		}
		a.fileChunk(victim, size)
	}
	return noChunk, false
}

// scanBinmap returns the last chunk of the first non-empty bin at or above
// idx, clearing binmap bits of bins found empty on the way.
func (a *Arena) scanBinmap(idx int) chunk {
	bin := binAt(idx)
	block := idx2block(idx)
	bmap := a.binmap[block]
	bit := idx2bit(idx)

	for {
		if bit > bmap || bit == 0 {
			// Nothing at or above bit in this block: skip to the next
			// block with any bit set.
			for {
				block++
				if block >= binmapSize {
					return noChunk
				}
				bmap = a.binmap[block]
				if bmap != 0 {
					break
				}
			}
			bin = binAt(block << binmapShift)
			bit = 1
		}

		for bit&bmap == 0 {
			bin = nextBin(bin)
			bit <<= 1
		}

		victim := a.bk(bin)
		if victim != bin {
			return victim
		}
		// Stale bit: the bin emptied since it was marked.
		bmap &^= bit
		a.binmap[block] = bmap
		bin = nextBin(bin)
		bit <<= 1
	}
}

// splitTaken turns a chunk just unlinked from a bin into an allocation of
// nb bytes, filing any remainder of at least minSize on the unsorted bin.
func (a *Arena) splitTaken(victim chunk, nb uint32, msg string, remember bool) {
	size := a.chunksize(victim)
	remSize := size - nb
	if remSize < minSize {
		a.setInuseBitAtOffset(victim, size)
		return
	}
	remainder := chunkAt(victim, nb)
	a.pushUnsorted(remainder, remSize, msg)
	if remember {
		a.lastRemainder = remainder
	}
	a.setHead(victim, nb|prevInuse)
	a.setHead(remainder, remSize|prevInuse)
	a.setFoot(remainder, remSize)
}

// allocated finishes a successful allocation of victim.
func (a *Arena) allocated(victim chunk, bytes int) Ptr {
	p := chunk2mem(victim)
	if a.perturb != 0 && bytes > 0 {
		a.fill(p, uint32(bytes), a.perturb^0xff)
	}
	return p
}
