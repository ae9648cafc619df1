package alloc

// Bins are circular doubly linked lists headed by a bin handle. Bin i has
// handle chunk(i); handles are below any address the break can return, so a
// link can point at a head or at a chunk without a tag.
//
//	bin 1       unsorted: recently freed chunks waiting to be sorted
//	bins 2-63   small: one exact size each, spaced 8 bytes apart
//	bins 64-126 large: logarithmic size ranges, sorted by size
type binHead struct {
	fd, bk chunk
}

func isBin(c chunk) bool { return c < nBins }

func binAt(i int) chunk { return chunk(i) }

func nextBin(b chunk) chunk { return b + 1 }

func inSmallbinRange(sz uint32) bool { return sz < minLargeSize }

func smallbinIndex(sz uint32) int { return int(sz >> 3) }

func largebinIndex(sz uint32) int {
	switch {
	case sz>>6 <= 38:
		return 56 + int(sz>>6)
	case sz>>9 <= 20:
		return 91 + int(sz>>9)
	case sz>>12 <= 10:
		return 110 + int(sz>>12)
	case sz>>15 <= 4:
		return 119 + int(sz>>15)
	case sz>>18 <= 2:
		return 124 + int(sz>>18)
	default:
		return 126
	}
}

// binIndex returns the bin a free chunk of size sz belongs to.
func binIndex(sz uint32) int {
	if inSmallbinRange(sz) {
		return smallbinIndex(sz)
	}
	return largebinIndex(sz)
}

func idx2block(i int) int        { return i >> binmapShift }
func idx2bit(i int) uint32       { return 1 << (uint(i) & (bitsPerMap - 1)) }
func (a *Arena) markBin(i int)   { a.binmap[idx2block(i)] |= idx2bit(i) }
func (a *Arena) unmarkBin(i int) { a.binmap[idx2block(i)] &^= idx2bit(i) }

func (a *Arena) binMarked(i int) bool { return a.binmap[idx2block(i)]&idx2bit(i) != 0 }

func (a *Arena) binEmpty(b chunk) bool { return a.fd(b) == b }

// unlink takes a free chunk off its bin, repairing the skip list when p
// is a large chunk carrying size links.
func (a *Arena) unlink(p chunk) {
	size := a.chunksize(p)
	if size != a.prevSize(chunkAt(p, size)) {
		a.corrupt(CorruptSizeMismatch, "corrupted size vs. prev_size", p)
	}

	fd, bk := a.fd(p), a.bk(p)
	if !a.validLink(fd) || !a.validLink(bk) || a.bk(fd) != p || a.fd(bk) != p {
		a.corrupt(CorruptListLinks, "corrupted double-linked list", p)
	}
	a.setBk(fd, bk)
	a.setFd(bk, fd)

	if inSmallbinRange(size) {
		return
	}
	pfn := a.fdNextsize(p)
	if pfn == noChunk {
		// p is a tie behind its size's representative.
		return
	}
	pbn := a.bkNextsize(p)
	if !a.validChunk(pfn) || !a.validChunk(pbn) || a.bkNextsize(pfn) != p || a.fdNextsize(pbn) != p {
		a.corrupt(CorruptListLinks, "corrupted double-linked list (not small)", p)
	}
	if !isBin(fd) && a.fdNextsize(fd) == noChunk {
		// fd is a tie of the same size: promote it.
		if pfn == p {
			a.setFdNextsize(fd, fd)
			a.setBkNextsize(fd, fd)
		} else {
			a.setFdNextsize(fd, pfn)
			a.setBkNextsize(fd, pbn)
			a.setBkNextsize(pfn, fd)
			a.setFdNextsize(pbn, fd)
		}
		return
	}
	a.setBkNextsize(pfn, pbn)
	a.setFdNextsize(pbn, pfn)
}

// fileChunk places a free chunk of the given size into its small or large bin.
func (a *Arena) fileChunk(victim chunk, size uint32) {
	var idx int
	var bck, fwd chunk
	if inSmallbinRange(size) {
		idx = smallbinIndex(size)
		bck = binAt(idx)
		fwd = a.fd(bck)
	} else {
		idx = largebinIndex(size)
		bck, fwd = a.insertLarge(victim, size)
	}

	a.markBin(idx)
	a.setBk(victim, bck)
	a.setFd(victim, fwd)
	a.setBk(fwd, victim)
	a.setFd(bck, victim)
}

// pushUnsorted links p at the head of the unsorted bin. msg names the
// caller in the corruption report.
func (a *Arena) pushUnsorted(p chunk, size uint32, msg string) {
	bck := unsortedBin
	fwd := a.fd(bck)
	if !a.validLink(fwd) || a.bk(fwd) != bck {
		a.corrupt(CorruptListLinks, msg, p)
	}
	a.setFd(p, fwd)
	a.setBk(p, bck)
	if !inSmallbinRange(size) {
		a.setFdNextsize(p, noChunk)
		a.setBkNextsize(p, noChunk)
	}
	a.setBk(fwd, p)
	a.setFd(bck, p)
}
