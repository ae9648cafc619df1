package alloc

import (
	"github.com/joshuapare/heapkit/internal/format"
)

// Chunk layout, relative to the chunk address c:
//
//	c+0   prev_size    size of the previous chunk, only valid when it is free
//	c+4   size|flags   chunk size OR'd with PREV_INUSE / IS_MMAPPED / NON_MAIN_ARENA
//	c+8   fd           free-list forward link; user memory starts here when in use
//	c+12  bk           free-list back link
//	c+16  fd_nextsize  large bins only: next smaller distinct size
//	c+20  bk_nextsize  large bins only: next larger distinct size
//
// An in-use chunk also owns the prev_size word of its successor, so the
// usable size of an in-use chunk is chunksize - sizeSz.
//
// This file is the only place that reads or writes those words.

// chunk is the address of a chunk header. Addresses below nBins are bin
// heads and never refer to memory.
type chunk uint32

// noChunk terminates fastbins and marks absent skip-list links.
const noChunk chunk = 0

const (
	sizeSz = format.WordSize

	// MallocAlignment is the alignment of every pointer returned by Malloc.
	MallocAlignment = 2 * sizeSz
	mallocAlignMask = MallocAlignment - 1

	// MinChunkSize is the smallest chunk: two header words plus fd/bk.
	MinChunkSize = 4 * sizeSz
	minSize      = (MinChunkSize + mallocAlignMask) &^ mallocAlignMask

	// Overhead is the number of header bytes an in-use chunk adds to a request.
	Overhead = sizeSz

	offPrevSize   = 0
	offSize       = sizeSz
	offFd         = 2 * sizeSz
	offBk         = 3 * sizeSz
	offFdNextsize = 4 * sizeSz
	offBkNextsize = 5 * sizeSz
)

const (
	prevInuse    uint32 = 0x1
	isMmapped    uint32 = 0x2 // never set: there are no mapped chunks
	nonMainArena uint32 = 0x4 // never set: there is one arena
	sizeBits            = prevInuse | isMmapped | nonMainArena
)

func chunk2mem(c chunk) Ptr { return Ptr(c + 2*sizeSz) }
func mem2chunk(p Ptr) chunk { return chunk(p - 2*sizeSz) }

func alignedOK(v uint32) bool { return format.IsAligned(v, MallocAlignment) }

// chunkAt returns the chunk s bytes past c.
func chunkAt(c chunk, s uint32) chunk { return c + chunk(s) }

func (a *Arena) word(off uint32) uint32       { return format.ReadU32(a.mem, int(off)) }
func (a *Arena) setWord(off uint32, v uint32) { format.PutU32(a.mem, int(off), v) }

// sizeField returns the raw size word including flags. Bin heads have none.
func (a *Arena) sizeField(c chunk) uint32 {
	if isBin(c) {
		return 0
	}
	return a.word(uint32(c) + offSize)
}

// chunksize returns the size with the flag bits masked off.
func (a *Arena) chunksize(c chunk) uint32 { return a.sizeField(c) &^ sizeBits }

func (a *Arena) prevSize(c chunk) uint32       { return a.word(uint32(c) + offPrevSize) }
func (a *Arena) setPrevSize(c chunk, v uint32) { a.setWord(uint32(c)+offPrevSize, v) }

// prevInuse reports whether the chunk physically before c is allocated.
func (a *Arena) prevInuse(c chunk) bool { return a.sizeField(c)&prevInuse != 0 }

// nextChunk returns the chunk physically after c.
func (a *Arena) nextChunk(c chunk) chunk { return chunkAt(c, a.chunksize(c)) }

// prevChunk returns the chunk physically before c. Only valid when !prevInuse(c).
func (a *Arena) prevChunk(c chunk) chunk { return c - chunk(a.prevSize(c)) }

// inuse reports whether c itself is allocated, which is recorded in the
// successor's PREV_INUSE bit.
func (a *Arena) inuse(c chunk) bool { return a.prevInuse(a.nextChunk(c)) }

func (a *Arena) inuseBitAtOffset(c chunk, s uint32) bool {
	return a.sizeField(chunkAt(c, s))&prevInuse != 0
}

func (a *Arena) setInuseBitAtOffset(c chunk, s uint32) {
	off := uint32(chunkAt(c, s)) + offSize
	a.setWord(off, a.word(off)|prevInuse)
}

func (a *Arena) clearInuseBitAtOffset(c chunk, s uint32) {
	off := uint32(chunkAt(c, s)) + offSize
	a.setWord(off, a.word(off)&^prevInuse)
}

// setHead overwrites the whole size word, flags included.
func (a *Arena) setHead(c chunk, v uint32) { a.setWord(uint32(c)+offSize, v) }

// setHeadSize replaces the size and keeps the flag bits.
func (a *Arena) setHeadSize(c chunk, s uint32) {
	off := uint32(c) + offSize
	a.setWord(off, a.word(off)&sizeBits|s)
}

// setFoot writes the boundary tag of a free chunk into its successor's prev_size.
func (a *Arena) setFoot(c chunk, s uint32) { a.setPrevSize(chunkAt(c, s), s) }

// Free-list links. Bin heads keep their links outside the managed memory.

func (a *Arena) fd(c chunk) chunk {
	if isBin(c) {
		return a.bins[c].fd
	}
	return chunk(a.word(uint32(c) + offFd))
}

func (a *Arena) bk(c chunk) chunk {
	if isBin(c) {
		return a.bins[c].bk
	}
	return chunk(a.word(uint32(c) + offBk))
}

func (a *Arena) setFd(c, v chunk) {
	if isBin(c) {
		a.bins[c].fd = v
		return
	}
	a.setWord(uint32(c)+offFd, uint32(v))
}

func (a *Arena) setBk(c, v chunk) {
	if isBin(c) {
		a.bins[c].bk = v
		return
	}
	a.setWord(uint32(c)+offBk, uint32(v))
}

// Skip-list links exist only on large free chunks, never on bin heads.

func (a *Arena) fdNextsize(c chunk) chunk {
	mustNotBeBin(c)
	return chunk(a.word(uint32(c) + offFdNextsize))
}

func (a *Arena) bkNextsize(c chunk) chunk {
	mustNotBeBin(c)
	return chunk(a.word(uint32(c) + offBkNextsize))
}

func (a *Arena) setFdNextsize(c, v chunk) {
	mustNotBeBin(c)
	a.setWord(uint32(c)+offFdNextsize, uint32(v))
}

func (a *Arena) setBkNextsize(c, v chunk) {
	mustNotBeBin(c)
	a.setWord(uint32(c)+offBkNextsize, uint32(v))
}

func mustNotBeBin(c chunk) {
	if isBin(c) {
		panic("alloc: skip-list link accessed on bin head")
	}
}

// request2size pads a user request to a chunk size. ok is false when the
// request is negative or too large to pad without overflow.
func request2size(n int) (uint32, bool) {
	if n < 0 || n > MaxRequest {
		return 0, false
	}
	sz := uint32(n) + sizeSz + mallocAlignMask
	if sz < minSize {
		return minSize, true
	}
	return sz &^ mallocAlignMask, true
}
