package alloc

import (
	"errors"
	"fmt"
)

// Check walks every chunk and every free list and verifies the heap's
// invariants: alignment, boundary tags, no adjacent free chunks, free-list
// membership and links, binmap bits, large-bin ordering and the skip list.
// It returns all violations joined, or nil. Check does not modify the heap.
func (a *Arena) Check() error {
	if a.broken != nil {
		return a.broken
	}
	a.refresh()
	k := &checker{
		a:      a,
		listed: make(map[chunk]int),
		seen:   make(map[chunk]bool),
	}
	k.fastbins()
	k.bins()
	k.walk()
	for c, where := range k.listed {
		if !k.seen[c] {
			k.fail(c, "on free list %d but not reached by the heap walk", where)
		}
	}
	return errors.Join(k.errs...)
}

type checker struct {
	a      *Arena
	errs   []error
	listed map[chunk]int // chunk -> bin index, or -(fastbin index + 1)
	seen   map[chunk]bool
}

func (k *checker) fail(c chunk, format string, args ...any) {
	k.errs = append(k.errs, fmt.Errorf("alloc: check: chunk 0x%x: %s", uint32(c), fmt.Sprintf(format, args...)))
}

// readable reports whether c has a header and a successor header inside the heap.
func (k *checker) readable(c chunk) bool {
	a := k.a
	if !a.validChunk(c) {
		return false
	}
	return uint64(c)+uint64(a.chunksize(c))+2*sizeSz <= uint64(len(a.mem))
}

func (k *checker) list(c chunk, where int) bool {
	if prev, dup := k.listed[c]; dup {
		k.fail(c, "linked twice (lists %d and %d)", prev, where)
		return false
	}
	k.listed[c] = where
	return true
}

func (k *checker) fastbins() {
	a := k.a
	nonEmpty := false
	for idx, p := range a.fastbins {
		for n := 0; p != noChunk && n < maxListWalk; n++ {
			if !k.readable(p) {
				k.fail(p, "fastbin %d links outside the heap", idx)
				break
			}
			if !k.list(p, -(idx + 1)) {
				break
			}
			nonEmpty = true
			size := a.chunksize(p)
			if fastbinIndex(size) != idx {
				k.fail(p, "size %d in fastbin %d", size, idx)
			}
			if size > a.maxFast {
				k.fail(p, "size %d above max fast %d", size, a.maxFast)
			}
			p = a.fd(p)
		}
	}
	if nonEmpty && !a.haveFastchunks {
		k.fail(noChunk, "fastbins hold chunks but the have-fastchunks flag is clear")
	}
}

func (k *checker) bins() {
	a := k.a
	for i := 1; i < nBins; i++ {
		bin := binAt(i)
		prev := bin
		var lastSize uint32
		n := 0
		for p := a.fd(bin); p != bin && n < maxListWalk; p, n = a.fd(p), n+1 {
			if !k.readable(p) {
				k.fail(p, "bin %d links outside the heap", i)
				prev = noChunk
				break
			}
			if a.bk(p) != prev {
				k.fail(p, "bin %d: bk is 0x%x, want 0x%x", i, uint32(a.bk(p)), uint32(prev))
			}
			if !k.list(p, i) {
				prev = noChunk
				break
			}
			size := a.chunksize(p)
			if i != int(unsortedBin) && binIndex(size) != i {
				k.fail(p, "size %d filed in bin %d, belongs in %d", size, i, binIndex(size))
			}
			if i >= nSmallBins && lastSize != 0 && size > lastSize {
				k.fail(p, "large bin %d out of order: %d after %d", i, size, lastSize)
			}
			lastSize = size
			prev = p
		}
		if prev != noChunk && a.bk(bin) != prev {
			k.fail(bin, "bin %d: tail is 0x%x, want 0x%x", i, uint32(a.bk(bin)), uint32(prev))
		}
		if n == 0 {
			continue
		}
		if i != int(unsortedBin) && !a.binMarked(i) {
			k.fail(bin, "binmap bit clear for non-empty bin %d", i)
		}
		if i >= nSmallBins && prev != noChunk {
			k.skipList(i)
		}
	}
}

// skipList checks that exactly the first chunk of each distinct size in a
// large bin carries size links, and that those links form a ring in order.
func (k *checker) skipList(i int) {
	a := k.a
	bin := binAt(i)
	var reps []chunk
	var prev chunk
	for p := a.fd(bin); p != bin; p = a.fd(p) {
		rep := a.fdNextsize(p) != noChunk
		switch {
		case prev == noChunk && !rep:
			k.fail(p, "first chunk of large bin %d has no size links", i)
		case prev != noChunk && a.chunksize(p) == a.chunksize(prev) && rep:
			k.fail(p, "second representative for size %d in bin %d", a.chunksize(p), i)
		case prev != noChunk && a.chunksize(p) != a.chunksize(prev) && !rep:
			k.fail(p, "size %d in bin %d has no representative", a.chunksize(p), i)
		}
		if rep {
			reps = append(reps, p)
		}
		prev = p
	}
	for j, r := range reps {
		next := reps[(j+1)%len(reps)]
		back := reps[(j+len(reps)-1)%len(reps)]
		if a.fdNextsize(r) != next {
			k.fail(r, "fd_nextsize is 0x%x, want 0x%x", uint32(a.fdNextsize(r)), uint32(next))
		}
		if a.bkNextsize(r) != back {
			k.fail(r, "bk_nextsize is 0x%x, want 0x%x", uint32(a.bkNextsize(r)), uint32(back))
		}
	}
}

// walk follows the boundary tags of every segment, from its start to the
// fenceposts that close it or, for the last one, to top.
func (k *checker) walk() {
	a := k.a
	if len(a.segments) == 0 {
		if !isBin(a.top) {
			k.fail(a.top, "top set but no heap segments recorded")
		}
		return
	}

	for si, start := range a.segments {
		final := si == len(a.segments)-1
		p := chunk(start)
		for n := 0; n < maxListWalk; n++ {
			if p == a.top {
				k.checkTop(final)
				break
			}
			if !k.readable(p) {
				k.fail(p, "heap walk left the heap in segment %d", si)
				break
			}
			size := a.chunksize(p)
			if size == fencepostSize {
				if final {
					k.fail(p, "fencepost before top")
				}
				break
			}
			if size < minSize || !alignedOK(size) {
				k.fail(p, "invalid size %d", size)
				break
			}
			k.seen[p] = true
			k.chunk(p, size)
			p = chunkAt(p, size)
		}
	}
}

func (k *checker) chunk(p chunk, size uint32) {
	a := k.a
	next := chunkAt(p, size)
	where, listed := k.listed[p]
	fast := listed && where < 0

	if f := a.sizeField(p) & (isMmapped | nonMainArena); f != 0 {
		k.fail(p, "unexpected flags %#x", f)
	}
	if a.prevInuse(next) {
		if listed && !fast {
			k.fail(p, "in use but on bin %d", where)
		}
		return
	}

	switch {
	case !listed:
		k.fail(p, "free but on no bin")
	case fast:
		k.fail(p, "on fastbin %d but marked free", -where-1)
	}
	if got := a.prevSize(next); got != size {
		k.fail(p, "footer %d does not match size %d", got, size)
	}
	if !a.prevInuse(p) {
		k.fail(p, "free chunk follows another free chunk")
	}
	if next == a.top {
		k.fail(p, "free chunk borders top")
	}
}

func (k *checker) checkTop(final bool) {
	a := k.a
	top := a.top
	if !final {
		k.fail(top, "top is not in the last segment")
	}
	if _, listed := k.listed[top]; listed {
		k.fail(top, "top is on a free list")
	}
	size := a.chunksize(top)
	if size < minSize {
		k.fail(top, "top size %d below minimum", size)
	}
	if !a.prevInuse(top) {
		k.fail(top, "top's PREV_INUSE is clear")
	}
	if uint64(top)+uint64(size) > uint64(len(a.mem)) {
		k.fail(top, "top ends past the break")
	}
}
