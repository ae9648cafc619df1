package alloc

import (
	"fmt"

	"github.com/joshuapare/heapkit/internal/format"
)

// fencepostSize is the size of the header-only chunks that close off a
// region abandoned when the break turns out to be discontiguous.
const fencepostSize = 2 * sizeSz

// sysmalloc grows the break so that top can serve a chunk of nb bytes, and
// carves it. Called only when top is too small and the fastbins are empty.
func (a *Arena) sysmalloc(nb uint32) (Ptr, error) {
	a.counters.sysmallocCalls++

	oldTop := a.top
	oldSize := a.chunksize(oldTop)
	oldEnd := uint32(chunkAt(oldTop, oldSize))
	initial := isBin(oldTop)

	if !initial && (oldSize < minSize || !a.prevInuse(oldTop)) {
		a.corrupt(CorruptMemory, "sysmalloc(): corrupted top", oldTop)
	}

	// Ask for enough to serve nb, plus the pad, plus a minimal top left
	// behind. If the break is still ours, the old top is merged in.
	want := uint64(nb) + uint64(a.topPad) + minSize - uint64(oldSize)
	want = (want + uint64(a.pageSize) - 1) &^ uint64(a.pageSize-1)
	if want > uint64(MaxRequest) {
		return Nil, fmt.Errorf("%w: sysmalloc of %d bytes", ErrNoMemory, want)
	}
	size := uint32(want)

	brk, err := a.brk.Sbrk(int(size))
	if err != nil {
		a.log.Debug("sysmalloc failed", "request", nb, "grow", size, "err", err)
		return Nil, fmt.Errorf("%w: %w", ErrNoMemory, err)
	}
	a.refresh()

	if a.sbrkBase == 0 {
		a.sbrkBase = brk
	}
	a.systemMem += size

	switch {
	case !initial && brk == oldEnd:
		// The break is where we left it: top simply grows.
		a.setHead(oldTop, (oldSize+size)|prevInuse)

	case !initial && brk < oldEnd:
		a.corrupt(CorruptBreakAdjusted, "break adjusted to free malloc space", chunk(brk))

	default:
		a.adoptRegion(brk, size, oldTop, oldSize, oldEnd, initial)
	}

	a.maxSystemMem = max(a.maxSystemMem, a.systemMem)
	a.log.Debug("sysmalloc", "request", nb, "grow", size, "brk", brk, "top", a.chunksize(a.top), "system", a.systemMem)

	p := a.top
	topSize := a.chunksize(p)
	if topSize < nb+minSize {
		return Nil, fmt.Errorf("%w: top of %d bytes after growth cannot serve %d", ErrNoMemory, topSize, nb)
	}
	remainder := chunkAt(p, nb)
	a.top = remainder
	a.setHead(p, nb|prevInuse)
	a.setHead(remainder, (topSize-nb)|prevInuse)
	return chunk2mem(p), nil
}

// adoptRegion makes the memory at brk the new top. This happens on the
// first growth, and whenever somebody else moved the break since our last
// growth, in which case the old top is fenced off and freed.
func (a *Arena) adoptRegion(brk, size uint32, oldTop chunk, oldSize, oldEnd uint32, initial bool) {
	var correction uint32
	aligned := brk
	if mis := uint32(chunk2mem(chunk(brk))) & mallocAlignMask; mis > 0 {
		correction = MallocAlignment - mis
		aligned += correction
	}

	if !initial {
		// Foreign sbrk space counts as ours, the same as the kernel sees it.
		a.systemMem += brk - oldEnd
	}

	// The old top cannot merge with the new space, so ask for its size
	// again, and round the end up to a page boundary.
	correction += oldSize
	end := brk + size + correction
	correction += format.AlignUp(end, a.pageSize) - end

	sndBrk, err := a.brk.Sbrk(int(correction))
	if err != nil {
		a.log.Debug("sysmalloc correction failed", "correction", correction, "err", err)
		correction = 0
		sndBrk, err = a.brk.Sbrk(0)
		if err != nil {
			sndBrk = brk + size
		}
	}
	a.refresh()
	a.systemMem += correction

	a.top = chunk(aligned)
	a.setHead(a.top, (sndBrk-aligned+correction)|prevInuse)
	a.segments = append(a.segments, aligned)

	if initial {
		return
	}

	a.log.Debug("sysmalloc foreign break", "old_end", oldEnd, "brk", brk, "old_top", oldSize)

	// Shrink the old top to leave room for two fenceposts. They look like
	// in-use chunks, so nothing ever coalesces across the gap.
	oldSize = (oldSize - 4*sizeSz) &^ mallocAlignMask
	a.setHead(oldTop, oldSize|prevInuse)
	a.setHead(chunkAt(oldTop, oldSize), fencepostSize|prevInuse)
	a.setHead(chunkAt(oldTop, oldSize+fencepostSize), fencepostSize|prevInuse)
	if oldSize >= minSize {
		a.intFree(oldTop, false)
	}
}

// systrim gives whole pages at the end of top back to the break, keeping
// pad bytes plus a minimal top. Nothing happens if someone else has moved
// the break past top since it was last grown.
func (a *Arena) systrim(pad uint32) bool {
	a.counters.systrimCalls++

	top := a.top
	if isBin(top) {
		return false
	}
	topSize := a.chunksize(top)
	if uint64(topSize) <= uint64(pad)+minSize+1 {
		return false
	}
	extra := format.AlignDown(topSize-pad-minSize-1, a.pageSize)
	if extra == 0 {
		return false
	}

	cur, err := a.brk.Sbrk(0)
	if err != nil || cur != uint32(chunkAt(top, topSize)) {
		return false
	}
	if _, err := a.brk.Sbrk(-int(extra)); err != nil {
		a.log.Debug("systrim failed", "extra", extra, "err", err)
		return false
	}
	newBrk, err := a.brk.Sbrk(0)
	a.refresh()
	if err != nil {
		return false
	}

	released := cur - newBrk
	if released == 0 {
		return false
	}
	a.systemMem -= released
	a.counters.bytesReleased += uint64(released)
	a.setHead(top, (topSize-released)|prevInuse)
	a.log.Debug("systrim", "released", released, "top", topSize-released, "system", a.systemMem)
	return true
}
