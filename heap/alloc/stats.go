package alloc

import (
	"fmt"
	"io"
)

// counters holds internal operation counts.
type counters struct {
	mallocCalls    uint64
	freeCalls      uint64
	reallocCalls   uint64
	sysmallocCalls uint64
	systrimCalls   uint64
	consolidations uint64
	bytesReleased  uint64
}

// Stats is a snapshot of arena usage in the shape of mallinfo(3), plus
// operation counters.
type Stats struct {
	Arena        int // bytes obtained from the break, including foreign gaps
	OrdBlks      int // free chunks in bins, plus top
	SmBlks       int // free chunks in fastbins
	FsmBlks      int // bytes in fastbin chunks
	UordBlks     int // bytes in use
	FordBlks     int // free bytes, including fastbins and top
	KeepCost     int // top size: the most Trim could release
	MaxSystemMem int // high-water mark of Arena

	MallocCalls    uint64 // Malloc, Calloc, Memalign, Valloc and Pvalloc calls
	FreeCalls      uint64
	ReallocCalls   uint64
	SysmallocCalls uint64 // break growths attempted
	SystrimCalls   uint64 // trims attempted
	Consolidations uint64 // fastbin sweeps
	BytesReleased  uint64 // bytes given back to the break by trims
}

// Stats walks the free lists and returns current usage. It does not
// modify the arena.
func (a *Arena) Stats() Stats {
	a.refresh()
	var s Stats
	for _, p := range a.fastbins {
		for n := 0; p != noChunk && n < maxListWalk; n++ {
			s.SmBlks++
			s.FsmBlks += int(a.chunksize(p))
			p = a.fd(p)
		}
	}

	topSize := int(a.chunksize(a.top))
	free := s.FsmBlks + topSize
	s.OrdBlks = 1
	for i := 1; i < nBins; i++ {
		bin := binAt(i)
		for p, n := a.bk(bin), 0; p != bin && n < maxListWalk; p, n = a.bk(p), n+1 {
			s.OrdBlks++
			free += int(a.chunksize(p))
		}
	}

	s.Arena = int(a.systemMem)
	s.FordBlks = free
	s.UordBlks = int(a.systemMem) - free
	s.KeepCost = topSize
	s.MaxSystemMem = int(a.maxSystemMem)

	s.MallocCalls = a.counters.mallocCalls
	s.FreeCalls = a.counters.freeCalls
	s.ReallocCalls = a.counters.reallocCalls
	s.SysmallocCalls = a.counters.sysmallocCalls
	s.SystrimCalls = a.counters.systrimCalls
	s.Consolidations = a.counters.consolidations
	s.BytesReleased = a.counters.bytesReleased
	return s
}

// PrintStats writes a malloc_stats(3)-style summary to w.
func (a *Arena) PrintStats(w io.Writer) {
	s := a.Stats()
	fmt.Fprintf(w, "system bytes     = %10d\n", s.Arena)
	fmt.Fprintf(w, "in use bytes     = %10d\n", s.UordBlks)
	fmt.Fprintf(w, "max system bytes = %10d\n", s.MaxSystemMem)
	fmt.Fprintf(w, "free chunks      = %10d (%d fast)\n", s.OrdBlks+s.SmBlks, s.SmBlks)
	fmt.Fprintf(w, "free bytes       = %10d (%d fast)\n", s.FordBlks, s.FsmBlks)
	fmt.Fprintf(w, "top (keepcost)   = %10d\n", s.KeepCost)
	fmt.Fprintf(w, "calls            : malloc %d, free %d, realloc %d\n", s.MallocCalls, s.FreeCalls, s.ReallocCalls)
	fmt.Fprintf(w, "system           : grow %d, trim %d (%d bytes released), consolidate %d\n",
		s.SysmallocCalls, s.SystrimCalls, s.BytesReleased, s.Consolidations)
}
