package alloc

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/joshuapare/heapkit/heap/brk"
)

// ============================================================================
// Arena Creation Utilities
// ============================================================================

// testBreakLimit bounds every test break so runaway growth fails fast.
const testBreakLimit = 64 << 20

// newTestArena creates an arena over a fresh slice break. Unless opts sets
// its own hook, corruption fails the test instead of panicking.
func newTestArena(t testing.TB, opts *Options) (*Arena, *brk.Slice) {
	t.Helper()

	if opts == nil {
		opts = &Options{}
	}
	if opts.OnCorruption == nil {
		opts.OnCorruption = func(ce *CorruptionError) {
			t.Errorf("unexpected heap corruption: %v", ce)
		}
	}

	b := brk.NewSlice(testBreakLimit)
	a, err := New(b, opts)
	require.NoError(t, err, "failed to create arena")
	return a, b
}

// corruptionRecorder returns options whose hook records every report
// instead of panicking.
func corruptionRecorder() (*Options, *[]*CorruptionError) {
	var got []*CorruptionError
	return &Options{
		OnCorruption: func(ce *CorruptionError) { got = append(got, ce) },
	}, &got
}

// ============================================================================
// Allocation Helpers
// ============================================================================

func mustMalloc(t testing.TB, a *Arena, n int) Ptr {
	t.Helper()
	p, err := a.Malloc(n)
	require.NoError(t, err, "Malloc(%d)", n)
	require.NotEqual(t, Nil, p, "Malloc(%d) returned Nil", n)
	return p
}

func mustFree(t testing.TB, a *Arena, p Ptr) {
	t.Helper()
	require.NoError(t, a.Free(p), "Free(0x%x)", uint32(p))
}

func requireHeapOK(t testing.TB, a *Arena) {
	t.Helper()
	require.NoError(t, a.Check())
}

// chunkSizeOf returns the size of the chunk owning p.
func chunkSizeOf(a *Arena, p Ptr) uint32 {
	return a.chunksize(mem2chunk(p))
}

// ============================================================================
// Data Patterns
// ============================================================================

func patternByte(id, i int) byte { return byte(id*31 + i*7 + 1) }

// fillPattern writes an id-derived pattern into the first n bytes at p.
func fillPattern(a *Arena, p Ptr, n, id int) {
	b := a.Bytes(p)
	for i := range n {
		b[i] = patternByte(id, i)
	}
}

// requirePattern verifies the first n bytes at p hold id's pattern.
func requirePattern(t testing.TB, a *Arena, p Ptr, n, id int) {
	t.Helper()
	b := a.Bytes(p)
	require.GreaterOrEqual(t, len(b), n, "usable size of 0x%x", uint32(p))
	for i := range n {
		if b[i] != patternByte(id, i) {
			require.Failf(t, "pattern mismatch", "ptr 0x%x id %d byte %d: got 0x%02x want 0x%02x",
				uint32(p), id, i, b[i], patternByte(id, i))
		}
	}
}

// ============================================================================
// Layout Assertions
// ============================================================================

type span struct{ lo, hi uint32 }

// requireDisjoint verifies that the usable ranges of all pointers are
// pairwise disjoint and 8-byte aligned.
func requireDisjoint(t testing.TB, a *Arena, ptrs []Ptr) {
	t.Helper()
	spans := make([]span, 0, len(ptrs))
	for _, p := range ptrs {
		require.Zero(t, uint32(p)%MallocAlignment, "ptr 0x%x misaligned", uint32(p))
		spans = append(spans, span{uint32(p), uint32(p) + uint32(a.UsableSize(p))})
	}
	sort.Slice(spans, func(i, j int) bool { return spans[i].lo < spans[j].lo })
	for i := 1; i < len(spans); i++ {
		require.LessOrEqual(t, spans[i-1].hi, spans[i].lo,
			"ranges [0x%x,0x%x) and [0x%x,0x%x) overlap",
			spans[i-1].lo, spans[i-1].hi, spans[i].lo, spans[i].hi)
	}
}

// binSizes returns the chunk sizes of bin idx from head to tail.
func binSizes(a *Arena, idx int) []uint32 {
	var sizes []uint32
	bin := binAt(idx)
	for p := a.fd(bin); p != bin; p = a.fd(p) {
		sizes = append(sizes, a.chunksize(p))
	}
	return sizes
}

// binChunks returns the chunks of bin idx from head to tail.
func binChunks(a *Arena, idx int) []chunk {
	var out []chunk
	bin := binAt(idx)
	for p := a.fd(bin); p != bin; p = a.fd(p) {
		out = append(out, p)
	}
	return out
}

// skipListErrors runs the checker's skip-list validation on one bin.
func skipListErrors(a *Arena, idx int) []error {
	k := &checker{a: a, listed: map[chunk]int{}, seen: map[chunk]bool{}}
	k.skipList(idx)
	return k.errs
}

// fastbinChunks returns the chunks of fastbin idx from head to tail.
func fastbinChunks(a *Arena, idx int) []chunk {
	var out []chunk
	for p := a.fastbins[idx]; p != noChunk; p = a.fd(p) {
		out = append(out, p)
	}
	return out
}
