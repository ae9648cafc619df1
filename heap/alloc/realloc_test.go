package alloc

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func Test_Realloc_ShrinkInPlace(t *testing.T) {
	a, _ := newTestArena(t, nil)

	p := mustMalloc(t, a, 1000)
	mustMalloc(t, a, 24)
	fillPattern(a, p, 100, 1)

	np, err := a.Realloc(p, 100)
	require.NoError(t, err)
	assert.Equal(t, p, np)
	assert.Equal(t, uint32(104), chunkSizeOf(a, np))
	requirePattern(t, a, np, 100, 1)

	// The 904-byte tail went back to the free lists.
	s := a.Stats()
	assert.Equal(t, 2, s.OrdBlks)
	requireHeapOK(t, a)
}

func Test_Realloc_ShrinkByLessThanChunk(t *testing.T) {
	a, _ := newTestArena(t, nil)

	p := mustMalloc(t, a, 100)
	mustMalloc(t, a, 24)

	np, err := a.Realloc(p, 92)
	require.NoError(t, err)
	assert.Equal(t, p, np)
	assert.Equal(t, uint32(104), chunkSizeOf(a, np), "8 spare bytes cannot form a chunk")
	requireHeapOK(t, a)
}

func Test_Realloc_GrowIntoTop(t *testing.T) {
	a, _ := newTestArena(t, nil)

	p := mustMalloc(t, a, 100)
	fillPattern(a, p, 100, 2)

	np, err := a.Realloc(p, 1000)
	require.NoError(t, err)
	assert.Equal(t, p, np)
	assert.Equal(t, uint32(1008), chunkSizeOf(a, np))
	assert.Equal(t, chunkAt(mem2chunk(p), 1008), a.top)
	requirePattern(t, a, np, 100, 2)
	requireHeapOK(t, a)
}

func Test_Realloc_AbsorbFreeNext(t *testing.T) {
	a, _ := newTestArena(t, nil)

	pa := mustMalloc(t, a, 100)
	pb := mustMalloc(t, a, 200)
	mustMalloc(t, a, 24)
	fillPattern(a, pa, 100, 3)
	mustFree(t, a, pb)

	np, err := a.Realloc(pa, 250)
	require.NoError(t, err)
	assert.Equal(t, pa, np)
	assert.Equal(t, uint32(256), chunkSizeOf(a, np))
	requirePattern(t, a, np, 100, 3)

	// 104+208-256 = 56 bytes remain, small enough for a fastbin.
	assert.Equal(t, 1, a.Stats().SmBlks)
	requireHeapOK(t, a)
}

func Test_Realloc_MovesAndCopies(t *testing.T) {
	a, _ := newTestArena(t, nil)

	p := mustMalloc(t, a, 100)
	guard := mustMalloc(t, a, 24)
	fillPattern(a, p, 100, 4)

	np, err := a.Realloc(p, 500)
	require.NoError(t, err)
	assert.NotEqual(t, p, np)
	assert.GreaterOrEqual(t, a.UsableSize(np), 500)
	requirePattern(t, a, np, 100, 4)
	assert.Zero(t, a.UsableSize(p), "old chunk is free")
	requireDisjoint(t, a, []Ptr{np, guard})
	requireHeapOK(t, a)
}

func Test_Realloc_ZeroFrees(t *testing.T) {
	a, _ := newTestArena(t, nil)

	p := mustMalloc(t, a, 100)
	np, err := a.Realloc(p, 0)
	require.NoError(t, err)
	assert.Equal(t, Nil, np)

	s := a.Stats()
	assert.Equal(t, s.Arena, s.KeepCost)
	requireHeapOK(t, a)
}

func Test_Realloc_NilIsMalloc(t *testing.T) {
	a, _ := newTestArena(t, nil)

	p, err := a.Realloc(Nil, 100)
	require.NoError(t, err)
	assert.Equal(t, Ptr(0x1008), p)
	assert.Equal(t, 100, a.UsableSize(p))
	assert.Equal(t, uint64(1), a.Stats().ReallocCalls)
}

func Test_Realloc_InvalidSize(t *testing.T) {
	a, _ := newTestArena(t, nil)

	p := mustMalloc(t, a, 100)
	_, err := a.Realloc(p, MaxRequest+1)
	require.ErrorIs(t, err, ErrInvalidSize)
	assert.Equal(t, 100, a.UsableSize(p), "p is untouched")
}

func Test_Realloc_FreedChunk(t *testing.T) {
	opts, got := corruptionRecorder()
	a, _ := newTestArena(t, opts)

	p := mustMalloc(t, a, 200)
	mustMalloc(t, a, 24)
	mustFree(t, a, p)

	np, err := a.Realloc(p, 300)
	require.ErrorIs(t, err, ErrCorrupted)
	assert.Equal(t, Nil, np)
	require.Len(t, *got, 1)
	assert.Equal(t, CorruptDoubleFree, (*got)[0].Kind)
	assert.Equal(t, "realloc", (*got)[0].Op)
}

func Test_Realloc_InvalidPointer(t *testing.T) {
	opts, got := corruptionRecorder()
	a, _ := newTestArena(t, opts)

	p := mustMalloc(t, a, 24)
	_, err := a.Realloc(p+4, 300)
	require.ErrorIs(t, err, ErrCorrupted)
	require.Len(t, *got, 1)
	assert.Equal(t, "realloc(): invalid pointer", (*got)[0].Msg)
}
