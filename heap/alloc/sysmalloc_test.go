package alloc

import (
	"bytes"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// Test_Sysmalloc_ForeignBreak tests growth after someone else moved the
// break: the old top is fenced off and freed, and the new region starts
// at the next aligned address.
func Test_Sysmalloc_ForeignBreak(t *testing.T) {
	a, b := newTestArena(t, nil)

	mustMalloc(t, a, 100)
	_, err := b.Sbrk(100)
	require.NoError(t, err)

	p := mustMalloc(t, a, 8000)
	assert.Equal(t, Ptr(8304), p)
	assert.Equal(t, []uint32{4096, 8296}, a.segments)

	oldTop := chunk(4200)
	assert.Equal(t, uint32(3976), a.chunksize(oldTop))
	assert.False(t, a.inuse(oldTop))
	assert.Equal(t, uint32(fencepostSize), a.chunksize(8176))
	assert.Equal(t, uint32(fencepostSize), a.chunksize(8184))

	s := a.Stats()
	assert.Equal(t, 12288, s.Arena, "foreign bytes count as system memory")
	assert.Equal(t, 2, s.OrdBlks)
	requireHeapOK(t, a)

	// The fenced-off chunk is still usable.
	q := mustMalloc(t, a, 3900)
	assert.Equal(t, Ptr(4208), q)
	requireHeapOK(t, a)
}

func Test_Sysmalloc_BreakAdjusted(t *testing.T) {
	opts, got := corruptionRecorder()
	a, b := newTestArena(t, opts)

	mustMalloc(t, a, 100)
	_, err := b.Sbrk(-2048)
	require.NoError(t, err)

	_, err = a.Malloc(8000)
	require.ErrorIs(t, err, ErrCorrupted)
	require.Len(t, *got, 1)
	assert.Equal(t, CorruptBreakAdjusted, (*got)[0].Kind)
	assert.Equal(t, uint32(6144), (*got)[0].Chunk)
}

func Test_Sysmalloc_TopPad(t *testing.T) {
	a, _ := newTestArena(t, &Options{TopPad: 8192})

	mustMalloc(t, a, 100)
	assert.Equal(t, 12288, a.Stats().Arena)
}

func Test_Sysmalloc_PageSize(t *testing.T) {
	a, b := newTestArena(t, &Options{PageSize: 256})

	mustMalloc(t, a, 100)
	assert.Equal(t, 256, a.Stats().Arena)
	end, err := b.Sbrk(0)
	require.NoError(t, err)
	assert.Equal(t, b.Origin()+256, end)
}

func Test_Systrim_OnFree(t *testing.T) {
	a, b := newTestArena(t, nil)

	p := mustMalloc(t, a, 200000)
	require.Equal(t, 200704, a.Stats().Arena)

	mustFree(t, a, p)
	s := a.Stats()
	assert.Equal(t, 4096, s.Arena)
	assert.Equal(t, 200704, s.MaxSystemMem)
	assert.Equal(t, uint64(196608), s.BytesReleased)
	assert.Equal(t, uint64(1), s.SystrimCalls)

	end, err := b.Sbrk(0)
	require.NoError(t, err)
	assert.Equal(t, uint32(8192), end)
	requireHeapOK(t, a)
}

func Test_Systrim_Disabled(t *testing.T) {
	a, _ := newTestArena(t, &Options{TrimThreshold: -1})

	p := mustMalloc(t, a, 200000)
	mustFree(t, a, p)
	assert.Equal(t, 200704, a.Stats().Arena)
	assert.Zero(t, a.Stats().SystrimCalls)

	released, err := a.Trim(0)
	require.NoError(t, err)
	assert.True(t, released)
	assert.Equal(t, 4096, a.Stats().Arena)

	released, err = a.Trim(0)
	require.NoError(t, err)
	assert.False(t, released, "less than a page of top is left")
	requireHeapOK(t, a)
}

func Test_Systrim_KeepsPad(t *testing.T) {
	a, _ := newTestArena(t, &Options{TrimThreshold: -1})

	p := mustMalloc(t, a, 200000)
	mustFree(t, a, p)

	released, err := a.Trim(65536)
	require.NoError(t, err)
	assert.True(t, released)
	assert.GreaterOrEqual(t, a.Stats().KeepCost, 65536+minSize)
	assert.Less(t, a.Stats().KeepCost, 65536+minSize+DefaultPageSize+1)
}

func Test_Systrim_ForeignBreakBlocksTrim(t *testing.T) {
	a, b := newTestArena(t, &Options{TrimThreshold: -1})

	p := mustMalloc(t, a, 200000)
	mustFree(t, a, p)
	_, err := b.Sbrk(4096)
	require.NoError(t, err)

	released, err := a.Trim(0)
	require.NoError(t, err)
	assert.False(t, released)
	assert.Equal(t, 200704, a.Stats().Arena)
	requireHeapOK(t, a)
}

func Test_Systrim_InvalidPad(t *testing.T) {
	a, _ := newTestArena(t, nil)

	_, err := a.Trim(-1)
	require.ErrorIs(t, err, ErrInvalidSize)
}

func Test_Sysmalloc_LogsGrowth(t *testing.T) {
	var out bytes.Buffer
	logger := slog.New(slog.NewTextHandler(&out, &slog.HandlerOptions{Level: slog.LevelDebug}))
	a, _ := newTestArena(t, &Options{Logger: logger})

	p := mustMalloc(t, a, 200000)
	mustFree(t, a, p)

	assert.Contains(t, out.String(), "msg=sysmalloc")
	assert.Contains(t, out.String(), "msg=systrim")
	assert.Contains(t, out.String(), "released=196608")
}
