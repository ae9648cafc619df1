package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshuapare/heapkit/heap/alloc"
	"github.com/joshuapare/heapkit/heap/brk"
)

func Test_ParseSize(t *testing.T) {
	cases := []struct {
		in   string
		want int
	}{
		{"0", 0},
		{"4096", 4096},
		{"-1", -1},
		{" 64 ", 64},
		{"4KB", 4096},
		{"128KB", 128 << 10},
		{"1.5MB", 3 << 19},
		{"256MB", 256 << 20},
	}
	for _, tc := range cases {
		t.Run(tc.in, func(t *testing.T) {
			got, err := ParseSize(tc.in)
			require.NoError(t, err)
			assert.Equal(t, tc.want, got)
		})
	}

	for _, bad := range []string{"", "lots", "4XB", "8GB"} {
		_, err := ParseSize(bad)
		require.ErrorIs(t, err, ErrInvalidSize, "%q", bad)
	}
}

func Test_Parse_Full(t *testing.T) {
	cfg, err := Parse([]byte(`
arena:
  trim_threshold: 256KB
  top_pad: 8192
  max_fast: 80
  perturb_byte: 165
  page_size: 1KB
break:
  kind: mmap
  limit: 64MB
pool:
  block_size: 24
  page_size: 16KB
`))
	require.NoError(t, err)

	assert.Equal(t, Size(256<<10), cfg.Arena.TrimThreshold)
	assert.Equal(t, Size(8192), cfg.Arena.TopPad)
	assert.Equal(t, Size(80), cfg.Arena.MaxFast)
	assert.Equal(t, 165, cfg.Arena.PerturbByte)
	assert.Equal(t, Size(1024), cfg.Arena.PageSize)
	assert.Equal(t, BreakMmap, cfg.Break.Kind)
	assert.Equal(t, Size(64<<20), cfg.Break.Limit)
	assert.Equal(t, Size(24), cfg.Pool.BlockSize)
	assert.Equal(t, Size(16<<10), cfg.Pool.PageSize)

	opts := cfg.ArenaOptions(nil)
	assert.Equal(t, 256<<10, opts.TrimThreshold)
	assert.Equal(t, byte(0xa5), opts.PerturbByte)
	assert.Equal(t, 1024, opts.PageSize)
}

func Test_Parse_KeepsDefaults(t *testing.T) {
	cfg, err := Parse([]byte("pool:\n  block_size: 16\n"))
	require.NoError(t, err)

	def := Default()
	assert.Equal(t, def.Arena, cfg.Arena)
	assert.Equal(t, def.Break, cfg.Break)
	assert.Equal(t, Size(16), cfg.Pool.BlockSize)
	assert.Equal(t, def.Pool.PageSize, cfg.Pool.PageSize)
}

func Test_Parse_Errors(t *testing.T) {
	cases := []struct {
		name string
		yaml string
	}{
		{"unknown key", "arena:\n  trim: 1\n"},
		{"bad size", "arena:\n  top_pad: huge\n"},
		{"max fast", "arena:\n  max_fast: 200\n"},
		{"page size", "arena:\n  page_size: 1000\n"},
		{"perturb", "arena:\n  perturb_byte: 300\n"},
		{"break kind", "break:\n  kind: heap\n"},
		{"block size", "pool:\n  block_size: 0\n"},
		{"not yaml", "arena: [\n"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			_, err := Parse([]byte(tc.yaml))
			require.Error(t, err)
		})
	}

	_, err := Parse([]byte("arena:\n  max_fast: 200\nbreak:\n  kind: heap\n"))
	require.ErrorIs(t, err, ErrInvalid)
	assert.Contains(t, err.Error(), "arena.max_fast")
	assert.Contains(t, err.Error(), "break.kind")
}

func Test_Load(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "heap.yaml")
	require.NoError(t, os.WriteFile(path, []byte("arena:\n  max_fast: -1\n"), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, Size(alloc.DisableFastbins), cfg.Arena.MaxFast)

	_, err = Load(filepath.Join(dir, "missing.yaml"))
	require.ErrorIs(t, err, os.ErrNotExist)
}

func Test_Marshal_RoundTrip(t *testing.T) {
	cfg := Default()
	cfg.Arena.TopPad = 100
	cfg.Arena.TrimThreshold = -1

	data, err := cfg.Marshal()
	require.NoError(t, err)
	back, err := Parse(data)
	require.NoError(t, err)
	assert.Equal(t, cfg, back)
}

func Test_NewBreak_Slice(t *testing.T) {
	cfg := Default()
	cfg.Break.Limit = 1 << 20

	b, err := cfg.NewBreak()
	require.NoError(t, err)
	s, ok := b.(*brk.Slice)
	require.True(t, ok)
	assert.Equal(t, uint32(1<<20), s.Limit())

	a, err := alloc.New(b, cfg.ArenaOptions(nil))
	require.NoError(t, err)
	_, err = a.Malloc(100)
	require.NoError(t, err)
}
