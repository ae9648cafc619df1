//go:build !unix

package brk

// Mmap is unavailable on this platform; NewMmap always fails.
type Mmap struct {
	// OnSbrk is accepted for API parity and never called.
	OnSbrk func(delta int)
}

// NewMmap returns ErrUnsupported on non-unix platforms.
func NewMmap(limit int) (*Mmap, error) {
	return nil, ErrUnsupported
}

// Sbrk implements Break.
func (m *Mmap) Sbrk(delta int) (uint32, error) { return 0, ErrUnsupported }

// Bytes implements Break.
func (m *Mmap) Bytes() []byte { return nil }

// Origin returns DefaultOrigin.
func (m *Mmap) Origin() uint32 { return DefaultOrigin }

// Close is a no-op.
func (m *Mmap) Close() error { return nil }

// Compile-time interface check
var _ Break = (*Mmap)(nil)
