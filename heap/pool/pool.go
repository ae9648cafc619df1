package pool

import (
	"errors"
	"fmt"

	"github.com/joshuapare/heapkit/heap/brk"
	"github.com/joshuapare/heapkit/internal/buf"
	"github.com/joshuapare/heapkit/internal/format"
)

// Ptr is the address of a block: a byte offset into the break's memory.
type Ptr uint32

// Nil is the null block address.
const Nil Ptr = 0

const (
	// DefaultPageSize is the nominal page size used when New gets 0.
	DefaultPageSize = 65536

	// linkSize is the width of the page and free-list links.
	linkSize = format.WordSize
)

var (
	// ErrInvalidBlockSize is returned by New for a non-positive block size.
	ErrInvalidBlockSize = errors.New("pool: invalid block size")

	// ErrInvalidPageSize is returned by New for a negative page size.
	ErrInvalidPageSize = errors.New("pool: invalid page size")

	// ErrNoMemory is returned when the break cannot supply another page.
	ErrNoMemory = errors.New("pool: out of memory")

	// ErrInvalidPointer is returned by Free for an address that is not a
	// block of this pool.
	ErrInvalidPointer = errors.New("pool: invalid pointer")

	// ErrDoubleFree is returned by Free when the block is already at the
	// head of the free list.
	ErrDoubleFree = errors.New("pool: double free")
)

// Pool allocates fixed-size blocks.
type Pool struct {
	brk brk.Break

	blockSize uint32
	pageSize  uint32 // link word plus a whole number of blocks

	first, cur uint32 // page addresses; 0 until the first page
	offset     uint32 // bump offset into cur
	freeList   uint32

	pages []uint32 // every page obtained, in link order

	allocs, frees, clears uint64
}

// New creates a pool of blockSize-byte blocks. blockSize is rounded up to
// the word size; pageSize (0 selects DefaultPageSize) is rounded down to a
// link word plus a whole number of blocks, and raised to hold at least one.
func New(b brk.Break, blockSize, pageSize int) (*Pool, error) {
	if b == nil {
		return nil, errors.New("pool: nil break")
	}
	if blockSize <= 0 || blockSize > brk.MaxLimit/2 {
		return nil, fmt.Errorf("%w: %d", ErrInvalidBlockSize, blockSize)
	}
	if pageSize < 0 || pageSize > brk.MaxLimit {
		return nil, fmt.Errorf("%w: %d", ErrInvalidPageSize, pageSize)
	}
	if pageSize == 0 {
		pageSize = DefaultPageSize
	}

	bs := format.AlignUp(uint32(blockSize), linkSize)
	ps := uint32(linkSize)
	if uint32(pageSize) > linkSize {
		ps += (uint32(pageSize) - linkSize) / bs * bs
	}
	if ps < linkSize+bs {
		ps = linkSize + bs
	}
	return &Pool{brk: b, blockSize: bs, pageSize: ps}, nil
}

// BlockSize returns the rounded block size.
func (p *Pool) BlockSize() int { return int(p.blockSize) }

// PageSize returns the effective page size, link word included.
func (p *Pool) PageSize() int { return int(p.pageSize) }

// Alloc returns a block, reusing the most recently freed one first. The
// block's contents are whatever was left there.
func (p *Pool) Alloc() (Ptr, error) {
	mem := p.brk.Bytes()

	switch {
	case p.freeList != 0:
		block := p.freeList
		p.freeList = format.ReadU32(mem, int(block))
		p.allocs++
		return Ptr(block), nil

	case p.cur != 0 && p.offset+p.blockSize <= p.pageSize:
		block := p.cur + p.offset
		p.offset += p.blockSize
		p.allocs++
		return Ptr(block), nil

	case p.cur != 0 && format.ReadU32(mem, int(p.cur)) != 0:
		// A page linked before the last Clear.
		p.cur = format.ReadU32(mem, int(p.cur))
		p.offset = linkSize + p.blockSize
		p.allocs++
		return Ptr(p.cur + linkSize), nil
	}

	page, err := p.brk.Sbrk(int(p.pageSize))
	if err != nil {
		return Nil, fmt.Errorf("%w: page of %d bytes: %w", ErrNoMemory, p.pageSize, err)
	}
	mem = p.brk.Bytes()
	format.PutU32(mem, int(page), 0)
	if p.cur != 0 {
		format.PutU32(mem, int(p.cur), page)
	} else {
		p.first = page
	}
	p.pages = append(p.pages, page)
	p.cur = page
	p.offset = linkSize + p.blockSize
	p.allocs++
	return Ptr(page + linkSize), nil
}

// Free returns a block to the pool. Only the head of the free list is
// checked for a double free.
func (p *Pool) Free(ptr Ptr) error {
	if !p.owns(uint32(ptr)) {
		return fmt.Errorf("%w: 0x%x", ErrInvalidPointer, uint32(ptr))
	}
	if uint32(ptr) == p.freeList {
		return fmt.Errorf("%w: 0x%x", ErrDoubleFree, uint32(ptr))
	}
	format.PutU32(p.brk.Bytes(), int(ptr), p.freeList)
	p.freeList = uint32(ptr)
	p.frees++
	return nil
}

// Clear forgets every allocation and rewinds to the first page. No memory
// is returned to the break; the pages are reused in order by later Allocs.
func (p *Pool) Clear() {
	p.cur = p.first
	p.offset = linkSize
	p.freeList = 0
	p.clears++
}

// Bytes returns the block at ptr, or nil when ptr is not a block of this
// pool. The slice is only valid until the break next grows.
func (p *Pool) Bytes(ptr Ptr) []byte {
	if !p.owns(uint32(ptr)) {
		return nil
	}
	b, ok := buf.Slice(p.brk.Bytes(), int(ptr), int(p.blockSize))
	if !ok {
		return nil
	}
	return b[:len(b):len(b)]
}

// owns reports whether addr is the start of a block slot in one of the
// pool's pages.
func (p *Pool) owns(addr uint32) bool {
	for _, page := range p.pages {
		if addr < page+linkSize || addr >= page+p.pageSize {
			continue
		}
		return (addr-page-linkSize)%p.blockSize == 0
	}
	return false
}

// Stats is a snapshot of pool usage.
type Stats struct {
	BlockSize     int
	PageSize      int
	BlocksPerPage int
	Pages         int    // pages obtained from the break
	SystemBytes   int    // Pages * PageSize
	FreeBlocks    int    // blocks on the free list
	Allocs        uint64 // successful Alloc calls
	Frees         uint64 // successful Free calls
	Clears        uint64
}

// Stats returns current usage. It walks the free list.
func (p *Pool) Stats() Stats {
	s := Stats{
		BlockSize:     int(p.blockSize),
		PageSize:      int(p.pageSize),
		BlocksPerPage: int((p.pageSize - linkSize) / p.blockSize),
		Pages:         len(p.pages),
		SystemBytes:   len(p.pages) * int(p.pageSize),
		Allocs:        p.allocs,
		Frees:         p.frees,
		Clears:        p.clears,
	}
	mem := p.brk.Bytes()
	for b := p.freeList; b != 0 && s.FreeBlocks <= s.Pages*s.BlocksPerPage; b = format.ReadU32(mem, int(b)) {
		s.FreeBlocks++
	}
	return s
}
