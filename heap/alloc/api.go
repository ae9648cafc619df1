package alloc

import (
	"fmt"

	"github.com/joshuapare/heapkit/internal/buf"
	"github.com/joshuapare/heapkit/internal/format"
)

// Malloc returns memory for at least n bytes. Malloc(0) returns a
// minimum-size chunk.
func (a *Arena) Malloc(n int) (p Ptr, err error) {
	if e := a.enter(); e != nil {
		return Nil, e
	}
	defer func() {
		if a.recoverCorruption(recover(), "malloc", &err) {
			p = Nil
		}
	}()

	a.counters.mallocCalls++
	return a.intMalloc(n)
}

// Free releases p. Freeing Nil is a no-op.
func (a *Arena) Free(p Ptr) (err error) {
	if p == Nil {
		return nil
	}
	if e := a.enter(); e != nil {
		return e
	}
	defer func() { a.recoverCorruption(recover(), "free", &err) }()

	a.counters.freeCalls++
	a.intFree(mem2chunk(p), true)
	return nil
}

// Realloc resizes p to n bytes. Realloc(Nil, n) is Malloc(n), and
// Realloc(p, 0) frees p and returns Nil.
func (a *Arena) Realloc(p Ptr, n int) (np Ptr, err error) {
	if e := a.enter(); e != nil {
		return Nil, e
	}
	defer func() {
		if a.recoverCorruption(recover(), "realloc", &err) {
			np = Nil
		}
	}()

	a.counters.reallocCalls++
	if n == 0 && p != Nil {
		a.intFree(mem2chunk(p), true)
		return Nil, nil
	}
	if p == Nil {
		return a.intMalloc(n)
	}

	oldp := mem2chunk(p)
	if !a.validChunk(oldp) {
		a.corrupt(CorruptInvalidPointer, "realloc(): invalid pointer", oldp)
	}
	nb, ok := request2size(n)
	if !ok {
		return Nil, fmt.Errorf("%w: realloc to %d bytes", ErrInvalidSize, n)
	}
	return a.intRealloc(oldp, a.chunksize(oldp), nb)
}

// Calloc returns count*size zeroed bytes, failing when the product overflows.
func (a *Arena) Calloc(count, size int) (p Ptr, err error) {
	total, ok := buf.MulOverflowSafe(count, size)
	if !ok {
		return Nil, fmt.Errorf("%w: calloc %d x %d", ErrInvalidSize, count, size)
	}
	if e := a.enter(); e != nil {
		return Nil, e
	}
	defer func() {
		if a.recoverCorruption(recover(), "calloc", &err) {
			p = Nil
		}
	}()

	a.counters.mallocCalls++
	p, err = a.intMalloc(total)
	if err != nil {
		return Nil, err
	}
	// Recycled chunks hold old data and perturb fill; clear the whole
	// usable size, not just total.
	c := mem2chunk(p)
	clear(a.mem[p : uint32(c)+a.chunksize(c)+Overhead])
	return p, nil
}

// Memalign returns n bytes aligned to alignment. Alignments up to
// MallocAlignment are plain Malloc; others are rounded up to a power of two.
func (a *Arena) Memalign(alignment, n int) (p Ptr, err error) {
	if e := a.enter(); e != nil {
		return Nil, e
	}
	defer func() {
		if a.recoverCorruption(recover(), "memalign", &err) {
			p = Nil
		}
	}()

	a.counters.mallocCalls++
	return a.memalign(alignment, n)
}

// Valloc returns n bytes aligned to the page size.
func (a *Arena) Valloc(n int) (p Ptr, err error) {
	if e := a.enter(); e != nil {
		return Nil, e
	}
	defer func() {
		if a.recoverCorruption(recover(), "valloc", &err) {
			p = Nil
		}
	}()

	a.counters.mallocCalls++
	return a.memalign(int(a.pageSize), n)
}

// Pvalloc returns n bytes rounded up to whole pages, page aligned.
func (a *Arena) Pvalloc(n int) (p Ptr, err error) {
	if n < 0 {
		return Nil, fmt.Errorf("%w: pvalloc %d bytes", ErrInvalidSize, n)
	}
	padded, ok := buf.AddOverflowSafe(n, int(a.pageSize)-1)
	if !ok || padded > MaxRequest {
		return Nil, fmt.Errorf("%w: pvalloc %d bytes", ErrInvalidSize, n)
	}
	if e := a.enter(); e != nil {
		return Nil, e
	}
	defer func() {
		if a.recoverCorruption(recover(), "pvalloc", &err) {
			p = Nil
		}
	}()

	a.counters.mallocCalls++
	rounded := int(format.AlignDown(uint32(padded), a.pageSize))
	return a.memalign(int(a.pageSize), rounded)
}

func (a *Arena) memalign(alignment, n int) (Ptr, error) {
	switch {
	case alignment < 0 || alignment > MaxAlignment:
		return Nil, fmt.Errorf("%w: %d", ErrInvalidAlignment, alignment)
	case alignment <= MallocAlignment:
		return a.intMalloc(n)
	case n > MaxRequest-alignment-minSize:
		return Nil, fmt.Errorf("%w: %d bytes aligned to %d", ErrInvalidSize, n, alignment)
	}
	al := format.NextPowerOfTwo(uint32(max(alignment, minSize)))
	return a.intMemalign(al, n)
}

// Bytes returns the usable memory behind p, or nil for Nil and pointers
// that do not reference an in-use chunk. The slice aliases the break's
// memory and is invalidated by the next call that may grow the heap.
func (a *Arena) Bytes(p Ptr) []byte {
	n := a.UsableSize(p)
	if n == 0 {
		return nil
	}
	end := int(p) + n
	return a.mem[p:end:end]
}

// UsableSize reports how many bytes can be stored at p, which may exceed
// the size requested. It returns 0 for Nil and for free chunks.
func (a *Arena) UsableSize(p Ptr) int {
	if p == Nil || a.broken != nil {
		return 0
	}
	a.refresh()
	c := mem2chunk(p)
	if !a.validChunk(c) || isBin(c) || c == a.top {
		return 0
	}
	size := a.chunksize(c)
	if size < minSize || uint64(c)+uint64(size)+2*sizeSz > uint64(len(a.mem)) {
		return 0
	}
	if !a.inuse(c) {
		return 0
	}
	return int(size - Overhead)
}

// Trim consolidates the fastbins and returns whole pages at the end of the
// heap to the break, keeping pad bytes of top. It reports whether any
// memory was released.
func (a *Arena) Trim(pad int) (released bool, err error) {
	if pad < 0 || pad > MaxRequest {
		return false, fmt.Errorf("%w: trim pad %d", ErrInvalidSize, pad)
	}
	if e := a.enter(); e != nil {
		return false, e
	}
	defer func() { a.recoverCorruption(recover(), "trim", &err) }()

	a.consolidate()
	return a.systrim(uint32(pad)), nil
}
