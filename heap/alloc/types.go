package alloc

// Ptr is the address of user memory: a byte offset into the break's memory.
type Ptr uint32

// Nil is the null pointer. No break hands out address 0.
const Nil Ptr = 0

// Allocator is the general-purpose allocation interface.
//
// Implementations:
//   - Arena: boundary-tag heap with bins, fastbins and break growth
//
// Consumers such as the trace player depend on this interface rather than
// on *Arena, so alternative allocators can be replayed against the same
// traces.
type Allocator interface {
	// Malloc returns memory for at least n bytes, aligned to MallocAlignment.
	Malloc(n int) (Ptr, error)

	// Free releases memory from Malloc, Calloc, Realloc or the aligned
	// variants. Freeing Nil does nothing.
	Free(p Ptr) error

	// Realloc resizes p to n bytes, preserving the common prefix. It may
	// move the allocation.
	Realloc(p Ptr, n int) (Ptr, error)

	// Calloc returns zeroed memory for count*size bytes.
	Calloc(count, size int) (Ptr, error)

	// Memalign returns memory for n bytes aligned to alignment.
	Memalign(alignment, n int) (Ptr, error)

	// Bytes returns the usable memory behind p. The slice is only valid
	// until the next allocating call.
	Bytes(p Ptr) []byte
}

// Compile-time interface check
var _ Allocator = (*Arena)(nil)
