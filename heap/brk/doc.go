// Package brk provides the growth primitive behind the heap and pool
// allocators: a single contiguous address range whose end (the "break")
// moves by a signed delta, in the manner of sbrk(2).
//
// # Addresses
//
// Addresses are byte offsets into the slice returned by Bytes. Every break
// starts at a non-zero origin (DefaultOrigin, or the system page size for
// Mmap), so offset 0 is never handed out and the allocators use it as the
// null pointer.
//
// # Implementations
//
// Slice: a growable []byte bounded by a limit. Growth may move the backing
// array, so callers must re-fetch Bytes after every Sbrk.
//
// Mmap (unix only): reserves the whole limit of address space up front with
// PROT_NONE and commits pages with mprotect as the break advances. The
// backing array never moves, and the origin page stays inaccessible as a
// guard against null dereferences.
//
// # Thread Safety
//
// Breaks are not thread-safe. Synchronize externally when an allocator
// using one is shared between goroutines.
package brk
