// Package pool implements a fixed-block allocator: blocks of one size are
// bump-allocated out of pages obtained from a brk.Break and recycled
// through an intrusive free list.
//
// # Layout
//
// Every page starts with a one-word link to the next page, followed by
// as many blocks as fit:
//
//	page:  [next page][block 0][block 1]...[block n-1]
//	freed: [next free]...                (first word of a free block)
//
// Pages are never returned to the break. Clear rewinds to the first page
// and forgets the free list, so the same pages serve the next round of
// allocations without growing the break again.
//
// # Sharing a Break
//
// A pool can draw pages from the same break as an alloc.Arena. The arena
// sees the pool's pages as foreign growth and fences around them. The pool
// re-reads the break's memory on every call, since growth by another user
// may move it.
//
// # Thread Safety
//
// Pools are not thread-safe.
package pool
