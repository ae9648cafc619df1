// Package alloc implements a general-purpose boundary-tag heap allocator
// over a single growable region (see package brk).
//
// # Overview
//
// An Arena hands out byte ranges of the region it grows through a
// brk.Break. Every range is a chunk: a 4-byte size word (with flag bits)
// followed by user memory, and, while the chunk is free, list links and a
// footer carrying its size. The footer lets free merge a chunk with its
// predecessor without searching, and the PREV_INUSE flag in each size word
// says whether that footer is valid.
//
// # Allocator Interface
//
// Arena implements Allocator:
//
//   - Malloc(n): at least n bytes, 8-byte aligned; Malloc(0) is a minimum chunk
//   - Free(p): release; Free(Nil) is a no-op
//   - Realloc(p, n): resize in place when possible, else move
//   - Calloc(count, size): zeroed, with overflow checking
//   - Memalign(alignment, n), Valloc(n), Pvalloc(n): aligned variants
//
// plus Trim, Stats, PrintStats, UsableSize, Bytes and Check.
//
// # Free Chunk Organization
//
//	fastbins   10 LIFO stacks for chunks up to MaxFast bytes (default 64);
//	           never coalesced until consolidation
//	unsorted   freed and split-off chunks, sorted into bins by the next malloc
//	small bins 62 exact-size FIFO lists, 16..504 bytes in 8-byte steps
//	large bins 63 size ranges, each kept sorted with a skip list over its
//	           distinct sizes
//	top        the chunk bordering the break, split for requests no bin serves
//
// A binmap records which bins may be non-empty so malloc can find the next
// larger chunk without visiting empty lists.
//
// # Usage Example
//
//	b := brk.NewSlice(64 << 20)
//	a, err := alloc.New(b, nil)
//	if err != nil {
//	    return err
//	}
//
//	p, err := a.Malloc(100)
//	if err != nil {
//	    return err
//	}
//	copy(a.Bytes(p), payload)
//
//	if err := a.Free(p); err != nil {
//	    return err
//	}
//
// # Growth and Trimming
//
// When no free chunk fits, the arena grows the break by at least the
// request plus Options.TopPad, rounded to Options.PageSize. If something
// else moved the break in the meantime (a pool sharing it, say), the old
// top is sealed off with fenceposts and freed, and the heap continues in
// the new region. Freeing chunks of 64 KiB or more consolidates the
// fastbins and returns whole pages above Options.TrimThreshold.
//
// # Corruption
//
// Operations validate the headers and links they touch. A failed check
// produces a *CorruptionError, which is reported once through
// Options.OnCorruption. The default hook logs and panics. A hook that
// returns makes the failing call return the error, and every later call
// return it too, since the heap can no longer be trusted.
//
// # Memory Views
//
// Bytes returns a slice aliasing the break's memory. Any call that may grow
// the heap (Malloc, Realloc, Calloc, the aligned variants) can move that
// memory, so slices must be re-fetched after such calls.
//
// # Thread Safety
//
// An Arena is not safe for concurrent use.
package alloc
