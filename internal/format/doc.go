// Package format holds the low-level word encoding and alignment helpers
// shared by the heap allocator and the pool allocator. Everything that
// reads or writes a header word inside the managed memory goes through
// these helpers so the byte order is defined in exactly one place.
package format
