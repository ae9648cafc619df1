package format

import "encoding/binary"

// Binary encoding utilities for the little-endian words that make up chunk
// headers, free-list links and pool page links.
//
// Implementation: Uses encoding/binary.LittleEndian
//
// The compiler inlines binary.LittleEndian calls and folds the bounds
// checks, so there is no unsafe fast path here.

// WordSize is the width in bytes of every header and link word.
const WordSize = 4

// PutU32 writes a uint32 value to the buffer at the specified offset in little-endian format.
func PutU32(b []byte, off int, v uint32) {
	binary.LittleEndian.PutUint32(b[off:off+WordSize], v)
}

// ReadU32 reads a uint32 value from the buffer at the specified offset in little-endian format.
func ReadU32(b []byte, off int) uint32 {
	return binary.LittleEndian.Uint32(b[off : off+WordSize])
}

// Fill sets every byte of b to v.
func Fill(b []byte, v byte) {
	if len(b) == 0 {
		return
	}
	b[0] = v
	for n := 1; n < len(b); n *= 2 {
		copy(b[n:], b[:n])
	}
}
