package format

import "math/bits"

// Alignment utilities. Every alignment handled here is a power of two, so
// rounding reduces to masking.

// AlignUp returns n rounded up to a multiple of align, which must be a power of two.
//
// Example:
//
//	AlignUp(1, 4096)    = 4096
//	AlignUp(4096, 4096) = 4096
//	AlignUp(4097, 4096) = 8192
func AlignUp(n, align uint32) uint32 {
	return (n + align - 1) &^ (align - 1)
}

// AlignDown returns n rounded down to a multiple of align, which must be a power of two.
func AlignDown(n, align uint32) uint32 {
	return n &^ (align - 1)
}

// IsAligned reports whether n is a multiple of align (a power of two).
func IsAligned(n, align uint32) bool {
	return n&(align-1) == 0
}

// IsPowerOfTwo reports whether n is a non-zero power of two.
func IsPowerOfTwo(n uint32) bool {
	return n != 0 && n&(n-1) == 0
}

// NextPowerOfTwo returns the smallest power of two >= n. It returns 0 when
// the result does not fit in 32 bits.
func NextPowerOfTwo(n uint32) uint32 {
	if n <= 1 {
		return 1
	}
	shift := bits.Len32(n - 1)
	if shift >= 32 {
		return 0
	}
	return 1 << shift
}
