// SPDX-License-Identifier: MIT

/*
Package bitint provides the power-of-two arithmetic used to size analysis
frames and radix-2 transforms.

Every transform in this module works on buffers whose length is a power
of two: a frame of N real samples is transformed as N/2 complex pairs,
and the butterfly passes halve and double spans at each stage. These
helpers keep that arithmetic in one place.

Usage:

	// Reject a frame size before building a detector
	if !bitint.IsPowerOfTwo(frameSize) {
		return fmt.Errorf("frame size %d is not a power of two (try %d)",
			frameSize, bitint.NextPowerOfTwo(frameSize))
	}

	// Number of butterfly stages for 512 complex points
	stages := bitint.Log2(512) // 9

----------------------------------------------------------------------

What this code does:

	NextPowerOfTwo subtracts one before taking the bit length so that
	exact powers of two map to themselves:

	- 1024-1 = 1023 (binary 11_1111_1111), bits.Len = 10, 1<<10 = 1024
	- 1000-1 = 999, bits.Len = 10, 1<<10 = 1024

	PrevPowerOfTwo keeps only the highest set bit, so it is the largest
	power of two that does not exceed the input.
*/
package bitint

import "math/bits"

// IsPowerOfTwo reports whether n is a positive power of two.
// A power of two has exactly one bit set, so n&(n-1) clears it to zero.
//
//	Input  Output  Binary
//	8      true    1000 & 0111 = 0000
//	12     false   1100 & 1011 = 1000
//	0      false   not positive
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}

// IsTransformLength reports whether n can be handed to an in-place
// interleaved complex transform: a power of two holding at least one
// real/imaginary pair.
func IsTransformLength(n int) bool {
	return n >= 2 && IsPowerOfTwo(n)
}

// NextPowerOfTwo returns the smallest power of two >= n.
// Non-positive input returns 1.
//
//	Input  Output
//	1000   1024
//	1024   1024
//	0      1
func NextPowerOfTwo(n int) int {
	if n <= 1 {
		return 1
	}
	return 1 << bits.Len(uint(n-1))
}

// PrevPowerOfTwo returns the largest power of two <= n.
// Non-positive input returns 0.
func PrevPowerOfTwo(n int) int {
	if n <= 0 {
		return 0
	}
	return 1 << (bits.Len(uint(n)) - 1)
}

// Log2 returns floor(log2(n)) for positive n and -1 otherwise.
// For a power of two this is the exact exponent.
func Log2(n int) int {
	if n <= 0 {
		return -1
	}
	return bits.Len(uint(n)) - 1
}
