/*
Package bitint provides the power-of-two helpers used to validate and size
FFT windows.

Usage:

	// Verify FFT window size is valid
	if !bitint.IsPowerOfTwo(fftSize) { ... }

	// Round a requested window up to something the FFT accepts
	size := bitint.NextPowerOfTwo(6000) // Returns 8192

NextPowerOfTwo subtracts one before taking the bit length so that exact
powers of two are preserved:

	size = 8  -> size-1 = 7 (0111) -> bits.Len = 3 -> 1<<3 = 8
	size = 9  -> size-1 = 8 (1000) -> bits.Len = 4 -> 1<<4 = 16
*/
package bitint

import "math/bits"

// NextPowerOfTwo returns the next power of 2 >= size. Non-positive sizes
// return 1.
//
//	Input  Output
//	4      4
//	5      8
//	0      1
//	-1     1
func NextPowerOfTwo(size int) int {
	if size <= 0 {
		return 1
	}
	return 1 << bits.Len(uint(size-1))
}

// IsPowerOfTwo reports whether n is a positive power of 2. Powers of two have
// exactly one bit set, so n&(n-1) clears it to zero.
//
//	Input  Output  Binary
//	8      true    1000 & 0111 = 0000
//	7      false   0111 & 0110 = 0110
//	0      false   Not positive
func IsPowerOfTwo(n int) bool {
	return n > 0 && (n&(n-1)) == 0
}
