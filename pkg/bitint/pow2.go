// SPDX-License-Identifier: MIT
// Package bitint holds power-of-two helpers for buffer sizing. Audio
// block and queue sizes want to be powers of two; these round and check
// in constant time with no allocation.
package bitint

import "math/bits"

// NextPowerOfTwo returns the smallest power of two >= size. Exact
// powers of two map to themselves; non-positive sizes map to 1.
func NextPowerOfTwo(size int) int {
	if size <= 0 {
		return 1
	}
	// size-1 keeps exact powers of two from doubling.
	return 1 << bits.Len64(uint64(size-1))
}

// IsPowerOfTwo reports whether n is a positive power of two.
func IsPowerOfTwo(n int) bool {
	return n > 0 && n&(n-1) == 0
}
