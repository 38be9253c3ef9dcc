package recorder

import "math/bits"

// NextPow2 returns the smallest power of two that is >= n.
// NextPow2(0) is 0 and values above 1<<63 overflow to 0.
func NextPow2(n uint64) uint64 {
	if n == 0 {
		return 0
	}
	return 1 << bits.Len64(n-1)
}

// Log2 returns floor(log2(n)); for a power of two this is its exponent.
// Log2(0) is 0.
func Log2(n uint64) uint {
	if n == 0 {
		return 0
	}
	return uint(bits.Len64(n) - 1)
}

// IsPow2 reports whether n is a power of two.
func IsPow2(n uint64) bool {
	return n != 0 && n&(n-1) == 0
}
