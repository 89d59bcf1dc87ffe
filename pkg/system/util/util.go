package util

import "math"

// SafeDiv divides n by d, returning 0 when the divisor is (near) zero.
func SafeDiv(n, d float64) float64 {
	const eps = 1e-12
	if d > eps || d < -eps {
		return n / d
	}
	return 0
}

// Round2 rounds x to two decimal places.
func Round2(x float64) float64 {
	return math.Round(x*100) / 100
}

// Clamp0 returns x clamped to be non-negative.
// NaN is treated as zero.
func Clamp0(x float64) float64 {
	if x < 0 || math.IsNaN(x) {
		return 0
	}
	return x
}
