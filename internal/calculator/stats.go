package calculator

import "math"

// Mean returns the arithmetic mean of values, 0 for an empty slice.
func Mean(values []float64) float64 {
	if len(values) == 0 {
		return 0
	}
	sum := 0.0
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// StdDev returns the sample standard deviation (n-1 denominator).
// Fewer than two values or a constant series yield exactly 0.
func StdDev(values []float64) float64 {
	n := len(values)
	if n < 2 || constant(values) {
		return 0
	}
	mean := Mean(values)
	ss := 0.0
	for _, v := range values {
		d := v - mean
		ss += d * d
	}
	return math.Sqrt(ss / float64(n-1))
}

// constant reports whether every value equals the first. The mean of a flat
// series like 0.1 is not exact, so its summed deviations would not be zero.
func constant(values []float64) bool {
	for _, v := range values[1:] {
		if v != values[0] {
			return false
		}
	}
	return true
}
