package calculator

// Slope returns the ordinary least squares slope of values regressed against
// their position index 0..n-1. Fewer than two values or a flat series yield 0.
func Slope(values []float64) float64 {
	n := len(values)
	if n < 2 || constant(values) {
		return 0
	}
	xMean := float64(n-1) / 2
	yMean := Mean(values)

	var sxy, sxx float64
	for i, v := range values {
		dx := float64(i) - xMean
		sxy += dx * (v - yMean)
		sxx += dx * dx
	}
	return sxy / sxx
}

// NormalizedTrend is Slope scaled by the sample standard deviation of the same
// values. epsilon keeps flat windows finite.
func NormalizedTrend(values []float64, epsilon float64) float64 {
	return Slope(values) / (StdDev(values) + epsilon)
}
