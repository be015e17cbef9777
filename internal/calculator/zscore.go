package calculator

// ZScore standardizes values over the whole slice: (v - mean) / std.
// Empty or constant input yields all zeros of the same length.
func ZScore(values []float64) []float64 {
	out := make([]float64, len(values))
	std := StdDev(values)
	if len(values) == 0 || std == 0 {
		return out
	}
	mean := Mean(values)
	for i, v := range values {
		out[i] = (v - mean) / std
	}
	return out
}
