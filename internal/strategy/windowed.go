package strategy

import (
	"math"

	"CVDMonitor/internal/calculator"
	"CVDMonitor/internal/model"
)

// extensionOffset is how far past the trigger the end search starts.
const extensionOffset = 5

type windowedTrend struct {
	cfg Config
}

func (w windowedTrend) minPoints() int { return 2 * w.cfg.WindowSize }

// detect scans window end positions i in [W, N-W]. The window is points[i-W:i].
func (w windowedTrend) detect(s model.Series) symbolScan {
	size := w.cfg.WindowSize
	n := s.Len()
	if n < w.minPoints() {
		return symbolScan{skipped: true}
	}

	z := calculator.ZScore(s.CVDs())
	prices := s.Prices()

	var scan symbolScan
	for i := size; i <= n-size; i++ {
		start := i - size
		if overlaps(scan.periods, start) {
			continue
		}
		scan.windows++

		cvdTrend, priceTrend := w.trends(z, prices, i)
		if !w.diverges(cvdTrend, priceTrend) {
			continue
		}
		strength := math.Min(math.Abs(cvdTrend), math.Abs(priceTrend))
		end := w.extend(z, prices, i, n)
		scan.periods = append(scan.periods, newPeriod(s, start, end, cvdTrend, priceTrend, strength))
	}
	return scan
}

// trends returns the normalized CVD z-score and price trends of the window ending at i.
func (w windowedTrend) trends(z, prices []float64, i int) (cvdTrend, priceTrend float64) {
	from := i - w.cfg.WindowSize
	cvdTrend = calculator.NormalizedTrend(z[from:i], w.cfg.Epsilon)
	priceTrend = calculator.NormalizedTrend(prices[from:i], w.cfg.Epsilon)
	return cvdTrend, priceTrend
}

func (w windowedTrend) diverges(cvdTrend, priceTrend float64) bool {
	threshold := w.cfg.TrendSignificanceThreshold
	return math.Abs(cvdTrend) > threshold &&
		math.Abs(priceTrend) > threshold &&
		cvdTrend*priceTrend < 0
}

// extend walks the window end forward from the trigger until the trends stop
// opposing each other or one of them fades. The returned index is exclusive.
func (w windowedTrend) extend(z, prices []float64, i, n int) int {
	limit := min(i+w.cfg.WindowSize, n)
	for j := i + extensionOffset; j < limit; j++ {
		cvdTrend, priceTrend := w.trends(z, prices, j)
		if cvdTrend*priceTrend >= 0 ||
			math.Abs(cvdTrend) < w.cfg.TrendFadeThreshold ||
			math.Abs(priceTrend) < w.cfg.TrendFadeThreshold {
			return j
		}
	}
	return limit
}
