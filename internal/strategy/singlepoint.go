package strategy

import (
	"math"

	"CVDMonitor/internal/calculator"
	"CVDMonitor/internal/model"
)

const (
	singlePointMinPoints = 10
	singlePointLookback  = 10
	singlePointMinWindow = 5
)

// singlePoint flags observations whose CVD z-score is extreme while the
// look-back ending there shows CVD and price moving apart.
type singlePoint struct {
	cfg Config
}

func (p singlePoint) minPoints() int { return singlePointMinPoints }

func (p singlePoint) detect(s model.Series) symbolScan {
	n := s.Len()
	if n < singlePointMinPoints {
		return symbolScan{skipped: true}
	}

	z := calculator.ZScore(s.CVDs())
	prices := s.Prices()

	var scan symbolScan
	for idx := 0; idx < n; idx++ {
		if math.Abs(z[idx]) <= p.cfg.ZScoreThreshold {
			continue
		}
		start := max(0, idx-singlePointLookback+1)
		if idx-start+1 < singlePointMinWindow {
			continue
		}
		if overlaps(scan.periods, start) {
			continue
		}
		scan.windows++

		cvdTrend := z[idx] - z[start]
		base := prices[start]
		if base == 0 {
			base = p.cfg.Epsilon
		}
		priceTrend := (prices[idx] - prices[start]) / base

		bullish := cvdTrend > 0 && priceTrend < -p.cfg.PriceChangeThreshold
		bearish := cvdTrend < 0 && priceTrend > p.cfg.PriceChangeThreshold
		if !bullish && !bearish {
			continue
		}
		scan.periods = append(scan.periods, newPeriod(s, start, idx+1, cvdTrend, priceTrend, math.Abs(z[idx])))
	}
	return scan
}
