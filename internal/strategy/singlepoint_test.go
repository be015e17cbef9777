package strategy

import (
	"testing"

	"CVDMonitor/internal/model"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func singlePointEngine(t *testing.T) *Engine {
	return newEngine(t, func(c *Config) { c.Strategy = SinglePoint })
}

func TestSinglePoint_ExtremeAgainstFallingPrice(t *testing.T) {
	cvd := []float64{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 10, 20, 30, 40, 50}
	price := make([]float64, 20)
	for k := range price {
		price[k] = 100
		if k >= 10 {
			price[k] = 100 - 2*float64(k-9)
		}
	}

	periods, err := singlePointEngine(t).DivergencePeriods(model.NewDataset(series("BNBUSDT", cvd, price)))
	require.NoError(t, err)
	require.Len(t, periods["BNBUSDT"], 1)

	p := periods["BNBUSDT"][0]
	assert.Equal(t, 8, p.StartIndex)
	assert.Equal(t, 18, p.EndIndex)
	assert.Equal(t, 10, p.Duration)
	assert.Greater(t, p.CVDTrend, 0.0)
	assert.InDelta(t, -0.16, p.PriceTrend, 1e-9)
	assert.Greater(t, p.Strength, 1.0)
}

func TestSinglePoint_FlatPriceIsIgnored(t *testing.T) {
	cvd := []float64{0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 0, 10, 20, 30, 40, 50}
	price := make([]float64, 20)
	for k := range price {
		price[k] = 100
	}

	symbols, err := singlePointEngine(t).DetectDivergentSymbols(model.NewDataset(series("BNBUSDT", cvd, price)))
	require.NoError(t, err)
	assert.Empty(t, symbols)
}

func TestSinglePoint_ShortSeriesSkipped(t *testing.T) {
	cvd := []float64{1, 2, 3, 4, 5, 6, 7, 8, 9}
	price := []float64{9, 8, 7, 6, 5, 4, 3, 2, 1}

	result, err := singlePointEngine(t).Scan(model.NewDataset(series("TINY", cvd, price)))
	require.NoError(t, err)
	assert.Equal(t, []string{"TINY"}, result.Skipped)
}
