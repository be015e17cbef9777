package model

import "time"

// ZScorePoint is one row of the z-scored CVD output.
type ZScorePoint struct {
	Symbol    string    `json:"symbol"`
	Timestamp time.Time `json:"timestamp"`
	Price     float64   `json:"price"`
	CVD       float64   `json:"cvd"`
	CVDZScore float64   `json:"cvd_zscore"`
}
