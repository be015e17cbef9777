package model

import (
	"fmt"
	"math"
	"sort"
	"time"
)

// Observation is one row of the per-symbol CVD/price time series.
type Observation struct {
	Symbol       string    `json:"symbol"`
	Timestamp    time.Time `json:"timestamp"`
	Price        float64   `json:"price"`
	CVD          float64   `json:"cvd"`
	PeriodVolume float64   `json:"period_volume"`
	TradeCount   int64     `json:"trade_count"`
}

// Dataset is a materialized, immutable batch of observations for any number of symbols.
type Dataset struct {
	Rows []Observation `json:"rows"`
}

// NewDataset wraps rows without copying them.
func NewDataset(rows []Observation) *Dataset {
	return &Dataset{Rows: rows}
}

// Len returns the number of rows.
func (d *Dataset) Len() int {
	if d == nil {
		return 0
	}
	return len(d.Rows)
}

// Series is the ordered sequence of observations for one symbol.
// Index[k] is the position of Points[k] in the owning Dataset.
type Series struct {
	Symbol string
	Points []Observation
	Index  []int
}

// Len returns the number of points in the series.
func (s Series) Len() int { return len(s.Points) }

// CVDs extracts the cvd column.
func (s Series) CVDs() []float64 {
	out := make([]float64, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.CVD
	}
	return out
}

// Prices extracts the price column.
func (s Series) Prices() []float64 {
	out := make([]float64, len(s.Points))
	for i, p := range s.Points {
		out[i] = p.Price
	}
	return out
}

// Partition groups rows by symbol. Series come back sorted by symbol and each
// series is ordered by timestamp; input order breaks ties.
func (d *Dataset) Partition() []Series {
	if d.Len() == 0 {
		return nil
	}
	bySymbol := make(map[string]*Series)
	for i, row := range d.Rows {
		s, ok := bySymbol[row.Symbol]
		if !ok {
			s = &Series{Symbol: row.Symbol}
			bySymbol[row.Symbol] = s
		}
		s.Points = append(s.Points, row)
		s.Index = append(s.Index, i)
	}

	out := make([]Series, 0, len(bySymbol))
	for _, s := range bySymbol {
		sortSeries(s)
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

func sortSeries(s *Series) {
	if sort.SliceIsSorted(s.Points, func(i, j int) bool { return s.Points[i].Timestamp.Before(s.Points[j].Timestamp) }) {
		return
	}
	order := make([]int, len(s.Points))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(i, j int) bool {
		return s.Points[order[i]].Timestamp.Before(s.Points[order[j]].Timestamp)
	})
	points := make([]Observation, len(order))
	index := make([]int, len(order))
	for k, o := range order {
		points[k] = s.Points[o]
		index[k] = s.Index[o]
	}
	s.Points = points
	s.Index = index
}

// Validate checks the input contract: non-empty symbols, set timestamps,
// finite numeric columns, non-negative trade counts and unique timestamps per symbol.
func (d *Dataset) Validate() error {
	if d == nil {
		return &SchemaError{Column: "rows", Row: -1, Reason: "dataset is nil"}
	}
	seen := make(map[string]map[int64]struct{})
	for i, row := range d.Rows {
		if row.Symbol == "" {
			return &SchemaError{Column: ColumnSymbol, Row: i, Reason: "symbol is empty"}
		}
		if row.Timestamp.IsZero() {
			return &SchemaError{Column: ColumnTimestamp, Row: i, Reason: "timestamp is not set"}
		}
		if err := checkFinite(ColumnPrice, i, row.Price); err != nil {
			return err
		}
		if err := checkFinite(ColumnCVD, i, row.CVD); err != nil {
			return err
		}
		if err := checkFinite(ColumnPeriodVolume, i, row.PeriodVolume); err != nil {
			return err
		}
		if row.TradeCount < 0 {
			return &SchemaError{Column: ColumnTradeCount, Row: i, Reason: fmt.Sprintf("trade_count %d is negative", row.TradeCount)}
		}
		ts, ok := seen[row.Symbol]
		if !ok {
			ts = make(map[int64]struct{})
			seen[row.Symbol] = ts
		}
		key := row.Timestamp.UnixNano()
		if _, dup := ts[key]; dup {
			return &SchemaError{Column: ColumnTimestamp, Row: i, Reason: fmt.Sprintf("duplicate timestamp %s for %s", row.Timestamp.Format(time.RFC3339), row.Symbol)}
		}
		ts[key] = struct{}{}
	}
	return nil
}

func checkFinite(column string, row int, v float64) error {
	if math.IsNaN(v) || math.IsInf(v, 0) {
		return &SchemaError{Column: column, Row: row, Reason: fmt.Sprintf("value %v is not finite", v)}
	}
	return nil
}
