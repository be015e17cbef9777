package model

import (
	"fmt"
	"strings"
)

// Column names of the input contract.
const (
	ColumnSymbol       = "symbol"
	ColumnTimestamp    = "timestamp"
	ColumnPrice        = "price"
	ColumnCVD          = "cvd"
	ColumnPeriodVolume = "period_volume"
	ColumnTradeCount   = "trade_count"
)

// RequiredColumns lists every column a dataset source must provide.
var RequiredColumns = []string{
	ColumnSymbol,
	ColumnTimestamp,
	ColumnPrice,
	ColumnCVD,
	ColumnPeriodVolume,
	ColumnTradeCount,
}

// SchemaError reports a missing column or a value that violates the input contract.
// Row is -1 when the problem is not tied to a single row.
type SchemaError struct {
	Column string
	Row    int
	Reason string
}

func (e *SchemaError) Error() string {
	if e.Row >= 0 {
		return fmt.Sprintf("schema error: column %q, row %d: %s", e.Column, e.Row, e.Reason)
	}
	return fmt.Sprintf("schema error: column %q: %s", e.Column, e.Reason)
}

// InvalidMetricError is returned when a ranking is requested for an unsupported metric.
type InvalidMetricError struct {
	Metric string
	Valid  []Metric
}

func (e *InvalidMetricError) Error() string {
	names := make([]string, len(e.Valid))
	for i, m := range e.Valid {
		names[i] = string(m)
	}
	return fmt.Sprintf("invalid metric %q: valid metrics are %s", e.Metric, strings.Join(names, ", "))
}
