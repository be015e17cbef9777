package collector

import (
	"context"
	"encoding/csv"
	"io"
	"os"
	"strconv"
	"strings"

	"CVDMonitor/internal/model"

	"github.com/pkg/errors"
)

// CSVSource reads observations from a CSV file with a header row.
type CSVSource struct {
	Path     string
	RoundCVD int32
}

// NewCSVSource creates a source for path. places < 0 keeps CVD unrounded.
func NewCSVSource(path string, places int32) *CSVSource {
	return &CSVSource{Path: path, RoundCVD: places}
}

func (s *CSVSource) Name() string { return "csv:" + s.Path }

func (s *CSVSource) Load(ctx context.Context) (*model.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f, err := os.Open(s.Path)
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", s.Path)
	}
	defer f.Close()

	ds, err := ParseCSV(f, s.RoundCVD)
	if err != nil {
		return nil, errors.Wrapf(err, "load %s", s.Path)
	}
	return ds, nil
}

// ParseCSV decodes a header-led CSV stream. Extra columns are ignored and
// column order is free. Cell errors report the 0-based data row.
func ParseCSV(r io.Reader, places int32) (*model.Dataset, error) {
	cr := csv.NewReader(r)
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if err == io.EOF {
		return nil, &model.SchemaError{Column: model.ColumnSymbol, Row: -1, Reason: "empty input, header row missing"}
	}
	if err != nil {
		return nil, errors.Wrap(err, "read header")
	}
	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.ToLower(strings.TrimSpace(strings.TrimPrefix(name, "\ufeff")))] = i
	}
	if col, missing := missingColumn(idx); missing {
		return nil, &model.SchemaError{Column: col, Row: -1, Reason: "missing column"}
	}

	var rows []model.Observation
	for row := 0; ; row++ {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, errors.Wrapf(err, "read row %d", row)
		}
		obs, err := parseRecord(rec, idx, row, places)
		if err != nil {
			return nil, err
		}
		rows = append(rows, obs)
	}
	sortRows(rows)
	return model.NewDataset(rows), nil
}

func parseRecord(rec []string, idx map[string]int, row int, places int32) (model.Observation, error) {
	cell := func(col string) string { return strings.TrimSpace(rec[idx[col]]) }
	bad := func(col, reason string) error {
		return &model.SchemaError{Column: col, Row: row, Reason: reason}
	}
	float := func(col string) (float64, error) {
		v, err := strconv.ParseFloat(cell(col), 64)
		if err != nil {
			return 0, bad(col, "not a number: "+strconv.Quote(cell(col)))
		}
		return v, nil
	}

	obs := model.Observation{Symbol: cell(model.ColumnSymbol)}
	ts, ok := ParseTimestamp(cell(model.ColumnTimestamp))
	if !ok {
		return obs, bad(model.ColumnTimestamp, "unparseable timestamp: "+strconv.Quote(cell(model.ColumnTimestamp)))
	}
	obs.Timestamp = ts

	var err error
	if obs.Price, err = float(model.ColumnPrice); err != nil {
		return obs, err
	}
	cvd, err := float(model.ColumnCVD)
	if err != nil {
		return obs, err
	}
	obs.CVD = roundCVD(cvd, places)
	if obs.PeriodVolume, err = float(model.ColumnPeriodVolume); err != nil {
		return obs, err
	}

	// Some exports write integer columns as floats ("12.0").
	tc := cell(model.ColumnTradeCount)
	if obs.TradeCount, err = strconv.ParseInt(tc, 10, 64); err != nil {
		f, ferr := strconv.ParseFloat(tc, 64)
		if ferr != nil || f != float64(int64(f)) {
			return obs, bad(model.ColumnTradeCount, "not an integer: "+strconv.Quote(tc))
		}
		obs.TradeCount = int64(f)
	}
	return obs, nil
}
