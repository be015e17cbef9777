package collector

import (
	"context"
	"database/sql"
	"fmt"
	"regexp"
	"time"

	"CVDMonitor/internal/model"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	_ "modernc.org/sqlite"
)

// DefaultTable is the observation table read when none is configured.
const DefaultTable = "cvd_observations"

var tableName = regexp.MustCompile(`^[A-Za-z_][A-Za-z0-9_]*$`)

// SQLiteSource reads observations from a SQLite table. The timestamp column
// may hold RFC3339 text, SQL datetime text or unix seconds.
type SQLiteSource struct {
	db       *sqlx.DB
	path     string
	table    string
	roundCVD int32
}

// NewSQLiteSource opens path. The table must exist by the time Load runs.
func NewSQLiteSource(path, table string, places int32) (*SQLiteSource, error) {
	if table == "" {
		table = DefaultTable
	}
	if !tableName.MatchString(table) {
		return nil, errors.Errorf("invalid table name %q", table)
	}
	db, err := sqlx.Open("sqlite", path)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}
	return &SQLiteSource{db: db, path: path, table: table, roundCVD: places}, nil
}

func (s *SQLiteSource) Name() string { return "sqlite:" + s.path + "#" + s.table }

// tableColumn mirrors one row of PRAGMA table_info.
type tableColumn struct {
	CID        int            `db:"cid"`
	Name       string         `db:"name"`
	Type       string         `db:"type"`
	NotNull    int            `db:"notnull"`
	Default    sql.NullString `db:"dflt_value"`
	PrimaryKey int            `db:"pk"`
}

type observationRow struct {
	Symbol       sql.NullString  `db:"symbol"`
	Timestamp    sql.NullString  `db:"timestamp"`
	Price        sql.NullFloat64 `db:"price"`
	CVD          sql.NullFloat64 `db:"cvd"`
	PeriodVolume sql.NullFloat64 `db:"period_volume"`
	TradeCount   sql.NullInt64   `db:"trade_count"`
}

func (s *SQLiteSource) checkColumns(ctx context.Context) error {
	var cols []tableColumn
	if err := s.db.SelectContext(ctx, &cols, fmt.Sprintf("PRAGMA table_info(%s)", s.table)); err != nil {
		return errors.Wrapf(err, "inspect table %s", s.table)
	}
	have := make(map[string]int, len(cols))
	for _, c := range cols {
		have[c.Name] = c.CID
	}
	if col, missing := missingColumn(have); missing {
		return &model.SchemaError{Column: col, Row: -1, Reason: "missing column in table " + s.table}
	}
	return nil
}

func (s *SQLiteSource) Load(ctx context.Context) (*model.Dataset, error) {
	if err := s.checkColumns(ctx); err != nil {
		return nil, err
	}

	var rows []observationRow
	query := fmt.Sprintf(`SELECT symbol, timestamp, price, cvd, period_volume, trade_count
		FROM %s ORDER BY symbol, timestamp`, s.table)
	if err := s.db.SelectContext(ctx, &rows, query); err != nil {
		return nil, errors.Wrapf(err, "select from %s", s.table)
	}

	out := make([]model.Observation, 0, len(rows))
	for i, r := range rows {
		obs, err := r.observation(i, s.roundCVD)
		if err != nil {
			return nil, err
		}
		out = append(out, obs)
	}
	// Text and integer timestamps do not collate chronologically together.
	sortRows(out)
	return model.NewDataset(out), nil
}

func (r observationRow) observation(row int, places int32) (model.Observation, error) {
	null := func(col string) error {
		return &model.SchemaError{Column: col, Row: row, Reason: "null value"}
	}
	switch {
	case !r.Symbol.Valid:
		return model.Observation{}, null(model.ColumnSymbol)
	case !r.Timestamp.Valid:
		return model.Observation{}, null(model.ColumnTimestamp)
	case !r.Price.Valid:
		return model.Observation{}, null(model.ColumnPrice)
	case !r.CVD.Valid:
		return model.Observation{}, null(model.ColumnCVD)
	case !r.PeriodVolume.Valid:
		return model.Observation{}, null(model.ColumnPeriodVolume)
	case !r.TradeCount.Valid:
		return model.Observation{}, null(model.ColumnTradeCount)
	}
	ts, ok := ParseTimestamp(r.Timestamp.String)
	if !ok {
		return model.Observation{}, &model.SchemaError{
			Column: model.ColumnTimestamp,
			Row:    row,
			Reason: "unparseable timestamp: " + r.Timestamp.String,
		}
	}
	return model.Observation{
		Symbol:       r.Symbol.String,
		Timestamp:    ts,
		Price:        r.Price.Float64,
		CVD:          roundCVD(r.CVD.Float64, places),
		PeriodVolume: r.PeriodVolume.Float64,
		TradeCount:   r.TradeCount.Int64,
	}, nil
}

type importRow struct {
	Symbol       string  `db:"symbol"`
	Timestamp    string  `db:"timestamp"`
	Price        float64 `db:"price"`
	CVD          float64 `db:"cvd"`
	PeriodVolume float64 `db:"period_volume"`
	TradeCount   int64   `db:"trade_count"`
}

// Import creates the table when needed and upserts every row of ds keyed by
// (symbol, timestamp). Timestamps are stored as UTC RFC3339 text.
func (s *SQLiteSource) Import(ctx context.Context, ds *model.Dataset) (int, error) {
	if err := ds.Validate(); err != nil {
		return 0, err
	}
	schema := fmt.Sprintf(`CREATE TABLE IF NOT EXISTS %s (
		symbol        TEXT NOT NULL,
		timestamp     TEXT NOT NULL,
		price         REAL NOT NULL,
		cvd           REAL NOT NULL,
		period_volume REAL NOT NULL,
		trade_count   INTEGER NOT NULL,
		PRIMARY KEY (symbol, timestamp)
	)`, s.table)
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return 0, errors.Wrapf(err, "create table %s", s.table)
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, errors.Wrap(err, "begin import")
	}
	defer tx.Rollback()

	insert := fmt.Sprintf(`INSERT OR REPLACE INTO %s
		(symbol, timestamp, price, cvd, period_volume, trade_count)
		VALUES (:symbol, :timestamp, :price, :cvd, :period_volume, :trade_count)`, s.table)
	for _, o := range ds.Rows {
		row := importRow{
			Symbol:       o.Symbol,
			Timestamp:    o.Timestamp.UTC().Format(time.RFC3339Nano),
			Price:        o.Price,
			CVD:          o.CVD,
			PeriodVolume: o.PeriodVolume,
			TradeCount:   o.TradeCount,
		}
		if _, err := tx.NamedExecContext(ctx, insert, row); err != nil {
			return 0, errors.Wrapf(err, "insert %s@%s", o.Symbol, row.Timestamp)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, errors.Wrap(err, "commit import")
	}
	return ds.Len(), nil
}

func (s *SQLiteSource) Close() error {
	return s.db.Close()
}
