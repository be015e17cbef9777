package recorder

import (
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/pkg/errors"
	"go.uber.org/zap"
	_ "modernc.org/sqlite"
)

// SQLiteRecorder persists run history to a SQLite database.
type SQLiteRecorder struct {
	db     *sqlx.DB
	mu     sync.Mutex
	logger *zap.Logger
	now    func() time.Time
}

// NewSQLiteRecorder opens (or creates) the SQLite database and runs migrations.
func NewSQLiteRecorder(dbPath string, logger *zap.Logger) (*SQLiteRecorder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	db, err := sqlx.Open("sqlite", dbPath)
	if err != nil {
		return nil, errors.Wrap(err, "open sqlite")
	}

	// WAL lets dashboards read while the monitor writes.
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "set WAL mode")
	}

	r := &SQLiteRecorder{db: db, logger: logger.Named("recorder"), now: time.Now}
	if err := r.migrate(); err != nil {
		db.Close()
		return nil, errors.Wrap(err, "migrate")
	}

	r.logger.Info("sqlite recorder opened", zap.String("path", dbPath))
	return r, nil
}

func (r *SQLiteRecorder) migrate() error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS analysis_runs (
			id                INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id            TEXT NOT NULL UNIQUE,
			timestamp         INTEGER NOT NULL,
			strategy          TEXT,
			window_size       INTEGER,
			hours             INTEGER,
			row_count         INTEGER,
			symbols           INTEGER,
			divergent         INTEGER,
			skipped           INTEGER,
			periods           INTEGER,
			divergent_symbols TEXT
		)`,
		`CREATE INDEX IF NOT EXISTS idx_runs_ts ON analysis_runs(timestamp)`,

		`CREATE TABLE IF NOT EXISTS ranking_snapshots (
			id        INTEGER PRIMARY KEY AUTOINCREMENT,
			run_id    TEXT NOT NULL,
			timestamp INTEGER NOT NULL,
			metric    TEXT NOT NULL,
			rank      INTEGER NOT NULL,
			symbol    TEXT NOT NULL,
			value     REAL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_rankings_run ON ranking_snapshots(run_id, metric)`,
	}

	for _, s := range stmts {
		if _, err := r.db.Exec(s); err != nil {
			return errors.Wrapf(err, "exec %q", s[:40])
		}
	}
	return nil
}

type runRow struct {
	RunID            string `db:"run_id"`
	Timestamp        int64  `db:"timestamp"`
	Strategy         string `db:"strategy"`
	WindowSize       int    `db:"window_size"`
	Hours            int    `db:"hours"`
	Rows             int    `db:"row_count"`
	Symbols          int    `db:"symbols"`
	Divergent        int    `db:"divergent"`
	Skipped          int    `db:"skipped"`
	Periods          int    `db:"periods"`
	DivergentSymbols string `db:"divergent_symbols"`
}

func (r *SQLiteRecorder) RecordRun(run *RunSummary) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	at := run.RecordedAt
	if at.IsZero() {
		at = r.now()
	}
	_, err := r.db.NamedExec(`INSERT INTO analysis_runs
		(run_id, timestamp, strategy, window_size, hours, row_count, symbols, divergent, skipped, periods, divergent_symbols)
		VALUES (:run_id, :timestamp, :strategy, :window_size, :hours, :row_count, :symbols, :divergent, :skipped, :periods, :divergent_symbols)`,
		runRow{
			RunID:            run.RunID,
			Timestamp:        at.Unix(),
			Strategy:         run.Strategy,
			WindowSize:       run.WindowSize,
			Hours:            run.Hours,
			Rows:             run.Rows,
			Symbols:          run.Symbols,
			Divergent:        len(run.DivergentSymbols),
			Skipped:          run.Skipped,
			Periods:          run.Periods,
			DivergentSymbols: strings.Join(run.DivergentSymbols, ","),
		})
	return errors.Wrap(err, "insert run")
}

func (r *SQLiteRecorder) RecordRanking(snap *RankingSnapshot) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	tx, err := r.db.Beginx()
	if err != nil {
		return errors.Wrap(err, "begin ranking snapshot")
	}
	defer tx.Rollback()

	now := r.now().Unix()
	for _, row := range snap.Rows {
		if _, err := tx.Exec(`INSERT INTO ranking_snapshots
			(run_id, timestamp, metric, rank, symbol, value)
			VALUES (?,?,?,?,?,?)`,
			snap.RunID, now, string(snap.Metric), row.Rank, row.Symbol, row.Value,
		); err != nil {
			return errors.Wrapf(err, "insert ranking %s/%s", snap.Metric, row.Symbol)
		}
	}
	return errors.Wrap(tx.Commit(), "commit ranking snapshot")
}

// RecentRuns returns up to limit runs, newest first.
func (r *SQLiteRecorder) RecentRuns(limit int) ([]RunSummary, error) {
	var rows []runRow
	err := r.db.Select(&rows, `SELECT run_id, timestamp, strategy, window_size, hours, row_count,
		symbols, divergent, skipped, periods, divergent_symbols
		FROM analysis_runs ORDER BY timestamp DESC, id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, errors.Wrap(err, "select runs")
	}
	out := make([]RunSummary, len(rows))
	for i, row := range rows {
		var divergent []string
		if row.DivergentSymbols != "" {
			divergent = strings.Split(row.DivergentSymbols, ",")
		}
		out[i] = RunSummary{
			RunID:            row.RunID,
			RecordedAt:       time.Unix(row.Timestamp, 0),
			Strategy:         row.Strategy,
			WindowSize:       row.WindowSize,
			Hours:            row.Hours,
			Rows:             row.Rows,
			Symbols:          row.Symbols,
			Skipped:          row.Skipped,
			Periods:          row.Periods,
			DivergentSymbols: divergent,
		}
	}
	return out, nil
}

func (r *SQLiteRecorder) Close() error {
	r.logger.Info("closing sqlite recorder")
	return r.db.Close()
}
