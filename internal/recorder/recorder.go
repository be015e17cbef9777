package recorder

import (
	"time"

	"CVDMonitor/internal/model"
)

// RunSummary describes one analysis pass.
type RunSummary struct {
	RunID            string
	RecordedAt       time.Time
	Strategy         string
	WindowSize       int
	Hours            int
	Rows             int
	Symbols          int
	Skipped          int
	Periods          int
	DivergentSymbols []string
}

// RankingSnapshot is the ranking of one metric at the end of a run.
type RankingSnapshot struct {
	RunID  string
	Metric model.Metric
	Rows   []model.RankedRow
}

// Recorder persists run history for later analysis.
type Recorder interface {
	RecordRun(run *RunSummary) error
	RecordRanking(snap *RankingSnapshot) error
	RecentRuns(limit int) ([]RunSummary, error)
	Close() error
}
