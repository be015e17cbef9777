package main

import (
	"strconv"
	"strings"

	"CVDMonitor/internal/config"
	"CVDMonitor/internal/recorder"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "Show recorded analysis runs",
	RunE:  runHistory,
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().IntVar(&historyLimit, "limit", 20, "Number of runs to show")
}

func runHistory(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if cfg.Database.SQLitePath == "" {
		return errors.New("database.sqlite_path is not configured")
	}
	rec, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath, nil)
	if err != nil {
		return err
	}
	defer rec.Close()

	runs, err := rec.RecentRuns(historyLimit)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if flagJSON {
		return renderJSON(out, runs)
	}
	rows := make([][]string, len(runs))
	for i, r := range runs {
		rows[i] = []string{
			r.RecordedAt.Format(timeLayout),
			r.RunID[:min(8, len(r.RunID))],
			r.Strategy,
			strconv.Itoa(r.Hours),
			strconv.Itoa(r.Symbols),
			strconv.Itoa(r.Skipped),
			strconv.Itoa(r.Periods),
			strings.Join(r.DivergentSymbols, ","),
		}
	}
	renderTable(out, "Analysis runs", []string{"Time", "Run", "Strategy", "Hours", "Symbols", "Skipped", "Periods", "Divergent"}, rows)
	return nil
}
