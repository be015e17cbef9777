package main

import (
	"context"
	"strconv"
	"strings"

	"CVDMonitor/internal/config"
	"CVDMonitor/internal/strategy"

	"github.com/spf13/cobra"
)

var (
	divStrategy string
	divWindow   int
)

var divergenceCmd = &cobra.Command{
	Use:   "divergence",
	Short: "Detect CVD/price divergence periods",
	Long: `Scan every symbol for periods where the CVD z-score trend and the price
trend point in opposite directions.

Examples:
  cvdmonitor divergence
  cvdmonitor divergence --window 20 --hours 24
  cvdmonitor divergence --strategy single_point --json`,
	RunE: runDivergence,
}

func init() {
	rootCmd.AddCommand(divergenceCmd)
	divergenceCmd.Flags().StringVar(&divStrategy, "strategy", "", "windowed_trend | single_point (default analysis.strategy)")
	divergenceCmd.Flags().IntVar(&divWindow, "window", 0, "Window size in observations (default analysis.window_size)")
}

func runDivergence(cmd *cobra.Command, _ []string) error {
	a, err := loadApp(func(cfg *config.Config) {
		if divStrategy != "" {
			cfg.Analysis.Strategy = strategy.DetectionStrategy(divStrategy)
		}
		if divWindow > 0 {
			cfg.Analysis.WindowSize = divWindow
		}
	})
	if err != nil {
		return err
	}
	defer a.Close()

	ds, err := a.window(context.Background())
	if err != nil {
		return err
	}
	report, err := a.monitor.Analyze(ds)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if flagJSON {
		return renderJSON(out, struct {
			Divergent interface{} `json:"divergent"`
			Periods   interface{} `json:"periods"`
			Skipped   []string    `json:"skipped"`
		}{report.Divergent, report.Periods, report.Skipped})
	}

	var rows [][]string
	for _, symbol := range report.Divergent {
		for _, p := range report.Periods[symbol] {
			rows = append(rows, []string{
				symbol,
				p.StartTime.Format(timeLayout),
				p.EndTime.Format(timeLayout),
				strconv.Itoa(p.Duration),
				num(p.Strength, 4),
				signed(p.CVDTrend),
				signed(p.PriceTrend),
			})
		}
	}
	renderTable(out, "Divergence periods",
		[]string{"Symbol", "Start", "End", "Points", "Strength", "CVD trend", "Price trend"}, rows)
	renderNote(out, "%d of %d symbols divergent, %d windows evaluated (%s, window %d)",
		len(report.Divergent), len(report.Symbols), report.WindowsEvaluated, report.Strategy, report.WindowSize)
	if len(report.Skipped) > 0 {
		renderNote(out, "skipped (too few observations): %s", strings.Join(report.Skipped, ", "))
	}
	return nil
}
