package main

import (
	"context"

	"CVDMonitor/internal/calculator"
	"CVDMonitor/internal/model"
	"CVDMonitor/internal/monitor"

	"github.com/spf13/cobra"
)

var (
	zscoreSymbol string
	zscoreLimit  int
)

var zscoreCmd = &cobra.Command{
	Use:   "zscore",
	Short: "Print the CVD z-scored series",
	Long: `Normalize CVD per symbol to a z-score over the analysis horizon.

Examples:
  cvdmonitor zscore
  cvdmonitor zscore --symbol BTCUSDT --limit 50
  cvdmonitor zscore --hours 24 --json`,
	RunE: runZScore,
}

func init() {
	rootCmd.AddCommand(zscoreCmd)
	zscoreCmd.Flags().StringVar(&zscoreSymbol, "symbol", "", "Only this symbol, in time order")
	zscoreCmd.Flags().IntVar(&zscoreLimit, "limit", 0, "Print only the last N rows (0 = all)")
}

func runZScore(cmd *cobra.Command, _ []string) error {
	a, err := loadApp(nil)
	if err != nil {
		return err
	}
	defer a.Close()

	ds, err := a.window(context.Background())
	if err != nil {
		return err
	}

	var points []model.ZScorePoint
	if zscoreSymbol != "" {
		points, err = monitor.SymbolZScores(ds, zscoreSymbol)
	} else {
		points, err = calculator.ZScores(ds)
	}
	if err != nil {
		return err
	}
	if zscoreLimit > 0 && len(points) > zscoreLimit {
		points = points[len(points)-zscoreLimit:]
	}

	out := cmd.OutOrStdout()
	if flagJSON {
		return renderJSON(out, points)
	}
	rows := make([][]string, len(points))
	for i, p := range points {
		rows[i] = []string{p.Symbol, p.Timestamp.Format(timeLayout), num(p.Price, 4), num(p.CVD, 2), signed(p.CVDZScore)}
	}
	renderTable(out, "CVD Z-Score", []string{"Symbol", "Time", "Price", "CVD", "Z"}, rows)
	return nil
}
