package main

import (
	"context"
	"strconv"

	"CVDMonitor/internal/ranking"

	"github.com/spf13/cobra"
)

var (
	rankMetric string
	rankTop    int
)

var rankCmd = &cobra.Command{
	Use:   "rank",
	Short: "Rank symbols by their latest period_volume, trade_count or cvd",
	Long: `Rank every symbol by the value of a metric at its latest observation.
Ties are broken by symbol name.

Examples:
  cvdmonitor rank
  cvdmonitor rank --metric cvd --top 5`,
	RunE: runRank,
}

func init() {
	rootCmd.AddCommand(rankCmd)
	rankCmd.Flags().StringVar(&rankMetric, "metric", "period_volume", "period_volume | trade_count | cvd")
	rankCmd.Flags().IntVar(&rankTop, "top", 0, "Show the top N rows (default ranking.top_n)")
}

func runRank(cmd *cobra.Command, _ []string) error {
	a, err := loadApp(nil)
	if err != nil {
		return err
	}
	defer a.Close()

	ds, err := a.window(context.Background())
	if err != nil {
		return err
	}
	rows, err := ranking.RankByName(ds, rankMetric)
	if err != nil {
		return err
	}
	top := rankTop
	if top <= 0 {
		top = a.cfg.Ranking.TopN
	}
	rows = ranking.Top(rows, top)

	out := cmd.OutOrStdout()
	if flagJSON {
		return renderJSON(out, rows)
	}
	cells := make([][]string, len(rows))
	for i, r := range rows {
		cells[i] = []string{strconv.Itoa(r.Rank), r.Symbol, num(r.Value, 2)}
	}
	renderTable(out, "Ranking by "+rankMetric, []string{"#", "Symbol", rankMetric}, cells)
	return nil
}
