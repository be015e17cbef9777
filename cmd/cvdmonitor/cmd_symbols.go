package main

import (
	"context"

	"CVDMonitor/internal/collector"
	"CVDMonitor/internal/ranking"

	"github.com/spf13/cobra"
)

var symbolsCmd = &cobra.Command{
	Use:   "symbols",
	Short: "List symbols with their latest observation",
	RunE:  runSymbols,
}

func init() {
	rootCmd.AddCommand(symbolsCmd)
}

func runSymbols(cmd *cobra.Command, _ []string) error {
	a, err := loadApp(nil)
	if err != nil {
		return err
	}
	defer a.Close()

	ds, err := a.window(context.Background())
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if flagJSON {
		return renderJSON(out, collector.Symbols(ds))
	}
	latest := ranking.Latest(ds)
	rows := make([][]string, len(latest))
	for i, o := range latest {
		rows[i] = []string{o.Symbol, o.Timestamp.Format(timeLayout), num(o.Price, 4), num(o.CVD, 2)}
	}
	renderTable(out, "Symbols", []string{"Symbol", "Latest", "Price", "CVD"}, rows)
	return nil
}
