package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath  string
	flagHours   int
	flagSymbols []string
	flagJSON    bool
	flagDebug   bool
)

// rootCmd is the base command for the cvdmonitor CLI.
var rootCmd = &cobra.Command{
	Use:   "cvdmonitor",
	Short: "CVD z-score ranking and CVD/price divergence monitor",
	Long: `cvdmonitor normalizes cumulative volume delta per symbol, ranks symbols by
their latest volume, trade count or CVD, and detects periods where the CVD
trend and the price trend move in opposite directions.

Run 'cvdmonitor serve' for the scheduled monitor with Telegram delivery, or
use the one-shot commands to inspect the current data.`,
	SilenceUsage: true,
}

func init() {
	defaultConfig := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		defaultConfig = v
	}
	pf := rootCmd.PersistentFlags()
	pf.StringVar(&configPath, "config", defaultConfig, "Path to the YAML config file")
	pf.IntVar(&flagHours, "hours", 0, "Analysis horizon in hours (overrides analysis.hours)")
	pf.StringSliceVar(&flagSymbols, "symbols", nil, "Restrict to these symbols (comma separated)")
	pf.BoolVar(&flagJSON, "json", false, "Print JSON instead of tables")
	pf.BoolVar(&flagDebug, "debug", false, "Enable debug logging")
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
