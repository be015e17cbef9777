package main

import (
	"context"

	"CVDMonitor/internal/collector"

	"github.com/pkg/errors"
	"github.com/spf13/cobra"
)

var (
	importCSV    string
	importSQLite string
	importTable  string
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Load a CSV export into a SQLite observation table",
	Long: `Validate a CSV export and upsert it into SQLite keyed by (symbol, timestamp),
so the monitor can read it with data_source.sqlite_path.

Example:
  cvdmonitor import --csv exports/cvd.csv --sqlite data/cvd.db`,
	RunE: runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.Flags().StringVar(&importCSV, "csv", "", "CSV file to read")
	importCmd.Flags().StringVar(&importSQLite, "sqlite", "", "SQLite database to write")
	importCmd.Flags().StringVar(&importTable, "table", collector.DefaultTable, "Destination table")
}

func runImport(cmd *cobra.Command, _ []string) error {
	if importCSV == "" || importSQLite == "" {
		return errors.New("--csv and --sqlite are required")
	}
	ctx := context.Background()

	ds, err := collector.NewCSVSource(importCSV, collector.NoRounding).Load(ctx)
	if err != nil {
		return err
	}
	dst, err := collector.NewSQLiteSource(importSQLite, importTable, collector.NoRounding)
	if err != nil {
		return err
	}
	defer dst.Close()

	n, err := dst.Import(ctx, ds)
	if err != nil {
		return err
	}
	renderNote(cmd.OutOrStdout(), "imported %d rows (%d symbols) into %s", n, len(collector.Symbols(ds)), importTable)
	return nil
}
