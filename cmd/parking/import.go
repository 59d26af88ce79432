package main

import (
	"context"
	"fmt"
	"io"
	"maps"
	"os"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/example/parking-occupancy/internal/ingest"
	"github.com/example/parking-occupancy/internal/metrics"
)

func newImportCommand(a *app) *cobra.Command {
	var batchSize int

	cmd := &cobra.Command{
		Use:   "import <file.csv>",
		Short: "Import historical sessions from a CSV file",
		Long: "Imports rows of licensePlate,carType,entryTime,exitTime. The first line is a header. " +
			"Rows whose plate already has an active session, and malformed rows, are reported and skipped.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !cmd.Flags().Changed("batch-size") {
				batchSize = a.cfg.ImportBatchSize
			}
			return a.importFile(cmd.Context(), args[0], batchSize, cmd.OutOrStdout())
		},
	}

	cmd.Flags().IntVar(&batchSize, "batch-size", ingest.DefaultBatchSize, "rows written per transaction (defaults to PARKING_IMPORT_BATCH_SIZE)")
	return cmd
}

func (a *app) importFile(ctx context.Context, path string, batchSize int, out io.Writer) error {
	if batchSize <= 0 {
		return fmt.Errorf("batch size must be positive, got %d", batchSize)
	}

	file, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open import file: %w", err)
	}
	defer file.Close()

	store, err := openStore(ctx, a.cfg, a.logger)
	if err != nil {
		return err
	}
	defer store.Close()

	m := metrics.New()
	importer := ingest.NewImporter(store,
		ingest.WithBatchSize(batchSize),
		ingest.WithLogger(a.logger),
		ingest.WithObserver(m),
	)
	summary, err := importer.Import(ctx, file)
	printSummary(out, summary)

	totals, gatherErr := m.ImportRowTotals()
	if gatherErr != nil {
		a.logger.WarnContext(ctx, "failed to gather import metrics", "error", gatherErr)
		return err
	}
	printRowTotals(out, totals)
	return err
}

func printRowTotals(out io.Writer, totals map[string]float64) {
	if len(totals) == 0 {
		return
	}
	pairs := make([]string, 0, len(totals))
	for _, result := range slices.Sorted(maps.Keys(totals)) {
		pairs = append(pairs, fmt.Sprintf("%s=%.0f", result, totals[result]))
	}
	fmt.Fprintf(out, "rows %s\n", strings.Join(pairs, " "))
}

func printSummary(out io.Writer, summary ingest.Summary) {
	fmt.Fprintf(out, "read=%d inserted=%d rejected=%d\n", summary.Read, summary.Inserted, len(summary.Rejected))
	for _, rejected := range summary.Rejected {
		fmt.Fprintf(out, "  %s\n", rejected.Error())
	}
}
