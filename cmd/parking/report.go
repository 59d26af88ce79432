package main

import (
	"context"
	"encoding/json"
	"io"

	"github.com/spf13/cobra"

	"github.com/example/parking-occupancy/internal/application"
)

func newReportCommand(a *app) *cobra.Command {
	var (
		start    string
		end      string
		capacity int
	)

	cmd := &cobra.Command{
		Use:   "report",
		Short: "Print an occupancy report as JSON",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if !cmd.Flags().Changed("capacity") {
				capacity = a.cfg.DefaultCapacity
			}
			return a.report(cmd.Context(), start, end, capacity, cmd.OutOrStdout())
		},
	}

	cmd.Flags().StringVar(&start, "start", "", "window start, RFC 3339 or ISO-8601 local date-time (UTC)")
	cmd.Flags().StringVar(&end, "end", "", "window end, RFC 3339 or ISO-8601 local date-time (UTC)")
	cmd.Flags().IntVar(&capacity, "capacity", application.DefaultTotalCapacity, "total spaces (defaults to PARKING_DEFAULT_CAPACITY)")
	_ = cmd.MarkFlagRequired("start")
	_ = cmd.MarkFlagRequired("end")
	return cmd
}

type reportOutput struct {
	Occupied           int64   `json:"occupied"`
	Free               int64   `json:"free"`
	AvgDurationMinutes float64 `json:"avgDurationMinutes"`
}

func (a *app) report(ctx context.Context, rawStart, rawEnd string, capacity int, out io.Writer) error {
	problems := map[string]string{}
	start, err := application.ParseTimestamp(rawStart)
	if err != nil {
		problems["start"] = err.Error()
	}
	end, err := application.ParseTimestamp(rawEnd)
	if err != nil {
		problems["end"] = err.Error()
	}
	if len(problems) > 0 {
		return &application.ValidationError{FieldErrors: problems}
	}
	params := application.ReportParams{Start: start, End: end, TotalCapacity: capacity}

	store, err := openStore(ctx, a.cfg, a.logger)
	if err != nil {
		return err
	}
	defer store.Close()

	report, err := application.NewReportServiceWithLogger(newSessionStoreAdapter(store), a.logger).GetReport(ctx, params)
	if err != nil {
		return err
	}

	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(reportOutput{
		Occupied:           report.Occupied,
		Free:               report.Free,
		AvgDurationMinutes: report.AvgDurationMinutes,
	})
}
