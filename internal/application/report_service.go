package application

import (
	"context"
	"fmt"
	"log/slog"
	"time"
)

// DefaultTotalCapacity is the capacity assumed when a caller does not declare one.
const DefaultTotalCapacity = 100

// ReportStore captures the read operations needed for reports. Calls made with
// the context passed to the WithinSnapshot callback observe one snapshot.
type ReportStore interface {
	CountActive(ctx context.Context) (int64, error)
	AverageDurationSeconds(ctx context.Context, start, end time.Time) (float64, bool, error)
	FindByEntryTimeRange(ctx context.Context, start, end time.Time) ([]ParkingSession, error)
	WithinSnapshot(ctx context.Context, fn func(ctx context.Context) error) error
}

// ReportService derives occupancy statistics from stored sessions.
type ReportService struct {
	store  ReportStore
	logger *slog.Logger
}

// NewReportService constructs a report service.
func NewReportService(store ReportStore) *ReportService {
	return NewReportServiceWithLogger(store, nil)
}

// NewReportServiceWithLogger constructs a report service with a specified logger.
func NewReportServiceWithLogger(store ReportStore, logger *slog.Logger) *ReportService {
	return &ReportService{store: store, logger: defaultLogger(logger)}
}

func (s *ReportService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "ReportService", operation, attrs...)
}

// GetReport computes occupancy for the declared capacity and the average
// duration of sessions that entered within [Start, End].
func (s *ReportService) GetReport(ctx context.Context, params ReportParams) (report Report, err error) {
	if s == nil {
		err = fmt.Errorf("ReportService is nil")
		return
	}

	logger := s.loggerWith(ctx, "GetReport",
		"start", params.Start,
		"end", params.End,
		"total_capacity", params.TotalCapacity,
	)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to build report", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("occupied", report.Occupied, "free", report.Free).InfoContext(ctx, "report built")
	}()

	vErr := validateWindow(params.Start, params.End)
	if params.TotalCapacity < 0 {
		vErr.add("totalCapacity", "total capacity must not be negative")
	}
	if vErr.HasErrors() {
		err = vErr
		return
	}
	if s.store == nil {
		err = fmt.Errorf("report store not configured")
		return
	}

	var (
		occupied   int64
		avgSeconds float64
		hasData    bool
	)
	err = s.store.WithinSnapshot(ctx, func(ctx context.Context) error {
		var err error
		occupied, err = s.store.CountActive(ctx)
		if err != nil {
			return fmt.Errorf("count active sessions: %w", err)
		}
		avgSeconds, hasData, err = s.store.AverageDurationSeconds(ctx, params.Start.UTC(), params.End.UTC())
		if err != nil {
			return fmt.Errorf("average duration: %w", err)
		}
		return nil
	})
	if err != nil {
		err = mapSessionRepoError("get report", err)
		return
	}

	report = Report{
		Occupied: occupied,
		Free:     int64(params.TotalCapacity) - occupied,
	}
	if hasData {
		report.AvgDurationMinutes = avgSeconds / 60
	}
	return
}

// ListSessions returns sessions that entered within [Start, End], ordered by
// entry time.
func (s *ReportService) ListSessions(ctx context.Context, params ListSessionsParams) (sessions []ParkingSession, err error) {
	if s == nil {
		err = fmt.Errorf("ReportService is nil")
		return
	}

	logger := s.loggerWith(ctx, "ListSessions", "start", params.Start, "end", params.End)
	defer func() {
		if err != nil {
			logger.ErrorContext(ctx, "failed to list sessions", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("result_count", len(sessions)).InfoContext(ctx, "sessions listed")
	}()

	if vErr := validateWindow(params.Start, params.End); vErr.HasErrors() {
		err = vErr
		return
	}
	if s.store == nil {
		err = fmt.Errorf("report store not configured")
		return
	}

	err = s.store.WithinSnapshot(ctx, func(ctx context.Context) error {
		var err error
		sessions, err = s.store.FindByEntryTimeRange(ctx, params.Start.UTC(), params.End.UTC())
		return err
	})
	if err != nil {
		sessions = nil
		err = mapSessionRepoError("list sessions", err)
		return
	}

	return
}

func validateWindow(start, end time.Time) *ValidationError {
	vErr := &ValidationError{}

	if start.IsZero() {
		vErr.add("start", "start is required")
	}
	if end.IsZero() {
		vErr.add("end", "end is required")
	}
	if !start.IsZero() && !end.IsZero() && start.After(end) {
		vErr.add("end", "end must not precede start")
	}

	return vErr
}
