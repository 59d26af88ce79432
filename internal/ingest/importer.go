// Package ingest loads historical parking sessions from CSV files.
//
// Rows flow through three stages connected by bounded channels: a reader
// that decodes CSV records, a transformer that validates them, and a writer
// that persists fixed-size batches through the store's conditional insert.
package ingest

import (
	"cmp"
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/example/parking-occupancy/internal/persistence"
)

// DefaultBatchSize is the number of rows written per transaction.
const DefaultBatchSize = 10

// BatchInserter is the store surface the importer writes through.
type BatchInserter interface {
	InsertBatch(ctx context.Context, sessions []persistence.ParkingSession) (persistence.BatchResult, error)
}

// Observer receives per-batch outcomes.
type Observer interface {
	ObserveBatch(inserted, rejected int, elapsed time.Duration)
	ObserveRowRejected(reason string)
}

// Summary reports the outcome of an import.
type Summary struct {
	Read     int
	Inserted int
	Rejected []RowError
}

// Importer streams CSV rows into a store.
type Importer struct {
	store     BatchInserter
	batchSize int
	retry     *persistence.RetryHelper
	logger    *slog.Logger
	observer  Observer
}

// Option configures an Importer.
type Option func(*Importer)

// WithBatchSize sets the rows per batch. Non-positive values are ignored.
func WithBatchSize(n int) Option {
	return func(im *Importer) {
		if n > 0 {
			im.batchSize = n
		}
	}
}

// WithRetryConfig overrides the backoff used when a batch hits a store conflict.
func WithRetryConfig(cfg persistence.RetryConfig) Option {
	return func(im *Importer) {
		im.retry = persistence.NewRetryHelper(cfg)
	}
}

// WithLogger sets the logger used for progress and rejected rows.
func WithLogger(logger *slog.Logger) Option {
	return func(im *Importer) {
		if logger != nil {
			im.logger = logger
		}
	}
}

// WithObserver registers an observer for batch and rejection outcomes.
func WithObserver(observer Observer) Option {
	return func(im *Importer) {
		im.observer = observer
	}
}

// NewImporter creates an importer writing to store.
func NewImporter(store BatchInserter, opts ...Option) *Importer {
	im := &Importer{
		store:     store,
		batchSize: DefaultBatchSize,
		retry:     persistence.NewRetryHelper(persistence.DefaultRetryConfig()),
		logger:    slog.New(slog.NewTextHandler(io.Discard, nil)),
	}
	for _, opt := range opts {
		opt(im)
	}
	return im
}

type record struct {
	line   int
	fields []string
	err    error
}

func (rec record) session() (persistence.ParkingSession, error) {
	if rec.err != nil {
		return persistence.ParkingSession{}, rec.err
	}
	return parseRow(rec.fields)
}

type row struct {
	line    int
	session persistence.ParkingSession
	err     error
}

// Import reads CSV from r, skipping the header line, and stores every valid
// row. Malformed rows and rows whose plate already has an active session are
// listed in the summary by line number; a store failure aborts the import and is returned
// together with the partial summary.
func (im *Importer) Import(ctx context.Context, r io.Reader) (Summary, error) {
	records := make(chan record, im.batchSize)
	rows := make(chan row, im.batchSize)

	var summary Summary
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(records)
		return im.read(ctx, r, records)
	})

	g.Go(func() error {
		defer close(rows)
		for rec := range records {
			session, err := rec.session()
			select {
			case rows <- row{line: rec.line, session: session, err: err}:
			case <-ctx.Done():
				return ctx.Err()
			}
		}
		return nil
	})

	g.Go(func() error {
		return im.write(ctx, rows, &summary)
	})

	err := g.Wait()
	slices.SortStableFunc(summary.Rejected, func(a, b RowError) int {
		return cmp.Compare(a.Line, b.Line)
	})
	im.logger.InfoContext(ctx, "import finished",
		slog.Int("read", summary.Read),
		slog.Int("inserted", summary.Inserted),
		slog.Int("rejected", len(summary.Rejected)),
	)
	if err != nil {
		return summary, fmt.Errorf("ingest: %w", err)
	}
	return summary, nil
}

func (im *Importer) read(ctx context.Context, r io.Reader, out chan<- record) error {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header := true
	for {
		fields, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return nil
		}

		rec := record{fields: fields}
		if err != nil {
			var parseErr *csv.ParseError
			if !errors.As(err, &parseErr) {
				return fmt.Errorf("read csv: %w", err)
			}
			rec = record{line: parseErr.StartLine, err: fmt.Errorf("%w: %v", ErrMalformedRow, parseErr.Err)}
		} else {
			rec.line, _ = reader.FieldPos(0)
		}

		if header {
			header = false
			if rec.err == nil {
				continue
			}
		}

		select {
		case out <- rec:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (im *Importer) write(ctx context.Context, in <-chan row, summary *Summary) error {
	batch := make([]persistence.ParkingSession, 0, im.batchSize)
	lines := make([]int, 0, im.batchSize)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := im.flush(ctx, batch, lines, summary); err != nil {
			return err
		}
		batch = batch[:0]
		lines = lines[:0]
		return nil
	}

	for r := range in {
		summary.Read++
		if r.err != nil {
			im.reject(ctx, summary, r.line, r.err, "malformed")
			continue
		}

		batch = append(batch, r.session)
		lines = append(lines, r.line)
		if len(batch) == im.batchSize {
			if err := flush(); err != nil {
				return err
			}
		}
	}

	if err := ctx.Err(); err != nil {
		return err
	}
	return flush()
}

func (im *Importer) flush(ctx context.Context, batch []persistence.ParkingSession, lines []int, summary *Summary) error {
	started := time.Now()

	var result persistence.BatchResult
	err := im.retry.WithRetry(ctx, func() error {
		var err error
		result, err = im.store.InsertBatch(ctx, batch)
		return err
	})
	if err != nil {
		return fmt.Errorf("write batch starting at line %d: %w", lines[0], err)
	}

	summary.Inserted += len(result.Inserted)
	for _, idx := range result.Rejected {
		im.reject(ctx, summary, lines[idx], ErrActiveDuplicate, "duplicate_active")
	}

	if im.observer != nil {
		im.observer.ObserveBatch(len(result.Inserted), len(result.Rejected), time.Since(started))
	}
	im.logger.DebugContext(ctx, "batch written",
		slog.Int("first_line", lines[0]),
		slog.Int("inserted", len(result.Inserted)),
		slog.Int("rejected", len(result.Rejected)),
	)
	return nil
}

func (im *Importer) reject(ctx context.Context, summary *Summary, line int, err error, reason string) {
	summary.Rejected = append(summary.Rejected, RowError{Line: line, Err: err})
	if im.observer != nil {
		im.observer.ObserveRowRejected(reason)
	}
	im.logger.WarnContext(ctx, "row rejected", slog.Int("line", line), slog.String("reason", reason), slog.Any("error", err))
}
