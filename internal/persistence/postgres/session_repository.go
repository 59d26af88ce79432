package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"

	"github.com/example/parking-occupancy/internal/persistence"
)

const sessionColumns = `id, license_plate, vehicle_class, entry_time, exit_time, created_at, updated_at`

// FindActiveByPlate returns the active session for plate. Inside a unit of
// work the row is locked until the transaction ends.
func (s *Storage) FindActiveByPlate(ctx context.Context, plate string) (persistence.ParkingSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM parking_sessions WHERE license_plate = $1 AND exit_time IS NULL`
	if lockRows(ctx) {
		query += ` FOR UPDATE`
	}

	session, err := scanSession(s.reader(ctx).QueryRow(ctx, query, plate))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return persistence.ParkingSession{}, persistence.ErrNotFound
		}
		return persistence.ParkingSession{}, mapError("find active session", err)
	}
	return session, nil
}

// Insert stores a new session, returning persistence.ErrDuplicate when the
// plate already has an active session.
func (s *Storage) Insert(ctx context.Context, session persistence.ParkingSession) (persistence.ParkingSession, error) {
	db, err := s.writer(ctx)
	if err != nil {
		return persistence.ParkingSession{}, err
	}

	session = s.prepareInsert(session)
	query := `
		INSERT INTO parking_sessions (` + sessionColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		ON CONFLICT (license_plate) WHERE exit_time IS NULL DO NOTHING`

	tag, err := db.Exec(ctx, query,
		session.ID,
		session.LicensePlate,
		session.VehicleClass,
		session.EntryTime,
		session.ExitTime,
		session.CreatedAt,
		session.UpdatedAt,
	)
	if err != nil {
		return persistence.ParkingSession{}, mapError("insert session", err)
	}
	if tag.RowsAffected() == 0 {
		return persistence.ParkingSession{}, fmt.Errorf("%w: plate %s already has an active session", persistence.ErrDuplicate, session.LicensePlate)
	}

	return session, nil
}

// InsertBatch inserts sessions in one transaction, reporting rows refused for
// an already active plate by index.
func (s *Storage) InsertBatch(ctx context.Context, sessions []persistence.ParkingSession) (persistence.BatchResult, error) {
	var result persistence.BatchResult

	err := s.WithinUnitOfWork(ctx, func(ctx context.Context) error {
		result = persistence.BatchResult{Inserted: make([]persistence.ParkingSession, 0, len(sessions))}

		for i, session := range sessions {
			inserted, err := s.Insert(ctx, session)
			if errors.Is(err, persistence.ErrDuplicate) {
				result.Rejected = append(result.Rejected, i)
				continue
			}
			if err != nil {
				return fmt.Errorf("batch row %d: %w", i, err)
			}
			result.Inserted = append(result.Inserted, inserted)
		}
		return nil
	})
	if err != nil {
		return persistence.BatchResult{}, err
	}

	return result, nil
}

// Update records the exit time of an active session.
func (s *Storage) Update(ctx context.Context, session persistence.ParkingSession) (persistence.ParkingSession, error) {
	if session.ExitTime == nil {
		return persistence.ParkingSession{}, fmt.Errorf("%w: exit time is required", persistence.ErrConstraintViolation)
	}

	db, err := s.writer(ctx)
	if err != nil {
		return persistence.ParkingSession{}, err
	}

	query := `
		UPDATE parking_sessions SET exit_time = $1, updated_at = $2
		WHERE id = $3 AND exit_time IS NULL
		RETURNING ` + sessionColumns

	exit := session.ExitTime.UTC().Truncate(time.Millisecond)
	updatedAt := s.now().UTC().Truncate(time.Millisecond)

	stored, err := scanSession(db.QueryRow(ctx, query, exit, updatedAt, session.ID))
	if err == nil {
		return stored, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return persistence.ParkingSession{}, mapError("update session", err)
	}

	if _, err := s.findByID(ctx, session.ID); err != nil {
		return persistence.ParkingSession{}, err
	}
	return persistence.ParkingSession{}, fmt.Errorf("%w: session %s is already closed", persistence.ErrConflict, session.ID)
}

// CountActive returns the number of sessions without an exit time.
func (s *Storage) CountActive(ctx context.Context) (int64, error) {
	return s.count(ctx, "count active sessions", `SELECT COUNT(*) FROM parking_sessions WHERE exit_time IS NULL`)
}

// CountCompleted returns the number of sessions with an exit time.
func (s *Storage) CountCompleted(ctx context.Context) (int64, error) {
	return s.count(ctx, "count completed sessions", `SELECT COUNT(*) FROM parking_sessions WHERE exit_time IS NOT NULL`)
}

// AverageDurationSeconds averages the duration of completed sessions whose
// entry time lies in [start, end].
func (s *Storage) AverageDurationSeconds(ctx context.Context, start, end time.Time) (float64, bool, error) {
	query := `
		SELECT AVG(EXTRACT(EPOCH FROM (exit_time - entry_time)))::double precision
		FROM parking_sessions
		WHERE exit_time IS NOT NULL AND entry_time >= $1 AND entry_time <= $2`

	var avg *float64
	if err := s.reader(ctx).QueryRow(ctx, query, start.UTC(), end.UTC()).Scan(&avg); err != nil {
		return 0, false, mapError("average duration", err)
	}
	if avg == nil {
		return 0, false, nil
	}
	return *avg, true, nil
}

// FindByEntryTimeRange lists sessions whose entry time lies in [start, end].
func (s *Storage) FindByEntryTimeRange(ctx context.Context, start, end time.Time) ([]persistence.ParkingSession, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM parking_sessions
		WHERE entry_time >= $1 AND entry_time <= $2
		ORDER BY entry_time ASC, id ASC`

	rows, err := s.reader(ctx).Query(ctx, query, start.UTC(), end.UTC())
	if err != nil {
		return nil, mapError("list sessions", err)
	}
	defer rows.Close()

	sessions := make([]persistence.ParkingSession, 0)
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, mapError("scan session", err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, mapError("iterate sessions", err)
	}

	return sessions, nil
}

func (s *Storage) findByID(ctx context.Context, id string) (persistence.ParkingSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM parking_sessions WHERE id = $1`

	session, err := scanSession(s.reader(ctx).QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return persistence.ParkingSession{}, persistence.ErrNotFound
		}
		return persistence.ParkingSession{}, mapError("get session", err)
	}
	return session, nil
}

func (s *Storage) count(ctx context.Context, op, query string) (int64, error) {
	var n int64
	if err := s.reader(ctx).QueryRow(ctx, query).Scan(&n); err != nil {
		return 0, mapError(op, err)
	}
	return n, nil
}

func (s *Storage) prepareInsert(session persistence.ParkingSession) persistence.ParkingSession {
	session = persistence.CloneSession(session)
	if session.ID == "" {
		session.ID = uuid.NewString()
	}

	now := s.now().UTC().Truncate(time.Millisecond)
	if session.CreatedAt.IsZero() {
		session.CreatedAt = now
	}
	if session.UpdatedAt.IsZero() {
		session.UpdatedAt = session.CreatedAt
	}

	session.EntryTime = session.EntryTime.UTC().Truncate(time.Millisecond)
	session.CreatedAt = session.CreatedAt.UTC().Truncate(time.Millisecond)
	session.UpdatedAt = session.UpdatedAt.UTC().Truncate(time.Millisecond)
	if session.ExitTime != nil {
		exit := session.ExitTime.UTC().Truncate(time.Millisecond)
		session.ExitTime = &exit
	}
	return session
}

func scanSession(row pgx.Row) (persistence.ParkingSession, error) {
	var session persistence.ParkingSession
	if err := row.Scan(
		&session.ID,
		&session.LicensePlate,
		&session.VehicleClass,
		&session.EntryTime,
		&session.ExitTime,
		&session.CreatedAt,
		&session.UpdatedAt,
	); err != nil {
		return persistence.ParkingSession{}, err
	}

	session.EntryTime = session.EntryTime.UTC()
	session.CreatedAt = session.CreatedAt.UTC()
	session.UpdatedAt = session.UpdatedAt.UTC()
	if session.ExitTime != nil {
		exit := session.ExitTime.UTC()
		session.ExitTime = &exit
	}
	return session, nil
}
