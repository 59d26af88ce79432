package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/example/parking-occupancy/internal/persistence"
)

const sessionColumns = `id, license_plate, vehicle_class, entry_time, exit_time, created_at, updated_at`

// SessionRepository implements persistence.SessionRepository for SQLite.
type SessionRepository struct {
	pool   *ConnectionPool
	helper *QueryHelper
	mapper *ErrorMapper
	now    func() time.Time
}

// NewSessionRepository creates a new SQLite session repository.
func NewSessionRepository(pool *ConnectionPool) *SessionRepository {
	return &SessionRepository{
		pool:   pool,
		helper: NewQueryHelper(pool),
		mapper: NewErrorMapper(),
		now:    time.Now,
	}
}

// FindActiveByPlate returns the session for plate that has no exit time.
func (r *SessionRepository) FindActiveByPlate(ctx context.Context, plate string) (persistence.ParkingSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM parking_sessions WHERE license_plate = ? AND exit_time IS NULL`

	session, err := scanSession(r.helper.QueryRow(ctx, query, plate))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.ParkingSession{}, persistence.ErrNotFound
		}
		return persistence.ParkingSession{}, r.mapError("find active session", err)
	}
	return session, nil
}

// Insert stores a new session. Inserting an active session for a plate that
// already has one affects no rows and returns persistence.ErrDuplicate.
func (r *SessionRepository) Insert(ctx context.Context, session persistence.ParkingSession) (persistence.ParkingSession, error) {
	session = r.prepareInsert(session)

	query := `
		INSERT INTO parking_sessions (` + sessionColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (license_plate) WHERE exit_time IS NULL DO NOTHING`

	result, err := r.helper.Exec(ctx, query,
		session.ID,
		session.LicensePlate,
		session.VehicleClass,
		toMillis(session.EntryTime),
		nullableMillis(session.ExitTime),
		toMillis(session.CreatedAt),
		toMillis(session.UpdatedAt),
	)
	if err != nil {
		return persistence.ParkingSession{}, r.mapError("insert session", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return persistence.ParkingSession{}, r.mapError("insert session", err)
	}
	if rowsAffected == 0 {
		return persistence.ParkingSession{}, fmt.Errorf("%w: plate %s already has an active session", persistence.ErrDuplicate, session.LicensePlate)
	}

	return session, nil
}

// InsertBatch inserts sessions in one transaction. Rows refused because their
// plate already has an active session are reported by index; any other error
// rolls back the whole batch.
func (r *SessionRepository) InsertBatch(ctx context.Context, sessions []persistence.ParkingSession) (persistence.BatchResult, error) {
	var result persistence.BatchResult

	err := r.pool.WithTransaction(ctx, func(ctx context.Context) error {
		result = persistence.BatchResult{Inserted: make([]persistence.ParkingSession, 0, len(sessions))}

		for i, session := range sessions {
			inserted, err := r.Insert(ctx, session)
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

// Update records the exit time of an active session. A session that has
// already been closed returns persistence.ErrConflict.
func (r *SessionRepository) Update(ctx context.Context, session persistence.ParkingSession) (persistence.ParkingSession, error) {
	if session.ExitTime == nil {
		return persistence.ParkingSession{}, fmt.Errorf("%w: exit time is required", persistence.ErrConstraintViolation)
	}

	updatedAt := r.now().UTC()
	query := `UPDATE parking_sessions SET exit_time = ?, updated_at = ? WHERE id = ? AND exit_time IS NULL`

	result, err := r.helper.Exec(ctx, query, toMillis(*session.ExitTime), toMillis(updatedAt), session.ID)
	if err != nil {
		return persistence.ParkingSession{}, r.mapError("update session", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return persistence.ParkingSession{}, r.mapError("update session", err)
	}

	stored, err := r.findByID(ctx, session.ID)
	if err != nil {
		return persistence.ParkingSession{}, err
	}
	if rowsAffected == 0 {
		return persistence.ParkingSession{}, fmt.Errorf("%w: session %s is already closed", persistence.ErrConflict, session.ID)
	}

	return stored, nil
}

// CountActive returns the number of sessions without an exit time.
func (r *SessionRepository) CountActive(ctx context.Context) (int64, error) {
	return r.count(ctx, "count active sessions", `SELECT COUNT(*) FROM parking_sessions WHERE exit_time IS NULL`)
}

// CountCompleted returns the number of sessions with an exit time.
func (r *SessionRepository) CountCompleted(ctx context.Context) (int64, error) {
	return r.count(ctx, "count completed sessions", `SELECT COUNT(*) FROM parking_sessions WHERE exit_time IS NOT NULL`)
}

// AverageDurationSeconds averages exit_time - entry_time over completed
// sessions whose entry time lies in [start, end].
func (r *SessionRepository) AverageDurationSeconds(ctx context.Context, start, end time.Time) (float64, bool, error) {
	query := `
		SELECT AVG((exit_time - entry_time) / 1000.0)
		FROM parking_sessions
		WHERE exit_time IS NOT NULL AND entry_time >= ? AND entry_time <= ?`

	var avg sql.NullFloat64
	if err := r.helper.QueryRow(ctx, query, ceilMillis(start), toMillis(end)).Scan(&avg); err != nil {
		return 0, false, r.mapError("average duration", err)
	}
	if !avg.Valid {
		return 0, false, nil
	}
	return avg.Float64, true, nil
}

// FindByEntryTimeRange lists sessions whose entry time lies in [start, end],
// ordered by entry time then ID.
func (r *SessionRepository) FindByEntryTimeRange(ctx context.Context, start, end time.Time) ([]persistence.ParkingSession, error) {
	query := `
		SELECT ` + sessionColumns + `
		FROM parking_sessions
		WHERE entry_time >= ? AND entry_time <= ?
		ORDER BY entry_time ASC, id ASC`

	rows, err := r.helper.Query(ctx, query, ceilMillis(start), toMillis(end))
	if err != nil {
		return nil, r.mapError("list sessions", err)
	}
	defer rows.Close()

	sessions := make([]persistence.ParkingSession, 0)
	for rows.Next() {
		session, err := scanSession(rows)
		if err != nil {
			return nil, r.mapError("scan session", err)
		}
		sessions = append(sessions, session)
	}
	if err := rows.Err(); err != nil {
		return nil, r.mapError("iterate sessions", err)
	}

	return sessions, nil
}

// WithinUnitOfWork runs fn inside a write transaction.
func (r *SessionRepository) WithinUnitOfWork(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.pool.WithTransaction(ctx, fn)
}

// WithinSnapshot runs fn inside a read-only snapshot.
func (r *SessionRepository) WithinSnapshot(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.pool.WithReadOnlyTransaction(ctx, fn)
}

func (r *SessionRepository) findByID(ctx context.Context, id string) (persistence.ParkingSession, error) {
	query := `SELECT ` + sessionColumns + ` FROM parking_sessions WHERE id = ?`

	session, err := scanSession(r.helper.QueryRow(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return persistence.ParkingSession{}, persistence.ErrNotFound
		}
		return persistence.ParkingSession{}, r.mapError("get session", err)
	}
	return session, nil
}

func (r *SessionRepository) count(ctx context.Context, op, query string) (int64, error) {
	var n int64
	if err := r.helper.QueryRow(ctx, query).Scan(&n); err != nil {
		return 0, r.mapError(op, err)
	}
	return n, nil
}

func (r *SessionRepository) prepareInsert(session persistence.ParkingSession) persistence.ParkingSession {
	session = persistence.CloneSession(session)
	if session.ID == "" {
		session.ID = uuid.NewString()
	}

	now := r.now().UTC().Truncate(time.Millisecond)
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

func (r *SessionRepository) mapError(op string, err error) error {
	return fmt.Errorf("sqlite: %s: %w", op, r.mapper.MapError(err))
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanSession(row rowScanner) (persistence.ParkingSession, error) {
	var (
		session   persistence.ParkingSession
		entry     int64
		exit      sql.NullInt64
		createdAt int64
		updatedAt int64
	)

	if err := row.Scan(&session.ID, &session.LicensePlate, &session.VehicleClass, &entry, &exit, &createdAt, &updatedAt); err != nil {
		return persistence.ParkingSession{}, err
	}

	session.EntryTime = fromMillis(entry)
	session.CreatedAt = fromMillis(createdAt)
	session.UpdatedAt = fromMillis(updatedAt)
	if exit.Valid {
		exitTime := fromMillis(exit.Int64)
		session.ExitTime = &exitTime
	}

	return session, nil
}

func toMillis(t time.Time) int64 {
	return t.UTC().UnixMilli()
}

// ceilMillis rounds a lower window bound up so a sub-millisecond start never
// admits rows stored at the preceding millisecond.
func ceilMillis(t time.Time) int64 {
	ns := t.UTC().UnixNano()
	ms := ns / int64(time.Millisecond)
	if ns%int64(time.Millisecond) > 0 {
		ms++
	}
	return ms
}

func fromMillis(ms int64) time.Time {
	return time.UnixMilli(ms).UTC()
}

func nullableMillis(t *time.Time) sql.NullInt64 {
	if t == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: toMillis(*t), Valid: true}
}
