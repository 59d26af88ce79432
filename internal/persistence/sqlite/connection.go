package sqlite

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"errors"
	"fmt"
	"strings"

	"github.com/example/parking-occupancy/internal/persistence"
	"github.com/example/parking-occupancy/internal/persistence/sqlite/migration"
	sqlitedriver "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

// ConnectionPool manages SQLite connections and context-scoped transactions.
type ConnectionPool struct {
	db     *sql.DB
	config migration.SQLiteConfig
	mapper *ErrorMapper
}

// NewConnectionPool opens a configured SQLite connection pool.
func NewConnectionPool(ctx context.Context, config migration.SQLiteConfig) (*ConnectionPool, error) {
	db, err := migration.OpenDatabase(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	return &ConnectionPool{
		db:     db,
		config: config,
		mapper: NewErrorMapper(),
	}, nil
}

// DB returns the underlying database handle.
func (cp *ConnectionPool) DB() *sql.DB {
	return cp.db
}

// Close closes the connection pool.
func (cp *ConnectionPool) Close() error {
	if cp.db != nil {
		return cp.db.Close()
	}
	return nil
}

// Ping tests the database connection.
func (cp *ConnectionPool) Ping(ctx context.Context) error {
	return cp.db.PingContext(ctx)
}

// queryer is satisfied by *sql.DB and *sql.Conn.
type queryer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type txKey struct{}

type txState struct {
	conn     *sql.Conn
	writable bool
}

func txFromContext(ctx context.Context) (*txState, bool) {
	state, ok := ctx.Value(txKey{}).(*txState)
	return state, ok
}

// TransactionFunc runs inside a transaction. Repository calls made with ctx join it.
type TransactionFunc func(ctx context.Context) error

// WithTransaction runs fn inside a write transaction. The write lock is taken
// up front with BEGIN IMMEDIATE, so concurrent writers queue on busy_timeout
// instead of failing at their first write. Calls nested inside an existing
// write transaction join it.
func (cp *ConnectionPool) WithTransaction(ctx context.Context, fn TransactionFunc) error {
	if state, ok := txFromContext(ctx); ok {
		if !state.writable {
			return errors.New("sqlite: write transaction requested inside a read-only transaction")
		}
		return fn(ctx)
	}
	return cp.run(ctx, "BEGIN IMMEDIATE", true, fn)
}

// WithReadOnlyTransaction runs fn inside a deferred transaction. In WAL mode
// every read in fn observes the same snapshot and never blocks writers.
func (cp *ConnectionPool) WithReadOnlyTransaction(ctx context.Context, fn TransactionFunc) error {
	if _, ok := txFromContext(ctx); ok {
		return fn(ctx)
	}
	return cp.run(ctx, "BEGIN DEFERRED", false, fn)
}

func (cp *ConnectionPool) run(ctx context.Context, begin string, writable bool, fn TransactionFunc) error {
	conn, err := cp.db.Conn(ctx)
	if err != nil {
		return fmt.Errorf("failed to acquire connection: %w", cp.mapper.MapError(err))
	}
	defer conn.Close()

	if _, err := conn.ExecContext(ctx, begin); err != nil {
		return fmt.Errorf("failed to begin transaction: %w", cp.mapper.MapError(err))
	}

	defer func() {
		if p := recover(); p != nil {
			rollback(conn)
			panic(p)
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, &txState{conn: conn, writable: writable})); err != nil {
		rollback(conn)
		return err
	}

	// The caller giving up after fn succeeded must not undo the work.
	if _, err := conn.ExecContext(context.WithoutCancel(ctx), "COMMIT"); err != nil {
		rollback(conn)
		return fmt.Errorf("failed to commit transaction: %w", cp.mapper.MapError(err))
	}

	return nil
}

// rollback ends the transaction on conn. A connection whose rollback fails is
// discarded so it cannot return to the pool with a transaction still open.
func rollback(conn *sql.Conn) {
	if _, err := conn.ExecContext(context.Background(), "ROLLBACK"); err != nil {
		_ = conn.Raw(func(any) error { return driver.ErrBadConn })
	}
}

// QueryHelper routes statements to the transaction carried by ctx, or to the
// pool when there is none.
type QueryHelper struct {
	pool *ConnectionPool
}

// NewQueryHelper creates a new query helper.
func NewQueryHelper(pool *ConnectionPool) *QueryHelper {
	return &QueryHelper{pool: pool}
}

func (qh *QueryHelper) reader(ctx context.Context) queryer {
	if state, ok := txFromContext(ctx); ok {
		return state.conn
	}
	return qh.pool.db
}

func (qh *QueryHelper) writer(ctx context.Context) (queryer, error) {
	if state, ok := txFromContext(ctx); ok {
		if !state.writable {
			return nil, errors.New("sqlite: write attempted inside a read-only transaction")
		}
		return state.conn, nil
	}
	return qh.pool.db, nil
}

// QueryRow executes a query that returns a single row.
func (qh *QueryHelper) QueryRow(ctx context.Context, query string, args ...any) *sql.Row {
	return qh.reader(ctx).QueryRowContext(ctx, query, args...)
}

// Query executes a query that returns multiple rows.
func (qh *QueryHelper) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	return qh.reader(ctx).QueryContext(ctx, query, args...)
}

// Exec executes a statement that modifies data.
func (qh *QueryHelper) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	w, err := qh.writer(ctx)
	if err != nil {
		return nil, err
	}
	return w.ExecContext(ctx, query, args...)
}

// ErrorMapper maps SQLite errors to persistence layer errors.
type ErrorMapper struct{}

// NewErrorMapper creates a new error mapper.
func NewErrorMapper() *ErrorMapper {
	return &ErrorMapper{}
}

// MapError wraps SQLite-specific errors with the matching persistence sentinel.
func (em *ErrorMapper) MapError(err error) error {
	if err == nil {
		return nil
	}

	if isMapped(err) {
		return err
	}

	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %v", persistence.ErrNotFound, err)
	}

	var sqliteErr *sqlitedriver.Error
	if errors.As(err, &sqliteErr) {
		code := sqliteErr.Code()
		switch code {
		case sqlite3.SQLITE_CONSTRAINT_UNIQUE, sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY:
			return fmt.Errorf("%w: %v", persistence.ErrDuplicate, err)
		case sqlite3.SQLITE_CONSTRAINT_CHECK, sqlite3.SQLITE_CONSTRAINT_NOTNULL, sqlite3.SQLITE_CONSTRAINT_FOREIGNKEY:
			return fmt.Errorf("%w: %v", persistence.ErrConstraintViolation, err)
		}
		switch code & 0xff {
		case sqlite3.SQLITE_BUSY, sqlite3.SQLITE_LOCKED:
			return fmt.Errorf("%w: %v", persistence.ErrConflict, err)
		}
	}

	// Fall back to message matching for errors wrapped by the driver.
	msg := err.Error()
	switch {
	case strings.Contains(msg, "UNIQUE constraint failed"):
		return fmt.Errorf("%w: %v", persistence.ErrDuplicate, err)
	case strings.Contains(msg, "CHECK constraint failed"), strings.Contains(msg, "NOT NULL constraint failed"):
		return fmt.Errorf("%w: %v", persistence.ErrConstraintViolation, err)
	case strings.Contains(msg, "database is locked"), strings.Contains(msg, "SQLITE_BUSY"):
		return fmt.Errorf("%w: %v", persistence.ErrConflict, err)
	}

	return err
}

func isMapped(err error) bool {
	return errors.Is(err, persistence.ErrNotFound) ||
		errors.Is(err, persistence.ErrDuplicate) ||
		errors.Is(err, persistence.ErrConflict) ||
		errors.Is(err, persistence.ErrConstraintViolation)
}
