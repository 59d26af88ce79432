package application

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/example/parking-occupancy/internal/persistence"
)

// SessionStore captures the persistence operations needed by the lifecycle.
// Calls made with the context passed to the WithinUnitOfWork callback share
// one transaction.
type SessionStore interface {
	FindActiveByPlate(ctx context.Context, plate string) (ParkingSession, error)
	Insert(ctx context.Context, session ParkingSession) (ParkingSession, error)
	Update(ctx context.Context, session ParkingSession) (ParkingSession, error)
	WithinUnitOfWork(ctx context.Context, fn func(ctx context.Context) error) error
}

// LifecycleObserver is notified of every entry and exit outcome. Outcome is
// "ok" or an ErrorKind label.
type LifecycleObserver interface {
	ObserveEntry(outcome string)
	ObserveExit(outcome string, parked time.Duration)
}

// ParkingService registers vehicle entries and exits while keeping at most
// one active session per license plate.
type ParkingService struct {
	store    SessionStore
	now      func() time.Time
	logger   *slog.Logger
	observer LifecycleObserver
}

// NewParkingService constructs a parking service with the provided dependencies.
func NewParkingService(store SessionStore, now func() time.Time) *ParkingService {
	return NewParkingServiceWithLogger(store, now, nil)
}

// NewParkingServiceWithLogger constructs a parking service with a specified logger.
func NewParkingServiceWithLogger(store SessionStore, now func() time.Time, logger *slog.Logger) *ParkingService {
	if now == nil {
		now = time.Now
	}
	return &ParkingService{store: store, now: now, logger: defaultLogger(logger)}
}

// SetObserver registers an observer for lifecycle outcomes.
func (s *ParkingService) SetObserver(observer LifecycleObserver) {
	s.observer = observer
}

func (s *ParkingService) loggerWith(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	return serviceLogger(ctx, s.logger, "ParkingService", operation, attrs...)
}

// RegisterEntry opens a session for the plate. It fails with
// ErrDuplicateActiveSession when the plate is already parked.
func (s *ParkingService) RegisterEntry(ctx context.Context, params RegisterEntryParams) (session ParkingSession, err error) {
	if s == nil {
		err = fmt.Errorf("ParkingService is nil")
		return
	}

	plate := NormalizePlate(params.LicensePlate)
	logger := s.loggerWith(ctx, "RegisterEntry", "license_plate", plate)
	defer func() {
		if s.observer != nil {
			s.observer.ObserveEntry(outcome(err))
		}
		if err != nil {
			logger.ErrorContext(ctx, "failed to register entry", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("session_id", session.ID, "vehicle_class", session.VehicleClass).InfoContext(ctx, "entry registered")
	}()

	class, vErr := validateEntry(params)
	if vErr.HasErrors() {
		err = vErr
		return
	}
	if s.store == nil {
		err = fmt.Errorf("session store not configured")
		return
	}

	err = s.store.WithinUnitOfWork(ctx, func(ctx context.Context) error {
		lifecycle, err := s.lifecycleFor(ctx, plate)
		if err != nil {
			return err
		}
		if err := lifecycle.fire(ctx, EventEnter, plate, class); err != nil {
			return err
		}
		session = lifecycle.session
		return nil
	})
	if err != nil {
		session = ParkingSession{}
		err = mapSessionRepoError("register entry", err)
		return
	}

	return
}

// RegisterExit closes the plate's active session. It fails with
// ErrNoActiveSession, and changes nothing, when the plate is not parked.
func (s *ParkingService) RegisterExit(ctx context.Context, params RegisterExitParams) (session ParkingSession, err error) {
	if s == nil {
		err = fmt.Errorf("ParkingService is nil")
		return
	}

	plate := NormalizePlate(params.LicensePlate)
	logger := s.loggerWith(ctx, "RegisterExit", "license_plate", plate)
	defer func() {
		if s.observer != nil {
			parked, _ := session.Duration()
			s.observer.ObserveExit(outcome(err), parked)
		}
		if err != nil {
			logger.ErrorContext(ctx, "failed to register exit", "error", err, "error_kind", ErrorKind(err))
			return
		}
		logger.With("session_id", session.ID).InfoContext(ctx, "exit registered")
	}()

	if plate == "" {
		err = NewValidationError("licensePlate", "license plate is required")
		return
	}
	if s.store == nil {
		err = fmt.Errorf("session store not configured")
		return
	}

	err = s.store.WithinUnitOfWork(ctx, func(ctx context.Context) error {
		lifecycle, err := s.lifecycleFor(ctx, plate)
		if err != nil {
			return err
		}
		if err := lifecycle.fire(ctx, EventExit); err != nil {
			return err
		}
		session = lifecycle.session
		return nil
	})
	if err != nil {
		session = ParkingSession{}
		err = mapSessionRepoError("register exit", err)
		return
	}

	return
}

func (s *ParkingService) lifecycleFor(ctx context.Context, plate string) (*sessionLifecycle, error) {
	active, err := s.store.FindActiveByPlate(ctx, plate)
	switch {
	case err == nil:
		return newSessionLifecycle(s.store, s.now, &active), nil
	case errors.Is(err, persistence.ErrNotFound), errors.Is(err, ErrNotFound):
		return newSessionLifecycle(s.store, s.now, nil), nil
	default:
		return nil, fmt.Errorf("find active session: %w", err)
	}
}

func validateEntry(params RegisterEntryParams) (VehicleClass, *ValidationError) {
	vErr := &ValidationError{}

	if NormalizePlate(params.LicensePlate) == "" {
		vErr.add("licensePlate", "license plate is required")
	}

	var class VehicleClass
	if strings.TrimSpace(params.VehicleClass) == "" {
		vErr.add("vehicleClass", "vehicle class is required")
	} else {
		parsed, err := ParseVehicleClass(params.VehicleClass)
		if err != nil {
			vErr.add("vehicleClass", "vehicle class must be one of SEDAN, SUV, TRUCK, MOTORCYCLE")
		}
		class = parsed
	}

	return class, vErr
}

func mapSessionRepoError(op string, err error) error {
	if err == nil {
		return nil
	}

	var vErr *ValidationError
	var cErr *ConflictError
	switch {
	case errors.Is(err, ErrNoActiveSession), errors.Is(err, ErrDuplicateActiveSession):
		return err
	case errors.As(err, &vErr), errors.As(err, &cErr):
		return err
	case errors.Is(err, persistence.ErrDuplicate):
		return ErrDuplicateActiveSession
	case errors.Is(err, persistence.ErrConflict):
		return &ConflictError{Op: op, Err: err}
	case errors.Is(err, persistence.ErrNotFound):
		return fmt.Errorf("%w: %s: %v", ErrNotFound, op, err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	return ErrorKind(err)
}
