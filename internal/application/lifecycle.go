package application

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/looplab/fsm"
)

// Per-plate lifecycle states and events.
const (
	StateNoActiveSession = "no_active_session"
	StateActive          = "active"
	StateCompleted       = "completed"

	EventEnter = "enter"
	EventExit  = "exit"
)

// sessionLifecycle drives one entry or exit for a single plate. It is built
// inside a unit of work from the plate's current active session and performs
// the store write as the side effect of entering the target state.
type sessionLifecycle struct {
	*fsm.FSM

	store   SessionStore
	now     func() time.Time
	session ParkingSession
}

func newSessionLifecycle(store SessionStore, now func() time.Time, active *ParkingSession) *sessionLifecycle {
	l := &sessionLifecycle{store: store, now: now}

	initial := StateNoActiveSession
	if active != nil {
		initial = StateActive
		l.session = *active
	}

	events := fsm.Events{
		{Name: EventEnter, Src: []string{StateNoActiveSession, StateCompleted}, Dst: StateActive},
		{Name: EventExit, Src: []string{StateActive}, Dst: StateCompleted},
	}

	callbacks := fsm.Callbacks{
		"enter_" + StateActive:    wrapEvent(l.actionEnterActive),
		"enter_" + StateCompleted: wrapEvent(l.actionEnterCompleted),
	}

	l.FSM = fsm.NewFSM(initial, events, callbacks)
	return l
}

func wrapEvent(fn func(ctx context.Context, event *fsm.Event) error) fsm.Callback {
	return func(ctx context.Context, event *fsm.Event) {
		if err := fn(ctx, event); err != nil {
			event.Err = err
		}
	}
}

// fire runs event and translates refused transitions into domain errors.
func (l *sessionLifecycle) fire(ctx context.Context, event string, args ...any) error {
	err := l.Event(ctx, event, args...)
	if err == nil {
		return nil
	}

	var invalid fsm.InvalidEventError
	if errors.As(err, &invalid) {
		switch event {
		case EventEnter:
			return ErrDuplicateActiveSession
		case EventExit:
			return ErrNoActiveSession
		}
	}
	return err
}

// actionEnterActive opens a new session. Args: plate string, class VehicleClass.
func (l *sessionLifecycle) actionEnterActive(ctx context.Context, e *fsm.Event) error {
	plate, _ := e.Args[0].(string)
	class, _ := e.Args[1].(VehicleClass)

	session := ParkingSession{
		LicensePlate: plate,
		VehicleClass: class,
		EntryTime:    l.now().UTC().Truncate(time.Millisecond),
	}

	persisted, err := l.store.Insert(ctx, session)
	if err != nil {
		return fmt.Errorf("insert session: %w", err)
	}
	l.session = persisted
	return nil
}

// actionEnterCompleted closes the active session. The exit time never
// precedes the entry time, even when the clock has moved backwards.
func (l *sessionLifecycle) actionEnterCompleted(ctx context.Context, e *fsm.Event) error {
	exit := l.now().UTC().Truncate(time.Millisecond)
	if exit.Before(l.session.EntryTime) {
		exit = l.session.EntryTime
	}

	closing := l.session
	closing.ExitTime = &exit

	persisted, err := l.store.Update(ctx, closing)
	if err != nil {
		return fmt.Errorf("update session: %w", err)
	}
	l.session = persisted
	return nil
}
