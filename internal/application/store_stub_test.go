package application

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/example/parking-occupancy/internal/persistence"
)

// memoryStore is an in-memory SessionStore and ReportStore. Units of work are
// serialised by a mutex, mirroring a store that takes its write lock up front.
type memoryStore struct {
	unitMu sync.Mutex
	mu     sync.Mutex

	sessions []ParkingSession
	nextID   int

	findErr   error
	insertErr error
	updateErr error
	countErr  error

	units     int
	snapshots int
}

func (m *memoryStore) WithinUnitOfWork(ctx context.Context, fn func(ctx context.Context) error) error {
	m.unitMu.Lock()
	defer m.unitMu.Unlock()

	m.mu.Lock()
	m.units++
	saved := append([]ParkingSession(nil), m.sessions...)
	m.mu.Unlock()

	if err := fn(ctx); err != nil {
		m.mu.Lock()
		m.sessions = saved
		m.mu.Unlock()
		return err
	}
	return nil
}

func (m *memoryStore) WithinSnapshot(ctx context.Context, fn func(ctx context.Context) error) error {
	m.mu.Lock()
	m.snapshots++
	m.mu.Unlock()
	return fn(ctx)
}

func (m *memoryStore) FindActiveByPlate(ctx context.Context, plate string) (ParkingSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.findErr != nil {
		return ParkingSession{}, m.findErr
	}
	for _, session := range m.sessions {
		if session.LicensePlate == plate && session.Active() {
			return session, nil
		}
	}
	return ParkingSession{}, persistence.ErrNotFound
}

func (m *memoryStore) Insert(ctx context.Context, session ParkingSession) (ParkingSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.insertErr != nil {
		return ParkingSession{}, m.insertErr
	}
	if session.Active() {
		for _, existing := range m.sessions {
			if existing.LicensePlate == session.LicensePlate && existing.Active() {
				return ParkingSession{}, persistence.ErrDuplicate
			}
		}
	}

	m.nextID++
	session.ID = fmt.Sprintf("session-%d", m.nextID)
	m.sessions = append(m.sessions, session)
	return session, nil
}

func (m *memoryStore) Update(ctx context.Context, session ParkingSession) (ParkingSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.updateErr != nil {
		return ParkingSession{}, m.updateErr
	}
	for i, existing := range m.sessions {
		if existing.ID != session.ID {
			continue
		}
		if !existing.Active() {
			return ParkingSession{}, persistence.ErrConflict
		}
		exit := *session.ExitTime
		m.sessions[i].ExitTime = &exit
		return m.sessions[i], nil
	}
	return ParkingSession{}, persistence.ErrNotFound
}

func (m *memoryStore) CountActive(ctx context.Context) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.countErr != nil {
		return 0, m.countErr
	}
	var n int64
	for _, session := range m.sessions {
		if session.Active() {
			n++
		}
	}
	return n, nil
}

func (m *memoryStore) AverageDurationSeconds(ctx context.Context, start, end time.Time) (float64, bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var total float64
	var n int
	for _, session := range m.sessions {
		if session.EntryTime.Before(start) || session.EntryTime.After(end) {
			continue
		}
		if d, ok := session.Duration(); ok {
			total += d.Seconds()
			n++
		}
	}
	if n == 0 {
		return 0, false, nil
	}
	return total / float64(n), true, nil
}

func (m *memoryStore) FindByEntryTimeRange(ctx context.Context, start, end time.Time) ([]ParkingSession, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var out []ParkingSession
	for _, session := range m.sessions {
		if !session.EntryTime.Before(start) && !session.EntryTime.After(end) {
			out = append(out, session)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].EntryTime.Equal(out[j].EntryTime) {
			return out[i].ID < out[j].ID
		}
		return out[i].EntryTime.Before(out[j].EntryTime)
	})
	return out, nil
}

func (m *memoryStore) add(session ParkingSession) ParkingSession {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.nextID++
	session.ID = fmt.Sprintf("session-%d", m.nextID)
	m.sessions = append(m.sessions, session)
	return session
}

func (m *memoryStore) activeCount(plate string) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	n := 0
	for _, session := range m.sessions {
		if session.LicensePlate == plate && session.Active() {
			n++
		}
	}
	return n
}

// fakeClock is a settable time source.
type fakeClock struct {
	mu      sync.Mutex
	current time.Time
}

func newFakeClock(t time.Time) *fakeClock {
	return &fakeClock{current: t}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.current
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	c.current = c.current.Add(d)
	c.mu.Unlock()
}

type recordingObserver struct {
	mu      sync.Mutex
	entries []string
	exits   []string
	parked  []time.Duration
}

func (o *recordingObserver) ObserveEntry(outcome string) {
	o.mu.Lock()
	o.entries = append(o.entries, outcome)
	o.mu.Unlock()
}

func (o *recordingObserver) ObserveExit(outcome string, parked time.Duration) {
	o.mu.Lock()
	o.exits = append(o.exits, outcome)
	o.parked = append(o.parked, parked)
	o.mu.Unlock()
}

var t0 = time.Date(2024, time.January, 2, 15, 4, 5, 0, time.UTC)

func ptrTime(t time.Time) *time.Time {
	return &t
}
