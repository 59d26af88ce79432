package testfixtures

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/example/parking-occupancy/internal/application"
	"github.com/example/parking-occupancy/internal/persistence"
)

var sessionCounter uint64

var referenceTime = time.Date(2024, time.January, 2, 15, 4, 5, 0, time.UTC)

// ReferenceTime returns the canonical baseline timestamp used by fixtures.
func ReferenceTime() time.Time {
	return referenceTime
}

// SessionFixture is a deterministic parking session that can be materialised
// for application or persistence tests. ID stays empty so stores assign one.
type SessionFixture struct {
	ID           string
	LicensePlate string
	VehicleClass application.VehicleClass
	EntryTime    time.Time
	ExitTime     *time.Time
}

// SessionOption configures the generated session fixture.
type SessionOption func(*SessionFixture)

// NewSessionFixture returns an active sedan session with a unique plate,
// entering one minute apart from the previous fixture.
func NewSessionFixture(opts ...SessionOption) SessionFixture {
	idx := atomic.AddUint64(&sessionCounter, 1)
	fixture := SessionFixture{
		LicensePlate: fmt.Sprintf("FX-%04d", idx),
		VehicleClass: application.VehicleClassSedan,
		EntryTime:    referenceTime.Add(time.Duration(idx) * time.Minute),
	}
	for _, opt := range opts {
		opt(&fixture)
	}
	return fixture
}

// WithSessionID sets a fixed session ID.
func WithSessionID(id string) SessionOption {
	return func(f *SessionFixture) {
		f.ID = id
	}
}

// WithSessionPlate overrides the plate. It is normalised like live input.
func WithSessionPlate(plate string) SessionOption {
	return func(f *SessionFixture) {
		f.LicensePlate = application.NormalizePlate(plate)
	}
}

// WithSessionClass overrides the vehicle class.
func WithSessionClass(class application.VehicleClass) SessionOption {
	return func(f *SessionFixture) {
		f.VehicleClass = class
	}
}

// WithSessionEntry overrides the entry time.
func WithSessionEntry(t time.Time) SessionOption {
	return func(f *SessionFixture) {
		f.EntryTime = t
	}
}

// WithSessionExit marks the session completed at t.
func WithSessionExit(t time.Time) SessionOption {
	return func(f *SessionFixture) {
		f.ExitTime = &t
	}
}

// WithSessionCompletedAfter marks the session completed d after its entry.
// Apply it after any entry override.
func WithSessionCompletedAfter(d time.Duration) SessionOption {
	return func(f *SessionFixture) {
		exit := f.EntryTime.Add(d)
		f.ExitTime = &exit
	}
}

// Application converts the fixture to the application model.
func (f SessionFixture) Application() application.ParkingSession {
	return application.ParkingSession{
		ID:           f.ID,
		LicensePlate: f.LicensePlate,
		VehicleClass: f.VehicleClass,
		EntryTime:    f.EntryTime,
		ExitTime:     copyTime(f.ExitTime),
	}
}

// Persistence converts the fixture to the persistence model.
func (f SessionFixture) Persistence() persistence.ParkingSession {
	return persistence.ParkingSession{
		ID:           f.ID,
		LicensePlate: f.LicensePlate,
		VehicleClass: string(f.VehicleClass),
		EntryTime:    f.EntryTime,
		ExitTime:     copyTime(f.ExitTime),
	}
}

func copyTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
