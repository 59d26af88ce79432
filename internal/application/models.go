package application

import (
	"fmt"
	"strings"
	"time"
)

// VehicleClass categorises the vehicle occupying a spot.
type VehicleClass string

const (
	VehicleClassSedan      VehicleClass = "SEDAN"
	VehicleClassSUV        VehicleClass = "SUV"
	VehicleClassTruck      VehicleClass = "TRUCK"
	VehicleClassMotorcycle VehicleClass = "MOTORCYCLE"
)

// VehicleClasses lists every supported class in declaration order.
func VehicleClasses() []VehicleClass {
	return []VehicleClass{VehicleClassSedan, VehicleClassSUV, VehicleClassTruck, VehicleClassMotorcycle}
}

// ParseVehicleClass resolves a class name case-insensitively.
func ParseVehicleClass(raw string) (VehicleClass, error) {
	candidate := VehicleClass(strings.ToUpper(strings.TrimSpace(raw)))
	for _, class := range VehicleClasses() {
		if candidate == class {
			return class, nil
		}
	}
	return "", fmt.Errorf("unknown vehicle class %q", raw)
}

// NormalizePlate trims and upper-cases a license plate.
func NormalizePlate(raw string) string {
	return strings.ToUpper(strings.TrimSpace(raw))
}

// ParkingSession is one stay of a vehicle in the facility. ExitTime is nil
// while the vehicle is parked.
type ParkingSession struct {
	ID           string
	LicensePlate string
	VehicleClass VehicleClass
	EntryTime    time.Time
	ExitTime     *time.Time
}

// Active reports whether the vehicle is still parked.
func (s ParkingSession) Active() bool {
	return s.ExitTime == nil
}

// Duration returns the length of a completed session.
func (s ParkingSession) Duration() (time.Duration, bool) {
	if s.ExitTime == nil {
		return 0, false
	}
	return s.ExitTime.Sub(s.EntryTime), true
}

// RegisterEntryParams wraps the data required to open a session.
type RegisterEntryParams struct {
	LicensePlate string
	VehicleClass string
}

// RegisterExitParams wraps the data required to close a session.
type RegisterExitParams struct {
	LicensePlate string
}

// ReportParams selects the window and declared capacity for a report.
type ReportParams struct {
	Start         time.Time
	End           time.Time
	TotalCapacity int
}

// Report summarises occupancy.
//
// Occupied counts every active session in the facility regardless of the
// window; only AvgDurationMinutes is scoped to sessions that entered within
// [Start, End]. Free may be negative when more vehicles are parked than the
// declared capacity.
type Report struct {
	Occupied           int64
	Free               int64
	AvgDurationMinutes float64
}

// ListSessionsParams selects sessions by entry time.
type ListSessionsParams struct {
	Start time.Time
	End   time.Time
}
