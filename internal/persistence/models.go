package persistence

import "time"

// ParkingSession is the stored form of one vehicle occupancy record.
//
// ExitTime is nil while the vehicle is still parked. VehicleClass holds the
// upper-case class code (SEDAN, SUV, TRUCK, MOTORCYCLE).
type ParkingSession struct {
	ID           string
	LicensePlate string
	VehicleClass string
	EntryTime    time.Time
	ExitTime     *time.Time
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Active reports whether the session has no recorded exit.
func (s ParkingSession) Active() bool {
	return s.ExitTime == nil
}

// BatchResult summarises an InsertBatch call.
type BatchResult struct {
	// Inserted holds the persisted sessions in input order, skipping rejected rows.
	Inserted []ParkingSession
	// Rejected holds the input indexes refused because the plate already had
	// an active session.
	Rejected []int
}

// CloneSession returns a copy that shares no pointers with the input.
func CloneSession(session ParkingSession) ParkingSession {
	clone := session
	if session.ExitTime != nil {
		exit := session.ExitTime.UTC()
		clone.ExitTime = &exit
	}
	return clone
}
