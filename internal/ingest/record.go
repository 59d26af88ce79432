package ingest

import (
	"errors"
	"fmt"
	"strings"

	"github.com/example/parking-occupancy/internal/application"
	"github.com/example/parking-occupancy/internal/persistence"
)

// Columns is the expected CSV header.
var Columns = []string{"licensePlate", "carType", "entryTime", "exitTime"}

var (
	ErrMalformedRow    = errors.New("ingest: malformed row")
	ErrActiveDuplicate = errors.New("ingest: plate already has an active session")
)

// RowError describes a CSV row that was not imported.
type RowError struct {
	Line int
	Err  error
}

func (e RowError) Error() string {
	return fmt.Sprintf("line %d: %v", e.Line, e.Err)
}

func (e RowError) Unwrap() error {
	return e.Err
}

// parseRow converts one CSV record into a session ready for the store.
func parseRow(fields []string) (persistence.ParkingSession, error) {
	if len(fields) != len(Columns) {
		return persistence.ParkingSession{}, fmt.Errorf("%w: expected %d fields, got %d", ErrMalformedRow, len(Columns), len(fields))
	}

	plate := application.NormalizePlate(fields[0])
	if plate == "" {
		return persistence.ParkingSession{}, fmt.Errorf("%w: licensePlate is required", ErrMalformedRow)
	}

	class, err := application.ParseVehicleClass(fields[1])
	if err != nil {
		return persistence.ParkingSession{}, fmt.Errorf("%w: carType: %v", ErrMalformedRow, err)
	}

	entry, err := application.ParseTimestamp(fields[2])
	if err != nil {
		return persistence.ParkingSession{}, fmt.Errorf("%w: entryTime: %v", ErrMalformedRow, err)
	}

	session := persistence.ParkingSession{
		LicensePlate: plate,
		VehicleClass: string(class),
		EntryTime:    entry,
	}

	if raw := strings.TrimSpace(fields[3]); raw != "" {
		exit, err := application.ParseTimestamp(raw)
		if err != nil {
			return persistence.ParkingSession{}, fmt.Errorf("%w: exitTime: %v", ErrMalformedRow, err)
		}
		if exit.Before(entry) {
			return persistence.ParkingSession{}, fmt.Errorf("%w: exitTime precedes entryTime", ErrMalformedRow)
		}
		session.ExitTime = &exit
	}

	return session, nil
}
