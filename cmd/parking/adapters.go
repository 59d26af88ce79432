package main

import (
	"context"
	"time"

	"github.com/example/parking-occupancy/internal/application"
	"github.com/example/parking-occupancy/internal/persistence"
)

// sessionStoreAdapter exposes a persistence.SessionRepository as the
// application's SessionStore and ReportStore.
type sessionStoreAdapter struct {
	repo persistence.SessionRepository
}

func newSessionStoreAdapter(repo persistence.SessionRepository) *sessionStoreAdapter {
	return &sessionStoreAdapter{repo: repo}
}

func (a *sessionStoreAdapter) FindActiveByPlate(ctx context.Context, plate string) (application.ParkingSession, error) {
	stored, err := a.repo.FindActiveByPlate(ctx, plate)
	if err != nil {
		return application.ParkingSession{}, err
	}
	return toApplicationSession(stored), nil
}

func (a *sessionStoreAdapter) Insert(ctx context.Context, session application.ParkingSession) (application.ParkingSession, error) {
	stored, err := a.repo.Insert(ctx, toPersistenceSession(session))
	if err != nil {
		return application.ParkingSession{}, err
	}
	return toApplicationSession(stored), nil
}

func (a *sessionStoreAdapter) Update(ctx context.Context, session application.ParkingSession) (application.ParkingSession, error) {
	stored, err := a.repo.Update(ctx, toPersistenceSession(session))
	if err != nil {
		return application.ParkingSession{}, err
	}
	return toApplicationSession(stored), nil
}

func (a *sessionStoreAdapter) WithinUnitOfWork(ctx context.Context, fn func(ctx context.Context) error) error {
	return a.repo.WithinUnitOfWork(ctx, fn)
}

func (a *sessionStoreAdapter) CountActive(ctx context.Context) (int64, error) {
	return a.repo.CountActive(ctx)
}

func (a *sessionStoreAdapter) AverageDurationSeconds(ctx context.Context, start, end time.Time) (float64, bool, error) {
	return a.repo.AverageDurationSeconds(ctx, start, end)
}

func (a *sessionStoreAdapter) FindByEntryTimeRange(ctx context.Context, start, end time.Time) ([]application.ParkingSession, error) {
	models, err := a.repo.FindByEntryTimeRange(ctx, start, end)
	if err != nil {
		return nil, err
	}
	sessions := make([]application.ParkingSession, 0, len(models))
	for _, model := range models {
		sessions = append(sessions, toApplicationSession(model))
	}
	return sessions, nil
}

func (a *sessionStoreAdapter) WithinSnapshot(ctx context.Context, fn func(ctx context.Context) error) error {
	return a.repo.WithinSnapshot(ctx, fn)
}

func toApplicationSession(model persistence.ParkingSession) application.ParkingSession {
	session := application.ParkingSession{
		ID:           model.ID,
		LicensePlate: model.LicensePlate,
		VehicleClass: application.VehicleClass(model.VehicleClass),
		EntryTime:    model.EntryTime.UTC(),
	}
	if model.ExitTime != nil {
		exit := model.ExitTime.UTC()
		session.ExitTime = &exit
	}
	return session
}

func toPersistenceSession(session application.ParkingSession) persistence.ParkingSession {
	model := persistence.ParkingSession{
		ID:           session.ID,
		LicensePlate: session.LicensePlate,
		VehicleClass: string(session.VehicleClass),
		EntryTime:    session.EntryTime.UTC(),
	}
	if session.ExitTime != nil {
		exit := session.ExitTime.UTC()
		model.ExitTime = &exit
	}
	return model
}
