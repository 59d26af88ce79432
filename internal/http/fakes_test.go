package http

import (
	"context"
	"time"

	"github.com/example/parking-occupancy/internal/application"
)

type fakeParkingService struct {
	entryParams application.RegisterEntryParams
	exitParams  application.RegisterExitParams
	session     application.ParkingSession
	err         error
}

func (f *fakeParkingService) RegisterEntry(_ context.Context, params application.RegisterEntryParams) (application.ParkingSession, error) {
	f.entryParams = params
	return f.session, f.err
}

func (f *fakeParkingService) RegisterExit(_ context.Context, params application.RegisterExitParams) (application.ParkingSession, error) {
	f.exitParams = params
	return f.session, f.err
}

type fakeReportService struct {
	reportParams application.ReportParams
	listParams   application.ListSessionsParams
	report       application.Report
	sessions     []application.ParkingSession
	err          error
}

func (f *fakeReportService) GetReport(_ context.Context, params application.ReportParams) (application.Report, error) {
	f.reportParams = params
	return f.report, f.err
}

func (f *fakeReportService) ListSessions(_ context.Context, params application.ListSessionsParams) ([]application.ParkingSession, error) {
	f.listParams = params
	return f.sessions, f.err
}

type fakePinger struct {
	err error
}

func (f fakePinger) Ping(context.Context) error {
	return f.err
}

type observedRequest struct {
	method string
	route  string
	status int
}

type fakeObserver struct {
	requests []observedRequest
}

func (f *fakeObserver) ObserveHTTPRequest(method, route string, status int, _ time.Duration) {
	f.requests = append(f.requests, observedRequest{method: method, route: route, status: status})
}

var entryTime = time.Date(2024, 3, 1, 8, 0, 0, 0, time.UTC)
