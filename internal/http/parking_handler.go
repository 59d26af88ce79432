package http

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/example/parking-occupancy/internal/application"
)

const maxRequestBody = 1 << 20

type parkingService interface {
	RegisterEntry(ctx context.Context, params application.RegisterEntryParams) (application.ParkingSession, error)
	RegisterExit(ctx context.Context, params application.RegisterExitParams) (application.ParkingSession, error)
}

// ParkingHandler serves vehicle entry and exit.
type ParkingHandler struct {
	service   parkingService
	responder responder
	logger    *slog.Logger
}

// NewParkingHandler constructs a ParkingHandler backed by service.
func NewParkingHandler(service parkingService, logger *slog.Logger) *ParkingHandler {
	base := orDefault(logger)
	return &ParkingHandler{service: service, responder: newResponder(base), logger: base}
}

func (h *ParkingHandler) log(ctx context.Context, operation string, attrs ...any) *slog.Logger {
	if h == nil {
		return slog.Default()
	}
	return requestLogger(ctx, h.logger, "ParkingHandler", operation, attrs...)
}

// Entry handles POST /api/v1/parking/entry and responds 201 with the opened session.
func (h *ParkingHandler) Entry(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req entryRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.log(r.Context(), "Entry", "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode entry request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, codeBadRequest, errBadRequestBody)
		return
	}

	session, err := h.service.RegisterEntry(r.Context(), application.RegisterEntryParams{
		LicensePlate: req.LicensePlate,
		VehicleClass: req.class(),
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusCreated, toSessionDTO(session))
}

// Exit handles POST /api/v1/parking/exit and responds with the closed session.
func (h *ParkingHandler) Exit(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	var req exitRequest
	if err := decodeBody(w, r, &req); err != nil {
		h.log(r.Context(), "Exit", "error_kind", "bad_request").WarnContext(r.Context(), "failed to decode exit request", "error", err)
		h.responder.writeError(r.Context(), w, http.StatusBadRequest, codeBadRequest, errBadRequestBody)
		return
	}

	session, err := h.service.RegisterExit(r.Context(), application.RegisterExitParams{LicensePlate: req.LicensePlate})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, toSessionDTO(session))
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBody)
	return json.NewDecoder(r.Body).Decode(dst)
}

type entryRequest struct {
	LicensePlate string `json:"licensePlate"`
	CarType      string `json:"carType"`
	VehicleClass string `json:"vehicleClass"`
}

func (r entryRequest) class() string {
	if r.CarType != "" {
		return r.CarType
	}
	return r.VehicleClass
}

type exitRequest struct {
	LicensePlate string `json:"licensePlate"`
}

type sessionDTO struct {
	ID           string     `json:"id"`
	LicensePlate string     `json:"licensePlate"`
	VehicleClass string     `json:"vehicleClass"`
	EntryTime    time.Time  `json:"entryTime"`
	ExitTime     *time.Time `json:"exitTime,omitempty"`
}

func toSessionDTO(session application.ParkingSession) sessionDTO {
	dto := sessionDTO{
		ID:           session.ID,
		LicensePlate: session.LicensePlate,
		VehicleClass: string(session.VehicleClass),
		EntryTime:    session.EntryTime.UTC(),
	}
	if session.ExitTime != nil {
		exit := session.ExitTime.UTC()
		dto.ExitTime = &exit
	}
	return dto
}
