package http

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/example/parking-occupancy/internal/application"
)

type reportService interface {
	GetReport(ctx context.Context, params application.ReportParams) (application.Report, error)
	ListSessions(ctx context.Context, params application.ListSessionsParams) ([]application.ParkingSession, error)
}

// ReportHandler serves occupancy reports and session listings.
type ReportHandler struct {
	service         reportService
	defaultCapacity int
	responder       responder
	logger          *slog.Logger
}

// NewReportHandler creates a handler that uses defaultCapacity when a report
// request omits totalCapacity.
func NewReportHandler(service reportService, defaultCapacity int, logger *slog.Logger) *ReportHandler {
	base := orDefault(logger)
	return &ReportHandler{
		service:         service,
		defaultCapacity: defaultCapacity,
		responder:       newResponder(base),
		logger:          base,
	}
}

// Report handles GET /api/v1/parking/report.
func (h *ReportHandler) Report(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	query := r.URL.Query()
	start, end, vErr := parseWindow(query.Get("start_date"), query.Get("end_date"))

	capacity := h.defaultCapacity
	if raw := strings.TrimSpace(query.Get("totalCapacity")); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			vErr = addFieldError(vErr, "totalCapacity", "total capacity must be an integer")
		} else {
			capacity = n
		}
	}
	if vErr != nil {
		requestLogger(r.Context(), h.logger, "ReportHandler", "Report", "error_kind", "validation").
			WarnContext(r.Context(), "invalid report query", "error", vErr)
		h.responder.handleServiceError(r.Context(), w, vErr)
		return
	}

	report, err := h.service.GetReport(r.Context(), application.ReportParams{
		Start:         start,
		End:           end,
		TotalCapacity: capacity,
	})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	h.responder.writeJSON(r.Context(), w, http.StatusOK, reportDTO{
		Occupied:           report.Occupied,
		Free:               report.Free,
		AvgDurationMinutes: report.AvgDurationMinutes,
	})
}

// Sessions handles GET /api/v1/parking/sessions.
func (h *ReportHandler) Sessions(w http.ResponseWriter, r *http.Request) {
	if h == nil || h.service == nil {
		http.Error(w, http.StatusText(http.StatusInternalServerError), http.StatusInternalServerError)
		return
	}

	query := r.URL.Query()
	start, end, vErr := parseWindow(query.Get("start_date"), query.Get("end_date"))
	if vErr != nil {
		h.responder.handleServiceError(r.Context(), w, vErr)
		return
	}

	sessions, err := h.service.ListSessions(r.Context(), application.ListSessionsParams{Start: start, End: end})
	if err != nil {
		h.responder.handleServiceError(r.Context(), w, err)
		return
	}

	resp := sessionListResponse{Sessions: make([]sessionDTO, 0, len(sessions))}
	for _, session := range sessions {
		resp.Sessions = append(resp.Sessions, toSessionDTO(session))
	}
	h.responder.writeJSON(r.Context(), w, http.StatusOK, resp)
}

func parseWindow(rawStart, rawEnd string) (time.Time, time.Time, *application.ValidationError) {
	var vErr *application.ValidationError

	start, err := parseQueryTime("start_date", rawStart)
	if err != nil {
		vErr = addFieldError(vErr, "start_date", err.Error())
	}
	end, err := parseQueryTime("end_date", rawEnd)
	if err != nil {
		vErr = addFieldError(vErr, "end_date", err.Error())
	}
	return start, end, vErr
}

func parseQueryTime(name, raw string) (time.Time, error) {
	if strings.TrimSpace(raw) == "" {
		return time.Time{}, fmt.Errorf("%s is required", name)
	}
	return application.ParseTimestamp(raw)
}

func addFieldError(vErr *application.ValidationError, field, message string) *application.ValidationError {
	if vErr == nil {
		return application.NewValidationError(field, message)
	}
	vErr.FieldErrors[field] = message
	return vErr
}

type reportDTO struct {
	Occupied           int64   `json:"occupied"`
	Free               int64   `json:"free"`
	AvgDurationMinutes float64 `json:"avgDurationMinutes"`
}

type sessionListResponse struct {
	Sessions []sessionDTO `json:"sessions"`
}
