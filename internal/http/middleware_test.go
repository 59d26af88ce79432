package http

import (
	"bytes"
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/example/parking-occupancy/internal/application"
	"github.com/example/parking-occupancy/internal/logging"
)

func TestRequestScopedLogger(t *testing.T) {
	t.Parallel()

	var scoped, fallback bytes.Buffer
	fallbackLogger := slog.New(slog.NewJSONHandler(&fallback, nil))

	ctx := logging.ContextWithLogger(context.Background(), slog.New(slog.NewJSONHandler(&scoped, nil)))
	requestLogger(ctx, fallbackLogger, "ParkingHandler", "Entry", "license_plate", "ABC").InfoContext(ctx, "hello")

	assert.Empty(t, fallback.String())
	assert.Contains(t, scoped.String(), `"handler":"ParkingHandler"`)
	assert.Contains(t, scoped.String(), `"operation":"Entry"`)
	assert.Contains(t, scoped.String(), `"license_plate":"ABC"`)

	requestLogger(context.Background(), fallbackLogger, "HealthHandler", "Healthz").Info("fallback")
	assert.Contains(t, fallback.String(), `"handler":"HealthHandler"`)
}

func TestRequestLogger(t *testing.T) {
	t.Parallel()

	t.Run("assigns request id and scoped logger", func(t *testing.T) {
		t.Parallel()

		var buf bytes.Buffer
		base := slog.New(slog.NewJSONHandler(&buf, nil))

		var (
			gotID     string
			hasLogger bool
		)
		handler := RequestLogger(base)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			gotID, _ = RequestIDFromContext(r.Context())
			hasLogger = LoggerFromContext(r.Context()) != nil
			w.WriteHeader(http.StatusTeapot)
		}))

		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/anything", nil))

		require.NotEmpty(t, gotID)
		assert.True(t, hasLogger)
		assert.Equal(t, gotID, rec.Header().Get(requestIDHeader))
		assert.Contains(t, buf.String(), `"request_id":"`+gotID+`"`)
		assert.Contains(t, buf.String(), `"status":418`)
	})

	t.Run("keeps client request id", func(t *testing.T) {
		t.Parallel()

		handler := RequestLogger(discardLogger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set(requestIDHeader, "abc-123")
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		assert.Equal(t, "abc-123", rec.Header().Get(requestIDHeader))
	})
}

func TestInstrument_UsesRouteTemplate(t *testing.T) {
	t.Parallel()

	observer := &fakeObserver{}
	router := NewRouter(RouterConfig{
		Parking:  NewParkingHandler(&fakeParkingService{err: application.ErrNoActiveSession}, discardLogger),
		Observer: observer,
	})

	rec := serve(t, router, http.MethodPost, "/api/v1/parking/exit", `{"licensePlate":"AB-123"}`)
	require.Equal(t, http.StatusNotFound, rec.Code)

	require.Len(t, observer.requests, 1)
	assert.Equal(t, observedRequest{method: http.MethodPost, route: "/api/v1/parking/exit", status: http.StatusNotFound}, observer.requests[0])
}
