package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics_Lifecycle(t *testing.T) {
	m := New()

	m.ObserveEntry("ok")
	m.ObserveEntry("ok")
	m.ObserveEntry("duplicate_active_session")
	m.ObserveExit("ok", 90*time.Minute)
	m.ObserveExit("no_active_session", 0)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.entries.WithLabelValues("ok")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.entries.WithLabelValues("duplicate_active_session")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.exits.WithLabelValues("no_active_session")))
	assert.Equal(t, 1, testutil.CollectAndCount(m.parkedDuration))
}

func TestMetrics_Import(t *testing.T) {
	m := New()

	m.ObserveBatch(8, 2, 10*time.Millisecond)
	m.ObserveBatch(3, 0, 5*time.Millisecond)
	m.ObserveRowRejected("malformed")
	m.ObserveRowRejected("duplicate_active")
	m.ObserveRowRejected("duplicate_active")

	assert.Equal(t, 11.0, testutil.ToFloat64(m.importRows.WithLabelValues("inserted")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.importRows.WithLabelValues("rejected_malformed")))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.importRows.WithLabelValues("rejected_duplicate_active")))

	totals, err := m.ImportRowTotals()
	require.NoError(t, err)
	assert.Equal(t, map[string]float64{
		"inserted":                  11,
		"rejected_malformed":        1,
		"rejected_duplicate_active": 2,
	}, totals)
}

func TestMetrics_Handler(t *testing.T) {
	m := New()
	m.ObserveHTTPRequest(http.MethodPost, "/api/v1/parking/entry", http.StatusCreated, 3*time.Millisecond)

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))

	require.Equal(t, http.StatusOK, rec.Code)
	body, err := io.ReadAll(rec.Body)
	require.NoError(t, err)

	text := string(body)
	assert.True(t, strings.Contains(text, `parking_http_requests_total{method="POST",route="/api/v1/parking/entry",status="201"} 1`), text)
	assert.True(t, strings.Contains(text, "go_goroutines"))
}
