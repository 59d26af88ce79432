package http

import (
	"net/http"

	"github.com/gorilla/mux"
)

// RouterConfig lists the handlers mounted by NewRouter. Nil handlers are
// skipped.
type RouterConfig struct {
	Parking *ParkingHandler
	Reports *ReportHandler
	Health  *HealthHandler
	Metrics http.Handler
	// Observer, when set, records per-route request metrics.
	Observer RequestObserver
	// Middleware wraps the whole router, outermost first.
	Middleware []func(http.Handler) http.Handler
}

// NewRouter wires the parking, report, health and metrics endpoints.
func NewRouter(cfg RouterConfig) http.Handler {
	router := mux.NewRouter()
	router.StrictSlash(true)

	if cfg.Observer != nil {
		router.Use(Instrument(cfg.Observer))
	}

	api := router.PathPrefix("/api/v1/parking").Subrouter()
	if cfg.Parking != nil {
		api.HandleFunc("/entry", cfg.Parking.Entry).Methods(http.MethodPost)
		api.HandleFunc("/exit", cfg.Parking.Exit).Methods(http.MethodPost)
	}
	if cfg.Reports != nil {
		api.HandleFunc("/report", cfg.Reports.Report).Methods(http.MethodGet)
		api.HandleFunc("/sessions", cfg.Reports.Sessions).Methods(http.MethodGet)
	}

	if cfg.Health != nil {
		router.HandleFunc("/healthz", cfg.Health.Healthz).Methods(http.MethodGet)
	}
	if cfg.Metrics != nil {
		router.Handle("/metrics", cfg.Metrics).Methods(http.MethodGet)
	}

	var handler http.Handler = router
	for i := len(cfg.Middleware) - 1; i >= 0; i-- {
		if cfg.Middleware[i] != nil {
			handler = cfg.Middleware[i](handler)
		}
	}

	return handler
}
