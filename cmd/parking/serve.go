package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/example/parking-occupancy/internal/application"
	httptransport "github.com/example/parking-occupancy/internal/http"
	"github.com/example/parking-occupancy/internal/metrics"
	"github.com/example/parking-occupancy/internal/persistence"
)

func newServeCommand(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return a.serve(cmd.Context())
		},
	}
}

func (a *app) serve(ctx context.Context) error {
	store, err := openStore(ctx, a.cfg, a.logger)
	if err != nil {
		a.logger.Error("failed to open storage", "error", err)
		return err
	}
	defer func() {
		if cerr := store.Close(); cerr != nil {
			a.logger.Error("failed to close storage", "error", cerr)
		}
	}()

	server := &http.Server{
		Addr:              a.cfg.HTTPAddr,
		Handler:           newHandler(store, metrics.New(), a.cfg.DefaultCapacity, a.logger),
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       30 * time.Second,
		WriteTimeout:      30 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		a.logger.Info("parking API listening", "addr", server.Addr, "store", a.cfg.StoreDriver)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(gctx), a.cfg.ShutdownTimeout)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil && !errors.Is(err, http.ErrServerClosed) {
			a.logger.Error("failed to shutdown server", "error", err)
			return err
		}
		a.logger.Info("parking API stopped")
		return nil
	})

	if err := g.Wait(); err != nil {
		a.logger.Error("server encountered error", "error", err)
		return err
	}
	return nil
}

// newHandler wires services, handlers and middleware around store.
func newHandler(store persistence.Store, m *metrics.Metrics, defaultCapacity int, logger *slog.Logger) http.Handler {
	adapter := newSessionStoreAdapter(store)

	parkingService := application.NewParkingServiceWithLogger(adapter, time.Now, logger)
	parkingService.SetObserver(m)
	reportService := application.NewReportServiceWithLogger(adapter, logger)

	return httptransport.NewRouter(httptransport.RouterConfig{
		Parking:    httptransport.NewParkingHandler(parkingService, logger),
		Reports:    httptransport.NewReportHandler(reportService, defaultCapacity, logger),
		Health:     httptransport.NewHealthHandler(store, logger),
		Metrics:    m.Handler(),
		Observer:   m,
		Middleware: []func(http.Handler) http.Handler{httptransport.RequestLogger(logger)},
	})
}
