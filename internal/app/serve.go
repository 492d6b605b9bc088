package app

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"

	"lead-recon/internal/httpapi"
	"lead-recon/internal/metrics"
)

// Serve runs the HTTP API, plus the alert monitor when alerting is enabled.
func (a *App) Serve(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, closeStore, err := a.openCache(ctx)
	if err != nil {
		return err
	}
	defer closeStore()

	m := metrics.New()
	svc, err := a.newService(m.InstrumentCache(store))
	if err != nil {
		return err
	}
	engine := a.newEngine(store, m)
	if dash, ok := engine.Dashboard(); ok {
		m.WatchDashboard(dash)
	}

	if a.Config.Alerting.Enabled {
		monitor, err := a.newMonitor(engine, svc)
		if err != nil {
			return err
		}
		monitor.Start(ctx)
		defer monitor.Stop(a.Config.Alerting.StopTimeout)
	} else {
		a.Logger.Info().Msg("alerting disabled; background monitor not started")
	}

	srv := &http.Server{
		Addr: a.Config.HTTP.Addr,
		Handler: httpapi.NewRouter(httpapi.Deps{
			Reconciler: svc,
			Engine:     engine,
			Metrics:    m.Handler(),
			Targets:    a.targets(),
			Logger:     a.Logger,
		}),
		ReadTimeout:  a.Config.HTTP.ReadTimeout,
		WriteTimeout: a.Config.HTTP.WriteTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		a.Logger.Info().Str("addr", srv.Addr).Msg("http api listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return err
		}
	case <-ctx.Done():
	}

	shutdownCtx, cancelShutdown := context.WithTimeout(context.Background(), a.Config.HTTP.ShutdownTimeout)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		a.Logger.Error().Err(err).Msg("http shutdown failed")
		return err
	}
	a.Logger.Info().Msg("http api stopped")
	return nil
}
