// Package httpapi serves KPIs and alert operations over HTTP.
package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"

	"lead-recon/internal/alerting"
	"lead-recon/internal/kpi"
	"lead-recon/internal/service"
)

const dateLayout = "2006-01-02"

// Reconciler produces snapshots. *service.Service implements it.
type Reconciler interface {
	CurrentWindow() service.Window
	Snapshot(ctx context.Context, w service.Window) (service.Snapshot, error)
}

// Deps are the handlers' collaborators. Metrics may be nil.
type Deps struct {
	Reconciler Reconciler
	Engine     *alerting.Engine
	Metrics    http.Handler
	Targets    kpi.Targets
	Logger     zerolog.Logger
}

type api struct {
	Deps
	logger zerolog.Logger
}

// NewRouter wires the routes.
func NewRouter(deps Deps) http.Handler {
	a := &api{Deps: deps, logger: deps.Logger.With().Str("component", "httpapi").Logger()}

	mux := chi.NewRouter()
	mux.Use(RequestID)
	mux.Use(middleware.Recoverer)
	mux.Use(Logger(a.logger))

	mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	if deps.Metrics != nil {
		mux.Method(http.MethodGet, "/metrics", deps.Metrics)
	}

	mux.Route("/api", func(r chi.Router) {
		r.Get("/kpis", a.kpis)
		r.Get("/alerts", a.listAlerts)
		r.Post("/alerts/check", a.checkAlerts)
		r.Post("/alerts/{id}/ack", a.ackAlert)
		r.Get("/dashboard/alerts", a.dashboardAlerts)
	})
	return mux
}

// kpis returns the snapshot for ?since&until (default: configured lookback),
// or per-group summaries when ?dimension is set.
func (a *api) kpis(w http.ResponseWriter, r *http.Request) {
	win, err := a.window(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	dim := kpi.Dimension(r.URL.Query().Get("dimension"))
	if dim != "" && !dim.Valid() {
		writeError(w, http.StatusBadRequest, fmt.Errorf("unknown dimension %q", dim))
		return
	}
	snap, err := a.Reconciler.Snapshot(r.Context(), win)
	if err != nil {
		writeError(w, http.StatusBadGateway, err)
		return
	}

	if dim != "" {
		writeJSON(w, http.StatusOK, kpi.ByDimension(snap.Match.Rows, dim, a.Targets))
		return
	}
	writeJSON(w, http.StatusOK, snap)
}

func (a *api) window(r *http.Request) (service.Window, error) {
	win := a.Reconciler.CurrentWindow()
	q := r.URL.Query()
	if v := q.Get("since"); v != "" {
		t, err := time.Parse(dateLayout, v)
		if err != nil {
			return win, errors.New("since must be YYYY-MM-DD")
		}
		win.Since = t
	}
	if v := q.Get("until"); v != "" {
		t, err := time.Parse(dateLayout, v)
		if err != nil {
			return win, errors.New("until must be YYYY-MM-DD")
		}
		win.Until = t
	}
	if win.Until.Before(win.Since) {
		return win, errors.New("until is before since")
	}
	return win, nil
}

func (a *api) listAlerts(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			writeError(w, http.StatusBadRequest, errors.New("limit must be a non-negative integer"))
			return
		}
		limit = n
	}
	alerts, err := a.Engine.History().List(r.Context(), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	writeJSON(w, http.StatusOK, alerts)
}

func (a *api) checkAlerts(w http.ResponseWriter, r *http.Request) {
	snap, err := a.Reconciler.Snapshot(r.Context(), a.Reconciler.CurrentWindow())
	if err != nil {
		res := a.Engine.ReportFailure(r.Context(), alerting.SourceOf(err, "reconcile"), err)
		writeJSON(w, http.StatusBadGateway, map[string]any{"error": err.Error(), "result": res})
		return
	}
	writeJSON(w, http.StatusOK, a.Engine.CheckNow(r.Context(), snap.Match.Rows))
}

func (a *api) ackAlert(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	found, err := a.Engine.Acknowledge(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err)
		return
	}
	if !found {
		writeError(w, http.StatusNotFound, errors.New("alert not found"))
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"id": id, "acknowledged": true})
}

// dashboardAlerts supports ?severity= and ?unacknowledged=true.
func (a *api) dashboardAlerts(w http.ResponseWriter, r *http.Request) {
	dash, ok := a.Engine.Dashboard()
	if !ok {
		writeError(w, http.StatusNotFound, errors.New("dashboard channel not enabled"))
		return
	}

	q := r.URL.Query()
	var alerts []alerting.Alert
	switch {
	case q.Get("severity") != "":
		sev, err := alerting.ParseSeverity(q.Get("severity"))
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		alerts = dash.BySeverity(sev)
	case q.Get("unacknowledged") == "true":
		alerts = dash.Unacknowledged()
	default:
		alerts = dash.Alerts()
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"alerts": alerts,
		"counts": alerting.CountBySeverity(alerts),
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", " ")
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, status int, err error) {
	writeJSON(w, status, map[string]string{"error": err.Error()})
}
