package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lead-recon/internal/alerting"
	"lead-recon/internal/cache"
	"lead-recon/internal/kpi"
	"lead-recon/internal/reconcile"
	"lead-recon/internal/service"
	"lead-recon/internal/spend"
)

type fakeReconciler struct {
	rows []reconcile.MatchedRow
	err  error
	got  service.Window
}

func (f *fakeReconciler) CurrentWindow() service.Window {
	day := time.Date(2026, 10, 16, 0, 0, 0, 0, time.UTC)
	return service.Window{Since: day.AddDate(0, 0, -1), Until: day}
}

func (f *fakeReconciler) Snapshot(_ context.Context, w service.Window) (service.Snapshot, error) {
	f.got = w
	if f.err != nil {
		return service.Snapshot{}, f.err
	}
	return service.Snapshot{
		Window:  w,
		Match:   reconcile.Result{Rows: f.rows},
		Summary: kpi.Summarize(f.rows, kpi.DefaultTargets()),
	}, nil
}

// losingRow has spend 100 and revenue 80 over 10 sold leads.
func losingRow() reconcile.MatchedRow {
	r := reconcile.MatchedRow{Row: spend.NewRow("c1", "s1", "a1", decimal.NewFromInt(100), 10)}
	r.Vertical = "solar"
	r.LPTotal, r.LPSold = 10, 10
	r.Revenue = decimal.NewFromInt(80)
	r.Payout = decimal.Zero
	return reconcile.ComputeRowKPIs(r)
}

func newTestServer(t *testing.T, rec *fakeReconciler) (*httptest.Server, *alerting.Engine) {
	t.Helper()
	history := alerting.NewHistory(cache.NewMemory(nil), alerting.HistoryOptions{}, zerolog.Nop())
	engine := alerting.NewEngine(alerting.NewDetector(alerting.DefaultThresholdSet()), history,
		[]alerting.Channel{alerting.NewDashboardChannel(10)}, zerolog.Nop())
	srv := httptest.NewServer(NewRouter(Deps{
		Reconciler: rec,
		Engine:     engine,
		Metrics:    http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { _, _ = w.Write([]byte("# metrics")) }),
		Targets:    kpi.DefaultTargets(),
		Logger:     zerolog.Nop(),
	}))
	t.Cleanup(srv.Close)
	return srv, engine
}

func decode(t *testing.T, resp *http.Response, v any) {
	t.Helper()
	defer resp.Body.Close()
	require.NoError(t, json.NewDecoder(resp.Body).Decode(v))
}

func TestHealthzAndRequestID(t *testing.T) {
	srv, _ := newTestServer(t, &fakeReconciler{})

	resp, err := http.Get(srv.URL + "/healthz")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.NotEmpty(t, resp.Header.Get("X-Request-ID"))

	resp, err = http.Get(srv.URL + "/metrics")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestKPIsWindowAndDimension(t *testing.T) {
	rec := &fakeReconciler{rows: []reconcile.MatchedRow{losingRow()}}
	srv, _ := newTestServer(t, rec)

	resp, err := http.Get(srv.URL + "/api/kpis?since=2026-10-01&until=2026-10-07")
	require.NoError(t, err)
	var snap service.Snapshot
	decode(t, resp, &snap)
	assert.Equal(t, time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC), rec.got.Since)
	assert.True(t, snap.Summary.TotalSpend.Equal(decimal.NewFromInt(100)))

	resp, err = http.Get(srv.URL + "/api/kpis?dimension=vertical")
	require.NoError(t, err)
	var byVertical map[string]kpi.Summary
	decode(t, resp, &byVertical)
	assert.Contains(t, byVertical, "solar")

	resp, err = http.Get(srv.URL + "/api/kpis?since=bad")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/api/kpis?dimension=buyer")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestCheckListAndAcknowledge(t *testing.T) {
	srv, _ := newTestServer(t, &fakeReconciler{rows: []reconcile.MatchedRow{losingRow()}})

	resp, err := http.Post(srv.URL+"/api/alerts/check", "application/json", nil)
	require.NoError(t, err)
	var res alerting.CheckResult
	decode(t, resp, &res)
	require.NotEmpty(t, res.Sent)
	assert.True(t, res.Channels["dashboard"])

	resp, err = http.Get(srv.URL + "/api/alerts?limit=10")
	require.NoError(t, err)
	var listed []alerting.Alert
	decode(t, resp, &listed)
	require.Len(t, listed, len(res.Sent))

	id := listed[0].ID
	resp, err = http.Post(srv.URL+"/api/alerts/"+id+"/ack", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	resp, err = http.Post(srv.URL+"/api/alerts/missing/ack", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	resp, err = http.Get(srv.URL + "/api/dashboard/alerts?unacknowledged=true")
	require.NoError(t, err)
	var dash struct {
		Alerts []alerting.Alert          `json:"alerts"`
		Counts map[alerting.Severity]int `json:"counts"`
	}
	decode(t, resp, &dash)
	assert.Len(t, dash.Alerts, len(res.Sent)-1)
}

func TestCheckFetchFailureRaisesSystemError(t *testing.T) {
	srv, engine := newTestServer(t, &fakeReconciler{err: errors.New("leadspedia down")})

	resp, err := http.Post(srv.URL+"/api/alerts/check", "application/json", nil)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadGateway, resp.StatusCode)

	stored, err := engine.History().List(context.Background(), 10)
	require.NoError(t, err)
	require.Len(t, stored, 1)
	assert.Equal(t, alerting.TypeSystemError, stored[0].Type)
}

func TestDashboardSeverityFilter(t *testing.T) {
	srv, _ := newTestServer(t, &fakeReconciler{})

	resp, err := http.Get(srv.URL + "/api/dashboard/alerts?severity=loud")
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}
