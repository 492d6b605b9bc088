package metrics

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lead-recon/internal/alerting"
	"lead-recon/internal/cache"
)

func TestRecorderCounters(t *testing.T) {
	m := New()
	m.AlertGenerated(alerting.TypeLowROI, alerting.SeverityWarning)
	m.AlertGenerated(alerting.TypeLowROI, alerting.SeverityWarning)
	m.AlertDispatched("slack", true)
	m.AlertDispatched("email", false)
	m.PollIteration(false)

	assert.Equal(t, 2.0, testutil.ToFloat64(m.alertsGenerated.WithLabelValues("low_roi", "warning")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.alertDispatch.WithLabelValues("slack", "success")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.alertDispatch.WithLabelValues("email", "failure")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.pollIterations.WithLabelValues("failure")))
}

func TestInstrumentCache(t *testing.T) {
	m := New()
	store := m.InstrumentCache(cache.NewMemory(nil))
	ctx := context.Background()

	_, ok, err := store.Get(ctx, "k", time.Hour)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, store.Set(ctx, "k", "v"))
	v, ok, err := store.Get(ctx, "k", time.Hour)
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "v", v)

	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheRequests.WithLabelValues("hit")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.cacheRequests.WithLabelValues("miss")))
}

func TestHandlerExposesDashboardGauge(t *testing.T) {
	m := New()
	dash := alerting.NewDashboardChannel(10)
	m.WatchDashboard(dash)
	require.NoError(t, dash.Send(context.Background(), []alerting.Alert{{ID: "a"}, {ID: "b"}}))

	rec := httptest.NewRecorder()
	m.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.True(t, strings.Contains(body, "leadrecon_dashboard_unacknowledged_alerts 2"), body)
}
