// Package metrics exposes engine counters to Prometheus.
package metrics

import (
	"context"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"lead-recon/internal/alerting"
	"lead-recon/internal/cache"
)

const namespace = "leadrecon"

var unacknowledgedDesc = prometheus.NewDesc(
	namespace+"_dashboard_unacknowledged_alerts",
	"Alerts held by the dashboard channel that are not yet acknowledged",
	nil,
	nil,
)

// Metrics owns a private registry and the engine's counters.
type Metrics struct {
	registry *prometheus.Registry

	alertsGenerated *prometheus.CounterVec
	alertDispatch   *prometheus.CounterVec
	pollIterations  *prometheus.CounterVec
	cacheRequests   *prometheus.CounterVec
}

// New registers the counters plus the Go and process collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		alertsGenerated: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alerts_generated_total",
			Help:      "Alerts produced by the detector",
		}, []string{"type", "severity"}),
		alertDispatch: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "alert_dispatch_total",
			Help:      "Channel deliveries by outcome",
		}, []string{"channel", "result"}),
		pollIterations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "poll_iterations_total",
			Help:      "Background monitor iterations by outcome",
		}, []string{"result"}),
		cacheRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "cache_requests_total",
			Help:      "Cache lookups by outcome",
		}, []string{"result"}),
	}
	m.registry.MustRegister(
		m.alertsGenerated,
		m.alertDispatch,
		m.pollIterations,
		m.cacheRequests,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// Registry returns the registry backing Handler.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// WatchDashboard reports the dashboard's unacknowledged count on every scrape.
func (m *Metrics) WatchDashboard(d *alerting.DashboardChannel) {
	if d == nil {
		return
	}
	m.registry.MustRegister(&dashboardCollector{dashboard: d})
}

func (m *Metrics) AlertGenerated(t alerting.Type, s alerting.Severity) {
	m.alertsGenerated.WithLabelValues(string(t), string(s)).Inc()
}

func (m *Metrics) AlertDispatched(channel string, ok bool) {
	m.alertDispatch.WithLabelValues(channel, result(ok)).Inc()
}

func (m *Metrics) PollIteration(ok bool) {
	m.pollIterations.WithLabelValues(result(ok)).Inc()
}

func result(ok bool) string {
	if ok {
		return "success"
	}
	return "failure"
}

var _ alerting.Recorder = (*Metrics)(nil)

type dashboardCollector struct {
	dashboard *alerting.DashboardChannel
}

func (c *dashboardCollector) Describe(ch chan<- *prometheus.Desc) {
	ch <- unacknowledgedDesc
}

func (c *dashboardCollector) Collect(ch chan<- prometheus.Metric) {
	ch <- prometheus.MustNewConstMetric(unacknowledgedDesc, prometheus.GaugeValue, float64(len(c.dashboard.Unacknowledged())))
}

// InstrumentCache counts hits, misses and errors on s.
func (m *Metrics) InstrumentCache(s cache.Store) cache.Store {
	return &instrumentedCache{Store: s, requests: m.cacheRequests}
}

type instrumentedCache struct {
	cache.Store
	requests *prometheus.CounterVec
}

func (c *instrumentedCache) Get(ctx context.Context, key string, ttl time.Duration) (string, bool, error) {
	v, ok, err := c.Store.Get(ctx, key, ttl)
	switch {
	case err != nil:
		c.requests.WithLabelValues("error").Inc()
	case ok:
		c.requests.WithLabelValues("hit").Inc()
	default:
		c.requests.WithLabelValues("miss").Inc()
	}
	return v, ok, err
}
