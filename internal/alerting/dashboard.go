package alerting

import (
	"context"
	"sync"
	"time"
)

// DefaultDashboardSize is how many alerts the dashboard keeps.
const DefaultDashboardSize = 100

// DashboardChannel keeps the most recent alerts in memory for the HTTP API.
type DashboardChannel struct {
	mu     sync.RWMutex
	max    int
	alerts []Alert
	now    func() time.Time
}

// NewDashboardChannel builds a dashboard holding at most max alerts.
func NewDashboardChannel(max int) *DashboardChannel {
	if max <= 0 {
		max = DefaultDashboardSize
	}
	return &DashboardChannel{max: max, now: time.Now}
}

func (c *DashboardChannel) Name() string { return "dashboard" }
func (c *DashboardChannel) IsConfigured() bool { return true }

// Send stores alerts, dropping the oldest beyond capacity.
func (c *DashboardChannel) Send(_ context.Context, alerts []Alert) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.alerts = append(c.alerts, alerts...)
	if over := len(c.alerts) - c.max; over > 0 {
		c.alerts = append([]Alert(nil), c.alerts[over:]...)
	}
	return nil
}

// Alerts returns stored alerts, newest first.
func (c *DashboardChannel) Alerts() []Alert {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Alert, 0, len(c.alerts))
	for i := len(c.alerts) - 1; i >= 0; i-- {
		out = append(out, c.alerts[i])
	}
	return out
}

// Unacknowledged returns alerts not yet acknowledged, oldest first.
func (c *DashboardChannel) Unacknowledged() []Alert {
	return c.filter(func(a Alert) bool { return !a.Acknowledged })
}

// BySeverity returns alerts of severity s, oldest first.
func (c *DashboardChannel) BySeverity(s Severity) []Alert {
	return c.filter(func(a Alert) bool { return a.Severity == s })
}

func (c *DashboardChannel) filter(keep func(Alert) bool) []Alert {
	c.mu.RLock()
	defer c.mu.RUnlock()
	out := make([]Alert, 0)
	for _, a := range c.alerts {
		if keep(a) {
			out = append(out, a)
		}
	}
	return out
}

// Acknowledge marks every stored alert with id as acknowledged.
func (c *DashboardChannel) Acknowledge(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	found := false
	now := c.now()
	for i := range c.alerts {
		if c.alerts[i].ID == id {
			c.alerts[i].Acknowledge(now)
			found = true
		}
	}
	return found
}

// Clear drops every stored alert.
func (c *DashboardChannel) Clear() {
	c.mu.Lock()
	c.alerts = nil
	c.mu.Unlock()
}

var _ Channel = (*DashboardChannel)(nil)
