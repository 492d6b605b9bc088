package alerting

import (
	"fmt"
	"time"

	"lead-recon/internal/reconcile"
)

// Detector evaluates the alert rules against matched rows.
type Detector struct {
	thresholds ThresholdSet
	now        func() time.Time
}

// DetectorOption customises a Detector.
type DetectorOption func(*Detector)

// WithClock injects the time source used for timestamps and alert ids.
func WithClock(now func() time.Time) DetectorOption {
	return func(d *Detector) { d.now = now }
}

// NewDetector builds a detector over the given thresholds.
func NewDetector(thresholds ThresholdSet, opts ...DetectorOption) *Detector {
	d := &Detector{thresholds: thresholds, now: time.Now}
	for _, opt := range opts {
		opt(d)
	}
	return d
}

// Check runs every rule on every row. Rules are independent, so one row can
// raise several alerts.
func (d *Detector) Check(rows []reconcile.MatchedRow) []Alert {
	now := d.now().UTC()
	alerts := make([]Alert, 0)
	for _, r := range rows {
		alerts = append(alerts, d.checkRow(r, now)...)
	}
	return alerts
}

func (d *Detector) checkRow(r reconcile.MatchedRow, now time.Time) []Alert {
	vertical := ""
	if r.Mapped {
		vertical = r.Vertical
	}
	t := d.thresholds.For(vertical)

	base := func(typ Type, sev Severity, title, msg string, metric float64) Alert {
		return Alert{
			ID:           AlertID(typ, r.CampaignID, r.AdID, now),
			Type:         typ,
			Severity:     sev,
			Title:        title,
			Message:      msg,
			Timestamp:    now,
			CampaignID:   r.CampaignID,
			CampaignName: r.CampaignName,
			AdID:         r.AdID,
			AdName:       r.AdName,
			Vertical:     vertical,
			MetricValue:  float(metric),
		}
	}

	var out []Alert

	// no disposition data means no sell-through to judge
	if r.LPTotal > 0 && r.SellThroughRate < t.MinSellRate {
		sev := SeverityWarning
		if r.SellThroughRate < t.MinSellRate-10 {
			sev = SeverityCritical
		}
		a := base(TypeLowSellRate, sev,
			"Low Sell-Through Rate: "+r.AdName,
			fmt.Sprintf("Sell-through rate %.1f%% is below threshold %g%%", r.SellThroughRate, t.MinSellRate),
			r.SellThroughRate)
		a.ThresholdValue = float(t.MinSellRate)
		out = append(out, a)
	}

	// zero spend reports roi 0, which still counts against min_roi
	if r.ROI < t.MinROI {
		sev := SeverityWarning
		if r.ROI < 0 {
			sev = SeverityCritical
		}
		a := base(TypeLowROI, sev,
			"Low ROI: "+r.AdName,
			fmt.Sprintf("ROI %.1f%% is below target %g%%", r.ROI, t.MinROI),
			r.ROI)
		a.ThresholdValue = float(t.MinROI)
		out = append(out, a)
	}

	if t.AlertOnNegativeMargin && r.Profit.IsNegative() {
		profit := r.Profit.InexactFloat64()
		a := base(TypeNegativeMargin, SeverityCritical,
			"Negative Profit: "+r.AdName,
			fmt.Sprintf("Ad is losing money: $%s profit", r.Profit.StringFixed(2)),
			profit)
		a.ThresholdValue = float(0)
		out = append(out, a)
	}

	if r.RejectionRate > RejectionCutoff {
		a := base(TypeHighRejection, SeverityWarning,
			"High Rejection Rate: "+r.AdName,
			fmt.Sprintf("Rejection rate %.1f%% is unusually high", r.RejectionRate),
			r.RejectionRate)
		a.ThresholdValue = float(RejectionCutoff)
		out = append(out, a)
	}

	if r.LPPending > 0 && r.LPTotal > 0 {
		unsoldPct := float64(r.LPPending) * 100 / float64(r.LPTotal)
		if unsoldPct > 100-t.MinSellRate {
			a := base(TypeUnsoldLead, SeverityWarning,
				"Unsold Leads: "+r.AdName,
				fmt.Sprintf("%d leads (%.1f%%) remain unsold", r.LPPending, unsoldPct),
				float64(r.LPPending))
			a.Metadata = map[string]any{"unsold_percentage": unsoldPct}
			out = append(out, a)
		}
	}

	return out
}

// SystemError wraps a failure of the pipeline itself, such as an upstream
// fetch, into a critical alert.
func (d *Detector) SystemError(source string, err error) Alert {
	now := d.now().UTC()
	return Alert{
		ID:        AlertID(TypeSystemError, "system", source, now),
		Type:      TypeSystemError,
		Severity:  SeverityCritical,
		Title:     "Data Fetch Failed: " + source,
		Message:   err.Error(),
		Timestamp: now,
		Metadata:  map[string]any{"source": source},
	}
}
