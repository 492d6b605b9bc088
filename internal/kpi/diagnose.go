package kpi

import (
	"fmt"
	"sort"

	"github.com/shopspring/decimal"

	"lead-recon/internal/reconcile"
)

// Severity grades a diagnosed problem.
type Severity string

const (
	SeverityInfo     Severity = "info"
	SeverityWarning  Severity = "warning"
	SeverityCritical Severity = "critical"
)

func (s Severity) rank() int {
	switch s {
	case SeverityCritical:
		return 0
	case SeverityWarning:
		return 1
	default:
		return 2
	}
}

// RejectionCutoff is the rejection rate, in percent, above which a row is flagged.
const RejectionCutoff = 10.0

// DiagnoseOptions bound which rows are examined and what they are measured against.
type DiagnoseOptions struct {
	MinSpend decimal.Decimal
	Targets  Targets
}

// DefaultDiagnoseOptions returns a $50 spend floor with the default targets.
func DefaultDiagnoseOptions() DiagnoseOptions {
	return DiagnoseOptions{MinSpend: decimal.NewFromInt(50), Targets: DefaultTargets()}
}

// Problem is one row that failed at least one check.
type Problem struct {
	CampaignID      string          `json:"campaign_id"`
	CampaignName    string          `json:"campaign_name"`
	AdSetName       string          `json:"adset_name"`
	AdID            string          `json:"ad_id"`
	AdName          string          `json:"ad_name"`
	Spend           decimal.Decimal `json:"spend"`
	Revenue         decimal.Decimal `json:"revenue"`
	Profit          decimal.Decimal `json:"profit"`
	ROI             float64         `json:"roi"`
	SellThroughRate float64         `json:"sell_through_rate"`
	Issues          []string        `json:"issues"`
	Severity        Severity        `json:"severity"`
}

// Diagnose flags rows spending at least opts.MinSpend. Checks run in a fixed
// order and later checks may only raise severity, except the sell-through check
// which sets it first. Result is sorted critical first, then by profit ascending.
func Diagnose(rows []reconcile.MatchedRow, opts DiagnoseOptions) []Problem {
	problems := make([]Problem, 0)
	for _, r := range rows {
		if r.Spend.LessThan(opts.MinSpend) {
			continue
		}
		if p, ok := diagnoseRow(r, opts.Targets); ok {
			problems = append(problems, p)
		}
	}

	sort.SliceStable(problems, func(i, j int) bool {
		ri, rj := problems[i].Severity.rank(), problems[j].Severity.rank()
		if ri != rj {
			return ri < rj
		}
		return problems[i].Profit.LessThan(problems[j].Profit)
	})
	return problems
}

func diagnoseRow(r reconcile.MatchedRow, t Targets) (Problem, bool) {
	var issues []string
	severity := SeverityInfo

	if r.SellThroughRate < t.SellRate {
		issues = append(issues, fmt.Sprintf("Low sell-through: %.1f%% (target: %g%%)", r.SellThroughRate, t.SellRate))
		if r.SellThroughRate >= t.SellRate-10 {
			severity = SeverityWarning
		} else {
			severity = SeverityCritical
		}
	}

	if r.ROI < t.ROI {
		issues = append(issues, fmt.Sprintf("Low ROI: %.1f%% (target: %g%%)", r.ROI, t.ROI))
		if r.ROI < 0 {
			severity = SeverityCritical
		} else if severity != SeverityCritical {
			severity = SeverityWarning
		}
	}

	if r.Profit.IsNegative() {
		issues = append(issues, fmt.Sprintf("Negative profit: $%s", r.Profit.StringFixed(2)))
		severity = SeverityCritical
	}

	if r.RejectionRate > RejectionCutoff {
		issues = append(issues, fmt.Sprintf("High rejection: %.1f%%", r.RejectionRate))
		if severity != SeverityCritical {
			severity = SeverityWarning
		}
	}

	if r.BreakEvenCPL.IsPositive() && r.CPL.GreaterThan(r.BreakEvenCPL) {
		issues = append(issues, fmt.Sprintf("CPL $%s exceeds break-even $%s", r.CPL.StringFixed(2), r.BreakEvenCPL.StringFixed(2)))
		severity = SeverityCritical
	}

	if len(issues) == 0 {
		return Problem{}, false
	}
	return Problem{
		CampaignID:      r.CampaignID,
		CampaignName:    r.CampaignName,
		AdSetName:       r.AdSetName,
		AdID:            r.AdID,
		AdName:          r.AdName,
		Spend:           r.Spend,
		Revenue:         r.Revenue,
		Profit:          r.Profit,
		ROI:             r.ROI,
		SellThroughRate: r.SellThroughRate,
		Issues:          issues,
		Severity:        severity,
	}, true
}
