// Package confidence scores how much an ad's spend and lead volume can be
// trusted and turns high-confidence rows into scale, maintain or kill calls.
package confidence

import (
	"errors"
	"fmt"

	"github.com/shopspring/decimal"

	"lead-recon/internal/spend"
)

// Level is the statistical reliability of a row.
type Level string

const (
	High   Level = "high"
	Medium Level = "medium"
	Low    Level = "low"
)

// Action is what to do with an ad.
type Action string

const (
	Scale     Action = "scale"
	Maintain  Action = "maintain"
	Kill      Action = "kill"
	NeedsData Action = "needs_data"
)

// DefaultSampleTarget is the lead count treated as statistically sufficient.
const DefaultSampleTarget = 50

// Thresholds configure classification and recommendation.
type Thresholds struct {
	HighSpend     decimal.Decimal
	HighLeads     int
	MediumSpend   decimal.Decimal
	MediumLeads   int
	CPLTarget     decimal.Decimal
	CPLAcceptable decimal.Decimal
	SampleTarget  int
}

// DefaultThresholds returns $500/30 leads for high, $250/15 for medium and a
// $30 target with $45 acceptable CPL.
func DefaultThresholds() Thresholds {
	return Thresholds{
		HighSpend:     decimal.NewFromInt(500),
		HighLeads:     30,
		MediumSpend:   decimal.NewFromInt(250),
		MediumLeads:   15,
		CPLTarget:     decimal.NewFromInt(30),
		CPLAcceptable: decimal.NewFromInt(45),
		SampleTarget:  DefaultSampleTarget,
	}
}

// Validate reports the first inconsistency in t.
func (t Thresholds) Validate() error {
	switch {
	case t.HighSpend.IsNegative() || t.MediumSpend.IsNegative():
		return errors.New("spend thresholds must be non-negative")
	case t.HighLeads < 0 || t.MediumLeads < 0:
		return errors.New("lead thresholds must be non-negative")
	case t.MediumSpend.GreaterThan(t.HighSpend) || t.MediumLeads > t.HighLeads:
		return fmt.Errorf("medium thresholds (%s/%d) exceed high (%s/%d)",
			t.MediumSpend, t.MediumLeads, t.HighSpend, t.HighLeads)
	case !t.CPLTarget.IsPositive() || t.CPLAcceptable.LessThan(t.CPLTarget):
		return fmt.Errorf("cpl target %s must be positive and not above acceptable %s", t.CPLTarget, t.CPLAcceptable)
	case t.SampleTarget <= 0:
		return errors.New("sample target must be positive")
	}
	return nil
}

// Sanitize returns t when valid, otherwise the defaults together with the
// validation error so the caller can log it.
func (t Thresholds) Sanitize() (Thresholds, error) {
	if err := t.Validate(); err != nil {
		return DefaultThresholds(), err
	}
	return t, nil
}

// Classify requires both spend and leads to clear a level.
func Classify(spendAmt decimal.Decimal, leads int, t Thresholds) Level {
	if spendAmt.GreaterThanOrEqual(t.HighSpend) && leads >= t.HighLeads {
		return High
	}
	if spendAmt.GreaterThanOrEqual(t.MediumSpend) && leads >= t.MediumLeads {
		return Medium
	}
	return Low
}

// Recommend only acts on high confidence; everything else needs more data.
func Recommend(level Level, cpl *decimal.Decimal, t Thresholds) Action {
	if level != High || cpl == nil {
		return NeedsData
	}
	switch {
	case cpl.LessThanOrEqual(t.CPLTarget):
		return Scale
	case cpl.LessThanOrEqual(t.CPLAcceptable):
		return Maintain
	default:
		return Kill
	}
}

// SampleSize is the remaining data needed to reach target.
type SampleSize struct {
	CurrentLeads int              `json:"current_leads"`
	TargetLeads  int              `json:"target_leads"`
	LeadsNeeded  int              `json:"leads_needed"`
	ProgressPct  float64          `json:"progress_pct"`
	SpendNeeded  *decimal.Decimal `json:"spend_needed"`
}

// EstimateSampleSize projects the extra spend required at the current CPL.
// SpendNeeded is nil when cpl is unknown or non-positive, or nothing is needed.
func EstimateSampleSize(current int, cpl *decimal.Decimal, target int) SampleSize {
	s := SampleSize{CurrentLeads: current, TargetLeads: target}
	if need := target - current; need > 0 {
		s.LeadsNeeded = need
	}
	if target > 0 {
		s.ProgressPct = float64(current) * 100 / float64(target)
		if s.ProgressPct > 100 {
			s.ProgressPct = 100
		}
	}
	if cpl != nil && cpl.IsPositive() && s.LeadsNeeded > 0 {
		v := cpl.Mul(decimal.NewFromInt(int64(s.LeadsNeeded)))
		s.SpendNeeded = &v
	}
	return s
}

// Assessment bundles the three scores for one row.
type Assessment struct {
	Level  Level      `json:"confidence"`
	Action Action     `json:"action"`
	Sample SampleSize `json:"sample"`
}

// Assess scores a spend row. A row without leads has no CPL.
func Assess(row spend.Row, t Thresholds) Assessment {
	var cpl *decimal.Decimal
	if row.Leads > 0 {
		v := spend.CostPerLead(row.Spend, row.Leads)
		cpl = &v
	}
	level := Classify(row.Spend, row.Leads, t)
	target := t.SampleTarget
	if target <= 0 {
		target = DefaultSampleTarget
	}
	return Assessment{
		Level:  level,
		Action: Recommend(level, cpl, t),
		Sample: EstimateSampleSize(row.Leads, cpl, target),
	}
}
