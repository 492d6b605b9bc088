package alerting

import (
	"errors"
	"strings"
)

// RejectionCutoff is the fixed rejection rate, in percent, that raises a warning.
const RejectionCutoff = 10.0

// Thresholds are the alert limits for one vertical.
type Thresholds struct {
	MinSellRate           float64 `json:"min_sell_rate"`
	MinROI                float64 `json:"min_roi"`
	MaxUnsoldTimeMinutes  int     `json:"max_unsold_time_minutes"`
	AlertOnNegativeMargin bool    `json:"alert_on_negative_margin"`
}

// DefaultThresholds returns 95% sell-through, 20% ROI, 30 minutes and
// negative-margin alerts on.
func DefaultThresholds() Thresholds {
	return Thresholds{
		MinSellRate:           95,
		MinROI:                20,
		MaxUnsoldTimeMinutes:  30,
		AlertOnNegativeMargin: true,
	}
}

// Validate checks ranges.
func (t Thresholds) Validate() error {
	if t.MinSellRate < 0 || t.MinSellRate > 100 {
		return errors.New("min_sell_rate must be between 0 and 100")
	}
	if t.MaxUnsoldTimeMinutes < 0 {
		return errors.New("max_unsold_time_minutes must be non-negative")
	}
	return nil
}

// ThresholdSet resolves thresholds per vertical, falling back to Default.
type ThresholdSet struct {
	Default    Thresholds
	ByVertical map[string]Thresholds
}

// DefaultThresholdSet has only the default thresholds.
func DefaultThresholdSet() ThresholdSet {
	return ThresholdSet{Default: DefaultThresholds()}
}

// For returns the thresholds for vertical, case-insensitively.
func (s ThresholdSet) For(vertical string) Thresholds {
	if t, ok := s.ByVertical[strings.ToLower(vertical)]; ok {
		return t
	}
	return s.Default
}

// Sanitize replaces every invalid entry with DefaultThresholds and returns the
// names of the entries it replaced.
func (s ThresholdSet) Sanitize() (ThresholdSet, []string) {
	var replaced []string
	out := ThresholdSet{Default: s.Default, ByVertical: make(map[string]Thresholds, len(s.ByVertical))}
	if out.Default.Validate() != nil {
		out.Default = DefaultThresholds()
		replaced = append(replaced, "default")
	}
	for v, t := range s.ByVertical {
		key := strings.ToLower(v)
		if t.Validate() != nil {
			t = out.Default
			replaced = append(replaced, key)
		}
		out.ByVertical[key] = t
	}
	return out, replaced
}
