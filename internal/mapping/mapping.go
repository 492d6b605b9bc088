// Package mapping resolves ad-platform campaigns to business verticals.
package mapping

import "strings"

// DefaultVertical is used when neither the mapping nor the config names one.
const DefaultVertical = "default"

// Provider returns the vertical for a campaign and whether the campaign is mapped.
// Unmapped campaigns report the provider's default vertical.
type Provider interface {
	Vertical(campaignID string) (string, bool)
}

// Campaign is one configured mapping.
type Campaign struct {
	CampaignID   string `mapstructure:"campaign_id" json:"campaign_id"`
	CampaignName string `mapstructure:"campaign_name" json:"campaign_name"`
	Vertical     string `mapstructure:"vertical" json:"vertical"`
}

// Static is an immutable in-memory Provider.
type Static struct {
	fallback  string
	campaigns map[string]Campaign
}

// NewStatic indexes campaigns by id. Entries with an empty id are skipped and
// entries with an empty vertical fall back to defaultVertical.
func NewStatic(defaultVertical string, campaigns []Campaign) *Static {
	if strings.TrimSpace(defaultVertical) == "" {
		defaultVertical = DefaultVertical
	}
	s := &Static{fallback: defaultVertical, campaigns: make(map[string]Campaign, len(campaigns))}
	for _, c := range campaigns {
		id := strings.TrimSpace(c.CampaignID)
		if id == "" {
			continue
		}
		if strings.TrimSpace(c.Vertical) == "" {
			c.Vertical = defaultVertical
		}
		s.campaigns[id] = c
	}
	return s
}

func (s *Static) Vertical(campaignID string) (string, bool) {
	if s == nil {
		return DefaultVertical, false
	}
	c, ok := s.campaigns[campaignID]
	if !ok {
		return s.fallback, false
	}
	return c.Vertical, true
}

// Campaigns returns the configured mappings.
func (s *Static) Campaigns() []Campaign {
	out := make([]Campaign, 0, len(s.campaigns))
	for _, c := range s.campaigns {
		out = append(out, c)
	}
	return out
}

var _ Provider = (*Static)(nil)
