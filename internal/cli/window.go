package cli

import (
	"fmt"
	"time"

	"lead-recon/internal/service"
)

const dayLayout = "2006-01-02"

// parseWindow reads an inclusive --since/--until pair. Both empty means the
// configured lookback window; a missing --until means today.
func parseWindow(since, until string, now time.Time) (*service.Window, error) {
	if since == "" && until == "" {
		return nil, nil
	}
	if since == "" {
		return nil, fmt.Errorf("--since is required when --until is set")
	}

	from, err := time.Parse(dayLayout, since)
	if err != nil {
		return nil, fmt.Errorf("invalid --since value: %w", err)
	}

	to := now.UTC().Truncate(24 * time.Hour)
	if until != "" {
		to, err = time.Parse(dayLayout, until)
		if err != nil {
			return nil, fmt.Errorf("invalid --until value: %w", err)
		}
	}

	if to.Before(from) {
		return nil, fmt.Errorf("--since must not be after --until")
	}
	return &service.Window{Since: from, Until: to}, nil
}
