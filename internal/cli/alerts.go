package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"lead-recon/internal/app"
)

var (
	alertsLimit    int
	alertsSeverity string
	pruneMaxAge    time.Duration
)

var alertsCmd = &cobra.Command{
	Use:   "alerts",
	Short: "List stored alert history, newest first",
	RunE: func(cmd *cobra.Command, args []string) error {
		if alertsLimit < 0 {
			return fmt.Errorf("--limit must not be negative")
		}
		return getApp().Alerts(cmd.Context(), app.AlertsOptions{
			Limit:    alertsLimit,
			Severity: alertsSeverity,
		})
	},
}

var ackCmd = &cobra.Command{
	Use:   "ack <alert-id>",
	Short: "Acknowledge an alert",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().Ack(cmd.Context(), args[0])
	},
}

var cacheCmd = &cobra.Command{
	Use:   "cache",
	Short: "Manage the source response cache",
}

var cachePruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Delete cache entries older than --max-age",
	RunE: func(cmd *cobra.Command, args []string) error {
		return getApp().PruneCache(cmd.Context(), pruneMaxAge)
	},
}

func init() {
	alertsCmd.Flags().IntVar(&alertsLimit, "limit", 50, "Number of alerts to display (0 for all)")
	alertsCmd.Flags().StringVar(&alertsSeverity, "severity", "", "Only show info, warning or critical alerts")

	cachePruneCmd.Flags().DurationVar(&pruneMaxAge, "max-age", 0, "Maximum entry age (defaults to cache.prune_age)")
	cacheCmd.AddCommand(cachePruneCmd)
}
