package cli

import (
	"errors"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"lead-recon/internal/app"
)

var (
	simulateVertical string
	simulateSpend    float64
	simulateRevenue  float64
	simulateLeads    int
	simulateSold     int
	simulateRejected int
	simulatePending  int
)

var simulateCmd = &cobra.Command{
	Use:   "simulate-alert",
	Short: "Push a synthetic ad through detection and notify the configured channels",
	RunE: func(cmd *cobra.Command, args []string) error {
		if simulateSpend < 0 || simulateRevenue < 0 {
			return errors.New("--spend and --revenue must not be negative")
		}

		return getApp().SimulateAlert(cmd.Context(), app.SimulateOptions{
			Vertical: simulateVertical,
			Spend:    decimal.NewFromFloat(simulateSpend),
			Revenue:  decimal.NewFromFloat(simulateRevenue),
			Leads:    simulateLeads,
			Sold:     simulateSold,
			Rejected: simulateRejected,
			Pending:  simulatePending,
		})
	},
}

func init() {
	simulateCmd.Flags().StringVar(&simulateVertical, "vertical", "", "Vertical whose thresholds apply")
	simulateCmd.Flags().Float64Var(&simulateSpend, "spend", 100, "Ad spend in USD")
	simulateCmd.Flags().Float64Var(&simulateRevenue, "revenue", 40, "Lead revenue in USD")
	simulateCmd.Flags().IntVar(&simulateLeads, "leads", 10, "Leads reported by the ad platform")
	simulateCmd.Flags().IntVar(&simulateSold, "sold", 2, "Sold leads")
	simulateCmd.Flags().IntVar(&simulateRejected, "rejected", 3, "Rejected leads")
	simulateCmd.Flags().IntVar(&simulatePending, "pending", 5, "Pending leads")
}
