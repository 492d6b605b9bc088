package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"lead-recon/internal/app"
	"lead-recon/internal/kpi"
)

var (
	reportSince     string
	reportUntil     string
	reportCompare   bool
	reportDimension string
	reportJSON      bool
)

var reportCmd = &cobra.Command{
	Use:   "report",
	Short: "Print KPIs, problem ads, buyers and confidence for a window",
	RunE: func(cmd *cobra.Command, args []string) error {
		win, err := parseWindow(reportSince, reportUntil, time.Now())
		if err != nil {
			return err
		}
		if reportDimension != "" && !kpi.Dimension(reportDimension).Valid() {
			return fmt.Errorf("unknown --dimension %q", reportDimension)
		}

		return getApp().Report(cmd.Context(), app.ReportOptions{
			Window:    win,
			Compare:   reportCompare,
			Dimension: reportDimension,
			JSON:      reportJSON,
		})
	},
}

func init() {
	reportCmd.Flags().StringVar(&reportSince, "since", "", "First day (YYYY-MM-DD, inclusive)")
	reportCmd.Flags().StringVar(&reportUntil, "until", "", "Last day (YYYY-MM-DD, inclusive, defaults to today)")
	reportCmd.Flags().BoolVar(&reportCompare, "compare", false, "Compare against the previous window of equal length")
	reportCmd.Flags().StringVar(&reportDimension, "dimension", "", "Group KPIs by campaign, adset, ad or vertical")
	reportCmd.Flags().BoolVar(&reportJSON, "json", false, "Print the report as JSON")
}
