package cli

import (
	"time"

	"github.com/spf13/cobra"

	"lead-recon/internal/app"
)

var (
	exportSince   string
	exportUntil   string
	exportPNGPath string
	exportCSVPath string
	exportMaxRows int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export matched rows as CSV and/or PNG chart",
	RunE: func(cmd *cobra.Command, args []string) error {
		win, err := parseWindow(exportSince, exportUntil, time.Now())
		if err != nil {
			return err
		}

		return getApp().Export(cmd.Context(), app.ExportOptions{
			Window:  win,
			PNGPath: exportPNGPath,
			CSVPath: exportCSVPath,
			MaxRows: exportMaxRows,
		})
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportSince, "since", "", "First day (YYYY-MM-DD, inclusive)")
	exportCmd.Flags().StringVar(&exportUntil, "until", "", "Last day (YYYY-MM-DD, inclusive, defaults to today)")
	exportCmd.Flags().StringVar(&exportPNGPath, "png", "", "Path to write PNG chart")
	exportCmd.Flags().StringVar(&exportCSVPath, "csv", "", "Path to write CSV data")
	exportCmd.Flags().IntVar(&exportMaxRows, "max-rows", 0, "Maximum rows to export, highest spend first (defaults to config)")
}
