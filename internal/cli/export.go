package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"coinmarketcap-history/internal/app"
)

var (
	exportSlug      string
	exportPNGPath   string
	exportCSVPath   string
	exportMaxPoints int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export one currency's gap-filled series as CSV and/or PNG chart",
	RunE: func(cmd *cobra.Command, args []string) error {
		if exportSlug == "" {
			return fmt.Errorf("--slug must be provided")
		}

		opts := app.ExportOptions{
			Slug:      exportSlug,
			PNGPath:   exportPNGPath,
			CSVPath:   exportCSVPath,
			MaxPoints: exportMaxPoints,
		}

		return getApp().Export(cmd.Context(), opts)
	},
}

func init() {
	exportCmd.Flags().StringVar(&exportSlug, "slug", "", "Currency slug, e.g. bitcoin")
	exportCmd.Flags().StringVar(&exportPNGPath, "png", "", "Path to write PNG chart")
	exportCmd.Flags().StringVar(&exportCSVPath, "csv", "", "Path to write CSV data")
	exportCmd.Flags().IntVar(&exportMaxPoints, "max-points", 0, "Maximum data points to export (defaults to config)")
}
