package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"coinmarketcap-history/internal/app"
)

var (
	showSlug   string
	showLimit  int
	showFromDB bool
)

var showCmd = &cobra.Command{
	Use:   "show",
	Short: "Display the most recent rows of one currency",
	RunE: func(cmd *cobra.Command, args []string) error {
		if showSlug == "" {
			return fmt.Errorf("--slug must be provided")
		}
		if showLimit <= 0 {
			return fmt.Errorf("--limit must be greater than zero")
		}

		opts := app.ShowOptions{
			Slug:   showSlug,
			Limit:  showLimit,
			FromDB: showFromDB,
		}

		return getApp().Show(cmd.Context(), opts)
	},
}

func init() {
	showCmd.Flags().StringVar(&showSlug, "slug", "", "Currency slug, e.g. bitcoin")
	showCmd.Flags().IntVar(&showLimit, "limit", 20, "Number of rows to display")
	showCmd.Flags().BoolVar(&showFromDB, "db", false, "Read published rows from postgres instead of the dataset file")
}
