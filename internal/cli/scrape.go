package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"coinmarketcap-history/internal/app"
)

var scrapeForceCatalog bool

var scrapeCmd = &cobra.Command{
	Use:   "scrape",
	Short: "Fetch missing daily histories and rebuild the consolidated dataset",
	RunE: func(cmd *cobra.Command, args []string) error {
		report, err := getApp().Scrape(cmd.Context(), app.ScrapeOptions{ForceCatalog: scrapeForceCatalog})
		if report.Coins+report.Tokens > 0 {
			fmt.Fprintf(cmd.OutOrStdout(), "%d coins, %d tokens; %d histories requested, %d updated, %d failed\n",
				report.Coins, report.Tokens,
				report.History.Requested, report.History.Updated, len(report.History.Failed))
		}
		if report.Assembled {
			fmt.Fprintf(cmd.OutOrStdout(), "dataset rebuilt: %d currencies, %d rows\n", report.Dataset.Entities, report.Dataset.Rows)
		}
		return err
	},
}

func init() {
	scrapeCmd.Flags().BoolVar(&scrapeForceCatalog, "force-catalog", false, "Re-scrape coin and token listings even when cached")
}
