package cli

import (
	"fmt"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"coinmarketcap-history/internal/app"
	"coinmarketcap-history/internal/dataset"
)

var (
	loadMinSamples   int
	loadMinVolume    float64
	loadMinMarketCap float64
	loadNoFill       bool
)

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Filter and gap-fill the consolidated dataset, printing a summary",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := loaderOptions(cmd)
		if err != nil {
			return err
		}
		_, err = getApp().Load(cmd.Context(), app.LoadOptions{Dataset: opts})
		return err
	},
}

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Upsert the filtered, gap-filled dataset into postgres",
	RunE: func(cmd *cobra.Command, args []string) error {
		opts, err := loaderOptions(cmd)
		if err != nil {
			return err
		}
		return getApp().Publish(cmd.Context(), app.LoadOptions{Dataset: opts})
	},
}

// loaderOptions starts from configuration and applies explicitly set flags.
func loaderOptions(cmd *cobra.Command) (dataset.Options, error) {
	opts := getApp().LoaderOptions()
	flags := cmd.Flags()
	if flags.Changed("min-samples") {
		if loadMinSamples < 0 {
			return opts, fmt.Errorf("--min-samples cannot be negative")
		}
		opts.MinSamples = loadMinSamples
	}
	if flags.Changed("min-volume") {
		opts.MinVolume = decimal.NewFromFloat(loadMinVolume)
	}
	if flags.Changed("min-market-cap") {
		opts.MinMarketCap = decimal.NewFromFloat(loadMinMarketCap)
	}
	if loadNoFill {
		opts.FillMissingDates = false
	}
	return opts, nil
}

func addLoaderFlags(cmd *cobra.Command) {
	cmd.Flags().IntVar(&loadMinSamples, "min-samples", 365, "Drop entities with fewer samples")
	cmd.Flags().Float64Var(&loadMinVolume, "min-volume", 1_000_000, "Drop entities never reaching this volume")
	cmd.Flags().Float64Var(&loadMinMarketCap, "min-market-cap", 1_000_000, "Drop entities never reaching this market cap")
	cmd.Flags().BoolVar(&loadNoFill, "no-fill", false, "Skip interpolation of missing days")
}

func init() {
	addLoaderFlags(loadCmd)
	addLoaderFlags(publishCmd)
}
