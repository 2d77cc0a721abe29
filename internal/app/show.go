package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"text/tabwriter"

	"coinmarketcap-history/internal/model"
)

// Show prints the most recent rows of one entity.
func (a *App) Show(ctx context.Context, opts ShowOptions) error {
	rows, err := a.recentRows(ctx, opts)
	if err != nil {
		return err
	}
	if len(rows) == 0 {
		fmt.Fprintf(a.Out, "no rows found for %s\n", opts.Slug)
		return nil
	}

	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Date\tOpen\tHigh\tLow\tClose\tVolume\tMarket Cap\tFilled")

	for _, row := range rows {
		filled := ""
		if row.Interpolated {
			filled = "yes"
		}
		fmt.Fprintf(
			writer,
			"%s\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			model.FormatDate(row.Date),
			row.Open.StringFixed(4),
			row.High.StringFixed(4),
			row.Low.StringFixed(4),
			row.Close.StringFixed(4),
			row.Volume.StringFixed(0),
			row.MarketCap.StringFixed(0),
			filled,
		)
	}

	writer.Flush()
	return nil
}

// recentRows returns up to opts.Limit rows, newest first.
func (a *App) recentRows(ctx context.Context, opts ShowOptions) ([]model.ConsolidatedRow, error) {
	if opts.FromDB {
		store, closeStore, err := a.openStore(ctx)
		if err != nil {
			return nil, err
		}
		if store == nil {
			return nil, errors.New("database not configured; cannot show published rows")
		}
		defer closeStore()
		return store.ListRecentRows(ctx, opts.Slug, opts.Limit)
	}

	ds, err := a.loadDataset(a.LoaderOptions())
	if err != nil {
		return nil, err
	}
	series, ok := ds.Lookup(opts.Slug)
	if !ok {
		return nil, nil
	}

	n := max(min(opts.Limit, len(series.Rows)), 0)
	rows := make([]model.ConsolidatedRow, 0, n)
	for i := len(series.Rows) - 1; i >= len(series.Rows)-n; i-- {
		rows = append(rows, series.Rows[i])
	}
	return rows, nil
}

func sanitizeInline(v string) string {
	cleaned := strings.ReplaceAll(v, "\n", " ")
	cleaned = strings.ReplaceAll(cleaned, "\r", " ")
	cleaned = strings.ReplaceAll(cleaned, "\t", " ")
	return cleaned
}
