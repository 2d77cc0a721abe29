package app

import (
	"context"
	"fmt"
	"text/tabwriter"

	"coinmarketcap-history/internal/dataset"
	"coinmarketcap-history/internal/model"
)

// Load runs the gap filler over the consolidated dataset and prints a
// per-entity summary.
func (a *App) Load(ctx context.Context, opts LoadOptions) (dataset.Dataset, error) {
	if err := ctx.Err(); err != nil {
		return dataset.Dataset{}, err
	}

	ds, err := a.loadDataset(opts.Dataset)
	if err != nil {
		return dataset.Dataset{}, err
	}

	writer := tabwriter.NewWriter(a.Out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(writer, "Slug\tName\tSamples\tInterpolated\tFirst\tLast")
	for _, s := range ds.Series {
		if len(s.Rows) == 0 {
			continue
		}
		interpolated := 0
		for _, row := range s.Rows {
			if row.Interpolated {
				interpolated++
			}
		}
		fmt.Fprintf(writer, "%s\t%s\t%d\t%d\t%s\t%s\n",
			s.Slug,
			sanitizeInline(s.Name),
			len(s.Rows),
			interpolated,
			model.FormatDate(s.Rows[0].Date),
			model.FormatDate(s.Rows[len(s.Rows)-1].Date),
		)
	}
	fmt.Fprintf(writer, "Loaded %d currencies, %d samples, %d filled.\n", len(ds.Series), ds.Samples(), ds.Filled)
	writer.Flush()
	return ds, nil
}
