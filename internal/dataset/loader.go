package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"sort"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"coinmarketcap-history/internal/model"
)

// ErrDuplicateDate indicates an entity has two rows for the same day.
var ErrDuplicateDate = errors.New("dataset: duplicate date")

// Options select and post-process entities on load.
type Options struct {
	MinSamples       int
	MinVolume        decimal.Decimal
	MinMarketCap     decimal.Decimal
	FillMissingDates bool
}

// DefaultOptions mirrors the documented loader defaults.
func DefaultOptions() Options {
	return Options{
		MinSamples:       365,
		MinVolume:        decimal.NewFromInt(1_000_000),
		MinMarketCap:     decimal.NewFromInt(1_000_000),
		FillMissingDates: true,
	}
}

// Series is one entity's rows, date-ascending.
type Series struct {
	Slug string
	Name string
	Rows []model.ConsolidatedRow
}

// Dataset is the loaded, filtered and optionally gap-filled table.
type Dataset struct {
	Series []Series
	Filled int
}

// Samples counts rows across all series.
func (d Dataset) Samples() int {
	n := 0
	for _, s := range d.Series {
		n += len(s.Rows)
	}
	return n
}

// Lookup returns the series for slug.
func (d Dataset) Lookup(slug string) (Series, bool) {
	for _, s := range d.Series {
		if s.Slug == slug {
			return s, true
		}
	}
	return Series{}, false
}

// Loader reads the consolidated dataset file.
type Loader struct {
	path   string
	opts   Options
	logger zerolog.Logger
}

// NewLoader constructs a loader for the dataset at path.
func NewLoader(path string, opts Options, logger zerolog.Logger) *Loader {
	return &Loader{path: path, opts: opts, logger: logger.With().Str("component", "loader").Logger()}
}

// Load reads, filters and gap-fills the dataset.
func (l *Loader) Load() (Dataset, error) {
	file, err := os.Open(l.path)
	if err != nil {
		return Dataset{}, fmt.Errorf("open dataset: %w", err)
	}
	defer file.Close()
	return l.LoadFrom(file)
}

// LoadFrom is Load over an arbitrary reader.
func (l *Loader) LoadFrom(r io.Reader) (Dataset, error) {
	series, err := ReadConsolidated(r)
	if err != nil {
		return Dataset{}, err
	}

	series = FilterMinSamples(series, l.opts.MinSamples)
	series = FilterMinVolumeAndMarketCap(series, l.opts.MinVolume, l.opts.MinMarketCap)

	ds := Dataset{Series: series}
	if l.opts.FillMissingDates {
		for i := range ds.Series {
			filled, n, err := Fill(ds.Series[i])
			if err != nil {
				return Dataset{}, err
			}
			ds.Series[i] = filled
			ds.Filled += n
		}
		l.logger.Info().Int("filled", ds.Filled).Msg("missing samples interpolated")
	}

	l.logger.Info().Int("currencies", len(ds.Series)).Int("samples", ds.Samples()).Msg("dataset loaded")
	return ds, nil
}

// ReadConsolidated parses the dataset file into per-entity series in order of
// first appearance.
func ReadConsolidated(r io.Reader) ([]Series, error) {
	reader := csv.NewReader(r)
	header, err := reader.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, fmt.Errorf("read dataset header: %w", err)
	}
	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[name] = i
	}
	for _, name := range Header {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("dataset header missing column %q", name)
		}
	}

	var series []Series
	index := make(map[string]int)
	for line := 2; ; line++ {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read dataset line %d: %w", line, err)
		}

		row, err := parseRecord(record, cols)
		if err != nil {
			return nil, fmt.Errorf("dataset line %d: %w", line, err)
		}
		i, ok := index[row.Slug]
		if !ok {
			i = len(series)
			index[row.Slug] = i
			series = append(series, Series{Slug: row.Slug, Name: row.Name})
		}
		series[i].Rows = append(series[i].Rows, row)
	}

	for i := range series {
		rows := series[i].Rows
		sort.SliceStable(rows, func(a, b int) bool { return rows[a].Date.Before(rows[b].Date) })
	}
	return series, nil
}

func parseRecord(record []string, cols map[string]int) (model.ConsolidatedRow, error) {
	date, err := model.ParseDate(record[cols["date"]])
	if err != nil {
		return model.ConsolidatedRow{}, err
	}
	values := make([]decimal.Decimal, 0, 6)
	for _, name := range Header[3:] {
		raw := record[cols[name]]
		v := decimal.Zero
		if raw != "" {
			if v, err = decimal.NewFromString(raw); err != nil {
				return model.ConsolidatedRow{}, fmt.Errorf("column %s: %w", name, err)
			}
		}
		values = append(values, v)
	}
	row := model.ConsolidatedRow{Slug: record[cols["slug"]], Name: record[cols["name"]]}
	row.Date = date
	row.SetNumbers(values)
	return row, nil
}

// FilterMinSamples drops entities with fewer than min rows.
func FilterMinSamples(series []Series, min int) []Series {
	kept := series[:0:0]
	for _, s := range series {
		if len(s.Rows) >= min {
			kept = append(kept, s)
		}
	}
	return kept
}

// FilterMinVolumeAndMarketCap keeps entities with at least one day where both
// volume and market cap reach their minimums.
func FilterMinVolumeAndMarketCap(series []Series, minVolume, minMarketCap decimal.Decimal) []Series {
	kept := series[:0:0]
	for _, s := range series {
		for _, row := range s.Rows {
			if row.Volume.GreaterThanOrEqual(minVolume) && row.MarketCap.GreaterThanOrEqual(minMarketCap) {
				kept = append(kept, s)
				break
			}
		}
	}
	return kept
}
