package dataset

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coinmarketcap-history/internal/cache"
	"coinmarketcap-history/internal/model"
)

func day(m time.Month, d int) time.Time {
	return time.Date(2020, m, d, 0, 0, 0, 0, time.UTC)
}

func hrow(date time.Time, v int64) model.HistoryRow {
	n := decimal.NewFromInt(v)
	return model.HistoryRow{Date: date, Open: n, High: n, Low: n, Close: n, Volume: n.Mul(decimal.NewFromInt(1000)), MarketCap: n.Mul(decimal.NewFromInt(10000))}
}

func crow(slug string, date time.Time, v int64) model.ConsolidatedRow {
	return model.ConsolidatedRow{Slug: slug, Name: strings.ToUpper(slug), HistoryRow: hrow(date, v)}
}

func TestAssembleWritesEntitiesInOrder(t *testing.T) {
	dir := t.TempDir()
	store := cache.NewStore(filepath.Join(dir, "cache"), zerolog.Nop())
	require.NoError(t, store.SaveHistory("bitcoin", []model.HistoryRow{hrow(day(1, 1), 1), hrow(day(1, 2), 2)}))
	require.NoError(t, store.SaveHistory("tether", []model.HistoryRow{hrow(day(1, 1), 3)}))
	require.NoError(t, store.Save(cache.HistoryKey("broken"), []byte("nope")))

	path := filepath.Join(dir, "out", "dataset.csv")
	asm := NewAssembler(store, path, zerolog.Nop())
	assert.True(t, asm.NeedsRebuild(0), "missing dataset must be built")

	stats, err := asm.Assemble([]model.Entity{
		{Name: "Bitcoin", Slug: "bitcoin"},
		{Name: "Broken", Slug: "broken"},
		{Name: "Missing", Slug: "missing"},
		{Name: "Tether", Slug: "tether"},
		{Name: "Bitcoin", Slug: "bitcoin"},
	})
	require.NoError(t, err)
	assert.Equal(t, AssembleStats{Entities: 3, Rows: 3}, stats)
	assert.False(t, asm.NeedsRebuild(0))
	assert.True(t, asm.NeedsRebuild(1))

	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	want := strings.Join([]string{
		"date,slug,name,open,high,low,close,volume,marketcap",
		"20200101,bitcoin,Bitcoin,1,1,1,1,1000,10000",
		"20200102,bitcoin,Bitcoin,2,2,2,2,2000,20000",
		"20200101,tether,Tether,3,3,3,3,3000,30000",
	}, "\n") + "\n"
	assert.Equal(t, want, string(raw))
}

func TestFillInterpolatesMissingDay(t *testing.T) {
	s := Series{Slug: "x", Name: "X", Rows: []model.ConsolidatedRow{
		crow("x", day(1, 1), 10),
		crow("x", day(1, 2), 20),
		crow("x", day(1, 4), 40),
		crow("x", day(1, 5), 50),
	}}

	out, filled, err := Fill(s)
	require.NoError(t, err)
	assert.Equal(t, 1, filled)
	require.Len(t, out.Rows, 5)

	mid := out.Rows[2]
	assert.Equal(t, day(1, 3), mid.Date)
	assert.True(t, mid.Interpolated)
	assert.Equal(t, "x", mid.Slug)
	assert.Equal(t, "X", mid.Name)
	assert.True(t, mid.Close.Equal(decimal.NewFromInt(30)), mid.Close.String())
	assert.True(t, mid.MarketCap.Equal(decimal.NewFromInt(300000)))
	assert.False(t, out.Rows[1].Interpolated)
}

func TestFillLongGap(t *testing.T) {
	s := Series{Slug: "x", Rows: []model.ConsolidatedRow{crow("x", day(1, 1), 0), crow("x", day(1, 5), 8)}}

	out, filled, err := Fill(s)
	require.NoError(t, err)
	assert.Equal(t, 3, filled)
	for i, want := range []int64{0, 2, 4, 6, 8} {
		assert.Equal(t, day(1, i+1), out.Rows[i].Date)
		assert.True(t, out.Rows[i].Open.Equal(decimal.NewFromInt(want)), "day %d: %s", i+1, out.Rows[i].Open)
	}
}

func TestFillDuplicateDate(t *testing.T) {
	s := Series{Slug: "x", Rows: []model.ConsolidatedRow{crow("x", day(1, 1), 1), crow("x", day(1, 1), 2)}}
	_, _, err := Fill(s)
	assert.ErrorIs(t, err, ErrDuplicateDate)
}

func TestFillEmptyAndComplete(t *testing.T) {
	out, filled, err := Fill(Series{Slug: "x"})
	require.NoError(t, err)
	assert.Zero(t, filled)
	assert.Empty(t, out.Rows)

	full := Series{Slug: "x", Rows: []model.ConsolidatedRow{crow("x", day(1, 1), 1), crow("x", day(1, 2), 2)}}
	out, filled, err = Fill(full)
	require.NoError(t, err)
	assert.Zero(t, filled)
	assert.Equal(t, full.Rows, out.Rows)
}

// consolidated renders a dataset file with days consecutive rows per slug.
func consolidated(days map[string]int, volume int64) string {
	var b strings.Builder
	b.WriteString(strings.Join(Header, ",") + "\n")
	for _, slug := range []string{"long", "short"} {
		for i := 0; i < days[slug]; i++ {
			d := model.FormatDate(day(1, 1).AddDate(0, 0, i))
			fmt.Fprintf(&b, "%s,%s,%s,1,1,1,1,%d,%d\n", d, slug, slug, volume, volume)
		}
	}
	return b.String()
}

func TestLoaderMinSamples(t *testing.T) {
	data := consolidated(map[string]int{"long": 400, "short": 300}, 2_000_000)

	ds, err := NewLoader("", DefaultOptions(), zerolog.Nop()).LoadFrom(strings.NewReader(data))
	require.NoError(t, err)
	require.Len(t, ds.Series, 1)
	assert.Equal(t, "long", ds.Series[0].Slug)
	assert.Equal(t, 400, ds.Samples())
	assert.Zero(t, ds.Filled)

	_, ok := ds.Lookup("short")
	assert.False(t, ok)
}

func TestLoaderVolumeAndMarketCapFilter(t *testing.T) {
	data := consolidated(map[string]int{"long": 400}, 999_999)

	ds, err := NewLoader("", DefaultOptions(), zerolog.Nop()).LoadFrom(strings.NewReader(data))
	require.NoError(t, err)
	assert.Empty(t, ds.Series)

	opts := DefaultOptions()
	opts.MinVolume = decimal.NewFromInt(999_999)
	opts.MinMarketCap = decimal.NewFromInt(999_999)
	ds, err = NewLoader("", opts, zerolog.Nop()).LoadFrom(strings.NewReader(data))
	require.NoError(t, err)
	assert.Len(t, ds.Series, 1)
}

func TestFilterRequiresOneDayMeetingBothThresholds(t *testing.T) {
	s := Series{Slug: "x", Rows: []model.ConsolidatedRow{crow("x", day(1, 1), 1), crow("x", day(1, 2), 1)}}
	s.Rows[0].Volume = decimal.NewFromInt(100)
	s.Rows[1].MarketCap = decimal.NewFromInt(100)

	kept := FilterMinVolumeAndMarketCap([]Series{s}, decimal.NewFromInt(50), decimal.NewFromInt(50))
	assert.Empty(t, kept)

	s.Rows[1].Volume = decimal.NewFromInt(100)
	kept = FilterMinVolumeAndMarketCap([]Series{s}, decimal.NewFromInt(50), decimal.NewFromInt(50))
	assert.Len(t, kept, 1)
}

func TestLoaderFillsAndSortsRows(t *testing.T) {
	data := strings.Join(Header, ",") + "\n" +
		"20200103,x,X,3,3,3,3,3,3\n" +
		"20200101,x,X,1,1,1,1,1,1\n" +
		"20200101,y,Y,5,5,5,5,5,5\n"
	opts := Options{MinSamples: 1, FillMissingDates: true}

	ds, err := NewLoader("", opts, zerolog.Nop()).LoadFrom(strings.NewReader(data))
	require.NoError(t, err)
	require.Len(t, ds.Series, 2)
	assert.Equal(t, "x", ds.Series[0].Slug)
	assert.Equal(t, 1, ds.Filled)
	require.Len(t, ds.Series[0].Rows, 3)
	assert.True(t, ds.Series[0].Rows[1].Close.Equal(decimal.NewFromInt(2)))
}

func TestLoaderDuplicateDateFails(t *testing.T) {
	data := strings.Join(Header, ",") + "\n" +
		"20200101,x,X,1,1,1,1,1,1\n" +
		"20200101,x,X,2,2,2,2,2,2\n"
	_, err := NewLoader("", Options{FillMissingDates: true}, zerolog.Nop()).LoadFrom(strings.NewReader(data))
	assert.ErrorIs(t, err, ErrDuplicateDate)
}

func TestReadConsolidatedEdgeCases(t *testing.T) {
	series, err := ReadConsolidated(strings.NewReader(""))
	require.NoError(t, err)
	assert.Empty(t, series)

	_, err = ReadConsolidated(strings.NewReader("date,slug\n"))
	assert.Error(t, err)

	_, err = ReadConsolidated(strings.NewReader(strings.Join(Header, ",") + "\nbad,x,X,1,1,1,1,1,1\n"))
	assert.Error(t, err)
}

func TestLoaderMissingFile(t *testing.T) {
	_, err := NewLoader(filepath.Join(t.TempDir(), "none.csv"), DefaultOptions(), zerolog.Nop()).Load()
	assert.ErrorIs(t, err, os.ErrNotExist)
}
