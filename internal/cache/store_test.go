package cache

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coinmarketcap-history/internal/model"
)

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func row(date time.Time, close int64) model.HistoryRow {
	v := decimal.NewFromInt(close)
	return model.HistoryRow{
		Date:      date,
		Open:      v,
		High:      v.Add(decimal.NewFromInt(1)),
		Low:       v.Sub(decimal.NewFromInt(1)),
		Close:     v,
		Volume:    decimal.RequireFromString("1234567.89"),
		MarketCap: decimal.RequireFromString("98765432.1"),
	}
}

func TestHistoryRoundTrip(t *testing.T) {
	store := NewStore(t.TempDir(), zerolog.Nop())
	rows := []model.HistoryRow{
		row(day(2021, 1, 1), 100),
		row(day(2021, 1, 2), 101),
		row(day(2021, 1, 3), 102),
	}

	require.NoError(t, store.SaveHistory("bitcoin", rows))
	got, err := store.LoadHistory("bitcoin")
	require.NoError(t, err)
	require.Len(t, got, 3)
	for i := range rows {
		assert.True(t, rows[i].Date.Equal(got[i].Date))
		for c, v := range rows[i].Numbers() {
			assert.True(t, v.Equal(got[i].Numbers()[c]), "row %d column %d", i, c)
		}
	}

	raw, err := os.ReadFile(filepath.Join(store.Dir(), "bitcoin.csv"))
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(string(raw), "20210101,100,101,99,100,1234567.89,98765432.1\n"), string(raw))
}

func TestLoadHistoryMissingIsEmpty(t *testing.T) {
	store := NewStore(t.TempDir(), zerolog.Nop())
	rows, err := store.LoadHistory("nothing")
	require.NoError(t, err)
	assert.Empty(t, rows)

	_, ok := store.HistoryModified("nothing")
	assert.False(t, ok)
}

func TestLoadHistoryCorrupt(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "broken.csv"), []byte("20210101,abc\nnot,a,row\n"), 0o644))

	store := NewStore(dir, zerolog.Nop())
	rows, err := store.LoadHistory("broken")
	assert.Empty(t, rows)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCorrupt))

	var corrupt *CorruptError
	require.True(t, errors.As(err, &corrupt))
	assert.Equal(t, "broken.csv", corrupt.Key)
}

func TestSaveCreatesDirectoryAndTracksModification(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "cache")
	store := NewStore(dir, zerolog.Nop())

	require.NoError(t, store.SaveHistory("empty", nil))
	modified, ok := store.HistoryModified("empty")
	require.True(t, ok)
	assert.WithinDuration(t, time.Now(), modified, time.Minute)

	rows, err := store.LoadHistory("empty")
	require.NoError(t, err)
	assert.Empty(t, rows)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	assert.Len(t, entries, 1, "temporary files must not be left behind")
}

func TestCatalogRoundTrip(t *testing.T) {
	store := NewStore(t.TempDir(), zerolog.Nop())
	coins := []model.Entity{
		{Name: "Bitcoin", Slug: "bitcoin", Symbol: "BTC"},
		{Name: "Ethereum", Slug: "ethereum", Symbol: "ETH", ExplorerLink: "https://etherscan.io"},
	}
	require.NoError(t, store.SaveCatalog(model.KindCoins, coins))

	got, err := store.LoadCatalog(model.KindCoins)
	require.NoError(t, err)
	assert.Equal(t, coins, got)

	raw, err := os.ReadFile(filepath.Join(store.Dir(), "coins.json"))
	require.NoError(t, err)
	assert.Contains(t, string(raw), "\n    {\n        \"name\": \"Bitcoin\"")
}

func TestLoadCatalogCorrupt(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "tokens.json"), []byte("[{"), 0o644))

	entities, err := NewStore(dir, zerolog.Nop()).LoadCatalog(model.KindTokens)
	assert.Empty(t, entities)
	assert.ErrorIs(t, err, ErrCorrupt)
}

func TestInvalidKeys(t *testing.T) {
	store := NewStore(t.TempDir(), zerolog.Nop())
	for _, key := range []string{"", ".", "..", "../escape", `a\b`} {
		assert.ErrorIs(t, store.Save(key, []byte("x")), ErrInvalidKey, key)
		assert.Nil(t, store.Load(key), key)
	}
}
