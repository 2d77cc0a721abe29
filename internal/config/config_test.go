package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o644))
	return path
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(writeConfig(t, "app:\n  name: test\n"))
	require.NoError(t, err)

	assert.Equal(t, "test", cfg.App.Name)
	assert.Equal(t, "cache", cfg.Cache.Dir)
	assert.Equal(t, "coinmarketcap.csv", cfg.Dataset.Path)
	assert.Equal(t, 20, cfg.Fetch.Workers)
	assert.Equal(t, 10, cfg.Fetch.MaxAttempts)
	assert.Equal(t, time.Second, cfg.Fetch.InitialBackoff)
	assert.Equal(t, 365, cfg.Loader.MinSamples)
	assert.Equal(t, 1_000_000.0, cfg.Loader.MinVolume)
	assert.True(t, cfg.Loader.FillMissingDates)
	assert.Equal(t, "stderr", cfg.Logging.Output)

	start, err := cfg.HistoryStart()
	require.NoError(t, err)
	assert.Equal(t, time.Date(2010, 1, 1, 0, 0, 0, 0, time.UTC), start)
}

func TestLoadOverrides(t *testing.T) {
	cfg, err := Load(writeConfig(t, `
cache:
  dir: /tmp/cmc
fetch:
  workers: 4
  initial_backoff: 250ms
  history_start: "20200101"
loader:
  min_samples: 30
  fill_missing_dates: false
export:
  max_data_points: 100
`))
	require.NoError(t, err)
	assert.Equal(t, "/tmp/cmc", cfg.Cache.Dir)
	assert.Equal(t, 4, cfg.Fetch.Workers)
	assert.Equal(t, 250*time.Millisecond, cfg.Fetch.InitialBackoff)
	assert.Equal(t, 30, cfg.Loader.MinSamples)
	assert.False(t, cfg.Loader.FillMissingDates)
	assert.Equal(t, 100, cfg.ResolveMaxPoints(0))
	assert.Equal(t, 7, cfg.ResolveMaxPoints(7))
}

func TestLoadEnvOverride(t *testing.T) {
	t.Setenv("CMCSCRAPE_FETCH_WORKERS", "3")
	cfg, err := Load(writeConfig(t, "{}\n"))
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Fetch.Workers)
}

func TestValidate(t *testing.T) {
	cases := map[string]string{
		"workers":      "fetch:\n  workers: 0\n",
		"attempts":     "fetch:\n  max_attempts: -1\n",
		"start":        "fetch:\n  history_start: \"2010-01-01\"\n",
		"min samples":  "loader:\n  min_samples: -5\n",
		"rate":         "source:\n  requests_per_second: -1\n",
		"cache dir":    "cache:\n  dir: \"\"\n",
		"export limit": "export:\n  max_data_points: 0\n",
	}
	for name, body := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := Load(writeConfig(t, body))
			assert.Error(t, err)
		})
	}
}
