package app

import (
	"context"
	"io"
	"os"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"coinmarketcap-history/internal/cache"
	"coinmarketcap-history/internal/config"
	"coinmarketcap-history/internal/dataset"
	"coinmarketcap-history/internal/fetcher"
	"coinmarketcap-history/internal/history"
	"coinmarketcap-history/internal/scheduler"
	"coinmarketcap-history/internal/storage"
)

// App aggregates configuration and shared dependencies for the CLI commands.
type App struct {
	Config *config.Config
	Logger zerolog.Logger
	Out    io.Writer
}

// NewApp constructs a new application handle.
func NewApp(cfg *config.Config, logger zerolog.Logger) *App {
	return &App{Config: cfg, Logger: logger.With().Str("component", "app").Logger(), Out: os.Stdout}
}

func (a *App) newCache() *cache.Store {
	return cache.NewStore(a.Config.Cache.Dir, a.Logger)
}

func (a *App) newSource() fetcher.Source {
	return fetcher.NewCoinMarketCap(fetcher.CoinMarketCapOptions{
		BaseURL:   a.Config.Source.BaseURL,
		Timeout:   a.Config.Source.RequestTimeout,
		UserAgent: a.Config.Source.UserAgent,
	}, a.Logger)
}

func (a *App) newScheduler() *scheduler.Scheduler {
	return scheduler.New(scheduler.Options{
		RequestsPerSecond: a.Config.Source.RequestsPerSecond,
		Burst:             a.Config.Source.Burst,
	}, a.Logger)
}

func (a *App) historyOptions() history.Options {
	start, _ := a.Config.HistoryStart()
	return history.Options{
		Workers:      a.Config.Fetch.Workers,
		HistoryStart: start,
		Retry: history.RetryPolicy{
			MaxAttempts:     a.Config.Fetch.MaxAttempts,
			InitialInterval: a.Config.Fetch.InitialBackoff,
			MaxInterval:     a.Config.Fetch.MaxBackoff,
			Multiplier:      a.Config.Fetch.Multiplier,
			MaxElapsedTime:  a.Config.Fetch.MaxElapsed,
		},
	}
}

// LoaderOptions returns dataset filters from configuration.
func (a *App) LoaderOptions() dataset.Options {
	return dataset.Options{
		MinSamples:       a.Config.Loader.MinSamples,
		MinVolume:        decimal.NewFromFloat(a.Config.Loader.MinVolume),
		MinMarketCap:     decimal.NewFromFloat(a.Config.Loader.MinMarketCap),
		FillMissingDates: a.Config.Loader.FillMissingDates,
	}
}

func (a *App) loadDataset(opts dataset.Options) (dataset.Dataset, error) {
	return dataset.NewLoader(a.Config.Dataset.Path, opts, a.Logger).Load()
}

func (a *App) openStore(ctx context.Context) (*storage.Store, func(), error) {
	if a.Config.Database.DSN == "" {
		return nil, nil, nil
	}

	store, err := storage.Open(ctx, a.Config.Database, a.Config.App.Name)
	if err != nil {
		return nil, nil, err
	}
	return store, store.Close, nil
}

// ScrapeOptions configure the scrape command.
type ScrapeOptions struct {
	ForceCatalog bool
}

// LoadOptions configure the load command.
type LoadOptions struct {
	Dataset dataset.Options
}

// ShowOptions configure the show command.
type ShowOptions struct {
	Slug   string
	Limit  int
	FromDB bool
}

// ExportOptions hold parameters for exporting one entity's filled series.
type ExportOptions struct {
	Slug      string
	PNGPath   string
	CSVPath   string
	MaxPoints int
}
