package app

import (
	"context"
	"errors"
	"fmt"

	"coinmarketcap-history/internal/catalog"
	"coinmarketcap-history/internal/dataset"
	"coinmarketcap-history/internal/history"
)

// ScrapeReport summarises one scrape run.
type ScrapeReport struct {
	Coins     int
	Tokens    int
	History   history.Result
	Assembled bool
	Dataset   dataset.AssembleStats
}

// Scrape refreshes the catalog, fetches missing histories and rebuilds the
// consolidated dataset when anything changed. Permanently failed entities are
// reported through history.ErrIncomplete after the dataset has been rebuilt.
func (a *App) Scrape(ctx context.Context, opts ScrapeOptions) (ScrapeReport, error) {
	unlock, err := a.lockRun(ctx)
	if err != nil {
		return ScrapeReport{}, err
	}
	defer unlock()

	store := a.newCache()
	source := a.newSource()
	sched := a.newScheduler()

	cat, err := catalog.NewLoader(store, source, sched, opts.ForceCatalog, a.Logger).Load(ctx)
	if err != nil {
		return ScrapeReport{}, err
	}
	report := ScrapeReport{Coins: len(cat.Coins), Tokens: len(cat.Tokens)}
	entities := cat.All()

	res, fetchErr := history.NewFetcher(store, source, sched, a.historyOptions(), a.Logger).FetchHistories(ctx, entities)
	report.History = res
	if fetchErr != nil && !errors.Is(fetchErr, history.ErrIncomplete) {
		return report, fetchErr
	}
	for slug, err := range res.Failed {
		a.Logger.Error().Err(err).Str("slug", slug).Msg("history not fetched")
	}

	asm := dataset.NewAssembler(store, a.Config.Dataset.Path, a.Logger)
	if asm.NeedsRebuild(res.Updated) {
		stats, err := asm.Assemble(entities)
		if err != nil {
			return report, err
		}
		report.Assembled = true
		report.Dataset = stats
	} else {
		a.Logger.Info().Str("path", asm.Path()).Msg("dataset up to date")
	}

	return report, fetchErr
}

// lockRun serialises scrape runs through a postgres advisory lock when a
// database is configured.
func (a *App) lockRun(ctx context.Context) (func(), error) {
	noop := func() {}
	if a.Config.Database.AdvisoryLockKey == 0 {
		return noop, nil
	}
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return nil, err
	}
	if store == nil {
		return noop, nil
	}

	release, acquired, err := store.TryAdvisoryLock(ctx, a.Config.Database.AdvisoryLockKey)
	if err != nil {
		closeStore()
		return nil, err
	}
	if !acquired {
		closeStore()
		return nil, fmt.Errorf("another scrape run holds advisory lock %d", a.Config.Database.AdvisoryLockKey)
	}
	return func() {
		release()
		closeStore()
	}, nil
}
