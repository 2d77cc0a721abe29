package catalog

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"coinmarketcap-history/internal/cache"
	"coinmarketcap-history/internal/fetcher"
	"coinmarketcap-history/internal/model"
	"coinmarketcap-history/internal/scheduler"
)

// ErrEmptyCatalog indicates a listing page parsed to zero entities.
var ErrEmptyCatalog = errors.New("catalog: listing produced no entities")

// Catalog holds both entity listings in source order.
type Catalog struct {
	Coins  []model.Entity
	Tokens []model.Entity
}

// All returns coins followed by tokens.
func (c Catalog) All() []model.Entity {
	all := make([]model.Entity, 0, len(c.Coins)+len(c.Tokens))
	all = append(all, c.Coins...)
	return append(all, c.Tokens...)
}

// Get returns the listing of kind.
func (c Catalog) Get(kind model.Kind) []model.Entity {
	if kind == model.KindTokens {
		return c.Tokens
	}
	return c.Coins
}

func (c *Catalog) set(kind model.Kind, entities []model.Entity) {
	if kind == model.KindTokens {
		c.Tokens = entities
		return
	}
	c.Coins = entities
}

// Loader resolves the catalog from cache or source.
type Loader struct {
	store   *cache.Store
	source  fetcher.ListingFetcher
	sched   *scheduler.Scheduler
	logger  zerolog.Logger
	refresh bool
}

// NewLoader wires a catalog loader. forceRefresh bypasses the cache.
func NewLoader(store *cache.Store, source fetcher.ListingFetcher, sched *scheduler.Scheduler, forceRefresh bool, logger zerolog.Logger) *Loader {
	return &Loader{
		store:   store,
		source:  source,
		sched:   sched,
		refresh: forceRefresh,
		logger:  logger.With().Str("component", "catalog").Logger(),
	}
}

// Load returns the cached catalog when both listings are non-empty, otherwise
// scrapes both listings and caches them. An empty scrape is never cached.
func (l *Loader) Load(ctx context.Context) (Catalog, error) {
	if !l.refresh {
		cached, ok := l.fromCache()
		if ok {
			l.logger.Info().Int("coins", len(cached.Coins)).Int("tokens", len(cached.Tokens)).Msg("catalog loaded from cache")
			return cached, nil
		}
	}

	l.sched.Reset()
	var fresh Catalog
	for _, kind := range model.Kinds {
		if err := l.sched.Wait(ctx); err != nil {
			return Catalog{}, err
		}
		entities, err := l.source.FetchListing(ctx, kind)
		if err != nil {
			return Catalog{}, fmt.Errorf("fetch %s listing: %w", kind, err)
		}
		if len(entities) == 0 {
			return Catalog{}, fmt.Errorf("%w: %s", ErrEmptyCatalog, kind)
		}
		fresh.set(kind, entities)
	}

	for _, kind := range model.Kinds {
		if err := l.store.SaveCatalog(kind, fresh.Get(kind)); err != nil {
			return Catalog{}, fmt.Errorf("cache %s listing: %w", kind, err)
		}
	}

	l.logger.Info().Int("coins", len(fresh.Coins)).Int("tokens", len(fresh.Tokens)).Msg("catalog scraped")
	return fresh, nil
}

func (l *Loader) fromCache() (Catalog, bool) {
	var cached Catalog
	for _, kind := range model.Kinds {
		entities, err := l.store.LoadCatalog(kind)
		if err != nil {
			l.logger.Warn().Err(err).Str("kind", string(kind)).Msg("discarding corrupt catalog cache")
		}
		if len(entities) == 0 {
			return Catalog{}, false
		}
		cached.set(kind, entities)
	}
	return cached, true
}
