package app

import (
	"context"
	"errors"
)

// Publish upserts the filled dataset into postgres.
func (a *App) Publish(ctx context.Context, opts LoadOptions) error {
	store, closeStore, err := a.openStore(ctx)
	if err != nil {
		return err
	}
	if store == nil {
		return errors.New("database.dsn not configured; cannot publish")
	}
	defer closeStore()

	if err := store.EnsureSchema(ctx); err != nil {
		return err
	}

	ds, err := a.loadDataset(opts.Dataset)
	if err != nil {
		return err
	}

	for _, s := range ds.Series {
		if err := store.UpsertRows(ctx, s.Rows); err != nil {
			return err
		}
		a.Logger.Debug().Str("slug", s.Slug).Int("rows", len(s.Rows)).Msg("series published")
	}

	total, err := store.CountRows(ctx)
	if err != nil {
		return err
	}
	a.Logger.Info().Int("currencies", len(ds.Series)).Int("published", ds.Samples()).Int64("table_rows", total).Msg("dataset published")
	return nil
}
