package history

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"coinmarketcap-history/internal/cache"
	"coinmarketcap-history/internal/fetcher"
	"coinmarketcap-history/internal/model"
	"coinmarketcap-history/internal/scheduler"
)

const defaultWorkers = 20

// ErrIncomplete is returned alongside a partial Result when some entities
// could not be fetched.
var ErrIncomplete = errors.New("history: some entities could not be fetched")

// DefaultHistoryStart is the first day requested for an entity with no cache.
var DefaultHistoryStart = time.Date(2010, time.January, 1, 0, 0, 0, 0, time.UTC)

// Options tune a Fetcher.
type Options struct {
	Workers      int
	HistoryStart time.Time
	Retry        RetryPolicy
	Now          func() time.Time
}

// Window is the half-open range [Start, End) of days missing for Slug.
type Window struct {
	Slug  string
	Start time.Time
	End   time.Time
}

// Last is the inclusive end day sent to the source.
func (w Window) Last() time.Time {
	return w.End.AddDate(0, 0, -1)
}

// Result summarises one FetchHistories call.
type Result struct {
	Requested int
	Updated   int
	Rounds    int
	Succeeded []string
	Failed    map[string]error
}

// Fetcher brings each entity's cached history up to yesterday.
type Fetcher struct {
	store  *cache.Store
	source fetcher.HistoryFetcher
	sched  *scheduler.Scheduler
	opts   Options
	logger zerolog.Logger
}

// NewFetcher wires a history fetcher.
func NewFetcher(store *cache.Store, source fetcher.HistoryFetcher, sched *scheduler.Scheduler, opts Options, logger zerolog.Logger) *Fetcher {
	if opts.Workers <= 0 {
		opts.Workers = defaultWorkers
	}
	if opts.HistoryStart.IsZero() {
		opts.HistoryStart = DefaultHistoryStart
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Fetcher{
		store:  store,
		source: source,
		sched:  sched,
		opts:   opts,
		logger: logger.With().Str("component", "history_fetcher").Logger(),
	}
}

// MissingWindow computes the range still to fetch for slug. The boolean is
// false when nothing needs to be requested today.
func (f *Fetcher) MissingWindow(slug string) (Window, bool) {
	return f.missingWindow(slug, model.Day(f.opts.Now()))
}

// missingWindow computes slug's window against a fixed end day so one batch
// shares a single "today".
func (f *Fetcher) missingWindow(slug string, today time.Time) (Window, bool) {

	rows, err := f.store.LoadHistory(slug)
	if err != nil {
		f.logger.Warn().Err(err).Str("slug", slug).Msg("cached history unreadable; refetching")
	}
	modified, exists := f.store.HistoryModified(slug)

	start := model.Day(f.opts.HistoryStart)
	switch {
	case len(rows) > 0:
		start = rows[len(rows)-1].Date.AddDate(0, 0, 1)
	case exists && err == nil:
		// An empty entry records that the source had nothing up to that day.
		if day := model.Day(modified); day.After(start) {
			start = day
		}
	}

	if !start.Before(today) {
		return Window{}, false
	}
	if exists && err == nil && !model.Day(modified).Before(today) {
		return Window{}, false
	}
	return Window{Slug: slug, Start: start, End: today}, true
}

type outcome struct {
	window Window
	rows   []model.HistoryRow
	err    error
}

// FetchHistories fetches every missing window concurrently, re-queueing
// transient failures per the retry policy, and merges successes into the cache.
// When entities remain unfetched the partial Result is returned with ErrIncomplete.
func (f *Fetcher) FetchHistories(ctx context.Context, entities []model.Entity) (Result, error) {
	res := Result{Failed: make(map[string]error)}

	today := model.Day(f.opts.Now())
	seen := make(map[string]struct{}, len(entities))
	var pending []Window
	for _, entity := range entities {
		if _, dup := seen[entity.Slug]; dup {
			continue
		}
		seen[entity.Slug] = struct{}{}
		if w, ok := f.missingWindow(entity.Slug, today); ok {
			pending = append(pending, w)
		}
	}
	res.Requested = len(pending)
	if len(pending) == 0 {
		f.logger.Info().Int("entities", len(entities)).Msg("histories up to date")
		return res, nil
	}

	f.sched.Reset()
	bo := f.opts.Retry.newBackOff(ctx)
	attempts := make(map[string]int, len(pending))

	for len(pending) > 0 {
		res.Rounds++
		f.logger.Info().Int("round", res.Rounds).Int("requests", len(pending)).Msg("fetching histories")

		var retry []Window
		for _, out := range f.runRound(ctx, pending) {
			slug := out.window.Slug
			attempts[slug]++

			if out.err == nil {
				added, err := f.merge(slug, out.rows)
				if err != nil {
					res.Failed[slug] = err
					continue
				}
				res.Succeeded = append(res.Succeeded, slug)
				if added > 0 {
					res.Updated++
				}
				continue
			}

			switch {
			case !fetcher.IsTransient(out.err):
				res.Failed[slug] = out.err
			case f.opts.Retry.exhausted(attempts[slug]):
				res.Failed[slug] = fmt.Errorf("gave up after %d attempts: %w", attempts[slug], out.err)
			default:
				f.logger.Debug().Err(out.err).Str("slug", slug).Int("attempt", attempts[slug]).Msg("request failed; re-queued")
				retry = append(retry, out.window)
			}
		}

		if err := ctx.Err(); err != nil {
			failAll(res.Failed, retry, err)
			return res, err
		}
		if len(retry) == 0 {
			break
		}

		delay := bo.NextBackOff()
		if delay == backoff.Stop {
			failAll(res.Failed, retry, errors.New("retry time budget exhausted"))
			break
		}
		f.logger.Warn().Int("failed", len(retry)).Dur("backoff", delay).Msg("retrying failed requests")
		if err := sleep(ctx, delay); err != nil {
			failAll(res.Failed, retry, err)
			return res, err
		}
		pending = retry
	}

	f.logger.Info().
		Int("requested", res.Requested).
		Int("updated", res.Updated).
		Int("failed", len(res.Failed)).
		Int("rounds", res.Rounds).
		Msg("history fetch finished")

	if len(res.Failed) > 0 {
		return res, fmt.Errorf("%w: %d of %d", ErrIncomplete, len(res.Failed), res.Requested)
	}
	return res, nil
}

// runRound issues one request per window on a bounded pool and waits for all of them.
func (f *Fetcher) runRound(ctx context.Context, pending []Window) []outcome {
	outcomes := make([]outcome, len(pending))

	var g errgroup.Group
	g.SetLimit(f.opts.Workers)
	for i, w := range pending {
		i, w := i, w
		g.Go(func() error {
			outcomes[i].window = w
			if err := f.sched.Wait(ctx); err != nil {
				outcomes[i].err = err
				return nil
			}
			outcomes[i].rows, outcomes[i].err = f.source.FetchHistory(ctx, w.Slug, w.Start, w.Last())
			return nil
		})
	}
	_ = g.Wait()
	return outcomes
}

// merge writes fetched rows into slug's cache entry. The entry is rewritten even
// when nothing new arrived so its modification time records today's check.
func (f *Fetcher) merge(slug string, fetched []model.HistoryRow) (int, error) {
	cached, err := f.store.LoadHistory(slug)
	if err != nil {
		f.logger.Warn().Err(err).Str("slug", slug).Msg("replacing corrupt cached history")
	}
	merged, added := Merge(cached, fetched)
	if err := f.store.SaveHistory(slug, merged); err != nil {
		return 0, fmt.Errorf("save %s history: %w", slug, err)
	}
	return added, nil
}

func failAll(failed map[string]error, windows []Window, err error) {
	for _, w := range windows {
		failed[w.Slug] = err
	}
}
