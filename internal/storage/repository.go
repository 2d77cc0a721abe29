package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"coinmarketcap-history/internal/model"
)

var (
	// ErrNotConfigured indicates the storage pool was not initialised.
	ErrNotConfigured = errors.New("storage: pool not configured")
)

const upsertBatchSize = 1000

const (
	createSchemaSQL = `CREATE TABLE IF NOT EXISTS history_rows (
        slug         TEXT        NOT NULL,
        day          DATE        NOT NULL,
        name         TEXT        NOT NULL,
        open         NUMERIC     NOT NULL,
        high         NUMERIC     NOT NULL,
        low          NUMERIC     NOT NULL,
        close        NUMERIC     NOT NULL,
        volume       NUMERIC     NOT NULL,
        market_cap   NUMERIC     NOT NULL,
        interpolated BOOLEAN     NOT NULL DEFAULT FALSE,
        updated_at   TIMESTAMPTZ NOT NULL DEFAULT now(),
        PRIMARY KEY (slug, day)
    );`

	upsertHistoryRowSQL = `INSERT INTO history_rows (
        slug,
        day,
        name,
        open,
        high,
        low,
        close,
        volume,
        market_cap,
        interpolated
    ) VALUES (
        $1,$2,$3,$4,$5,$6,$7,$8,$9,$10
    )
    ON CONFLICT (slug, day) DO UPDATE
    SET
        name         = EXCLUDED.name,
        open         = EXCLUDED.open,
        high         = EXCLUDED.high,
        low          = EXCLUDED.low,
        close        = EXCLUDED.close,
        volume       = EXCLUDED.volume,
        market_cap   = EXCLUDED.market_cap,
        interpolated = EXCLUDED.interpolated,
        updated_at   = now();`

	listRecentRowsSQL = `SELECT
        slug,
        day,
        name,
        open::text,
        high::text,
        low::text,
        close::text,
        volume::text,
        market_cap::text,
        interpolated
    FROM history_rows
    WHERE slug = $1
    ORDER BY day DESC
    LIMIT $2;`

	countRowsSQL = `SELECT COUNT(*) FROM history_rows;`

	tryAdvisoryLockSQL = `SELECT pg_try_advisory_lock($1);`
	advisoryUnlockSQL  = `SELECT pg_advisory_unlock($1);`
)

// HistoryRowStore defines operations for published dataset rows.
type HistoryRowStore interface {
	EnsureSchema(ctx context.Context) error
	UpsertRows(ctx context.Context, rows []model.ConsolidatedRow) error
	ListRecentRows(ctx context.Context, slug string, limit int) ([]model.ConsolidatedRow, error)
	CountRows(ctx context.Context) (int64, error)
}

// AdvisoryLocker exposes advisory lock helpers.
type AdvisoryLocker interface {
	TryAdvisoryLock(ctx context.Context, key int64) (unlock func(), acquired bool, err error)
}

// Store aggregates access to published history rows.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wires a pgx pool into a Store.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// Close releases the underlying pool resources.
func (s *Store) Close() {
	if s == nil || s.pool == nil {
		return
	}
	s.pool.Close()
}

// TryAdvisoryLock attempts to acquire a postgres advisory lock and returns a release func.
func (s *Store) TryAdvisoryLock(ctx context.Context, key int64) (func(), bool, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, false, err
	}

	conn, err := pool.Acquire(ctx)
	if err != nil {
		return nil, false, fmt.Errorf("acquire connection: %w", err)
	}

	var acquired bool
	if err := conn.QueryRow(ctx, tryAdvisoryLockSQL, key).Scan(&acquired); err != nil {
		conn.Release()
		return nil, false, fmt.Errorf("try advisory lock: %w", err)
	}
	if !acquired {
		conn.Release()
		return nil, false, nil
	}

	unlock := func() {
		ctxUnlock, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		// Best effort: the lock is released with the session anyway.
		_, _ = conn.Exec(ctxUnlock, advisoryUnlockSQL, key)
		conn.Release()
	}
	return unlock, true, nil
}

func (s *Store) getPool() (*pgxpool.Pool, error) {
	if s == nil || s.pool == nil {
		return nil, ErrNotConfigured
	}
	return s.pool, nil
}

// EnsureSchema creates the history_rows table when missing.
func (s *Store) EnsureSchema(ctx context.Context) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}
	if _, err := pool.Exec(ctx, createSchemaSQL); err != nil {
		return fmt.Errorf("ensure schema: %w", err)
	}
	return nil
}

// UpsertRows persists or updates rows keyed by (slug, day) in batches.
func (s *Store) UpsertRows(ctx context.Context, rows []model.ConsolidatedRow) error {
	pool, err := s.getPool()
	if err != nil {
		return err
	}

	for start := 0; start < len(rows); start += upsertBatchSize {
		end := min(start+upsertBatchSize, len(rows))

		batch := &pgx.Batch{}
		for _, row := range rows[start:end] {
			batch.Queue(upsertHistoryRowSQL,
				row.Slug,
				row.Date,
				row.Name,
				row.Open.String(),
				row.High.String(),
				row.Low.String(),
				row.Close.String(),
				row.Volume.String(),
				row.MarketCap.String(),
				row.Interpolated,
			)
		}

		results := pool.SendBatch(ctx, batch)
		for range rows[start:end] {
			if _, execErr := results.Exec(); execErr != nil {
				results.Close()
				return fmt.Errorf("upsert history row: %w", execErr)
			}
		}
		if err := results.Close(); err != nil {
			return fmt.Errorf("close upsert batch: %w", err)
		}
	}
	return nil
}

// ListRecentRows lists the most recent rows of slug ordered by descending day.
func (s *Store) ListRecentRows(ctx context.Context, slug string, limit int) ([]model.ConsolidatedRow, error) {
	pool, err := s.getPool()
	if err != nil {
		return nil, err
	}

	rows, queryErr := pool.Query(ctx, listRecentRowsSQL, slug, limit)
	if queryErr != nil {
		return nil, fmt.Errorf("list recent rows: %w", queryErr)
	}
	defer rows.Close()

	out := make([]model.ConsolidatedRow, 0, limit)
	for rows.Next() {
		row, scanErr := scanHistoryRow(rows)
		if scanErr != nil {
			return nil, scanErr
		}
		out = append(out, row)
	}
	if rows.Err() != nil {
		return nil, rows.Err()
	}
	return out, nil
}

// CountRows counts published rows.
func (s *Store) CountRows(ctx context.Context) (int64, error) {
	pool, err := s.getPool()
	if err != nil {
		return 0, err
	}
	var count int64
	if scanErr := pool.QueryRow(ctx, countRowsSQL).Scan(&count); scanErr != nil {
		return 0, fmt.Errorf("count rows: %w", scanErr)
	}
	return count, nil
}

func scanHistoryRow(rows pgx.Rows) (model.ConsolidatedRow, error) {
	var (
		row     model.ConsolidatedRow
		day     time.Time
		numbers [6]string
	)

	if err := rows.Scan(
		&row.Slug,
		&day,
		&row.Name,
		&numbers[0],
		&numbers[1],
		&numbers[2],
		&numbers[3],
		&numbers[4],
		&numbers[5],
		&row.Interpolated,
	); err != nil {
		return model.ConsolidatedRow{}, err
	}

	values := make([]decimal.Decimal, len(numbers))
	for i, raw := range numbers {
		v, err := decimal.NewFromString(raw)
		if err != nil {
			return model.ConsolidatedRow{}, fmt.Errorf("parse numeric column %d: %w", i, err)
		}
		values[i] = v
	}
	row.Date = model.Day(day)
	row.SetNumbers(values)
	return row, nil
}

var (
	_ HistoryRowStore = (*Store)(nil)
	_ AdvisoryLocker  = (*Store)(nil)
)
