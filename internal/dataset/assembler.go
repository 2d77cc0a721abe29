package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/rs/zerolog"

	"coinmarketcap-history/internal/cache"
	"coinmarketcap-history/internal/model"
)

// Header is the column layout of the consolidated dataset file.
var Header = []string{"date", "slug", "name", "open", "high", "low", "close", "volume", "marketcap"}

// AssembleStats reports what one rebuild wrote.
type AssembleStats struct {
	Entities int
	Rows     int
}

// Assembler flattens every cached history into the consolidated dataset.
type Assembler struct {
	store  *cache.Store
	path   string
	logger zerolog.Logger
}

// NewAssembler constructs an assembler writing to path.
func NewAssembler(store *cache.Store, path string, logger zerolog.Logger) *Assembler {
	return &Assembler{store: store, path: path, logger: logger.With().Str("component", "assembler").Logger()}
}

// Path returns the dataset file location.
func (a *Assembler) Path() string {
	return a.path
}

// NeedsRebuild reports whether the dataset is stale: some history changed or
// the file does not exist yet.
func (a *Assembler) NeedsRebuild(updated int) bool {
	if updated > 0 {
		return true
	}
	_, err := os.Stat(a.path)
	return errors.Is(err, os.ErrNotExist)
}

// Assemble rewrites the dataset from scratch, entities in the given order and
// each entity's rows date-ascending.
func (a *Assembler) Assemble(entities []model.Entity) (AssembleStats, error) {
	dir := filepath.Dir(a.path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return AssembleStats{}, fmt.Errorf("create dataset dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(a.path)+".*")
	if err != nil {
		return AssembleStats{}, fmt.Errorf("create dataset temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer os.Remove(tmpName)

	stats, err := a.write(tmp, entities)
	if closeErr := tmp.Close(); err == nil {
		err = closeErr
	}
	if err != nil {
		return AssembleStats{}, fmt.Errorf("write dataset: %w", err)
	}
	if err := os.Rename(tmpName, a.path); err != nil {
		return AssembleStats{}, fmt.Errorf("replace dataset: %w", err)
	}

	a.logger.Info().Int("currencies", stats.Entities).Int("rows", stats.Rows).Str("path", a.path).Msg("dataset assembled")
	return stats, nil
}

func (a *Assembler) write(w io.Writer, entities []model.Entity) (AssembleStats, error) {
	writer := csv.NewWriter(w)
	if err := writer.Write(Header); err != nil {
		return AssembleStats{}, err
	}

	var stats AssembleStats
	seen := make(map[string]struct{}, len(entities))
	for _, entity := range entities {
		if _, dup := seen[entity.Slug]; dup {
			continue
		}
		seen[entity.Slug] = struct{}{}

		rows, err := a.store.LoadHistory(entity.Slug)
		if err != nil {
			a.logger.Warn().Err(err).Str("slug", entity.Slug).Msg("skipping corrupt history")
			continue
		}
		stats.Entities++
		for _, row := range rows {
			if err := writer.Write(Record(model.ConsolidatedRow{Slug: entity.Slug, Name: entity.Name, HistoryRow: row})); err != nil {
				return AssembleStats{}, err
			}
			stats.Rows++
		}
		a.logger.Debug().Str("slug", entity.Slug).Int("rows", len(rows)).Msg("entity appended")
	}

	writer.Flush()
	return stats, writer.Error()
}

// Record renders a consolidated row in Header order.
func Record(row model.ConsolidatedRow) []string {
	record := []string{model.FormatDate(row.Date), row.Slug, row.Name}
	for _, v := range row.Numbers() {
		record = append(record, v.String())
	}
	return record
}
