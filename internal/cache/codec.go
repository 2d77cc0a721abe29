package cache

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"coinmarketcap-history/internal/model"
)

const historyFields = 7

// HistoryKey is the cache key for a slug's history.
func HistoryKey(slug string) string {
	return slug + ".csv"
}

// CatalogKey is the cache key for an entity listing.
func CatalogKey(kind model.Kind) string {
	return string(kind) + ".json"
}

// LoadHistory decodes the cached history of slug. A missing entry yields no rows
// and no error; a malformed entry yields no rows and a *CorruptError.
func (s *Store) LoadHistory(slug string) ([]model.HistoryRow, error) {
	key := HistoryKey(slug)
	data := s.Load(key)
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	rows, err := DecodeHistory(data)
	if err != nil {
		return nil, &CorruptError{Key: key, Err: err}
	}
	return rows, nil
}

// SaveHistory encodes rows (header-less CSV) under slug's key.
func (s *Store) SaveHistory(slug string, rows []model.HistoryRow) error {
	data, err := EncodeHistory(rows)
	if err != nil {
		return err
	}
	return s.Save(HistoryKey(slug), data)
}

// HistoryModified reports when slug's history was last written.
func (s *Store) HistoryModified(slug string) (time.Time, bool) {
	return s.LastModified(HistoryKey(slug))
}

// LoadCatalog decodes a cached entity listing.
func (s *Store) LoadCatalog(kind model.Kind) ([]model.Entity, error) {
	key := CatalogKey(kind)
	data := s.Load(key)
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, nil
	}
	var entities []model.Entity
	if err := json.Unmarshal(data, &entities); err != nil {
		return nil, &CorruptError{Key: key, Err: err}
	}
	return entities, nil
}

// SaveCatalog writes an entity listing as an indented JSON array.
func (s *Store) SaveCatalog(kind model.Kind, entities []model.Entity) error {
	if entities == nil {
		entities = []model.Entity{}
	}
	data, err := json.MarshalIndent(entities, "", "    ")
	if err != nil {
		return fmt.Errorf("marshal %s catalog: %w", kind, err)
	}
	return s.Save(CatalogKey(kind), data)
}

// EncodeHistory renders rows as date,open,high,low,close,volume,marketcap lines.
func EncodeHistory(rows []model.HistoryRow) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)
	for _, row := range rows {
		record := make([]string, 0, historyFields)
		record = append(record, model.FormatDate(row.Date))
		for _, v := range row.Numbers() {
			record = append(record, v.String())
		}
		if err := writer.Write(record); err != nil {
			return nil, err
		}
	}
	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("encode history: %w", err)
	}
	return buf.Bytes(), nil
}

// DecodeHistory parses header-less history CSV.
func DecodeHistory(data []byte) ([]model.HistoryRow, error) {
	reader := csv.NewReader(bytes.NewReader(data))
	reader.FieldsPerRecord = historyFields
	records, err := reader.ReadAll()
	if err != nil {
		return nil, err
	}

	rows := make([]model.HistoryRow, 0, len(records))
	for i, record := range records {
		date, err := model.ParseDate(record[0])
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		values := make([]decimal.Decimal, 0, historyFields-1)
		for _, field := range record[1:] {
			v, err := decimal.NewFromString(field)
			if err != nil {
				return nil, fmt.Errorf("line %d: parse %q: %w", i+1, field, err)
			}
			values = append(values, v)
		}
		row := model.HistoryRow{Date: date}
		row.SetNumbers(values)
		rows = append(rows, row)
	}
	return rows, nil
}
