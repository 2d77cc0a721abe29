package history

import (
	"sort"

	"coinmarketcap-history/internal/model"
)

// Merge combines cached and fetched rows into one date-ascending series with
// one row per day. A fetched row replaces a cached row for the same date.
// The second result counts dates that were not cached before.
func Merge(cached, fetched []model.HistoryRow) ([]model.HistoryRow, int) {
	byDate := make(map[string]model.HistoryRow, len(cached)+len(fetched))
	for _, row := range cached {
		byDate[model.FormatDate(row.Date)] = row
	}

	added := 0
	for _, row := range fetched {
		key := model.FormatDate(row.Date)
		if _, ok := byDate[key]; !ok {
			added++
		}
		byDate[key] = row
	}

	merged := make([]model.HistoryRow, 0, len(byDate))
	for _, row := range byDate {
		merged = append(merged, row)
	}
	sort.Slice(merged, func(i, j int) bool {
		return merged[i].Date.Before(merged[j].Date)
	})
	return merged, added
}
