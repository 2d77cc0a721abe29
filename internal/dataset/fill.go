package dataset

import (
	"fmt"

	"github.com/shopspring/decimal"

	"coinmarketcap-history/internal/model"
)

// Fill reindexes s onto every calendar day between its first and last row and
// linearly interpolates the numeric columns of missing days. It returns the
// filled series and the number of days that were interpolated.
func Fill(s Series) (Series, int, error) {
	if len(s.Rows) == 0 {
		return s, 0, nil
	}

	first := model.Day(s.Rows[0].Date)
	last := model.Day(s.Rows[len(s.Rows)-1].Date)
	days := int(last.Sub(first).Hours()/24) + 1

	slots := make([]*model.ConsolidatedRow, days)
	for i := range s.Rows {
		row := s.Rows[i]
		pos := int(model.Day(row.Date).Sub(first).Hours() / 24)
		if slots[pos] != nil {
			return Series{}, 0, fmt.Errorf("%w: %s on %s", ErrDuplicateDate, s.Slug, model.FormatDate(row.Date))
		}
		slots[pos] = &row
	}

	out := Series{Slug: s.Slug, Name: s.Name, Rows: make([]model.ConsolidatedRow, days)}
	filled := 0
	prev := 0
	for pos := 0; pos < days; pos++ {
		if slots[pos] == nil {
			continue
		}
		out.Rows[pos] = *slots[pos]
		if gap := pos - prev; gap > 1 {
			interpolate(out.Rows, prev, pos, s)
			filled += gap - 1
		}
		prev = pos
	}
	return out, filled, nil
}

// interpolate fills rows strictly between the known rows at lo and hi.
func interpolate(rows []model.ConsolidatedRow, lo, hi int, s Series) {
	from := rows[lo].Numbers()
	to := rows[hi].Numbers()
	span := decimal.NewFromInt(int64(hi - lo))

	for pos := lo + 1; pos < hi; pos++ {
		step := decimal.NewFromInt(int64(pos - lo))
		values := make([]decimal.Decimal, len(from))
		for c := range from {
			values[c] = from[c].Add(to[c].Sub(from[c]).Mul(step).Div(span))
		}
		row := model.ConsolidatedRow{Slug: s.Slug, Name: s.Name, Interpolated: true}
		row.Date = rows[lo].Date.AddDate(0, 0, pos-lo)
		row.SetNumbers(values)
		rows[pos] = row
	}
}
