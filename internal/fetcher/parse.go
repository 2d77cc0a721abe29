package fetcher

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/shopspring/decimal"

	"coinmarketcap-history/internal/model"
)

const missingValue = "-"

var rowDateLayouts = []string{"Jan 02 2006", "Jan 02, 2006", "Jan 2 2006", "Jan 2, 2006"}

var historyColumns = []string{"date", "open", "high", "low", "close", "volume", "marketcap"}

// listingTableID maps a kind to the id prefix of its listing table.
func listingTableID(kind model.Kind) string {
	if kind == model.KindTokens {
		return "assets"
	}
	return "currencies"
}

// ParseListing extracts entities from a listing page.
func ParseListing(r io.Reader, kind model.Kind) ([]model.Entity, error) {
	page := string(kind) + " listing"
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, &SchemaError{Page: page, Reason: err.Error()}
	}

	table := doc.Find(fmt.Sprintf("table#%s-all", listingTableID(kind)))
	if table.Length() == 0 {
		return nil, &SchemaError{Page: page, Reason: "listing table not found"}
	}

	var (
		entities []model.Entity
		parseErr error
	)
	table.Find("tbody > tr").EachWithBreak(func(i int, row *goquery.Selection) bool {
		cells := row.Find("td")
		if cells.Length() < 3 {
			parseErr = &SchemaError{Page: page, Reason: fmt.Sprintf("row %d has %d cells", i, cells.Length())}
			return false
		}

		link := cells.Eq(1).Find("a").First()
		href, ok := link.Attr("href")
		if !ok {
			parseErr = &SchemaError{Page: page, Reason: fmt.Sprintf("row %d has no currency link", i)}
			return false
		}
		slug := strings.TrimSpace(strings.ReplaceAll(strings.Replace(href, "/currencies/", "", 1), "/", ""))
		if slug == "" {
			parseErr = &SchemaError{Page: page, Reason: fmt.Sprintf("row %d has empty slug", i)}
			return false
		}

		entity := model.Entity{
			Name:   strings.TrimSpace(link.Text()),
			Slug:   slug,
			Symbol: strings.TrimSpace(cells.Eq(2).Text()),
		}
		if cells.Length() > 5 {
			if explorer, ok := cells.Eq(5).Find("a").First().Attr("href"); ok {
				entity.ExplorerLink = explorer
			}
		}
		entities = append(entities, entity)
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}
	return entities, nil
}

// ParseHistory extracts daily rows from a historical-data page. Rows are
// returned in page order; the Average column, when present, is ignored.
func ParseHistory(r io.Reader, slug string) ([]model.HistoryRow, error) {
	page := slug + " history"
	doc, err := goquery.NewDocumentFromReader(r)
	if err != nil {
		return nil, &SchemaError{Page: page, Reason: err.Error()}
	}

	var (
		table   *goquery.Selection
		columns map[string]int
	)
	doc.Find("table").EachWithBreak(func(_ int, t *goquery.Selection) bool {
		if idx := headerIndex(t); idx != nil {
			table, columns = t, idx
			return false
		}
		return true
	})
	if table == nil {
		return nil, &SchemaError{Page: page, Reason: "history table with expected columns not found"}
	}

	width := 0
	for _, idx := range columns {
		if idx+1 > width {
			width = idx + 1
		}
	}

	var (
		rows     []model.HistoryRow
		parseErr error
	)
	table.Find("tbody > tr").EachWithBreak(func(i int, tr *goquery.Selection) bool {
		cells := tr.Find("td")
		if cells.Length() < width {
			// "No data was found" is a single cell spanning the table.
			if isPlaceholderRow(cells) {
				return true
			}
			parseErr = &SchemaError{Page: page, Reason: fmt.Sprintf("row %d has %d cells, want %d", i, cells.Length(), width)}
			return false
		}
		text := func(col string) string {
			return strings.TrimSpace(cells.Eq(columns[col]).Text())
		}

		date, err := parseRowDate(text("date"))
		if err != nil {
			parseErr = &SchemaError{Page: page, Reason: fmt.Sprintf("row %d: %v", i, err)}
			return false
		}
		values := make([]decimal.Decimal, 0, len(historyColumns)-1)
		for _, col := range historyColumns[1:] {
			v, err := parseNumber(text(col))
			if err != nil {
				parseErr = &SchemaError{Page: page, Reason: fmt.Sprintf("row %d column %s: %v", i, col, err)}
				return false
			}
			values = append(values, v)
		}
		row := model.HistoryRow{Date: date}
		row.SetNumbers(values)
		rows = append(rows, row)
		return true
	})
	if parseErr != nil {
		return nil, parseErr
	}
	return rows, nil
}

func isPlaceholderRow(cells *goquery.Selection) bool {
	if cells.Length() == 1 {
		return true
	}
	_, spans := cells.First().Attr("colspan")
	return spans
}

func headerIndex(table *goquery.Selection) map[string]int {
	idx := make(map[string]int)
	table.Find("thead th").Each(func(i int, th *goquery.Selection) {
		name := normalizeHeader(th.Text())
		if _, seen := idx[name]; !seen {
			idx[name] = i
		}
	})
	for _, col := range historyColumns {
		if _, ok := idx[col]; !ok {
			return nil
		}
	}
	return idx
}

func normalizeHeader(s string) string {
	s = strings.ToLower(s)
	s = strings.NewReplacer("*", "", " ", "", "\u00a0", "", "\n", "", "\t", "").Replace(s)
	return s
}

func parseRowDate(s string) (time.Time, error) {
	for _, layout := range rowDateLayouts {
		if t, err := time.ParseInLocation(layout, s, time.UTC); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognised date %q", s)
}

func parseNumber(s string) (decimal.Decimal, error) {
	s = strings.ReplaceAll(strings.TrimSpace(s), ",", "")
	if s == "" || s == missingValue {
		return decimal.Zero, nil
	}
	s = strings.TrimPrefix(s, "$")
	return decimal.NewFromString(s)
}
