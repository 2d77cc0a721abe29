package model

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"
)

// DateLayout is the calendar-day encoding used on disk and in request URLs.
const DateLayout = "20060102"

// Kind names one of the two entity listings published by the source.
type Kind string

const (
	KindCoins  Kind = "coins"
	KindTokens Kind = "tokens"
)

// Kinds lists entity kinds in catalog order.
var Kinds = []Kind{KindCoins, KindTokens}

// Entity is a tradeable asset identified by its slug.
type Entity struct {
	Name         string `json:"name"`
	Slug         string `json:"slug"`
	Symbol       string `json:"symbol"`
	ExplorerLink string `json:"explorer_link"`
}

// HistoryRow is one daily observation for an entity.
type HistoryRow struct {
	Date      time.Time
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
	Volume    decimal.Decimal
	MarketCap decimal.Decimal
}

// ConsolidatedRow joins an entity with one of its history rows.
type ConsolidatedRow struct {
	Slug string
	Name string
	HistoryRow
	Interpolated bool
}

// Day truncates t to midnight UTC.
func Day(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// FormatDate renders a day as YYYYMMDD.
func FormatDate(t time.Time) string {
	return t.UTC().Format(DateLayout)
}

// ParseDate parses a YYYYMMDD day.
func ParseDate(s string) (time.Time, error) {
	t, err := time.ParseInLocation(DateLayout, s, time.UTC)
	if err != nil {
		return time.Time{}, fmt.Errorf("parse date %q: %w", s, err)
	}
	return t, nil
}

// Numbers returns the six numeric columns in file order.
func (r HistoryRow) Numbers() []decimal.Decimal {
	return []decimal.Decimal{r.Open, r.High, r.Low, r.Close, r.Volume, r.MarketCap}
}

// SetNumbers assigns the six numeric columns in file order.
func (r *HistoryRow) SetNumbers(v []decimal.Decimal) {
	r.Open, r.High, r.Low, r.Close, r.Volume, r.MarketCap = v[0], v[1], v[2], v[3], v[4], v[5]
}
