package fetcher

import (
	"context"
	"errors"
	"fmt"
	"time"

	"coinmarketcap-history/internal/model"
)

// ErrSchemaChanged marks a page whose structure no longer matches the expected table layout.
var ErrSchemaChanged = errors.New("source schema changed")

// ListingFetcher retrieves the full entity listing of one kind.
type ListingFetcher interface {
	FetchListing(ctx context.Context, kind model.Kind) ([]model.Entity, error)
}

// HistoryFetcher retrieves daily rows for slug between start and end inclusive.
type HistoryFetcher interface {
	FetchHistory(ctx context.Context, slug string, start, end time.Time) ([]model.HistoryRow, error)
}

// Source combines both endpoints of the website.
type Source interface {
	ListingFetcher
	HistoryFetcher
}

// SchemaError describes a page that could not be parsed.
type SchemaError struct {
	Page   string
	Reason string
}

func (e *SchemaError) Error() string {
	return fmt.Sprintf("%s: %s: %s", ErrSchemaChanged, e.Page, e.Reason)
}

// Is lets errors.Is match ErrSchemaChanged.
func (e *SchemaError) Is(target error) bool { return target == ErrSchemaChanged }

// StatusError is a non-success HTTP response.
type StatusError struct {
	URL        string
	StatusCode int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("source responded %d for %s", e.StatusCode, e.URL)
}

// IsTransient reports whether err is worth another attempt.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrSchemaChanged) || errors.Is(err, context.Canceled) {
		return false
	}
	return true
}
