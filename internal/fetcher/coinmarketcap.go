package fetcher

import (
	"bytes"
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rs/zerolog"

	"coinmarketcap-history/internal/model"
	"coinmarketcap-history/internal/version"
)

const (
	defaultBaseURL = "https://coinmarketcap.com"
	listingPath    = "/%s/views/all/"
	historyPath    = "/currencies/%s/historical-data/"
)

// CoinMarketCapOptions parameterise the website client.
type CoinMarketCapOptions struct {
	BaseURL   string
	Timeout   time.Duration
	UserAgent string
}

// CoinMarketCap scrapes listing and historical-data pages.
type CoinMarketCap struct {
	client *resty.Client
	logger zerolog.Logger
}

// NewCoinMarketCap constructs the website client.
func NewCoinMarketCap(opts CoinMarketCapOptions, logger zerolog.Logger) *CoinMarketCap {
	baseURL := strings.TrimRight(opts.BaseURL, "/")
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	ua := strings.TrimSpace(opts.UserAgent)
	if ua == "" {
		ua = version.UserAgent()
	}

	client := resty.New().
		SetBaseURL(baseURL).
		SetHeader("User-Agent", ua).
		SetHeader("Accept", "text/html")
	// Zero keeps the transport default, which has no deadline.
	if opts.Timeout > 0 {
		client.SetTimeout(opts.Timeout)
	}

	return &CoinMarketCap{
		client: client,
		logger: logger.With().Str("component", "source").Logger(),
	}
}

// FetchListing downloads and parses the "all" view for kind.
func (c *CoinMarketCap) FetchListing(ctx context.Context, kind model.Kind) ([]model.Entity, error) {
	body, err := c.get(ctx, fmt.Sprintf(listingPath, kind), nil)
	if err != nil {
		return nil, err
	}
	return ParseListing(bytes.NewReader(body), kind)
}

// FetchHistory downloads and parses the historical-data page of slug.
func (c *CoinMarketCap) FetchHistory(ctx context.Context, slug string, start, end time.Time) ([]model.HistoryRow, error) {
	params := map[string]string{
		"start": model.FormatDate(start),
		"end":   model.FormatDate(end),
	}
	body, err := c.get(ctx, fmt.Sprintf(historyPath, slug), params)
	if err != nil {
		return nil, err
	}
	return ParseHistory(bytes.NewReader(body), slug)
}

func (c *CoinMarketCap) get(ctx context.Context, path string, params map[string]string) ([]byte, error) {
	req := c.client.R().SetContext(ctx)
	if len(params) > 0 {
		req.SetQueryParams(params)
	}

	resp, err := req.Get(path)
	if err != nil {
		return nil, fmt.Errorf("request %s: %w", path, err)
	}
	if !resp.IsSuccess() {
		return nil, &StatusError{URL: resp.Request.URL, StatusCode: resp.StatusCode()}
	}

	c.logger.Debug().Str("path", path).Int("bytes", len(resp.Body())).Msg("page fetched")
	return resp.Body(), nil
}

var _ Source = (*CoinMarketCap)(nil)
