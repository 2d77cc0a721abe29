package fetcher

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"coinmarketcap-history/internal/model"
)

func TestFetchHistoryQuery(t *testing.T) {
	var gotPath, gotStart, gotEnd, gotUA string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotStart = r.URL.Query().Get("start")
		gotEnd = r.URL.Query().Get("end")
		gotUA = r.Header.Get("User-Agent")
		_, _ = w.Write([]byte(historyPage))
	}))
	defer srv.Close()

	c := NewCoinMarketCap(CoinMarketCapOptions{BaseURL: srv.URL + "/", Timeout: time.Second, UserAgent: "test-agent"}, zerolog.Nop())
	rows, err := c.FetchHistory(context.Background(), "bitcoin",
		time.Date(2021, 1, 1, 0, 0, 0, 0, time.UTC),
		time.Date(2021, 1, 2, 0, 0, 0, 0, time.UTC))
	require.NoError(t, err)
	assert.Len(t, rows, 2)

	assert.Equal(t, "/currencies/bitcoin/historical-data/", gotPath)
	assert.Equal(t, "20210101", gotStart)
	assert.Equal(t, "20210102", gotEnd)
	assert.Equal(t, "test-agent", gotUA)
}

func TestFetchListingPaths(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/coins/views/all/":
			_, _ = w.Write([]byte(coinsListing))
		case "/tokens/views/all/":
			_, _ = w.Write([]byte(tokensListing))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	c := NewCoinMarketCap(CoinMarketCapOptions{BaseURL: srv.URL}, zerolog.Nop())
	coins, err := c.FetchListing(context.Background(), model.KindCoins)
	require.NoError(t, err)
	assert.Len(t, coins, 2)

	tokens, err := c.FetchListing(context.Background(), model.KindTokens)
	require.NoError(t, err)
	assert.Len(t, tokens, 1)
}

func TestFetchHTTPErrorIsTransient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTooManyRequests)
	}))
	defer srv.Close()

	c := NewCoinMarketCap(CoinMarketCapOptions{BaseURL: srv.URL}, zerolog.Nop())
	_, err := c.FetchHistory(context.Background(), "bitcoin", time.Now(), time.Now())
	require.Error(t, err)

	var status *StatusError
	require.True(t, errors.As(err, &status))
	assert.Equal(t, http.StatusTooManyRequests, status.StatusCode)
	assert.True(t, IsTransient(err))
}

func TestIsTransient(t *testing.T) {
	assert.False(t, IsTransient(nil))
	assert.False(t, IsTransient(context.Canceled))
	assert.False(t, IsTransient(&SchemaError{Page: "p", Reason: "r"}))
	assert.True(t, IsTransient(context.DeadlineExceeded))
	assert.True(t, IsTransient(errors.New("connection reset")))
}
