// internal/pricefeed/http_test.go
package pricefeed

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.DiscardHandler)
}

func TestHTTPFeedLiveQuote(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"price_usd": "4500.25"}`))
	}))
	defer srv.Close()

	feed := NewHTTPFeed(srv.URL, decimal.NewFromInt(2500), discardLogger())
	q := feed.Current(context.Background())

	assert.False(t, q.Stale)
	assert.True(t, q.PriceUSD.Equal(decimal.NewFromFloat(4500.25)), "got %s", q.PriceUSD)
	assert.False(t, q.Timestamp.IsZero())
}

func TestHTTPFeedDefaultFallback(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	feed := NewHTTPFeed(srv.URL, decimal.NewFromInt(2500), discardLogger())
	q := feed.Current(context.Background())

	assert.True(t, q.Stale)
	assert.True(t, q.PriceUSD.Equal(decimal.NewFromInt(2500)))
}

func TestHTTPFeedLastKnownFallback(t *testing.T) {
	var fail atomic.Bool
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if fail.Load() {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		_, _ = w.Write([]byte(`{"price_usd": "4100"}`))
	}))
	defer srv.Close()

	feed := NewHTTPFeed(srv.URL, decimal.NewFromInt(2500), discardLogger())

	first := feed.Current(context.Background())
	assert.False(t, first.Stale)

	fail.Store(true)
	second := feed.Current(context.Background())

	assert.True(t, second.Stale)
	assert.True(t, second.PriceUSD.Equal(decimal.NewFromInt(4100)), "fallback should serve last known quote, got %s", second.PriceUSD)
}

func TestHTTPFeedRejectsNonPositivePrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"price_usd": "0"}`))
	}))
	defer srv.Close()

	feed := NewHTTPFeed(srv.URL, decimal.NewFromInt(2500), discardLogger())
	q := feed.Current(context.Background())

	assert.True(t, q.Stale)
	assert.True(t, q.PriceUSD.Equal(decimal.NewFromInt(2500)))
}

func TestFixedFeed(t *testing.T) {
	feed := Fixed{PriceUSD: decimal.NewFromInt(4000)}
	q := feed.Current(context.Background())

	assert.False(t, q.Stale)
	assert.True(t, q.PriceUSD.Equal(decimal.NewFromInt(4000)))
}
