// internal/pricefeed/http.go
package pricefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

// HTTPFeed polls a JSON endpoint for the current asset price. A failed read
// never propagates to callers: Current falls back to the last known quote,
// or to the configured default price, with Stale=true in both cases.
type HTTPFeed struct {
	url          string
	client       *http.Client
	defaultPrice decimal.Decimal
	logger       *slog.Logger

	mu   sync.RWMutex
	last Quote
	ok   bool // a live quote has been obtained at least once

	stop chan struct{}
}

// quotePayload is the wire shape of the feed endpoint response.
type quotePayload struct {
	PriceUSD  decimal.Decimal `json:"price_usd"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewHTTPFeed creates a feed client for the given endpoint. defaultPrice is
// served (flagged stale) until the first successful fetch.
func NewHTTPFeed(url string, defaultPrice decimal.Decimal, logger *slog.Logger) *HTTPFeed {
	return &HTTPFeed{
		url:          url,
		client:       &http.Client{Timeout: 5 * time.Second},
		defaultPrice: defaultPrice,
		logger:       logger,
		stop:         make(chan struct{}),
	}
}

// Current returns the latest quote, refreshing from the endpoint if possible.
func (f *HTTPFeed) Current(ctx context.Context) Quote {
	q, err := f.fetch(ctx)
	if err == nil {
		f.mu.Lock()
		f.last = q
		f.ok = true
		f.mu.Unlock()
		return q
	}
	f.logger.Warn("price feed read failed, serving fallback quote", "error", err)
	return f.fallback()
}

// fallback returns the last known quote, or the default price when no live
// quote was ever obtained. Always flagged stale.
func (f *HTTPFeed) fallback() Quote {
	f.mu.RLock()
	defer f.mu.RUnlock()
	if f.ok {
		q := f.last
		q.Stale = true
		return q
	}
	return Quote{PriceUSD: f.defaultPrice, Timestamp: time.Now().UTC(), Stale: true}
}

// fetch reads the endpoint once, retrying with exponential backoff.
func (f *HTTPFeed) fetch(ctx context.Context) (Quote, error) {
	var payload quotePayload
	err := retry(ctx, 3, 200*time.Millisecond, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.url, nil)
		if err != nil {
			return err
		}
		resp, err := f.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("feed returned status %d", resp.StatusCode)
		}
		return json.NewDecoder(resp.Body).Decode(&payload)
	})
	if err != nil {
		return Quote{}, err
	}
	if payload.PriceUSD.LessThanOrEqual(decimal.Zero) {
		return Quote{}, fmt.Errorf("feed returned non-positive price %s", payload.PriceUSD)
	}
	ts := payload.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	return Quote{PriceUSD: payload.PriceUSD, Timestamp: ts}, nil
}

// StartPolling refreshes the cached quote in the background until Close is
// called. Display paths then read a warm quote without paying fetch latency.
func (f *HTTPFeed) StartPolling(interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-f.stop:
				return
			case <-ticker.C:
				ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				f.Current(ctx)
				cancel()
			}
		}
	}()
}

// Close stops the polling loop, if one was started.
func (f *HTTPFeed) Close() {
	select {
	case <-f.stop:
	default:
		close(f.stop)
	}
}

// retry calls fn up to maxAttempts times with exponential backoff starting at
// baseDelay, respecting context cancellation between attempts.
func retry(ctx context.Context, maxAttempts int, baseDelay time.Duration, fn func() error) error {
	var err error
	delay := baseDelay
	for attempt := 0; attempt < maxAttempts; attempt++ {
		err = fn()
		if err == nil {
			return nil
		}
		if attempt < maxAttempts-1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(delay):
			}
			delay *= 2
		}
	}
	return err
}
