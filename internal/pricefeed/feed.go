// internal/pricefeed/feed.go
package pricefeed

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// Quote is a point-in-time exchange rate for the simulated asset.
type Quote struct {
	PriceUSD  decimal.Decimal `json:"price_usd"`
	Timestamp time.Time       `json:"timestamp"`
	// Stale is true when the price did not come from a live feed read:
	// either the last known quote served after a feed failure, or the
	// configured default when no quote was ever obtained. Callers decide
	// whether stale pricing is acceptable; it is never silently hidden.
	Stale bool `json:"stale"`
}

// Feed supplies the current exchange rate for the simulated asset.
type Feed interface {
	// Current returns the latest quote. Implementations must always return
	// a usable quote, degrading to a stale fallback rather than failing.
	Current(ctx context.Context) Quote
}

// Fixed is a Feed that always returns the same price. Used in tests and as a
// deterministic stand-in when no feed endpoint is configured.
type Fixed struct {
	PriceUSD decimal.Decimal
	Stale    bool
}

func (f Fixed) Current(ctx context.Context) Quote {
	return Quote{PriceUSD: f.PriceUSD, Timestamp: time.Now().UTC(), Stale: f.Stale}
}
