// internal/valuation/calculator.go
package valuation

import (
	"time"

	"github.com/shopspring/decimal"

	"propshare-wallet/internal/domain"
)

var hundred = decimal.NewFromInt(100)

// Snapshot is a point-in-time valuation derived from a wallet record and a
// current price. It is computed fresh on every read and never persisted.
type Snapshot struct {
	CurrentValueUSD   decimal.Decimal `json:"current_value_usd"`
	ProfitLossUSD     decimal.Decimal `json:"profit_loss_usd"`
	ProfitLossPercent decimal.Decimal `json:"profit_loss_percent"`
	PriceDelta        decimal.Decimal `json:"price_delta"`
	PriceDeltaPercent decimal.Decimal `json:"price_delta_percent"`
	DaysSinceCreation int             `json:"days_since_creation"`
	Stale             bool            `json:"stale"` // Quote came from a fallback, not a live feed read
}

// Compute derives a Snapshot from (record, currentPriceUSD, now). It is a
// pure function: same inputs, same output, no hidden state.
//
// Percent figures are zero when their denominator is zero. StrikePriceUSD=0
// is excluded by the record invariant but still guarded here.
func Compute(rec *domain.WalletRecord, currentPriceUSD decimal.Decimal, now time.Time) Snapshot {
	currentValue := rec.BalanceUnits.Mul(currentPriceUSD)
	profitLoss := currentValue.Sub(rec.InitialValueUSD)

	var profitLossPct decimal.Decimal
	if !rec.InitialValueUSD.IsZero() {
		profitLossPct = profitLoss.Div(rec.InitialValueUSD).Mul(hundred)
	}

	priceDelta := currentPriceUSD.Sub(rec.StrikePriceUSD)
	var priceDeltaPct decimal.Decimal
	if !rec.StrikePriceUSD.IsZero() {
		priceDeltaPct = priceDelta.Div(rec.StrikePriceUSD).Mul(hundred)
	}

	return Snapshot{
		CurrentValueUSD:   currentValue,
		ProfitLossUSD:     profitLoss,
		ProfitLossPercent: profitLossPct,
		PriceDelta:        priceDelta,
		PriceDeltaPercent: priceDeltaPct,
		DaysSinceCreation: daysSince(rec.CreatedAt, now),
	}
}

// daysSince returns whole days elapsed between created and now, never
// negative (clock skew between clients can put CreatedAt in the future).
func daysSince(created, now time.Time) int {
	d := int(now.Sub(created).Hours() / 24)
	if d < 0 {
		return 0
	}
	return d
}
