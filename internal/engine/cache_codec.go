// internal/engine/cache_codec.go
package engine

import (
	"context"
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"propshare-wallet/internal/domain"
)

// Scratch cache keys. The legacy key predates owner-scoped durable records
// and may hold a local-only simulation wallet awaiting migration.
const (
	legacyCacheKey    = "propshare:wallet"
	ownerCacheKeyBase = "propshare:wallet:"
)

// cachedWallet is the JSON payload stored in the scratch cache. It mirrors
// the legacy local-only format, which is why it carries its own owner id and
// simulation marker.
type cachedWallet struct {
	OwnerID         string          `json:"owner_id,omitempty"`
	PublicAddress   string          `json:"public_address"`
	BalanceUnits    decimal.Decimal `json:"balance_units"`
	StrikePriceUSD  decimal.Decimal `json:"strike_price_usd"`
	InitialValueUSD decimal.Decimal `json:"initial_value_usd"`
	DisplayName     string          `json:"display_name,omitempty"`
	CreatedAt       time.Time       `json:"created_at"`
	Simulation      bool            `json:"simulation"`
}

// toRecord converts a cached payload to an active wallet record.
func (c *cachedWallet) toRecord() *domain.WalletRecord {
	rec := domain.NewWalletRecord(c.OwnerID, c.PublicAddress, c.BalanceUnits,
		c.StrikePriceUSD, c.InitialValueUSD, c.DisplayName)
	if !c.CreatedAt.IsZero() {
		rec.CreatedAt = c.CreatedAt
	}
	return rec
}

func ownerCacheKey(ownerID string) string {
	return ownerCacheKeyBase + ownerID
}

// cacheRecord stores a fast-path copy of rec. Cache failures are logged and
// swallowed: the cache is a hint, never required for correctness.
func (e *Engine) cacheRecord(ctx context.Context, rec *domain.WalletRecord) {
	payload := cachedWallet{
		OwnerID:         rec.OwnerID,
		PublicAddress:   rec.PublicAddress,
		BalanceUnits:    rec.BalanceUnits,
		StrikePriceUSD:  rec.StrikePriceUSD,
		InitialValueUSD: rec.InitialValueUSD,
		DisplayName:     rec.DisplayName,
		CreatedAt:       rec.CreatedAt,
		Simulation:      true,
	}
	data, err := json.Marshal(payload)
	if err != nil {
		e.deps.Logger.Warn("failed to encode wallet cache payload", "error", err)
		return
	}
	if err := e.deps.Cache.Set(ctx, ownerCacheKey(rec.OwnerID), data); err != nil {
		e.deps.Logger.Warn("failed to write wallet cache copy", "error", err)
	}
}

// loadLegacy reads the legacy local-only cache slot.
func (e *Engine) loadLegacy(ctx context.Context) (*cachedWallet, bool, error) {
	data, ok, err := e.deps.Cache.Get(ctx, legacyCacheKey)
	if err != nil {
		return nil, false, err
	}
	if !ok {
		return nil, false, nil
	}
	var payload cachedWallet
	if err := json.Unmarshal(data, &payload); err != nil {
		// A corrupt legacy payload is unrecoverable; drop it so it cannot
		// shadow durable state on every future restore.
		e.deps.Logger.Warn("dropping corrupt legacy wallet cache payload", "error", err)
		_ = e.deps.Cache.Remove(ctx, legacyCacheKey)
		return nil, false, nil
	}
	return &payload, true, nil
}

// clearLegacyCache removes the legacy local-only slot.
func (e *Engine) clearLegacyCache(ctx context.Context) {
	if err := e.deps.Cache.Remove(ctx, legacyCacheKey); err != nil {
		e.deps.Logger.Warn("failed to clear legacy wallet cache slot", "error", err)
	}
}

// clearOwnerCache removes the owner-scoped cache copy.
func (e *Engine) clearOwnerCache(ctx context.Context) {
	ownerID := e.OwnerID()
	if ownerID == "" {
		return
	}
	if err := e.deps.Cache.Remove(ctx, ownerCacheKey(ownerID)); err != nil {
		e.deps.Logger.Warn("failed to clear wallet cache copy", "error", err)
	}
}
