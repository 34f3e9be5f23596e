// internal/domain/wallet.go
package domain

import (
	"crypto/rand"
	"encoding/hex"
	"regexp"
	"time"

	"github.com/shopspring/decimal" // For precise monetary calculations
)

// addressPattern matches the display format of a simulated wallet address:
// "0x" followed by 40 hex characters.
var addressPattern = regexp.MustCompile(`^0x[0-9a-fA-F]{40}$`)

// WalletRecord is the durable per-owner document representing a simulated
// asset balance and the price basis captured when the record was created.
// At most one record with Active=true exists per owner.
type WalletRecord struct {
	OwnerID         string          `db:"owner_id" json:"owner_id"`                   // Primary key
	PublicAddress   string          `db:"public_address" json:"public_address"`       // Opaque display identifier
	BalanceUnits    decimal.Decimal `db:"balance_units" json:"balance_units"`         // Simulated asset quantity, never negative
	StrikePriceUSD  decimal.Decimal `db:"strike_price_usd" json:"strike_price_usd"`   // Price at creation, immutable
	InitialValueUSD decimal.Decimal `db:"initial_value_usd" json:"initial_value_usd"` // USD value assigned at creation
	DisplayName     string          `db:"display_name" json:"display_name"`
	Active          bool            `db:"active" json:"active"`
	Version         int64           `db:"version" json:"version"`       // Optimistic-concurrency token, bumped on every write
	CreatedAt       time.Time       `db:"created_at" json:"created_at"` // Immutable, valuation baseline
	LastUpdated     time.Time       `db:"last_updated" json:"last_updated"`
}

// NewWalletRecord creates an active record for ownerID with the given starting
// balance and price basis. CreatedAt and StrikePriceUSD are fixed here and
// must never change afterwards.
func NewWalletRecord(ownerID, address string, balance, strikePrice, initialValue decimal.Decimal, displayName string) *WalletRecord {
	now := time.Now().UTC()
	return &WalletRecord{
		OwnerID:         ownerID,
		PublicAddress:   address,
		BalanceUnits:    balance,
		StrikePriceUSD:  strikePrice,
		InitialValueUSD: initialValue,
		DisplayName:     displayName,
		Active:          true,
		Version:         1,
		CreatedAt:       now,
		LastUpdated:     now,
	}
}

// ValidAddress reports whether s is a well-formed wallet address.
func ValidAddress(s string) bool {
	return addressPattern.MatchString(s)
}

// GenerateAddress returns a random well-formed wallet address for auto-filled
// connects where the user did not enter one.
func GenerateAddress() string {
	b := make([]byte, 20)
	// rand.Read never fails on supported platforms
	_, _ = rand.Read(b)
	return "0x" + hex.EncodeToString(b)
}
