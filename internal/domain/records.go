// internal/domain/records.go
package domain

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// TransactionType defines the direction of a balance change.
type TransactionType string

const (
	TransactionTypeCredit TransactionType = "CREDIT"
	TransactionTypeDebit  TransactionType = "DEBIT"
)

// TransactionRecord is the owner-scoped history entry written alongside every
// balance change. Removed wholesale by the cleanup coordinator on disconnect.
type TransactionRecord struct {
	ID          string          `db:"id" json:"id"` // UUID
	OwnerID     string          `db:"owner_id" json:"owner_id"`
	Type        TransactionType `db:"type" json:"type"`
	Units       decimal.Decimal `db:"units" json:"units"`         // Asset quantity moved, always positive
	PriceUSD    decimal.Decimal `db:"price_usd" json:"price_usd"` // Feed quote at execution time
	Description string          `db:"description" json:"description"`
	CreatedAt   time.Time       `db:"created_at" json:"created_at"`
}

// NewTransactionRecord creates a history entry for a balance change.
func NewTransactionRecord(ownerID string, txType TransactionType, units, priceUSD decimal.Decimal, description string) *TransactionRecord {
	return &TransactionRecord{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		Type:        txType,
		Units:       units,
		PriceUSD:    priceUSD,
		Description: description,
		CreatedAt:   time.Now().UTC(),
	}
}

// InteractionEvent is an owner-scoped activity-trail entry appended on
// lifecycle transitions. Best-effort: engine operations do not fail when the
// append does.
type InteractionEvent struct {
	ID        string    `db:"id" json:"id"` // UUID
	OwnerID   string    `db:"owner_id" json:"owner_id"`
	Action    string    `db:"action" json:"action"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
}

// NewInteractionEvent creates an activity-trail entry.
func NewInteractionEvent(ownerID, action string) *InteractionEvent {
	return &InteractionEvent{
		ID:        uuid.NewString(),
		OwnerID:   ownerID,
		Action:    action,
		CreatedAt: time.Now().UTC(),
	}
}
