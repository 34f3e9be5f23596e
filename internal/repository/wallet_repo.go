// internal/repository/wallet_repo.go
package repository

import (
	"context"

	"propshare-wallet/internal/domain"
)

// WalletRecordRepository defines CRUD over the durable per-owner wallet
// record. The primitives are deliberately narrow: upsert lives in the engine
// as read-then-create-or-update, because existence decides creation
// timestamp policy.
type WalletRecordRepository interface {
	// Create inserts a new record. The owner must not already have one.
	Create(ctx context.Context, rec *domain.WalletRecord) error
	// Get retrieves the record for ownerID. Returns util.ErrNotFound when
	// absent; callers treat absence as "not yet provisioned", not a fault.
	Get(ctx context.Context, ownerID string) (*domain.WalletRecord, error)
	// Update writes rec back, checking rec.Version against the stored row.
	// On success the stored and in-memory versions advance by one; a stale
	// version yields util.ErrVersionConflict and no write.
	Update(ctx context.Context, rec *domain.WalletRecord) error
	// ApplyBalanceChange atomically persists a balance mutation and its
	// transaction history entry. Version-checked like Update.
	ApplyBalanceChange(ctx context.Context, rec *domain.WalletRecord, txRec *domain.TransactionRecord) error
	// Deactivate clears the active flag for ownerID, keeping the record.
	Deactivate(ctx context.Context, ownerID string) error
}
