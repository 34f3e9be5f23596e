// internal/repository/ownerdata_repo.go
package repository

import (
	"context"

	"propshare-wallet/internal/domain"
)

// OwnerCollection is one owner-scoped collection that the cleanup
// coordinator can purge and audit. Implementations exist per collection
// (wallet records, investment records, transaction records, watchlist
// entries, interaction events).
type OwnerCollection interface {
	// Name identifies the collection in logs and cleanup reports.
	Name() string
	// DeleteAllForOwner removes every document scoped to ownerID and
	// returns how many were removed.
	DeleteAllForOwner(ctx context.Context, ownerID string) (int64, error)
	// CountForOwner returns how many documents remain for ownerID.
	CountForOwner(ctx context.Context, ownerID string) (int64, error)
}

// InteractionRepository appends to the owner activity trail.
type InteractionRepository interface {
	Append(ctx context.Context, ev *domain.InteractionEvent) error
}
