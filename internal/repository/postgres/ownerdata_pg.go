// internal/repository/postgres/ownerdata_pg.go
package postgres

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"propshare-wallet/internal/domain"
	"propshare-wallet/internal/repository"
)

// Owner-scoped table names. Table identifiers are interpolated into SQL, so
// they must stay package constants, never caller input.
const (
	TableWalletRecords      = "wallet_records"
	TableInvestmentRecords  = "investment_records"
	TableTransactionRecords = "transaction_records"
	TableWatchlistEntries   = "watchlist_entries"
	TableInteractionEvents  = "interaction_events"
)

// OwnerScopedTable implements repository.OwnerCollection for one table whose
// rows are keyed by owner_id.
type OwnerScopedTable struct {
	db    *sqlx.DB
	table string
}

// NewOwnerScopedTable wraps table as a cleanup-capable owner collection.
func NewOwnerScopedTable(database *sqlx.DB, table string) repository.OwnerCollection {
	return &OwnerScopedTable{db: database, table: table}
}

// Name identifies the collection in logs and cleanup reports.
func (t *OwnerScopedTable) Name() string {
	return t.table
}

// DeleteAllForOwner removes every row scoped to ownerID.
func (t *OwnerScopedTable) DeleteAllForOwner(ctx context.Context, ownerID string) (int64, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE owner_id = $1`, t.table)
	result, err := t.db.ExecContext(ctx, query, ownerID)
	if err != nil {
		return 0, fmt.Errorf("failed to delete %s rows for owner %s: %w", t.table, ownerID, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return 0, fmt.Errorf("failed to count deleted %s rows for owner %s: %w", t.table, ownerID, err)
	}
	return rows, nil
}

// CountForOwner returns how many rows remain for ownerID.
func (t *OwnerScopedTable) CountForOwner(ctx context.Context, ownerID string) (int64, error) {
	var count int64
	query := fmt.Sprintf(`SELECT COUNT(*) FROM %s WHERE owner_id = $1`, t.table)
	if err := t.db.GetContext(ctx, &count, query, ownerID); err != nil {
		return 0, fmt.Errorf("failed to count %s rows for owner %s: %w", t.table, ownerID, err)
	}
	return count, nil
}

// InteractionRepository implements repository.InteractionRepository for
// PostgreSQL.
type InteractionRepository struct {
	db *sqlx.DB
}

// NewInteractionRepository creates a new InteractionRepository.
func NewInteractionRepository(database *sqlx.DB) repository.InteractionRepository {
	return &InteractionRepository{db: database}
}

// Append inserts one activity-trail entry.
func (r *InteractionRepository) Append(ctx context.Context, ev *domain.InteractionEvent) error {
	query := `INSERT INTO interaction_events (id, owner_id, action, created_at)
	          VALUES ($1, $2, $3, $4)`
	if _, err := r.db.ExecContext(ctx, query, ev.ID, ev.OwnerID, ev.Action, ev.CreatedAt); err != nil {
		return fmt.Errorf("failed to append interaction event for owner %s: %w", ev.OwnerID, err)
	}
	return nil
}
