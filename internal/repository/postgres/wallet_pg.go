// internal/repository/postgres/wallet_pg.go
package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"propshare-wallet/internal/domain"
	"propshare-wallet/internal/repository"
	"propshare-wallet/internal/util"
	"propshare-wallet/pkg/db"
)

// WalletRepository implements repository.WalletRecordRepository for
// PostgreSQL.
type WalletRepository struct {
	db *sqlx.DB
}

// NewWalletRepository creates a new WalletRepository.
func NewWalletRepository(database *sqlx.DB) repository.WalletRecordRepository {
	return &WalletRepository{db: database}
}

// Create inserts a new wallet record.
func (r *WalletRepository) Create(ctx context.Context, rec *domain.WalletRecord) error {
	query := `INSERT INTO wallet_records
	          (owner_id, public_address, balance_units, strike_price_usd, initial_value_usd,
	           display_name, active, version, created_at, last_updated)
	          VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`
	_, err := r.db.ExecContext(ctx, query,
		rec.OwnerID, rec.PublicAddress, rec.BalanceUnits, rec.StrikePriceUSD, rec.InitialValueUSD,
		rec.DisplayName, rec.Active, rec.Version, rec.CreatedAt, rec.LastUpdated)
	if err != nil {
		return fmt.Errorf("failed to create wallet record for owner %s: %w", rec.OwnerID, err)
	}
	return nil
}

// Get retrieves the wallet record for ownerID. Absence maps to
// util.ErrNotFound, never a raw sql error.
func (r *WalletRepository) Get(ctx context.Context, ownerID string) (*domain.WalletRecord, error) {
	var rec domain.WalletRecord
	query := `SELECT owner_id, public_address, balance_units, strike_price_usd, initial_value_usd,
	                 display_name, active, version, created_at, last_updated
	          FROM wallet_records WHERE owner_id = $1`
	err := r.db.GetContext(ctx, &rec, query, ownerID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, util.ErrNotFound
		}
		return nil, fmt.Errorf("failed to get wallet record for owner %s: %w", ownerID, err)
	}
	return &rec, nil
}

// Update writes the mutable fields back, guarded by the version token.
// CreatedAt and StrikePriceUSD are deliberately absent from the SET list.
func (r *WalletRepository) Update(ctx context.Context, rec *domain.WalletRecord) error {
	now := time.Now().UTC()
	query := `UPDATE wallet_records
	          SET public_address = $1, balance_units = $2, initial_value_usd = $3,
	              display_name = $4, active = $5, version = version + 1, last_updated = $6
	          WHERE owner_id = $7 AND version = $8`
	result, err := r.db.ExecContext(ctx, query,
		rec.PublicAddress, rec.BalanceUnits, rec.InitialValueUSD,
		rec.DisplayName, rec.Active, now, rec.OwnerID, rec.Version)
	if err != nil {
		return fmt.Errorf("failed to update wallet record for owner %s: %w", rec.OwnerID, err)
	}
	if err := r.checkVersionedWrite(ctx, result, rec.OwnerID); err != nil {
		return err
	}
	rec.Version++
	rec.LastUpdated = now
	return nil
}

// ApplyBalanceChange persists a balance mutation and its history entry in
// one transaction, so a crash cannot record a balance without its trail.
func (r *WalletRepository) ApplyBalanceChange(ctx context.Context, rec *domain.WalletRecord, txRec *domain.TransactionRecord) error {
	txController, err := db.BeginTx(ctx, r.db)
	if err != nil {
		return fmt.Errorf("balance change: failed to begin transaction: %w", err)
	}
	defer db.RollbackTx(txController)

	txExecutor, ok := txController.(repository.DBExecutor)
	if !ok {
		return fmt.Errorf("balance change: transaction controller does not implement DBExecutor")
	}

	now := time.Now().UTC()
	updateQuery := `UPDATE wallet_records
	                SET balance_units = $1, version = version + 1, last_updated = $2
	                WHERE owner_id = $3 AND version = $4`
	result, err := txExecutor.ExecContext(ctx, updateQuery, rec.BalanceUnits, now, rec.OwnerID, rec.Version)
	if err != nil {
		return fmt.Errorf("balance change: failed to update wallet record: %w", err)
	}
	if err := r.checkVersionedWrite(ctx, result, rec.OwnerID); err != nil {
		return err
	}

	insertQuery := `INSERT INTO transaction_records (id, owner_id, type, units, price_usd, description, created_at)
	                VALUES ($1, $2, $3, $4, $5, $6, $7)`
	_, err = txExecutor.ExecContext(ctx, insertQuery,
		txRec.ID, txRec.OwnerID, txRec.Type, txRec.Units, txRec.PriceUSD, txRec.Description, txRec.CreatedAt)
	if err != nil {
		return fmt.Errorf("balance change: failed to record transaction: %w", err)
	}

	if err := db.CommitTx(txController); err != nil {
		return fmt.Errorf("balance change: failed to commit transaction: %w", err)
	}
	rec.Version++
	rec.LastUpdated = now
	return nil
}

// Deactivate clears the active flag, keeping the record for later cleanup.
func (r *WalletRepository) Deactivate(ctx context.Context, ownerID string) error {
	query := `UPDATE wallet_records SET active = FALSE, version = version + 1, last_updated = $1
	          WHERE owner_id = $2`
	result, err := r.db.ExecContext(ctx, query, time.Now().UTC(), ownerID)
	if err != nil {
		return fmt.Errorf("failed to deactivate wallet record for owner %s: %w", ownerID, err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected deactivating owner %s: %w", ownerID, err)
	}
	if rows == 0 {
		return util.ErrNotFound
	}
	return nil
}

// checkVersionedWrite distinguishes "row gone" from "stale version" after a
// version-guarded UPDATE touched zero rows.
func (r *WalletRepository) checkVersionedWrite(ctx context.Context, result sql.Result, ownerID string) error {
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected for owner %s: %w", ownerID, err)
	}
	if rows > 0 {
		return nil
	}
	if _, getErr := r.Get(ctx, ownerID); errors.Is(getErr, util.ErrNotFound) {
		return util.ErrNotFound
	}
	return util.ErrVersionConflict
}
