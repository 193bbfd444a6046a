package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/tokenarena/pnl-indexer/internal/domain/entities"
	"github.com/tokenarena/pnl-indexer/internal/domain/repositories"
)

// Ensure WalletRepo implements WalletRepository
var _ repositories.WalletRepository = (*WalletRepo)(nil)

// WalletRepo implements WalletRepository using PostgreSQL
type WalletRepo struct {
	db *sqlx.DB
}

// NewWalletRepo creates a new wallet repository
func NewWalletRepo(db *sqlx.DB) *WalletRepo {
	return &WalletRepo{db: db}
}

// Get retrieves a wallet by address
func (r *WalletRepo) Get(ctx context.Context, address string) (*entities.Wallet, error) {
	var wallet entities.Wallet
	query := `SELECT * FROM wallets WHERE address = $1`

	if err := r.db.GetContext(ctx, &wallet, query, address); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get wallet: %w", err)
	}

	return &wallet, nil
}

// Upsert creates or updates a wallet row
func (r *WalletRepo) Upsert(ctx context.Context, wallet *entities.Wallet) error {
	query := `
		INSERT INTO wallets (address, last_synced_block)
		VALUES ($1, $2)
		ON CONFLICT (address) DO UPDATE SET
			last_synced_block = EXCLUDED.last_synced_block,
			updated_at = NOW()
	`

	_, err := r.db.ExecContext(ctx, query, wallet.Address, wallet.LastSyncedBlock)
	if err != nil {
		return fmt.Errorf("failed to upsert wallet: %w", err)
	}

	return nil
}

// AdvanceSyncedBlock raises last_synced_block to blockNumber if higher.
// GREATEST keeps the watermark monotonic even when jobs finish out of order.
func (r *WalletRepo) AdvanceSyncedBlock(ctx context.Context, address string, blockNumber int64) error {
	query := `
		INSERT INTO wallets (address, last_synced_block)
		VALUES ($1, $2)
		ON CONFLICT (address) DO UPDATE SET
			last_synced_block = GREATEST(wallets.last_synced_block, EXCLUDED.last_synced_block),
			updated_at = NOW()
	`

	_, err := r.db.ExecContext(ctx, query, address, blockNumber)
	if err != nil {
		return fmt.Errorf("failed to advance synced block: %w", err)
	}

	return nil
}
