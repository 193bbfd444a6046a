package repositories

import (
	"context"

	"github.com/tokenarena/pnl-indexer/internal/domain/entities"
)

// WalletRepository defines the interface for wallet sync-state operations
type WalletRepository interface {
	// Get retrieves a wallet by address, nil when unknown
	Get(ctx context.Context, address string) (*entities.Wallet, error)

	// Upsert creates or updates a wallet row
	Upsert(ctx context.Context, wallet *entities.Wallet) error

	// AdvanceSyncedBlock raises last_synced_block to blockNumber if higher,
	// creating the wallet row when missing. It never lowers the watermark.
	AdvanceSyncedBlock(ctx context.Context, address string, blockNumber int64) error
}
