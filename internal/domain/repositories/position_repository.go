package repositories

import (
	"context"

	"github.com/tokenarena/pnl-indexer/internal/domain/entities"
)

// PositionRepository defines the interface for derived position state.
// Positions are written only by the accounting recompute; everything else
// reads.
type PositionRepository interface {
	// Get retrieves the position for one (wallet, token) pair
	Get(ctx context.Context, walletAddress, tokenAddress string) (*entities.Position, error)

	// GetByWallet retrieves all positions held by a wallet
	GetByWallet(ctx context.Context, walletAddress string) ([]entities.Position, error)

	// GetTopByToken retrieves a token's positions ordered by realized PnL
	GetTopByToken(ctx context.Context, tokenAddress string, limit int) ([]entities.Position, error)

	// Upsert replaces the position row wholesale
	Upsert(ctx context.Context, position *entities.Position) error
}
