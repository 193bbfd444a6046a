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

// Ensure PositionRepo implements PositionRepository
var _ repositories.PositionRepository = (*PositionRepo)(nil)

// PositionRepo implements PositionRepository using PostgreSQL
type PositionRepo struct {
	db *sqlx.DB
}

// NewPositionRepo creates a new position repository
func NewPositionRepo(db *sqlx.DB) *PositionRepo {
	return &PositionRepo{db: db}
}

// Get retrieves the position for one (wallet, token) pair
func (r *PositionRepo) Get(ctx context.Context, walletAddress, tokenAddress string) (*entities.Position, error) {
	var position entities.Position
	query := `SELECT * FROM positions WHERE wallet_address = $1 AND token_address = $2`

	if err := r.db.GetContext(ctx, &position, query, walletAddress, tokenAddress); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get position: %w", err)
	}

	return &position, nil
}

// GetByWallet retrieves all positions held by a wallet
func (r *PositionRepo) GetByWallet(ctx context.Context, walletAddress string) ([]entities.Position, error) {
	var positions []entities.Position
	query := `
		SELECT * FROM positions
		WHERE wallet_address = $1
		ORDER BY realized_pnl_usd DESC
	`

	if err := r.db.SelectContext(ctx, &positions, query, walletAddress); err != nil {
		return nil, fmt.Errorf("failed to get positions by wallet: %w", err)
	}

	return positions, nil
}

// GetTopByToken retrieves a token's positions ordered by realized PnL
func (r *PositionRepo) GetTopByToken(ctx context.Context, tokenAddress string, limit int) ([]entities.Position, error) {
	var positions []entities.Position
	query := `
		SELECT * FROM positions
		WHERE token_address = $1
		ORDER BY realized_pnl_usd DESC
		LIMIT $2
	`

	if err := r.db.SelectContext(ctx, &positions, query, tokenAddress, limit); err != nil {
		return nil, fmt.Errorf("failed to get top positions: %w", err)
	}

	return positions, nil
}

// Upsert replaces the position row wholesale. Only the accounting recompute
// calls this, always with a freshly replayed state.
func (r *PositionRepo) Upsert(ctx context.Context, position *entities.Position) error {
	query := `
		INSERT INTO positions (wallet_address, token_address, remaining_amount,
							   cost_basis_usd, realized_pnl_usd, trade_count,
							   last_trade_block, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, NOW())
		ON CONFLICT (wallet_address, token_address) DO UPDATE SET
			remaining_amount = EXCLUDED.remaining_amount,
			cost_basis_usd = EXCLUDED.cost_basis_usd,
			realized_pnl_usd = EXCLUDED.realized_pnl_usd,
			trade_count = EXCLUDED.trade_count,
			last_trade_block = EXCLUDED.last_trade_block,
			updated_at = NOW()
	`

	_, err := r.db.ExecContext(ctx, query,
		position.WalletAddress,
		position.TokenAddress,
		position.RemainingAmount,
		position.CostBasisUSD,
		position.RealizedPnLUSD,
		position.TradeCount,
		position.LastTradeBlock,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert position: %w", err)
	}

	return nil
}
