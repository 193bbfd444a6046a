package repositories

import (
	"context"

	"github.com/tokenarena/pnl-indexer/internal/domain/entities"
)

// TokenRepository defines the interface for tracked-token operations
type TokenRepository interface {
	// GetByAddress retrieves a token by its address
	GetByAddress(ctx context.Context, address string) (*entities.Token, error)

	// GetAll retrieves all tracked tokens
	GetAll(ctx context.Context) ([]entities.Token, error)

	// Upsert creates or updates a token
	Upsert(ctx context.Context, token *entities.Token) error

	// UpdateMetadata updates symbol and decimals after a provider re-fetch
	UpdateMetadata(ctx context.Context, address, symbol string, decimals int) error
}
