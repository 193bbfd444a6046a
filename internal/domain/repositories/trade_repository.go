package repositories

import (
	"context"

	"github.com/shopspring/decimal"

	"github.com/tokenarena/pnl-indexer/internal/domain/entities"
)

// TradeRepository defines the interface for the append-only trade ledger
type TradeRepository interface {
	// BatchInsert inserts trades in a single transaction, skipping rows whose
	// (tx_hash, token_address, wallet_address, side) key already exists.
	// Returns the number of rows actually inserted.
	BatchInsert(ctx context.Context, trades []entities.Trade) (int64, error)

	// GetByFilter retrieves trades matching the given filter
	GetByFilter(ctx context.Context, filter entities.TradeFilter) ([]entities.Trade, error)

	// GetCount returns the count of trades matching the filter
	GetCount(ctx context.Context, filter entities.TradeFilter) (int64, error)

	// ListForReplay returns every trade of a (wallet, token) pair in
	// deterministic replay order: block_number, tx_hash, side.
	ListForReplay(ctx context.Context, walletAddress, tokenAddress string) ([]entities.Trade, error)

	// GetLatestPrice returns the price of the most recent trade observed for
	// a token across all wallets, or zero when the token has no trades.
	GetLatestPrice(ctx context.Context, tokenAddress string) (decimal.Decimal, error)

	// GetLatestBlock returns the highest block seen for a token, or zero.
	GetLatestBlock(ctx context.Context, tokenAddress string) (int64, error)
}
