package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/tokenarena/pnl-indexer/internal/domain/entities"
	"github.com/tokenarena/pnl-indexer/internal/domain/repositories"
)

// Ensure TradeRepo implements TradeRepository
var _ repositories.TradeRepository = (*TradeRepo)(nil)

// TradeRepo implements TradeRepository using PostgreSQL
type TradeRepo struct {
	db *sqlx.DB
}

// NewTradeRepo creates a new trade repository
func NewTradeRepo(db *sqlx.DB) *TradeRepo {
	return &TradeRepo{db: db}
}

// BatchInsert inserts trades in a single transaction. Rows that collide on
// (tx_hash, token_address, wallet_address, side) are silently skipped, so
// re-ingesting an overlapping block range never duplicates the ledger.
func (r *TradeRepo) BatchInsert(ctx context.Context, trades []entities.Trade) (int64, error) {
	if len(trades) == 0 {
		return 0, nil
	}

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	query := `
		INSERT INTO trades (wallet_address, token_address, side, token_amount,
							usd_value, price_usd, block_number, block_time,
							tx_hash, source)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (tx_hash, token_address, wallet_address, side) DO NOTHING
	`

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return 0, fmt.Errorf("failed to prepare statement: %w", err)
	}
	defer stmt.Close()

	var inserted int64
	for _, t := range trades {
		res, err := stmt.ExecContext(ctx,
			t.WalletAddress,
			t.TokenAddress,
			t.Side,
			t.TokenAmount,
			t.USDValue,
			t.PriceUSD,
			t.BlockNumber,
			t.BlockTime,
			t.TxHash,
			t.Source,
		)
		if err != nil {
			return 0, fmt.Errorf("failed to insert trade: %w", err)
		}
		rows, err := res.RowsAffected()
		if err != nil {
			return 0, fmt.Errorf("failed to read rows affected: %w", err)
		}
		inserted += rows
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit transaction: %w", err)
	}

	return inserted, nil
}

// GetByFilter retrieves trades matching the given filter
func (r *TradeRepo) GetByFilter(ctx context.Context, filter entities.TradeFilter) ([]entities.Trade, error) {
	query, args := r.buildFilterQuery(filter, false)

	var trades []entities.Trade
	if err := r.db.SelectContext(ctx, &trades, query, args...); err != nil {
		return nil, fmt.Errorf("failed to get trades: %w", err)
	}

	return trades, nil
}

// GetCount returns the count of trades matching the filter
func (r *TradeRepo) GetCount(ctx context.Context, filter entities.TradeFilter) (int64, error) {
	query, args := r.buildFilterQuery(filter, true)

	var count int64
	if err := r.db.GetContext(ctx, &count, query, args...); err != nil {
		return 0, fmt.Errorf("failed to get trade count: %w", err)
	}

	return count, nil
}

// buildFilterQuery builds the SQL query for filtering trades
func (r *TradeRepo) buildFilterQuery(filter entities.TradeFilter, countOnly bool) (string, []interface{}) {
	var conditions []string
	var args []interface{}
	argIdx := 1

	if filter.WalletAddress != nil {
		conditions = append(conditions, fmt.Sprintf("wallet_address = $%d", argIdx))
		args = append(args, *filter.WalletAddress)
		argIdx++
	}

	if filter.TokenAddress != nil {
		conditions = append(conditions, fmt.Sprintf("token_address = $%d", argIdx))
		args = append(args, *filter.TokenAddress)
		argIdx++
	}

	if filter.Side != nil {
		conditions = append(conditions, fmt.Sprintf("side = $%d", argIdx))
		args = append(args, *filter.Side)
		argIdx++
	}

	if filter.FromBlock != nil {
		conditions = append(conditions, fmt.Sprintf("block_number >= $%d", argIdx))
		args = append(args, *filter.FromBlock)
		argIdx++
	}

	if filter.ToBlock != nil {
		conditions = append(conditions, fmt.Sprintf("block_number <= $%d", argIdx))
		args = append(args, *filter.ToBlock)
		argIdx++
	}

	if filter.FromTime != nil {
		conditions = append(conditions, fmt.Sprintf("block_time >= $%d", argIdx))
		args = append(args, *filter.FromTime)
		argIdx++
	}

	if filter.ToTime != nil {
		conditions = append(conditions, fmt.Sprintf("block_time <= $%d", argIdx))
		args = append(args, *filter.ToTime)
		argIdx++
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = "WHERE " + strings.Join(conditions, " AND ")
	}

	if countOnly {
		return fmt.Sprintf("SELECT COUNT(*) FROM trades %s", whereClause), args
	}

	query := fmt.Sprintf(`
		SELECT id, wallet_address, token_address, side, token_amount,
			   usd_value, price_usd, block_number, block_time, tx_hash,
			   source, created_at
		FROM trades
		%s
		ORDER BY block_number DESC, tx_hash DESC
		LIMIT $%d OFFSET $%d
	`, whereClause, argIdx, argIdx+1)

	args = append(args, filter.Limit, filter.Offset)

	return query, args
}

// ListForReplay returns the complete ledger of a (wallet, token) pair in
// deterministic replay order.
func (r *TradeRepo) ListForReplay(ctx context.Context, walletAddress, tokenAddress string) ([]entities.Trade, error) {
	query := `
		SELECT id, wallet_address, token_address, side, token_amount,
			   usd_value, price_usd, block_number, block_time, tx_hash,
			   source, created_at
		FROM trades
		WHERE wallet_address = $1 AND token_address = $2
		ORDER BY block_number ASC, tx_hash ASC, side ASC
	`

	var trades []entities.Trade
	if err := r.db.SelectContext(ctx, &trades, query, walletAddress, tokenAddress); err != nil {
		return nil, fmt.Errorf("failed to list trades for replay: %w", err)
	}

	return trades, nil
}

// GetLatestPrice returns the price of the most recent trade for a token, or
// zero when the token has no trades yet.
func (r *TradeRepo) GetLatestPrice(ctx context.Context, tokenAddress string) (decimal.Decimal, error) {
	query := `
		SELECT price_usd
		FROM trades
		WHERE token_address = $1
		ORDER BY block_number DESC, tx_hash DESC
		LIMIT 1
	`

	var price decimal.Decimal
	if err := r.db.GetContext(ctx, &price, query, tokenAddress); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return decimal.Zero, nil
		}
		return decimal.Zero, fmt.Errorf("failed to get latest price: %w", err)
	}

	return price, nil
}

// GetLatestBlock returns the highest block seen for a token
func (r *TradeRepo) GetLatestBlock(ctx context.Context, tokenAddress string) (int64, error) {
	query := `SELECT COALESCE(MAX(block_number), 0) FROM trades WHERE token_address = $1`

	var blockNumber int64
	if err := r.db.GetContext(ctx, &blockNumber, query, tokenAddress); err != nil {
		return 0, fmt.Errorf("failed to get latest block: %w", err)
	}

	return blockNumber, nil
}
