package services

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tokenarena/pnl-indexer/internal/domain/entities"
	"github.com/tokenarena/pnl-indexer/internal/domain/repositories"
	"github.com/tokenarena/pnl-indexer/internal/infrastructure/cache"
)

// TradeService provides read access to the trade ledger
type TradeService struct {
	tradeRepo repositories.TradeRepository
	cache     *cache.RedisCache
	logger    *zap.Logger
}

// NewTradeService creates a new trade service
func NewTradeService(
	tradeRepo repositories.TradeRepository,
	cache *cache.RedisCache,
	logger *zap.Logger,
) *TradeService {
	return &TradeService{
		tradeRepo: tradeRepo,
		cache:     cache,
		logger:    logger,
	}
}

// TradeDTO is the API representation of a trade
type TradeDTO struct {
	TxHash        string `json:"tx_hash"`
	WalletAddress string `json:"wallet_address"`
	TokenAddress  string `json:"token_address"`
	Side          string `json:"side"`
	TokenAmount   string `json:"token_amount"`
	USDValue      string `json:"usd_value"`
	PriceUSD      string `json:"price_usd"`
	BlockNumber   int64  `json:"block_number"`
	BlockTime     string `json:"block_time"`
	Source        string `json:"source"`
}

// TradeListResponse is the API response for trade queries
type TradeListResponse struct {
	Trades  []TradeDTO `json:"trades"`
	Total   int64      `json:"total"`
	Limit   int        `json:"limit"`
	Offset  int        `json:"offset"`
	HasMore bool       `json:"has_more"`
}

// GetTrades retrieves trades based on filter
func (s *TradeService) GetTrades(ctx context.Context, filter entities.TradeFilter) (*TradeListResponse, error) {
	cacheKey := s.generateCacheKey(filter)

	var cached TradeListResponse
	if s.cache != nil {
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			s.logger.Debug("Cache hit", zap.String("key", cacheKey))
			return &cached, nil
		}
	}

	trades, err := s.tradeRepo.GetByFilter(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to get trades: %w", err)
	}

	total, err := s.tradeRepo.GetCount(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to get trade count: %w", err)
	}

	dtos := make([]TradeDTO, len(trades))
	for i, t := range trades {
		dtos[i] = TradeDTO{
			TxHash:        t.TxHash,
			WalletAddress: t.WalletAddress,
			TokenAddress:  t.TokenAddress,
			Side:          string(t.Side),
			TokenAmount:   t.TokenAmount.String(),
			USDValue:      t.USDValue.String(),
			PriceUSD:      t.PriceUSD.String(),
			BlockNumber:   t.BlockNumber,
			BlockTime:     t.BlockTime.UTC().Format(time.RFC3339),
			Source:        t.Source,
		}
	}

	response := &TradeListResponse{
		Trades:  dtos,
		Total:   total,
		Limit:   filter.Limit,
		Offset:  filter.Offset,
		HasMore: int64(filter.Offset+len(trades)) < total,
	}

	if s.cache != nil {
		// Short TTL: the ledger grows with every job
		if err := s.cache.SetWithTTL(ctx, cacheKey, response, 30*time.Second); err != nil {
			s.logger.Warn("Failed to cache response", zap.Error(err))
		}
	}

	return response, nil
}

// GetWalletTrades retrieves trades for a wallet, optionally narrowed to a token
func (s *TradeService) GetWalletTrades(ctx context.Context, walletAddress, tokenAddress string, limit, offset int) (*TradeListResponse, error) {
	walletAddress = strings.ToLower(walletAddress)
	filter := entities.TradeFilter{
		WalletAddress: &walletAddress,
		Limit:         limit,
		Offset:        offset,
	}
	if tokenAddress != "" {
		token := strings.ToLower(tokenAddress)
		filter.TokenAddress = &token
	}
	return s.GetTrades(ctx, filter)
}

// generateCacheKey generates a unique cache key for the filter
func (s *TradeService) generateCacheKey(filter entities.TradeFilter) string {
	var parts []string

	if filter.WalletAddress != nil {
		parts = append(parts, "wallet:"+*filter.WalletAddress)
	}
	if filter.TokenAddress != nil {
		parts = append(parts, "token:"+*filter.TokenAddress)
	}
	if filter.Side != nil {
		parts = append(parts, "side:"+string(*filter.Side))
	}
	if filter.FromBlock != nil {
		parts = append(parts, fmt.Sprintf("fb:%d", *filter.FromBlock))
	}
	if filter.ToBlock != nil {
		parts = append(parts, fmt.Sprintf("tb:%d", *filter.ToBlock))
	}

	parts = append(parts, fmt.Sprintf("l:%d:o:%d", filter.Limit, filter.Offset))

	key := strings.Join(parts, "|")
	hash := sha256.Sum256([]byte(key))
	return "trades:" + hex.EncodeToString(hash[:8])
}
