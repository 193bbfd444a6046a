package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	"github.com/tokenarena/pnl-indexer/internal/domain/accounting"
	"github.com/tokenarena/pnl-indexer/internal/domain/entities"
	"github.com/tokenarena/pnl-indexer/internal/domain/repositories"
	"github.com/tokenarena/pnl-indexer/internal/infrastructure/cache"
)

// AccountingService derives positions from the trade ledger. Every recompute
// replays the pair's full history, so a stored position can always be
// reproduced (and corrected) from trades alone.
type AccountingService struct {
	tradeRepo    repositories.TradeRepository
	positionRepo repositories.PositionRepository
	cache        *cache.RedisCache
	logger       *zap.Logger
	group        singleflight.Group
}

// NewAccountingService creates a new accounting service
func NewAccountingService(
	tradeRepo repositories.TradeRepository,
	positionRepo repositories.PositionRepository,
	cache *cache.RedisCache,
	logger *zap.Logger,
) *AccountingService {
	return &AccountingService{
		tradeRepo:    tradeRepo,
		positionRepo: positionRepo,
		cache:        cache,
		logger:       logger,
	}
}

// Recompute replays the full (wallet, token) ledger and replaces the stored
// position with the result. Concurrent calls for the same pair share one run.
func (s *AccountingService) Recompute(ctx context.Context, walletAddress, tokenAddress string) (*entities.Position, error) {
	walletAddress = strings.ToLower(walletAddress)
	tokenAddress = strings.ToLower(tokenAddress)

	key := walletAddress + ":" + tokenAddress
	v, err, _ := s.group.Do(key, func() (interface{}, error) {
		return s.recompute(ctx, walletAddress, tokenAddress)
	})
	if err != nil {
		return nil, err
	}
	return v.(*entities.Position), nil
}

func (s *AccountingService) recompute(ctx context.Context, walletAddress, tokenAddress string) (*entities.Position, error) {
	trades, err := s.tradeRepo.ListForReplay(ctx, walletAddress, tokenAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to load trades for replay: %w", err)
	}

	result := accounting.Replay(trades)
	positionRecomputes.Inc()

	if result.OverSoldAmount.Sign() > 0 {
		oversoldReplays.Inc()
		s.logger.Warn("Replay sold more than tracked inventory",
			zap.String("wallet", walletAddress),
			zap.String("token", tokenAddress),
			zap.String("oversold_amount", result.OverSoldAmount.String()),
		)
	}

	position := &entities.Position{
		WalletAddress:   walletAddress,
		TokenAddress:    tokenAddress,
		RemainingAmount: result.RemainingAmount,
		CostBasisUSD:    result.CostBasisUSD,
		RealizedPnLUSD:  result.RealizedPnLUSD,
		TradeCount:      int64(result.TradeCount),
		LastTradeBlock:  result.LastTradeBlock,
		UpdatedAt:       time.Now().UTC(),
	}

	if err := s.positionRepo.Upsert(ctx, position); err != nil {
		return nil, fmt.Errorf("failed to store position: %w", err)
	}

	s.invalidate(ctx, walletAddress, tokenAddress)

	s.logger.Debug("Recomputed position",
		zap.String("wallet", walletAddress),
		zap.String("token", tokenAddress),
		zap.Int("trades", result.TradeCount),
		zap.String("realized_pnl", result.RealizedPnLUSD.String()),
	)

	return position, nil
}

func (s *AccountingService) invalidate(ctx context.Context, walletAddress, tokenAddress string) {
	if s.cache == nil {
		return
	}

	keys := []string{
		cache.PositionKey(walletAddress, tokenAddress),
		cache.WalletPositionsKey(walletAddress),
	}
	for _, key := range keys {
		if err := s.cache.Delete(ctx, key); err != nil {
			s.logger.Warn("Failed to invalidate cache key",
				zap.String("key", key),
				zap.Error(err),
			)
		}
	}
	if err := s.cache.DeletePattern(ctx, cache.TokenPositionsPattern(tokenAddress)); err != nil {
		s.logger.Warn("Failed to invalidate token position cache",
			zap.String("token", tokenAddress),
			zap.Error(err),
		)
	}
}

// CurrentPnL values a position at the token's latest observed trade price.
// When the token has no observed price yet, only the realized leg counts.
func (s *AccountingService) CurrentPnL(ctx context.Context, position *entities.Position) (decimal.Decimal, error) {
	price, err := s.tradeRepo.GetLatestPrice(ctx, position.TokenAddress)
	if err != nil {
		return decimal.Zero, fmt.Errorf("failed to get latest price: %w", err)
	}
	if price.Sign() <= 0 {
		return position.RealizedPnLUSD, nil
	}

	unrealized := accounting.UnrealizedPnL(position.RemainingAmount, position.CostBasisUSD, price)
	return position.RealizedPnLUSD.Add(unrealized), nil
}
