package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tokenarena/pnl-indexer/internal/domain/accounting"
	"github.com/tokenarena/pnl-indexer/internal/domain/entities"
	"github.com/tokenarena/pnl-indexer/internal/domain/repositories"
	"github.com/tokenarena/pnl-indexer/internal/infrastructure/cache"
)

// PositionService provides read access to derived positions
type PositionService struct {
	positionRepo repositories.PositionRepository
	tradeRepo    repositories.TradeRepository
	cache        *cache.RedisCache
	logger       *zap.Logger
}

// NewPositionService creates a new position service
func NewPositionService(
	positionRepo repositories.PositionRepository,
	tradeRepo repositories.TradeRepository,
	cache *cache.RedisCache,
	logger *zap.Logger,
) *PositionService {
	return &PositionService{
		positionRepo: positionRepo,
		tradeRepo:    tradeRepo,
		cache:        cache,
		logger:       logger,
	}
}

// PositionDTO is the API representation of a position. The mark fields are
// present only when a price was available to value the remaining inventory.
type PositionDTO struct {
	WalletAddress    string  `json:"wallet_address"`
	TokenAddress     string  `json:"token_address"`
	RemainingAmount  string  `json:"remaining_amount"`
	CostBasisUSD     string  `json:"cost_basis_usd"`
	RealizedPnLUSD   string  `json:"realized_pnl_usd"`
	MarkPriceUSD     *string `json:"mark_price_usd,omitempty"`
	UnrealizedPnLUSD *string `json:"unrealized_pnl_usd,omitempty"`
	CurrentPnLUSD    *string `json:"current_pnl_usd,omitempty"`
	TradeCount       int64   `json:"trade_count"`
	LastTradeBlock   int64   `json:"last_trade_block"`
	UpdatedAt        string  `json:"updated_at"`
}

// PositionResponse wraps a single position for API response
type PositionResponse struct {
	Data PositionDTO `json:"data"`
}

// PositionListResponse wraps a position list for API response
type PositionListResponse struct {
	Data  []PositionDTO `json:"data"`
	Total int           `json:"total"`
}

// GetPosition retrieves one (wallet, token) position. A non-nil markPrice
// overrides the ledger's latest trade price and bypasses the cache.
func (s *PositionService) GetPosition(ctx context.Context, walletAddress, tokenAddress string, markPrice *decimal.Decimal) (*PositionResponse, error) {
	walletAddress = strings.ToLower(walletAddress)
	tokenAddress = strings.ToLower(tokenAddress)

	cacheKey := cache.PositionKey(walletAddress, tokenAddress)

	if markPrice == nil && s.cache != nil {
		var cached PositionResponse
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			s.logger.Debug("Cache hit", zap.String("key", cacheKey))
			return &cached, nil
		}
	}

	position, err := s.positionRepo.Get(ctx, walletAddress, tokenAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to get position: %w", err)
	}
	if position == nil {
		return nil, nil
	}

	price := markPrice
	if price == nil {
		latest, err := s.tradeRepo.GetLatestPrice(ctx, tokenAddress)
		if err != nil {
			return nil, fmt.Errorf("failed to get latest price: %w", err)
		}
		if latest.Sign() > 0 {
			price = &latest
		}
	}

	response := &PositionResponse{Data: s.toDTO(position, price)}

	if markPrice == nil && s.cache != nil {
		// Short TTL: every finished job can move this
		if err := s.cache.SetWithTTL(ctx, cacheKey, response, 30*time.Second); err != nil {
			s.logger.Warn("Failed to cache response", zap.Error(err))
		}
	}

	return response, nil
}

// GetWalletPositions retrieves all positions of a wallet. Rows carry realized
// state only; valuing every token would cost one price lookup per row.
func (s *PositionService) GetWalletPositions(ctx context.Context, walletAddress string) (*PositionListResponse, error) {
	walletAddress = strings.ToLower(walletAddress)

	cacheKey := cache.WalletPositionsKey(walletAddress)

	var cached PositionListResponse
	if s.cache != nil {
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			s.logger.Debug("Cache hit", zap.String("key", cacheKey))
			return &cached, nil
		}
	}

	positions, err := s.positionRepo.GetByWallet(ctx, walletAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to get wallet positions: %w", err)
	}

	dtos := make([]PositionDTO, len(positions))
	for i := range positions {
		dtos[i] = s.toDTO(&positions[i], nil)
	}

	response := &PositionListResponse{Data: dtos, Total: len(dtos)}

	if s.cache != nil {
		if err := s.cache.SetWithTTL(ctx, cacheKey, response, 30*time.Second); err != nil {
			s.logger.Warn("Failed to cache response", zap.Error(err))
		}
	}

	return response, nil
}

// GetTopPositions retrieves a token's best positions by realized PnL, valued
// at the token's latest trade price.
func (s *PositionService) GetTopPositions(ctx context.Context, tokenAddress string, limit int) (*PositionListResponse, error) {
	tokenAddress = strings.ToLower(tokenAddress)
	if limit <= 0 {
		limit = 20
	}
	if limit > 100 {
		limit = 100
	}

	cacheKey := cache.TokenPositionsKey(tokenAddress, limit)

	var cached PositionListResponse
	if s.cache != nil {
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			s.logger.Debug("Cache hit", zap.String("key", cacheKey))
			return &cached, nil
		}
	}

	positions, err := s.positionRepo.GetTopByToken(ctx, tokenAddress, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to get top positions: %w", err)
	}

	// One token, one mark price for every row
	var price *decimal.Decimal
	latest, err := s.tradeRepo.GetLatestPrice(ctx, tokenAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest price: %w", err)
	}
	if latest.Sign() > 0 {
		price = &latest
	}

	dtos := make([]PositionDTO, len(positions))
	for i := range positions {
		dtos[i] = s.toDTO(&positions[i], price)
	}

	response := &PositionListResponse{Data: dtos, Total: len(dtos)}

	if s.cache != nil {
		if err := s.cache.SetWithTTL(ctx, cacheKey, response, time.Minute); err != nil {
			s.logger.Warn("Failed to cache response", zap.Error(err))
		}
	}

	return response, nil
}

func (s *PositionService) toDTO(position *entities.Position, price *decimal.Decimal) PositionDTO {
	dto := PositionDTO{
		WalletAddress:   position.WalletAddress,
		TokenAddress:    position.TokenAddress,
		RemainingAmount: position.RemainingAmount.String(),
		CostBasisUSD:    position.CostBasisUSD.String(),
		RealizedPnLUSD:  position.RealizedPnLUSD.String(),
		TradeCount:      position.TradeCount,
		LastTradeBlock:  position.LastTradeBlock,
		UpdatedAt:       position.UpdatedAt.UTC().Format(time.RFC3339),
	}

	if price != nil && price.Sign() > 0 {
		unrealized := accounting.UnrealizedPnL(position.RemainingAmount, position.CostBasisUSD, *price)
		current := position.RealizedPnLUSD.Add(unrealized)

		markStr := price.String()
		unrealizedStr := unrealized.String()
		currentStr := current.String()
		dto.MarkPriceUSD = &markStr
		dto.UnrealizedPnLUSD = &unrealizedStr
		dto.CurrentPnLUSD = &currentStr
	}

	return dto
}
