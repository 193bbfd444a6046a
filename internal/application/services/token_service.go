package services

import (
	"context"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/tokenarena/pnl-indexer/internal/domain/entities"
	"github.com/tokenarena/pnl-indexer/internal/domain/repositories"
	"github.com/tokenarena/pnl-indexer/internal/infrastructure/cache"
	"github.com/tokenarena/pnl-indexer/internal/infrastructure/gateway"
)

// MetadataFetcher resolves on-chain token metadata. Satisfied by
// gateway.ProviderPool.
type MetadataFetcher interface {
	FetchTokenMetadata(ctx context.Context, tokenAddress string) *gateway.TokenMetadata
}

// TokenService manages the set of tracked tokens
type TokenService struct {
	tokenRepo repositories.TokenRepository
	chain     MetadataFetcher
	cache     *cache.RedisCache
	logger    *zap.Logger
}

// NewTokenService creates a new token service
func NewTokenService(
	tokenRepo repositories.TokenRepository,
	chain MetadataFetcher,
	cache *cache.RedisCache,
	logger *zap.Logger,
) *TokenService {
	return &TokenService{
		tokenRepo: tokenRepo,
		chain:     chain,
		cache:     cache,
		logger:    logger,
	}
}

// TokenDTO is the API representation of a tracked token
type TokenDTO struct {
	Address      string `json:"address"`
	Symbol       string `json:"symbol"`
	Decimals     int    `json:"decimals"`
	GenesisBlock int64  `json:"genesis_block"`
	CreatedAt    string `json:"created_at"`
	UpdatedAt    string `json:"updated_at"`
}

// TokenResponse is the API response for single token queries
type TokenResponse struct {
	Data TokenDTO `json:"data"`
}

// TokenListResponse is the API response for token list queries
type TokenListResponse struct {
	Data  []TokenDTO `json:"data"`
	Total int        `json:"total"`
}

// RegisterToken adds a token to the tracked set. Metadata is fetched from
// the provider pool and degrades to defaults when no provider can answer,
// so registration succeeds even with the chain unreachable.
func (s *TokenService) RegisterToken(ctx context.Context, address string, genesisBlock int64) (*TokenResponse, error) {
	address = strings.ToLower(address)

	meta := s.chain.FetchTokenMetadata(ctx, address)

	token := &entities.Token{
		Address:      address,
		Symbol:       meta.Symbol,
		Decimals:     meta.Decimals,
		GenesisBlock: genesisBlock,
	}
	if err := s.tokenRepo.Upsert(ctx, token); err != nil {
		return nil, fmt.Errorf("failed to register token: %w", err)
	}

	s.invalidate(ctx, address)

	s.logger.Info("Registered token",
		zap.String("address", address),
		zap.String("symbol", token.Symbol),
		zap.Int("decimals", token.Decimals),
		zap.Int64("genesis_block", genesisBlock))

	// Re-read for the database-owned timestamps.
	stored, err := s.tokenRepo.GetByAddress(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("failed to load registered token: %w", err)
	}
	if stored == nil {
		stored = token
	}

	return &TokenResponse{Data: toTokenDTO(stored)}, nil
}

// RefreshMetadata re-fetches symbol and decimals from the provider pool
// for a token that was registered while the chain was unreachable.
func (s *TokenService) RefreshMetadata(ctx context.Context, address string) (*TokenResponse, error) {
	address = strings.ToLower(address)

	token, err := s.tokenRepo.GetByAddress(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("failed to get token: %w", err)
	}
	if token == nil {
		return nil, nil
	}

	meta := s.chain.FetchTokenMetadata(ctx, address)
	if err := s.tokenRepo.UpdateMetadata(ctx, address, meta.Symbol, meta.Decimals); err != nil {
		return nil, fmt.Errorf("failed to update token metadata: %w", err)
	}

	s.invalidate(ctx, address)

	s.logger.Info("Refreshed token metadata",
		zap.String("address", address),
		zap.String("symbol", meta.Symbol),
		zap.Int("decimals", meta.Decimals))

	token.Symbol = meta.Symbol
	token.Decimals = meta.Decimals

	return &TokenResponse{Data: toTokenDTO(token)}, nil
}

// GetToken retrieves a single tracked token by address
func (s *TokenService) GetToken(ctx context.Context, address string) (*TokenResponse, error) {
	address = strings.ToLower(address)
	cacheKey := cache.TokenKey(address)

	var cached TokenResponse
	if s.cache != nil {
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			s.logger.Debug("Cache hit", zap.String("key", cacheKey))
			return &cached, nil
		}
	}

	token, err := s.tokenRepo.GetByAddress(ctx, address)
	if err != nil {
		return nil, fmt.Errorf("failed to get token: %w", err)
	}
	if token == nil {
		return nil, nil
	}

	response := &TokenResponse{Data: toTokenDTO(token)}

	if s.cache != nil {
		if err := s.cache.SetWithTTL(ctx, cacheKey, response, 5*time.Minute); err != nil {
			s.logger.Warn("Failed to cache response", zap.Error(err))
		}
	}

	return response, nil
}

// GetTokens retrieves all tracked tokens
func (s *TokenService) GetTokens(ctx context.Context) (*TokenListResponse, error) {
	var cached TokenListResponse
	if s.cache != nil {
		if err := s.cache.Get(ctx, cache.TokensListKey, &cached); err == nil {
			s.logger.Debug("Cache hit", zap.String("key", cache.TokensListKey))
			return &cached, nil
		}
	}

	tokens, err := s.tokenRepo.GetAll(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get tokens: %w", err)
	}

	dtos := make([]TokenDTO, len(tokens))
	for i := range tokens {
		dtos[i] = toTokenDTO(&tokens[i])
	}

	response := &TokenListResponse{
		Data:  dtos,
		Total: len(dtos),
	}

	if s.cache != nil {
		if err := s.cache.SetWithTTL(ctx, cache.TokensListKey, response, 5*time.Minute); err != nil {
			s.logger.Warn("Failed to cache response", zap.Error(err))
		}
	}

	return response, nil
}

func (s *TokenService) invalidate(ctx context.Context, address string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, cache.TokenKey(address)); err != nil {
		s.logger.Warn("Failed to invalidate token cache", zap.Error(err))
	}
	if err := s.cache.Delete(ctx, cache.TokensListKey); err != nil {
		s.logger.Warn("Failed to invalidate token list cache", zap.Error(err))
	}
}

// toTokenDTO converts a token entity to its API representation
func toTokenDTO(t *entities.Token) TokenDTO {
	return TokenDTO{
		Address:      t.Address,
		Symbol:       t.Symbol,
		Decimals:     t.Decimals,
		GenesisBlock: t.GenesisBlock,
		CreatedAt:    t.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:    t.UpdatedAt.UTC().Format(time.RFC3339),
	}
}
