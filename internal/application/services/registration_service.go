package services

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/tokenarena/pnl-indexer/internal/domain/entities"
	"github.com/tokenarena/pnl-indexer/internal/domain/repositories"
	"github.com/tokenarena/pnl-indexer/internal/infrastructure/cache"
)

// RegistrationService provides read access to contest registrations
type RegistrationService struct {
	registrationRepo repositories.RegistrationRepository
	cache            *cache.RedisCache
	logger           *zap.Logger
}

// NewRegistrationService creates a new registration service
func NewRegistrationService(
	registrationRepo repositories.RegistrationRepository,
	cache *cache.RedisCache,
	logger *zap.Logger,
) *RegistrationService {
	return &RegistrationService{
		registrationRepo: registrationRepo,
		cache:            cache,
		logger:           logger,
	}
}

// RegistrationDTO is the API representation of a registration
type RegistrationDTO struct {
	ID              int64   `json:"id"`
	ContestID       int64   `json:"contest_id"`
	WalletAddress   string  `json:"wallet_address"`
	TokenAddress    string  `json:"token_address"`
	Status          string  `json:"status"`
	CurrentPnLUSD   *string `json:"current_pnl_usd,omitempty"`
	IndexedAt       *string `json:"indexed_at,omitempty"`
	PnLCalculatedAt *string `json:"pnl_calculated_at,omitempty"`
	CreatedAt       string  `json:"created_at"`
}

// RegistrationResponse wraps a single registration for API response
type RegistrationResponse struct {
	Data RegistrationDTO `json:"data"`
}

// LeaderboardEntry is one ranked row of a contest leaderboard
type LeaderboardEntry struct {
	Rank int `json:"rank"`
	RegistrationDTO
}

// LeaderboardResponse is the API response for a contest leaderboard page
type LeaderboardResponse struct {
	ContestID int64              `json:"contest_id"`
	Entries   []LeaderboardEntry `json:"entries"`
	Limit     int                `json:"limit"`
	Offset    int                `json:"offset"`
}

// GetStatus retrieves one registration by id. Deliberately uncached: this is
// the endpoint callers poll to observe job completion.
func (s *RegistrationService) GetStatus(ctx context.Context, id int64) (*RegistrationResponse, error) {
	registration, err := s.registrationRepo.GetByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get registration: %w", err)
	}
	if registration == nil {
		return nil, nil
	}
	return &RegistrationResponse{Data: toRegistrationDTO(registration)}, nil
}

// GetLeaderboard retrieves a contest's registrations ranked by current PnL
func (s *RegistrationService) GetLeaderboard(ctx context.Context, contestID int64, limit, offset int) (*LeaderboardResponse, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 200 {
		limit = 200
	}
	if offset < 0 {
		offset = 0
	}

	cacheKey := cache.LeaderboardKey(contestID, limit, offset)

	var cached LeaderboardResponse
	if s.cache != nil {
		if err := s.cache.Get(ctx, cacheKey, &cached); err == nil {
			s.logger.Debug("Cache hit", zap.String("key", cacheKey))
			return &cached, nil
		}
	}

	registrations, err := s.registrationRepo.GetByContest(ctx, contestID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to get leaderboard: %w", err)
	}

	entries := make([]LeaderboardEntry, len(registrations))
	for i := range registrations {
		entries[i] = LeaderboardEntry{
			Rank:            offset + i + 1,
			RegistrationDTO: toRegistrationDTO(&registrations[i]),
		}
	}

	response := &LeaderboardResponse{
		ContestID: contestID,
		Entries:   entries,
		Limit:     limit,
		Offset:    offset,
	}

	if s.cache != nil {
		if err := s.cache.SetWithTTL(ctx, cacheKey, response, 30*time.Second); err != nil {
			s.logger.Warn("Failed to cache response", zap.Error(err))
		}
	}

	return response, nil
}

func toRegistrationDTO(r *entities.Registration) RegistrationDTO {
	dto := RegistrationDTO{
		ID:            r.ID,
		ContestID:     r.ContestID,
		WalletAddress: r.WalletAddress,
		TokenAddress:  r.TokenAddress,
		Status:        string(r.Status),
		CreatedAt:     r.CreatedAt.UTC().Format(time.RFC3339),
	}
	if r.CurrentPnL.Valid {
		pnl := r.CurrentPnL.Decimal.String()
		dto.CurrentPnLUSD = &pnl
	}
	if r.IndexedAt != nil {
		ts := r.IndexedAt.UTC().Format(time.RFC3339)
		dto.IndexedAt = &ts
	}
	if r.PnLCalculatedAt != nil {
		ts := r.PnLCalculatedAt.UTC().Format(time.RFC3339)
		dto.PnLCalculatedAt = &ts
	}
	return dto
}
