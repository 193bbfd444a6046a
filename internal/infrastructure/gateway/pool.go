package gateway

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/tokenarena/pnl-indexer/internal/domain/entities"
)

// ErrProviderUnavailable means every configured provider failed the call.
// Callers should treat it as retryable: the pool keeps serving and the
// providers may recover.
var ErrProviderUnavailable = errors.New("all providers unavailable")

// Strategy selects how the pool spreads a call across providers.
type Strategy string

const (
	// StrategyRace queries every provider at once and takes the first
	// successful answer.
	StrategyRace Strategy = "race"
	// StrategyPriority tries providers in configured order and falls back
	// on failure.
	StrategyPriority Strategy = "priority"
)

// unhealthyAfter is the consecutive-failure count at which a provider is
// reported unhealthy in snapshots. It does not remove the provider from
// rotation; a single success resets it.
const unhealthyAfter = 3

// ProviderHealth is a point-in-time view of one provider's track record
type ProviderHealth struct {
	Name                string     `json:"name"`
	Healthy             bool       `json:"healthy"`
	ConsecutiveFailures int        `json:"consecutive_failures"`
	TotalCalls          int64      `json:"total_calls"`
	TotalFailures       int64      `json:"total_failures"`
	LastError           string     `json:"last_error,omitempty"`
	LastSuccessAt       *time.Time `json:"last_success_at,omitempty"`
	LastFailureAt       *time.Time `json:"last_failure_at,omitempty"`
}

// TokenMetadata is the provider-sourced token descriptor
type TokenMetadata struct {
	Symbol   string
	Decimals int
}

// ProviderPool multiplexes chain reads across providers. Every call is
// bounded by the pool's call timeout; per-provider outcomes feed the health
// tracker regardless of strategy.
type ProviderPool struct {
	providers   []ChainProvider
	strategy    Strategy
	callTimeout time.Duration
	logger      *zap.Logger

	mu     sync.RWMutex
	health map[string]*ProviderHealth
}

// NewProviderPool creates a pool over the given providers
func NewProviderPool(providers []ChainProvider, strategy Strategy, callTimeout time.Duration, logger *zap.Logger) (*ProviderPool, error) {
	if len(providers) == 0 {
		return nil, fmt.Errorf("at least one provider is required")
	}
	if strategy != StrategyRace && strategy != StrategyPriority {
		return nil, fmt.Errorf("unknown provider strategy: %q", strategy)
	}

	health := make(map[string]*ProviderHealth, len(providers))
	for _, p := range providers {
		health[p.Name()] = &ProviderHealth{Name: p.Name(), Healthy: true}
	}

	return &ProviderPool{
		providers:   providers,
		strategy:    strategy,
		callTimeout: callTimeout,
		logger:      logger,
		health:      health,
	}, nil
}

// BlockNumber returns the latest block number from the first provider that
// answers successfully.
func (p *ProviderPool) BlockNumber(ctx context.Context) (int64, error) {
	value, err := p.execute(ctx, "block_number", func(ctx context.Context, prov ChainProvider) (interface{}, error) {
		return prov.BlockNumber(ctx)
	})
	if err != nil {
		return 0, err
	}
	return value.(int64), nil
}

// NativeBalance returns the wallet's native currency balance
func (p *ProviderPool) NativeBalance(ctx context.Context, walletAddress string) (*big.Int, error) {
	value, err := p.execute(ctx, "native_balance", func(ctx context.Context, prov ChainProvider) (interface{}, error) {
		return prov.NativeBalance(ctx, walletAddress)
	})
	if err != nil {
		return nil, err
	}
	return value.(*big.Int), nil
}

// TokenBalance returns the wallet's ERC-20 balance
func (p *ProviderPool) TokenBalance(ctx context.Context, tokenAddress, walletAddress string) (*big.Int, error) {
	value, err := p.execute(ctx, "token_balance", func(ctx context.Context, prov ChainProvider) (interface{}, error) {
		return prov.TokenBalance(ctx, tokenAddress, walletAddress)
	})
	if err != nil {
		return nil, err
	}
	return value.(*big.Int), nil
}

// FetchTokenMetadata looks up symbol and decimals with independent per-field
// fallback. Metadata never fails the caller: a token the providers cannot
// describe still gets indexed under default metadata.
func (p *ProviderPool) FetchTokenMetadata(ctx context.Context, tokenAddress string) *TokenMetadata {
	metadata := &TokenMetadata{
		Symbol:   entities.DefaultTokenSymbol,
		Decimals: entities.DefaultTokenDecimals,
	}

	symbol, err := p.execute(ctx, "token_symbol", func(ctx context.Context, prov ChainProvider) (interface{}, error) {
		return prov.TokenSymbol(ctx, tokenAddress)
	})
	if err != nil {
		p.logger.Warn("Failed to fetch token symbol, using default",
			zap.String("token", tokenAddress),
			zap.Error(err),
		)
	} else if s := symbol.(string); s != "" {
		metadata.Symbol = s
	}

	decimals, err := p.execute(ctx, "token_decimals", func(ctx context.Context, prov ChainProvider) (interface{}, error) {
		return prov.TokenDecimals(ctx, tokenAddress)
	})
	if err != nil {
		p.logger.Warn("Failed to fetch token decimals, using default",
			zap.String("token", tokenAddress),
			zap.Error(err),
		)
	} else {
		metadata.Decimals = int(decimals.(uint8))
	}

	return metadata
}

// Health returns a snapshot of every provider's track record, in
// configuration order.
func (p *ProviderPool) Health() []ProviderHealth {
	p.mu.RLock()
	defer p.mu.RUnlock()

	snapshot := make([]ProviderHealth, 0, len(p.providers))
	for _, prov := range p.providers {
		if h, ok := p.health[prov.Name()]; ok {
			snapshot = append(snapshot, *h)
		}
	}
	return snapshot
}

// Close releases all provider connections
func (p *ProviderPool) Close() {
	for _, prov := range p.providers {
		prov.Close()
	}
}

type callResult struct {
	provider string
	value    interface{}
	err      error
}

// execute runs one logical call under the pool's timeout and strategy
func (p *ProviderPool) execute(ctx context.Context, op string, call func(context.Context, ChainProvider) (interface{}, error)) (interface{}, error) {
	ctx, cancel := context.WithTimeout(ctx, p.callTimeout)
	defer cancel()

	if p.strategy == StrategyRace {
		return p.race(ctx, op, call)
	}
	return p.fallback(ctx, op, call)
}

// race fans the call out to every provider and returns the first success.
// Losing providers still report into the health tracker when they finish.
func (p *ProviderPool) race(ctx context.Context, op string, call func(context.Context, ChainProvider) (interface{}, error)) (interface{}, error) {
	results := make(chan callResult, len(p.providers))
	for _, prov := range p.providers {
		go func(prov ChainProvider) {
			value, err := call(ctx, prov)
			switch {
			case err == nil:
				p.markSuccess(prov.Name())
			case errors.Is(err, context.Canceled):
				// Losing a race is not a provider failure.
			default:
				p.markFailure(prov.Name(), err)
			}
			results <- callResult{provider: prov.Name(), value: value, err: err}
		}(prov)
	}

	var lastErr error
	for range p.providers {
		select {
		case res := <-results:
			if res.err == nil {
				return res.value, nil
			}
			p.logger.Warn("Provider call failed",
				zap.String("op", op),
				zap.String("provider", res.provider),
				zap.Error(res.err),
			)
			lastErr = res.err
		case <-ctx.Done():
			p.logger.Warn("Provider race timed out",
				zap.String("op", op),
				zap.Error(ctx.Err()),
			)
			return nil, fmt.Errorf("%s: %w", op, ErrProviderUnavailable)
		}
	}

	p.logger.Warn("All providers failed",
		zap.String("op", op),
		zap.Error(lastErr),
	)
	return nil, fmt.Errorf("%s: %w", op, ErrProviderUnavailable)
}

// fallback walks providers in configured order, returning the first success
func (p *ProviderPool) fallback(ctx context.Context, op string, call func(context.Context, ChainProvider) (interface{}, error)) (interface{}, error) {
	var lastErr error
	for _, prov := range p.providers {
		if ctx.Err() != nil {
			break
		}

		value, err := call(ctx, prov)
		if err == nil {
			p.markSuccess(prov.Name())
			return value, nil
		}

		p.markFailure(prov.Name(), err)
		p.logger.Warn("Provider call failed, falling back",
			zap.String("op", op),
			zap.String("provider", prov.Name()),
			zap.Error(err),
		)
		lastErr = err
	}

	p.logger.Warn("All providers failed",
		zap.String("op", op),
		zap.Error(lastErr),
	)
	return nil, fmt.Errorf("%s: %w", op, ErrProviderUnavailable)
}

func (p *ProviderPool) markSuccess(name string) {
	p.mu.Lock()
	defer p.mu.Unlock()

	h, ok := p.health[name]
	if !ok {
		return
	}
	now := time.Now()
	h.TotalCalls++
	h.ConsecutiveFailures = 0
	h.Healthy = true
	h.LastError = ""
	h.LastSuccessAt = &now
}

func (p *ProviderPool) markFailure(name string, err error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	h, ok := p.health[name]
	if !ok {
		return
	}
	now := time.Now()
	h.TotalCalls++
	h.TotalFailures++
	h.ConsecutiveFailures++
	h.Healthy = h.ConsecutiveFailures < unhealthyAfter
	if err != nil {
		h.LastError = err.Error()
	}
	h.LastFailureAt = &now
}
