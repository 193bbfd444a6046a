package swapfeed

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/tokenarena/pnl-indexer/internal/config"
	"github.com/tokenarena/pnl-indexer/internal/domain/entities"
)

// ErrPageFailed means one page exhausted its retry budget. A run that
// fetched at least one page treats it as a gap, not a failure; a run where
// every page failed returns it wrapped.
var ErrPageFailed = errors.New("swap feed page failed")

// Result is everything one ingestion run produced
type Result struct {
	// Trades are the normalized trades matching the wallet filter
	Trades []entities.Trade
	// Wallets is every wallet address observed in the range, filtered or not
	Wallets map[string]struct{}

	PagesFetched int
	PagesSkipped int
	CallsMade    int
	SwapsSeen    int
	SwapsSkipped int
}

// Client pages through the swap feed's per-token listing. Calls are paced by
// a token bucket so a deep backfill cannot trip the feed's rate limits.
type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
	limiter    *rate.Limiter
	pageSize   int
	maxPages   int
	maxRetries int
	retryDelay time.Duration
	logger     *zap.Logger
}

// NewClient creates a swap feed client
func NewClient(cfg config.SwapFeedConfig, logger *zap.Logger) *Client {
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		httpClient: &http.Client{Timeout: cfg.RequestTimeout},
		limiter:    rate.NewLimiter(rate.Limit(cfg.RateLimitRPS), cfg.RateLimitBurst),
		pageSize:   cfg.PageSize,
		maxPages:   cfg.MaxPages,
		maxRetries: cfg.MaxRetries,
		retryDelay: cfg.RetryDelay,
		logger:     logger,
	}
}

// FetchRange pulls every swap of a token in [fromBlock, toBlock], page by
// page, until an empty page, the feed reports no more, or the page ceiling.
// When walletFilter is non-empty only that wallet's trades are returned,
// but Result.Wallets still carries every wallet seen in the range.
//
// A page that fails all its retries is skipped and counted, and the run
// continues with the next page. Only a run where no page succeeded at all
// returns an error.
func (c *Client) FetchRange(ctx context.Context, tokenAddress string, fromBlock, toBlock int64, walletFilter string) (*Result, error) {
	tokenAddress = strings.ToLower(tokenAddress)
	walletFilter = strings.ToLower(walletFilter)

	result := &Result{
		Trades:  make([]entities.Trade, 0),
		Wallets: make(map[string]struct{}),
	}

	for page := 1; page <= c.maxPages; page++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return result, fmt.Errorf("rate limiter interrupted: %w", err)
		}

		resp, err := c.fetchPageWithRetry(ctx, tokenAddress, fromBlock, toBlock, page, result)
		if err != nil {
			if ctx.Err() != nil {
				return result, fmt.Errorf("fetch interrupted: %w", ctx.Err())
			}
			result.PagesSkipped++
			c.logger.Warn("Skipping swap feed page after retries",
				zap.String("token", tokenAddress),
				zap.Int("page", page),
				zap.Error(err),
			)
			continue
		}

		result.PagesFetched++
		result.SwapsSeen += len(resp.Swaps)

		trades, skipped := NormalizeSwaps(resp.Swaps, tokenAddress)
		result.SwapsSkipped += len(skipped)
		if len(skipped) > 0 {
			c.logger.Debug("Some swaps yielded no trades",
				zap.String("token", tokenAddress),
				zap.Int("page", page),
				zap.Int("skipped", len(skipped)),
			)
		}

		for _, trade := range trades {
			result.Wallets[trade.WalletAddress] = struct{}{}
			if walletFilter == "" || trade.WalletAddress == walletFilter {
				result.Trades = append(result.Trades, trade)
			}
		}

		if len(resp.Swaps) == 0 || !resp.HasMore {
			return result, nil
		}

		if page == c.maxPages {
			c.logger.Warn("Swap feed page ceiling reached, range may be incomplete",
				zap.String("token", tokenAddress),
				zap.Int64("from_block", fromBlock),
				zap.Int64("to_block", toBlock),
				zap.Int("max_pages", c.maxPages),
			)
		}
	}

	if result.PagesFetched == 0 && result.PagesSkipped > 0 {
		return result, fmt.Errorf("no page succeeded in range [%d, %d]: %w", fromBlock, toBlock, ErrPageFailed)
	}
	return result, nil
}

// fetchPageWithRetry fetches one page with exponential backoff. Every
// attempt counts into Result.CallsMade.
func (c *Client) fetchPageWithRetry(ctx context.Context, tokenAddress string, fromBlock, toBlock int64, page int, result *Result) (*pageResponse, error) {
	var lastErr error

	for attempt := 0; attempt <= c.maxRetries; attempt++ {
		if attempt > 0 {
			delay := c.retryDelay * time.Duration(1<<(attempt-1))
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(delay):
			}
		}

		result.CallsMade++
		resp, err := c.fetchPage(ctx, tokenAddress, fromBlock, toBlock, page)
		if err == nil {
			return resp, nil
		}
		lastErr = err

		c.logger.Warn("Swap feed page fetch failed",
			zap.String("token", tokenAddress),
			zap.Int("page", page),
			zap.Int("attempt", attempt+1),
			zap.Error(err),
		)
	}

	return nil, fmt.Errorf("%w after %d attempts: %v", ErrPageFailed, c.maxRetries+1, lastErr)
}

// fetchPage performs one feed request
func (c *Client) fetchPage(ctx context.Context, tokenAddress string, fromBlock, toBlock int64, page int) (*pageResponse, error) {
	endpoint := fmt.Sprintf("%s/v1/tokens/%s/swaps", c.baseURL, tokenAddress)

	params := url.Values{}
	params.Set("from_block", strconv.FormatInt(fromBlock, 10))
	params.Set("to_block", strconv.FormatInt(toBlock, 10))
	params.Set("page", strconv.Itoa(page))
	params.Set("page_size", strconv.Itoa(c.pageSize))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if c.apiKey != "" {
		req.Header.Set("X-API-Key", c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status %d", resp.StatusCode)
	}

	var pageResp pageResponse
	if err := json.NewDecoder(resp.Body).Decode(&pageResp); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}

	return &pageResp, nil
}
