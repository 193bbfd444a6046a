package services

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tokenarena/pnl-indexer/internal/domain/entities"
	"github.com/tokenarena/pnl-indexer/internal/testutil"
)

func TestAccountingService_Recompute(t *testing.T) {
	logger := zap.NewNop()
	ctx := context.Background()

	t.Run("stores the replayed position", func(t *testing.T) {
		tradeRepo := testutil.NewMockTradeRepository()
		positionRepo := testutil.NewMockPositionRepository()

		tradeRepo.AddTrades(
			testutil.CreateTestTrade(testutil.WithTxHash("0x01"), testutil.WithBlockNumber(100),
				testutil.WithSide(entities.TradeSideBuy), testutil.WithAmounts("100", "250")),
			testutil.CreateTestTrade(testutil.WithTxHash("0x02"), testutil.WithBlockNumber(101),
				testutil.WithSide(entities.TradeSideSell), testutil.WithAmounts("40", "180")),
		)

		service := NewAccountingService(tradeRepo, positionRepo, nil, logger)

		position, err := service.Recompute(ctx, testutil.AliceAddress, testutil.ArenaTokenAddress)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		if !position.RealizedPnLUSD.Equal(decimal.RequireFromString("80")) {
			t.Errorf("expected realized 80, got %s", position.RealizedPnLUSD)
		}
		if !position.RemainingAmount.Equal(decimal.RequireFromString("60")) {
			t.Errorf("expected remaining 60, got %s", position.RemainingAmount)
		}
		if !position.CostBasisUSD.Equal(decimal.RequireFromString("150")) {
			t.Errorf("expected cost basis 150, got %s", position.CostBasisUSD)
		}
		if position.TradeCount != 2 {
			t.Errorf("expected trade count 2, got %d", position.TradeCount)
		}
		if position.LastTradeBlock != 101 {
			t.Errorf("expected last block 101, got %d", position.LastTradeBlock)
		}

		stored, _ := positionRepo.Get(ctx, testutil.AliceAddress, testutil.ArenaTokenAddress)
		if stored == nil {
			t.Fatal("expected position to be persisted")
		}
		if !stored.RealizedPnLUSD.Equal(position.RealizedPnLUSD) {
			t.Errorf("stored realized %s differs from returned %s", stored.RealizedPnLUSD, position.RealizedPnLUSD)
		}
	})

	t.Run("empty ledger stores a zero position", func(t *testing.T) {
		tradeRepo := testutil.NewMockTradeRepository()
		positionRepo := testutil.NewMockPositionRepository()

		service := NewAccountingService(tradeRepo, positionRepo, nil, logger)

		position, err := service.Recompute(ctx, testutil.AliceAddress, testutil.ArenaTokenAddress)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !position.RemainingAmount.IsZero() || !position.RealizedPnLUSD.IsZero() {
			t.Errorf("expected zero position, got %+v", position)
		}
		if position.TradeCount != 0 {
			t.Errorf("expected 0 trades, got %d", position.TradeCount)
		}
	})

	t.Run("over-sell is not an error", func(t *testing.T) {
		tradeRepo := testutil.NewMockTradeRepository()
		positionRepo := testutil.NewMockPositionRepository()

		// Sell with no inventory on record
		tradeRepo.AddTrades(
			testutil.CreateTestTrade(testutil.WithTxHash("0x01"), testutil.WithBlockNumber(100),
				testutil.WithSide(entities.TradeSideSell), testutil.WithAmounts("50", "150")),
		)

		service := NewAccountingService(tradeRepo, positionRepo, nil, logger)

		position, err := service.Recompute(ctx, testutil.AliceAddress, testutil.ArenaTokenAddress)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !position.RealizedPnLUSD.Equal(decimal.RequireFromString("150")) {
			t.Errorf("expected full proceeds 150 realized, got %s", position.RealizedPnLUSD)
		}
		if !position.RemainingAmount.IsZero() {
			t.Errorf("expected no remaining inventory, got %s", position.RemainingAmount)
		}
	})

	t.Run("recompute replaces a stale position wholesale", func(t *testing.T) {
		tradeRepo := testutil.NewMockTradeRepository()
		positionRepo := testutil.NewMockPositionRepository()

		// Stale state from an earlier, partial view of the ledger
		positionRepo.AddPosition(testutil.CreateTestPosition(testutil.PositionWithRealizedPnL("9999")))

		tradeRepo.AddTrades(
			testutil.CreateTestTrade(testutil.WithTxHash("0x01"), testutil.WithBlockNumber(100),
				testutil.WithSide(entities.TradeSideBuy), testutil.WithAmounts("10", "20")),
		)

		service := NewAccountingService(tradeRepo, positionRepo, nil, logger)

		if _, err := service.Recompute(ctx, testutil.AliceAddress, testutil.ArenaTokenAddress); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		stored, _ := positionRepo.Get(ctx, testutil.AliceAddress, testutil.ArenaTokenAddress)
		if !stored.RealizedPnLUSD.IsZero() {
			t.Errorf("expected stale realized PnL replaced with 0, got %s", stored.RealizedPnLUSD)
		}
		if !stored.RemainingAmount.Equal(decimal.RequireFromString("10")) {
			t.Errorf("expected remaining 10, got %s", stored.RemainingAmount)
		}
	})

	t.Run("propagates trade load failures", func(t *testing.T) {
		tradeRepo := testutil.NewMockTradeRepository()
		positionRepo := testutil.NewMockPositionRepository()
		tradeRepo.ListForReplayFunc = func(ctx context.Context, walletAddress, tokenAddress string) ([]entities.Trade, error) {
			return nil, errors.New("database error")
		}

		service := NewAccountingService(tradeRepo, positionRepo, nil, logger)

		if _, err := service.Recompute(ctx, testutil.AliceAddress, testutil.ArenaTokenAddress); err == nil {
			t.Fatal("expected error, got nil")
		}
	})

	t.Run("propagates position store failures", func(t *testing.T) {
		tradeRepo := testutil.NewMockTradeRepository()
		positionRepo := testutil.NewMockPositionRepository()
		positionRepo.UpsertFunc = func(ctx context.Context, position *entities.Position) error {
			return errors.New("database error")
		}

		service := NewAccountingService(tradeRepo, positionRepo, nil, logger)

		if _, err := service.Recompute(ctx, testutil.AliceAddress, testutil.ArenaTokenAddress); err == nil {
			t.Fatal("expected error, got nil")
		}
	})

	t.Run("lowercases addresses before replay", func(t *testing.T) {
		tradeRepo := testutil.NewMockTradeRepository()
		positionRepo := testutil.NewMockPositionRepository()

		var capturedWallet, capturedToken string
		tradeRepo.ListForReplayFunc = func(ctx context.Context, walletAddress, tokenAddress string) ([]entities.Trade, error) {
			capturedWallet = walletAddress
			capturedToken = tokenAddress
			return nil, nil
		}

		service := NewAccountingService(tradeRepo, positionRepo, nil, logger)

		if _, err := service.Recompute(ctx, "0xAAAA1111AAAA1111AAAA1111AAAA1111AAAA1111", "0xBBBB2222BBBB2222BBBB2222BBBB2222BBBB2222"); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if capturedWallet != "0xaaaa1111aaaa1111aaaa1111aaaa1111aaaa1111" {
			t.Errorf("expected lowercased wallet, got %s", capturedWallet)
		}
		if capturedToken != "0xbbbb2222bbbb2222bbbb2222bbbb2222bbbb2222" {
			t.Errorf("expected lowercased token, got %s", capturedToken)
		}
	})

	t.Run("concurrent recomputes for one pair share a single replay", func(t *testing.T) {
		tradeRepo := testutil.NewMockTradeRepository()
		positionRepo := testutil.NewMockPositionRepository()

		var calls atomic.Int64
		started := make(chan struct{})
		release := make(chan struct{})
		tradeRepo.ListForReplayFunc = func(ctx context.Context, walletAddress, tokenAddress string) ([]entities.Trade, error) {
			if calls.Add(1) == 1 {
				close(started)
			}
			<-release
			return []entities.Trade{
				testutil.CreateTestTrade(testutil.WithAmounts("100", "250")),
			}, nil
		}

		service := NewAccountingService(tradeRepo, positionRepo, nil, logger)

		var wg sync.WaitGroup
		results := make([]*entities.Position, 5)
		errs := make([]error, 5)

		wg.Add(1)
		go func() {
			defer wg.Done()
			results[0], errs[0] = service.Recompute(ctx, testutil.AliceAddress, testutil.ArenaTokenAddress)
		}()

		// Wait for the leader to be mid-replay, then pile on joiners
		<-started
		for i := 1; i < 5; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				results[i], errs[i] = service.Recompute(ctx, testutil.AliceAddress, testutil.ArenaTokenAddress)
			}(i)
		}
		time.Sleep(50 * time.Millisecond)
		close(release)
		wg.Wait()

		if got := calls.Load(); got != 1 {
			t.Errorf("expected 1 replay, got %d", got)
		}
		for i := range results {
			if errs[i] != nil {
				t.Fatalf("call %d: unexpected error: %v", i, errs[i])
			}
			if results[i] == nil || !results[i].RemainingAmount.Equal(decimal.RequireFromString("100")) {
				t.Errorf("call %d: unexpected position %+v", i, results[i])
			}
		}
	})
}

func TestAccountingService_CurrentPnL(t *testing.T) {
	logger := zap.NewNop()
	ctx := context.Background()

	t.Run("adds unrealized at the latest trade price", func(t *testing.T) {
		tradeRepo := testutil.NewMockTradeRepository()
		positionRepo := testutil.NewMockPositionRepository()

		// Latest trade price for the token is 4
		tradeRepo.AddTrades(
			testutil.CreateTestTrade(testutil.WithTxHash("0x01"), testutil.WithBlockNumber(100), testutil.WithAmounts("10", "25")),
			testutil.CreateTestTrade(testutil.WithTxHash("0x02"), testutil.WithBlockNumber(200), testutil.WithAmounts("10", "40"), testutil.WithWallet(testutil.BobAddress)),
		)

		service := NewAccountingService(tradeRepo, positionRepo, nil, logger)

		position := testutil.CreateTestPosition()
		position.RemainingAmount = decimal.RequireFromString("60")
		position.CostBasisUSD = decimal.RequireFromString("150")
		position.RealizedPnLUSD = decimal.RequireFromString("80")

		pnl, err := service.CurrentPnL(ctx, position)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		// 80 realized + (60*4 - 150) unrealized
		if !pnl.Equal(decimal.RequireFromString("170")) {
			t.Errorf("expected 170, got %s", pnl)
		}
	})

	t.Run("falls back to realized when no price exists", func(t *testing.T) {
		tradeRepo := testutil.NewMockTradeRepository()
		positionRepo := testutil.NewMockPositionRepository()

		service := NewAccountingService(tradeRepo, positionRepo, nil, logger)

		position := testutil.CreateTestPosition(testutil.PositionWithRealizedPnL("42"))

		pnl, err := service.CurrentPnL(ctx, position)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !pnl.Equal(decimal.RequireFromString("42")) {
			t.Errorf("expected realized-only 42, got %s", pnl)
		}
	})

	t.Run("propagates price lookup failures", func(t *testing.T) {
		tradeRepo := testutil.NewMockTradeRepository()
		positionRepo := testutil.NewMockPositionRepository()
		tradeRepo.GetLatestPriceFunc = func(ctx context.Context, tokenAddress string) (decimal.Decimal, error) {
			return decimal.Zero, errors.New("database error")
		}

		service := NewAccountingService(tradeRepo, positionRepo, nil, logger)

		if _, err := service.CurrentPnL(ctx, testutil.CreateTestPosition()); err == nil {
			t.Fatal("expected error, got nil")
		}
	})
}
