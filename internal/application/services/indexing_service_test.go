package services

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/tokenarena/pnl-indexer/internal/config"
	"github.com/tokenarena/pnl-indexer/internal/domain/entities"
	"github.com/tokenarena/pnl-indexer/internal/infrastructure/swapfeed"
	"github.com/tokenarena/pnl-indexer/internal/testutil"
)

type fetchCall struct {
	token     string
	fromBlock int64
	toBlock   int64
	wallet    string
}

// fakeSwapFetcher stands in for the swap feed client. Without a hook it
// answers one page containing the configured trades.
type fakeSwapFetcher struct {
	mu             sync.Mutex
	calls          []fetchCall
	trades         []entities.Trade
	FetchRangeFunc func(ctx context.Context, tokenAddress string, fromBlock, toBlock int64, walletFilter string) (*swapfeed.Result, error)
}

func (f *fakeSwapFetcher) FetchRange(ctx context.Context, tokenAddress string, fromBlock, toBlock int64, walletFilter string) (*swapfeed.Result, error) {
	f.mu.Lock()
	f.calls = append(f.calls, fetchCall{token: tokenAddress, fromBlock: fromBlock, toBlock: toBlock, wallet: walletFilter})
	fn := f.FetchRangeFunc
	trades := f.trades
	f.mu.Unlock()

	if fn != nil {
		return fn(ctx, tokenAddress, fromBlock, toBlock, walletFilter)
	}

	wallets := make(map[string]struct{})
	for _, trade := range trades {
		wallets[trade.WalletAddress] = struct{}{}
	}
	return &swapfeed.Result{
		Trades:       trades,
		Wallets:      wallets,
		PagesFetched: 1,
		CallsMade:    1,
		SwapsSeen:    len(trades),
	}, nil
}

func (f *fakeSwapFetcher) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

func (f *fakeSwapFetcher) call(i int) fetchCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[i]
}

type fakeChainHead struct {
	mu   sync.Mutex
	head int64
	err  error
}

func (f *fakeChainHead) BlockNumber(ctx context.Context) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return 0, f.err
	}
	return f.head, nil
}

func (f *fakeChainHead) setHead(head int64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.head = head
}

type indexingFixture struct {
	service          *IndexingService
	feed             *fakeSwapFetcher
	chain            *fakeChainHead
	tradeRepo        *testutil.MockTradeRepository
	positionRepo     *testutil.MockPositionRepository
	tokenRepo        *testutil.MockTokenRepository
	walletRepo       *testutil.MockWalletRepository
	registrationRepo *testutil.MockRegistrationRepository
	tracker          *JobTracker
}

func indexerTestConfig() config.IndexerConfig {
	return config.IndexerConfig{
		WorkerCount:     2,
		QueueSize:       8,
		JobTimeout:      2 * time.Second,
		TrackerCapacity: 16,
	}
}

// setupIndexingTest builds a service whose token repo already tracks the
// arena token from genesis block 100, against a chain head of 200.
func setupIndexingTest(cfg config.IndexerConfig) *indexingFixture {
	f := &indexingFixture{
		feed:             &fakeSwapFetcher{},
		chain:            &fakeChainHead{head: 200},
		tradeRepo:        testutil.NewMockTradeRepository(),
		positionRepo:     testutil.NewMockPositionRepository(),
		tokenRepo:        testutil.NewMockTokenRepository(),
		walletRepo:       testutil.NewMockWalletRepository(),
		registrationRepo: testutil.NewMockRegistrationRepository(),
		tracker:          NewJobTracker(cfg.TrackerCapacity),
	}

	logger := zap.NewNop()
	accounting := NewAccountingService(f.tradeRepo, f.positionRepo, nil, logger)
	f.service = NewIndexingService(
		f.feed,
		f.chain,
		accounting,
		f.tokenRepo,
		f.tradeRepo,
		f.walletRepo,
		f.registrationRepo,
		f.tracker,
		nil,
		cfg,
		logger,
	)

	f.tokenRepo.AddToken(testutil.CreateTestToken(
		testutil.TokenWithAddress(testutil.ArenaTokenAddress),
		testutil.TokenWithGenesisBlock(100),
	))

	return f
}

func waitForJob(t *testing.T, tracker *JobTracker, id string) Job {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if job, ok := tracker.Get(id); ok && job.Finished() {
			return *job
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("job %s did not finish in time", id)
	return Job{}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func arenaTrades() []entities.Trade {
	return []entities.Trade{
		testutil.CreateTestTrade(
			testutil.WithBlockNumber(150),
			testutil.WithTxHash("0x0000000000000000000000000000000000000000000000000000000000000001"),
		),
		testutil.CreateTestTrade(
			testutil.WithSide(entities.TradeSideSell),
			testutil.WithAmounts("40", "180"),
			testutil.WithBlockNumber(160),
			testutil.WithTxHash("0x0000000000000000000000000000000000000000000000000000000000000002"),
		),
	}
}

func TestIndexingService_Trigger(t *testing.T) {
	t.Run("rejects a request without addresses", func(t *testing.T) {
		fx := setupIndexingTest(indexerTestConfig())

		_, err := fx.service.Trigger(context.Background(), IndexRequest{TokenAddress: testutil.ArenaTokenAddress})
		if err == nil {
			t.Fatal("expected error for missing wallet address")
		}
	})

	t.Run("runs a job end to end", func(t *testing.T) {
		fx := setupIndexingTest(indexerTestConfig())
		fx.feed.trades = arenaTrades()

		fx.service.Start(context.Background())
		defer fx.service.Stop()

		ack, err := fx.service.Trigger(context.Background(), IndexRequest{
			WalletAddress: testutil.AliceAddress,
			TokenAddress:  testutil.ArenaTokenAddress,
			ContestID:     42,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if ack.Joined {
			t.Error("expected a fresh job, not a join")
		}

		job := waitForJob(t, fx.tracker, ack.JobID)
		if job.Status != JobStatusCompleted {
			t.Fatalf("expected completed job, got %s (%s)", job.Status, job.Error)
		}
		if job.PagesFetched != 1 || job.SwapsSeen != 2 || job.TradesInserted != 2 {
			t.Errorf("unexpected job counters: pages=%d swaps=%d inserted=%d",
				job.PagesFetched, job.SwapsSeen, job.TradesInserted)
		}

		call := fx.feed.call(0)
		if call.fromBlock != 100 || call.toBlock != 200 {
			t.Errorf("expected fetch range 100-200, got %d-%d", call.fromBlock, call.toBlock)
		}
		if call.wallet != testutil.AliceAddress {
			t.Errorf("expected wallet filter %s, got %s", testutil.AliceAddress, call.wallet)
		}

		position, err := fx.positionRepo.Get(context.Background(), testutil.AliceAddress, testutil.ArenaTokenAddress)
		if err != nil || position == nil {
			t.Fatalf("expected a stored position, got %v (err %v)", position, err)
		}
		if !position.RemainingAmount.Equal(decimal.RequireFromString("60")) {
			t.Errorf("expected remaining 60, got %s", position.RemainingAmount)
		}
		if !position.RealizedPnLUSD.Equal(decimal.RequireFromString("80")) {
			t.Errorf("expected realized 80, got %s", position.RealizedPnLUSD)
		}

		wallet, _ := fx.walletRepo.Get(context.Background(), testutil.AliceAddress)
		if wallet == nil || wallet.LastSyncedBlock != 200 {
			t.Fatalf("expected watermark 200, got %+v", wallet)
		}

		registration, _ := fx.registrationRepo.GetByKey(context.Background(), 42, testutil.AliceAddress, testutil.ArenaTokenAddress)
		if registration == nil {
			t.Fatal("expected a contest registration to be created")
		}
		if registration.Status != entities.RegistrationStatusIndexed {
			t.Errorf("expected INDEXED registration, got %s", registration.Status)
		}
		// realized 80 plus (60 remaining at mark 4.5 minus basis 150)
		if !registration.CurrentPnL.Valid || !registration.CurrentPnL.Decimal.Equal(decimal.RequireFromString("200")) {
			t.Errorf("expected pnl 200, got %+v", registration.CurrentPnL)
		}
		if registration.IndexedAt == nil {
			t.Error("expected indexed_at to be set")
		}
	})

	t.Run("joins an in-flight job for the same pair", func(t *testing.T) {
		fx := setupIndexingTest(indexerTestConfig())

		release := make(chan struct{})
		var once sync.Once
		releaseFeed := func() { once.Do(func() { close(release) }) }
		defer releaseFeed()

		fx.feed.FetchRangeFunc = func(ctx context.Context, _ string, _, _ int64, _ string) (*swapfeed.Result, error) {
			<-release
			return &swapfeed.Result{Wallets: map[string]struct{}{}, PagesFetched: 1}, nil
		}

		fx.service.Start(context.Background())
		defer fx.service.Stop()

		first, err := fx.service.Trigger(context.Background(), IndexRequest{
			WalletAddress: testutil.AliceAddress,
			TokenAddress:  testutil.ArenaTokenAddress,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		waitFor(t, "the first job to reach the feed", func() bool { return fx.feed.callCount() == 1 })

		second, err := fx.service.Trigger(context.Background(), IndexRequest{
			WalletAddress: testutil.AliceAddress,
			TokenAddress:  testutil.ArenaTokenAddress,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if !second.Joined {
			t.Error("expected the second trigger to join the in-flight job")
		}
		if second.JobID != first.JobID {
			t.Errorf("expected job id %s, got %s", first.JobID, second.JobID)
		}
		if second.Status != JobStatusRunning {
			t.Errorf("expected running status, got %s", second.Status)
		}

		releaseFeed()
		waitForJob(t, fx.tracker, first.JobID)

		if fx.feed.callCount() != 1 {
			t.Errorf("expected a single ingestion run, got %d", fx.feed.callCount())
		}

		// After completion the pair is free again.
		third, err := fx.service.Trigger(context.Background(), IndexRequest{
			WalletAddress: testutil.AliceAddress,
			TokenAddress:  testutil.ArenaTokenAddress,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if third.Joined || third.JobID == first.JobID {
			t.Error("expected a fresh job after the first completed")
		}
		waitForJob(t, fx.tracker, third.JobID)
	})

	t.Run("rejects triggers when the queue is full", func(t *testing.T) {
		cfg := indexerTestConfig()
		cfg.QueueSize = 1
		fx := setupIndexingTest(cfg)
		// No Start: nothing drains the queue.

		if _, err := fx.service.Trigger(context.Background(), IndexRequest{
			WalletAddress: testutil.AliceAddress,
			TokenAddress:  testutil.ArenaTokenAddress,
		}); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		_, err := fx.service.Trigger(context.Background(), IndexRequest{
			WalletAddress: testutil.BobAddress,
			TokenAddress:  testutil.ArenaTokenAddress,
		})
		if !errors.Is(err, ErrQueueFull) {
			t.Fatalf("expected ErrQueueFull, got %v", err)
		}

		if got := fx.tracker.Stats().Tracked; got != 1 {
			t.Errorf("expected the rejected trigger to register no job, tracked %d", got)
		}
	})
}

func TestIndexingService_JobFailure(t *testing.T) {
	t.Run("feed failure before the deadline leaves the registration indexing", func(t *testing.T) {
		fx := setupIndexingTest(indexerTestConfig())
		fx.registrationRepo.AddRegistration(testutil.CreateTestRegistration(testutil.RegistrationWithID(7)))
		fx.feed.FetchRangeFunc = func(ctx context.Context, _ string, _, _ int64, _ string) (*swapfeed.Result, error) {
			return nil, errors.New("feed exploded")
		}

		fx.service.Start(context.Background())
		defer fx.service.Stop()

		ack, err := fx.service.Trigger(context.Background(), IndexRequest{
			WalletAddress:  testutil.AliceAddress,
			TokenAddress:   testutil.ArenaTokenAddress,
			RegistrationID: 7,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		job := waitForJob(t, fx.tracker, ack.JobID)
		if job.Status != JobStatusFailed {
			t.Fatalf("expected failed job, got %s", job.Status)
		}
		if !strings.Contains(job.Error, "feed exploded") {
			t.Errorf("unexpected job error: %s", job.Error)
		}

		registration, _ := fx.registrationRepo.GetByID(context.Background(), 7)
		if registration.Status != entities.RegistrationStatusIndexing {
			t.Errorf("expected the registration to stay INDEXING, got %s", registration.Status)
		}
	})

	t.Run("deadline exceeded marks the registration failed", func(t *testing.T) {
		cfg := indexerTestConfig()
		cfg.JobTimeout = 50 * time.Millisecond
		fx := setupIndexingTest(cfg)
		fx.registrationRepo.AddRegistration(testutil.CreateTestRegistration(testutil.RegistrationWithID(7)))
		fx.feed.FetchRangeFunc = func(ctx context.Context, _ string, _, _ int64, _ string) (*swapfeed.Result, error) {
			<-ctx.Done()
			return nil, ctx.Err()
		}

		fx.service.Start(context.Background())
		defer fx.service.Stop()

		ack, err := fx.service.Trigger(context.Background(), IndexRequest{
			WalletAddress:  testutil.AliceAddress,
			TokenAddress:   testutil.ArenaTokenAddress,
			RegistrationID: 7,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		job := waitForJob(t, fx.tracker, ack.JobID)
		if job.Status != JobStatusFailed {
			t.Fatalf("expected failed job, got %s", job.Status)
		}
		if !strings.Contains(job.Error, "deadline exceeded") {
			t.Errorf("expected a timeout error, got %s", job.Error)
		}

		registration, _ := fx.registrationRepo.GetByID(context.Background(), 7)
		if registration.Status != entities.RegistrationStatusFailed {
			t.Errorf("expected FAILED registration, got %s", registration.Status)
		}
	})

	t.Run("unknown token fails the job", func(t *testing.T) {
		fx := setupIndexingTest(indexerTestConfig())

		fx.service.Start(context.Background())
		defer fx.service.Stop()

		ack, err := fx.service.Trigger(context.Background(), IndexRequest{
			WalletAddress: testutil.AliceAddress,
			TokenAddress:  testutil.PepeTokenAddress,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		job := waitForJob(t, fx.tracker, ack.JobID)
		if job.Status != JobStatusFailed {
			t.Fatalf("expected failed job, got %s", job.Status)
		}
		if !strings.Contains(job.Error, "not tracked") {
			t.Errorf("unexpected job error: %s", job.Error)
		}
		if fx.feed.callCount() != 0 {
			t.Errorf("expected no feed calls for an untracked token, got %d", fx.feed.callCount())
		}
	})

	t.Run("chain head failure fails the job", func(t *testing.T) {
		fx := setupIndexingTest(indexerTestConfig())
		fx.chain.err = errors.New("rpc dial refused")

		fx.service.Start(context.Background())
		defer fx.service.Stop()

		ack, err := fx.service.Trigger(context.Background(), IndexRequest{
			WalletAddress: testutil.AliceAddress,
			TokenAddress:  testutil.ArenaTokenAddress,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		job := waitForJob(t, fx.tracker, ack.JobID)
		if job.Status != JobStatusFailed {
			t.Fatalf("expected failed job, got %s", job.Status)
		}
		if !strings.Contains(job.Error, "failed to resolve chain head") {
			t.Errorf("unexpected job error: %s", job.Error)
		}
	})
}

func TestIndexingService_Watermark(t *testing.T) {
	t.Run("resumes from the wallet watermark", func(t *testing.T) {
		fx := setupIndexingTest(indexerTestConfig())
		fx.walletRepo.AddWallet(&entities.Wallet{Address: testutil.AliceAddress, LastSyncedBlock: 150})

		fx.service.Start(context.Background())
		defer fx.service.Stop()

		ack, err := fx.service.Trigger(context.Background(), IndexRequest{
			WalletAddress: testutil.AliceAddress,
			TokenAddress:  testutil.ArenaTokenAddress,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		waitForJob(t, fx.tracker, ack.JobID)

		call := fx.feed.call(0)
		if call.fromBlock != 151 || call.toBlock != 200 {
			t.Errorf("expected fetch range 151-200, got %d-%d", call.fromBlock, call.toBlock)
		}
	})

	t.Run("skips ingestion when the watermark is at the head", func(t *testing.T) {
		fx := setupIndexingTest(indexerTestConfig())
		fx.walletRepo.AddWallet(&entities.Wallet{Address: testutil.AliceAddress, LastSyncedBlock: 200})
		fx.tradeRepo.AddTrades(testutil.CreateTestTrade())

		fx.service.Start(context.Background())
		defer fx.service.Stop()

		ack, err := fx.service.Trigger(context.Background(), IndexRequest{
			WalletAddress: testutil.AliceAddress,
			TokenAddress:  testutil.ArenaTokenAddress,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		job := waitForJob(t, fx.tracker, ack.JobID)
		if job.Status != JobStatusCompleted {
			t.Fatalf("expected completed job, got %s (%s)", job.Status, job.Error)
		}
		if fx.feed.callCount() != 0 {
			t.Errorf("expected no feed calls, got %d", fx.feed.callCount())
		}

		// The replay still ran against the existing ledger.
		position, _ := fx.positionRepo.Get(context.Background(), testutil.AliceAddress, testutil.ArenaTokenAddress)
		if position == nil {
			t.Fatal("expected the position to be recomputed")
		}
		if !position.RemainingAmount.Equal(decimal.RequireFromString("100")) {
			t.Errorf("expected remaining 100, got %s", position.RemainingAmount)
		}

		wallet, _ := fx.walletRepo.Get(context.Background(), testutil.AliceAddress)
		if wallet.LastSyncedBlock != 200 {
			t.Errorf("expected the watermark to hold at 200, got %d", wallet.LastSyncedBlock)
		}
	})

	t.Run("re-triggering after completion deduplicates trades", func(t *testing.T) {
		fx := setupIndexingTest(indexerTestConfig())
		fx.feed.trades = arenaTrades()

		fx.service.Start(context.Background())
		defer fx.service.Stop()

		first, err := fx.service.Trigger(context.Background(), IndexRequest{
			WalletAddress: testutil.AliceAddress,
			TokenAddress:  testutil.ArenaTokenAddress,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		waitForJob(t, fx.tracker, first.JobID)

		// New blocks arrive, the feed replays the same swaps.
		fx.chain.setHead(300)

		second, err := fx.service.Trigger(context.Background(), IndexRequest{
			WalletAddress: testutil.AliceAddress,
			TokenAddress:  testutil.ArenaTokenAddress,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		job := waitForJob(t, fx.tracker, second.JobID)

		if job.TradesInserted != 0 {
			t.Errorf("expected 0 inserted on replayed range, got %d", job.TradesInserted)
		}

		count, _ := fx.tradeRepo.GetCount(context.Background(), entities.TradeFilter{})
		if count != 2 {
			t.Errorf("expected 2 trades in the ledger, got %d", count)
		}

		call := fx.feed.call(1)
		if call.fromBlock != 201 || call.toBlock != 300 {
			t.Errorf("expected second fetch range 201-300, got %d-%d", call.fromBlock, call.toBlock)
		}
	})
}

func TestIndexingService_RegistrationResolution(t *testing.T) {
	t.Run("reuses an existing contest registration", func(t *testing.T) {
		fx := setupIndexingTest(indexerTestConfig())
		fx.registrationRepo.AddRegistration(testutil.CreateTestRegistration(testutil.RegistrationWithID(9)))

		fx.service.Start(context.Background())
		defer fx.service.Stop()

		ack, err := fx.service.Trigger(context.Background(), IndexRequest{
			WalletAddress: testutil.AliceAddress,
			TokenAddress:  testutil.ArenaTokenAddress,
			ContestID:     42,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		waitForJob(t, fx.tracker, ack.JobID)

		registrations, _ := fx.registrationRepo.GetByContest(context.Background(), 42, 10, 0)
		if len(registrations) != 1 {
			t.Fatalf("expected a single registration, got %d", len(registrations))
		}
		if registrations[0].ID != 9 {
			t.Errorf("expected registration 9 to be reused, got %d", registrations[0].ID)
		}
		if registrations[0].Status != entities.RegistrationStatusIndexed {
			t.Errorf("expected INDEXED, got %s", registrations[0].Status)
		}
	})

	t.Run("manual trigger does no registration bookkeeping", func(t *testing.T) {
		fx := setupIndexingTest(indexerTestConfig())

		fx.service.Start(context.Background())
		defer fx.service.Stop()

		ack, err := fx.service.Trigger(context.Background(), IndexRequest{
			WalletAddress: testutil.AliceAddress,
			TokenAddress:  testutil.ArenaTokenAddress,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		job := waitForJob(t, fx.tracker, ack.JobID)
		if job.Status != JobStatusCompleted {
			t.Fatalf("expected completed job, got %s (%s)", job.Status, job.Error)
		}

		if calls := len(fx.registrationRepo.Calls); calls != 0 {
			t.Errorf("expected no registration repository calls, got %d", calls)
		}
	})

	t.Run("unknown registration id indexes without bookkeeping", func(t *testing.T) {
		fx := setupIndexingTest(indexerTestConfig())

		fx.service.Start(context.Background())
		defer fx.service.Stop()

		ack, err := fx.service.Trigger(context.Background(), IndexRequest{
			WalletAddress:  testutil.AliceAddress,
			TokenAddress:   testutil.ArenaTokenAddress,
			RegistrationID: 99,
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}

		job := waitForJob(t, fx.tracker, ack.JobID)
		if job.Status != JobStatusCompleted {
			t.Fatalf("expected completed job, got %s (%s)", job.Status, job.Error)
		}
	})
}
