package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/tokenarena/pnl-indexer/internal/config"
	"github.com/tokenarena/pnl-indexer/internal/domain/entities"
	"github.com/tokenarena/pnl-indexer/internal/domain/repositories"
	"github.com/tokenarena/pnl-indexer/internal/infrastructure/cache"
	"github.com/tokenarena/pnl-indexer/internal/infrastructure/gateway"
	"github.com/tokenarena/pnl-indexer/internal/infrastructure/swapfeed"
)

const (
	headRetries    = 3
	headRetryDelay = 2 * time.Second
)

// SwapFetcher pulls normalized trades from the upstream swap feed.
// Satisfied by swapfeed.Client.
type SwapFetcher interface {
	FetchRange(ctx context.Context, tokenAddress string, fromBlock, toBlock int64, walletFilter string) (*swapfeed.Result, error)
}

// ChainHead reports the current chain head. Satisfied by gateway.ProviderPool.
type ChainHead interface {
	BlockNumber(ctx context.Context) (int64, error)
}

// IndexRequest is one trigger to index a (wallet, token) pair. ContestID and
// RegistrationID tie the run to a contest entry; both zero means a manual
// re-sync with no registration bookkeeping.
type IndexRequest struct {
	WalletAddress  string `json:"wallet_address"`
	TokenAddress   string `json:"token_address"`
	ContestID      int64  `json:"contest_id,omitempty"`
	RegistrationID int64  `json:"registration_id,omitempty"`
}

// IndexAck is the immediate answer to a trigger. Joined means an in-flight
// job for the same pair absorbed this trigger instead of running again.
type IndexAck struct {
	JobID  string    `json:"job_id"`
	Status JobStatus `json:"status"`
	Joined bool      `json:"joined,omitempty"`
}

// queuedJob is the unit handed from Trigger to the worker pool
type queuedJob struct {
	id             string
	wallet         string
	token          string
	contestID      int64
	registrationID int64
}

type jobStats struct {
	pagesFetched int
	swapsSeen    int
	inserted     int64
}

// IndexingService orchestrates wallet indexing jobs: it single-flights
// triggers per (wallet, token) pair, queues them onto a bounded worker pool,
// and drives each job through ingest, replay, watermark and registration
// bookkeeping.
type IndexingService struct {
	feed             SwapFetcher
	chain            ChainHead
	accounting       *AccountingService
	tokenRepo        repositories.TokenRepository
	tradeRepo        repositories.TradeRepository
	walletRepo       repositories.WalletRepository
	registrationRepo repositories.RegistrationRepository
	tracker          *JobTracker
	cache            *cache.RedisCache
	config           config.IndexerConfig
	logger           *zap.Logger

	mu       sync.Mutex
	inflight map[string]string
	jobCh    chan queuedJob

	stopCh chan struct{}
	wg     sync.WaitGroup
}

// NewIndexingService creates a new indexing orchestrator
func NewIndexingService(
	feed SwapFetcher,
	chain ChainHead,
	accounting *AccountingService,
	tokenRepo repositories.TokenRepository,
	tradeRepo repositories.TradeRepository,
	walletRepo repositories.WalletRepository,
	registrationRepo repositories.RegistrationRepository,
	tracker *JobTracker,
	cache *cache.RedisCache,
	cfg config.IndexerConfig,
	logger *zap.Logger,
) *IndexingService {
	if cfg.WorkerCount <= 0 {
		cfg.WorkerCount = 1
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 64
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 5 * time.Minute
	}

	return &IndexingService{
		feed:             feed,
		chain:            chain,
		accounting:       accounting,
		tokenRepo:        tokenRepo,
		tradeRepo:        tradeRepo,
		walletRepo:       walletRepo,
		registrationRepo: registrationRepo,
		tracker:          tracker,
		cache:            cache,
		config:           cfg,
		logger:           logger,
		inflight:         make(map[string]string),
		jobCh:            make(chan queuedJob, cfg.QueueSize),
		stopCh:           make(chan struct{}),
	}
}

// Start launches the worker pool
func (s *IndexingService) Start(ctx context.Context) {
	s.logger.Info("Starting indexing workers",
		zap.Int("worker_count", s.config.WorkerCount),
		zap.Int("queue_size", s.config.QueueSize),
		zap.Duration("job_timeout", s.config.JobTimeout),
	)

	s.wg.Add(1)
	go s.dispatch(ctx)
}

// Stop drains the pool: queued jobs stay queued, running jobs finish
func (s *IndexingService) Stop() {
	s.logger.Info("Stopping indexing workers")
	close(s.stopCh)
	s.wg.Wait()
}

// Trigger begins an indexing job for a (wallet, token) pair, or joins the
// in-flight one. The caller gets an immediate acknowledgment; completion is
// observed by polling the job or the registration status. A full queue
// rejects the trigger with ErrQueueFull and registers nothing.
func (s *IndexingService) Trigger(ctx context.Context, req IndexRequest) (*IndexAck, error) {
	wallet := strings.ToLower(strings.TrimSpace(req.WalletAddress))
	token := strings.ToLower(strings.TrimSpace(req.TokenAddress))
	if wallet == "" || token == "" {
		return nil, fmt.Errorf("wallet and token addresses are required")
	}

	registrationID, err := s.resolveRegistration(ctx, req.ContestID, req.RegistrationID, wallet, token)
	if err != nil {
		return nil, err
	}

	key := jobKey(wallet, token)

	s.mu.Lock()
	if id, ok := s.inflight[key]; ok {
		s.mu.Unlock()
		jobsJoined.Inc()

		status := JobStatusQueued
		if existing, ok := s.tracker.Get(id); ok {
			status = existing.Status
		}
		s.logger.Debug("Joined in-flight indexing job",
			zap.String("job_id", id),
			zap.String("wallet", wallet),
			zap.String("token", token))
		return &IndexAck{JobID: id, Status: status, Joined: true}, nil
	}

	job := NewJob(wallet, token, req.ContestID, registrationID)
	s.tracker.Add(job)

	select {
	case s.jobCh <- queuedJob{
		id:             job.ID,
		wallet:         wallet,
		token:          token,
		contestID:      req.ContestID,
		registrationID: registrationID,
	}:
		s.inflight[key] = job.ID
		s.mu.Unlock()
	default:
		s.tracker.Remove(job.ID)
		s.mu.Unlock()
		jobsRejected.Inc()
		s.logger.Warn("Rejected indexing trigger, queue full",
			zap.String("wallet", wallet),
			zap.String("token", token))
		return nil, ErrQueueFull
	}

	jobsSubmitted.Inc()
	queueDepth.Set(float64(len(s.jobCh)))

	s.logger.Info("Queued indexing job",
		zap.String("job_id", job.ID),
		zap.String("wallet", wallet),
		zap.String("token", token),
		zap.Int64("contest_id", req.ContestID),
		zap.Int64("registration_id", registrationID))

	return &IndexAck{JobID: job.ID, Status: JobStatusQueued}, nil
}

// resolveRegistration maps a trigger to its registration row. An explicit
// registration id wins; otherwise a contest trigger finds or creates the
// (contest, wallet, token) row so the entry exists before indexing starts.
func (s *IndexingService) resolveRegistration(ctx context.Context, contestID, registrationID int64, wallet, token string) (int64, error) {
	if registrationID > 0 {
		return registrationID, nil
	}
	if contestID <= 0 {
		return 0, nil
	}

	existing, err := s.registrationRepo.GetByKey(ctx, contestID, wallet, token)
	if err != nil {
		return 0, fmt.Errorf("failed to resolve registration: %w", err)
	}
	if existing != nil {
		return existing.ID, nil
	}

	registration := &entities.Registration{
		ContestID:     contestID,
		WalletAddress: wallet,
		TokenAddress:  token,
		Status:        entities.RegistrationStatusPending,
	}
	if err := s.registrationRepo.Create(ctx, registration); err != nil {
		// A concurrent trigger may have won the insert on the unique
		// (contest, wallet, token) key; read its row back.
		if lost, getErr := s.registrationRepo.GetByKey(ctx, contestID, wallet, token); getErr == nil && lost != nil {
			return lost.ID, nil
		}
		return 0, fmt.Errorf("failed to create registration: %w", err)
	}

	s.logger.Info("Created contest registration",
		zap.Int64("registration_id", registration.ID),
		zap.Int64("contest_id", contestID),
		zap.String("wallet", wallet),
		zap.String("token", token))

	return registration.ID, nil
}

// dispatch feeds queued jobs to an errgroup bounded at WorkerCount
func (s *IndexingService) dispatch(ctx context.Context) {
	defer s.wg.Done()

	g := new(errgroup.Group)
	g.SetLimit(s.config.WorkerCount)
	defer g.Wait()

	for {
		select {
		case <-ctx.Done():
			return
		case <-s.stopCh:
			return
		case job := <-s.jobCh:
			g.Go(func() error {
				s.runJob(ctx, job)
				return nil
			})
		}
	}
}

func (s *IndexingService) runJob(ctx context.Context, qj queuedJob) {
	defer func() {
		s.mu.Lock()
		delete(s.inflight, jobKey(qj.wallet, qj.token))
		s.mu.Unlock()
		queueDepth.Set(float64(len(s.jobCh)))
	}()

	jobCtx, cancel := context.WithTimeout(ctx, s.config.JobTimeout)
	defer cancel()

	s.tracker.MarkRunning(qj.id)
	start := time.Now()

	stats, err := s.execute(jobCtx, qj)
	jobDuration.Observe(time.Since(start).Seconds())

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || jobCtx.Err() == context.DeadlineExceeded {
			err = fmt.Errorf("%w: %v", ErrJobTimeout, err)
			s.markRegistrationFailed(qj.registrationID)
		}
		s.tracker.MarkFailed(qj.id, err)
		jobsFinished.WithLabelValues("failed").Inc()
		s.logger.Error("Indexing job failed",
			zap.String("job_id", qj.id),
			zap.String("wallet", qj.wallet),
			zap.String("token", qj.token),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return
	}

	s.tracker.MarkCompleted(qj.id, stats.pagesFetched, stats.swapsSeen, stats.inserted)
	jobsFinished.WithLabelValues("completed").Inc()

	s.logger.Info("Indexing job completed",
		zap.String("job_id", qj.id),
		zap.String("wallet", qj.wallet),
		zap.String("token", qj.token),
		zap.Int("pages_fetched", stats.pagesFetched),
		zap.Int("swaps_seen", stats.swapsSeen),
		zap.Int64("trades_inserted", stats.inserted),
		zap.Duration("elapsed", time.Since(start)))
}

// execute runs one indexing pass end to end: ingest new swaps, replay the
// ledger, advance the wallet watermark, record the registration outcome.
func (s *IndexingService) execute(ctx context.Context, qj queuedJob) (*jobStats, error) {
	if qj.registrationID > 0 {
		registration, err := s.registrationRepo.GetByID(ctx, qj.registrationID)
		if err != nil {
			return nil, fmt.Errorf("failed to load registration: %w", err)
		}
		if registration == nil {
			s.logger.Warn("Trigger named an unknown registration, indexing without bookkeeping",
				zap.Int64("registration_id", qj.registrationID))
			qj.registrationID = 0
		} else {
			qj.contestID = registration.ContestID
			if err := s.registrationRepo.UpdateStatus(ctx, qj.registrationID, entities.RegistrationStatusIndexing); err != nil {
				s.logger.Warn("Failed to mark registration indexing",
					zap.Int64("registration_id", qj.registrationID),
					zap.Error(err))
			}
		}
	}

	token, err := s.tokenRepo.GetByAddress(ctx, qj.token)
	if err != nil {
		return nil, fmt.Errorf("failed to load token: %w", err)
	}
	if token == nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownToken, qj.token)
	}

	wallet, err := s.walletRepo.Get(ctx, qj.wallet)
	if err != nil {
		return nil, fmt.Errorf("failed to load wallet: %w", err)
	}
	startBlock := token.GenesisBlock
	if wallet != nil && wallet.LastSyncedBlock > 0 {
		startBlock = wallet.LastSyncedBlock + 1
	}

	head, err := s.chainHead(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve chain head: %w", err)
	}

	stats := &jobStats{}

	if startBlock <= head {
		result, err := s.feed.FetchRange(ctx, qj.token, startBlock, head, qj.wallet)
		if err != nil {
			return nil, fmt.Errorf("failed to ingest swaps: %w", err)
		}
		stats.pagesFetched = result.PagesFetched
		stats.swapsSeen = result.SwapsSeen
		feedPagesFetched.Add(float64(result.PagesFetched))
		feedPagesSkipped.Add(float64(result.PagesSkipped))

		if len(result.Trades) > 0 {
			inserted, err := s.tradeRepo.BatchInsert(ctx, result.Trades)
			if err != nil {
				return nil, fmt.Errorf("failed to persist trades: %w", err)
			}
			stats.inserted = inserted
			tradesInserted.Add(float64(inserted))
		}

		s.logger.Debug("Ingested swap range",
			zap.String("wallet", qj.wallet),
			zap.String("token", qj.token),
			zap.Int64("from_block", startBlock),
			zap.Int64("to_block", head),
			zap.Int("pages_fetched", result.PagesFetched),
			zap.Int("swaps_seen", result.SwapsSeen),
			zap.Int64("trades_inserted", stats.inserted))
	}

	// Replay even when the watermark is already at the head: a re-trigger
	// after a failed replay must still converge the position.
	position, err := s.accounting.Recompute(ctx, qj.wallet, qj.token)
	if err != nil {
		return nil, fmt.Errorf("failed to recompute position: %w", err)
	}

	if startBlock <= head {
		if err := s.walletRepo.AdvanceSyncedBlock(ctx, qj.wallet, head); err != nil {
			return nil, fmt.Errorf("failed to advance sync watermark: %w", err)
		}
	}

	if qj.registrationID > 0 {
		pnl, err := s.accounting.CurrentPnL(ctx, position)
		if err != nil {
			return nil, fmt.Errorf("failed to value position: %w", err)
		}
		if err := s.registrationRepo.MarkIndexed(ctx, qj.registrationID, pnl, time.Now().UTC()); err != nil {
			return nil, fmt.Errorf("failed to mark registration indexed: %w", err)
		}
		if s.cache != nil && qj.contestID > 0 {
			if err := s.cache.DeletePattern(ctx, cache.LeaderboardPattern(qj.contestID)); err != nil {
				s.logger.Warn("Failed to invalidate leaderboard cache",
					zap.Int64("contest_id", qj.contestID),
					zap.Error(err))
			}
		}
	}

	return stats, nil
}

// chainHead resolves the current block number, retrying provider-pool
// exhaustion a few times before giving up on the job.
func (s *IndexingService) chainHead(ctx context.Context) (int64, error) {
	var lastErr error
	for attempt := 0; attempt < headRetries; attempt++ {
		if attempt > 0 {
			select {
			case <-ctx.Done():
				return 0, ctx.Err()
			case <-time.After(headRetryDelay):
			}
		}

		head, err := s.chain.BlockNumber(ctx)
		if err == nil {
			return head, nil
		}
		lastErr = err
		if !errors.Is(err, gateway.ErrProviderUnavailable) {
			break
		}
		s.logger.Warn("Chain head lookup failed, retrying",
			zap.Int("attempt", attempt+1),
			zap.Error(err))
	}
	return 0, lastErr
}

// markRegistrationFailed is called once a job's deadline has passed; the
// job context is already dead, so the update gets a fresh one.
func (s *IndexingService) markRegistrationFailed(registrationID int64) {
	if registrationID == 0 {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := s.registrationRepo.UpdateStatus(ctx, registrationID, entities.RegistrationStatusFailed); err != nil {
		s.logger.Warn("Failed to mark registration failed",
			zap.Int64("registration_id", registrationID),
			zap.Error(err))
	}
}

func jobKey(wallet, token string) string {
	return wallet + "|" + token
}
