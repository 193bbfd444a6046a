package testutil

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tokenarena/pnl-indexer/internal/domain/entities"
)

type MockCall struct {
	Method string
	Args   []interface{}
}

// MockTradeRepository is a mock implementation of TradeRepository
type MockTradeRepository struct {
	mu     sync.RWMutex
	trades []entities.Trade
	seen   map[string]bool

	// Function hooks for custom behavior
	BatchInsertFunc    func(ctx context.Context, trades []entities.Trade) (int64, error)
	GetByFilterFunc    func(ctx context.Context, filter entities.TradeFilter) ([]entities.Trade, error)
	GetCountFunc       func(ctx context.Context, filter entities.TradeFilter) (int64, error)
	ListForReplayFunc  func(ctx context.Context, walletAddress, tokenAddress string) ([]entities.Trade, error)
	GetLatestPriceFunc func(ctx context.Context, tokenAddress string) (decimal.Decimal, error)
	GetLatestBlockFunc func(ctx context.Context, tokenAddress string) (int64, error)

	// Call tracking
	Calls []MockCall
}

func NewMockTradeRepository() *MockTradeRepository {
	return &MockTradeRepository{
		trades: make([]entities.Trade, 0),
		seen:   make(map[string]bool),
		Calls:  make([]MockCall, 0),
	}
}

func dedupKey(t entities.Trade) string {
	return t.TxHash + "|" + t.TokenAddress + "|" + t.WalletAddress + "|" + string(t.Side)
}

func (m *MockTradeRepository) BatchInsert(ctx context.Context, trades []entities.Trade) (int64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, MockCall{Method: "BatchInsert", Args: []interface{}{trades}})

	if m.BatchInsertFunc != nil {
		return m.BatchInsertFunc(ctx, trades)
	}

	// Mirrors the unique constraint: duplicates are skipped, not errors
	var inserted int64
	for _, t := range trades {
		key := dedupKey(t)
		if m.seen[key] {
			continue
		}
		m.seen[key] = true
		m.trades = append(m.trades, t)
		inserted++
	}
	return inserted, nil
}

func (m *MockTradeRepository) GetByFilter(ctx context.Context, filter entities.TradeFilter) ([]entities.Trade, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, MockCall{Method: "GetByFilter", Args: []interface{}{filter}})
	m.mu.Unlock()

	if m.GetByFilterFunc != nil {
		return m.GetByFilterFunc(ctx, filter)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	result := m.filterLocked(filter)

	// Newest first, matching the storage layer
	sort.SliceStable(result, func(i, j int) bool {
		if result[i].BlockNumber != result[j].BlockNumber {
			return result[i].BlockNumber > result[j].BlockNumber
		}
		return result[i].TxHash > result[j].TxHash
	})

	start := filter.Offset
	if start > len(result) {
		return []entities.Trade{}, nil
	}
	end := start + filter.Limit
	if end > len(result) {
		end = len(result)
	}

	return result[start:end], nil
}

func (m *MockTradeRepository) GetCount(ctx context.Context, filter entities.TradeFilter) (int64, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, MockCall{Method: "GetCount", Args: []interface{}{filter}})
	m.mu.Unlock()

	if m.GetCountFunc != nil {
		return m.GetCountFunc(ctx, filter)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	return int64(len(m.filterLocked(filter))), nil
}

func (m *MockTradeRepository) filterLocked(filter entities.TradeFilter) []entities.Trade {
	result := make([]entities.Trade, 0)
	for _, t := range m.trades {
		if filter.WalletAddress != nil && t.WalletAddress != *filter.WalletAddress {
			continue
		}
		if filter.TokenAddress != nil && t.TokenAddress != *filter.TokenAddress {
			continue
		}
		if filter.Side != nil && t.Side != *filter.Side {
			continue
		}
		if filter.FromBlock != nil && t.BlockNumber < *filter.FromBlock {
			continue
		}
		if filter.ToBlock != nil && t.BlockNumber > *filter.ToBlock {
			continue
		}
		if filter.FromTime != nil && t.BlockTime.Before(*filter.FromTime) {
			continue
		}
		if filter.ToTime != nil && t.BlockTime.After(*filter.ToTime) {
			continue
		}
		result = append(result, t)
	}
	return result
}

func (m *MockTradeRepository) ListForReplay(ctx context.Context, walletAddress, tokenAddress string) ([]entities.Trade, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, MockCall{Method: "ListForReplay", Args: []interface{}{walletAddress, tokenAddress}})
	m.mu.Unlock()

	if m.ListForReplayFunc != nil {
		return m.ListForReplayFunc(ctx, walletAddress, tokenAddress)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]entities.Trade, 0)
	for _, t := range m.trades {
		if t.WalletAddress == walletAddress && t.TokenAddress == tokenAddress {
			result = append(result, t)
		}
	}

	sort.SliceStable(result, func(i, j int) bool {
		if result[i].BlockNumber != result[j].BlockNumber {
			return result[i].BlockNumber < result[j].BlockNumber
		}
		if result[i].TxHash != result[j].TxHash {
			return result[i].TxHash < result[j].TxHash
		}
		return result[i].Side < result[j].Side
	})

	return result, nil
}

func (m *MockTradeRepository) GetLatestPrice(ctx context.Context, tokenAddress string) (decimal.Decimal, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, MockCall{Method: "GetLatestPrice", Args: []interface{}{tokenAddress}})
	m.mu.Unlock()

	if m.GetLatestPriceFunc != nil {
		return m.GetLatestPriceFunc(ctx, tokenAddress)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var latest *entities.Trade
	for i := range m.trades {
		t := &m.trades[i]
		if t.TokenAddress != tokenAddress {
			continue
		}
		if latest == nil || t.BlockNumber > latest.BlockNumber ||
			(t.BlockNumber == latest.BlockNumber && t.TxHash > latest.TxHash) {
			latest = t
		}
	}
	if latest == nil {
		return decimal.Zero, nil
	}
	return latest.PriceUSD, nil
}

func (m *MockTradeRepository) GetLatestBlock(ctx context.Context, tokenAddress string) (int64, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, MockCall{Method: "GetLatestBlock", Args: []interface{}{tokenAddress}})
	m.mu.Unlock()

	if m.GetLatestBlockFunc != nil {
		return m.GetLatestBlockFunc(ctx, tokenAddress)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	var latest int64
	for _, t := range m.trades {
		if t.TokenAddress == tokenAddress && t.BlockNumber > latest {
			latest = t.BlockNumber
		}
	}
	return latest, nil
}

// AddTrades adds trades to the mock store, bypassing dedup accounting
func (m *MockTradeRepository) AddTrades(trades ...entities.Trade) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range trades {
		m.seen[dedupKey(t)] = true
		m.trades = append(m.trades, t)
	}
}

// Reset clears all stored data and calls
func (m *MockTradeRepository) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.trades = make([]entities.Trade, 0)
	m.seen = make(map[string]bool)
	m.Calls = make([]MockCall, 0)
}

// MockPositionRepository is a mock implementation of PositionRepository
type MockPositionRepository struct {
	mu        sync.RWMutex
	positions map[string]*entities.Position

	// Function hooks
	GetFunc           func(ctx context.Context, walletAddress, tokenAddress string) (*entities.Position, error)
	GetByWalletFunc   func(ctx context.Context, walletAddress string) ([]entities.Position, error)
	GetTopByTokenFunc func(ctx context.Context, tokenAddress string, limit int) ([]entities.Position, error)
	UpsertFunc        func(ctx context.Context, position *entities.Position) error

	Calls []MockCall
}

func NewMockPositionRepository() *MockPositionRepository {
	return &MockPositionRepository{
		positions: make(map[string]*entities.Position),
		Calls:     make([]MockCall, 0),
	}
}

func positionKey(walletAddress, tokenAddress string) string {
	return walletAddress + "|" + tokenAddress
}

func (m *MockPositionRepository) Get(ctx context.Context, walletAddress, tokenAddress string) (*entities.Position, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, MockCall{Method: "Get", Args: []interface{}{walletAddress, tokenAddress}})
	m.mu.Unlock()

	if m.GetFunc != nil {
		return m.GetFunc(ctx, walletAddress, tokenAddress)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if p, ok := m.positions[positionKey(walletAddress, tokenAddress)]; ok {
		copied := *p
		return &copied, nil
	}
	return nil, nil
}

func (m *MockPositionRepository) GetByWallet(ctx context.Context, walletAddress string) ([]entities.Position, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, MockCall{Method: "GetByWallet", Args: []interface{}{walletAddress}})
	m.mu.Unlock()

	if m.GetByWalletFunc != nil {
		return m.GetByWalletFunc(ctx, walletAddress)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]entities.Position, 0)
	for _, p := range m.positions {
		if p.WalletAddress == walletAddress {
			result = append(result, *p)
		}
	}
	sortPositionsByPnL(result)
	return result, nil
}

func (m *MockPositionRepository) GetTopByToken(ctx context.Context, tokenAddress string, limit int) ([]entities.Position, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, MockCall{Method: "GetTopByToken", Args: []interface{}{tokenAddress, limit}})
	m.mu.Unlock()

	if m.GetTopByTokenFunc != nil {
		return m.GetTopByTokenFunc(ctx, tokenAddress, limit)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]entities.Position, 0)
	for _, p := range m.positions {
		if p.TokenAddress == tokenAddress {
			result = append(result, *p)
		}
	}
	sortPositionsByPnL(result)
	if limit < len(result) {
		result = result[:limit]
	}
	return result, nil
}

func sortPositionsByPnL(positions []entities.Position) {
	sort.SliceStable(positions, func(i, j int) bool {
		if !positions[i].RealizedPnLUSD.Equal(positions[j].RealizedPnLUSD) {
			return positions[i].RealizedPnLUSD.GreaterThan(positions[j].RealizedPnLUSD)
		}
		return positions[i].WalletAddress < positions[j].WalletAddress
	})
}

func (m *MockPositionRepository) Upsert(ctx context.Context, position *entities.Position) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, MockCall{Method: "Upsert", Args: []interface{}{position}})

	if m.UpsertFunc != nil {
		return m.UpsertFunc(ctx, position)
	}

	copied := *position
	m.positions[positionKey(position.WalletAddress, position.TokenAddress)] = &copied
	return nil
}

// AddPosition adds a position to the mock store
func (m *MockPositionRepository) AddPosition(position *entities.Position) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *position
	m.positions[positionKey(position.WalletAddress, position.TokenAddress)] = &copied
}

// Reset clears all stored data and calls
func (m *MockPositionRepository) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.positions = make(map[string]*entities.Position)
	m.Calls = make([]MockCall, 0)
}

// MockTokenRepository is a mock implementation of TokenRepository
type MockTokenRepository struct {
	mu     sync.RWMutex
	tokens map[string]*entities.Token

	// Function hooks
	GetByAddressFunc   func(ctx context.Context, address string) (*entities.Token, error)
	GetAllFunc         func(ctx context.Context) ([]entities.Token, error)
	UpsertFunc         func(ctx context.Context, token *entities.Token) error
	UpdateMetadataFunc func(ctx context.Context, address, symbol string, decimals int) error

	Calls []MockCall
}

func NewMockTokenRepository() *MockTokenRepository {
	return &MockTokenRepository{
		tokens: make(map[string]*entities.Token),
		Calls:  make([]MockCall, 0),
	}
}

func (m *MockTokenRepository) GetByAddress(ctx context.Context, address string) (*entities.Token, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, MockCall{Method: "GetByAddress", Args: []interface{}{address}})
	m.mu.Unlock()

	if m.GetByAddressFunc != nil {
		return m.GetByAddressFunc(ctx, address)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if token, ok := m.tokens[address]; ok {
		copied := *token
		return &copied, nil
	}
	return nil, nil
}

func (m *MockTokenRepository) GetAll(ctx context.Context) ([]entities.Token, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, MockCall{Method: "GetAll", Args: nil})
	m.mu.Unlock()

	if m.GetAllFunc != nil {
		return m.GetAllFunc(ctx)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]entities.Token, 0, len(m.tokens))
	for _, token := range m.tokens {
		result = append(result, *token)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].Address < result[j].Address
	})
	return result, nil
}

func (m *MockTokenRepository) Upsert(ctx context.Context, token *entities.Token) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, MockCall{Method: "Upsert", Args: []interface{}{token}})

	if m.UpsertFunc != nil {
		return m.UpsertFunc(ctx, token)
	}

	copied := *token
	m.tokens[token.Address] = &copied
	return nil
}

func (m *MockTokenRepository) UpdateMetadata(ctx context.Context, address, symbol string, decimals int) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, MockCall{Method: "UpdateMetadata", Args: []interface{}{address, symbol, decimals}})

	if m.UpdateMetadataFunc != nil {
		return m.UpdateMetadataFunc(ctx, address, symbol, decimals)
	}

	if token, ok := m.tokens[address]; ok {
		token.Symbol = symbol
		token.Decimals = decimals
		token.UpdatedAt = time.Now()
	}
	return nil
}

// AddToken adds a token to the mock store
func (m *MockTokenRepository) AddToken(token *entities.Token) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *token
	m.tokens[token.Address] = &copied
}

// Reset clears all stored data and calls
func (m *MockTokenRepository) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens = make(map[string]*entities.Token)
	m.Calls = make([]MockCall, 0)
}

// MockWalletRepository is a mock implementation of WalletRepository
type MockWalletRepository struct {
	mu      sync.RWMutex
	wallets map[string]*entities.Wallet

	// Function hooks
	GetFunc                func(ctx context.Context, address string) (*entities.Wallet, error)
	UpsertFunc             func(ctx context.Context, wallet *entities.Wallet) error
	AdvanceSyncedBlockFunc func(ctx context.Context, address string, blockNumber int64) error

	Calls []MockCall
}

func NewMockWalletRepository() *MockWalletRepository {
	return &MockWalletRepository{
		wallets: make(map[string]*entities.Wallet),
		Calls:   make([]MockCall, 0),
	}
}

func (m *MockWalletRepository) Get(ctx context.Context, address string) (*entities.Wallet, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, MockCall{Method: "Get", Args: []interface{}{address}})
	m.mu.Unlock()

	if m.GetFunc != nil {
		return m.GetFunc(ctx, address)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if w, ok := m.wallets[address]; ok {
		copied := *w
		return &copied, nil
	}
	return nil, nil
}

func (m *MockWalletRepository) Upsert(ctx context.Context, wallet *entities.Wallet) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, MockCall{Method: "Upsert", Args: []interface{}{wallet}})

	if m.UpsertFunc != nil {
		return m.UpsertFunc(ctx, wallet)
	}

	copied := *wallet
	m.wallets[wallet.Address] = &copied
	return nil
}

func (m *MockWalletRepository) AdvanceSyncedBlock(ctx context.Context, address string, blockNumber int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, MockCall{Method: "AdvanceSyncedBlock", Args: []interface{}{address, blockNumber}})

	if m.AdvanceSyncedBlockFunc != nil {
		return m.AdvanceSyncedBlockFunc(ctx, address, blockNumber)
	}

	if w, ok := m.wallets[address]; ok {
		if blockNumber > w.LastSyncedBlock {
			w.LastSyncedBlock = blockNumber
			w.UpdatedAt = time.Now()
		}
		return nil
	}
	m.wallets[address] = &entities.Wallet{
		Address:         address,
		LastSyncedBlock: blockNumber,
		CreatedAt:       time.Now(),
		UpdatedAt:       time.Now(),
	}
	return nil
}

// AddWallet adds a wallet to the mock store
func (m *MockWalletRepository) AddWallet(wallet *entities.Wallet) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copied := *wallet
	m.wallets[wallet.Address] = &copied
}

// Reset clears all stored data and calls
func (m *MockWalletRepository) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.wallets = make(map[string]*entities.Wallet)
	m.Calls = make([]MockCall, 0)
}

// MockRegistrationRepository is a mock implementation of RegistrationRepository
type MockRegistrationRepository struct {
	mu            sync.RWMutex
	registrations map[int64]*entities.Registration
	nextID        int64

	// Function hooks
	GetByIDFunc      func(ctx context.Context, id int64) (*entities.Registration, error)
	GetByKeyFunc     func(ctx context.Context, contestID int64, walletAddress, tokenAddress string) (*entities.Registration, error)
	GetByContestFunc func(ctx context.Context, contestID int64, limit, offset int) ([]entities.Registration, error)
	CreateFunc       func(ctx context.Context, registration *entities.Registration) error
	UpdateStatusFunc func(ctx context.Context, id int64, status entities.RegistrationStatus) error
	MarkIndexedFunc  func(ctx context.Context, id int64, pnl decimal.Decimal, at time.Time) error

	Calls []MockCall
}

func NewMockRegistrationRepository() *MockRegistrationRepository {
	return &MockRegistrationRepository{
		registrations: make(map[int64]*entities.Registration),
		Calls:         make([]MockCall, 0),
	}
}

func (m *MockRegistrationRepository) GetByID(ctx context.Context, id int64) (*entities.Registration, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, MockCall{Method: "GetByID", Args: []interface{}{id}})
	m.mu.Unlock()

	if m.GetByIDFunc != nil {
		return m.GetByIDFunc(ctx, id)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	if r, ok := m.registrations[id]; ok {
		copied := *r
		return &copied, nil
	}
	return nil, nil
}

func (m *MockRegistrationRepository) GetByKey(ctx context.Context, contestID int64, walletAddress, tokenAddress string) (*entities.Registration, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, MockCall{Method: "GetByKey", Args: []interface{}{contestID, walletAddress, tokenAddress}})
	m.mu.Unlock()

	if m.GetByKeyFunc != nil {
		return m.GetByKeyFunc(ctx, contestID, walletAddress, tokenAddress)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	for _, r := range m.registrations {
		if r.ContestID == contestID && r.WalletAddress == walletAddress && r.TokenAddress == tokenAddress {
			copied := *r
			return &copied, nil
		}
	}
	return nil, nil
}

func (m *MockRegistrationRepository) GetByContest(ctx context.Context, contestID int64, limit, offset int) ([]entities.Registration, error) {
	m.mu.Lock()
	m.Calls = append(m.Calls, MockCall{Method: "GetByContest", Args: []interface{}{contestID, limit, offset}})
	m.mu.Unlock()

	if m.GetByContestFunc != nil {
		return m.GetByContestFunc(ctx, contestID, limit, offset)
	}

	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]entities.Registration, 0)
	for _, r := range m.registrations {
		if r.ContestID == contestID {
			result = append(result, *r)
		}
	}

	// PnL descending, NULL PnL last, id ascending for ties
	sort.SliceStable(result, func(i, j int) bool {
		pi, pj := result[i].CurrentPnL, result[j].CurrentPnL
		switch {
		case pi.Valid && !pj.Valid:
			return true
		case !pi.Valid && pj.Valid:
			return false
		case pi.Valid && pj.Valid && !pi.Decimal.Equal(pj.Decimal):
			return pi.Decimal.GreaterThan(pj.Decimal)
		default:
			return result[i].ID < result[j].ID
		}
	})

	start := offset
	if start > len(result) {
		return []entities.Registration{}, nil
	}
	end := start + limit
	if end > len(result) {
		end = len(result)
	}
	return result[start:end], nil
}

func (m *MockRegistrationRepository) Create(ctx context.Context, registration *entities.Registration) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, MockCall{Method: "Create", Args: []interface{}{registration}})

	if m.CreateFunc != nil {
		return m.CreateFunc(ctx, registration)
	}

	m.nextID++
	registration.ID = m.nextID
	if registration.Status == "" {
		registration.Status = entities.RegistrationStatusPending
	}
	copied := *registration
	m.registrations[registration.ID] = &copied
	return nil
}

func (m *MockRegistrationRepository) UpdateStatus(ctx context.Context, id int64, status entities.RegistrationStatus) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, MockCall{Method: "UpdateStatus", Args: []interface{}{id, status}})

	if m.UpdateStatusFunc != nil {
		return m.UpdateStatusFunc(ctx, id, status)
	}

	if r, ok := m.registrations[id]; ok {
		r.Status = status
		r.UpdatedAt = time.Now()
	}
	return nil
}

func (m *MockRegistrationRepository) MarkIndexed(ctx context.Context, id int64, pnl decimal.Decimal, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.Calls = append(m.Calls, MockCall{Method: "MarkIndexed", Args: []interface{}{id, pnl, at}})

	if m.MarkIndexedFunc != nil {
		return m.MarkIndexedFunc(ctx, id, pnl, at)
	}

	if r, ok := m.registrations[id]; ok {
		r.Status = entities.RegistrationStatusIndexed
		r.CurrentPnL = decimal.NewNullDecimal(pnl)
		r.IndexedAt = &at
		r.PnLCalculatedAt = &at
		r.UpdatedAt = time.Now()
	}
	return nil
}

// AddRegistration adds a registration to the mock store
func (m *MockRegistrationRepository) AddRegistration(registration *entities.Registration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if registration.ID > m.nextID {
		m.nextID = registration.ID
	}
	copied := *registration
	m.registrations[registration.ID] = &copied
}

// Reset clears all stored data and calls
func (m *MockRegistrationRepository) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.registrations = make(map[int64]*entities.Registration)
	m.nextID = 0
	m.Calls = make([]MockCall, 0)
}

// MockHealthChecker is a mock implementation of HealthChecker
type MockHealthChecker struct {
	mu sync.RWMutex

	Healthy bool
	Error   error
	Calls   []MockCall
}

func NewMockHealthChecker(healthy bool) *MockHealthChecker {
	var err error
	if !healthy {
		err = errors.New("health check failed")
	}
	return &MockHealthChecker{
		Healthy: healthy,
		Error:   err,
		Calls:   make([]MockCall, 0),
	}
}

func (m *MockHealthChecker) HealthCheck(ctx context.Context) error {
	m.mu.Lock()
	m.Calls = append(m.Calls, MockCall{Method: "HealthCheck", Args: nil})
	m.mu.Unlock()

	return m.Error
}

func (m *MockHealthChecker) SetHealthy(healthy bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Healthy = healthy
	if healthy {
		m.Error = nil
	} else {
		m.Error = errors.New("health check failed")
	}
}
