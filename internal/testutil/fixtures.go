package testutil

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tokenarena/pnl-indexer/internal/domain/entities"
)

// Common test addresses
const (
	ArenaTokenAddress = "0xaaaa1111aaaa1111aaaa1111aaaa1111aaaa1111"
	PepeTokenAddress  = "0xbbbb2222bbbb2222bbbb2222bbbb2222bbbb2222"
	AliceAddress      = "0x1111111111111111111111111111111111111111"
	BobAddress        = "0x2222222222222222222222222222222222222222"
	CharlieAddress    = "0x3333333333333333333333333333333333333333"
)

// CreateTestTrade creates a test trade with default values
func CreateTestTrade(opts ...TradeOption) entities.Trade {
	t := entities.Trade{
		ID:            1,
		WalletAddress: AliceAddress,
		TokenAddress:  ArenaTokenAddress,
		Side:          entities.TradeSideBuy,
		TokenAmount:   decimal.RequireFromString("100"),
		USDValue:      decimal.RequireFromString("250"),
		PriceUSD:      decimal.RequireFromString("2.5"),
		BlockNumber:   12345678,
		BlockTime:     time.Date(2024, 1, 15, 10, 30, 0, 0, time.UTC),
		TxHash:        "0xaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaaa",
		Source:        "dexfeed",
		CreatedAt:     time.Now(),
	}

	for _, opt := range opts {
		opt(&t)
	}

	return t
}

type TradeOption func(*entities.Trade)

func WithID(id int64) TradeOption {
	return func(t *entities.Trade) {
		t.ID = id
	}
}

func WithWallet(addr string) TradeOption {
	return func(t *entities.Trade) {
		t.WalletAddress = addr
	}
}

func WithToken(addr string) TradeOption {
	return func(t *entities.Trade) {
		t.TokenAddress = addr
	}
}

func WithSide(side entities.TradeSide) TradeOption {
	return func(t *entities.Trade) {
		t.Side = side
	}
}

// WithAmounts sets the token amount and USD value, recomputing the price
func WithAmounts(tokenAmount, usdValue string) TradeOption {
	return func(t *entities.Trade) {
		t.TokenAmount = decimal.RequireFromString(tokenAmount)
		t.USDValue = decimal.RequireFromString(usdValue)
		t.PriceUSD = t.USDValue.Div(t.TokenAmount)
	}
}

func WithBlockNumber(num int64) TradeOption {
	return func(t *entities.Trade) {
		t.BlockNumber = num
	}
}

func WithBlockTime(ts time.Time) TradeOption {
	return func(t *entities.Trade) {
		t.BlockTime = ts
	}
}

func WithTxHash(hash string) TradeOption {
	return func(t *entities.Trade) {
		t.TxHash = hash
	}
}

// CreateTradeSequence creates count trades with ascending blocks and unique
// tx hashes, suitable for replay and pagination tests
func CreateTradeSequence(count int, opts ...TradeOption) []entities.Trade {
	trades := make([]entities.Trade, count)
	for i := 0; i < count; i++ {
		t := CreateTestTrade(opts...)
		t.ID = int64(i + 1)
		t.BlockNumber = int64(12345678 + i)
		t.BlockTime = t.BlockTime.Add(time.Duration(i) * time.Minute)
		t.TxHash = generateTxHash(i)
		trades[i] = t
	}
	return trades
}

func generateTxHash(index int) string {
	return fmt.Sprintf("0x%064x", index+1)
}

// CreateTestToken creates a test token with default values
func CreateTestToken(opts ...TokenOption) *entities.Token {
	t := &entities.Token{
		Address:      ArenaTokenAddress,
		Symbol:       "ARENA",
		Decimals:     18,
		GenesisBlock: 12000000,
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
	}

	for _, opt := range opts {
		opt(t)
	}

	return t
}

type TokenOption func(*entities.Token)

func TokenWithAddress(addr string) TokenOption {
	return func(t *entities.Token) {
		t.Address = addr
	}
}

func TokenWithSymbol(symbol string) TokenOption {
	return func(t *entities.Token) {
		t.Symbol = symbol
	}
}

func TokenWithDecimals(dec int) TokenOption {
	return func(t *entities.Token) {
		t.Decimals = dec
	}
}

func TokenWithGenesisBlock(block int64) TokenOption {
	return func(t *entities.Token) {
		t.GenesisBlock = block
	}
}

// CreateTestPosition creates a test position with default values
func CreateTestPosition(opts ...PositionOption) *entities.Position {
	p := &entities.Position{
		WalletAddress:   AliceAddress,
		TokenAddress:    ArenaTokenAddress,
		RemainingAmount: decimal.RequireFromString("100"),
		CostBasisUSD:    decimal.RequireFromString("250"),
		RealizedPnLUSD:  decimal.Zero,
		TradeCount:      1,
		LastTradeBlock:  12345678,
		UpdatedAt:       time.Now(),
	}

	for _, opt := range opts {
		opt(p)
	}

	return p
}

type PositionOption func(*entities.Position)

func PositionWithWallet(addr string) PositionOption {
	return func(p *entities.Position) {
		p.WalletAddress = addr
	}
}

func PositionWithToken(addr string) PositionOption {
	return func(p *entities.Position) {
		p.TokenAddress = addr
	}
}

func PositionWithRealizedPnL(pnl string) PositionOption {
	return func(p *entities.Position) {
		p.RealizedPnLUSD = decimal.RequireFromString(pnl)
	}
}

// CreateTestRegistration creates a test registration with default values
func CreateTestRegistration(opts ...RegistrationOption) *entities.Registration {
	r := &entities.Registration{
		ID:            1,
		ContestID:     42,
		WalletAddress: AliceAddress,
		TokenAddress:  ArenaTokenAddress,
		Status:        entities.RegistrationStatusPending,
		CreatedAt:     time.Now(),
		UpdatedAt:     time.Now(),
	}

	for _, opt := range opts {
		opt(r)
	}

	return r
}

type RegistrationOption func(*entities.Registration)

func RegistrationWithID(id int64) RegistrationOption {
	return func(r *entities.Registration) {
		r.ID = id
	}
}

func RegistrationWithContest(contestID int64) RegistrationOption {
	return func(r *entities.Registration) {
		r.ContestID = contestID
	}
}

func RegistrationWithWallet(addr string) RegistrationOption {
	return func(r *entities.Registration) {
		r.WalletAddress = addr
	}
}

func RegistrationWithStatus(status entities.RegistrationStatus) RegistrationOption {
	return func(r *entities.Registration) {
		r.Status = status
	}
}

func RegistrationWithPnL(pnl string) RegistrationOption {
	return func(r *entities.Registration) {
		r.CurrentPnL = decimal.NewNullDecimal(decimal.RequireFromString(pnl))
	}
}

// PointerTo returns a pointer to the given value
func PointerTo[T any](v T) *T {
	return &v
}
