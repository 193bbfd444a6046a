package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

// TradeSide marks whether the wallet acquired or disposed of the token.
type TradeSide string

const (
	TradeSideBuy  TradeSide = "BUY"
	TradeSideSell TradeSide = "SELL"
)

// Valid reports whether the side is one of the two known values.
func (s TradeSide) Valid() bool {
	return s == TradeSideBuy || s == TradeSideSell
}

// Trade is one normalized swap leg attributed to a wallet.
// The tuple (tx_hash, token_address, wallet_address, side) identifies a trade:
// re-ingesting the same swap is a no-op at the storage layer.
type Trade struct {
	ID            int64           `db:"id"`
	WalletAddress string          `db:"wallet_address"`
	TokenAddress  string          `db:"token_address"`
	Side          TradeSide       `db:"side"`
	TokenAmount   decimal.Decimal `db:"token_amount"`
	USDValue      decimal.Decimal `db:"usd_value"`
	PriceUSD      decimal.Decimal `db:"price_usd"`
	BlockNumber   int64           `db:"block_number"`
	BlockTime     time.Time       `db:"block_time"`
	TxHash        string          `db:"tx_hash"`
	Source        string          `db:"source"`
	CreatedAt     time.Time       `db:"created_at"`
}

// TradeFilter contains filters for querying trades
type TradeFilter struct {
	WalletAddress *string
	TokenAddress  *string
	Side          *TradeSide
	FromBlock     *int64
	ToBlock       *int64
	FromTime      *time.Time
	ToTime        *time.Time
	Limit         int
	Offset        int
}

// DefaultTradeFilter returns a filter with sensible defaults
func DefaultTradeFilter() TradeFilter {
	return TradeFilter{
		Limit:  100,
		Offset: 0,
	}
}
