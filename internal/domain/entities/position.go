package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position is the FIFO cost-basis state of one (wallet, token) pair.
// It is wholly derived from the trade ledger: every recompute replaces the
// row, so a position can always be rebuilt by replaying trades.
type Position struct {
	WalletAddress   string          `db:"wallet_address"`
	TokenAddress    string          `db:"token_address"`
	RemainingAmount decimal.Decimal `db:"remaining_amount"`
	CostBasisUSD    decimal.Decimal `db:"cost_basis_usd"`
	RealizedPnLUSD  decimal.Decimal `db:"realized_pnl_usd"`
	TradeCount      int64           `db:"trade_count"`
	LastTradeBlock  int64           `db:"last_trade_block"`
	UpdatedAt       time.Time       `db:"updated_at"`
}
