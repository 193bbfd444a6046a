package entities

import (
	"time"

	"github.com/shopspring/decimal"
)

// RegistrationStatus is the indexing lifecycle state of a contest entry.
type RegistrationStatus string

const (
	RegistrationStatusPending  RegistrationStatus = "PENDING"
	RegistrationStatusIndexing RegistrationStatus = "INDEXING"
	RegistrationStatusIndexed  RegistrationStatus = "INDEXED"
	RegistrationStatusFailed   RegistrationStatus = "FAILED"
)

// CanTransition reports whether moving to the target status is allowed.
// INDEXED and FAILED both return to INDEXING on a re-trigger, so a stale or
// failed entry is always recoverable without operator surgery.
func (s RegistrationStatus) CanTransition(to RegistrationStatus) bool {
	switch s {
	case RegistrationStatusPending:
		return to == RegistrationStatusIndexing
	case RegistrationStatusIndexing:
		return to == RegistrationStatusIndexed || to == RegistrationStatusFailed
	case RegistrationStatusIndexed, RegistrationStatusFailed:
		return to == RegistrationStatusIndexing
	default:
		return false
	}
}

// Registration is a (contest, wallet, token) entry on the PnL leaderboard.
// CurrentPnL is realized plus unrealized at the last calculation time and is
// NULL until the first successful indexing pass.
type Registration struct {
	ID              int64               `db:"id"`
	ContestID       int64               `db:"contest_id"`
	WalletAddress   string              `db:"wallet_address"`
	TokenAddress    string              `db:"token_address"`
	Status          RegistrationStatus  `db:"status"`
	CurrentPnL      decimal.NullDecimal `db:"current_pnl"`
	IndexedAt       *time.Time          `db:"indexed_at"`
	PnLCalculatedAt *time.Time          `db:"pnl_calculated_at"`
	CreatedAt       time.Time           `db:"created_at"`
	UpdatedAt       time.Time           `db:"updated_at"`
}
