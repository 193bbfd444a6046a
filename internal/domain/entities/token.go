package entities

import (
	"time"
)

// Token metadata defaults used when no provider can answer.
const (
	DefaultTokenSymbol   = "UNKNOWN"
	DefaultTokenDecimals = 18
)

// Token represents a tracked token whose swaps are indexed
type Token struct {
	Address      string    `db:"address"`
	Symbol       string    `db:"symbol"`
	Decimals     int       `db:"decimals"`
	GenesisBlock int64     `db:"genesis_block"`
	CreatedAt    time.Time `db:"created_at"`
	UpdatedAt    time.Time `db:"updated_at"`
}
