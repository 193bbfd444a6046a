package entities

import (
	"time"
)

// Wallet tracks per-wallet ingestion progress. LastSyncedBlock only moves
// forward; a job that raced an older block range cannot rewind it.
type Wallet struct {
	Address         string    `db:"address"`
	LastSyncedBlock int64     `db:"last_synced_block"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}
