package repositories

import (
	"context"
	"time"

	"github.com/shopspring/decimal"

	"github.com/tokenarena/pnl-indexer/internal/domain/entities"
)

// RegistrationRepository defines the interface for contest registrations
type RegistrationRepository interface {
	// GetByID retrieves a registration by id
	GetByID(ctx context.Context, id int64) (*entities.Registration, error)

	// GetByKey retrieves the registration for a (contest, wallet, token) key
	GetByKey(ctx context.Context, contestID int64, walletAddress, tokenAddress string) (*entities.Registration, error)

	// GetByContest retrieves a contest's registrations ordered by current
	// PnL descending, NULL PnL last.
	GetByContest(ctx context.Context, contestID int64, limit, offset int) ([]entities.Registration, error)

	// Create inserts a registration in PENDING state
	Create(ctx context.Context, registration *entities.Registration) error

	// UpdateStatus moves a registration to the given status
	UpdateStatus(ctx context.Context, id int64, status entities.RegistrationStatus) error

	// MarkIndexed sets status INDEXED and records the PnL snapshot
	MarkIndexed(ctx context.Context, id int64, pnl decimal.Decimal, at time.Time) error
}
