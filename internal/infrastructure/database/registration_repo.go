package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/shopspring/decimal"

	"github.com/tokenarena/pnl-indexer/internal/domain/entities"
	"github.com/tokenarena/pnl-indexer/internal/domain/repositories"
)

// Ensure RegistrationRepo implements RegistrationRepository
var _ repositories.RegistrationRepository = (*RegistrationRepo)(nil)

// RegistrationRepo implements RegistrationRepository using PostgreSQL
type RegistrationRepo struct {
	db *sqlx.DB
}

// NewRegistrationRepo creates a new registration repository
func NewRegistrationRepo(db *sqlx.DB) *RegistrationRepo {
	return &RegistrationRepo{db: db}
}

// GetByID retrieves a registration by id
func (r *RegistrationRepo) GetByID(ctx context.Context, id int64) (*entities.Registration, error) {
	var registration entities.Registration
	query := `SELECT * FROM registrations WHERE id = $1`

	if err := r.db.GetContext(ctx, &registration, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get registration: %w", err)
	}

	return &registration, nil
}

// GetByKey retrieves the registration for a (contest, wallet, token) key
func (r *RegistrationRepo) GetByKey(ctx context.Context, contestID int64, walletAddress, tokenAddress string) (*entities.Registration, error) {
	var registration entities.Registration
	query := `
		SELECT * FROM registrations
		WHERE contest_id = $1 AND wallet_address = $2 AND token_address = $3
	`

	if err := r.db.GetContext(ctx, &registration, query, contestID, walletAddress, tokenAddress); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to get registration by key: %w", err)
	}

	return &registration, nil
}

// GetByContest retrieves a contest's registrations ordered for the
// leaderboard: highest PnL first, never-calculated entries last.
func (r *RegistrationRepo) GetByContest(ctx context.Context, contestID int64, limit, offset int) ([]entities.Registration, error) {
	var registrations []entities.Registration
	query := `
		SELECT * FROM registrations
		WHERE contest_id = $1
		ORDER BY current_pnl DESC NULLS LAST, id ASC
		LIMIT $2 OFFSET $3
	`

	if err := r.db.SelectContext(ctx, &registrations, query, contestID, limit, offset); err != nil {
		return nil, fmt.Errorf("failed to get contest registrations: %w", err)
	}

	return registrations, nil
}

// Create inserts a registration in PENDING state and fills in its id
func (r *RegistrationRepo) Create(ctx context.Context, registration *entities.Registration) error {
	query := `
		INSERT INTO registrations (contest_id, wallet_address, token_address, status)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`

	if registration.Status == "" {
		registration.Status = entities.RegistrationStatusPending
	}

	if err := r.db.GetContext(ctx, &registration.ID, query,
		registration.ContestID,
		registration.WalletAddress,
		registration.TokenAddress,
		registration.Status,
	); err != nil {
		return fmt.Errorf("failed to create registration: %w", err)
	}

	return nil
}

// UpdateStatus moves a registration to the given status
func (r *RegistrationRepo) UpdateStatus(ctx context.Context, id int64, status entities.RegistrationStatus) error {
	query := `
		UPDATE registrations SET
			status = $2,
			updated_at = NOW()
		WHERE id = $1
	`

	_, err := r.db.ExecContext(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("failed to update registration status: %w", err)
	}

	return nil
}

// MarkIndexed sets status INDEXED and records the PnL snapshot
func (r *RegistrationRepo) MarkIndexed(ctx context.Context, id int64, pnl decimal.Decimal, at time.Time) error {
	query := `
		UPDATE registrations SET
			status = $2,
			current_pnl = $3,
			indexed_at = $4,
			pnl_calculated_at = $4,
			updated_at = NOW()
		WHERE id = $1
	`

	_, err := r.db.ExecContext(ctx, query, id, entities.RegistrationStatusIndexed, pnl, at)
	if err != nil {
		return fmt.Errorf("failed to mark registration indexed: %w", err)
	}

	return nil
}
