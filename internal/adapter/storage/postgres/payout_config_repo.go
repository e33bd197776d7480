package postgres

import (
	"context"
	"errors"
	"fmt"

	"marketplace-payouts/internal/core/domain"

	"github.com/jackc/pgx/v5"
)

const payoutConfigColumns = `id, min_payout_amount, max_payout_amount, daily_payout_limit, monthly_payout_limit,
		processing_fee_percentage, processing_fee_fixed, tds_percentage, auto_approval_limit, is_active,
		created_by, created_at`

// PayoutConfigRepo implements ports.PayoutConfigRepository.
type PayoutConfigRepo struct {
	pool Pool
}

// NewPayoutConfigRepo creates a new PayoutConfigRepo.
func NewPayoutConfigRepo(pool Pool) *PayoutConfigRepo {
	return &PayoutConfigRepo{pool: pool}
}

// GetActive returns the active configuration, or nil if none is active.
func (r *PayoutConfigRepo) GetActive(ctx context.Context) (*domain.PayoutConfiguration, error) {
	query := `SELECT ` + payoutConfigColumns + ` FROM payout_configurations WHERE is_active LIMIT 1`

	c := &domain.PayoutConfiguration{}
	err := r.pool.QueryRow(ctx, query).Scan(
		&c.ID, &c.MinPayoutAmount, &c.MaxPayoutAmount, &c.DailyPayoutLimit, &c.MonthlyPayoutLimit,
		&c.ProcessingFeePercentage, &c.ProcessingFeeFixed, &c.TDSPercentage, &c.AutoApprovalLimit, &c.IsActive,
		&c.CreatedBy, &c.CreatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get active payout config: %w", err)
	}
	return c, nil
}

// Activate retires the active configuration and inserts cfg in its place.
func (r *PayoutConfigRepo) Activate(ctx context.Context, tx pgx.Tx, c *domain.PayoutConfiguration) error {
	if _, err := tx.Exec(ctx, `UPDATE payout_configurations SET is_active = FALSE WHERE is_active`); err != nil {
		return fmt.Errorf("deactivate payout config: %w", err)
	}

	query := `INSERT INTO payout_configurations (` + payoutConfigColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, TRUE, $10, $11)`
	_, err := tx.Exec(ctx, query,
		c.ID, c.MinPayoutAmount, c.MaxPayoutAmount, c.DailyPayoutLimit, c.MonthlyPayoutLimit,
		c.ProcessingFeePercentage, c.ProcessingFeeFixed, c.TDSPercentage, c.AutoApprovalLimit,
		c.CreatedBy, c.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert payout config: %w", err)
	}
	c.IsActive = true
	return nil
}
