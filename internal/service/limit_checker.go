package service

import (
	"context"
	"time"

	"marketplace-payouts/internal/core/domain"
	"marketplace-payouts/internal/core/ports"
	"marketplace-payouts/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// LimitCheckerImpl implements ports.LimitChecker. Windows are UTC calendar
// days and months; only non-rejected payouts count.
type LimitCheckerImpl struct {
	payouts ports.PayoutRepository
	log     zerolog.Logger
}

func NewLimitChecker(payouts ports.PayoutRepository, log zerolog.Logger) *LimitCheckerImpl {
	return &LimitCheckerImpl{payouts: payouts, log: log}
}

// Check must run after the wallet lock so concurrent requests from the same
// vendor see each other's payouts.
func (c *LimitCheckerImpl) Check(ctx context.Context, tx pgx.Tx, vendorID uuid.UUID, amount decimal.Decimal, cfg *domain.PayoutConfiguration, now time.Time) error {
	now = now.UTC()

	if cfg.HasDailyLimit() {
		dayStart := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
		used, err := c.payouts.SumRequestedSince(ctx, tx, vendorID, dayStart)
		if err != nil {
			return apperror.FromDB("sum daily payouts", err)
		}
		if used.Add(amount).GreaterThan(cfg.DailyPayoutLimit) {
			c.log.Warn().
				Str("vendor_id", vendorID.String()).
				Str("used", used.StringFixed(domain.MoneyScale)).
				Str("amount", amount.StringFixed(domain.MoneyScale)).
				Msg("daily payout limit exceeded")
			return apperror.ErrDailyLimitExceeded(cfg.DailyPayoutLimit.StringFixed(domain.MoneyScale))
		}
	}

	if cfg.HasMonthlyLimit() {
		monthStart := time.Date(now.Year(), now.Month(), 1, 0, 0, 0, 0, time.UTC)
		used, err := c.payouts.SumRequestedSince(ctx, tx, vendorID, monthStart)
		if err != nil {
			return apperror.FromDB("sum monthly payouts", err)
		}
		if used.Add(amount).GreaterThan(cfg.MonthlyPayoutLimit) {
			c.log.Warn().
				Str("vendor_id", vendorID.String()).
				Str("used", used.StringFixed(domain.MoneyScale)).
				Str("amount", amount.StringFixed(domain.MoneyScale)).
				Msg("monthly payout limit exceeded")
			return apperror.ErrMonthlyLimitExceeded(cfg.MonthlyPayoutLimit.StringFixed(domain.MoneyScale))
		}
	}
	return nil
}
