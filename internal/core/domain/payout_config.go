package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// PayoutConfiguration holds the amount bounds, limits and fee rules in force.
// Percentages are fractions: 0.005 is half a percent.
type PayoutConfiguration struct {
	ID                      uuid.UUID       `json:"id"`
	MinPayoutAmount         decimal.Decimal `json:"min_payout_amount"`
	MaxPayoutAmount         decimal.Decimal `json:"max_payout_amount"`
	DailyPayoutLimit        decimal.Decimal `json:"daily_payout_limit"`
	MonthlyPayoutLimit      decimal.Decimal `json:"monthly_payout_limit"`
	ProcessingFeePercentage decimal.Decimal `json:"processing_fee_percentage"`
	ProcessingFeeFixed      decimal.Decimal `json:"processing_fee_fixed"`
	TDSPercentage           decimal.Decimal `json:"tds_percentage"`
	AutoApprovalLimit       decimal.Decimal `json:"auto_approval_limit"`
	IsActive                bool            `json:"is_active"`
	CreatedBy               *uuid.UUID      `json:"created_by,omitempty"`
	CreatedAt               time.Time       `json:"created_at"`
}

// Validate checks the configuration is internally consistent.
func (c *PayoutConfiguration) Validate() error {
	one := decimal.NewFromInt(1)
	switch {
	case !c.MinPayoutAmount.IsPositive():
		return errors.New("min_payout_amount must be positive")
	case c.MaxPayoutAmount.LessThan(c.MinPayoutAmount):
		return errors.New("max_payout_amount must not be below min_payout_amount")
	case c.DailyPayoutLimit.IsNegative(), c.MonthlyPayoutLimit.IsNegative():
		return errors.New("payout limits must not be negative")
	case c.ProcessingFeePercentage.IsNegative() || c.ProcessingFeePercentage.GreaterThanOrEqual(one):
		return errors.New("processing_fee_percentage must be a fraction in [0, 1)")
	case c.TDSPercentage.IsNegative() || c.TDSPercentage.GreaterThanOrEqual(one):
		return errors.New("tds_percentage must be a fraction in [0, 1)")
	case c.ProcessingFeeFixed.IsNegative():
		return errors.New("processing_fee_fixed must not be negative")
	case c.AutoApprovalLimit.IsNegative():
		return errors.New("auto_approval_limit must not be negative")
	}
	return nil
}

// AutoApproves reports whether a request of amount skips manual review.
func (c *PayoutConfiguration) AutoApproves(amount decimal.Decimal) bool {
	return amount.LessThanOrEqual(c.AutoApprovalLimit)
}

// HasDailyLimit reports whether a daily cap is set. Zero means unlimited.
func (c *PayoutConfiguration) HasDailyLimit() bool { return c.DailyPayoutLimit.IsPositive() }

// HasMonthlyLimit reports whether a monthly cap is set.
func (c *PayoutConfiguration) HasMonthlyLimit() bool { return c.MonthlyPayoutLimit.IsPositive() }
