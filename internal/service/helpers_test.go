package service

import (
	"context"
	"testing"

	"marketplace-payouts/internal/core/domain"
	"marketplace-payouts/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockTx implements pgx.Tx for testing
type mockTx struct{ pgx.Tx }

func (m *mockTx) Rollback(_ context.Context) error { return nil }
func (m *mockTx) Commit(_ context.Context) error   { return nil }

func assertAppError(t *testing.T, err error, expectedCode string) {
	t.Helper()
	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, expectedCode, appErr.Code)
}

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

func assertDecimal(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.True(t, dec(want).Equal(got), "want %s, got %s", want, got)
}

func testPayoutConfig() *domain.PayoutConfiguration {
	return &domain.PayoutConfiguration{
		ID:                      uuid.New(),
		MinPayoutAmount:         dec("100"),
		MaxPayoutAmount:         dec("100000"),
		DailyPayoutLimit:        dec("10000"),
		MonthlyPayoutLimit:      dec("50000"),
		ProcessingFeePercentage: dec("0.005"),
		ProcessingFeeFixed:      dec("5"),
		TDSPercentage:           dec("0.01"),
		AutoApprovalLimit:       dec("1000"),
		IsActive:                true,
	}
}

func testWallet(vendorID uuid.UUID, available, pending string) *domain.WalletBalance {
	return &domain.WalletBalance{
		VendorID:         vendorID,
		AvailableBalance: dec(available),
		PendingBalance:   dec(pending),
		TotalEarnings:    dec(available).Add(dec(pending)),
		TotalPayouts:     decimal.Zero,
	}
}
