package postgres

import (
	"context"
	"errors"
	"testing"
	"time"

	"marketplace-payouts/internal/core/domain"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWallet(vendorID uuid.UUID) *domain.WalletBalance {
	now := time.Now().UTC().Truncate(time.Microsecond)
	return &domain.WalletBalance{
		VendorID:         vendorID,
		AvailableBalance: decimal.RequireFromString("5000.00"),
		PendingBalance:   decimal.RequireFromString("1500.00"),
		TotalEarnings:    decimal.RequireFromString("9000.00"),
		TotalPayouts:     decimal.RequireFromString("2500.00"),
		LastPayoutAt:     &now,
		CreatedAt:        now,
		UpdatedAt:        now,
	}
}

func walletColumnNames() []string {
	return []string{"vendor_id", "available_balance", "pending_balance", "total_earnings", "total_payouts",
		"last_payout_at", "created_at", "updated_at"}
}

func walletRow(w *domain.WalletBalance) *pgxmock.Rows {
	return pgxmock.NewRows(walletColumnNames()).AddRow(
		w.VendorID, w.AvailableBalance, w.PendingBalance, w.TotalEarnings, w.TotalPayouts,
		w.LastPayoutAt, w.CreatedAt, w.UpdatedAt,
	)
}

func TestWalletRepo_Get(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	w := newTestWallet(uuid.New())

	mock.ExpectQuery("SELECT .+ FROM wallet_balances WHERE vendor_id").
		WithArgs(w.VendorID).
		WillReturnRows(walletRow(w))

	result, err := repo.Get(context.Background(), w.VendorID)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, w.VendorID, result.VendorID)
	assert.True(t, w.AvailableBalance.Equal(result.AvailableBalance))
	assert.True(t, w.PendingBalance.Equal(result.PendingBalance))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepo_Get_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	vendorID := uuid.New()

	mock.ExpectQuery("SELECT .+ FROM wallet_balances WHERE vendor_id").
		WithArgs(vendorID).
		WillReturnRows(pgxmock.NewRows(walletColumnNames()))

	result, err := repo.Get(context.Background(), vendorID)
	assert.NoError(t, err)
	assert.Nil(t, result)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepo_GetForUpdate(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	w := newTestWallet(uuid.New())

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FROM wallet_balances WHERE vendor_id .+ FOR UPDATE").
		WithArgs(w.VendorID).
		WillReturnRows(walletRow(w))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	result, err := repo.GetForUpdate(context.Background(), tx, w.VendorID)
	require.NoError(t, err)
	require.NotNil(t, result)
	assert.Equal(t, w.LastPayoutAt, result.LastPayoutAt)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepo_GetForUpdate_LockTimeout(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	vendorID := uuid.New()
	lockErr := errors.New("canceling statement due to lock timeout")

	mock.ExpectBegin()
	mock.ExpectQuery("SELECT .+ FOR UPDATE").
		WithArgs(vendorID).
		WillReturnError(lockErr)

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	result, err := repo.GetForUpdate(context.Background(), tx, vendorID)
	assert.Nil(t, result)
	assert.ErrorIs(t, err, lockErr)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	w := domain.NewWalletBalance(uuid.New(), time.Now().UTC())

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO wallet_balances .+ ON CONFLICT").
		WithArgs(w.VendorID, w.AvailableBalance, w.PendingBalance, w.TotalEarnings, w.TotalPayouts,
			w.LastPayoutAt, w.CreatedAt, w.UpdatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.Create(context.Background(), tx, w)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepo_Update_RefreshesFromReturning(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	w := newTestWallet(uuid.New())
	stored := decimal.RequireFromString("4000.00")

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE wallet_balances .+ RETURNING").
		WithArgs(w.VendorID, w.AvailableBalance, w.PendingBalance, w.TotalEarnings, w.TotalPayouts,
			w.LastPayoutAt, w.UpdatedAt).
		WillReturnRows(pgxmock.NewRows([]string{"available_balance", "pending_balance", "total_earnings", "total_payouts", "updated_at"}).
			AddRow(stored, w.PendingBalance, w.TotalEarnings, w.TotalPayouts, w.UpdatedAt))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.Update(context.Background(), tx, w)
	require.NoError(t, err)
	assert.True(t, stored.Equal(w.AvailableBalance))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletRepo_Update_NotFound(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletRepo(mock)
	w := newTestWallet(uuid.New())

	mock.ExpectBegin()
	mock.ExpectQuery("UPDATE wallet_balances").
		WithArgs(pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(), pgxmock.AnyArg(),
			pgxmock.AnyArg(), pgxmock.AnyArg()).
		WillReturnRows(pgxmock.NewRows([]string{"available_balance", "pending_balance", "total_earnings", "total_payouts", "updated_at"}))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	err = repo.Update(context.Background(), tx, w)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "wallet not found")
	assert.NoError(t, mock.ExpectationsWereMet())
}
