package service

import (
	"bytes"
	"context"
	"testing"

	"marketplace-payouts/internal/core/domain"
	"marketplace-payouts/internal/core/ports"
	"marketplace-payouts/internal/core/ports/mocks"
	"marketplace-payouts/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type ledgerTestDeps struct {
	svc     *LedgerServiceImpl
	wallets *mocks.MockWalletRepository
	txs     *mocks.MockWalletTransactionRepository
	logBuf  *bytes.Buffer
}

func setupLedger(t *testing.T) *ledgerTestDeps {
	ctrl := gomock.NewController(t)
	d := &ledgerTestDeps{
		wallets: mocks.NewMockWalletRepository(ctrl),
		txs:     mocks.NewMockWalletTransactionRepository(ctrl),
		logBuf:  &bytes.Buffer{},
	}
	d.svc = NewLedgerService(d.wallets, d.txs, zerolog.New(d.logBuf))
	return d
}

var payoutRef = ports.LedgerRef{Type: domain.ReferencePayout, ID: "p-1", Description: "test"}

// expectWrite captures the wallet passed to Update and the appended row.
func (d *ledgerTestDeps) expectWrite(tx pgx.Tx) (*domain.WalletBalance, *domain.WalletTransaction) {
	var updated domain.WalletBalance
	var entry domain.WalletTransaction
	d.wallets.EXPECT().Update(gomock.Any(), tx, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ pgx.Tx, w *domain.WalletBalance) error {
			updated = *w
			return nil
		})
	d.txs.EXPECT().Create(gomock.Any(), tx, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ pgx.Tx, e *domain.WalletTransaction) error {
			entry = *e
			return nil
		})
	return &updated, &entry
}

func TestLedger_Reserve_MovesAvailableToPending(t *testing.T) {
	d := setupLedger(t)
	ctx := context.Background()
	tx := &mockTx{}
	vendorID := uuid.New()

	d.wallets.EXPECT().GetForUpdate(ctx, tx, vendorID).Return(testWallet(vendorID, "1000", "0"), nil)
	updated, entry := d.expectWrite(tx)

	result, err := d.svc.Reserve(ctx, tx, vendorID, dec("400"), payoutRef)
	require.NoError(t, err)

	assertDecimal(t, "600", updated.AvailableBalance)
	assertDecimal(t, "400", updated.PendingBalance)

	assert.Equal(t, domain.TransactionDebit, entry.Type)
	assert.Equal(t, domain.CategoryPayout, entry.Category)
	assert.Equal(t, domain.OpReserve, entry.Operation)
	assertDecimal(t, "400", entry.Amount)
	assertDecimal(t, "1000", entry.BalanceBefore)
	assertDecimal(t, "600", entry.BalanceAfter)
	assertDecimal(t, "400", entry.PendingAfter)
	assert.Equal(t, "p-1", entry.ReferenceID)
	assert.Equal(t, entry.ID, result.ID)
}

func TestLedger_Reserve_InsufficientBalance(t *testing.T) {
	d := setupLedger(t)
	ctx := context.Background()
	tx := &mockTx{}
	vendorID := uuid.New()

	d.wallets.EXPECT().GetForUpdate(ctx, tx, vendorID).Return(testWallet(vendorID, "99.99", "0"), nil)

	_, err := d.svc.Reserve(ctx, tx, vendorID, dec("100"), payoutRef)
	assertAppError(t, err, apperror.CodeInsufficientBalance)
}

func TestLedger_Reserve_ExactBalance(t *testing.T) {
	d := setupLedger(t)
	ctx := context.Background()
	tx := &mockTx{}
	vendorID := uuid.New()

	d.wallets.EXPECT().GetForUpdate(ctx, tx, vendorID).Return(testWallet(vendorID, "100", "0"), nil)
	updated, _ := d.expectWrite(tx)

	_, err := d.svc.Reserve(ctx, tx, vendorID, dec("100"), payoutRef)
	require.NoError(t, err)
	assert.True(t, updated.AvailableBalance.IsZero())
}

func TestLedger_RejectsBadAmounts(t *testing.T) {
	tests := []struct {
		name   string
		amount decimal.Decimal
	}{
		{"zero", decimal.Zero},
		{"negative", dec("-1")},
		{"sub-cent", dec("10.005")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := setupLedger(t)
			_, err := d.svc.Reserve(context.Background(), &mockTx{}, uuid.New(), tt.amount, payoutRef)
			assertAppError(t, err, apperror.CodeValidation)

			_, err = d.svc.Credit(context.Background(), &mockTx{}, uuid.New(), tt.amount, domain.CategoryOrderSettlement, payoutRef)
			assertAppError(t, err, apperror.CodeValidation)
		})
	}
}

func TestLedger_Lock_Errors(t *testing.T) {
	t.Run("missing wallet", func(t *testing.T) {
		d := setupLedger(t)
		tx := &mockTx{}
		vendorID := uuid.New()
		d.wallets.EXPECT().GetForUpdate(gomock.Any(), tx, vendorID).Return(nil, nil)

		_, err := d.svc.Lock(context.Background(), tx, vendorID)
		assertAppError(t, err, apperror.CodeNotFound)
	})

	t.Run("lock timeout is retryable", func(t *testing.T) {
		d := setupLedger(t)
		tx := &mockTx{}
		vendorID := uuid.New()
		d.wallets.EXPECT().GetForUpdate(gomock.Any(), tx, vendorID).Return(nil, &pgconn.PgError{Code: "55P03"})

		_, err := d.svc.Reserve(context.Background(), tx, vendorID, dec("10"), payoutRef)
		assertAppError(t, err, apperror.CodeConflict)
		assert.True(t, apperror.IsRetryable(err))
	})
}

func TestLedger_Release(t *testing.T) {
	d := setupLedger(t)
	ctx := context.Background()
	tx := &mockTx{}
	vendorID := uuid.New()

	d.wallets.EXPECT().GetForUpdate(ctx, tx, vendorID).Return(testWallet(vendorID, "600", "400"), nil)
	updated, entry := d.expectWrite(tx)

	_, err := d.svc.Release(ctx, tx, vendorID, dec("400"), payoutRef)
	require.NoError(t, err)

	assertDecimal(t, "1000", updated.AvailableBalance)
	assert.True(t, updated.PendingBalance.IsZero())
	assert.Equal(t, domain.TransactionCredit, entry.Type)
	assert.Equal(t, domain.CategoryRefund, entry.Category)
	assert.Equal(t, domain.OpRelease, entry.Operation)
}

func TestLedger_Release_NeverClamps(t *testing.T) {
	d := setupLedger(t)
	ctx := context.Background()
	tx := &mockTx{}
	vendorID := uuid.New()

	d.wallets.EXPECT().GetForUpdate(ctx, tx, vendorID).Return(testWallet(vendorID, "600", "10"), nil)

	_, err := d.svc.Release(ctx, tx, vendorID, dec("20"), payoutRef)
	assertAppError(t, err, apperror.CodeInvariantViolation)
	assert.Contains(t, d.logBuf.String(), `"alert":true`)
	assert.Contains(t, d.logBuf.String(), `"level":"error"`)
}

func TestLedger_Commit(t *testing.T) {
	d := setupLedger(t)
	ctx := context.Background()
	tx := &mockTx{}
	vendorID := uuid.New()

	d.wallets.EXPECT().GetForUpdate(ctx, tx, vendorID).Return(testWallet(vendorID, "500", "1000"), nil)
	updated, entry := d.expectWrite(tx)

	_, err := d.svc.Commit(ctx, tx, vendorID, dec("1000"), dec("985"), payoutRef)
	require.NoError(t, err)

	assertDecimal(t, "500", updated.AvailableBalance)
	assert.True(t, updated.PendingBalance.IsZero())
	assertDecimal(t, "985", updated.TotalPayouts)
	require.NotNil(t, updated.LastPayoutAt)

	assert.Equal(t, domain.TransactionDebit, entry.Type)
	assert.Equal(t, domain.OpCommit, entry.Operation)
	assertDecimal(t, "1000", entry.Amount)
	assertDecimal(t, "500", entry.BalanceBefore)
	assertDecimal(t, "500", entry.BalanceAfter)
	assert.True(t, entry.PendingAfter.IsZero())
}

func TestLedger_Commit_ExceedsPending(t *testing.T) {
	d := setupLedger(t)
	ctx := context.Background()
	tx := &mockTx{}
	vendorID := uuid.New()

	d.wallets.EXPECT().GetForUpdate(ctx, tx, vendorID).Return(testWallet(vendorID, "500", "100"), nil)

	_, err := d.svc.Commit(ctx, tx, vendorID, dec("1000"), dec("985"), payoutRef)
	assertAppError(t, err, apperror.CodeInvariantViolation)
}

func TestLedger_Adjust(t *testing.T) {
	t.Run("positive returns pending to available", func(t *testing.T) {
		d := setupLedger(t)
		tx := &mockTx{}
		vendorID := uuid.New()
		d.wallets.EXPECT().GetForUpdate(gomock.Any(), tx, vendorID).Return(testWallet(vendorID, "0", "5000"), nil)
		updated, entry := d.expectWrite(tx)

		_, err := d.svc.Adjust(context.Background(), tx, vendorID, dec("1000"), payoutRef)
		require.NoError(t, err)
		assertDecimal(t, "1000", updated.AvailableBalance)
		assertDecimal(t, "4000", updated.PendingBalance)
		assert.Equal(t, domain.TransactionCredit, entry.Type)
		assert.Equal(t, domain.CategoryAdjustment, entry.Category)
		assertDecimal(t, "1000", entry.Amount)
	})

	t.Run("negative moves available to pending", func(t *testing.T) {
		d := setupLedger(t)
		tx := &mockTx{}
		vendorID := uuid.New()
		d.wallets.EXPECT().GetForUpdate(gomock.Any(), tx, vendorID).Return(testWallet(vendorID, "300", "0"), nil)
		updated, entry := d.expectWrite(tx)

		_, err := d.svc.Adjust(context.Background(), tx, vendorID, dec("-200"), payoutRef)
		require.NoError(t, err)
		assertDecimal(t, "100", updated.AvailableBalance)
		assertDecimal(t, "200", updated.PendingBalance)
		assert.Equal(t, domain.TransactionDebit, entry.Type)
		assertDecimal(t, "200", entry.Amount)
	})

	t.Run("negative beyond available", func(t *testing.T) {
		d := setupLedger(t)
		tx := &mockTx{}
		vendorID := uuid.New()
		d.wallets.EXPECT().GetForUpdate(gomock.Any(), tx, vendorID).Return(testWallet(vendorID, "100", "0"), nil)

		_, err := d.svc.Adjust(context.Background(), tx, vendorID, dec("-200"), payoutRef)
		assertAppError(t, err, apperror.CodeInsufficientBalance)
	})

	t.Run("zero", func(t *testing.T) {
		d := setupLedger(t)
		_, err := d.svc.Adjust(context.Background(), &mockTx{}, uuid.New(), decimal.Zero, payoutRef)
		assertAppError(t, err, apperror.CodeValidation)
	})
}

func TestLedger_Credit_CreatesWallet(t *testing.T) {
	d := setupLedger(t)
	ctx := context.Background()
	tx := &mockTx{}
	vendorID := uuid.New()

	d.wallets.EXPECT().GetForUpdate(ctx, tx, vendorID).Return(nil, nil)
	d.wallets.EXPECT().Create(ctx, tx, gomock.Any()).
		DoAndReturn(func(_ context.Context, _ pgx.Tx, w *domain.WalletBalance) error {
			assert.Equal(t, vendorID, w.VendorID)
			assert.True(t, w.AvailableBalance.IsZero())
			return nil
		})
	d.wallets.EXPECT().GetForUpdate(ctx, tx, vendorID).Return(testWallet(vendorID, "0", "0"), nil)
	updated, entry := d.expectWrite(tx)

	_, err := d.svc.Credit(ctx, tx, vendorID, dec("2500.50"), domain.CategoryOrderSettlement, ports.LedgerRef{Type: domain.ReferenceOrder, ID: "ord-9"})
	require.NoError(t, err)

	assertDecimal(t, "2500.50", updated.AvailableBalance)
	assertDecimal(t, "2500.50", updated.TotalEarnings)
	assert.Equal(t, domain.OpCredit, entry.Operation)
	assert.Equal(t, domain.CategoryOrderSettlement, entry.Category)
	assert.True(t, entry.BalanceBefore.IsZero())
}

func TestLedger_Credit_ExistingWallet(t *testing.T) {
	d := setupLedger(t)
	ctx := context.Background()
	tx := &mockTx{}
	vendorID := uuid.New()

	d.wallets.EXPECT().GetForUpdate(ctx, tx, vendorID).Return(testWallet(vendorID, "100", "50"), nil)
	updated, _ := d.expectWrite(tx)

	_, err := d.svc.Credit(ctx, tx, vendorID, dec("25"), domain.CategoryAdjustment, payoutRef)
	require.NoError(t, err)
	assertDecimal(t, "125", updated.AvailableBalance)
	assertDecimal(t, "50", updated.PendingBalance)
	assertDecimal(t, "175", updated.TotalEarnings)
}
