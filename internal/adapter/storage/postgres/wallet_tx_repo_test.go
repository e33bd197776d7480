package postgres

import (
	"context"
	"testing"
	"time"

	"marketplace-payouts/internal/core/domain"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestWalletTx(vendorID uuid.UUID, op domain.LedgerOperation) *domain.WalletTransaction {
	return &domain.WalletTransaction{
		ID:            uuid.New(),
		VendorID:      vendorID,
		Type:          domain.TransactionDebit,
		Category:      domain.CategoryPayout,
		Operation:     op,
		Amount:        decimal.RequireFromString("1000.00"),
		BalanceBefore: decimal.RequireFromString("5000.00"),
		BalanceAfter:  decimal.RequireFromString("4000.00"),
		PendingAfter:  decimal.RequireFromString("1000.00"),
		ReferenceType: domain.ReferencePayout,
		ReferenceID:   uuid.NewString(),
		Description:   "payout reserve",
		CreatedAt:     time.Now().UTC().Truncate(time.Microsecond),
	}
}

func walletTxColumnNames() []string {
	return []string{"id", "vendor_id", "type", "category", "operation", "amount", "balance_before", "balance_after",
		"pending_after", "reference_type", "reference_id", "description", "created_at"}
}

func addWalletTxRow(rows *pgxmock.Rows, t *domain.WalletTransaction) *pgxmock.Rows {
	return rows.AddRow(
		t.ID, t.VendorID, t.Type, t.Category, t.Operation, t.Amount, t.BalanceBefore, t.BalanceAfter,
		t.PendingAfter, t.ReferenceType, t.ReferenceID, t.Description, t.CreatedAt,
	)
}

func TestWalletTransactionRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletTransactionRepo(mock)
	txn := newTestWalletTx(uuid.New(), domain.OpReserve)

	mock.ExpectBegin()
	mock.ExpectExec("INSERT INTO wallet_transactions").
		WithArgs(txn.ID, txn.VendorID, txn.Type, txn.Category, txn.Operation, txn.Amount, txn.BalanceBefore,
			txn.BalanceAfter, txn.PendingAfter, txn.ReferenceType, txn.ReferenceID, txn.Description, txn.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	tx, err := mock.Begin(context.Background())
	require.NoError(t, err)

	assert.NoError(t, repo.Create(context.Background(), tx, txn))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletTransactionRepo_ListByVendor(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletTransactionRepo(mock)
	vendorID := uuid.New()
	newer := newTestWalletTx(vendorID, domain.OpCommit)
	older := newTestWalletTx(vendorID, domain.OpReserve)

	mock.ExpectQuery("SELECT COUNT").
		WithArgs(vendorID).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(2)))
	rows := pgxmock.NewRows(walletTxColumnNames())
	addWalletTxRow(rows, newer)
	addWalletTxRow(rows, older)
	mock.ExpectQuery("SELECT .+ FROM wallet_transactions .+ ORDER BY seq DESC LIMIT").
		WithArgs(vendorID, 10, 10).
		WillReturnRows(rows)

	txns, total, err := repo.ListByVendor(context.Background(), vendorID, domain.Page{Page: 2, PageSize: 10})
	require.NoError(t, err)
	assert.Equal(t, int64(2), total)
	require.Len(t, txns, 2)
	assert.Equal(t, domain.OpCommit, txns[0].Operation)
	assert.True(t, older.PendingAfter.Equal(txns[1].PendingAfter))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestWalletTransactionRepo_ListAllByVendor(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewWalletTransactionRepo(mock)
	vendorID := uuid.New()
	first := newTestWalletTx(vendorID, domain.OpReserve)

	mock.ExpectQuery("SELECT .+ FROM wallet_transactions WHERE vendor_id .+ ORDER BY seq ASC").
		WithArgs(vendorID).
		WillReturnRows(addWalletTxRow(pgxmock.NewRows(walletTxColumnNames()), first))

	txns, err := repo.ListAllByVendor(context.Background(), vendorID)
	require.NoError(t, err)
	require.Len(t, txns, 1)
	assert.Equal(t, first.ID, txns[0].ID)
	assert.NoError(t, mock.ExpectationsWereMet())
}
