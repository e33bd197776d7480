package postgres

import (
	"context"
	"fmt"

	"marketplace-payouts/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const walletTxColumns = `id, vendor_id, type, category, operation, amount, balance_before, balance_after,
		pending_after, reference_type, reference_id, description, created_at`

// WalletTransactionRepo implements ports.WalletTransactionRepository.
type WalletTransactionRepo struct {
	pool Pool
}

// NewWalletTransactionRepo creates a new WalletTransactionRepo.
func NewWalletTransactionRepo(pool Pool) *WalletTransactionRepo {
	return &WalletTransactionRepo{pool: pool}
}

// Create appends a ledger row within a transaction.
func (r *WalletTransactionRepo) Create(ctx context.Context, tx pgx.Tx, t *domain.WalletTransaction) error {
	query := `INSERT INTO wallet_transactions (` + walletTxColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	_, err := tx.Exec(ctx, query,
		t.ID, t.VendorID, t.Type, t.Category, t.Operation, t.Amount, t.BalanceBefore, t.BalanceAfter,
		t.PendingAfter, t.ReferenceType, t.ReferenceID, t.Description, t.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert wallet transaction: %w", err)
	}
	return nil
}

// ListByVendor returns one page of a vendor's ledger, newest first.
func (r *WalletTransactionRepo) ListByVendor(ctx context.Context, vendorID uuid.UUID, page domain.Page) ([]domain.WalletTransaction, int64, error) {
	page = page.Normalize()

	var total int64
	err := r.pool.QueryRow(ctx, `SELECT COUNT(*) FROM wallet_transactions WHERE vendor_id = $1`, vendorID).Scan(&total)
	if err != nil {
		return nil, 0, fmt.Errorf("count wallet transactions: %w", err)
	}

	query := `SELECT ` + walletTxColumns + ` FROM wallet_transactions
		WHERE vendor_id = $1 ORDER BY seq DESC LIMIT $2 OFFSET $3`
	txns, err := r.query(ctx, query, vendorID, page.PageSize, page.Offset())
	if err != nil {
		return nil, 0, err
	}
	return txns, total, nil
}

// ListAllByVendor returns a vendor's full ledger in write order.
func (r *WalletTransactionRepo) ListAllByVendor(ctx context.Context, vendorID uuid.UUID) ([]domain.WalletTransaction, error) {
	query := `SELECT ` + walletTxColumns + ` FROM wallet_transactions WHERE vendor_id = $1 ORDER BY seq ASC`
	return r.query(ctx, query, vendorID)
}

func (r *WalletTransactionRepo) query(ctx context.Context, query string, args ...any) ([]domain.WalletTransaction, error) {
	rows, err := r.pool.Query(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list wallet transactions: %w", err)
	}
	defer rows.Close()

	var txns []domain.WalletTransaction
	for rows.Next() {
		t := domain.WalletTransaction{}
		err := rows.Scan(
			&t.ID, &t.VendorID, &t.Type, &t.Category, &t.Operation, &t.Amount, &t.BalanceBefore, &t.BalanceAfter,
			&t.PendingAfter, &t.ReferenceType, &t.ReferenceID, &t.Description, &t.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("scan wallet transaction row: %w", err)
		}
		txns = append(txns, t)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate wallet transaction rows: %w", err)
	}
	return txns, nil
}
