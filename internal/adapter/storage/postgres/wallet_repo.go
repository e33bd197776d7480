package postgres

import (
	"context"
	"errors"
	"fmt"

	"marketplace-payouts/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

const walletColumns = `vendor_id, available_balance, pending_balance, total_earnings, total_payouts,
		last_payout_at, created_at, updated_at`

// WalletRepo implements ports.WalletRepository.
type WalletRepo struct {
	pool Pool
}

// NewWalletRepo creates a new WalletRepo.
func NewWalletRepo(pool Pool) *WalletRepo {
	return &WalletRepo{pool: pool}
}

func scanWallet(row pgx.Row) (*domain.WalletBalance, error) {
	w := &domain.WalletBalance{}
	err := row.Scan(
		&w.VendorID, &w.AvailableBalance, &w.PendingBalance, &w.TotalEarnings, &w.TotalPayouts,
		&w.LastPayoutAt, &w.CreatedAt, &w.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	return w, nil
}

// Get fetches a vendor's wallet without locking.
func (r *WalletRepo) Get(ctx context.Context, vendorID uuid.UUID) (*domain.WalletBalance, error) {
	query := `SELECT ` + walletColumns + ` FROM wallet_balances WHERE vendor_id = $1`

	w, err := scanWallet(r.pool.QueryRow(ctx, query, vendorID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get wallet: %w", err)
	}
	return w, nil
}

// GetForUpdate fetches a vendor's wallet with pessimistic locking.
// This MUST be called within a transaction.
func (r *WalletRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, vendorID uuid.UUID) (*domain.WalletBalance, error) {
	query := `SELECT ` + walletColumns + ` FROM wallet_balances WHERE vendor_id = $1 FOR UPDATE`

	w, err := scanWallet(tx.QueryRow(ctx, query, vendorID))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("get wallet for update: %w", err)
	}
	return w, nil
}

// Create inserts an empty wallet. An existing wallet for the vendor is left untouched.
func (r *WalletRepo) Create(ctx context.Context, tx pgx.Tx, w *domain.WalletBalance) error {
	query := `INSERT INTO wallet_balances (` + walletColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
		ON CONFLICT (vendor_id) DO NOTHING`

	_, err := tx.Exec(ctx, query,
		w.VendorID, w.AvailableBalance, w.PendingBalance, w.TotalEarnings, w.TotalPayouts,
		w.LastPayoutAt, w.CreatedAt, w.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert wallet: %w", err)
	}
	return nil
}

// Update writes the wallet's balances and refreshes w from the updated row.
func (r *WalletRepo) Update(ctx context.Context, tx pgx.Tx, w *domain.WalletBalance) error {
	query := `UPDATE wallet_balances
		SET available_balance = $2, pending_balance = $3, total_earnings = $4, total_payouts = $5,
			last_payout_at = $6, updated_at = $7
		WHERE vendor_id = $1
		RETURNING available_balance, pending_balance, total_earnings, total_payouts, updated_at`

	err := tx.QueryRow(ctx, query,
		w.VendorID, w.AvailableBalance, w.PendingBalance, w.TotalEarnings, w.TotalPayouts,
		w.LastPayoutAt, w.UpdatedAt,
	).Scan(&w.AvailableBalance, &w.PendingBalance, &w.TotalEarnings, &w.TotalPayouts, &w.UpdatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return fmt.Errorf("wallet not found: %s", w.VendorID)
		}
		return fmt.Errorf("update wallet: %w", err)
	}
	return nil
}
