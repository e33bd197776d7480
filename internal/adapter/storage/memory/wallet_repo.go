package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"marketplace-payouts/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// WalletRepo implements ports.WalletRepository.
type WalletRepo struct{ s *Store }

func NewWalletRepo(s *Store) *WalletRepo { return &WalletRepo{s: s} }

func (r *WalletRepo) Get(ctx context.Context, vendorID uuid.UUID) (*domain.WalletBalance, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return findWallet(r.s.committed(), vendorID), nil
}

// GetForUpdate needs no row lock: the transactor already serializes writers.
func (r *WalletRepo) GetForUpdate(ctx context.Context, tx pgx.Tx, vendorID uuid.UUID) (*domain.WalletBalance, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return findWallet(r.s.live(), vendorID), nil
}

func findWallet(t *snapshot, vendorID uuid.UUID) *domain.WalletBalance {
	w, ok := t.wallets[vendorID]
	if !ok {
		return nil
	}
	return &w
}

func (r *WalletRepo) Create(ctx context.Context, tx pgx.Tx, w *domain.WalletBalance) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.wallets[w.VendorID]; !ok {
		r.s.wallets[w.VendorID] = *w
	}
	return nil
}

func (r *WalletRepo) Update(ctx context.Context, tx pgx.Tx, w *domain.WalletBalance) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.wallets[w.VendorID]
	if !ok {
		return fmt.Errorf("wallet not found for vendor %s", w.VendorID)
	}
	stored.AvailableBalance = w.AvailableBalance
	stored.PendingBalance = w.PendingBalance
	stored.TotalEarnings = w.TotalEarnings
	stored.TotalPayouts = w.TotalPayouts
	stored.LastPayoutAt = w.LastPayoutAt
	stored.UpdatedAt = time.Now().UTC()
	r.s.wallets[w.VendorID] = stored
	*w = stored
	return nil
}

// WalletTransactionRepo implements ports.WalletTransactionRepository.
type WalletTransactionRepo struct{ s *Store }

func NewWalletTransactionRepo(s *Store) *WalletTransactionRepo { return &WalletTransactionRepo{s: s} }

func (r *WalletTransactionRepo) Create(ctx context.Context, tx pgx.Tx, t *domain.WalletTransaction) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.walletTxs = append(r.s.walletTxs, *t)
	return nil
}

func (r *WalletTransactionRepo) ListByVendor(ctx context.Context, vendorID uuid.UUID, page domain.Page) ([]domain.WalletTransaction, int64, error) {
	all, _ := r.ListAllByVendor(ctx, vendorID)
	for i, j := 0, len(all)-1; i < j; i, j = i+1, j-1 {
		all[i], all[j] = all[j], all[i]
	}
	return paginate(all, page), int64(len(all)), nil
}

func (r *WalletTransactionRepo) ListAllByVendor(ctx context.Context, vendorID uuid.UUID) ([]domain.WalletTransaction, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []domain.WalletTransaction
	for _, t := range r.s.committed().walletTxs {
		if t.VendorID == vendorID {
			out = append(out, t)
		}
	}
	return out, nil
}

func paginate[T any](items []T, page domain.Page) []T {
	page = page.Normalize()
	start := page.Offset()
	if start >= len(items) {
		return nil
	}
	end := start + page.PageSize
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

// newestFirst orders by creation time descending, ties broken by id.
func newestFirst[T any](items []T, at func(T) time.Time, id func(T) uuid.UUID) {
	sort.SliceStable(items, func(i, j int) bool {
		ti, tj := at(items[i]), at(items[j])
		if !ti.Equal(tj) {
			return ti.After(tj)
		}
		return id(items[i]).String() < id(items[j]).String()
	})
}
