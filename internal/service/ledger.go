package service

import (
	"context"
	"fmt"
	"time"

	"marketplace-payouts/internal/core/domain"
	"marketplace-payouts/internal/core/ports"
	"marketplace-payouts/pkg/apperror"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
)

// LedgerServiceImpl implements ports.LedgerService. Every primitive locks the
// wallet row, mutates it and appends one ledger row whose snapshots come from
// the updated wallet.
type LedgerServiceImpl struct {
	wallets ports.WalletRepository
	txs     ports.WalletTransactionRepository
	log     zerolog.Logger
	now     func() time.Time
}

func NewLedgerService(wallets ports.WalletRepository, txs ports.WalletTransactionRepository, log zerolog.Logger) *LedgerServiceImpl {
	return &LedgerServiceImpl{
		wallets: wallets,
		txs:     txs,
		log:     log,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// movement describes one ledger primitive.
type movement struct {
	op       domain.LedgerOperation
	typ      domain.TransactionType
	category domain.TransactionCategory
	amount   decimal.Decimal
	ref      ports.LedgerRef
	apply    func(w *domain.WalletBalance) error
}

// Lock takes the wallet row lock for the rest of tx.
func (l *LedgerServiceImpl) Lock(ctx context.Context, tx pgx.Tx, vendorID uuid.UUID) (*domain.WalletBalance, error) {
	w, err := l.wallets.GetForUpdate(ctx, tx, vendorID)
	if err != nil {
		return nil, apperror.FromDB("lock wallet", err)
	}
	if w == nil {
		return nil, apperror.ErrNotFound("Wallet")
	}
	return w, nil
}

// Reserve moves amount from available to pending.
func (l *LedgerServiceImpl) Reserve(ctx context.Context, tx pgx.Tx, vendorID uuid.UUID, amount decimal.Decimal, ref ports.LedgerRef) (*domain.WalletTransaction, error) {
	return l.post(ctx, tx, vendorID, movement{
		op: domain.OpReserve, typ: domain.TransactionDebit, category: domain.CategoryPayout,
		amount: amount, ref: ref,
		apply: func(w *domain.WalletBalance) error {
			if w.AvailableBalance.LessThan(amount) {
				return apperror.ErrInsufficientBalance()
			}
			w.AvailableBalance = w.AvailableBalance.Sub(amount)
			w.PendingBalance = w.PendingBalance.Add(amount)
			return nil
		},
	})
}

// Release returns amount from pending to available. Pending is never clamped:
// releasing more than is held means the books are already wrong.
func (l *LedgerServiceImpl) Release(ctx context.Context, tx pgx.Tx, vendorID uuid.UUID, amount decimal.Decimal, ref ports.LedgerRef) (*domain.WalletTransaction, error) {
	return l.post(ctx, tx, vendorID, movement{
		op: domain.OpRelease, typ: domain.TransactionCredit, category: domain.CategoryRefund,
		amount: amount, ref: ref,
		apply: func(w *domain.WalletBalance) error {
			if w.PendingBalance.LessThan(amount) {
				return l.invariant(vendorID, fmt.Sprintf("release %s exceeds pending %s", amount, w.PendingBalance))
			}
			w.PendingBalance = w.PendingBalance.Sub(amount)
			w.AvailableBalance = w.AvailableBalance.Add(amount)
			return nil
		},
	})
}

// Commit settles a paid payout: pendingAmount leaves the wallet and
// netAmount is added to total_payouts.
func (l *LedgerServiceImpl) Commit(ctx context.Context, tx pgx.Tx, vendorID uuid.UUID, pendingAmount, netAmount decimal.Decimal, ref ports.LedgerRef) (*domain.WalletTransaction, error) {
	if netAmount.IsNegative() {
		return nil, apperror.Validation("net amount must not be negative")
	}
	return l.post(ctx, tx, vendorID, movement{
		op: domain.OpCommit, typ: domain.TransactionDebit, category: domain.CategoryPayout,
		amount: pendingAmount, ref: ref,
		apply: func(w *domain.WalletBalance) error {
			if w.PendingBalance.LessThan(pendingAmount) {
				return l.invariant(vendorID, fmt.Sprintf("commit %s exceeds pending %s", pendingAmount, w.PendingBalance))
			}
			now := l.now()
			w.PendingBalance = w.PendingBalance.Sub(pendingAmount)
			w.TotalPayouts = w.TotalPayouts.Add(netAmount)
			w.LastPayoutAt = &now
			return nil
		},
	})
}

// Adjust moves delta from pending to available when positive, and -delta
// from available to pending when negative.
func (l *LedgerServiceImpl) Adjust(ctx context.Context, tx pgx.Tx, vendorID uuid.UUID, delta decimal.Decimal, ref ports.LedgerRef) (*domain.WalletTransaction, error) {
	if delta.IsZero() {
		return nil, apperror.Validation("adjustment must not be zero")
	}

	amount := delta.Abs()
	m := movement{op: domain.OpAdjust, category: domain.CategoryAdjustment, amount: amount, ref: ref}
	if delta.IsPositive() {
		m.typ = domain.TransactionCredit
		m.apply = func(w *domain.WalletBalance) error {
			if w.PendingBalance.LessThan(amount) {
				return l.invariant(vendorID, fmt.Sprintf("adjust %s exceeds pending %s", amount, w.PendingBalance))
			}
			w.PendingBalance = w.PendingBalance.Sub(amount)
			w.AvailableBalance = w.AvailableBalance.Add(amount)
			return nil
		}
	} else {
		m.typ = domain.TransactionDebit
		m.apply = func(w *domain.WalletBalance) error {
			if w.AvailableBalance.LessThan(amount) {
				return apperror.ErrInsufficientBalance()
			}
			w.AvailableBalance = w.AvailableBalance.Sub(amount)
			w.PendingBalance = w.PendingBalance.Add(amount)
			return nil
		}
	}
	return l.post(ctx, tx, vendorID, m)
}

// Credit adds earnings to available, creating the wallet on first use.
func (l *LedgerServiceImpl) Credit(ctx context.Context, tx pgx.Tx, vendorID uuid.UUID, amount decimal.Decimal, category domain.TransactionCategory, ref ports.LedgerRef) (*domain.WalletTransaction, error) {
	if err := validateAmount(amount); err != nil {
		return nil, err
	}

	w, err := l.wallets.GetForUpdate(ctx, tx, vendorID)
	if err != nil {
		return nil, apperror.FromDB("lock wallet", err)
	}
	if w == nil {
		if err := l.wallets.Create(ctx, tx, domain.NewWalletBalance(vendorID, l.now())); err != nil {
			return nil, apperror.FromDB("create wallet", err)
		}
		// Another transaction may have won the insert; lock whichever row exists.
		if w, err = l.Lock(ctx, tx, vendorID); err != nil {
			return nil, err
		}
	}

	return l.write(ctx, tx, w, movement{
		op: domain.OpCredit, typ: domain.TransactionCredit, category: category,
		amount: amount, ref: ref,
		apply: func(w *domain.WalletBalance) error {
			w.AvailableBalance = w.AvailableBalance.Add(amount)
			w.TotalEarnings = w.TotalEarnings.Add(amount)
			return nil
		},
	})
}

func validateAmount(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return apperror.Validation("amount must be positive")
	}
	if !domain.HasMoneyScale(amount) {
		return apperror.Validation("amount must have at most 2 decimal places")
	}
	return nil
}

func (l *LedgerServiceImpl) post(ctx context.Context, tx pgx.Tx, vendorID uuid.UUID, m movement) (*domain.WalletTransaction, error) {
	if err := validateAmount(m.amount); err != nil {
		return nil, err
	}
	w, err := l.Lock(ctx, tx, vendorID)
	if err != nil {
		return nil, err
	}
	return l.write(ctx, tx, w, m)
}

// write applies m to the locked wallet w and appends the ledger row.
func (l *LedgerServiceImpl) write(ctx context.Context, tx pgx.Tx, w *domain.WalletBalance, m movement) (*domain.WalletTransaction, error) {
	vendorID := w.VendorID
	before := w.AvailableBalance
	if err := m.apply(w); err != nil {
		return nil, err
	}
	if err := l.wallets.Update(ctx, tx, w); err != nil {
		return nil, apperror.FromDB("update wallet", err)
	}

	entry := &domain.WalletTransaction{
		ID:            uuid.New(),
		VendorID:      vendorID,
		Type:          m.typ,
		Category:      m.category,
		Operation:     m.op,
		Amount:        m.amount,
		BalanceBefore: before,
		BalanceAfter:  w.AvailableBalance,
		PendingAfter:  w.PendingBalance,
		ReferenceType: m.ref.Type,
		ReferenceID:   m.ref.ID,
		Description:   m.ref.Description,
		CreatedAt:     l.now(),
	}
	if err := l.txs.Create(ctx, tx, entry); err != nil {
		return nil, apperror.FromDB("append wallet transaction", err)
	}

	l.log.Debug().
		Str("vendor_id", vendorID.String()).
		Str("operation", string(m.op)).
		Str("amount", m.amount.StringFixed(domain.MoneyScale)).
		Str("available", w.AvailableBalance.StringFixed(domain.MoneyScale)).
		Str("pending", w.PendingBalance.StringFixed(domain.MoneyScale)).
		Msg("ledger posted")

	return entry, nil
}

func (l *LedgerServiceImpl) invariant(vendorID uuid.UUID, detail string) error {
	l.log.Error().
		Bool("alert", true).
		Str("vendor_id", vendorID.String()).
		Str("detail", detail).
		Msg("ledger invariant violated")
	return apperror.ErrInvariantViolation(detail)
}
