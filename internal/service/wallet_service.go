package service

import (
	"context"
	"fmt"

	"marketplace-payouts/internal/core/domain"
	"marketplace-payouts/internal/core/ports"
	"marketplace-payouts/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// WalletServiceImpl implements ports.WalletService.
type WalletServiceImpl struct {
	ledger     ports.LedgerService
	wallets    ports.WalletRepository
	txs        ports.WalletTransactionRepository
	audit      ports.AuditService
	transactor ports.DBTransactor
	log        zerolog.Logger
}

func NewWalletService(
	ledger ports.LedgerService,
	wallets ports.WalletRepository,
	txs ports.WalletTransactionRepository,
	audit ports.AuditService,
	transactor ports.DBTransactor,
	log zerolog.Logger,
) *WalletServiceImpl {
	return &WalletServiceImpl{
		ledger:     ledger,
		wallets:    wallets,
		txs:        txs,
		audit:      audit,
		transactor: transactor,
		log:        log,
	}
}

// Credit adds earnings to a vendor wallet. Admins and the settlement flow
// (system actor) may credit.
func (s *WalletServiceImpl) Credit(ctx context.Context, actor domain.Actor, req ports.CreditInput) (*domain.WalletTransaction, error) {
	if !actor.IsAdmin() && actor.Type != domain.ActorSystem {
		return nil, apperror.ErrForbidden()
	}
	if req.VendorID == uuid.Nil {
		return nil, apperror.Validation("vendor_id is required")
	}
	switch req.Category {
	case domain.CategoryOrderSettlement, domain.CategoryAdjustment:
	default:
		return nil, apperror.Validation("category must be order_settlement or adjustment")
	}

	refType := req.ReferenceType
	if refType == "" {
		refType = domain.ReferenceManual
	}

	dbTx, err := s.transactor.Begin(ctx)
	if err != nil {
		return nil, apperror.FromDB("begin tx", err)
	}
	defer dbTx.Rollback(ctx) //nolint:errcheck

	entry, err := s.ledger.Credit(ctx, dbTx, req.VendorID, req.Amount, req.Category, ports.LedgerRef{
		Type:        refType,
		ID:          req.ReferenceID,
		Description: req.Description,
	})
	if err != nil {
		return nil, err
	}

	vendorID := req.VendorID
	if err := s.audit.Record(ctx, dbTx, &domain.AuditLogEntry{
		VendorID:        &vendorID,
		Action:          domain.AuditWalletCredited,
		PerformedBy:     actor.ID,
		PerformedByType: actor.Type,
		Notes:           domain.StringPtr(req.Description),
		Metadata: map[string]any{
			"transaction_id": entry.ID.String(),
			"amount":         entry.Amount.StringFixed(domain.MoneyScale),
			"category":       string(req.Category),
			"reference_type": refType,
			"reference_id":   req.ReferenceID,
		},
	}); err != nil {
		return nil, apperror.FromDB("record audit", err)
	}

	if err := dbTx.Commit(ctx); err != nil {
		return nil, apperror.FromDB("commit tx", err)
	}

	s.log.Info().
		Str("vendor_id", req.VendorID.String()).
		Str("amount", entry.Amount.StringFixed(domain.MoneyScale)).
		Str("category", string(req.Category)).
		Msg("wallet credited")
	return entry, nil
}

// Reconcile replays the vendor's ledger from zero and compares it with the
// stored wallet. ReplayLedger checks every row's snapshots on the way, so the
// last snapshot is covered too. A mismatch is reported, not returned as an error.
func (s *WalletServiceImpl) Reconcile(ctx context.Context, vendorID uuid.UUID) (*ports.ReconcileReport, error) {
	wallet, err := s.wallets.Get(ctx, vendorID)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if wallet == nil {
		return nil, apperror.ErrNotFound("Wallet")
	}

	txns, err := s.txs.ListAllByVendor(ctx, vendorID)
	if err != nil {
		return nil, apperror.InternalError(err)
	}

	report := &ports.ReconcileReport{
		VendorID:     vendorID,
		Stored:       domain.LedgerState{Available: wallet.AvailableBalance, Pending: wallet.PendingBalance},
		Transactions: len(txns),
	}

	replayed, replayErr := domain.ReplayLedger(txns)
	report.Replayed = replayed

	switch {
	case replayErr != nil:
		report.Detail = replayErr.Error()
	case !replayed.Available.Equal(wallet.AvailableBalance) || !replayed.Pending.Equal(wallet.PendingBalance):
		report.Detail = fmt.Sprintf("stored %s/%s, replay %s/%s",
			wallet.AvailableBalance, wallet.PendingBalance, replayed.Available, replayed.Pending)
	default:
		report.Consistent = true
	}

	if !report.Consistent {
		s.log.Error().
			Bool("alert", true).
			Str("vendor_id", vendorID.String()).
			Str("detail", report.Detail).
			Msg("ledger invariant violated")
	}
	return report, nil
}
