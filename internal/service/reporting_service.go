package service

import (
	"context"

	"marketplace-payouts/internal/core/domain"
	"marketplace-payouts/internal/core/ports"
	"marketplace-payouts/pkg/apperror"

	"github.com/google/uuid"
)

// reportingService implements ports.ReportingService.
type reportingService struct {
	wallets ports.WalletRepository
	txs     ports.WalletTransactionRepository
	payouts ports.PayoutRepository
	audit   ports.AuditService
}

// NewReportingService creates a new reporting service.
func NewReportingService(
	wallets ports.WalletRepository,
	txs ports.WalletTransactionRepository,
	payouts ports.PayoutRepository,
	audit ports.AuditService,
) ports.ReportingService {
	return &reportingService{
		wallets: wallets,
		txs:     txs,
		payouts: payouts,
		audit:   audit,
	}
}

// GetWallet returns the vendor's balances. The wallet row appears on first credit.
func (s *reportingService) GetWallet(ctx context.Context, vendorID uuid.UUID) (*domain.WalletBalance, error) {
	wallet, err := s.wallets.Get(ctx, vendorID)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if wallet == nil {
		return nil, apperror.ErrNotFound("Wallet")
	}
	return wallet, nil
}

// ListWalletTransactions returns the vendor's ledger, newest first.
func (s *reportingService) ListWalletTransactions(ctx context.Context, vendorID uuid.UUID, page domain.Page) ([]domain.WalletTransaction, int64, error) {
	txns, total, err := s.txs.ListByVendor(ctx, vendorID, page.Normalize())
	if err != nil {
		return nil, 0, apperror.InternalError(err)
	}
	return txns, total, nil
}

// GetPayout hides other vendors' payouts behind NotFound.
func (s *reportingService) GetPayout(ctx context.Context, actor domain.Actor, payoutID uuid.UUID) (*domain.PayoutRequest, error) {
	payout, err := s.payouts.GetByID(ctx, payoutID)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	if payout == nil || (!actor.IsAdmin() && payout.VendorID != actor.ID) {
		return nil, apperror.ErrNotFound("Payout")
	}
	return payout, nil
}

func (s *reportingService) ListPayouts(ctx context.Context, filter domain.PayoutFilter, page domain.Page) ([]domain.PayoutRequest, int64, error) {
	if filter.Status != "" && !filter.Status.IsValid() {
		return nil, 0, apperror.Validation("invalid status: " + string(filter.Status))
	}
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return nil, 0, apperror.Validation("to must not be before from")
	}
	payouts, total, err := s.payouts.List(ctx, filter, page.Normalize())
	if err != nil {
		return nil, 0, apperror.InternalError(err)
	}
	return payouts, total, nil
}

// PayoutStats returns count and requested total per status.
func (s *reportingService) PayoutStats(ctx context.Context, filter domain.PayoutFilter) ([]domain.PayoutStats, error) {
	if filter.From != nil && filter.To != nil && filter.To.Before(*filter.From) {
		return nil, apperror.Validation("to must not be before from")
	}
	stats, err := s.payouts.GetStats(ctx, filter)
	if err != nil {
		return nil, apperror.InternalError(err)
	}
	return stats, nil
}

func (s *reportingService) PayoutAudit(ctx context.Context, actor domain.Actor, payoutID uuid.UUID) ([]domain.AuditLogEntry, error) {
	if _, err := s.GetPayout(ctx, actor, payoutID); err != nil {
		return nil, err
	}
	return s.audit.ListByPayout(ctx, payoutID)
}

func (s *reportingService) VendorAudit(ctx context.Context, vendorID uuid.UUID, page domain.Page) ([]domain.AuditLogEntry, int64, error) {
	return s.audit.ListByVendor(ctx, vendorID, page.Normalize())
}
