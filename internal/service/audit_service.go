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
)

// AuditServiceImpl implements ports.AuditService. Entries are written inside
// the caller's transaction so they exist exactly when the change does.
type AuditServiceImpl struct {
	repo ports.AuditRepository
	log  zerolog.Logger
}

func NewAuditService(repo ports.AuditRepository, log zerolog.Logger) *AuditServiceImpl {
	return &AuditServiceImpl{repo: repo, log: log}
}

// Record appends entry, filling in its id and timestamp when unset.
func (s *AuditServiceImpl) Record(ctx context.Context, tx pgx.Tx, entry *domain.AuditLogEntry) error {
	if entry.ID == uuid.Nil {
		entry.ID = uuid.New()
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	if err := s.repo.Create(ctx, tx, entry); err != nil {
		return fmt.Errorf("record audit %s: %w", entry.Action, err)
	}

	s.log.Info().
		Str("action", string(entry.Action)).
		Str("performed_by", entry.PerformedBy.String()).
		Str("performed_by_type", string(entry.PerformedByType)).
		Msg("audit")
	return nil
}

func (s *AuditServiceImpl) ListByPayout(ctx context.Context, payoutID uuid.UUID) ([]domain.AuditLogEntry, error) {
	entries, err := s.repo.ListByPayout(ctx, payoutID)
	if err != nil {
		return nil, apperror.FromDB("list payout audit", err)
	}
	return entries, nil
}

func (s *AuditServiceImpl) ListByVendor(ctx context.Context, vendorID uuid.UUID, page domain.Page) ([]domain.AuditLogEntry, int64, error) {
	entries, total, err := s.repo.ListByVendor(ctx, vendorID, page)
	if err != nil {
		return nil, 0, apperror.FromDB("list vendor audit", err)
	}
	return entries, total, nil
}
