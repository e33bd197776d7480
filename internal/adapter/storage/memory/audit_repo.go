package memory

import (
	"context"

	"marketplace-payouts/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
)

// AuditRepo implements ports.AuditRepository as an append-only slice.
type AuditRepo struct{ s *Store }

func NewAuditRepo(s *Store) *AuditRepo { return &AuditRepo{s: s} }

func (r *AuditRepo) Create(ctx context.Context, tx pgx.Tx, e *domain.AuditLogEntry) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.audit = append(r.s.audit, *e)
	return nil
}

// collect walks the log from the newest entry back.
func (r *AuditRepo) collect(match func(domain.AuditLogEntry) bool) []domain.AuditLogEntry {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	log := r.s.committed().audit
	var out []domain.AuditLogEntry
	for i := len(log) - 1; i >= 0; i-- {
		if match(log[i]) {
			out = append(out, log[i])
		}
	}
	return out
}

func (r *AuditRepo) ListByPayout(ctx context.Context, payoutID uuid.UUID) ([]domain.AuditLogEntry, error) {
	return r.collect(func(e domain.AuditLogEntry) bool {
		return e.PayoutID != nil && *e.PayoutID == payoutID
	}), nil
}

func (r *AuditRepo) ListByVendor(ctx context.Context, vendorID uuid.UUID, page domain.Page) ([]domain.AuditLogEntry, int64, error) {
	all := r.collect(func(e domain.AuditLogEntry) bool {
		return e.VendorID != nil && *e.VendorID == vendorID
	})
	return paginate(all, page), int64(len(all)), nil
}
