package memory

import (
	"context"
	"fmt"
	"sort"
	"time"

	"marketplace-payouts/internal/core/domain"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
)

// PayoutRepo implements ports.PayoutRepository.
type PayoutRepo struct{ s *Store }

func NewPayoutRepo(s *Store) *PayoutRepo { return &PayoutRepo{s: s} }

func (r *PayoutRepo) Create(ctx context.Context, tx pgx.Tx, p *domain.PayoutRequest) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for _, existing := range r.s.payouts {
		if existing.RequestNumber == p.RequestNumber {
			return fmt.Errorf("insert payout: %w", uniqueViolation("payout_requests_request_number_key"))
		}
		if p.IdempotencyKey != nil && existing.IdempotencyKey != nil &&
			existing.VendorID == p.VendorID && *existing.IdempotencyKey == *p.IdempotencyKey {
			return fmt.Errorf("insert payout: %w", uniqueViolation("payout_requests_vendor_idempotency_key"))
		}
	}
	r.s.payouts[p.ID] = p.Clone()
	return nil
}

func (r *PayoutRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.PayoutRequest, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return findPayout(r.s.committed(), id), nil
}

func (r *PayoutRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.PayoutRequest, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return findPayout(r.s.live(), id), nil
}

func findPayout(t *snapshot, id uuid.UUID) *domain.PayoutRequest {
	p, ok := t.payouts[id]
	if !ok {
		return nil
	}
	return p.Clone()
}

func (r *PayoutRepo) GetByIdempotencyKey(ctx context.Context, vendorID uuid.UUID, key string) (*domain.PayoutRequest, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, p := range r.s.committed().payouts {
		if p.VendorID == vendorID && p.IdempotencyKey != nil && *p.IdempotencyKey == key {
			return p.Clone(), nil
		}
	}
	return nil, nil
}

func (r *PayoutRepo) Update(ctx context.Context, tx pgx.Tx, p *domain.PayoutRequest) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.payouts[p.ID]; !ok {
		return fmt.Errorf("payout not found: %s", p.ID)
	}
	r.s.payouts[p.ID] = p.Clone()
	return nil
}

func (r *PayoutRepo) SumRequestedSince(ctx context.Context, tx pgx.Tx, vendorID uuid.UUID, since time.Time) (decimal.Decimal, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	sum := decimal.Zero
	for _, p := range r.s.payouts {
		if p.VendorID == vendorID && p.Status != domain.PayoutRejected && !p.RequestedAt.Before(since) {
			sum = sum.Add(p.RequestedAmount)
		}
	}
	return sum, nil
}

func (r *PayoutRepo) matching(filter domain.PayoutFilter) []domain.PayoutRequest {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []domain.PayoutRequest
	for _, p := range r.s.committed().payouts {
		if filter.VendorID != nil && p.VendorID != *filter.VendorID {
			continue
		}
		if filter.Status != "" && p.Status != filter.Status {
			continue
		}
		if filter.From != nil && p.RequestedAt.Before(*filter.From) {
			continue
		}
		if filter.To != nil && !p.RequestedAt.Before(*filter.To) {
			continue
		}
		out = append(out, *p.Clone())
	}
	return out
}

func (r *PayoutRepo) List(ctx context.Context, filter domain.PayoutFilter, page domain.Page) ([]domain.PayoutRequest, int64, error) {
	all := r.matching(filter)
	newestFirst(all,
		func(p domain.PayoutRequest) time.Time { return p.RequestedAt },
		func(p domain.PayoutRequest) uuid.UUID { return p.ID })
	return paginate(all, page), int64(len(all)), nil
}

func (r *PayoutRepo) GetStats(ctx context.Context, filter domain.PayoutFilter) ([]domain.PayoutStats, error) {
	byStatus := make(map[domain.PayoutStatus]*domain.PayoutStats)
	for _, p := range r.matching(filter) {
		st, ok := byStatus[p.Status]
		if !ok {
			st = &domain.PayoutStats{Status: p.Status, TotalAmount: decimal.Zero}
			byStatus[p.Status] = st
		}
		st.Count++
		st.TotalAmount = st.TotalAmount.Add(p.RequestedAmount)
	}

	out := make([]domain.PayoutStats, 0, len(byStatus))
	for _, st := range byStatus {
		out = append(out, *st)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Status < out[j].Status })
	return out, nil
}
