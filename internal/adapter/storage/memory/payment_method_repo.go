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

// PaymentMethodRepo implements ports.PaymentMethodRepository. It enforces
// the same partial unique indexes as the SQL schema: one active default and
// one active method per fingerprint, per vendor.
type PaymentMethodRepo struct{ s *Store }

func NewPaymentMethodRepo(s *Store) *PaymentMethodRepo { return &PaymentMethodRepo{s: s} }

func (r *PaymentMethodRepo) checkUnique(m *domain.PaymentMethod) error {
	if !m.IsActive {
		return nil
	}
	for id, other := range r.s.methods {
		if id == m.ID || other.VendorID != m.VendorID || !other.IsActive {
			continue
		}
		if other.AccountFingerprint == m.AccountFingerprint {
			return uniqueViolation("payment_methods_vendor_fingerprint_active")
		}
		if m.IsDefault && other.IsDefault {
			return uniqueViolation("payment_methods_vendor_default")
		}
	}
	return nil
}

func (r *PaymentMethodRepo) Create(ctx context.Context, tx pgx.Tx, m *domain.PaymentMethod) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if err := r.checkUnique(m); err != nil {
		return fmt.Errorf("insert payment method: %w", err)
	}
	r.s.methods[m.ID] = *m
	return nil
}

func (r *PaymentMethodRepo) GetByID(ctx context.Context, id uuid.UUID) (*domain.PaymentMethod, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return findMethod(r.s.committed(), id), nil
}

func (r *PaymentMethodRepo) GetByIDForUpdate(ctx context.Context, tx pgx.Tx, id uuid.UUID) (*domain.PaymentMethod, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return findMethod(r.s.live(), id), nil
}

func findMethod(t *snapshot, id uuid.UUID) *domain.PaymentMethod {
	m, ok := t.methods[id]
	if !ok {
		return nil
	}
	return &m
}

func (r *PaymentMethodRepo) ListByVendor(ctx context.Context, vendorID uuid.UUID) ([]domain.PaymentMethod, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []domain.PaymentMethod
	for _, m := range r.s.committed().methods {
		if m.VendorID == vendorID && m.IsActive {
			out = append(out, m)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].IsDefault != out[j].IsDefault {
			return out[i].IsDefault
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out, nil
}

func (r *PaymentMethodRepo) ExistsByFingerprint(ctx context.Context, tx pgx.Tx, vendorID uuid.UUID, fingerprint string) (bool, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	for _, m := range r.s.methods {
		if m.VendorID == vendorID && m.IsActive && m.AccountFingerprint == fingerprint {
			return true, nil
		}
	}
	return false, nil
}

func (r *PaymentMethodRepo) CountActive(ctx context.Context, tx pgx.Tx, vendorID uuid.UUID) (int, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	n := 0
	for _, m := range r.s.methods {
		if m.VendorID == vendorID && m.IsActive {
			n++
		}
	}
	return n, nil
}

func (r *PaymentMethodRepo) ClearDefault(ctx context.Context, tx pgx.Tx, vendorID uuid.UUID) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for id, m := range r.s.methods {
		if m.VendorID == vendorID && m.IsDefault {
			m.IsDefault = false
			m.UpdatedAt = time.Now().UTC()
			r.s.methods[id] = m
		}
	}
	return nil
}

func (r *PaymentMethodRepo) Update(ctx context.Context, tx pgx.Tx, m *domain.PaymentMethod) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	stored, ok := r.s.methods[m.ID]
	if !ok {
		return fmt.Errorf("payment method not found: %s", m.ID)
	}
	stored.VerificationStatus = m.VerificationStatus
	stored.RejectionReason = m.RejectionReason
	stored.IsDefault = m.IsDefault
	stored.IsActive = m.IsActive
	stored.VerifiedAt = m.VerifiedAt
	stored.VerifiedBy = m.VerifiedBy
	stored.UpdatedAt = m.UpdatedAt
	if err := r.checkUnique(&stored); err != nil {
		return fmt.Errorf("update payment method: %w", err)
	}
	r.s.methods[m.ID] = stored
	return nil
}
