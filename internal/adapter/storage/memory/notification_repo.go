package memory

import (
	"context"
	"time"

	"marketplace-payouts/internal/core/domain"

	"github.com/google/uuid"
)

// NotificationRepo implements ports.NotificationRepository.
type NotificationRepo struct{ s *Store }

func NewNotificationRepo(s *Store) *NotificationRepo { return &NotificationRepo{s: s} }

func (r *NotificationRepo) Create(ctx context.Context, n *domain.NotificationEvent) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	r.s.notifications = append(r.s.notifications, *n)
	return nil
}

func (r *NotificationRepo) ListByVendor(ctx context.Context, vendorID uuid.UUID, unreadOnly bool, page domain.Page) ([]domain.NotificationEvent, int64, error) {
	r.s.mu.RLock()
	var out []domain.NotificationEvent
	for _, n := range r.s.notifications {
		if n.VendorID != vendorID || (unreadOnly && n.IsRead) {
			continue
		}
		out = append(out, n)
	}
	r.s.mu.RUnlock()

	newestFirst(out,
		func(n domain.NotificationEvent) time.Time { return n.CreatedAt },
		func(n domain.NotificationEvent) uuid.UUID { return n.ID })
	return paginate(out, page), int64(len(out)), nil
}

func (r *NotificationRepo) MarkRead(ctx context.Context, vendorID, id uuid.UUID) (bool, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	for i := range r.s.notifications {
		if r.s.notifications[i].ID == id && r.s.notifications[i].VendorID == vendorID {
			r.s.notifications[i].IsRead = true
			return true, nil
		}
	}
	return false, nil
}
