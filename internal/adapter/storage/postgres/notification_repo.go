package postgres

import (
	"context"
	"fmt"

	"marketplace-payouts/internal/core/domain"

	"github.com/google/uuid"
)

const notificationColumns = `id, vendor_id, payout_id, type, title, message, metadata, is_read, created_at`

// NotificationRepo implements ports.NotificationRepository.
type NotificationRepo struct {
	pool Pool
}

// NewNotificationRepo creates a new NotificationRepo.
func NewNotificationRepo(pool Pool) *NotificationRepo {
	return &NotificationRepo{pool: pool}
}

// Create stores an event in the vendor's feed. It runs outside any payout transaction.
func (r *NotificationRepo) Create(ctx context.Context, n *domain.NotificationEvent) error {
	meta, err := marshalMetadata(n.Metadata)
	if err != nil {
		return err
	}

	query := `INSERT INTO notifications (` + notificationColumns + `)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`
	_, err = r.pool.Exec(ctx, query,
		n.ID, n.VendorID, n.PayoutID, n.Type, n.Title, n.Message, meta, n.IsRead, n.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert notification: %w", err)
	}
	return nil
}

// ListByVendor returns one page of the vendor's feed, newest first.
func (r *NotificationRepo) ListByVendor(ctx context.Context, vendorID uuid.UUID, unreadOnly bool, page domain.Page) ([]domain.NotificationEvent, int64, error) {
	page = page.Normalize()
	where := "WHERE vendor_id = $1"
	if unreadOnly {
		where += " AND NOT is_read"
	}

	var total int64
	if err := r.pool.QueryRow(ctx, "SELECT COUNT(*) FROM notifications "+where, vendorID).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("count notifications: %w", err)
	}

	query := `SELECT ` + notificationColumns + ` FROM notifications ` + where +
		` ORDER BY created_at DESC, id LIMIT $2 OFFSET $3`
	rows, err := r.pool.Query(ctx, query, vendorID, page.PageSize, page.Offset())
	if err != nil {
		return nil, 0, fmt.Errorf("list notifications: %w", err)
	}
	defer rows.Close()

	var events []domain.NotificationEvent
	for rows.Next() {
		n := domain.NotificationEvent{}
		var meta []byte
		err := rows.Scan(&n.ID, &n.VendorID, &n.PayoutID, &n.Type, &n.Title, &n.Message, &meta, &n.IsRead, &n.CreatedAt)
		if err != nil {
			return nil, 0, fmt.Errorf("scan notification row: %w", err)
		}
		if n.Metadata, err = unmarshalMetadata(meta); err != nil {
			return nil, 0, err
		}
		events = append(events, n)
	}
	if err := rows.Err(); err != nil {
		return nil, 0, fmt.Errorf("iterate notification rows: %w", err)
	}
	return events, total, nil
}

// MarkRead flags a notification as read. It reports false if the vendor has no such notification.
func (r *NotificationRepo) MarkRead(ctx context.Context, vendorID, id uuid.UUID) (bool, error) {
	tag, err := r.pool.Exec(ctx, `UPDATE notifications SET is_read = TRUE WHERE id = $1 AND vendor_id = $2`, id, vendorID)
	if err != nil {
		return false, fmt.Errorf("mark notification read: %w", err)
	}
	return tag.RowsAffected() > 0, nil
}
