package postgres

import (
	"context"
	"testing"
	"time"

	"marketplace-payouts/internal/core/domain"

	"github.com/google/uuid"
	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNotificationRepo_Create(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewNotificationRepo(mock)
	payoutID := uuid.New()
	n := &domain.NotificationEvent{
		ID:        uuid.New(),
		VendorID:  uuid.New(),
		PayoutID:  &payoutID,
		Type:      domain.NotifyPayoutPaid,
		Title:     "Payout paid",
		Message:   "Your payout has been paid",
		Metadata:  map[string]any{"transaction_id": "UTR123"},
		CreatedAt: time.Now().UTC(),
	}

	mock.ExpectExec("INSERT INTO notifications").
		WithArgs(n.ID, n.VendorID, n.PayoutID, n.Type, n.Title, n.Message,
			[]byte(`{"transaction_id":"UTR123"}`), false, n.CreatedAt).
		WillReturnResult(pgxmock.NewResult("INSERT", 1))

	assert.NoError(t, repo.Create(context.Background(), n))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationRepo_ListByVendor_UnreadOnly(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewNotificationRepo(mock)
	vendorID := uuid.New()
	now := time.Now().UTC()

	mock.ExpectQuery("SELECT COUNT.+ FROM notifications WHERE vendor_id = .+ AND NOT is_read").
		WithArgs(vendorID).
		WillReturnRows(pgxmock.NewRows([]string{"count"}).AddRow(int64(3)))
	mock.ExpectQuery("SELECT .+ FROM notifications WHERE vendor_id = .+ AND NOT is_read ORDER BY created_at DESC").
		WithArgs(vendorID, 2, 2).
		WillReturnRows(pgxmock.NewRows([]string{"id", "vendor_id", "payout_id", "type", "title", "message",
			"metadata", "is_read", "created_at"}).
			AddRow(uuid.New(), vendorID, nil, domain.NotifyPayoutApproved, "Payout approved", "msg",
				[]byte(`{"status":"approved"}`), false, now))

	events, total, err := repo.ListByVendor(context.Background(), vendorID, true, domain.Page{Page: 2, PageSize: 2})
	require.NoError(t, err)
	assert.Equal(t, int64(3), total)
	require.Len(t, events, 1)
	assert.Nil(t, events[0].PayoutID)
	assert.Equal(t, "approved", events[0].Metadata["status"])
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestNotificationRepo_MarkRead(t *testing.T) {
	mock, err := pgxmock.NewPool()
	require.NoError(t, err)
	defer mock.Close()

	repo := NewNotificationRepo(mock)
	vendorID, id := uuid.New(), uuid.New()

	mock.ExpectExec("UPDATE notifications SET is_read = TRUE").
		WithArgs(id, vendorID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 1))
	mock.ExpectExec("UPDATE notifications SET is_read = TRUE").
		WithArgs(id, vendorID).
		WillReturnResult(pgxmock.NewResult("UPDATE", 0))

	found, err := repo.MarkRead(context.Background(), vendorID, id)
	require.NoError(t, err)
	assert.True(t, found)

	found, err = repo.MarkRead(context.Background(), vendorID, id)
	require.NoError(t, err)
	assert.False(t, found)
}
