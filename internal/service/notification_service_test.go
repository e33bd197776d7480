package service

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"marketplace-payouts/internal/adapter/storage/memory"
	"marketplace-payouts/internal/core/domain"
	"marketplace-payouts/internal/core/ports/mocks"
	"marketplace-payouts/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

// recordingSink collects delivered events.
type recordingSink struct {
	name string
	err  error

	mu     sync.Mutex
	events []*domain.NotificationEvent
}

func (s *recordingSink) Name() string { return s.name }

func (s *recordingSink) Deliver(_ context.Context, ev *domain.NotificationEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return s.err
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.events)
}

// blockingSink holds every delivery until release is closed.
type blockingSink struct {
	release chan struct{}
}

func (s *blockingSink) Name() string { return "blocking" }

func (s *blockingSink) Deliver(ctx context.Context, _ *domain.NotificationEvent) error {
	select {
	case <-s.release:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

type panickingSink struct{}

func (panickingSink) Name() string { return "panicking" }

func (panickingSink) Deliver(context.Context, *domain.NotificationEvent) error { panic("boom") }

func testEvent() *domain.NotificationEvent {
	return &domain.NotificationEvent{
		ID:        uuid.New(),
		VendorID:  uuid.New(),
		Type:      domain.NotifyPayoutRequested,
		Title:     "Payout requested",
		CreatedAt: time.Now().UTC(),
	}
}

func TestNotificationDispatcher_FansOut(t *testing.T) {
	a := &recordingSink{name: "a"}
	b := &recordingSink{name: "b"}
	d := NewNotificationDispatcher(8, zerolog.Nop(), a, b)

	d.Emit(context.Background(), testEvent())
	d.Emit(context.Background(), testEvent())
	require.NoError(t, d.Close(context.Background()))

	assert.Equal(t, 2, a.count())
	assert.Equal(t, 2, b.count())
}

func TestNotificationDispatcher_SinkFailureIsIsolated(t *testing.T) {
	var logBuf bytes.Buffer
	failing := &recordingSink{name: "failing", err: errors.New("smtp down")}
	ok := &recordingSink{name: "ok"}
	d := NewNotificationDispatcher(8, zerolog.New(zerolog.SyncWriter(&logBuf)), failing, panickingSink{}, ok)

	d.Emit(context.Background(), testEvent())
	require.NoError(t, d.Close(context.Background()))

	assert.Equal(t, 1, failing.count())
	assert.Equal(t, 1, ok.count())
	assert.Contains(t, logBuf.String(), "notification delivery failed")
	assert.Contains(t, logBuf.String(), "notification sink panicked")
}

func TestNotificationDispatcher_FullQueueDrops(t *testing.T) {
	var logBuf bytes.Buffer
	sink := &blockingSink{release: make(chan struct{})}
	d := NewNotificationDispatcher(1, zerolog.New(zerolog.SyncWriter(&logBuf)), sink)

	done := make(chan struct{})
	go func() {
		for i := 0; i < 20; i++ {
			d.Emit(context.Background(), testEvent())
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Emit blocked on a full queue")
	}

	close(sink.release)
	require.NoError(t, d.Close(context.Background()))
	assert.Contains(t, logBuf.String(), "notification dropped: queue full")
}

func TestNotificationDispatcher_CloseTimeoutCancelsDeliveries(t *testing.T) {
	sink := &blockingSink{release: make(chan struct{})}
	d := NewNotificationDispatcher(4, zerolog.Nop(), sink)
	d.Emit(context.Background(), testEvent())

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	err := d.Close(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNotificationDispatcher_EmitAfterClose(t *testing.T) {
	sink := &recordingSink{name: "a"}
	d := NewNotificationDispatcher(4, zerolog.Nop(), sink)
	require.NoError(t, d.Close(context.Background()))
	require.NoError(t, d.Close(context.Background()))

	assert.NotPanics(t, func() { d.Emit(context.Background(), testEvent()) })
	assert.Equal(t, 0, sink.count())
}

func TestNotificationStoreSink(t *testing.T) {
	ctrl := gomock.NewController(t)
	repo := mocks.NewMockNotificationRepository(ctrl)
	sink := NewNotificationStoreSink(repo)
	ev := testEvent()

	repo.EXPECT().Create(gomock.Any(), ev).Return(nil)
	require.NoError(t, sink.Deliver(context.Background(), ev))

	repo.EXPECT().Create(gomock.Any(), ev).Return(errors.New("insert failed"))
	assert.Error(t, sink.Deliver(context.Background(), ev))
	assert.Equal(t, "store", sink.Name())
}

func TestNotificationFeed(t *testing.T) {
	store := memory.NewStore()
	repo := memory.NewNotificationRepo(store)
	feed := NewNotificationFeedService(repo)
	sink := NewNotificationStoreSink(repo)
	ctx := context.Background()

	ev := testEvent()
	require.NoError(t, sink.Deliver(ctx, ev))

	events, total, err := feed.List(ctx, ev.VendorID, true, domain.Page{})
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	require.Len(t, events, 1)

	assertAppError(t, feed.MarkRead(ctx, uuid.New(), ev.ID), apperror.CodeNotFound)
	require.NoError(t, feed.MarkRead(ctx, ev.VendorID, ev.ID))

	events, total, err = feed.List(ctx, ev.VendorID, true, domain.Page{})
	require.NoError(t, err)
	assert.Zero(t, total)
	assert.Empty(t, events)
}
