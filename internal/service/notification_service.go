package service

import (
	"context"
	"fmt"
	"sync"
	"time"

	"marketplace-payouts/internal/core/domain"
	"marketplace-payouts/internal/core/ports"
	"marketplace-payouts/pkg/apperror"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// NotificationDispatcher implements ports.NotificationEmitter. Emit enqueues
// onto a bounded queue; one worker drains it and hands each event to every
// sink on its own goroutine. At most cap(slots) deliveries run at once, after
// which the queue fills and new events are dropped.
type NotificationDispatcher struct {
	queue chan *domain.NotificationEvent
	slots chan struct{}
	sinks []ports.NotificationSink
	log   zerolog.Logger

	ctx    context.Context
	cancel context.CancelFunc

	mu     sync.RWMutex
	closed bool

	worker   sync.WaitGroup
	inflight sync.WaitGroup
}

func NewNotificationDispatcher(queueSize int, log zerolog.Logger, sinks ...ports.NotificationSink) *NotificationDispatcher {
	if queueSize <= 0 {
		queueSize = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	d := &NotificationDispatcher{
		queue:  make(chan *domain.NotificationEvent, queueSize),
		slots:  make(chan struct{}, queueSize),
		sinks:  sinks,
		log:    log,
		ctx:    ctx,
		cancel: cancel,
	}
	d.worker.Add(1)
	go d.run()
	return d
}

// Emit never blocks and never fails the caller.
func (d *NotificationDispatcher) Emit(_ context.Context, event *domain.NotificationEvent) {
	if event == nil {
		return
	}

	d.mu.RLock()
	defer d.mu.RUnlock()
	if d.closed {
		d.log.Warn().Str("event_type", string(event.Type)).Msg("notification dropped: dispatcher closed")
		return
	}

	select {
	case d.queue <- event:
	default:
		d.log.Warn().
			Str("event_id", event.ID.String()).
			Str("event_type", string(event.Type)).
			Str("vendor_id", event.VendorID.String()).
			Msg("notification dropped: queue full")
	}
}

func (d *NotificationDispatcher) run() {
	defer d.worker.Done()
	for event := range d.queue {
		for _, sink := range d.sinks {
			d.slots <- struct{}{}
			d.inflight.Add(1)
			go d.deliver(sink, event)
		}
	}
}

func (d *NotificationDispatcher) deliver(sink ports.NotificationSink, event *domain.NotificationEvent) {
	defer func() {
		if r := recover(); r != nil {
			d.log.Error().
				Str("sink", sink.Name()).
				Str("event_id", event.ID.String()).
				Interface("panic", r).
				Msg("notification sink panicked")
		}
		<-d.slots
		d.inflight.Done()
	}()

	start := time.Now()
	if err := sink.Deliver(d.ctx, event); err != nil {
		d.log.Error().Err(err).
			Str("sink", sink.Name()).
			Str("event_id", event.ID.String()).
			Str("event_type", string(event.Type)).
			Msg("notification delivery failed")
		return
	}
	d.log.Debug().
		Str("sink", sink.Name()).
		Str("event_id", event.ID.String()).
		Dur("took", time.Since(start)).
		Msg("notification delivered")
}

// Close stops accepting events and waits for queued ones to be delivered.
// If ctx expires first, in-flight deliveries are cancelled.
func (d *NotificationDispatcher) Close(ctx context.Context) error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	close(d.queue)
	d.mu.Unlock()

	done := make(chan struct{})
	go func() {
		d.worker.Wait()
		d.inflight.Wait()
		close(done)
	}()

	select {
	case <-done:
		d.cancel()
		return nil
	case <-ctx.Done():
		d.cancel()
		<-done
		return fmt.Errorf("notification dispatcher: %w", ctx.Err())
	}
}

// NotificationStoreSink writes events to the vendor's in-app feed.
type NotificationStoreSink struct {
	repo ports.NotificationRepository
}

func NewNotificationStoreSink(repo ports.NotificationRepository) *NotificationStoreSink {
	return &NotificationStoreSink{repo: repo}
}

func (s *NotificationStoreSink) Name() string { return "store" }

func (s *NotificationStoreSink) Deliver(ctx context.Context, event *domain.NotificationEvent) error {
	if err := s.repo.Create(ctx, event); err != nil {
		return fmt.Errorf("store notification: %w", err)
	}
	return nil
}

// NotificationFeedService implements ports.NotificationFeed.
type NotificationFeedService struct {
	repo ports.NotificationRepository
}

func NewNotificationFeedService(repo ports.NotificationRepository) *NotificationFeedService {
	return &NotificationFeedService{repo: repo}
}

func (s *NotificationFeedService) List(ctx context.Context, vendorID uuid.UUID, unreadOnly bool, page domain.Page) ([]domain.NotificationEvent, int64, error) {
	events, total, err := s.repo.ListByVendor(ctx, vendorID, unreadOnly, page.Normalize())
	if err != nil {
		return nil, 0, apperror.FromDB("list notifications", err)
	}
	return events, total, nil
}

// MarkRead only touches the vendor's own notifications.
func (s *NotificationFeedService) MarkRead(ctx context.Context, vendorID, id uuid.UUID) error {
	ok, err := s.repo.MarkRead(ctx, vendorID, id)
	if err != nil {
		return apperror.FromDB("mark notification read", err)
	}
	if !ok {
		return apperror.ErrNotFound("Notification")
	}
	return nil
}
