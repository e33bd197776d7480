package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"marketplace-payouts/internal/core/domain"
	"marketplace-payouts/internal/core/ports"

	"github.com/rs/zerolog"
)

// Relay request headers.
const (
	HeaderSignature = "X-Signature"
	HeaderTimestamp = "X-Timestamp"
	HeaderEventType = "X-Event-Type"
	HeaderEventID   = "X-Event-ID"
)

// HTTPClient interface for testability.
type HTTPClient interface {
	Do(req *http.Request) (*http.Response, error)
}

// WebhookRelay forwards notification events to an external delivery system
// (email/SMS gateway) as signed JSON POSTs, retrying on failure.
type WebhookRelay struct {
	url        string
	secret     string
	sigSvc     ports.SignatureService
	httpClient HTTPClient
	retries    []time.Duration
	log        zerolog.Logger
	now        func() time.Time
}

func NewWebhookRelay(url, secret string, sigSvc ports.SignatureService, httpClient HTTPClient, retries []time.Duration, log zerolog.Logger) *WebhookRelay {
	return &WebhookRelay{
		url:        url,
		secret:     secret,
		sigSvc:     sigSvc,
		httpClient: httpClient,
		retries:    retries,
		log:        log,
		now:        time.Now,
	}
}

func (r *WebhookRelay) Name() string { return "webhook" }

// Deliver makes one attempt plus one per retry interval. It gives up early
// when ctx is cancelled.
func (r *WebhookRelay) Deliver(ctx context.Context, event *domain.NotificationEvent) error {
	body, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal notification: %w", err)
	}

	var lastErr error
	for attempt := 0; attempt <= len(r.retries); attempt++ {
		if attempt > 0 {
			timer := time.NewTimer(r.retries[attempt-1])
			select {
			case <-ctx.Done():
				timer.Stop()
				return fmt.Errorf("webhook relay: %w (last error: %v)", ctx.Err(), lastErr)
			case <-timer.C:
			}
		}

		lastErr = r.post(ctx, event, body)
		if lastErr == nil {
			r.log.Info().
				Str("event_id", event.ID.String()).
				Int("attempt", attempt+1).
				Msg("webhook: delivered successfully")
			return nil
		}
		r.log.Warn().Err(lastErr).
			Str("event_id", event.ID.String()).
			Int("attempt", attempt+1).
			Msg("webhook: delivery failed")
	}
	return fmt.Errorf("webhook relay: all %d attempts failed: %w", len(r.retries)+1, lastErr)
}

func (r *WebhookRelay) post(ctx context.Context, event *domain.NotificationEvent, body []byte) error {
	ts := r.now().Unix()
	signature := r.sigSvc.Sign(r.secret, SignedPayload(ts, body))

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, r.url, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(HeaderSignature, signature)
	req.Header.Set(HeaderTimestamp, strconv.FormatInt(ts, 10))
	req.Header.Set(HeaderEventType, string(event.Type))
	req.Header.Set(HeaderEventID, event.ID.String())

	resp, err := r.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("non-2xx response: %d", resp.StatusCode)
	}
	return nil
}
