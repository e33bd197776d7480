package service

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync/atomic"
	"testing"
	"time"

	"marketplace-payouts/internal/core/domain"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// mockHTTPClient implements HTTPClient for testing.
type mockHTTPClient struct {
	doFunc func(req *http.Request) (*http.Response, error)
}

func (m *mockHTTPClient) Do(req *http.Request) (*http.Response, error) {
	return m.doFunc(req)
}

func TestWebhookRelay_SignsAndDelivers(t *testing.T) {
	sigSvc := NewHMACSignatureService()
	ev := testEvent()

	var received atomic.Bool
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)

		ts, err := strconv.ParseInt(r.Header.Get(HeaderTimestamp), 10, 64)
		require.NoError(t, err)
		assert.True(t, sigSvc.Verify("relay-secret", SignedPayload(ts, body), r.Header.Get(HeaderSignature)))
		assert.Equal(t, string(domain.NotifyPayoutRequested), r.Header.Get(HeaderEventType))
		assert.Equal(t, ev.ID.String(), r.Header.Get(HeaderEventID))
		assert.Equal(t, "application/json", r.Header.Get("Content-Type"))

		var got domain.NotificationEvent
		require.NoError(t, json.Unmarshal(body, &got))
		assert.Equal(t, ev.ID, got.ID)

		received.Store(true)
		w.WriteHeader(http.StatusAccepted)
	}))
	defer server.Close()

	relay := NewWebhookRelay(server.URL, "relay-secret", sigSvc, server.Client(), nil, zerolog.Nop())
	require.NoError(t, relay.Deliver(context.Background(), ev))
	assert.True(t, received.Load())
	assert.Equal(t, "webhook", relay.Name())
}

func TestWebhookRelay_RetriesThenSucceeds(t *testing.T) {
	var attempts atomic.Int32
	client := &mockHTTPClient{doFunc: func(req *http.Request) (*http.Response, error) {
		n := attempts.Add(1)
		switch n {
		case 1:
			return nil, errors.New("connection refused")
		case 2:
			return &http.Response{StatusCode: http.StatusBadGateway, Body: io.NopCloser(http.NoBody)}, nil
		}
		return &http.Response{StatusCode: http.StatusOK, Body: io.NopCloser(http.NoBody)}, nil
	}}

	relay := NewWebhookRelay("http://relay.local/hook", "s", NewHMACSignatureService(), client,
		[]time.Duration{time.Millisecond, time.Millisecond, time.Millisecond}, zerolog.Nop())

	require.NoError(t, relay.Deliver(context.Background(), testEvent()))
	assert.Equal(t, int32(3), attempts.Load())
}

func TestWebhookRelay_GivesUp(t *testing.T) {
	var attempts atomic.Int32
	client := &mockHTTPClient{doFunc: func(req *http.Request) (*http.Response, error) {
		attempts.Add(1)
		return &http.Response{StatusCode: http.StatusInternalServerError, Body: io.NopCloser(http.NoBody)}, nil
	}}

	relay := NewWebhookRelay("http://relay.local/hook", "s", NewHMACSignatureService(), client,
		[]time.Duration{time.Millisecond, time.Millisecond}, zerolog.Nop())

	err := relay.Deliver(context.Background(), testEvent())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "all 3 attempts failed")
	assert.Equal(t, int32(3), attempts.Load())
}

func TestWebhookRelay_StopsOnCancel(t *testing.T) {
	client := &mockHTTPClient{doFunc: func(req *http.Request) (*http.Response, error) {
		return nil, errors.New("unreachable")
	}}
	relay := NewWebhookRelay("http://relay.local/hook", "s", NewHMACSignatureService(), client,
		[]time.Duration{time.Hour}, zerolog.Nop())

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := relay.Deliver(ctx, testEvent())
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
