package main

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestWebhookSender(url string, attempts int) *WebhookSender {
	ws := NewWebhookSender(zap.NewNop(), &NotificationConfig{WebhookURL: url, WebhookTimeout: time.Second, MaxAttempts: attempts})
	ws.interval = time.Millisecond
	return ws
}

func TestWebhookSender(t *testing.T) {
	t.Run("retries server errors", func(t *testing.T) {
		var calls int32
		var received Notification
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if atomic.AddInt32(&calls, 1) == 1 {
				w.WriteHeader(http.StatusInternalServerError)
				return
			}
			assert.Equal(t, "application/json", r.Header.Get("Content-Type"))
			assert.NoError(t, json.NewDecoder(r.Body).Decode(&received))
			w.WriteHeader(http.StatusNoContent)
		}))
		defer server.Close()

		ws := newTestWebhookSender(server.URL, 3)
		err := ws.Send(context.Background(), Notification{ID: "n:1", Message: "hello"})
		require.NoError(t, err)
		assert.Equal(t, int32(2), atomic.LoadInt32(&calls))
		assert.Equal(t, "n:1", received.ID)
	})

	t.Run("gives up after max attempts", func(t *testing.T) {
		var calls int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		err := newTestWebhookSender(server.URL, 3).Send(context.Background(), Notification{ID: "n:2"})
		assert.Error(t, err)
		assert.Equal(t, int32(3), atomic.LoadInt32(&calls))
	})

	t.Run("client errors are permanent", func(t *testing.T) {
		var calls int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
			w.WriteHeader(http.StatusUnprocessableEntity)
		}))
		defer server.Close()

		err := newTestWebhookSender("", 3).Send(context.Background(), Notification{ID: "n:3", Recipient: server.URL})
		assert.ErrorContains(t, err, "rejected with 422")
		assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
	})

	t.Run("url without scheme is permanent", func(t *testing.T) {
		var calls int32
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			atomic.AddInt32(&calls, 1)
		}))
		defer server.Close()

		target := strings.TrimPrefix(server.URL, "http://")
		start := time.Now()
		err := newTestWebhookSender("", 5).Send(context.Background(), Notification{ID: "n:5", Recipient: target})
		assert.ErrorContains(t, err, "invalid target url")
		assert.Equal(t, int32(0), atomic.LoadInt32(&calls))
		assert.Less(t, time.Since(start), 50*time.Millisecond)
	})

	t.Run("no target url", func(t *testing.T) {
		err := newTestWebhookSender("", 3).Send(context.Background(), Notification{ID: "n:4"})
		assert.ErrorContains(t, err, "no target url")
	})
}

func TestLogAndEmailSenders(t *testing.T) {
	n := Notification{ID: "n:1", Recipient: "ops@example.com", Subject: "s", Message: "m"}
	assert.Equal(t, ChannelLog, NewLogSender(zap.NewNop()).Channel())
	assert.NoError(t, NewLogSender(zap.NewNop()).Send(context.Background(), n))
	assert.Equal(t, ChannelEmail, NewEmailSender(zap.NewNop()).Channel())
	assert.NoError(t, NewEmailSender(zap.NewNop()).Send(context.Background(), n))
}
