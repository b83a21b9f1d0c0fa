package main

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/julienschmidt/httprouter"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newNotificationService(config *NotificationConfig, storage NotificationStorage, queue Queuer, senders ...Sender) NotificationServiceProvider {
	return NewNotificationService(zap.NewNop(), config, NewMockClocker(), NewMockUIDHandler("0001", true), storage, queue, senders...)
}

func TestNotifyHandler(t *testing.T) {
	queue := &MockQueue{}
	ns := newNotificationService(&NotificationConfig{}, NewMockNotificationStorage(), queue,
		NewMockSender(ChannelLog, nil), NewMockSender(ChannelEmail, nil), NewMockSender(ChannelWebhook, nil))
	api := newTestAPI(APIServices{Notifications: ns})

	testCases := []struct {
		name    string
		payload string
		status  int
	}{
		{"default channel", `{"recipient":"ops","message":"disk almost full"}`, http.StatusAccepted},
		{"email channel", `{"recipient":"ops@example.com","channel":"email","subject":"hi","message":"hello"}`, http.StatusAccepted},
		{"invalid email", `{"recipient":"not-an-address","channel":"email","message":"hello"}`, http.StatusBadRequest},
		{"webhook channel", `{"recipient":"https://hooks.example.com/ops","channel":"webhook","message":"hello"}`, http.StatusAccepted},
		{"webhook without scheme", `{"recipient":"hooks.example.com/ops","channel":"webhook","message":"hello"}`, http.StatusBadRequest},
		{"webhook with ftp scheme", `{"recipient":"ftp://hooks.example.com/ops","channel":"webhook","message":"hello"}`, http.StatusBadRequest},
		{"unknown channel", `{"recipient":"ops","channel":"sms","message":"hello"}`, http.StatusBadRequest},
		{"missing message", `{"recipient":"ops"}`, http.StatusBadRequest},
		{"empty body", ``, http.StatusBadRequest},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			api.Notify(w, httptest.NewRequest(http.MethodPost, "/notify", bytes.NewBufferString(tc.payload)), httprouter.Params{})
			res := w.Result()
			defer res.Body.Close()
			assert.Equal(t, tc.status, res.StatusCode)
			if tc.status != http.StatusAccepted {
				return
			}
			data := readEnvelope(t, res)["data"].(map[string]interface{})
			assert.Equal(t, "n:0001", data["id"])
			assert.Equal(t, StatusPending, data["status"])
		})
	}
	assert.Equal(t, []string{NotificationQueue, NotificationQueue, NotificationQueue}, queue.Pushed())
}

func TestCheckWebhookURL(t *testing.T) {
	assert.NoError(t, checkWebhookURL("http://localhost:9000/hook"))
	assert.NoError(t, checkWebhookURL("https://hooks.example.com/ops?x=1"))
	assert.Error(t, checkWebhookURL("hooks.example.com/ops"))
	assert.Error(t, checkWebhookURL("localhost:9000/hook"))
	assert.Error(t, checkWebhookURL("mailto:ops@example.com"))
	assert.Error(t, checkWebhookURL("https:///nohost"))
	assert.Error(t, checkWebhookURL("http://[::1"))
}

func TestNotifyHandlerQueueFailure(t *testing.T) {
	queue := &MockQueue{PushErr: errors.New("broker down")}
	ns := newNotificationService(&NotificationConfig{}, NewMockNotificationStorage(), queue, NewMockSender(ChannelLog, nil))
	api := newTestAPI(APIServices{Notifications: ns})
	w := httptest.NewRecorder()
	api.Notify(w, httptest.NewRequest(http.MethodPost, "/notify", bytes.NewBufferString(`{"recipient":"ops","message":"m"}`)), httprouter.Params{})
	assert.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestHealthNotificationHandler(t *testing.T) {
	w := httptest.NewRecorder()
	newTestAPI(APIServices{}).HealthNotification(w, httptest.NewRequest(http.MethodGet, "/healthNotification", nil), httprouter.Params{})
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"UP"}`, w.Body.String())
}

func TestGetNotificationsHandlers(t *testing.T) {
	storage := NewMockNotificationStorage()
	require.NoError(t, storage.Save(context.Background(), Notification{ID: "n:0001", Recipient: "ops", Channel: ChannelLog, Status: StatusSent}))
	api := newTestAPI(APIServices{Notifications: newNotificationService(&NotificationConfig{}, storage, &MockQueue{})})

	w := httptest.NewRecorder()
	api.GetAllNotifications(w, httptest.NewRequest(http.MethodGet, "/v1/notifications", nil), httprouter.Params{})
	res := w.Result()
	defer res.Body.Close()
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, float64(1), readEnvelope(t, res)["total"])

	w = httptest.NewRecorder()
	api.GetOneNotification(w, httptest.NewRequest(http.MethodGet, "/v1/notifications/n:0001", nil), httprouter.Params{{Key: "id", Value: "n:0001"}})
	assert.Equal(t, http.StatusOK, w.Code)

	w = httptest.NewRecorder()
	api.GetOneNotification(w, httptest.NewRequest(http.MethodGet, "/v1/notifications/n:0404", nil), httprouter.Params{{Key: "id", Value: "n:0404"}})
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestNotificationServiceDeliver(t *testing.T) {
	t.Run("sent", func(t *testing.T) {
		storage := NewMockNotificationStorage()
		sender := NewMockSender(ChannelLog, nil)
		ns := newNotificationService(&NotificationConfig{}, storage, &MockQueue{}, sender)
		n, err := ns.Deliver(context.Background(), Notification{ID: "n:1", Recipient: "ops", Channel: ChannelLog, Message: "m"})
		require.NoError(t, err)
		assert.Equal(t, StatusSent, n.Status)
		assert.Equal(t, 1, n.Attempts)
		assert.Equal(t, "2023-07-02T00:00:00Z", n.SentAt)
		assert.Len(t, sender.Sent, 1)
		assert.Equal(t, 2, storage.Saves)
		saved, err := storage.Get(context.Background(), "n:1")
		require.NoError(t, err)
		assert.Equal(t, StatusSent, saved.Status)
	})

	t.Run("failed", func(t *testing.T) {
		storage := NewMockNotificationStorage()
		sender := NewMockSender(ChannelWebhook, errors.New("endpoint refused"))
		ns := newNotificationService(&NotificationConfig{}, storage, &MockQueue{}, sender)
		n, err := ns.Deliver(context.Background(), Notification{ID: "n:2", Recipient: "http://hook", Channel: ChannelWebhook, Message: "m"})
		require.Error(t, err)
		assert.Equal(t, StatusFailed, n.Status)
		assert.Equal(t, "endpoint refused", n.LastError)
		saved, err := storage.Get(context.Background(), "n:2")
		require.NoError(t, err)
		assert.Equal(t, StatusFailed, saved.Status)
	})
}

func TestNotificationServiceNotifyEvent(t *testing.T) {
	event := OutboxEvent{AggregateType: AggregateProduct, AggregateID: "p:1", EventType: EventCreated}
	testCases := []struct {
		recipient string
		channel   string
	}{
		{"", ChannelLog},
		{"library-admin", ChannelLog},
		{"admin@example.com", ChannelEmail},
		{"https://hooks.example.com/library", ChannelWebhook},
	}
	for _, tc := range testCases {
		t.Run(tc.channel+":"+tc.recipient, func(t *testing.T) {
			senders := []*MockSender{NewMockSender(ChannelLog, nil), NewMockSender(ChannelEmail, nil), NewMockSender(ChannelWebhook, nil)}
			ns := newNotificationService(&NotificationConfig{AdminRecipient: tc.recipient}, NewMockNotificationStorage(), &MockQueue{},
				senders[0], senders[1], senders[2])
			require.NoError(t, ns.NotifyEvent(context.Background(), event))
			for _, s := range senders {
				if s.Channel() != tc.channel {
					assert.Empty(t, s.Sent)
					continue
				}
				require.Len(t, s.Sent, 1)
				assert.Equal(t, "product.created", s.Sent[0].Subject)
			}
		})
	}
}
