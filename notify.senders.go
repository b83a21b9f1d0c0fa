package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"go.uber.org/zap"
)

var (
	_ Sender = (*LogSender)(nil)
	_ Sender = (*EmailSender)(nil)
	_ Sender = (*WebhookSender)(nil)
)

// LogSender delivers notifications by writing them to the application logs.
type LogSender struct {
	logger *zap.Logger
}

func NewLogSender(logger *zap.Logger) *LogSender {
	return &LogSender{logger: logger}
}

func (ls *LogSender) Channel() string { return ChannelLog }

func (ls *LogSender) Send(_ context.Context, n Notification) error {
	ls.logger.Info("notification",
		zap.String("notification.id", n.ID),
		zap.String("notification.recipient", n.Recipient),
		zap.String("notification.subject", n.Subject),
		zap.String("notification.message", n.Message),
	)
	return nil
}

// EmailSender stands for a mail relay. No smtp server is contacted, the
// message is only traced.
type EmailSender struct {
	logger *zap.Logger
}

func NewEmailSender(logger *zap.Logger) *EmailSender {
	return &EmailSender{logger: logger}
}

func (es *EmailSender) Channel() string { return ChannelEmail }

func (es *EmailSender) Send(_ context.Context, n Notification) error {
	es.logger.Info("notification: email delivery simulated",
		zap.String("notification.id", n.ID),
		zap.String("notification.recipient", n.Recipient),
		zap.String("notification.subject", n.Subject),
	)
	return nil
}

// WebhookSender posts the notification as json to the recipient url, or to the
// default url when the recipient is empty. Transport errors and 5xx responses
// are retried with exponential backoff.
type WebhookSender struct {
	logger      *zap.Logger
	client      *http.Client
	defaultURL  string
	maxAttempts int
	interval    time.Duration
}

func NewWebhookSender(logger *zap.Logger, config *NotificationConfig) *WebhookSender {
	return &WebhookSender{
		logger:      logger,
		client:      &http.Client{Timeout: config.WebhookTimeout},
		defaultURL:  config.WebhookURL,
		maxAttempts: config.MaxAttempts,
		interval:    200 * time.Millisecond,
	}
}

func (ws *WebhookSender) Channel() string { return ChannelWebhook }

func (ws *WebhookSender) Send(ctx context.Context, n Notification) error {
	url := n.Recipient
	if url == "" {
		url = ws.defaultURL
	}
	if url == "" {
		return backoff.Permanent(fmt.Errorf("webhook: no target url for notification %s", n.ID))
	}
	if err := checkWebhookURL(url); err != nil {
		return backoff.Permanent(fmt.Errorf("webhook: invalid target url: %w", err))
	}
	payload, err := json.Marshal(n)
	if err != nil {
		return err
	}

	attempt := 0
	operation := func() error {
		attempt++
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Content-Type", "application/json")
		resp, err := ws.client.Do(req)
		if err != nil {
			return err
		}
		resp.Body.Close()
		switch {
		case resp.StatusCode >= 500:
			return fmt.Errorf("webhook: server answered %d", resp.StatusCode)
		case resp.StatusCode >= 400:
			return backoff.Permanent(fmt.Errorf("webhook: rejected with %d", resp.StatusCode))
		}
		return nil
	}

	bo := backoff.NewExponentialBackOff()
	bo.InitialInterval = ws.interval
	bo.MaxElapsedTime = 0
	retries := ws.maxAttempts - 1
	if retries < 0 {
		retries = 0
	}
	err = backoff.RetryNotify(operation,
		backoff.WithContext(backoff.WithMaxRetries(bo, uint64(retries)), ctx),
		func(err error, d time.Duration) {
			ws.logger.Warn("webhook: delivery failed, retrying",
				zap.String("notification.id", n.ID),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", d),
				zap.Error(err),
			)
		},
	)
	return err
}
