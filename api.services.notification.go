package main

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"
)

type NotificationServiceProvider interface {
	Submit(ctx context.Context, n Notification) (Notification, error)
	Deliver(ctx context.Context, n Notification) (Notification, error)
	NotifyEvent(ctx context.Context, event OutboxEvent) error
	GetOne(ctx context.Context, id string) (Notification, error)
	GetAll(ctx context.Context) ([]Notification, error)
}

type NotificationService struct {
	logger  *zap.Logger
	config  *NotificationConfig
	clock   Clocker
	ids     UIDHandler
	storage NotificationStorage
	queue   Queuer
	senders map[string]Sender
}

func NewNotificationService(logger *zap.Logger, config *NotificationConfig, clock Clocker, ids UIDHandler,
	storage NotificationStorage, queue Queuer, senders ...Sender,
) NotificationServiceProvider {
	ns := &NotificationService{
		logger:  logger,
		config:  config,
		clock:   clock,
		ids:     ids,
		storage: storage,
		queue:   queue,
		senders: make(map[string]Sender, len(senders)),
	}
	for _, s := range senders {
		ns.senders[s.Channel()] = s
	}
	return ns
}

// Submit accepts a notification and queues it for asynchronous delivery.
// It returns as soon as the notification is enqueued.
func (ns *NotificationService) Submit(ctx context.Context, n Notification) (Notification, error) {
	if _, ok := ns.senders[n.Channel]; !ok {
		return n, ErrUnknownChannel
	}
	n.ID = ns.ids.Generate(NotificationIDPrefix)
	n.Status = StatusPending
	n.Attempts = 0
	n.LastError = ""
	n.SentAt = ""
	n.CreatedAt = timestamp(ns.clock)
	if err := ns.queue.Push(ctx, NotificationQueue, n); err != nil {
		return n, fmt.Errorf("service: queue notification: %w", err)
	}
	return n, nil
}

// Deliver archives the notification, hands it to the sender of its channel
// and records the outcome.
func (ns *NotificationService) Deliver(ctx context.Context, n Notification) (Notification, error) {
	if n.ID == "" {
		n.ID = ns.ids.Generate(NotificationIDPrefix)
	}
	if n.CreatedAt == "" {
		n.CreatedAt = timestamp(ns.clock)
	}
	n.Status = StatusPending
	if err := ns.storage.Save(ctx, n); err != nil {
		return n, fmt.Errorf("service: save notification: %w", err)
	}

	n.Attempts++
	sender, ok := ns.senders[n.Channel]
	var err error
	if !ok {
		err = ErrUnknownChannel
	} else {
		err = sender.Send(ctx, n)
	}

	if err != nil {
		n.Status = StatusFailed
		n.LastError = err.Error()
		ns.logger.Error("service: notification delivery failed",
			zap.String("notification.id", n.ID),
			zap.String("notification.channel", n.Channel),
			zap.Error(err),
		)
	} else {
		n.Status = StatusSent
		n.LastError = ""
		n.SentAt = timestamp(ns.clock)
	}
	notificationsProcessed.WithLabelValues(n.Channel, n.Status).Inc()

	if serr := ns.storage.Save(ctx, n); serr != nil {
		return n, fmt.Errorf("service: save notification status: %w", serr)
	}
	return n, err
}

// NotifyEvent informs the administrator about a domain event. The channel is
// inferred from the configured recipient: an url goes to the webhook, an
// address with `@` to the mail relay and anything else to the logs.
func (ns *NotificationService) NotifyEvent(ctx context.Context, event OutboxEvent) error {
	recipient := ns.config.AdminRecipient
	channel := ChannelLog
	switch {
	case strings.HasPrefix(recipient, "http://"), strings.HasPrefix(recipient, "https://"):
		channel = ChannelWebhook
	case strings.Contains(recipient, "@"):
		channel = ChannelEmail
	case recipient == "":
		recipient = "admin"
	}
	n := Notification{
		Recipient: recipient,
		Channel:   channel,
		Subject:   event.Name(),
		Message:   fmt.Sprintf("%s %s %s", event.AggregateType, event.AggregateID, event.EventType),
	}
	_, err := ns.Deliver(ctx, n)
	return err
}

func (ns *NotificationService) GetOne(ctx context.Context, id string) (Notification, error) {
	return ns.storage.Get(ctx, id)
}

func (ns *NotificationService) GetAll(ctx context.Context) ([]Notification, error) {
	return ns.storage.GetAll(ctx)
}
