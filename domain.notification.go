package main

import "context"

// Notification channels.
const (
	ChannelLog     = "log"
	ChannelWebhook = "webhook"
	ChannelEmail   = "email"
)

// Notification delivery statuses.
const (
	StatusPending = "pending"
	StatusSent    = "sent"
	StatusFailed  = "failed"
)

// Notification is a message to deliver to a recipient over a channel.
type Notification struct {
	ID        string `json:"id"`
	Recipient string `json:"recipient"`
	Channel   string `json:"channel"`
	Subject   string `json:"subject"`
	Message   string `json:"message"`
	Status    string `json:"status"`
	Attempts  int    `json:"attempts"`
	LastError string `json:"lastError,omitempty"`
	CreatedAt string `json:"createdAt"`
	SentAt    string `json:"sentAt,omitempty"`
}

// NotificationStorage archives notifications.
type NotificationStorage interface {
	Save(ctx context.Context, n Notification) error
	Get(ctx context.Context, id string) (Notification, error)
	GetAll(ctx context.Context) ([]Notification, error)
}

// Sender delivers a notification over one channel.
type Sender interface {
	Channel() string
	Send(ctx context.Context, n Notification) error
}
