package models

import "time"

// Message status machine: scheduled -> sending -> sent (drain path),
// scheduled -> sending -> failed, or a direct sent/failed for immediate
// dispatch. "sending" is the transient claim a drain worker takes so two
// concurrent drains never dispatch the same row. "delivered" arrives via
// provider callbacks and is terminal like sent/failed.
const (
	StatusScheduled = "scheduled"
	StatusSending   = "sending"
	StatusSent      = "sent"
	StatusDelivered = "delivered"
	StatusFailed    = "failed"
)

const (
	DirectionInbound  = "inbound"
	DirectionOutbound = "outbound"
)

type Media struct {
	URL         string `json:"url"`
	ContentType string `json:"contentType,omitempty"`
}

type Message struct {
	ID          string     `json:"id"`
	TenantID    string     `json:"tenantId"`
	ThreadID    string     `json:"threadId"`
	AuthorID    *string    `json:"authorId"`
	Channel     string     `json:"channel"`
	Direction   string     `json:"direction"`
	Body        string     `json:"body"`
	Media       []Media    `json:"media,omitempty"`
	Status      string     `json:"status"`
	ProviderID  *string    `json:"providerId"`
	ScheduledAt *time.Time `json:"scheduledAt"`
	SentAt      *time.Time `json:"sentAt"`
	CreatedAt   time.Time  `json:"createdAt"`
}

// DueMessage is a scheduled message joined with the recipient phone the
// drain needs to replay it through the provider.
type DueMessage struct {
	Message
	ContactPhone string `json:"-"`
}

type MessageRepository interface {
	Save(message *Message) error
	GetByID(tenantID, id string) (*Message, error)
	// GetByProviderID resolves a message by its provider id, used to answer
	// redelivered webhooks without inserting twice.
	GetByProviderID(tenantID, channel, direction, providerID string) (*Message, error)
	GetByThread(tenantID, threadID string) ([]*Message, error)
	// ListDue returns scheduled messages with scheduledAt <= now, earliest
	// first, joined with the contact phone.
	ListDue(now time.Time, limit int) ([]*DueMessage, error)
	// Claim conditionally flips scheduled -> sending and reports whether
	// this caller won the row.
	Claim(id string) (bool, error)
	MarkSent(id, providerID string, sentAt time.Time) error
	MarkFailed(id string) error
}
