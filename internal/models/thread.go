package models

import "time"

// Channel values. A thread never spans channels; the same contact talking
// over SMS and WhatsApp owns two distinct threads.
const (
	ChannelSMS      = "sms"
	ChannelWhatsApp = "whatsapp"
)

func ValidChannel(channel string) bool {
	return channel == ChannelSMS || channel == ChannelWhatsApp
}

type Thread struct {
	ID            string    `json:"id"`
	TenantID      string    `json:"tenantId"`
	ContactID     string    `json:"contactId"`
	Channel       string    `json:"channel"`
	OwnerID       *string   `json:"ownerId"`
	LastMessageAt time.Time `json:"lastMessageAt"`
	UnreadCount   int       `json:"unreadCount"`
	CreatedAt     time.Time `json:"createdAt"`

	Contact *Contact `json:"contact,omitempty"`
}

type ThreadFilter struct {
	Unread    bool
	Scheduled bool
	Channel   string
	Search    string
	Limit     int
}

type ThreadRepository interface {
	Save(thread *Thread) error
	GetByID(tenantID, id string) (*Thread, error)
	// CreateIfNotExists resolves (tenant, contact, channel) to a thread.
	// Concurrent first-sends race on the unique key; the loser re-fetches
	// the winner instead of surfacing the conflict.
	CreateIfNotExists(tenantID, contactID, channel string) (*Thread, error)
	List(tenantID string, filter ThreadFilter) ([]*Thread, error)
	// Touch advances lastMessageAt, never moving it backwards.
	Touch(tenantID, id string, at time.Time) error
	// BumpInbound is the single atomic statement for an inbound message:
	// unread_count+1 plus a monotonic lastMessageAt advance.
	BumpInbound(tenantID, id string, at time.Time) error
	MarkRead(tenantID, id string) error
}
