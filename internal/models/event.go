package models

import "time"

// EventLogEntry is an append-only audit record. Writes are best effort and
// never on the critical path; a failed insert is logged and dropped.
type EventLogEntry struct {
	ID        int64       `json:"id"`
	TenantID  string      `json:"tenantId"`
	Type      string      `json:"type"`
	Payload   interface{} `json:"payload"`
	CreatedAt time.Time   `json:"createdAt"`
}

type EventLogRepository interface {
	Append(tenantID, eventType string, payload interface{}) error
}
