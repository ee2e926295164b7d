package models

import "time"

const (
	NoteVisibilityPublic  = "public"
	NoteVisibilityPrivate = "private"
)

type Note struct {
	ID         string    `json:"id"`
	TenantID   string    `json:"tenantId"`
	ThreadID   string    `json:"threadId"`
	AuthorID   string    `json:"authorId"`
	Body       string    `json:"body"`
	Visibility string    `json:"visibility"`
	CreatedAt  time.Time `json:"createdAt"`
}

type NoteRepository interface {
	Save(note *Note) error
	GetByThread(tenantID, threadID string) ([]*Note, error)
}
