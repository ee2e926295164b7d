package models

import (
	"strings"
	"time"
	"unibox/internal/utils"
)

const maxBodyLength = 2000

type SendMessageRequest struct {
	ContactID  string  `json:"contactId,omitempty" example:"a3f1c2d4-0000-0000-0000-000000000000"`
	ThreadID   string  `json:"threadId,omitempty"`
	Channel    string  `json:"channel" example:"sms" swagger:"required"`
	Body       string  `json:"body" example:"Hello!" swagger:"required"`
	Media      []Media `json:"media,omitempty"`
	ScheduleAt string  `json:"scheduleAt,omitempty" example:"2026-01-02T15:04:05Z"`
}

// Validate checks the request shape and returns the parsed scheduleAt, if
// any. Exactly one of contactId/threadId must be set.
func (r *SendMessageRequest) Validate() (*time.Time, error) {
	if (r.ContactID == "") == (r.ThreadID == "") {
		return nil, ErrInvalidRequest
	}
	if !ValidChannel(r.Channel) {
		return nil, ErrInvalidRequest
	}
	body := strings.TrimSpace(r.Body)
	if body == "" || len(body) > maxBodyLength {
		return nil, ErrInvalidRequest
	}
	for _, m := range r.Media {
		if !utils.IsURL(m.URL) {
			return nil, ErrInvalidRequest
		}
	}
	if r.ScheduleAt == "" {
		return nil, nil
	}
	at, err := time.Parse(time.RFC3339, r.ScheduleAt)
	if err != nil {
		return nil, ErrInvalidRequest
	}
	return &at, nil
}

type CreateNoteRequest struct {
	ThreadID   string `json:"threadId" swagger:"required"`
	Body       string `json:"body" swagger:"required"`
	Visibility string `json:"visibility,omitempty" example:"public"`
}

func (r *CreateNoteRequest) Validate() error {
	if r.ThreadID == "" {
		return ErrInvalidRequest
	}
	body := strings.TrimSpace(r.Body)
	if body == "" || len(body) > maxBodyLength {
		return ErrInvalidRequest
	}
	switch r.Visibility {
	case "":
		r.Visibility = NoteVisibilityPublic
	case NoteVisibilityPublic, NoteVisibilityPrivate:
	default:
		return ErrInvalidRequest
	}
	return nil
}
