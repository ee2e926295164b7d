package services

import (
	"context"
	"fmt"
	"time"
	"unibox/internal/models"
	"unibox/internal/provider"
	"unibox/internal/utils"
	"unibox/internal/wsnotify"
)

// Notifier is the slice of the realtime fanout the services publish to.
type Notifier interface {
	Publish(topic, eventType string, payload interface{})
}

const (
	EventMessageCreated = "message.created"
	EventNoteCreated    = "note.created"
)

// DispatchService owns the outbound message lifecycle: thread resolution,
// provider dispatch, status persistence and event fanout. It holds no state
// across calls; every operation reads, computes and writes through the
// repositories.
type DispatchService struct {
	contacts models.ContactRepository
	threads  models.ThreadRepository
	messages models.MessageRepository
	events   models.EventLogRepository
	sender   provider.Sender
	notifier Notifier
}

func NewDispatchService(
	contacts models.ContactRepository,
	threads models.ThreadRepository,
	messages models.MessageRepository,
	events models.EventLogRepository,
	sender provider.Sender,
	notifier Notifier,
) *DispatchService {
	return &DispatchService{
		contacts: contacts,
		threads:  threads,
		messages: messages,
		events:   events,
		sender:   sender,
		notifier: notifier,
	}
}

// SendOutcome reports what Send persisted. Scheduled is true when the
// message was parked for the drain instead of dispatched.
type SendOutcome struct {
	Message   *models.Message
	Scheduled bool
}

// Send accepts an outbound request addressed by exactly one of contactId or
// threadId. A scheduleAt strictly in the future parks the message as
// scheduled with no provider call; otherwise the provider is invoked and
// the terminal status (sent or failed) is persisted before any event is
// emitted. Failed sends keep their row: the caller gets the error and the
// failure stays visible in the thread.
func (s *DispatchService) Send(ctx context.Context, auth models.Auth, req *models.SendMessageRequest) (*SendOutcome, error) {
	scheduleAt, err := req.Validate()
	if err != nil {
		return nil, err
	}
	now := time.Now().UTC()

	thread, contact, err := s.resolveThread(auth, req)
	if err != nil {
		return nil, err
	}

	message := &models.Message{
		TenantID:  auth.TenantID,
		ThreadID:  thread.ID,
		AuthorID:  &auth.UserID,
		Channel:   req.Channel,
		Direction: models.DirectionOutbound,
		Body:      req.Body,
		Media:     req.Media,
	}

	if scheduleAt != nil && scheduleAt.After(now) {
		message.Status = models.StatusScheduled
		message.ScheduledAt = scheduleAt
		if err := s.messages.Save(message); err != nil {
			return nil, err
		}
		s.notifier.Publish(wsnotify.ThreadTopic(thread.ID), EventMessageCreated, message)
		return &SendOutcome{Message: message, Scheduled: true}, nil
	}

	result, sendErr := s.sender.Send(ctx, req.Channel, contact.Phone, req.Body, req.Media)
	if sendErr != nil {
		// The failed row stays visible; the error still goes to the caller.
		message.Status = models.StatusFailed
		if err := s.messages.Save(message); err != nil {
			utils.LogError("persisting failed message: %v", err)
		} else {
			s.notifier.Publish(wsnotify.ThreadTopic(thread.ID), EventMessageCreated, message)
		}
		return nil, sendErr
	}

	message.Status = models.StatusSent
	message.ProviderID = &result.ProviderID
	message.SentAt = &now
	if err := s.messages.Save(message); err != nil {
		return nil, err
	}

	s.notifier.Publish(wsnotify.ThreadTopic(thread.ID), EventMessageCreated, message)

	if err := s.threads.Touch(auth.TenantID, thread.ID, now); err != nil {
		utils.LogError("advancing thread timestamp: %v", err)
	}
	s.audit(auth.TenantID, EventMessageCreated, map[string]interface{}{
		"id":      message.ID,
		"dir":     models.DirectionOutbound,
		"channel": message.Channel,
	})

	return &SendOutcome{Message: message}, nil
}

// resolveThread loads the thread (with contact) when threadId is given, or
// finds-or-creates the (tenant, contact, channel) thread otherwise.
func (s *DispatchService) resolveThread(auth models.Auth, req *models.SendMessageRequest) (*models.Thread, *models.Contact, error) {
	if req.ThreadID != "" {
		thread, err := s.threads.GetByID(auth.TenantID, req.ThreadID)
		if err != nil {
			return nil, nil, err
		}
		if thread == nil {
			return nil, nil, fmt.Errorf("%w: thread %s", models.ErrNotFound, req.ThreadID)
		}
		return thread, thread.Contact, nil
	}

	contact, err := s.contacts.GetByID(auth.TenantID, req.ContactID)
	if err != nil {
		return nil, nil, err
	}
	if contact == nil {
		return nil, nil, fmt.Errorf("%w: contact %s", models.ErrNotFound, req.ContactID)
	}

	thread, err := s.threads.CreateIfNotExists(auth.TenantID, contact.ID, req.Channel)
	if err != nil {
		return nil, nil, err
	}
	return thread, contact, nil
}

// audit appends a best-effort event-log row. Failures are logged and
// swallowed; they never roll back the operation that produced them.
func (s *DispatchService) audit(tenantID, eventType string, payload interface{}) {
	if err := s.events.Append(tenantID, eventType, payload); err != nil {
		utils.LogWarning("event log append failed: %v", err)
	}
}
