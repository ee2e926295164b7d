package services

import (
	"context"
	"time"
	"unibox/internal/models"
	"unibox/internal/provider"
	"unibox/internal/utils"
	"unibox/internal/wsnotify"
)

const EventSchedulerDispatched = "scheduler.dispatched"

// SchedulerService drains due scheduled messages through the provider. It
// has no loop of its own: DrainDue is a pure drain-on-call primitive driven
// by an external trigger (HTTP endpoint, CLI, cron), and concurrent
// invocations are safe because each row is claimed atomically before
// dispatch.
type SchedulerService struct {
	threads  models.ThreadRepository
	messages models.MessageRepository
	events   models.EventLogRepository
	sender   provider.Sender
	notifier Notifier
}

func NewSchedulerService(
	threads models.ThreadRepository,
	messages models.MessageRepository,
	events models.EventLogRepository,
	sender provider.Sender,
	notifier Notifier,
) *SchedulerService {
	return &SchedulerService{
		threads:  threads,
		messages: messages,
		events:   events,
		sender:   sender,
		notifier: notifier,
	}
}

// DrainDue dispatches up to limit messages whose scheduledAt has passed,
// earliest due first. Every message is handled independently: a provider
// failure marks that one row failed and the batch moves on.
func (s *SchedulerService) DrainDue(ctx context.Context, now time.Time, limit int) (*models.DrainReport, error) {
	defer utils.TimeTrack(time.Now(), "schedule drain")

	due, err := s.messages.ListDue(now, limit)
	if err != nil {
		return nil, err
	}

	report := &models.DrainReport{Results: make([]models.DrainResult, 0, len(due))}
	for _, m := range due {
		claimed, err := s.messages.Claim(m.ID)
		if err != nil {
			report.Results = append(report.Results, models.DrainResult{ID: m.ID, OK: false, Error: err.Error()})
			continue
		}
		if !claimed {
			// Another drain already took this row.
			continue
		}

		report.Results = append(report.Results, s.dispatchOne(ctx, m))
	}

	report.Processed = len(report.Results)
	return report, nil
}

func (s *SchedulerService) dispatchOne(ctx context.Context, m *models.DueMessage) models.DrainResult {
	result, err := s.sender.Send(ctx, m.Channel, m.ContactPhone, m.Body, m.Media)
	if err != nil {
		if markErr := s.messages.MarkFailed(m.ID); markErr != nil {
			utils.LogError("marking drained message failed: %v", markErr)
		}
		s.finishOne(m, models.StatusFailed, nil)
		return models.DrainResult{ID: m.ID, OK: false, Error: err.Error()}
	}

	sentAt := time.Now().UTC()
	if err := s.messages.MarkSent(m.ID, result.ProviderID, sentAt); err != nil {
		utils.LogError("marking drained message sent: %v", err)
		return models.DrainResult{ID: m.ID, OK: false, Error: err.Error()}
	}

	m.ProviderID = &result.ProviderID
	if err := s.threads.Touch(m.TenantID, m.ThreadID, sentAt); err != nil {
		utils.LogError("advancing thread timestamp: %v", err)
	}
	s.finishOne(m, models.StatusSent, &sentAt)
	return models.DrainResult{ID: m.ID, OK: true}
}

func (s *SchedulerService) finishOne(m *models.DueMessage, status string, sentAt *time.Time) {
	m.Status = status
	if sentAt != nil {
		m.SentAt = sentAt
	}
	s.notifier.Publish(wsnotify.ThreadTopic(m.ThreadID), EventMessageCreated, &m.Message)

	if err := s.events.Append(m.TenantID, EventSchedulerDispatched, map[string]interface{}{
		"id":      m.ID,
		"channel": m.Channel,
		"status":  status,
	}); err != nil {
		utils.LogWarning("event log append failed: %v", err)
	}
}
