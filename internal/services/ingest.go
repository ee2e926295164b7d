package services

import (
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"time"
	"unibox/internal/models"
	"unibox/internal/provider"
	"unibox/internal/utils"
	"unibox/internal/wsnotify"
)

const EventWebhookInbound = "webhook.inbound"

const whatsappPrefix = "whatsapp:"

// IngestService turns provider callbacks into inbound messages: signature
// check, contact/thread upsert, message persistence, unread bump, fanout.
type IngestService struct {
	contacts  models.ContactRepository
	threads   models.ThreadRepository
	messages  models.MessageRepository
	events    models.EventLogRepository
	validator provider.Validator
	notifier  Notifier
}

func NewIngestService(
	contacts models.ContactRepository,
	threads models.ThreadRepository,
	messages models.MessageRepository,
	events models.EventLogRepository,
	validator provider.Validator,
	notifier Notifier,
) *IngestService {
	return &IngestService{
		contacts:  contacts,
		threads:   threads,
		messages:  messages,
		events:    events,
		validator: validator,
		notifier:  notifier,
	}
}

// inboundCallback is the parsed provider form payload.
type inboundCallback struct {
	ProviderID string
	From       string
	To         string
	Body       string
	Media      []models.Media
}

func parseCallback(form url.Values) (*inboundCallback, error) {
	cb := &inboundCallback{
		ProviderID: form.Get("MessageSid"),
		From:       form.Get("From"),
		To:         form.Get("To"),
		Body:       form.Get("Body"),
	}
	if cb.ProviderID == "" || cb.From == "" || cb.To == "" {
		return nil, fmt.Errorf("%w: missing MessageSid/From/To", models.ErrMalformedWebhook)
	}

	count, _ := strconv.Atoi(form.Get("NumMedia"))
	for i := 0; i < count; i++ {
		cb.Media = append(cb.Media, models.Media{
			URL:         form.Get(fmt.Sprintf("MediaUrl%d", i)),
			ContentType: form.Get(fmt.Sprintf("MediaContentType%d", i)),
		})
	}
	return cb, nil
}

// Ingest processes one inbound provider callback. A bad signature is a hard
// rejection with zero side effects. Redelivery of an already-ingested
// provider message id is acknowledged as a no-op so the provider stops
// retrying.
func (s *IngestService) Ingest(tenantID string, form url.Values, signature, requestURL string) (*models.Message, error) {
	if !s.validator.ValidateSignature(requestURL, signature, form) {
		return nil, models.ErrSignatureInvalid
	}

	cb, err := parseCallback(form)
	if err != nil {
		return nil, err
	}

	// Channel rides on the address prefix of From.
	channel := models.ChannelSMS
	phone := cb.From
	if strings.HasPrefix(cb.From, whatsappPrefix) {
		channel = models.ChannelWhatsApp
		phone = strings.TrimPrefix(cb.From, whatsappPrefix)
	}

	contact, err := s.contacts.CreateIfNotExists(tenantID, phone)
	if err != nil {
		return nil, err
	}

	thread, err := s.threads.CreateIfNotExists(tenantID, contact.ID, channel)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	message := &models.Message{
		TenantID:   tenantID,
		ThreadID:   thread.ID,
		AuthorID:   nil,
		Channel:    channel,
		Direction:  models.DirectionInbound,
		Body:       cb.Body,
		Media:      cb.Media,
		Status:     models.StatusDelivered,
		ProviderID: &cb.ProviderID,
		SentAt:     &now,
	}

	err = s.messages.Save(message)
	if errors.Is(err, models.ErrStoreConflict) {
		// At-least-once redelivery: already ingested, acknowledge quietly.
		utils.LogDebug("duplicate inbound callback sid=%s", cb.ProviderID)
		return s.messages.GetByProviderID(tenantID, channel, models.DirectionInbound, cb.ProviderID)
	}
	if err != nil {
		return nil, err
	}

	if err := s.threads.BumpInbound(tenantID, thread.ID, now); err != nil {
		utils.LogError("bumping thread counters: %v", err)
	}

	s.notifier.Publish(wsnotify.ThreadTopic(thread.ID), EventMessageCreated, message)

	if err := s.events.Append(tenantID, EventWebhookInbound, map[string]interface{}{
		"id":   message.ID,
		"from": cb.From,
	}); err != nil {
		utils.LogWarning("event log append failed: %v", err)
	}

	return message, nil
}
