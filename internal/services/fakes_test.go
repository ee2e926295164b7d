package services

import (
	"context"
	"net/url"
	"sort"
	"strconv"
	"sync"
	"time"
	"unibox/internal/models"
	"unibox/internal/provider"

	"github.com/google/uuid"
)

// In-memory repositories mirroring the MySQL ones, including the
// unique-constraint behavior the services rely on.

type memContacts struct {
	mu   sync.Mutex
	rows map[string]*models.Contact // keyed by id
}

func newMemContacts() *memContacts {
	return &memContacts{rows: make(map[string]*models.Contact)}
}

func (m *memContacts) Save(contact *models.Contact) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.rows {
		if c.TenantID == contact.TenantID && c.Phone == contact.Phone {
			return models.ErrStoreConflict
		}
	}
	if contact.ID == "" {
		contact.ID = uuid.NewString()
	}
	contact.CreatedAt = time.Now().UTC()
	contact.UpdatedAt = contact.CreatedAt
	cp := *contact
	m.rows[contact.ID] = &cp
	return nil
}

func (m *memContacts) GetByID(tenantID, id string) (*models.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	c, ok := m.rows[id]
	if !ok || c.TenantID != tenantID {
		return nil, nil
	}
	cp := *c
	return &cp, nil
}

func (m *memContacts) GetByPhone(tenantID, phone string) (*models.Contact, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, c := range m.rows {
		if c.TenantID == tenantID && c.Phone == phone {
			cp := *c
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memContacts) CreateIfNotExists(tenantID, phone string) (*models.Contact, error) {
	if c, _ := m.GetByPhone(tenantID, phone); c != nil {
		return c, nil
	}
	c := &models.Contact{TenantID: tenantID, Phone: phone}
	if err := m.Save(c); err == models.ErrStoreConflict {
		return m.GetByPhone(tenantID, phone)
	}
	return c, nil
}

func (m *memContacts) UpdateName(tenantID, id, name string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.rows[id]; ok && c.TenantID == tenantID {
		c.Name = &name
	}
	return nil
}

type memThreads struct {
	mu   sync.Mutex
	rows map[string]*models.Thread
	// contacts lets GetByID attach the contact like the SQL join does.
	contacts *memContacts
}

func newMemThreads(contacts *memContacts) *memThreads {
	return &memThreads{rows: make(map[string]*models.Thread), contacts: contacts}
}

func (m *memThreads) Save(thread *models.Thread) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, t := range m.rows {
		if t.TenantID == thread.TenantID && t.ContactID == thread.ContactID && t.Channel == thread.Channel {
			return models.ErrStoreConflict
		}
	}
	if thread.ID == "" {
		thread.ID = uuid.NewString()
	}
	thread.CreatedAt = time.Now().UTC()
	if thread.LastMessageAt.IsZero() {
		thread.LastMessageAt = thread.CreatedAt
	}
	cp := *thread
	m.rows[thread.ID] = &cp
	return nil
}

func (m *memThreads) GetByID(tenantID, id string) (*models.Thread, error) {
	m.mu.Lock()
	t, ok := m.rows[id]
	if !ok || t.TenantID != tenantID {
		m.mu.Unlock()
		return nil, nil
	}
	cp := *t
	m.mu.Unlock()
	cp.Contact, _ = m.contacts.GetByID(tenantID, cp.ContactID)
	return &cp, nil
}

func (m *memThreads) getByKey(tenantID, contactID, channel string) (*models.Thread, error) {
	m.mu.Lock()
	var id string
	for _, t := range m.rows {
		if t.TenantID == tenantID && t.ContactID == contactID && t.Channel == channel {
			id = t.ID
			break
		}
	}
	m.mu.Unlock()
	if id == "" {
		return nil, nil
	}
	return m.GetByID(tenantID, id)
}

func (m *memThreads) CreateIfNotExists(tenantID, contactID, channel string) (*models.Thread, error) {
	if t, _ := m.getByKey(tenantID, contactID, channel); t != nil {
		return t, nil
	}
	t := &models.Thread{TenantID: tenantID, ContactID: contactID, Channel: channel}
	if err := m.Save(t); err == models.ErrStoreConflict {
		return m.getByKey(tenantID, contactID, channel)
	}
	return m.GetByID(tenantID, t.ID)
}

func (m *memThreads) List(tenantID string, filter models.ThreadFilter) ([]*models.Thread, error) {
	m.mu.Lock()
	ids := make([]string, 0, len(m.rows))
	for _, t := range m.rows {
		if t.TenantID != tenantID {
			continue
		}
		if filter.Channel != "" && t.Channel != filter.Channel {
			continue
		}
		if filter.Unread && t.UnreadCount == 0 {
			continue
		}
		ids = append(ids, t.ID)
	}
	m.mu.Unlock()

	var out []*models.Thread
	for _, id := range ids {
		t, _ := m.GetByID(tenantID, id)
		out = append(out, t)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].LastMessageAt.After(out[j].LastMessageAt)
	})
	return out, nil
}

func (m *memThreads) Touch(tenantID, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.rows[id]; ok && t.TenantID == tenantID && at.After(t.LastMessageAt) {
		t.LastMessageAt = at
	}
	return nil
}

func (m *memThreads) BumpInbound(tenantID, id string, at time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.rows[id]; ok && t.TenantID == tenantID {
		t.UnreadCount++
		if at.After(t.LastMessageAt) {
			t.LastMessageAt = at
		}
	}
	return nil
}

func (m *memThreads) MarkRead(tenantID, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t, ok := m.rows[id]; ok && t.TenantID == tenantID {
		t.UnreadCount = 0
	}
	return nil
}

type memMessages struct {
	mu       sync.Mutex
	rows     map[string]*models.Message
	threads  *memThreads
	contacts *memContacts
}

func newMemMessages(threads *memThreads, contacts *memContacts) *memMessages {
	return &memMessages{rows: make(map[string]*models.Message), threads: threads, contacts: contacts}
}

func (m *memMessages) Save(message *models.Message) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if message.ProviderID != nil {
		for _, x := range m.rows {
			if x.TenantID == message.TenantID && x.Channel == message.Channel &&
				x.Direction == message.Direction && x.ProviderID != nil &&
				*x.ProviderID == *message.ProviderID {
				return models.ErrStoreConflict
			}
		}
	}
	if message.ID == "" {
		message.ID = uuid.NewString()
	}
	if message.CreatedAt.IsZero() {
		message.CreatedAt = time.Now().UTC()
	}
	cp := *message
	m.rows[message.ID] = &cp
	return nil
}

func (m *memMessages) GetByID(tenantID, id string) (*models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.rows[id]
	if !ok || msg.TenantID != tenantID {
		return nil, nil
	}
	cp := *msg
	return &cp, nil
}

func (m *memMessages) GetByProviderID(tenantID, channel, direction, providerID string) (*models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, msg := range m.rows {
		if msg.TenantID == tenantID && msg.Channel == channel &&
			msg.Direction == direction && msg.ProviderID != nil && *msg.ProviderID == providerID {
			cp := *msg
			return &cp, nil
		}
	}
	return nil, nil
}

func (m *memMessages) GetByThread(tenantID, threadID string) ([]*models.Message, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Message
	for _, msg := range m.rows {
		if msg.TenantID == tenantID && msg.ThreadID == threadID {
			cp := *msg
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	return out, nil
}

func (m *memMessages) ListDue(now time.Time, limit int) ([]*models.DueMessage, error) {
	m.mu.Lock()
	var due []*models.DueMessage
	for _, msg := range m.rows {
		if msg.Status == models.StatusScheduled && msg.ScheduledAt != nil && !msg.ScheduledAt.After(now) {
			cp := *msg
			due = append(due, &models.DueMessage{Message: cp})
		}
	}
	m.mu.Unlock()

	sort.Slice(due, func(i, j int) bool { return due[i].ScheduledAt.Before(*due[j].ScheduledAt) })
	if len(due) > limit {
		due = due[:limit]
	}
	for _, d := range due {
		if t, _ := m.threads.GetByID(d.TenantID, d.ThreadID); t != nil && t.Contact != nil {
			d.ContactPhone = t.Contact.Phone
		}
	}
	return due, nil
}

func (m *memMessages) Claim(id string) (bool, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	msg, ok := m.rows[id]
	if !ok || msg.Status != models.StatusScheduled {
		return false, nil
	}
	msg.Status = models.StatusSending
	return true, nil
}

func (m *memMessages) MarkSent(id, providerID string, sentAt time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if msg, ok := m.rows[id]; ok {
		msg.Status = models.StatusSent
		msg.ProviderID = &providerID
		t := sentAt
		msg.SentAt = &t
	}
	return nil
}

func (m *memMessages) MarkFailed(id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if msg, ok := m.rows[id]; ok {
		msg.Status = models.StatusFailed
	}
	return nil
}

type memNotes struct {
	mu   sync.Mutex
	rows []*models.Note
}

func (m *memNotes) Save(note *models.Note) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if note.ID == "" {
		note.ID = uuid.NewString()
	}
	note.CreatedAt = time.Now().UTC()
	cp := *note
	m.rows = append(m.rows, &cp)
	return nil
}

func (m *memNotes) GetByThread(tenantID, threadID string) ([]*models.Note, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*models.Note
	for _, n := range m.rows {
		if n.TenantID == tenantID && n.ThreadID == threadID {
			cp := *n
			out = append(out, &cp)
		}
	}
	return out, nil
}

type memEvents struct {
	mu   sync.Mutex
	rows []models.EventLogEntry
	err  error
}

func (m *memEvents) Append(tenantID, eventType string, payload interface{}) error {
	if m.err != nil {
		return m.err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.rows = append(m.rows, models.EventLogEntry{TenantID: tenantID, Type: eventType, Payload: payload})
	return nil
}

type sentCall struct {
	Channel string
	To      string
	Body    string
	Media   []models.Media
}

type fakeSender struct {
	mu    sync.Mutex
	calls []sentCall
	// fail returns an error for a given call, nil to succeed.
	fail func(call sentCall) error
	next int
}

func (f *fakeSender) Send(ctx context.Context, channel, to, body string, media []models.Media) (*provider.SendResult, error) {
	call := sentCall{Channel: channel, To: to, Body: body, Media: media}
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.next++
	n := f.next
	f.mu.Unlock()

	if f.fail != nil {
		if err := f.fail(call); err != nil {
			return nil, err
		}
	}
	return &provider.SendResult{ProviderID: "SM" + strconv.Itoa(n) + "-" + uuid.NewString()[:8], ProviderStatus: "queued"}, nil
}

func (f *fakeSender) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.calls)
}

type publishedEvent struct {
	Topic   string
	Type    string
	Payload interface{}
}

type fakeNotifier struct {
	mu     sync.Mutex
	events []publishedEvent
}

func (f *fakeNotifier) Publish(topic, eventType string, payload interface{}) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.events = append(f.events, publishedEvent{Topic: topic, Type: eventType, Payload: payload})
}

func (f *fakeNotifier) published() []publishedEvent {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]publishedEvent(nil), f.events...)
}

type fakeValidator struct {
	valid bool
}

func (f *fakeValidator) ValidateSignature(requestURL, signature string, params url.Values) bool {
	return f.valid
}

// testEnv wires a full in-memory engine.
type testEnv struct {
	contacts *memContacts
	threads  *memThreads
	messages *memMessages
	notes    *memNotes
	events   *memEvents
	sender   *fakeSender
	notifier *fakeNotifier
}

func newTestEnv() *testEnv {
	contacts := newMemContacts()
	threads := newMemThreads(contacts)
	return &testEnv{
		contacts: contacts,
		threads:  threads,
		messages: newMemMessages(threads, contacts),
		notes:    &memNotes{},
		events:   &memEvents{},
		sender:   &fakeSender{},
		notifier: &fakeNotifier{},
	}
}

func (e *testEnv) dispatch() *DispatchService {
	return NewDispatchService(e.contacts, e.threads, e.messages, e.events, e.sender, e.notifier)
}

func (e *testEnv) scheduler() *SchedulerService {
	return NewSchedulerService(e.threads, e.messages, e.events, e.sender, e.notifier)
}

func (e *testEnv) ingest(valid bool) *IngestService {
	return NewIngestService(e.contacts, e.threads, e.messages, e.events, &fakeValidator{valid: valid}, e.notifier)
}

func (e *testEnv) inbox() *InboxService {
	return NewInboxService(e.threads, e.messages, e.notes, e.notifier)
}

// seedContact inserts a contact directly.
func (e *testEnv) seedContact(tenantID, phone string) *models.Contact {
	c, err := e.contacts.CreateIfNotExists(tenantID, phone)
	if err != nil {
		panic(err)
	}
	return c
}
