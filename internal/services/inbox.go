package services

import (
	"fmt"
	"unibox/internal/models"
	"unibox/internal/utils"
	"unibox/internal/wsnotify"
)

// InboxService serves the read side of the inbox plus the thread-scoped
// glue operations (notes, mark-read).
type InboxService struct {
	threads  models.ThreadRepository
	messages models.MessageRepository
	notes    models.NoteRepository
	notifier Notifier
}

func NewInboxService(
	threads models.ThreadRepository,
	messages models.MessageRepository,
	notes models.NoteRepository,
	notifier Notifier,
) *InboxService {
	return &InboxService{
		threads:  threads,
		messages: messages,
		notes:    notes,
		notifier: notifier,
	}
}

func (s *InboxService) ListThreads(tenantID string, filter models.ThreadFilter) ([]*models.Thread, error) {
	return s.threads.List(tenantID, filter)
}

// ThreadDetail is a thread with its full message history.
type ThreadDetail struct {
	Thread   *models.Thread    `json:"thread"`
	Messages []*models.Message `json:"messages"`
}

func (s *InboxService) GetThread(tenantID, threadID string) (*ThreadDetail, error) {
	thread, err := s.threads.GetByID(tenantID, threadID)
	if err != nil {
		return nil, err
	}
	if thread == nil {
		return nil, fmt.Errorf("%w: thread %s", models.ErrNotFound, threadID)
	}

	messages, err := s.messages.GetByThread(tenantID, threadID)
	if err != nil {
		return nil, err
	}
	return &ThreadDetail{Thread: thread, Messages: messages}, nil
}

// Sidebar is the contact card plus notes shown next to a thread.
type Sidebar struct {
	Contact *models.Contact `json:"contact"`
	Notes   []*models.Note  `json:"notes"`
}

func (s *InboxService) GetSidebar(tenantID, threadID string) (*Sidebar, error) {
	thread, err := s.threads.GetByID(tenantID, threadID)
	if err != nil {
		return nil, err
	}
	if thread == nil {
		return nil, fmt.Errorf("%w: thread %s", models.ErrNotFound, threadID)
	}

	notes, err := s.notes.GetByThread(tenantID, threadID)
	if err != nil {
		return nil, err
	}
	return &Sidebar{Contact: thread.Contact, Notes: notes}, nil
}

// MarkThreadRead resets the unread counter, the explicit reset trigger the
// UI calls when an agent opens a thread.
func (s *InboxService) MarkThreadRead(tenantID, threadID string) (*models.Thread, error) {
	thread, err := s.threads.GetByID(tenantID, threadID)
	if err != nil {
		return nil, err
	}
	if thread == nil {
		return nil, fmt.Errorf("%w: thread %s", models.ErrNotFound, threadID)
	}

	if err := s.threads.MarkRead(tenantID, threadID); err != nil {
		return nil, err
	}
	thread.UnreadCount = 0
	return thread, nil
}

func (s *InboxService) CreateNote(auth models.Auth, req *models.CreateNoteRequest) (*models.Note, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	thread, err := s.threads.GetByID(auth.TenantID, req.ThreadID)
	if err != nil {
		return nil, err
	}
	if thread == nil {
		return nil, fmt.Errorf("%w: thread %s", models.ErrNotFound, req.ThreadID)
	}

	note := &models.Note{
		TenantID:   auth.TenantID,
		ThreadID:   req.ThreadID,
		AuthorID:   auth.UserID,
		Body:       req.Body,
		Visibility: req.Visibility,
	}
	if err := s.notes.Save(note); err != nil {
		return nil, err
	}

	s.notifier.Publish(wsnotify.ThreadTopic(note.ThreadID), EventNoteCreated, note)
	utils.LogDebug("note created thread=%s", note.ThreadID)
	return note, nil
}
