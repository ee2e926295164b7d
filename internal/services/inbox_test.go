package services

import (
	"context"
	"testing"
	"unibox/internal/models"
	"unibox/internal/wsnotify"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// sendInbound drives a full inbound callback to set up a thread with one
// unread message.
func sendInbound(t *testing.T, env *testEnv, phone, body string) *models.Message {
	t.Helper()
	form := inboundForm("SM-"+phone+"-"+body, phone, body)
	msg, err := env.ingest(true).Ingest("tenant-a", form, "sig", webhookURL)
	require.NoError(t, err)
	return msg
}

func TestGetThread_ReturnsMessagesInOrder(t *testing.T) {
	env := newTestEnv()
	outcome, err := env.dispatch().Send(context.Background(), authA, &models.SendMessageRequest{
		ContactID: env.seedContact("tenant-a", "+12025551001").ID,
		Channel:   models.ChannelSMS,
		Body:      "first",
	})
	require.NoError(t, err)
	sendInbound(t, env, "+12025551001", "second")

	detail, err := env.inbox().GetThread("tenant-a", outcome.Message.ThreadID)
	require.NoError(t, err)
	require.Len(t, detail.Messages, 2)
	assert.Equal(t, "first", detail.Messages[0].Body)
	assert.Equal(t, "second", detail.Messages[1].Body)
	assert.Equal(t, outcome.Message.ThreadID, detail.Thread.ID)
}

func TestGetThread_UnknownID(t *testing.T) {
	env := newTestEnv()
	_, err := env.inbox().GetThread("tenant-a", "missing")
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestGetThread_OtherTenantIsNotFound(t *testing.T) {
	env := newTestEnv()
	msg := sendInbound(t, env, "+12025551002", "hello")

	_, err := env.inbox().GetThread("tenant-b", msg.ThreadID)
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestMarkThreadRead_ResetsCounter(t *testing.T) {
	env := newTestEnv()
	msg := sendInbound(t, env, "+12025551003", "one")
	sendInbound(t, env, "+12025551003", "two")

	thread, err := env.inbox().MarkThreadRead("tenant-a", msg.ThreadID)
	require.NoError(t, err)
	assert.Equal(t, 0, thread.UnreadCount)

	stored, _ := env.threads.GetByID("tenant-a", msg.ThreadID)
	assert.Equal(t, 0, stored.UnreadCount)
}

func TestMarkThreadRead_IsIdempotent(t *testing.T) {
	env := newTestEnv()
	msg := sendInbound(t, env, "+12025551004", "one")

	_, err := env.inbox().MarkThreadRead("tenant-a", msg.ThreadID)
	require.NoError(t, err)
	_, err = env.inbox().MarkThreadRead("tenant-a", msg.ThreadID)
	assert.NoError(t, err)
}

func TestCreateNote_SavesAndFansOut(t *testing.T) {
	env := newTestEnv()
	msg := sendInbound(t, env, "+12025551005", "hello")
	before := len(env.notifier.published())

	note, err := env.inbox().CreateNote(authA, &models.CreateNoteRequest{
		ThreadID: msg.ThreadID,
		Body:     "follow up tomorrow",
	})
	require.NoError(t, err)
	assert.Equal(t, authA.UserID, note.AuthorID)
	assert.Equal(t, models.NoteVisibilityPublic, note.Visibility)

	events := env.notifier.published()
	require.Len(t, events, before+1)
	last := events[len(events)-1]
	assert.Equal(t, wsnotify.ThreadTopic(msg.ThreadID), last.Topic)
	assert.Equal(t, EventNoteCreated, last.Type)

	sidebar, err := env.inbox().GetSidebar("tenant-a", msg.ThreadID)
	require.NoError(t, err)
	require.Len(t, sidebar.Notes, 1)
	assert.Equal(t, "follow up tomorrow", sidebar.Notes[0].Body)
	require.NotNil(t, sidebar.Contact)
	assert.Equal(t, "+12025551005", sidebar.Contact.Phone)
}

func TestCreateNote_UnknownThread(t *testing.T) {
	env := newTestEnv()
	_, err := env.inbox().CreateNote(authA, &models.CreateNoteRequest{
		ThreadID: "missing",
		Body:     "note",
	})
	assert.ErrorIs(t, err, models.ErrNotFound)
}

func TestCreateNote_RejectsBlankBody(t *testing.T) {
	env := newTestEnv()
	msg := sendInbound(t, env, "+12025551006", "hello")

	_, err := env.inbox().CreateNote(authA, &models.CreateNoteRequest{
		ThreadID: msg.ThreadID,
		Body:     "   ",
	})
	assert.ErrorIs(t, err, models.ErrInvalidRequest)
}

func TestListThreads_FiltersUnread(t *testing.T) {
	env := newTestEnv()
	read := sendInbound(t, env, "+12025551007", "a")
	sendInbound(t, env, "+12025551008", "b")
	_, err := env.inbox().MarkThreadRead("tenant-a", read.ThreadID)
	require.NoError(t, err)

	all, err := env.inbox().ListThreads("tenant-a", models.ThreadFilter{})
	require.NoError(t, err)
	assert.Len(t, all, 2)

	unread, err := env.inbox().ListThreads("tenant-a", models.ThreadFilter{Unread: true})
	require.NoError(t, err)
	require.Len(t, unread, 1)
	assert.NotEqual(t, read.ThreadID, unread[0].ID)
}
