package wsnotify

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// dialSubscribed spins up a server that subscribes each connection to the
// given topic and returns a connected client.
func dialSubscribed(t *testing.T, manager *Manager, topic string) *websocket.Conn {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := Upgrader().Upgrade(w, r, nil)
		require.NoError(t, err)
		manager.Subscribe(conn, []string{topic})
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestPublishReachesSubscriber(t *testing.T) {
	manager := NewManager()
	topic := ThreadTopic("t1")
	conn := dialSubscribed(t, manager, topic)
	require.Equal(t, 1, manager.SubscriberCount(topic))

	manager.Publish(topic, "message.created", map[string]string{"id": "m1"})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got Event
	require.NoError(t, conn.ReadJSON(&got))
	assert.Equal(t, topic, got.Topic)
	assert.Equal(t, "message.created", got.Type)
	payload, ok := got.Payload.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, "m1", payload["id"])
}

func TestPublishScopedToTopic(t *testing.T) {
	manager := NewManager()
	connA := dialSubscribed(t, manager, ThreadTopic("a"))
	_ = dialSubscribed(t, manager, ThreadTopic("b"))

	manager.Publish(ThreadTopic("a"), "message.created", nil)

	connA.SetReadDeadline(time.Now().Add(2 * time.Second))
	var got Event
	require.NoError(t, connA.ReadJSON(&got))
	assert.Equal(t, ThreadTopic("a"), got.Topic)

	// Nothing was published for topic b.
	assert.Equal(t, 1, manager.SubscriberCount(ThreadTopic("b")))
}

func TestUnsubscribeRemovesTopicEntries(t *testing.T) {
	manager := NewManager()
	topic := ThreadTopic("t2")

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := Upgrader().Upgrade(w, r, nil)
		require.NoError(t, err)
		manager.Subscribe(conn, []string{topic})
		manager.Unsubscribe(conn)
	}))
	t.Cleanup(srv.Close)

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	// The handler unsubscribes synchronously before the dial returns a
	// response, but give the server goroutine a moment regardless.
	deadline := time.Now().Add(2 * time.Second)
	for manager.SubscriberCount(topic) != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	assert.Equal(t, 0, manager.SubscriberCount(topic))
}

func TestPublishDropsClosedConnections(t *testing.T) {
	manager := NewManager()
	topic := ThreadTopic("t3")
	conn := dialSubscribed(t, manager, topic)
	conn.Close()

	// First publish may still succeed at the TCP level; publishing twice
	// guarantees the broken pipe is observed and the subscriber pruned.
	manager.Publish(topic, "message.created", nil)
	deadline := time.Now().Add(2 * time.Second)
	for manager.SubscriberCount(topic) != 0 && time.Now().Before(deadline) {
		manager.Publish(topic, "message.created", nil)
		time.Sleep(10 * time.Millisecond)
	}
	assert.Equal(t, 0, manager.SubscriberCount(topic))
}

func TestThreadTopic(t *testing.T) {
	assert.Equal(t, "thread-abc", ThreadTopic("abc"))
}
