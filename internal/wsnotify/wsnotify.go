package wsnotify

import (
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"
)

const writeTimeout = 5 * time.Second

// ThreadTopic names the per-thread fanout topic clients subscribe to.
func ThreadTopic(threadID string) string {
	return "thread-" + threadID
}

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func Upgrader() *websocket.Upgrader {
	return &upgrader
}

// Manager fans events out to websocket subscribers grouped by topic.
// Delivery is fire-and-forget: a slow or broken client is dropped, and
// clients reconcile by re-fetching, never by trusting the stream.
type Manager struct {
	topics map[string]map[*websocket.Conn]bool
	conns  map[*websocket.Conn][]string
	lock   sync.RWMutex
}

func NewManager() *Manager {
	return &Manager{
		topics: make(map[string]map[*websocket.Conn]bool),
		conns:  make(map[*websocket.Conn][]string),
	}
}

func (m *Manager) Subscribe(conn *websocket.Conn, topics []string) {
	m.lock.Lock()
	defer m.lock.Unlock()
	for _, topic := range topics {
		if m.topics[topic] == nil {
			m.topics[topic] = make(map[*websocket.Conn]bool)
		}
		m.topics[topic][conn] = true
	}
	m.conns[conn] = append(m.conns[conn], topics...)
}

func (m *Manager) Unsubscribe(conn *websocket.Conn) {
	m.lock.Lock()
	defer m.lock.Unlock()
	m.removeLocked(conn)
}

func (m *Manager) removeLocked(conn *websocket.Conn) {
	for _, topic := range m.conns[conn] {
		if subs := m.topics[topic]; subs != nil {
			delete(subs, conn)
			if len(subs) == 0 {
				delete(m.topics, topic)
			}
		}
	}
	delete(m.conns, conn)
}

// SubscriberCount reports how many connections follow a topic.
func (m *Manager) SubscriberCount(topic string) int {
	m.lock.RLock()
	defer m.lock.RUnlock()
	return len(m.topics[topic])
}

type Event struct {
	Topic   string      `json:"topic"`
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// Publish broadcasts an event to every subscriber of the topic. No delivery
// or ordering guarantee crosses topics; within a topic events go out in
// call order.
func (m *Manager) Publish(topic, eventType string, payload interface{}) {
	event := Event{Topic: topic, Type: eventType, Payload: payload}

	m.lock.Lock()
	defer m.lock.Unlock()
	for conn := range m.topics[topic] {
		conn.SetWriteDeadline(time.Now().Add(writeTimeout))
		if err := conn.WriteJSON(event); err != nil {
			conn.Close()
			m.removeLocked(conn)
		}
	}
}
