package handlers

import (
	"net/http"
	"strings"
	"unibox/internal/wsnotify"
)

// WebSocketHandler upgrades the connection and subscribes it to the thread
// topics named in the ?threads= query parameter. The read loop exists only
// to notice the client going away; clients never send application data.
func WebSocketHandler(manager *wsnotify.Manager) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		conn, err := wsnotify.Upgrader().Upgrade(w, r, nil)
		if err != nil {
			return
		}

		var topics []string
		for _, id := range strings.Split(r.URL.Query().Get("threads"), ",") {
			if id = strings.TrimSpace(id); id != "" {
				topics = append(topics, wsnotify.ThreadTopic(id))
			}
		}
		manager.Subscribe(conn, topics)

		defer func() {
			manager.Unsubscribe(conn)
			conn.Close()
		}()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				break
			}
		}
	}
}
