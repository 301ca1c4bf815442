package api

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"

	"github.com/AaronLay10/Cadence/internal/events"
)

const (
	// Number of recent events to send on connection
	recentEventsCount = 50

	writeWait  = 10 * time.Second
	pongWait   = 60 * time.Second
	pingPeriod = 54 * time.Second
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Editors run on other origins; access is gated by basic auth instead.
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// wsEventsHandler streams domain events: the most recent ones first, then
// every new event until the client goes away. ?prefix=playhead.,motion.
// limits the stream to matching event names.
func wsEventsHandler(w http.ResponseWriter, r *http.Request) {
	filter := events.ParseFilter(r.URL.Query().Get("prefix"))

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		slog.Warn("ws upgrade failed", "error", err)
		return
	}

	sub := events.Subscribe(filter...)
	closeAll := func() {
		events.Unsubscribe(sub)
		conn.Close()
	}

	send := func(e events.Event) bool {
		data, err := json.Marshal(e)
		if err != nil {
			return true
		}
		conn.SetWriteDeadline(time.Now().Add(writeWait))
		if err := conn.WriteMessage(websocket.TextMessage, data); err != nil {
			slog.Debug("ws write failed", "error", err)
			return false
		}
		return true
	}

	for _, e := range events.RecentEvents(recentEventsCount, filter) {
		if !send(e) {
			closeAll()
			return
		}
	}

	// The reader only handles pongs and notices the close.
	done := make(chan struct{})
	go func() {
		defer close(done)
		conn.SetReadDeadline(time.Now().Add(pongWait))
		conn.SetPongHandler(func(string) error {
			conn.SetReadDeadline(time.Now().Add(pongWait))
			return nil
		})
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			closeAll()
			return

		case e, ok := <-sub:
			if !ok {
				conn.Close()
				return
			}
			if !send(e) {
				closeAll()
				return
			}

		case <-ticker.C:
			conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				closeAll()
				return
			}
		}
	}
}
