package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/AaronLay10/Cadence/internal/events"
)

// waitFor polls a condition until it returns true or timeout expires.
func waitFor(t *testing.T, timeout time.Duration, condition func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Errorf("timeout waiting for: %s", msg)
}

func dialEvents(t *testing.T, server *httptest.Server) *websocket.Conn {
	t.Helper()
	return dialEventsQuery(t, server, "")
}

func dialEventsQuery(t *testing.T, server *httptest.Server, query string) *websocket.Conn {
	t.Helper()
	wsURL := "ws" + strings.TrimPrefix(server.URL, "http") + query
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("failed to connect: %v", err)
	}
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) events.Event {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("failed to read message: %v", err)
	}
	var e events.Event
	if err := json.Unmarshal(msg, &e); err != nil {
		t.Fatalf("failed to unmarshal event: %v", err)
	}
	return e
}

func TestWebSocketReceivesRecentEvents(t *testing.T) {
	events.Clear()
	for i := 0; i < 5; i++ {
		events.Emit("info", "node.added", "", map[string]interface{}{"i": i})
	}

	server := httptest.NewServer(http.HandlerFunc(wsEventsHandler))
	defer server.Close()
	conn := dialEvents(t, server)
	defer conn.Close()

	for i := 0; i < 5; i++ {
		e := readEvent(t, conn)
		if e.Name != "node.added" {
			t.Errorf("expected 'node.added', got '%s'", e.Name)
		}
		if got := e.Fields["i"]; got != float64(i) {
			t.Errorf("event %d: i = %v", i, got)
		}
	}
}

func TestWebSocketReceivesNewEvents(t *testing.T) {
	events.Clear()

	server := httptest.NewServer(http.HandlerFunc(wsEventsHandler))
	defer server.Close()
	conn := dialEvents(t, server)
	defer conn.Close()

	go func() {
		time.Sleep(50 * time.Millisecond)
		events.Emit("info", "motion.started", "", map[string]interface{}{"block_id": "intro"})
	}()

	e := readEvent(t, conn)
	if e.Name != "motion.started" {
		t.Errorf("expected 'motion.started', got '%s'", e.Name)
	}
	if e.Fields["block_id"] != "intro" {
		t.Errorf("expected block_id 'intro', got '%v'", e.Fields["block_id"])
	}
}

func TestWebSocketDisconnectCleansUp(t *testing.T) {
	events.Clear()
	events.CloseAllSubscribers()

	server := httptest.NewServer(http.HandlerFunc(wsEventsHandler))
	defer server.Close()
	conn := dialEvents(t, server)

	go func() {
		time.Sleep(20 * time.Millisecond)
		events.Emit("info", "graph.connected", "", nil)
	}()
	if e := readEvent(t, conn); e.Name != "graph.connected" {
		t.Errorf("expected 'graph.connected', got '%s'", e.Name)
	}

	conn.Close()

	// New events make the writer notice the closed connection.
	for i := 0; i < 5; i++ {
		events.Emit("info", "graph.connected", "", nil)
		time.Sleep(50 * time.Millisecond)
	}

	waitFor(t, 5*time.Second, func() bool {
		return events.SubscriberCount() == 0
	}, "subscriber count to return to 0 after close")
}

func TestWebSocketMultipleClients(t *testing.T) {
	events.Clear()

	server := httptest.NewServer(http.HandlerFunc(wsEventsHandler))
	defer server.Close()
	conn1 := dialEvents(t, server)
	defer conn1.Close()
	conn2 := dialEvents(t, server)
	defer conn2.Close()

	go func() {
		time.Sleep(50 * time.Millisecond)
		events.Emit("info", "playhead.started", "", map[string]interface{}{"time": 0.0})
	}()

	for i, conn := range []*websocket.Conn{conn1, conn2} {
		if e := readEvent(t, conn); e.Name != "playhead.started" {
			t.Errorf("client%d: expected 'playhead.started', got '%s'", i+1, e.Name)
		}
	}
}

func TestWebSocketPrefixFilter(t *testing.T) {
	events.Clear()
	events.Emit("info", "node.added", "", nil)
	events.Emit("info", "playhead.seeked", "", map[string]interface{}{"time": 4.0})

	server := httptest.NewServer(http.HandlerFunc(wsEventsHandler))
	defer server.Close()
	conn := dialEventsQuery(t, server, "/?prefix=playhead.")
	defer conn.Close()

	if e := readEvent(t, conn); e.Name != "playhead.seeked" {
		t.Fatalf("recent: expected 'playhead.seeked', got '%s'", e.Name)
	}

	go func() {
		time.Sleep(50 * time.Millisecond)
		events.Emit("info", "motion.started", "", nil)
		events.Emit("info", "playhead.stopped", "", nil)
	}()

	if e := readEvent(t, conn); e.Name != "playhead.stopped" {
		t.Errorf("live: expected 'playhead.stopped', got '%s'", e.Name)
	}
}
