package events

import (
	"sync"
	"time"

	"github.com/AaronLay10/Cadence/internal/storage/postgres"
)

// persistQueueSize bounds the events waiting for the database. Emit never
// waits for a write: when the queue is full the event is dropped from
// persistence but still buffered and broadcast.
const persistQueueSize = 1024

// Appender persists one event. *postgres.Client implements it.
type Appender interface {
	Append(ts time.Time, level, event, msg string, fields map[string]interface{}) error
}

type record struct {
	ts time.Time
	e  Event
}

type writer struct {
	store Appender
	queue chan record
	done  chan struct{}
}

var (
	pgMu          sync.RWMutex
	pgClient      *postgres.Client
	pgWriter      *writer
	pgErrorLogged bool
	pgDropLogged  bool
)

// SetPostgresClient starts persisting events to client. A nil client stops
// persistence without waiting for queued events.
func SetPostgresClient(client *postgres.Client) {
	if client == nil {
		pgMu.Lock()
		pgClient = nil
		stopWriterLocked()
		pgMu.Unlock()
		return
	}
	pgMu.Lock()
	pgClient = client
	pgMu.Unlock()
	startWriter(client, persistQueueSize)
}

// GetPostgresClient returns the current Postgres client (for API queries).
func GetPostgresClient() *postgres.Client {
	pgMu.RLock()
	defer pgMu.RUnlock()
	return pgClient
}

func startWriter(store Appender, size int) {
	w := &writer{
		store: store,
		queue: make(chan record, size),
		done:  make(chan struct{}),
	}
	pgMu.Lock()
	stopWriterLocked()
	pgWriter = w
	pgErrorLogged = false
	pgDropLogged = false
	pgMu.Unlock()

	go w.run()
}

func (w *writer) run() {
	defer close(w.done)
	for r := range w.queue {
		if err := w.store.Append(r.ts, r.e.Level, r.e.Name, r.e.Message, r.e.Fields); err != nil {
			reportOnce(&pgErrorLogged, "postgres append failed", map[string]interface{}{
				"error": err.Error(),
			})
		}
	}
}

func stopWriterLocked() {
	if pgWriter != nil {
		close(pgWriter.queue)
		pgWriter = nil
	}
}

// persist queues e for the writer, if any.
func persist(ts time.Time, e Event) {
	pgMu.RLock()
	w := pgWriter
	queued := true
	if w != nil {
		select {
		case w.queue <- record{ts: ts, e: e}:
		default:
			queued = false
		}
	}
	pgMu.RUnlock()

	if !queued {
		reportOnce(&pgDropLogged, "postgres queue full, event not persisted", map[string]interface{}{
			"event":    e.Name,
			"capacity": cap(w.queue),
		})
	}
}

// reportOnce records a system.error the first time *flag is set since the
// writer started. It goes straight to the buffer: going through Emit again
// would recurse while Postgres keeps failing.
func reportOnce(flag *bool, msg string, fields map[string]interface{}) {
	pgMu.Lock()
	first := !*flag
	*flag = true
	pgMu.Unlock()
	if !first {
		return
	}
	e := Event{
		Timestamp: time.Now().UTC().Format(time.RFC3339Nano),
		Level:     "error",
		Name:      "system.error",
		Message:   msg,
		Fields:    fields,
	}
	buffer.Add(e)
	broadcast(e)
}

// StopPersistence stops the writer and waits up to timeout for queued
// events to reach the database. It reports whether the queue drained.
func StopPersistence(timeout time.Duration) bool {
	pgMu.Lock()
	w := pgWriter
	stopWriterLocked()
	pgMu.Unlock()
	if w == nil {
		return true
	}
	select {
	case <-w.done:
		return true
	case <-time.After(timeout):
		return false
	}
}
