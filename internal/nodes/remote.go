package nodes

import (
	"context"
	"time"

	"github.com/AaronLay10/Cadence/internal/events"
	"github.com/AaronLay10/Cadence/internal/logging"
	"github.com/AaronLay10/Cadence/internal/node"
)

// remoteMaxAge is how long a backend answer overrides local analysis.
const remoteMaxAge = 5 * time.Second

// remote runs throttled backend calls for one node and remembers the last
// good answer. Failures are reported once per failure streak and otherwise
// leave the node on its local computation.
type remote[T any] struct {
	nodeID string
	path   string

	call     node.Async[T]
	lastSent time.Time
	latest   T
	received time.Time
	failing  bool
}

func newRemote[T any](nodeID, path string) *remote[T] {
	return &remote[T]{nodeID: nodeID, path: path}
}

// poll collects a finished call. ok is true only for a successful answer.
func (r *remote[T]) poll(ctx context.Context, now time.Time) (T, bool) {
	var zero T
	res, done := r.call.Poll()
	if !done {
		return zero, false
	}
	if res.Err != nil {
		if !r.failing {
			r.failing = true
			logging.FromContext(ctx).Warn("backend call failed, using local analysis",
				"node_id", r.nodeID, "path", r.path, "error", res.Err)
			events.Emit("warn", "backend.failed", res.Err.Error(), map[string]interface{}{
				"node_id": r.nodeID,
				"path":    r.path,
				"error":   res.Err.Error(),
			})
		}
		return zero, false
	}
	r.failing = false
	r.latest = res.Value
	r.received = now
	return res.Value, true
}

// fresh returns the last good answer if it is recent enough.
func (r *remote[T]) fresh(now time.Time) (T, bool) {
	if r.received.IsZero() || now.Sub(r.received) > remoteMaxAge {
		var zero T
		return zero, false
	}
	return r.latest, true
}

// maybeStart launches fn unless a call is in flight or one was sent less
// than interval ago.
func (r *remote[T]) maybeStart(ctx context.Context, now time.Time, interval time.Duration, fn func(context.Context) (T, error)) {
	if !r.lastSent.IsZero() && now.Sub(r.lastSent) < interval {
		return
	}
	if r.call.Start(ctx, fn) {
		r.lastSent = now
	}
}

func (r *remote[T]) close() {
	r.call.Close()
}
