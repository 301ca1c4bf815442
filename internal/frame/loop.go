// Package frame is the host's per-frame loop. Callbacks scheduled with
// Schedule run once, on the next frame, before the frame handler.
package frame

import (
	"context"
	"errors"
	"sync"
	"time"
)

type callback struct {
	id uint64
	fn func(now time.Time)
}

// Loop collects one-shot callbacks for the next frame.
type Loop struct {
	mu     sync.Mutex
	queue  []callback
	nextID uint64
	frames int64
}

func NewLoop() *Loop {
	return &Loop{}
}

// Schedule queues fn for the next frame. cancel removes it if it has not
// run yet.
func (l *Loop) Schedule(fn func(now time.Time)) (cancel func()) {
	l.mu.Lock()
	l.nextID++
	id := l.nextID
	l.queue = append(l.queue, callback{id: id, fn: fn})
	l.mu.Unlock()

	return func() {
		l.mu.Lock()
		defer l.mu.Unlock()
		for i, cb := range l.queue {
			if cb.id == id {
				l.queue = append(l.queue[:i:i], l.queue[i+1:]...)
				return
			}
		}
	}
}

// Pending returns the number of callbacks waiting for the next frame.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue)
}

// Frames returns how many frames have run.
func (l *Loop) Frames() int64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.frames
}

// RunFrame runs the callbacks queued before it was called. Callbacks they
// schedule wait for the following frame. It returns how many ran.
func (l *Loop) RunFrame(now time.Time) int {
	l.mu.Lock()
	due := l.queue
	l.queue = nil
	l.frames++
	l.mu.Unlock()

	for _, cb := range due {
		cb.fn(now)
	}
	return len(due)
}

// Run drives frames at fps until ctx is done. Each frame runs the scheduled
// callbacks and then onFrame, which may be nil.
func (l *Loop) Run(ctx context.Context, fps int, onFrame func(now time.Time)) error {
	if fps <= 0 {
		return errors.New("frame: fps must be positive")
	}
	ticker := time.NewTicker(time.Second / time.Duration(fps))
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case now := <-ticker.C:
			l.RunFrame(now)
			if onFrame != nil {
				onFrame(now)
			}
		}
	}
}
