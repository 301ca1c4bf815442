package events

import (
	"strings"
	"sync"
	"sync/atomic"
)

// subscriberBuffer is how many undelivered events a subscriber may hold
// before new ones are dropped for it.
const subscriberBuffer = 64

// Subscriber receives the events its filter selects.
type Subscriber chan Event

// Filter selects events by name prefix, such as "playhead." or "node.".
// An empty filter selects every event.
type Filter []string

// ParseFilter splits a comma-separated prefix list as given in a
// ?prefix= query parameter. Blank entries are ignored.
func ParseFilter(s string) Filter {
	var f Filter
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			f = append(f, p)
		}
	}
	return f
}

// Match reports whether the event name passes the filter.
func (f Filter) Match(name string) bool {
	if len(f) == 0 {
		return true
	}
	for _, p := range f {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

type subscription struct {
	filter  Filter
	dropped atomic.Uint64
}

var (
	subsMu       sync.RWMutex
	subs         = make(map[Subscriber]*subscription)
	droppedTotal atomic.Uint64
)

// Subscribe registers a subscriber for events whose names start with one of
// prefixes, or for every event when none are given. A subscriber that falls
// subscriberBuffer events behind loses new events instead of blocking Emit.
func Subscribe(prefixes ...string) Subscriber {
	ch := make(Subscriber, subscriberBuffer)
	subsMu.Lock()
	subs[ch] = &subscription{filter: Filter(prefixes)}
	subsMu.Unlock()
	return ch
}

// Unsubscribe removes sub and closes its channel. Removing a subscriber
// twice, or after CloseAllSubscribers, is a no-op.
func Unsubscribe(sub Subscriber) {
	subsMu.Lock()
	defer subsMu.Unlock()
	if _, ok := subs[sub]; ok {
		delete(subs, sub)
		close(sub)
	}
}

// Dropped returns how many events sub missed because it was full.
func Dropped(sub Subscriber) uint64 {
	subsMu.RLock()
	defer subsMu.RUnlock()
	if s, ok := subs[sub]; ok {
		return s.dropped.Load()
	}
	return 0
}

// DroppedCount returns the events dropped across all subscribers since start.
func DroppedCount() uint64 {
	return droppedTotal.Load()
}

func broadcast(e Event) {
	subsMu.RLock()
	defer subsMu.RUnlock()

	for ch, s := range subs {
		if !s.filter.Match(e.Name) {
			continue
		}
		select {
		case ch <- e:
		default:
			s.dropped.Add(1)
			droppedTotal.Add(1)
		}
	}
}

// SubscriberCount returns the current number of subscribers.
func SubscriberCount() int {
	subsMu.RLock()
	defer subsMu.RUnlock()
	return len(subs)
}

// CloseAllSubscribers closes and removes every subscriber. Called on shutdown.
func CloseAllSubscribers() {
	subsMu.Lock()
	defer subsMu.Unlock()
	for ch := range subs {
		close(ch)
		delete(subs, ch)
	}
}

// RecentEvents returns up to the last n buffered events that pass f, oldest
// first. n <= 0 returns every match.
func RecentEvents(n int, f Filter) []Event {
	all := buffer.Snapshot()
	out := make([]Event, 0, len(all))
	for _, e := range all {
		if f.Match(e.Name) {
			out = append(out, e)
		}
	}
	if n <= 0 || n >= len(out) {
		return out
	}
	return out[len(out)-n:]
}
