package studio

import (
	"github.com/AaronLay10/Cadence/internal/events"
	"github.com/AaronLay10/Cadence/internal/storage/postgres"
)

// DefaultRestoreLimit is the default number of events to load for restore.
const DefaultRestoreLimit = 1000

// EventQuerier returns the newest persisted events first.
type EventQuerier interface {
	Query(limit int) ([]postgres.EventRow, error)
}

// RestoredPlayhead is the playhead position reconstructed from events.
type RestoredPlayhead struct {
	Time    float64
	Playing bool
}

// RestorePlayhead loads events and replays the playhead.* ones. It returns
// nil if q is nil or no playhead event was found, along with the number of
// rows read.
func RestorePlayhead(q EventQuerier, limit int) (*RestoredPlayhead, int, error) {
	if q == nil {
		return nil, 0, nil
	}
	if limit <= 0 {
		limit = DefaultRestoreLimit
	}

	rows, err := q.Query(limit)
	if err != nil {
		return nil, 0, err
	}
	if len(rows) == 0 {
		return nil, 0, nil
	}

	// Query returns DESC; replay in chronological order.
	for i, j := 0, len(rows)-1; i < j; i, j = i+1, j-1 {
		rows[i], rows[j] = rows[j], rows[i]
	}

	var state *RestoredPlayhead
	for _, row := range rows {
		t, hasTime := row.Fields["time"].(float64)
		switch row.Event {
		case "playhead.started":
			state = ensure(state)
			state.Playing = true
			if hasTime {
				state.Time = t
			}
		case "playhead.stopped":
			state = ensure(state)
			state.Playing = false
			if hasTime {
				state.Time = t
			}
		case "playhead.reset":
			state = ensure(state)
			state.Playing = false
			state.Time = 0
		case "playhead.seeked":
			state = ensure(state)
			if hasTime {
				state.Time = t
			}
		}
	}
	return state, len(rows), nil
}

func ensure(s *RestoredPlayhead) *RestoredPlayhead {
	if s == nil {
		return &RestoredPlayhead{}
	}
	return s
}

// ApplyRestored moves the playhead to the restored position and resumes
// playback if it was playing. It does not emit playhead.* events.
func (s *Studio) ApplyRestored(r *RestoredPlayhead) error {
	if r == nil {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.ph.Seek(r.Time); err != nil {
		return err
	}
	if r.Playing {
		s.ph.Start()
	}
	return nil
}

// EmitRestored emits the playhead.restored event.
func EmitRestored(r *RestoredPlayhead, rows int, studioID string) {
	if r == nil {
		return
	}
	events.Emit("info", "playhead.restored", "", map[string]interface{}{
		"time":      r.Time,
		"playing":   r.Playing,
		"rows":      rows,
		"studio_id": studioID,
	})
}
