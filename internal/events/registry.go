package events

import "fmt"

var allowedEvents = map[string]struct{}{
	// node
	"node.added":            {},
	"node.removed":          {},
	"node.error":            {},
	"node.recovered":        {},
	"node.property_changed": {},

	// graph
	"graph.loaded":       {},
	"graph.saved":        {},
	"graph.connected":    {},
	"graph.disconnected": {},

	// playhead
	"playhead.started":  {},
	"playhead.stopped":  {},
	"playhead.reset":    {},
	"playhead.seeked":   {},
	"playhead.restored": {},

	// motion
	"motion.started": {},
	"motion.ended":   {},

	// backend
	"backend.failed":   {},
	"backend.fallback": {},

	// recorder
	"recorder.started": {},
	"recorder.stopped": {},
	"recorder.error":   {},

	// render
	"render.started":   {},
	"render.completed": {},
	"render.failed":    {},

	// broker
	"broker.connected":    {},
	"broker.disconnected": {},
	"broker.control":      {},

	// system
	"system.startup":  {},
	"system.shutdown": {},
	"system.error":    {},
}

func Validate(event string) error {
	if _, ok := allowedEvents[event]; !ok {
		return fmt.Errorf("unknown event: %s", event)
	}
	return nil
}
