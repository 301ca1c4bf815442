package mqtt

import (
	"encoding/json"
	"log/slog"
	"time"

	"github.com/AaronLay10/Cadence/internal/events"
)

type motionMessage struct {
	Motion   string  `json:"motion"`
	Offset   float64 `json:"offset"`
	Duration float64 `json:"duration"`
	TS       string  `json:"ts"`
}

// MotionPublisher plays timeline motions by publishing them to
// <prefix>/motion. It satisfies playhead.MotionPlayer.
type MotionPublisher struct {
	broker Broker
	topic  string
	log    *slog.Logger
	now    func() time.Time
}

func NewMotionPublisher(b Broker, prefix string, log *slog.Logger) *MotionPublisher {
	if log == nil {
		log = slog.Default()
	}
	return &MotionPublisher{
		broker: b,
		topic:  prefix + "/motion",
		log:    log,
		now:    time.Now,
	}
}

func (p *MotionPublisher) Topic() string { return p.topic }

// Play publishes the motion command. Failures are logged and reported as
// system.error; playback carries on.
func (p *MotionPublisher) Play(motion string, offset, duration float64) {
	payload, err := json.Marshal(motionMessage{
		Motion:   motion,
		Offset:   offset,
		Duration: duration,
		TS:       p.now().UTC().Format(time.RFC3339Nano),
	})
	if err != nil {
		p.log.Error("encode motion", "motion", motion, "error", err)
		return
	}

	if err := p.broker.Publish(p.topic, payload); err != nil {
		p.log.Warn("motion publish failed", "motion", motion, "topic", p.topic, "error", err)
		events.Emit("warn", "system.error", "motion publish failed", map[string]interface{}{
			"motion": motion,
			"topic":  p.topic,
			"error":  err.Error(),
		})
	}
}
