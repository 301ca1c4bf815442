package mqtt

import (
	"encoding/json"
	"log/slog"
	"strings"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/AaronLay10/Cadence/internal/events"
)

// PropertySetter applies a property value to a node.
type PropertySetter interface {
	SetProperty(nodeID, name string, v any) error
}

// ControlSubscriber sets node properties from messages published to
// <prefix>/control/<node_id>/<property>. The payload is a JSON value; a
// payload that is not JSON is used as a plain string.
type ControlSubscriber struct {
	broker Broker
	prefix string
	target PropertySetter
	log    *slog.Logger
}

func NewControlSubscriber(b Broker, prefix string, target PropertySetter, log *slog.Logger) *ControlSubscriber {
	if log == nil {
		log = slog.Default()
	}
	return &ControlSubscriber{broker: b, prefix: prefix, target: target, log: log}
}

// Filter is the topic filter the subscriber listens on.
func (s *ControlSubscriber) Filter() string {
	return s.prefix + "/control/+/+"
}

func (s *ControlSubscriber) Start() error {
	return s.broker.Subscribe(s.Filter(), s.handle)
}

func (s *ControlSubscriber) handle(_ paho.Client, msg paho.Message) {
	topic := msg.Topic()
	nodeID, prop, ok := s.parseTopic(topic)
	if !ok {
		s.log.Warn("ignoring control message", "topic", topic)
		return
	}

	var v any
	if err := json.Unmarshal(msg.Payload(), &v); err != nil {
		v = string(msg.Payload())
	}

	if err := s.target.SetProperty(nodeID, prop, v); err != nil {
		s.log.Warn("control message rejected", "node_id", nodeID, "property", prop, "error", err)
		events.Emit("warn", "system.error", "control message rejected", map[string]interface{}{
			"topic":    topic,
			"node_id":  nodeID,
			"property": prop,
			"error":    err.Error(),
		})
		return
	}

	events.Emit("info", "broker.control", "", map[string]interface{}{
		"topic":    topic,
		"node_id":  nodeID,
		"property": prop,
	})
}

func (s *ControlSubscriber) parseTopic(topic string) (nodeID, prop string, ok bool) {
	rest, found := strings.CutPrefix(topic, s.prefix+"/control/")
	if !found {
		return "", "", false
	}
	parts := strings.Split(rest, "/")
	if len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		return "", "", false
	}
	return parts[0], parts[1], true
}
