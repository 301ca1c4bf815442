// Package mqtt connects the studio to an MQTT broker: motion commands go
// out as the playhead reaches timeline blocks, and node properties can be
// set from control topics.
package mqtt

import (
	"errors"
	"log/slog"
	"os"
	"sync"
	"time"

	paho "github.com/eclipse/paho.mqtt.golang"

	"github.com/AaronLay10/Cadence/internal/events"
)

// ErrNotConnected is returned by Publish while the broker is unreachable.
var ErrNotConnected = errors.New("mqtt not connected")

// Broker is the part of the client used by publishers and subscribers.
type Broker interface {
	Publish(topic string, payload []byte) error
	Subscribe(topic string, handler paho.MessageHandler) error
	IsConnected() bool
}

// Client wraps the Paho MQTT client for Cadence.
type Client struct {
	client paho.Client
	url    string
	log    *slog.Logger

	mu   sync.Mutex
	subs map[string]paho.MessageHandler
}

// BrokerURL returns the MQTT broker URL from env or default.
func BrokerURL() string {
	if url := os.Getenv("MQTT_URL"); url != "" {
		return url
	}
	return "tcp://localhost:1883"
}

// NewClient creates a new MQTT client but does not connect. An empty url
// uses BrokerURL.
func NewClient(url, clientID string, log *slog.Logger) *Client {
	if url == "" {
		url = BrokerURL()
	}
	if log == nil {
		log = slog.Default()
	}
	c := &Client{
		url:  url,
		log:  log,
		subs: make(map[string]paho.MessageHandler),
	}

	opts := paho.NewClientOptions().
		AddBroker(url).
		SetClientID(clientID).
		SetAutoReconnect(true).
		SetConnectRetry(true).
		SetConnectRetryInterval(5 * time.Second).
		SetKeepAlive(30 * time.Second).
		SetOnConnectHandler(c.onConnect).
		SetConnectionLostHandler(c.onConnectionLost)

	c.client = paho.NewClient(opts)
	return c
}

// onConnect restores subscriptions after a reconnect; the session is clean.
func (c *Client) onConnect(pc paho.Client) {
	events.Emit("info", "broker.connected", "", map[string]interface{}{"url": c.url})

	c.mu.Lock()
	subs := make(map[string]paho.MessageHandler, len(c.subs))
	for topic, h := range c.subs {
		subs[topic] = h
	}
	c.mu.Unlock()

	for topic, h := range subs {
		token := pc.Subscribe(topic, 1, h)
		if !token.WaitTimeout(10*time.Second) || token.Error() != nil {
			c.log.Warn("mqtt resubscribe failed", "topic", topic, "error", token.Error())
		}
	}
}

func (c *Client) onConnectionLost(_ paho.Client, err error) {
	c.log.Warn("mqtt connection lost", "url", c.url, "error", err)
	events.Emit("warn", "broker.disconnected", "", map[string]interface{}{
		"url":   c.url,
		"error": err.Error(),
	})
}

// Connect attempts to connect to the broker.
// Returns an error if connection fails, but does not block indefinitely.
func (c *Client) Connect() error {
	token := c.client.Connect()
	if !token.WaitTimeout(10 * time.Second) {
		return &ConnectTimeoutError{URL: c.url}
	}
	return token.Error()
}

// Subscribe subscribes to a topic with the given handler. The subscription
// is remembered and restored on reconnect.
func (c *Client) Subscribe(topic string, handler paho.MessageHandler) error {
	c.mu.Lock()
	c.subs[topic] = handler
	c.mu.Unlock()

	token := c.client.Subscribe(topic, 1, handler)
	if !token.WaitTimeout(10 * time.Second) {
		return &SubscribeTimeoutError{Topic: topic}
	}
	return token.Error()
}

// Publish sends payload at QoS 0 without waiting for delivery.
func (c *Client) Publish(topic string, payload []byte) error {
	if !c.client.IsConnected() {
		return ErrNotConnected
	}
	c.client.Publish(topic, 0, false, payload)
	return nil
}

// Disconnect cleanly disconnects from the broker.
func (c *Client) Disconnect() {
	c.client.Disconnect(1000)
}

// IsConnected returns true if the client is connected.
func (c *Client) IsConnected() bool {
	return c.client.IsConnected()
}

// ConnectTimeoutError indicates connection timed out.
type ConnectTimeoutError struct {
	URL string
}

func (e *ConnectTimeoutError) Error() string {
	return "mqtt connect timeout: " + e.URL
}

// SubscribeTimeoutError indicates subscription timed out.
type SubscribeTimeoutError struct {
	Topic string
}

func (e *SubscribeTimeoutError) Error() string {
	return "mqtt subscribe timeout: " + e.Topic
}

// StartWithRetry attempts to connect, logging errors but not crashing. Paho
// keeps retrying in the background. Returns true if connected.
func (c *Client) StartWithRetry() bool {
	if err := c.Connect(); err != nil {
		c.log.Warn("mqtt connect failed", "url", c.url, "error", err)
		return false
	}
	c.log.Info("mqtt connected", "url", c.url)
	return true
}
