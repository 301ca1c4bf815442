package api

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"sync"
	"time"
)

const (
	SeverityCritical = "critical"
	SeverityWarning  = "warning"
	SeverityInfo     = "info"
)

const (
	AlertMQTTDisconnected    = "mqtt_disconnected"
	AlertPostgresUnavailable = "postgres_unavailable"
)

// AlertPayload is the JSON body posted to the webhook.
type AlertPayload struct {
	Studio    string                 `json:"studio"`
	Event     string                 `json:"event"`
	Timestamp string                 `json:"timestamp"`
	Severity  string                 `json:"severity"`
	Message   string                 `json:"message,omitempty"`
	Details   map[string]interface{} `json:"details,omitempty"`
}

// dependencyWatch raises one alert when a dependency stays down for delay
// and one recovery alert when it comes back.
type dependencyWatch struct {
	event    string
	name     string
	severity string
	delay    time.Duration

	downSince time.Time
	alerted   bool
}

// observe returns the alert to send for the current state, if any.
func (d *dependencyWatch) observe(connected bool, now time.Time) *AlertPayload {
	if connected {
		recovered := d.alerted
		d.downSince = time.Time{}
		d.alerted = false
		if !recovered {
			return nil
		}
		return &AlertPayload{
			Event:    d.event,
			Severity: SeverityInfo,
			Message:  d.name + " connection restored",
			Details:  map[string]interface{}{"recovered_at": now.UTC().Format(time.RFC3339)},
		}
	}

	if d.downSince.IsZero() {
		d.downSince = now
	}
	down := now.Sub(d.downSince)
	if d.alerted || down < d.delay {
		return nil
	}
	d.alerted = true
	return &AlertPayload{
		Event:    d.event,
		Severity: d.severity,
		Message:  d.name + " unavailable",
		Details: map[string]interface{}{
			"disconnected_since":   d.downSince.UTC().Format(time.RFC3339),
			"disconnected_seconds": int(down.Seconds()),
		},
	}
}

// Alerter posts dependency outages to CADENCE_ALERT_WEBHOOK_URL. Without a
// webhook alerts are only logged.
type Alerter struct {
	mu       sync.Mutex
	webhook  string
	client   *http.Client
	log      *slog.Logger
	mqtt     dependencyWatch
	postgres dependencyWatch
	now      func() time.Time
}

// NewAlerter reads the webhook URL and the optional CADENCE_MQTT_ALERT_DELAY
// and CADENCE_POSTGRES_ALERT_DELAY durations from the environment.
func NewAlerter(log *slog.Logger) *Alerter {
	if log == nil {
		log = slog.Default()
	}
	return &Alerter{
		webhook: os.Getenv("CADENCE_ALERT_WEBHOOK_URL"),
		client:  &http.Client{Timeout: 10 * time.Second},
		log:     log,
		mqtt: dependencyWatch{
			event:    AlertMQTTDisconnected,
			name:     "MQTT broker",
			severity: SeverityWarning,
			delay:    envDuration("CADENCE_MQTT_ALERT_DELAY", 30*time.Second),
		},
		postgres: dependencyWatch{
			event:    AlertPostgresUnavailable,
			name:     "PostgreSQL",
			severity: SeverityCritical,
			delay:    envDuration("CADENCE_POSTGRES_ALERT_DELAY", 5*time.Second),
		},
		now: time.Now,
	}
}

func envDuration(key string, def time.Duration) time.Duration {
	if s := os.Getenv(key); s != "" {
		if d, err := time.ParseDuration(s); err == nil {
			return d
		}
	}
	return def
}

// Check compares the current readiness flags against the watches. MQTT and
// Postgres that are marked optional and disconnected are not alerted on.
func (a *Alerter) Check(ctx context.Context) {
	readiness.mu.RLock()
	mqttUp := readiness.mqttConnected || readiness.mqttOptional
	pgUp := readiness.postgresConnected || readiness.postgresOptional
	readiness.mu.RUnlock()

	a.mu.Lock()
	now := a.now()
	var pending []*AlertPayload
	if p := a.mqtt.observe(mqttUp, now); p != nil {
		pending = append(pending, p)
	}
	if p := a.postgres.observe(pgUp, now); p != nil {
		pending = append(pending, p)
	}
	a.mu.Unlock()

	for _, p := range pending {
		a.send(ctx, p)
	}
}

func (a *Alerter) send(ctx context.Context, p *AlertPayload) {
	p.Studio = StudioName()
	if p.Studio == "" {
		p.Studio = "unknown"
	}
	p.Timestamp = a.now().UTC().Format(time.RFC3339)

	if a.webhook == "" {
		a.log.Warn("alert", "event", p.Event, "severity", p.Severity, "msg", p.Message, "details", p.Details)
		return
	}
	if err := a.post(ctx, p); err != nil {
		a.log.Warn("alert webhook failed", "event", p.Event, "error", err)
	}
}

func (a *Alerter) post(ctx context.Context, p *AlertPayload) error {
	body, err := json.Marshal(p)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, a.webhook, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := a.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 300 {
		return fmt.Errorf("webhook returned status %d", resp.StatusCode)
	}
	return nil
}

// Run checks every interval until ctx is done.
func (a *Alerter) Run(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.Check(ctx)
		}
	}
}
