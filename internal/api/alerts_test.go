package api

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"
)

func TestDependencyWatch(t *testing.T) {
	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	d := dependencyWatch{event: AlertMQTTDisconnected, name: "MQTT broker", severity: SeverityWarning, delay: 30 * time.Second}

	if p := d.observe(true, start); p != nil {
		t.Errorf("healthy dependency alerted: %+v", p)
	}
	if p := d.observe(false, start); p != nil {
		t.Errorf("alerted before delay: %+v", p)
	}
	if p := d.observe(false, start.Add(29*time.Second)); p != nil {
		t.Errorf("alerted before delay: %+v", p)
	}

	p := d.observe(false, start.Add(31*time.Second))
	if p == nil || p.Severity != SeverityWarning || p.Details["disconnected_seconds"] != 31 {
		t.Fatalf("expected outage alert, got %+v", p)
	}
	if p := d.observe(false, start.Add(60*time.Second)); p != nil {
		t.Errorf("outage alerted twice: %+v", p)
	}

	p = d.observe(true, start.Add(61*time.Second))
	if p == nil || p.Severity != SeverityInfo {
		t.Fatalf("expected recovery alert, got %+v", p)
	}
	if p := d.observe(true, start.Add(62*time.Second)); p != nil {
		t.Errorf("recovery alerted twice: %+v", p)
	}
}

func TestAlerterPostsWebhook(t *testing.T) {
	var (
		mu       sync.Mutex
		received []AlertPayload
	)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var p AlertPayload
		if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
			t.Errorf("decode webhook body: %v", err)
		}
		mu.Lock()
		received = append(received, p)
		mu.Unlock()
	}))
	defer srv.Close()

	t.Setenv("CADENCE_ALERT_WEBHOOK_URL", srv.URL)
	t.Setenv("CADENCE_POSTGRES_ALERT_DELAY", "0s")
	InitMetrics("stage-b", nil)
	setReadiness(true, true, false, false, false)

	a := NewAlerter(nil)
	a.Check(context.Background())

	mu.Lock()
	defer mu.Unlock()
	if len(received) != 1 {
		t.Fatalf("got %d alerts, want 1", len(received))
	}
	got := received[0]
	if got.Event != AlertPostgresUnavailable || got.Severity != SeverityCritical || got.Studio != "stage-b" {
		t.Errorf("unexpected alert %+v", got)
	}
}

func TestAlerterIgnoresOptionalDependencies(t *testing.T) {
	t.Setenv("CADENCE_ALERT_WEBHOOK_URL", "")
	t.Setenv("CADENCE_MQTT_ALERT_DELAY", "0s")
	setReadiness(true, false, true, true, false)

	a := NewAlerter(nil)
	a.Check(context.Background())
	if a.mqtt.alerted {
		t.Error("optional MQTT outage must not alert")
	}
}
