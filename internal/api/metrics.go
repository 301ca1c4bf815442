package api

import (
	"fmt"
	"net/http"
	"os"
	"sync"
	"time"

	"github.com/AaronLay10/Cadence/internal/events"
	"github.com/AaronLay10/Cadence/internal/version"
)

// StudioStats reports frame and graph counters for /metrics.
type StudioStats interface {
	Frames() int64
	NodeCount() int
}

var metricsState = &MetricsState{}

// MetricsState holds runtime metrics for the /metrics endpoint.
type MetricsState struct {
	mu         sync.RWMutex
	startTime  time.Time
	studioName string
	stats      StudioStats
}

// InitMetrics initializes the metrics system. Must be called at startup.
func InitMetrics(studioName string, stats StudioStats) {
	metricsState.mu.Lock()
	defer metricsState.mu.Unlock()
	metricsState.startTime = time.Now()
	metricsState.studioName = studioName
	metricsState.stats = stats
}

// StudioName returns the name used in metric labels and alerts.
func StudioName() string {
	metricsState.mu.RLock()
	defer metricsState.mu.RUnlock()
	return metricsState.studioName
}

func boolGauge(b bool) int {
	if b {
		return 1
	}
	return 0
}

// metricsHandler returns Prometheus-compatible metrics in text format.
func metricsHandler(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	metricsState.mu.RLock()
	startTime := metricsState.startTime
	studioName := metricsState.studioName
	stats := metricsState.stats
	metricsState.mu.RUnlock()

	readiness.mu.RLock()
	studioReady := readiness.studioReady
	mqttConnected := readiness.mqttConnected
	postgresConnected := readiness.postgresConnected
	readiness.mu.RUnlock()

	var frames int64
	var nodeCount int
	if stats != nil {
		frames = stats.Frames()
		nodeCount = stats.NodeCount()
	}
	var playing bool
	if c := getController(); c != nil {
		playing = c.PlayheadState().Playing
	}

	hostname, _ := os.Hostname()
	if hostname == "" {
		hostname = "unknown"
	}

	w.Header().Set("Content-Type", "text/plain; version=0.0.4; charset=utf-8")

	writeMetric := func(name, mtype, help string, value interface{}, labels string) {
		fmt.Fprintf(w, "# HELP %s %s\n", name, help)
		fmt.Fprintf(w, "# TYPE %s %s\n", name, mtype)
		fmt.Fprintf(w, "%s{%s} %v\n", name, labels, value)
	}

	labels := fmt.Sprintf(`studio="%s",instance="%s",version="%s"`, studioName, hostname, version.Version)

	writeMetric("cadence_uptime_seconds", "gauge",
		"Number of seconds since the engine started", time.Since(startTime).Seconds(), labels)
	writeMetric("cadence_studio_ready", "gauge",
		"Whether the studio is loaded (1) or not (0)", boolGauge(studioReady), labels)
	writeMetric("cadence_playhead_playing", "gauge",
		"Whether the playhead is playing (1) or not (0)", boolGauge(playing), labels)
	writeMetric("cadence_frames_total", "counter",
		"Total number of graph evaluations since startup", frames, labels)
	writeMetric("cadence_graph_nodes", "gauge",
		"Number of nodes in the graph", nodeCount, labels)
	writeMetric("cadence_events_total", "counter",
		"Total number of events emitted since startup", events.TotalCount(), labels)
	writeMetric("cadence_mqtt_connected", "gauge",
		"Whether MQTT broker is connected (1) or not (0)", boolGauge(mqttConnected), labels)
	writeMetric("cadence_postgres_connected", "gauge",
		"Whether PostgreSQL is connected (1) or not (0)", boolGauge(postgresConnected), labels)
	writeMetric("cadence_ws_clients", "gauge",
		"Number of active WebSocket client connections", events.SubscriberCount(), labels)
	writeMetric("cadence_ws_dropped_events_total", "counter",
		"Events dropped for event stream clients that fell behind", events.DroppedCount(), labels)
}
