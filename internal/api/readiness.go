package api

import (
	"encoding/json"
	"net/http"
	"strings"
	"sync"
)

// readinessState tracks the dependencies /ready reports on. MQTT and
// Postgres may be marked optional when they are disabled in studio.yaml.
type readinessState struct {
	mu                sync.RWMutex
	studioReady       bool
	mqttConnected     bool
	mqttOptional      bool
	postgresConnected bool
	postgresOptional  bool
}

var readiness = &readinessState{}

// SetStudioReady marks whether the graph and playhead are loaded.
func SetStudioReady(ready bool) {
	readiness.mu.Lock()
	defer readiness.mu.Unlock()
	readiness.studioReady = ready
}

// SetMQTTState records broker connectivity.
func SetMQTTState(connected, optional bool) {
	readiness.mu.Lock()
	defer readiness.mu.Unlock()
	readiness.mqttConnected = connected
	readiness.mqttOptional = optional
}

// SetPostgresState records database connectivity.
func SetPostgresState(connected, optional bool) {
	readiness.mu.Lock()
	defer readiness.mu.Unlock()
	readiness.postgresConnected = connected
	readiness.postgresOptional = optional
}

type CheckStatus struct {
	Status   string `json:"status"`
	Optional bool   `json:"optional,omitempty"`
}

type ReadinessResponse struct {
	Ready       bool                   `json:"ready"`
	Checks      map[string]CheckStatus `json:"checks"`
	NotReadyMsg string                 `json:"message,omitempty"`
}

func dependencyCheck(connected, optional bool) (CheckStatus, bool) {
	switch {
	case connected:
		return CheckStatus{Status: "ok", Optional: optional}, true
	case optional:
		return CheckStatus{Status: "unavailable", Optional: true}, true
	default:
		return CheckStatus{Status: "not_ready"}, false
	}
}

func readyHandler(w http.ResponseWriter, r *http.Request) {
	readiness.mu.RLock()
	studioReady := readiness.studioReady
	mqttCheck, mqttOK := dependencyCheck(readiness.mqttConnected, readiness.mqttOptional)
	pgCheck, pgOK := dependencyCheck(readiness.postgresConnected, readiness.postgresOptional)
	readiness.mu.RUnlock()

	resp := ReadinessResponse{
		Ready:  true,
		Checks: make(map[string]CheckStatus, 3),
	}
	var reasons []string

	if studioReady {
		resp.Checks["studio"] = CheckStatus{Status: "ok"}
	} else {
		resp.Checks["studio"] = CheckStatus{Status: "not_ready"}
		reasons = append(reasons, "studio not loaded")
	}
	resp.Checks["mqtt"] = mqttCheck
	if !mqttOK {
		reasons = append(reasons, "mqtt not connected")
	}
	resp.Checks["postgres"] = pgCheck
	if !pgOK {
		reasons = append(reasons, "postgres not connected")
	}

	w.Header().Set("Content-Type", "application/json")
	if len(reasons) > 0 {
		resp.Ready = false
		resp.NotReadyMsg = strings.Join(reasons, "; ")
		w.WriteHeader(http.StatusServiceUnavailable)
	}
	_ = json.NewEncoder(w).Encode(resp)
}
