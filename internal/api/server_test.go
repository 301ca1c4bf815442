package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/AaronLay10/Cadence/internal/graph"
	"github.com/AaronLay10/Cadence/internal/playhead"
	"github.com/AaronLay10/Cadence/internal/studio"
)

var epochForTests = time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

func setReadiness(studioReady, mqttConnected, mqttOptional, pgConnected, pgOptional bool) {
	readiness.mu.Lock()
	readiness.studioReady = studioReady
	readiness.mqttConnected = mqttConnected
	readiness.mqttOptional = mqttOptional
	readiness.postgresConnected = pgConnected
	readiness.postgresOptional = pgOptional
	readiness.mu.Unlock()
}

// newTestStudio installs a studio with two values feeding a math node.
func newTestStudio(t *testing.T) *studio.Studio {
	t.Helper()
	resetAuth()
	s, err := studio.New(studio.Options{
		Blocks: []playhead.Block{{ID: "intro", Motion: "fade", Start: 0, Duration: 2}},
	})
	if err != nil {
		t.Fatalf("studio.New: %v", err)
	}
	err = s.Load(graph.Description{
		Nodes: []graph.NodeDescription{
			{ID: "a", Type: "control/value", Properties: map[string]any{"value": 2.0}},
			{ID: "b", Type: "control/value", Properties: map[string]any{"value": 3.0}},
			{ID: "sum", Type: "control/math"},
		},
		Edges: []graph.EdgeDescription{{From: "a:value", To: "sum:a"}},
	})
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	SetController(s)
	t.Cleanup(func() {
		SetController(nil)
		s.Close()
	})
	return s
}

func do(t *testing.T, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
	}
	w := httptest.NewRecorder()
	NewMux().ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(w.Body).Decode(&v); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	return v
}

func TestHealthEndpoint(t *testing.T) {
	w := do(t, "GET", "/health", "")
	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}
	if resp := decode[HealthResponse](t, w); resp.Status != "ok" || resp.Service != "cadence" {
		t.Errorf("unexpected response %+v", resp)
	}
}

func TestReadyEndpoint(t *testing.T) {
	tests := []struct {
		name                       string
		studio, mqtt, mqttOpt      bool
		pg, pgOpt                  bool
		wantCode                   int
		wantStudio, wantMQTT, want string
	}{
		{"all ready", true, true, false, true, false, http.StatusOK, "ok", "ok", "ok"},
		{"studio not loaded", false, true, false, true, false, http.StatusServiceUnavailable, "not_ready", "ok", "ok"},
		{"optional mqtt down", true, false, true, true, false, http.StatusOK, "ok", "unavailable", "ok"},
		{"required mqtt down", true, false, false, true, false, http.StatusServiceUnavailable, "ok", "not_ready", "ok"},
		{"optional postgres down", true, true, false, false, true, http.StatusOK, "ok", "ok", "unavailable"},
		{"multiple down", false, false, false, true, false, http.StatusServiceUnavailable, "not_ready", "not_ready", "ok"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setReadiness(tt.studio, tt.mqtt, tt.mqttOpt, tt.pg, tt.pgOpt)
			w := do(t, "GET", "/ready", "")
			if w.Code != tt.wantCode {
				t.Errorf("code = %d, want %d", w.Code, tt.wantCode)
			}
			resp := decode[ReadinessResponse](t, w)
			if resp.Ready != (tt.wantCode == http.StatusOK) {
				t.Errorf("ready = %v", resp.Ready)
			}
			if !resp.Ready && resp.NotReadyMsg == "" {
				t.Error("expected a message when not ready")
			}
			if got := resp.Checks["studio"].Status; got != tt.wantStudio {
				t.Errorf("studio = %q, want %q", got, tt.wantStudio)
			}
			if got := resp.Checks["mqtt"].Status; got != tt.wantMQTT {
				t.Errorf("mqtt = %q, want %q", got, tt.wantMQTT)
			}
			if got := resp.Checks["postgres"].Status; got != tt.want {
				t.Errorf("postgres = %q, want %q", got, tt.want)
			}
			if tt.mqttOpt && !resp.Checks["mqtt"].Optional {
				t.Error("expected mqtt optional=true")
			}
		})
	}
}

func TestSetReadinessState(t *testing.T) {
	SetStudioReady(true)
	SetMQTTState(false, true)
	SetPostgresState(true, false)

	readiness.mu.RLock()
	defer readiness.mu.RUnlock()
	if !readiness.studioReady || readiness.mqttConnected || !readiness.mqttOptional ||
		!readiness.postgresConnected || readiness.postgresOptional {
		t.Errorf("unexpected readiness %+v", readiness)
	}
}

func TestGraphEndpoints(t *testing.T) {
	s := newTestStudio(t)

	w := do(t, "GET", "/graph", "")
	if w.Code != http.StatusOK {
		t.Fatalf("GET /graph: %d", w.Code)
	}
	if d := decode[graph.Description](t, w); len(d.Nodes) != 3 || len(d.Edges) != 1 {
		t.Errorf("description has %d nodes, %d edges", len(d.Nodes), len(d.Edges))
	}

	w = do(t, "POST", "/graph/connect", `{"from":"b:value","to":"sum:b"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("connect: %d %s", w.Code, w.Body)
	}
	edge := decode[ConnectResponse](t, w).Edge
	if edge.ID == "" || edge.To.String() != "sum:b" {
		t.Errorf("unexpected edge %+v", edge)
	}

	w = do(t, "POST", "/graph/property", `{"node_id":"sum","property":"operation","value":"multiply"}`)
	if w.Code != http.StatusOK {
		t.Fatalf("property: %d %s", w.Code, w.Body)
	}

	s.Evaluate(t.Context(), epochForTests)

	w = do(t, "GET", "/graph/outputs?node_id=sum", "")
	if w.Code != http.StatusOK {
		t.Fatalf("outputs: %d", w.Code)
	}
	out := decode[map[string]struct {
		Type  string  `json:"type"`
		Value float64 `json:"value"`
	}](t, w)
	if out["result"].Value != 6 {
		t.Errorf("result = %+v, want 6", out["result"])
	}

	w = do(t, "POST", "/graph/disconnect", `{"edge_id":"`+edge.ID+`"}`)
	if w.Code != http.StatusOK {
		t.Errorf("disconnect: %d %s", w.Code, w.Body)
	}

	w = do(t, "POST", "/graph/node", `{"type":"control/lfo","id":"lfo1","position":{"x":1,"y":2}}`)
	if w.Code != http.StatusOK {
		t.Fatalf("add node: %d %s", w.Code, w.Body)
	}
	if got := decode[AddNodeResponse](t, w).NodeID; got != "lfo1" {
		t.Errorf("node id = %q", got)
	}
	w = do(t, "POST", "/graph/node/remove", `{"node_id":"lfo1"}`)
	if w.Code != http.StatusOK {
		t.Errorf("remove node: %d %s", w.Code, w.Body)
	}
}

func TestGraphEndpointErrors(t *testing.T) {
	newTestStudio(t)

	tests := []struct {
		name     string
		method   string
		path     string
		body     string
		wantCode int
	}{
		{"wrong method", "GET", "/graph/property", "", http.StatusMethodNotAllowed},
		{"invalid json", "POST", "/graph/property", "{", http.StatusBadRequest},
		{"missing fields", "POST", "/graph/property", `{"node_id":"sum"}`, http.StatusBadRequest},
		{"unknown node", "POST", "/graph/property", `{"node_id":"x","property":"a","value":1}`, http.StatusNotFound},
		{"unknown property", "POST", "/graph/property", `{"node_id":"sum","property":"nope","value":1}`, http.StatusBadRequest},
		{"invalid value", "POST", "/graph/property", `{"node_id":"sum","property":"operation","value":"xor"}`, http.StatusBadRequest},
		{"missing target", "POST", "/graph/connect", `{"from":"a:value","to":"missing:in"}`, http.StatusNotFound},
		{"unknown port", "POST", "/graph/connect", `{"from":"a:nope","to":"sum:b"}`, http.StatusBadRequest},
		{"cycle", "POST", "/graph/connect", `{"from":"sum:result","to":"sum:a"}`, http.StatusBadRequest},
		{"unknown edge", "POST", "/graph/disconnect", `{"edge_id":"nope"}`, http.StatusNotFound},
		{"unknown type", "POST", "/graph/node", `{"type":"control/nope"}`, http.StatusBadRequest},
		{"unknown outputs", "GET", "/graph/outputs?node_id=nope", "", http.StatusNotFound},
		{"no store", "POST", "/graph/save", `{"name":"x"}`, http.StatusConflict},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, tt.method, tt.path, tt.body)
			if w.Code != tt.wantCode {
				t.Errorf("code = %d, want %d (%s)", w.Code, tt.wantCode, w.Body)
			}
		})
	}
}

func TestPlayheadEndpoints(t *testing.T) {
	newTestStudio(t)

	w := do(t, "POST", "/playhead/seek", `{"time":1.5}`)
	if w.Code != http.StatusOK {
		t.Fatalf("seek: %d %s", w.Code, w.Body)
	}
	if st := decode[playhead.State](t, w); st.Time != 1.5 {
		t.Errorf("time = %v, want 1.5", st.Time)
	}

	w = do(t, "POST", "/playhead/start", "")
	if st := decode[playhead.State](t, w); !st.Playing {
		t.Error("expected playing after start")
	}
	w = do(t, "POST", "/playhead/stop", "")
	if st := decode[playhead.State](t, w); st.Playing {
		t.Error("expected stopped after stop")
	}
	w = do(t, "POST", "/playhead/reset", "")
	if st := decode[playhead.State](t, w); st.Time != 0 {
		t.Errorf("time after reset = %v", st.Time)
	}

	if w := do(t, "POST", "/playhead/seek", `{"time":-1}`); w.Code != http.StatusBadRequest {
		t.Errorf("negative seek: %d", w.Code)
	}
	if w := do(t, "POST", "/playhead/seek", `{}`); w.Code != http.StatusBadRequest {
		t.Errorf("seek without time: %d", w.Code)
	}
	if w := do(t, "GET", "/playhead", ""); w.Code != http.StatusOK {
		t.Errorf("GET /playhead: %d", w.Code)
	}
}

func TestOperatorEndpointsWithoutStudio(t *testing.T) {
	resetAuth()
	SetController(nil)
	if w := do(t, "GET", "/graph", ""); w.Code != http.StatusServiceUnavailable {
		t.Errorf("code = %d, want 503", w.Code)
	}
}

func TestEventsEndpoint(t *testing.T) {
	resetAuth()
	if w := do(t, "GET", "/events", ""); w.Code != http.StatusOK {
		t.Errorf("code = %d", w.Code)
	}
	if w := do(t, "GET", "/events?source=db", ""); w.Code != http.StatusServiceUnavailable {
		t.Errorf("db source without postgres: code = %d, want 503", w.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	s := newTestStudio(t)
	InitMetrics("stage-a", s)
	setReadiness(true, true, false, false, true)
	s.Evaluate(t.Context(), epochForTests)

	w := do(t, "GET", "/metrics", "")
	if w.Code != http.StatusOK {
		t.Fatalf("code = %d", w.Code)
	}
	body := w.Body.String()
	for _, want := range []string{
		`cadence_studio_ready{studio="stage-a"`,
		"cadence_frames_total{",
		"cadence_graph_nodes{",
		"cadence_mqtt_connected{",
		"# TYPE cadence_events_total counter",
		"cadence_ws_dropped_events_total{",
	} {
		if !strings.Contains(body, want) {
			t.Errorf("metrics missing %q", want)
		}
	}
	if !strings.Contains(body, "} 3\n") {
		t.Errorf("expected node count 3 in metrics:\n%s", body)
	}
}
