package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func writeConfig(t *testing.T, body string) string {
	t.Helper()
	dir := t.TempDir()
	path := filepath.Join(dir, "studio.yaml")
	if err := os.WriteFile(path, []byte(body), 0600); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return path
}

func TestLoadStudioConfig(t *testing.T) {
	path := writeConfig(t, `version: 1
studio:
  id: stage-a
  name: Stage A
network:
  ui_port: 9090
engine:
  fps: 30
backend:
  url: http://analysis:8000
  timeout: 3s
  interval: 500ms
graph:
  path: graphs/main.yaml
timeline:
  blocks:
    - id: intro
      motion: fade-in
      start: 0
      duration: 2.5
    - id: drop
      motion: strobe
      start: 2.5
      duration: 4
mqtt:
  enabled: true
  url: tcp://broker:1883
`)

	cfg, err := LoadStudioConfig(path)
	if err != nil {
		t.Fatalf("LoadStudioConfig: %v", err)
	}

	if cfg.StudioID() != "stage-a" {
		t.Errorf("StudioID = %q", cfg.StudioID())
	}
	if cfg.UIPort() != 9090 {
		t.Errorf("UIPort = %d, want 9090", cfg.UIPort())
	}
	if cfg.FPS() != 30 {
		t.Errorf("FPS = %d, want 30", cfg.FPS())
	}
	if cfg.SampleRate() != 44100 {
		t.Errorf("SampleRate = %d, want default 44100", cfg.SampleRate())
	}
	if cfg.BackendTimeout() != 3*time.Second {
		t.Errorf("BackendTimeout = %v", cfg.BackendTimeout())
	}
	if cfg.Backend.Interval != 500*time.Millisecond {
		t.Errorf("Backend.Interval = %v", cfg.Backend.Interval)
	}
	want := filepath.Join(filepath.Dir(path), "graphs/main.yaml")
	if cfg.Graph.Path != want {
		t.Errorf("Graph.Path = %q, want %q", cfg.Graph.Path, want)
	}
	if len(cfg.Timeline.Blocks) != 2 {
		t.Fatalf("got %d blocks, want 2", len(cfg.Timeline.Blocks))
	}
	if b := cfg.Timeline.Blocks[1]; b.ID != "drop" || b.Start != 2.5 || b.Duration != 4 {
		t.Errorf("unexpected block %+v", b)
	}
	if cfg.TopicPrefix() != "cadence/stage-a" {
		t.Errorf("TopicPrefix = %q", cfg.TopicPrefix())
	}
}

func TestLoadStudioConfig_Defaults(t *testing.T) {
	path := writeConfig(t, "version: 1\n")

	cfg, err := LoadStudioConfig(path)
	if err != nil {
		t.Fatalf("LoadStudioConfig: %v", err)
	}
	if cfg.UIPort() != 8080 {
		t.Errorf("UIPort = %d, want 8080", cfg.UIPort())
	}
	if cfg.FPS() != 60 {
		t.Errorf("FPS = %d, want 60", cfg.FPS())
	}
	if cfg.StudioID() != "default" {
		t.Errorf("StudioID = %q, want default", cfg.StudioID())
	}
	if cfg.BackendTimeout() != 10*time.Second {
		t.Errorf("BackendTimeout = %v", cfg.BackendTimeout())
	}
}

func TestLoadStudioConfig_EnvOverrides(t *testing.T) {
	path := writeConfig(t, `version: 1
backend:
  url: http://file:8000
mqtt:
  url: tcp://file:1883
`)
	t.Setenv("CADENCE_BACKEND_URL", "http://env:9000")
	t.Setenv("MQTT_URL", "tcp://env:1883")
	t.Setenv("CADENCE_LOG_LEVEL", "debug")

	cfg, err := LoadStudioConfig(path)
	if err != nil {
		t.Fatalf("LoadStudioConfig: %v", err)
	}
	if cfg.Backend.URL != "http://env:9000" {
		t.Errorf("Backend.URL = %q", cfg.Backend.URL)
	}
	if cfg.MQTT.URL != "tcp://env:1883" {
		t.Errorf("MQTT.URL = %q", cfg.MQTT.URL)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Log.Level = %q", cfg.Log.Level)
	}
}

func TestLoadStudioConfig_Errors(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"wrong version", "version: 2\n"},
		{"missing version", "studio:\n  id: x\n"},
		{"bad yaml", "version: [1\n"},
		{"invalid block", "version: 1\ntimeline:\n  blocks:\n    - id: a\n      motion: m\n      start: 0\n      duration: 0\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := LoadStudioConfig(writeConfig(t, tt.body)); err == nil {
				t.Error("expected error")
			}
		})
	}

	if _, err := LoadStudioConfig(filepath.Join(t.TempDir(), "missing.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestExpandPath(t *testing.T) {
	t.Setenv("CADENCE_TEST_DIR", "/srv/cadence")

	got, err := ExpandPath("$CADENCE_TEST_DIR/graph.json")
	if err != nil {
		t.Fatalf("ExpandPath: %v", err)
	}
	if got != "/srv/cadence/graph.json" {
		t.Errorf("got %q", got)
	}

	got, err = ExpandPath("~/graph.json")
	if err != nil {
		t.Fatalf("ExpandPath: %v", err)
	}
	if got == "~/graph.json" || !filepath.IsAbs(got) {
		t.Errorf("tilde not expanded: %q", got)
	}
}
