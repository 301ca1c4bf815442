package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"

	"github.com/AaronLay10/Cadence/internal/playhead"
)

type StudioConfig struct {
	Version int `yaml:"version"`
	Studio  struct {
		ID          string `yaml:"id"`
		Name        string `yaml:"name"`
		Description string `yaml:"description"`
	} `yaml:"studio"`
	Network struct {
		UIPort int `yaml:"ui_port"`
	} `yaml:"network"`
	Engine struct {
		FPS        int `yaml:"fps"`
		SampleRate int `yaml:"sample_rate"`
	} `yaml:"engine"`
	Backend struct {
		URL      string        `yaml:"url"`
		Timeout  time.Duration `yaml:"timeout"`
		Interval time.Duration `yaml:"interval"`
	} `yaml:"backend"`
	Graph struct {
		Path string `yaml:"path"`
	} `yaml:"graph"`
	Timeline struct {
		Blocks []playhead.Block `yaml:"blocks"`
	} `yaml:"timeline"`
	MQTT struct {
		Enabled     bool   `yaml:"enabled"`
		URL         string `yaml:"url"`
		TopicPrefix string `yaml:"topic_prefix"`
	} `yaml:"mqtt"`
	Postgres struct {
		Enabled bool `yaml:"enabled"`
	} `yaml:"postgres"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

// UIPort returns the configured UI port, defaulting to 8080 if not set.
func (c *StudioConfig) UIPort() int {
	if c.Network.UIPort == 0 {
		return 8080
	}
	return c.Network.UIPort
}

func (c *StudioConfig) FPS() int {
	if c.Engine.FPS <= 0 {
		return 60
	}
	return c.Engine.FPS
}

func (c *StudioConfig) SampleRate() int {
	if c.Engine.SampleRate <= 0 {
		return 44100
	}
	return c.Engine.SampleRate
}

func (c *StudioConfig) BackendTimeout() time.Duration {
	if c.Backend.Timeout <= 0 {
		return 10 * time.Second
	}
	return c.Backend.Timeout
}

// StudioID returns the configured id, defaulting to "default".
func (c *StudioConfig) StudioID() string {
	if c.Studio.ID == "" {
		return "default"
	}
	return c.Studio.ID
}

// TopicPrefix returns the MQTT topic prefix, defaulting to cadence/<studio id>.
func (c *StudioConfig) TopicPrefix() string {
	if c.MQTT.TopicPrefix != "" {
		return c.MQTT.TopicPrefix
	}
	return "cadence/" + c.StudioID()
}

// LoadStudioConfig reads studio.yaml. Environment variables override the
// file: CADENCE_BACKEND_URL, MQTT_URL, CADENCE_LOG_LEVEL and
// CADENCE_LOG_FORMAT. A relative graph path is resolved against the
// directory of the config file.
func LoadStudioConfig(path string) (*StudioConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	var cfg StudioConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, err
	}

	if cfg.Version != 1 {
		return nil, fmt.Errorf("unsupported studio.yaml version: %d", cfg.Version)
	}

	for _, blk := range cfg.Timeline.Blocks {
		if err := blk.Validate(); err != nil {
			return nil, fmt.Errorf("timeline: %w", err)
		}
	}

	applyEnv(&cfg)

	if cfg.Graph.Path != "" {
		p, err := ExpandPath(cfg.Graph.Path)
		if err != nil {
			return nil, fmt.Errorf("graph path: %w", err)
		}
		if !filepath.IsAbs(p) {
			p = filepath.Join(filepath.Dir(path), p)
		}
		cfg.Graph.Path = p
	}

	return &cfg, nil
}

func applyEnv(cfg *StudioConfig) {
	if v := os.Getenv("CADENCE_BACKEND_URL"); v != "" {
		cfg.Backend.URL = v
	}
	if v := os.Getenv("MQTT_URL"); v != "" {
		cfg.MQTT.URL = v
	}
	if v := os.Getenv("CADENCE_LOG_LEVEL"); v != "" {
		cfg.Log.Level = v
	}
	if v := os.Getenv("CADENCE_LOG_FORMAT"); v != "" {
		cfg.Log.Format = v
	}
}

// ExpandPath expands a leading ~ and any $VAR or ${VAR} references.
func ExpandPath(p string) (string, error) {
	return homedir.Expand(os.ExpandEnv(p))
}
