package config

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// EventbusConfig sizes the in-memory event bus's per-subscriber buffer and
// fan-out worker pool.
type EventbusConfig struct {
	BufferSize    int `yaml:"buffer_size"`
	FanoutWorkers int `yaml:"fanout_workers"`
}

// WorkerPoolConfig sizes the strategy runtime's per-bot dispatch lanes.
type WorkerPoolConfig struct {
	QueueDepth int `yaml:"queue_depth"`
}

// ReconcileConfig controls the signal-to-order pipeline's periodic
// local/venue reconciliation sweep.
type ReconcileConfig struct {
	IntervalSeconds int `yaml:"interval_seconds"`
}

// TelemetryConfig configures the OTLP metrics exporter. An empty
// OTLPEndpoint runs the engine with a no-op meter provider.
type TelemetryConfig struct {
	OTLPEndpoint string `yaml:"otlp_endpoint"`
	ServiceName  string `yaml:"service_name"`
	Insecure     bool   `yaml:"insecure"`
}

// Settings is the engine's top-level configuration, loaded once at startup
// from a YAML file and never mutated afterward — a bot added at runtime
// gets its own BotConfig via the pipeline/runtime APIs, not a config reload.
type Settings struct {
	Environment Environment      `yaml:"environment"`
	Providers   []ProviderConfig `yaml:"providers"`
	RiskDefault RiskDefaults     `yaml:"risk_default"`
	Eventbus    EventbusConfig   `yaml:"eventbus"`
	WorkerPool  WorkerPoolConfig `yaml:"worker_pool"`
	Reconcile   ReconcileConfig  `yaml:"reconcile"`
	Telemetry   TelemetryConfig  `yaml:"telemetry"`
}

// Default returns the baseline settings used when no file is supplied.
func Default() Settings {
	return Settings{
		Environment: EnvDevelopment,
		Eventbus:    EventbusConfig{BufferSize: 256, FanoutWorkers: 4},
		WorkerPool:  WorkerPoolConfig{QueueDepth: 64},
		Reconcile:   ReconcileConfig{IntervalSeconds: 10},
	}
}

// Load reads, parses, normalises, and validates Settings from a YAML file.
func Load(path string) (Settings, error) {
	f, err := os.Open(filepath.Clean(path))
	if err != nil {
		return Settings{}, fmt.Errorf("open config: %w", err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return Settings{}, fmt.Errorf("read config: %w", err)
	}

	cfg := Default()
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return Settings{}, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.normalise()
	if err := cfg.Validate(); err != nil {
		return Settings{}, err
	}
	return cfg, nil
}

// LoadOrDefault loads from path, falling back to Default() when the file
// does not exist (so the engine can start without a mounted config file).
// The boolean reports whether the settings came from the file.
func LoadOrDefault(path string) (Settings, bool, error) {
	cfg, err := Load(path)
	if err == nil {
		return cfg, true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return Default(), false, nil
	}
	return Settings{}, false, err
}

func (c *Settings) normalise() {
	c.Environment = normalizeEnvironment(string(c.Environment))
	if c.Eventbus.BufferSize <= 0 {
		c.Eventbus.BufferSize = 256
	}
	if c.Eventbus.FanoutWorkers <= 0 {
		c.Eventbus.FanoutWorkers = 4
	}
	if c.WorkerPool.QueueDepth <= 0 {
		c.WorkerPool.QueueDepth = 64
	}
	if c.Reconcile.IntervalSeconds <= 0 {
		c.Reconcile.IntervalSeconds = 10
	}
	for i := range c.Providers {
		c.Providers[i].Name = strings.TrimSpace(c.Providers[i].Name)
	}
}

// Validate performs semantic validation beyond what YAML unmarshalling
// guarantees: environment enum membership and per-provider checks.
func (c Settings) Validate() error {
	switch c.Environment {
	case EnvDevelopment, EnvStaging, EnvProduction:
	default:
		return fmt.Errorf("environment must be one of development, staging, production")
	}

	seen := make(map[string]bool, len(c.Providers))
	for _, p := range c.Providers {
		if err := p.validate(); err != nil {
			return err
		}
		if seen[p.Name] {
			return fmt.Errorf("duplicate provider name %q", p.Name)
		}
		seen[p.Name] = true
	}
	return nil
}

// ProviderByName returns the provider config registered under name.
func (c Settings) ProviderByName(name string) (ProviderConfig, bool) {
	for _, p := range c.Providers {
		if p.Name == name {
			return p, true
		}
	}
	return ProviderConfig{}, false
}
