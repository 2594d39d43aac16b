package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

type Config struct {
	Server       ServerConfig       `yaml:"server"`
	Regions      []RegionConfig     `yaml:"regions"`
	Thresholds   ThresholdConfig    `yaml:"thresholds"`
	Monitor      MonitorConfig      `yaml:"monitor"`
	Orchestrator OrchestratorConfig `yaml:"orchestrator"`
	Events       EventConfig        `yaml:"events"`
}

type ServerConfig struct {
	Port     int    `yaml:"port" default:"8080"`
	LogLevel string `yaml:"log_level" default:"info"`
}

type RegionConfig struct {
	ID   string `yaml:"id"`
	Role string `yaml:"role"` // "primary" or "standby"
}

// ThresholdConfig holds the failover trigger tunables. These may be
// re-applied at runtime via the config watcher.
type ThresholdConfig struct {
	HealthThreshold       float64       `yaml:"health_threshold" default:"0.7"`
	ResponseTimeThreshold time.Duration `yaml:"response_time_threshold" default:"5s"`
	ConsecutiveFailures   int           `yaml:"consecutive_failures" default:"3"`
}

type MonitorConfig struct {
	HealthCheckInterval time.Duration `yaml:"health_check_interval" default:"30s"`
	EvaluationInterval  time.Duration `yaml:"evaluation_interval" default:"60s"`
	ProbeTimeout        time.Duration `yaml:"probe_timeout" default:"5s"`
	ProbeWorkers        int           `yaml:"probe_workers" default:"4"`
	ProbeRateLimit      float64       `yaml:"probe_rate_limit" default:"20"`
	TickBackoff         time.Duration `yaml:"tick_backoff" default:"15s"`
}

type OrchestratorConfig struct {
	VerifyInterval     time.Duration `yaml:"verify_interval" default:"30s"`
	VerifyTimeout      time.Duration `yaml:"verify_timeout" default:"300s"`
	MaxTasksPerService int           `yaml:"max_tasks_per_service" default:"50"`
}

type EventConfig struct {
	MaxEvents   int    `yaml:"max_events" default:"10"`
	PostgresDSN string `yaml:"postgres_dsn"`
}

// Default returns the standard configuration.
func Default() *Config {
	return &Config{
		Server: ServerConfig{
			Port:     8080,
			LogLevel: "info",
		},
		Thresholds: ThresholdConfig{
			HealthThreshold:       0.7,
			ResponseTimeThreshold: 5 * time.Second,
			ConsecutiveFailures:   3,
		},
		Monitor: MonitorConfig{
			HealthCheckInterval: 30 * time.Second,
			EvaluationInterval:  60 * time.Second,
			ProbeTimeout:        5 * time.Second,
			ProbeWorkers:        4,
			ProbeRateLimit:      20,
			TickBackoff:         15 * time.Second,
		},
		Orchestrator: OrchestratorConfig{
			VerifyInterval:     30 * time.Second,
			VerifyTimeout:      300 * time.Second,
			MaxTasksPerService: 50,
		},
		Events: EventConfig{
			MaxEvents: 10,
		},
	}
}

// LoadFile reads a yaml config file over the defaults.
func LoadFile(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path) // #nosec G304 - operator-supplied path
	if err != nil {
		return nil, fmt.Errorf("read config %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config %s: %w", path, err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks the configuration for structural problems.
func (c *Config) Validate() error {
	if len(c.Regions) < 2 {
		return fmt.Errorf("config: at least two regions required, got %d", len(c.Regions))
	}

	primaries := 0
	seen := make(map[string]bool)
	for _, r := range c.Regions {
		if r.ID == "" {
			return fmt.Errorf("config: region id required")
		}
		if seen[r.ID] {
			return fmt.Errorf("config: duplicate region %s", r.ID)
		}
		seen[r.ID] = true

		switch r.Role {
		case "primary":
			primaries++
		case "standby", "":
		default:
			return fmt.Errorf("config: region %s has invalid role %q", r.ID, r.Role)
		}
	}
	if primaries != 1 {
		return fmt.Errorf("config: exactly one primary region required, got %d", primaries)
	}

	if c.Thresholds.HealthThreshold <= 0 || c.Thresholds.HealthThreshold > 1 {
		return fmt.Errorf("config: health_threshold must be in (0,1], got %v", c.Thresholds.HealthThreshold)
	}
	if c.Thresholds.ConsecutiveFailures < 1 {
		return fmt.Errorf("config: consecutive_failures must be >= 1")
	}

	// Evaluation coarser than health checks, otherwise the engine
	// oscillates on half-refreshed counters.
	if c.Monitor.EvaluationInterval < c.Monitor.HealthCheckInterval {
		return fmt.Errorf("config: evaluation_interval must be >= health_check_interval")
	}
	return nil
}

// PrimaryRegion returns the configured primary region id.
func (c *Config) PrimaryRegion() string {
	for _, r := range c.Regions {
		if r.Role == "primary" {
			return r.ID
		}
	}
	return ""
}
