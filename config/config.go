// Package config loads the service configuration from a YAML or JSON file
// with environment variable overrides (prefix SOLBATT_, "__" as the nesting
// separator).
package config

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/solbatt/solbatt/core/metrics"
	"github.com/solbatt/solbatt/core/planner"
	"github.com/solbatt/solbatt/infra/mqtt"
)

// Config aggregates all service settings.
type Config struct {
	Planner planner.Config `json:"planner"`
	Metrics metrics.Config `json:"metrics"`
	MQTT    mqtt.Config    `json:"mqtt"`
	Service ServiceConfig  `json:"service"`
}

// ServiceConfig holds the run loop and API settings.
type ServiceConfig struct {
	SnapshotPath    string `json:"snapshot_path"`
	IntervalMinutes int    `json:"interval_minutes"`
	APIAddr         string `json:"api_addr"`
}

// SetDefaults applies sane defaults for unset values.
func (s *ServiceConfig) SetDefaults() {
	if s.SnapshotPath == "" {
		s.SnapshotPath = "snapshot.json"
	}
	if s.IntervalMinutes == 0 {
		s.IntervalMinutes = 15
	}
	if s.APIAddr == "" {
		s.APIAddr = ":8088"
	}
}

// Validate checks the run loop settings.
func (s ServiceConfig) Validate() error {
	if s.IntervalMinutes < 0 {
		return fmt.Errorf("interval_minutes must not be negative")
	}
	return nil
}

// Load reads the configuration file and applies environment overrides.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	ext := strings.ToLower(filepath.Ext(path))
	var parser koanf.Parser
	switch ext {
	case ".yaml", ".yml":
		parser = yaml.Parser()
	case ".json":
		parser = json.Parser()
	default:
		return nil, fmt.Errorf("unsupported config format: %s", ext)
	}
	if err := k.Load(file.Provider(path), parser); err != nil {
		return nil, err
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("SOLBATT_", ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "solbatt_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.Planner.SetDefaults()
	cfg.MQTT.SetDefaults()
	cfg.Service.SetDefaults()
	if err := cfg.Planner.Validate(); err != nil {
		return nil, err
	}
	if err := cfg.Service.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}
