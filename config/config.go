// Package config loads the process configuration from a YAML or JSON file
// with environment overrides.
//
// Environment variables prefixed with K_ override file values; a double
// underscore separates nesting levels, so K_ENGINE__WORK_END_HOUR=17 sets
// engine.work_end_hour.
package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"

	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"

	"github.com/kilianp07/shopfloor/core/adjustlog"
	"github.com/kilianp07/shopfloor/core/engine"
	"github.com/kilianp07/shopfloor/core/metrics"
	"github.com/kilianp07/shopfloor/infra/logger"
	"github.com/kilianp07/shopfloor/infra/monitoring"
	"github.com/kilianp07/shopfloor/infra/mqtt"
	"github.com/kilianp07/shopfloor/infra/store"
	"github.com/kilianp07/shopfloor/infra/telemetry"
)

type Config struct {
	Engine        engine.Config     `json:"engine"`
	Store         store.Config      `json:"store"`
	AdjustmentLog adjustlog.Config  `json:"adjustment_log"`
	Logging       logger.Config     `json:"logging"`
	Metrics       metrics.Config    `json:"metrics"`
	MQTT          mqtt.Config       `json:"mqtt"`
	Sentry        monitoring.Config `json:"sentry"`
	Progress      telemetry.Config  `json:"progress"`
}

// Default returns the configuration used when no file is given.
func Default() *Config {
	cfg := &Config{}
	cfg.SetDefaults()
	return cfg
}

// Load reads path, applies environment overrides, defaults and validation.
// An empty path loads only the environment.
func Load(path string) (*Config, error) {
	k := koanf.New(".")
	if path != "" {
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
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}
	// Optional environment overrides
	if err := k.Load(env.Provider("K_", ".", func(s string) string {
		s = strings.TrimPrefix(strings.ToLower(s), "k_")
		return strings.ReplaceAll(s, "__", ".")
	}), nil); err != nil {
		return nil, err
	}
	var cfg Config
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SetDefaults fills every section.
func (c *Config) SetDefaults() {
	c.Engine.SetDefaults()
	c.Store.SetDefaults()
	c.AdjustmentLog.SetDefaults()
	c.Logging.SetDefaults()
	c.MQTT.SetDefaults()
	c.Progress.SetDefaults(c.MQTT.TopicPrefix)
}

// Validate checks every section and reports all failures together.
func (c Config) Validate() error {
	var errs []error
	if err := c.Engine.Validate(); err != nil {
		errs = append(errs, fmt.Errorf("engine: %w", err))
	}
	errs = append(errs,
		c.Store.Validate(),
		c.AdjustmentLog.Validate(),
		c.Logging.Validate(),
		c.Metrics.Validate(),
		c.MQTT.Validate(),
		c.Sentry.Validate(),
	)
	return errors.Join(errs...)
}
