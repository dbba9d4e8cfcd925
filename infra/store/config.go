package store

import (
	"fmt"

	"github.com/kilianp07/shopfloor/core/store"
)

// Config selects the plan store backend.
type Config struct {
	// Driver is one of memory, sqlite, postgres or mysql.
	Driver       string `json:"driver"`
	DSN          string `json:"dsn"`
	MaxOpenConns int    `json:"max_open_conns"`
}

// SetDefaults fills zero fields with default values.
func (c *Config) SetDefaults() {
	if c.Driver == "" {
		c.Driver = "memory"
	}
	if c.Driver == "sqlite" && c.MaxOpenConns == 0 {
		c.MaxOpenConns = 1
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	switch c.Driver {
	case "memory":
		return nil
	case "sqlite", "postgres", "mysql":
		if c.DSN == "" {
			return fmt.Errorf("store: dsn required for %s driver", c.Driver)
		}
		return nil
	default:
		return fmt.Errorf("store: unknown driver %q", c.Driver)
	}
}

// Open returns the store described by cfg.
func Open(cfg Config) (store.Store, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if cfg.Driver == "memory" {
		return NewMemoryStore(), nil
	}
	db, err := Connect(cfg.Driver, cfg.DSN, cfg.MaxOpenConns)
	if err != nil {
		return nil, err
	}
	return NewGormStore(db)
}
