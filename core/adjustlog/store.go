// Package adjustlog persists the audit trail of schedule changes: urgent
// insertions, cascading shifts, manual moves and status transitions.
package adjustlog

import (
	"context"
	"fmt"
	"time"

	"github.com/kilianp07/shopfloor/core/model"
)

// LogQuery defines filters for retrieving records. Zero fields match all.
type LogQuery struct {
	PlanID  string
	EntryID string
	Kind    model.AdjustmentKind
	Start   time.Time
	End     time.Time
}

func (q LogQuery) match(r model.AdjustmentLog) bool {
	if q.PlanID != "" && r.PlanID != q.PlanID {
		return false
	}
	if q.EntryID != "" && r.EntryID != q.EntryID {
		return false
	}
	if q.Kind != "" && r.Kind != q.Kind {
		return false
	}
	if !q.Start.IsZero() && r.Timestamp.Before(q.Start) {
		return false
	}
	if !q.End.IsZero() && r.Timestamp.After(q.End) {
		return false
	}
	return true
}

// LogStore persists adjustment logs and supports querying.
type LogStore interface {
	Append(ctx context.Context, recs ...model.AdjustmentLog) error
	// Query returns matching records ordered by timestamp.
	Query(ctx context.Context, q LogQuery) ([]model.AdjustmentLog, error)
	// Purge deletes every record of a plan and returns how many were removed.
	Purge(ctx context.Context, planID string) (int, error)
	Close() error
}

// Config selects and configures the log backend.
type Config struct {
	// Backend is one of memory, jsonl or sqlite.
	Backend    string `json:"backend"`
	Path       string `json:"path"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
}

// SetDefaults fills zero fields with default values.
func (c *Config) SetDefaults() {
	if c.Backend == "" {
		c.Backend = "memory"
	}
	if c.MaxSizeMB == 0 {
		c.MaxSizeMB = 10
	}
}

// Validate checks the configuration.
func (c Config) Validate() error {
	switch c.Backend {
	case "memory":
		return nil
	case "jsonl", "sqlite":
		if c.Path == "" {
			return fmt.Errorf("adjustment_log: path required for %s backend", c.Backend)
		}
		return nil
	default:
		return fmt.Errorf("adjustment_log: unknown backend %q", c.Backend)
	}
}

// New opens the store described by cfg.
func New(cfg Config) (LogStore, error) {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	switch cfg.Backend {
	case "jsonl":
		return NewJSONLStore(cfg.Path, cfg.MaxSizeMB, cfg.MaxBackups, cfg.MaxAgeDays)
	case "sqlite":
		return NewSQLiteStore(cfg.Path)
	default:
		return NewMemoryStore(), nil
	}
}
