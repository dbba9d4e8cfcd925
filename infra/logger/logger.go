package logger

import (
	"fmt"
	"io"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"

	corelogger "github.com/kilianp07/shopfloor/core/logger"
)

// Logger mirrors the core logger interface.
type Logger = corelogger.Logger

// NopLogger implements Logger with no-op methods.
type NopLogger = corelogger.Nop

// Config selects the log level, format and optional rotated log file.
type Config struct {
	Level string `json:"level"`
	// Format is "json" or "console". Empty follows APP_ENV: console in dev.
	Format     string `json:"format"`
	File       string `json:"file"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
}

// SetDefaults fills unset fields.
func (c *Config) SetDefaults() {
	if c.Level == "" {
		c.Level = "info"
	}
	if c.Format == "" {
		c.Format = "json"
		if strings.ToLower(os.Getenv("APP_ENV")) == "dev" {
			c.Format = "console"
		}
	}
	if c.File != "" {
		if c.MaxSizeMB == 0 {
			c.MaxSizeMB = 50
		}
		if c.MaxBackups == 0 {
			c.MaxBackups = 5
		}
		if c.MaxAgeDays == 0 {
			c.MaxAgeDays = 30
		}
	}
}

// Validate checks the level and format names.
func (c Config) Validate() error {
	if _, err := zerolog.ParseLevel(c.Level); err != nil {
		return fmt.Errorf("logging level: %w", err)
	}
	switch c.Format {
	case "json", "console":
	default:
		return fmt.Errorf("logging format %q: expected json or console", c.Format)
	}
	return nil
}

var (
	mu   sync.RWMutex
	base = zerolog.New(os.Stdout).With().Timestamp().Logger()
	file io.Closer
)

// Setup configures the output shared by every logger created afterwards.
// Log lines go to stdout and, when cfg.File is set, to a rotated file.
func Setup(cfg Config) error {
	cfg.SetDefaults()
	if err := cfg.Validate(); err != nil {
		return err
	}
	lvl, _ := zerolog.ParseLevel(cfg.Level)

	var out io.Writer = os.Stdout
	if cfg.Format == "console" {
		out = zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339}
	}
	var closer io.Closer
	if cfg.File != "" {
		lj := &lumberjack.Logger{
			Filename:   cfg.File,
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
		}
		out = zerolog.MultiLevelWriter(out, lj)
		closer = lj
	}

	mu.Lock()
	defer mu.Unlock()
	if file != nil {
		_ = file.Close()
	}
	file = closer
	base = zerolog.New(out).Level(lvl).With().Timestamp().Logger()
	return nil
}

// Close releases the log file opened by Setup.
func Close() error {
	mu.Lock()
	defer mu.Unlock()
	if file == nil {
		return nil
	}
	err := file.Close()
	file = nil
	return err
}

// New returns a Logger for the given component.
func New(component string) Logger {
	mu.RLock()
	defer mu.RUnlock()
	return &ZerologLogger{log: base.With().Str("component", component).Logger()}
}
