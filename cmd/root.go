package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/kilianp07/shopfloor/app"
	"github.com/kilianp07/shopfloor/config"
	coremon "github.com/kilianp07/shopfloor/core/monitoring"
	"github.com/kilianp07/shopfloor/infra/logger"
	"github.com/kilianp07/shopfloor/infra/monitoring"
)

const flushTimeout = 2 * time.Second

var (
	cfgPath string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:               "shopfloor",
	Short:             "Shop-floor production scheduling",
	SilenceUsage:      true,
	PersistentPreRunE: setup,
	PersistentPostRun: func(*cobra.Command, []string) { teardown() },
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgPath, "config", "c", "", "configuration file (YAML or JSON)")
}

// Execute runs the CLI. Errors reaching the top are reported to the error
// monitor before being returned.
func Execute() error {
	defer coremon.Recover()
	if err := rootCmd.Execute(); err != nil {
		coremon.Capture(err, "cli", "command", commandName())
		teardown()
		return err
	}
	return nil
}

func commandName() string {
	c, _, err := rootCmd.Find(os.Args[1:])
	if err != nil || c == nil {
		return rootCmd.Name()
	}
	return c.Name()
}

func setup(cmd *cobra.Command, _ []string) error {
	var err error
	cfg, err = config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if err := logger.Setup(cfg.Logging); err != nil {
		return fmt.Errorf("logger: %w", err)
	}
	if cfg.Sentry.DSN != "" {
		mon, err := monitoring.NewSentryMonitor(cfg.Sentry)
		if err != nil {
			return fmt.Errorf("sentry: %w", err)
		}
		coremon.Init(mon)
	}
	logger.New("cli").Debugf("running %s", cmd.CommandPath())
	return nil
}

func teardown() {
	coremon.Flush(flushTimeout)
	if err := logger.Close(); err != nil {
		fmt.Fprintf(os.Stderr, "close log file: %v\n", err)
	}
}

// withService opens the service for one command and closes it afterwards.
func withService(cmd *cobra.Command, fn func(ctx context.Context, svc *app.Service) error) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	svc, err := app.New(cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := svc.Close(); err != nil {
			logger.New("cli").Errorf("service close: %v", err)
		}
	}()
	return fn(ctx, svc)
}
