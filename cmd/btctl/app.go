package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"github.com/srg/btctl/internal/device"
	"github.com/srg/btctl/internal/discovery"
	"github.com/srg/btctl/internal/dispatch"
	"github.com/srg/btctl/internal/inventory"
	"github.com/srg/btctl/internal/runner"
	"github.com/srg/btctl/internal/store"
	"github.com/srg/btctl/internal/toolpath"
	"github.com/srg/btctl/pkg/config"
)

// runnerFactory creates the external command runner.
// This is a variable so that it can be overridden in tests.
var runnerFactory = func(logger *logrus.Logger) runner.Runner {
	return runner.NewExecRunner(logger)
}

// toolPathResolver resolves the control tool path, "" when it is missing.
// This is a variable so that it can be overridden in tests.
var toolPathResolver = func(cfg *config.Config, logger *logrus.Logger) string {
	path, _ := toolpath.NewResolver(device.ControlToolName, cfg.ControlTool, cfg.ControlToolCandidates, logger).Resolve()
	return path
}

// app wires the components used by every command.
type app struct {
	cfg        *config.Config
	logger     *logrus.Logger
	toolPath   string
	store      *store.Store
	dispatcher *dispatch.Dispatcher
}

func newApp(cmd *cobra.Command) (*app, error) {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}

	logger, err := configureLogger(cmd, cfg)
	if err != nil {
		return nil, err
	}

	r := runnerFactory(logger)
	toolPath := toolPathResolver(cfg, logger)

	source := inventory.NewSource(r, &inventory.SourceOptions{
		Command: cfg.InventoryCommand,
		Buckets: inventory.BucketsFromKeys(cfg.Buckets),
		Locale:  cfg.Locale,
	}, logger)
	session := discovery.NewSession(r, toolPath, source, logger)
	st := store.New(source, session, logger)

	return &app{
		cfg:        cfg,
		logger:     logger,
		toolPath:   toolPath,
		store:      st,
		dispatcher: dispatch.New(r, toolPath, st, cfg.SettleDelay, logger),
	}, nil
}

func loadConfig(cmd *cobra.Command) (*config.Config, error) {
	path, _ := cmd.Flags().GetString("config")
	if path != "" {
		return config.Load(path)
	}

	return config.LoadOrDefault(config.DefaultPath())
}

// requireTool fails before any process is spawned when blueutil is missing.
func (a *app) requireTool() error {
	if a.toolPath == "" {
		return &device.ToolNotFoundError{Tool: device.ControlToolName}
	}
	return nil
}

// commandContext returns a context cancelled by Ctrl+C, SIGTERM, or the
// --timeout flag (falling back to command_timeout from the config).
func (a *app) commandContext(cmd *cobra.Command) (context.Context, context.CancelFunc) {
	timeout := a.cfg.CommandTimeout
	if cmd.Flags().Changed("timeout") {
		timeout, _ = cmd.Flags().GetDuration("timeout")
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	if timeout <= 0 {
		return ctx, stop
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	return ctx, func() {
		cancel()
		stop()
	}
}

// resolveFormat picks the output format from the flag or the config.
func (a *app) resolveFormat(flagValue string) (string, error) {
	format := flagValue
	if format == "" {
		format = a.cfg.OutputFormat
	}
	return format, validateFormat(format)
}

func validateFormat(format string) error {
	for _, valid := range config.ValidOutputFormats {
		if format == valid {
			return nil
		}
	}
	return fmt.Errorf("invalid format '%s': must be one of %v", format, config.ValidOutputFormats)
}
