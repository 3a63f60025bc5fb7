// Command wrangle summarises and enriches tabular data from declarative
// pipeline definitions, and serves the same operations over HTTP.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/141286/SWG-introduction-to-R/internal/config"
	"github.com/141286/SWG-introduction-to-R/internal/infrastructure"
	"github.com/141286/SWG-introduction-to-R/pkg/contracts"
)

// cli is the state shared by every command: configuration, logger and
// telemetry, created once before the command runs.
type cli struct {
	stdout io.Writer
	stderr io.Writer

	configPath string
	logLevel   string

	cfg       *config.Config
	logger    *slog.Logger
	logCloser io.Closer
	providers *infrastructure.OTelProviders
	metrics   *infrastructure.PipelineMetrics
}

func newRootCommand(stdout, stderr io.Writer) *cobra.Command {
	c := &cli{stdout: stdout, stderr: stderr}

	root := &cobra.Command{
		Use:               contracts.ServiceName,
		Short:             "Summarise and enrich tabular data",
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: c.setup,
		PersistentPostRunE: func(cmd *cobra.Command, args []string) error {
			return c.teardown(cmd.Context())
		},
	}
	root.SetOut(stdout)
	root.SetErr(stderr)
	root.PersistentFlags().StringVarP(&c.configPath, "config", "c", "", "config file (default: wrangle.yaml or configs/wrangle.yaml)")
	root.PersistentFlags().StringVar(&c.logLevel, "log-level", "", "override the configured log level")

	addCommands(root, c)
	return root
}

// setup loads the configuration and builds the logger and telemetry.
func (c *cli) setup(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	if c.logLevel != "" {
		cfg.Logging.Level = c.logLevel
	}
	c.cfg = cfg

	// Console logs go to stderr so stdout carries only command output.
	if cfg.Logging.Output == "console" {
		c.logger = infrastructure.NewLoggerWithWriter(c.stderr, cfg.Logging)
	} else {
		logger, closer, err := infrastructure.NewLogger(cfg.Logging)
		if err != nil {
			return err
		}
		c.logger, c.logCloser = logger, closer
	}

	otelCfg := infrastructure.OTelConfigFrom(cfg.Telemetry)
	providers, err := infrastructure.InitializeOTel(otelCfg, c.logger)
	if err != nil {
		return fmt.Errorf("failed to initialize OpenTelemetry: %w", err)
	}
	c.providers = providers

	metrics, err := infrastructure.NewPipelineMetrics(providers.Meter)
	if err != nil {
		return fmt.Errorf("failed to create pipeline metrics: %w", err)
	}
	c.metrics = metrics

	c.logger.DebugContext(cmd.Context(), "command starting",
		slog.String("command", cmd.Name()),
		slog.String("version", contracts.Version))
	return nil
}

func (c *cli) teardown(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if c.providers != nil {
		if err := c.providers.Shutdown(ctx); err != nil {
			c.logger.WarnContext(ctx, "telemetry shutdown failed", slog.String("error", err.Error()))
		}
	}
	if c.logCloser != nil {
		return c.logCloser.Close()
	}
	return nil
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCommand(os.Stdout, os.Stderr).ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(1)
	}
}
