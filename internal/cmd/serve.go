package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noderig/noderig/internal/config"
	"github.com/noderig/noderig/internal/observability"
	"github.com/noderig/noderig/internal/server"
	"github.com/noderig/noderig/pkg/assets"
	"github.com/noderig/noderig/pkg/engine"
)

var (
	serveHost string
	servePort int
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Run the local HTTP facade",
	Long: `Run an HTTP server exposing compilation, submission, job status,
asset listing, and preview endpoints over the configured execution
server.

Examples:
  noderig serve
  noderig serve --host 0.0.0.0 --port 9090`,
	Args: cobra.NoArgs,
	RunE: runServe,
}

func init() {
	serveCmd.Flags().StringVar(&serveHost, "host", "", "Listen host (overrides config)")
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Listen port (overrides config)")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	cfg := loadedConfig
	if serveHost != "" {
		cfg.Server.Host = serveHost
	}
	if servePort > 0 {
		cfg.Server.Port = servePort
	}

	log, err := observability.NewLogger(cfg.Logging.Level)
	if err != nil {
		return exitError(ExitInvalidArgument, "Invalid log level", err)
	}
	defer func() { _ = log.Sync() }()

	client, err := engine.New(engine.Config{
		BaseURL:      cfg.Engine.URL,
		SessionID:    flagSession,
		HTTPTimeout:  cfg.Engine.HTTPTimeout,
		PollInterval: cfg.Engine.PollInterval,
		Logger:       log,
	})
	if err != nil {
		return exitError(ExitInvalidArgument, "Invalid engine configuration", err)
	}

	registry := assets.NewRegistry(assets.WithTTL(cfg.Assets.TTL))

	srv, err := server.New(cfg.Server, cfg.Preview, cfg.Engine.URL, server.Deps{
		Engine:     client,
		Registry:   registry,
		Version:    versionInfo.Version,
		Logger:     log,
		OutputRoot: cfg.Assets.OutputRoot,
	})
	if err != nil {
		return exitError(ExitSoftware, "Cannot assemble server", err)
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Start() }()

	log.Info("serving",
		zap.String("host", cfg.Server.Host),
		zap.Int("port", cfg.Server.Port),
		zap.String("engine", cfg.Engine.URL))

	select {
	case err := <-errCh:
		if err != nil {
			return exitError(ExitUnavailable, fmt.Sprintf("Server failed on port %d", cfg.Server.Port), err)
		}
		return nil
	case <-ctx.Done():
	}

	log.Info("shutting down", zap.Duration("timeout", cfg.Server.ShutdownTimeout))
	if err := srv.Shutdown(context.Background(), shutdownTimeout(cfg)); err != nil {
		return exitError(ExitSoftware, "Shutdown did not complete cleanly", err)
	}
	return nil
}

func shutdownTimeout(cfg *config.Config) time.Duration {
	if cfg.Server.ShutdownTimeout > 0 {
		return cfg.Server.ShutdownTimeout
	}
	return 10 * time.Second
}
