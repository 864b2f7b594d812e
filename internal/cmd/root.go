// Package cmd wires the noderig CLI: graph compilation, job
// submission, progress watching, queue control, and the local HTTP
// facade.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noderig/noderig/internal/config"
	"github.com/noderig/noderig/internal/observability"
	"github.com/noderig/noderig/pkg/engine"
)

// Exit codes, BSD sysexits style.
const (
	ExitOK              = 0
	ExitFailure         = 1
	ExitInvalidArgument = 2
	ExitUnavailable     = 69
	ExitSoftware        = 70
	ExitTimeout         = 75
)

var versionInfo = struct {
	Version   string
	Commit    string
	BuildDate string
}{
	Version:   "dev",
	Commit:    "HEAD",
	BuildDate: "unknown",
}

// SetVersionInfo records build metadata injected via ldflags.
func SetVersionInfo(version, commit, buildDate string) {
	versionInfo.Version = version
	versionInfo.Commit = commit
	versionInfo.BuildDate = buildDate
}

var (
	flagConfig    string
	flagEngineURL string
	flagSession   string
	flagLogLevel  string

	// loadedConfig is populated by the pre-run hook; commands read it
	// instead of calling config.Load themselves.
	loadedConfig *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "noderig",
	Short: "Submit node-graph jobs to an execution server",
	Long: `noderig compiles editor-format node graphs into executable jobs,
submits them to an execution server, tracks their progress, and
manages the artifacts they produce.

Examples:
  noderig compile workflow.json
  noderig submit workflow.json --wait
  noderig watch
  noderig assets list 3f6a9c70 --match 'renders/**'`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var cfg *config.Config
		var err error
		if flagConfig != "" {
			cfg, err = config.LoadFile(cmd.Context(), flagConfig)
		} else {
			cfg, err = config.Load(cmd.Context())
		}
		if err != nil {
			return exitError(ExitInvalidArgument, "Failed to load configuration", err)
		}
		if flagEngineURL != "" {
			cfg.Engine.URL = flagEngineURL
		}
		loadedConfig = cfg

		if err := observability.InitLogging(flagLogLevel, cfg.Logging.Profile); err != nil {
			return exitError(ExitInvalidArgument, "Failed to initialize logging", err)
		}
		return nil
	},
	Version: versionInfo.Version,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagConfig, "config", "", "Path to a config file (default: noderig.yaml in cwd or user config dir)")
	rootCmd.PersistentFlags().StringVar(&flagEngineURL, "engine-url", "", "Execution server URL (overrides config)")
	rootCmd.PersistentFlags().StringVar(&flagSession, "session", "", "Session id for submissions (default: generated)")
	rootCmd.PersistentFlags().StringVar(&flagLogLevel, "log-level", "", "Log level (debug|info|warn|error)")
}

// Execute runs the CLI and returns the process exit code.
func Execute(ctx context.Context) int {
	defer observability.Sync()

	rootCmd.Version = versionInfo.Version
	rootCmd.SetVersionTemplate(fmt.Sprintf(
		"noderig %s (commit %s, built %s)\n",
		versionInfo.Version, versionInfo.Commit, versionInfo.BuildDate))

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		var ee *exitErr
		if errors.As(err, &ee) {
			observability.CLILogger.Error(ee.message, zap.Error(ee.cause))
			return ee.code
		}
		observability.CLILogger.Error("command failed", zap.Error(err))
		return ExitFailure
	}
	return ExitOK
}

// exitErr pairs an error with the process exit code it should produce.
type exitErr struct {
	code    int
	message string
	cause   error
}

func (e *exitErr) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %v", e.message, e.cause)
	}
	return e.message
}

func (e *exitErr) Unwrap() error { return e.cause }

func exitError(code int, message string, cause error) error {
	return &exitErr{code: code, message: message, cause: cause}
}

// newEngineClient builds the execution client from loaded config and
// global flags.
func newEngineClient() (*engine.Client, error) {
	cfg := loadedConfig
	if cfg == nil {
		// PersistentPreRunE always runs first in normal operation;
		// direct test invocation may skip it.
		loaded, err := config.Load(context.Background())
		if err != nil {
			return nil, err
		}
		cfg = loaded
	}
	return engine.New(engine.Config{
		BaseURL:      cfg.Engine.URL,
		SessionID:    flagSession,
		HTTPTimeout:  cfg.Engine.HTTPTimeout,
		PollInterval: cfg.Engine.PollInterval,
		Logger:       observability.CLILogger,
	})
}

// readInput reads a document from a file argument, or stdin when the
// argument is "-".
func readInput(path string) ([]byte, error) {
	if path == "-" {
		return io.ReadAll(os.Stdin)
	}
	return os.ReadFile(path)
}
