package cmd

import (
	"fmt"
	"os"
	"runtime"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noderig/noderig/internal/observability"
	"github.com/noderig/noderig/pkg/monitor"
)

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Run diagnostic checks",
	Long: `Run diagnostic checks on the local environment and the configured
execution server, and suggest fixes for common issues.

Examples:
  noderig doctor`,
	Args: cobra.NoArgs,
	RunE: runDoctor,
}

func init() {
	rootCmd.AddCommand(doctorCmd)
}

func runDoctor(cmd *cobra.Command, args []string) error {
	observability.CLILogger.Info("=== noderig doctor ===")
	observability.CLILogger.Info("")
	observability.CLILogger.Info("Running diagnostic checks...")
	observability.CLILogger.Info("")

	allChecks := true
	checkNum := 1
	totalChecks := 6

	// Check 1: Go version
	goVersion := runtime.Version()
	observability.CLILogger.Info(fmt.Sprintf("[%d/%d] Checking Go version... ✅ %s", checkNum, totalChecks, goVersion),
		zap.String("go_version", goVersion))
	checkNum++

	// Check 2: Config directory
	configDir, err := os.UserConfigDir()
	if err != nil {
		observability.CLILogger.Error(fmt.Sprintf("[%d/%d] Checking config directory... ❌ Cannot find config directory", checkNum, totalChecks),
			zap.Error(err))
		allChecks = false
	} else {
		observability.CLILogger.Info(fmt.Sprintf("[%d/%d] Checking config directory... ✅ %s", checkNum, totalChecks, configDir),
			zap.String("config_dir", configDir))
	}
	checkNum++

	// Check 3: Environment
	observability.CLILogger.Info(fmt.Sprintf("[%d/%d] Checking environment... ✅ %s/%s", checkNum, totalChecks, runtime.GOOS, runtime.GOARCH),
		zap.String("os", runtime.GOOS),
		zap.String("arch", runtime.GOARCH))
	checkNum++

	// Check 4: Engine reachability
	client, err := newEngineClient()
	if err != nil {
		observability.CLILogger.Error(fmt.Sprintf("[%d/%d] Checking engine URL... ❌ %v", checkNum, totalChecks, err),
			zap.Error(err))
		printEngineHelp()
		return exitError(ExitInvalidArgument, "Invalid engine configuration", err)
	}
	if client.IsAvailable(cmd.Context()) {
		observability.CLILogger.Info(fmt.Sprintf("[%d/%d] Checking engine reachability... ✅ %s", checkNum, totalChecks, loadedConfig.Engine.URL),
			zap.String("engine_url", loadedConfig.Engine.URL))
	} else {
		observability.CLILogger.Error(fmt.Sprintf("[%d/%d] Checking engine reachability... ❌ %s not responding", checkNum, totalChecks, loadedConfig.Engine.URL),
			zap.String("engine_url", loadedConfig.Engine.URL))
		printEngineHelp()
		allChecks = false
	}
	checkNum++

	// Check 5: Engine resources
	if stats, err := client.Stats(cmd.Context()); err != nil {
		observability.CLILogger.Warn(fmt.Sprintf("[%d/%d] Checking engine resources... ⚠️  stats unavailable", checkNum, totalChecks),
			zap.Error(err))
		allChecks = false
	} else {
		freeGB := float64(stats.VRAMFree) / (1 << 30)
		observability.CLILogger.Info(fmt.Sprintf("[%d/%d] Checking engine resources... ✅ %.1f GiB VRAM free", checkNum, totalChecks, freeGB),
			zap.Float64("free_vram_gib", freeGB))
	}
	checkNum++

	// Check 6: Progress stream
	mon := monitor.New(loadedConfig.Engine.URL, client.SessionID(),
		monitor.WithLogger(zap.NewNop()))
	if err := mon.Connect(cmd.Context()); err != nil {
		observability.CLILogger.Warn(fmt.Sprintf("[%d/%d] Checking progress stream... ⚠️  websocket connect failed", checkNum, totalChecks),
			zap.Error(err))
		allChecks = false
	} else {
		_ = mon.Close()
		observability.CLILogger.Info(fmt.Sprintf("[%d/%d] Checking progress stream... ✅ websocket reachable", checkNum, totalChecks))
	}

	observability.CLILogger.Info("")
	if allChecks {
		observability.CLILogger.Info("✅ All checks passed! Your noderig installation is healthy.")
	} else {
		observability.CLILogger.Warn("⚠️  Some checks failed. Review the output above for details.")
	}
	observability.CLILogger.Info("")
	observability.CLILogger.Info("=== End Diagnostics ===")
	return nil
}

// printEngineHelp prints help for pointing noderig at an execution server.
func printEngineHelp() {
	observability.CLILogger.Info("")
	observability.CLILogger.Info("To configure the execution server:")
	observability.CLILogger.Info("  1. Pass --engine-url http://host:8188, or")
	observability.CLILogger.Info("  2. Set NODERIG_ENGINE_URL, or")
	observability.CLILogger.Info("  3. Set engine.url in noderig.yaml (see 'noderig config init')")
	observability.CLILogger.Info("")
}
