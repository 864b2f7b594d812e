package cmd

import (
	"encoding/json"
	"errors"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noderig/noderig/internal/observability"
	"github.com/noderig/noderig/pkg/assets"
	"github.com/noderig/noderig/pkg/engine"
	"github.com/noderig/noderig/pkg/faults"
)

var (
	submitWait     bool
	submitTimeout  time.Duration
	submitNoSchema bool
)

var submitCmd = &cobra.Command{
	Use:   "submit <graph.json>",
	Short: "Compile and submit a graph for execution",
	Long: `Compile an editor graph (or pass through a flat job document) and
queue it on the execution server.

With --wait the command polls until the job finishes, registers the
produced artifacts, and prints them.

Examples:
  noderig submit workflow.json
  noderig submit workflow.json --wait
  noderig submit workflow.json --wait --timeout 30m`,
	Args: cobra.ExactArgs(1),
	RunE: runSubmit,
}

func init() {
	rootCmd.AddCommand(submitCmd)
	submitCmd.Flags().BoolVar(&submitWait, "wait", false, "Block until the job finishes")
	submitCmd.Flags().DurationVar(&submitTimeout, "timeout", 0, "Wait timeout (default: config wait_timeout)")
	submitCmd.Flags().BoolVar(&submitNoSchema, "no-schema", false, "Compile without server schema introspection")
}

func runSubmit(cmd *cobra.Command, args []string) error {
	raw, err := readInput(args[0])
	if err != nil {
		return exitError(ExitInvalidArgument, "Cannot read graph", err)
	}

	compileNoSchema = submitNoSchema
	job, err := compileDocument(cmd, raw)
	if err != nil {
		return err
	}

	client, err := newEngineClient()
	if err != nil {
		return exitError(ExitInvalidArgument, "Invalid engine configuration", err)
	}

	handle, err := client.Submit(cmd.Context(), job)
	if err != nil {
		return submitFaultError("Submission rejected", err)
	}
	observability.CLILogger.Info("Job queued",
		zap.String("job_id", handle.ID),
		zap.String("session_id", handle.SessionID))

	if !submitWait {
		cmd.Println(handle.ID)
		return nil
	}

	timeout := submitTimeout
	if timeout <= 0 {
		timeout = loadedConfig.Engine.WaitTimeout
	}

	if !client.WaitUntilDone(cmd.Context(), handle, timeout) {
		status := client.Poll(cmd.Context(), handle)
		if status.State == engine.JobStateError && status.Fault != nil {
			return submitFaultError("Job failed", status.Fault)
		}
		return exitError(ExitTimeout, "Job did not finish within the wait timeout", nil)
	}

	status := client.Poll(cmd.Context(), handle)
	registry := assets.NewRegistry(assets.WithTTL(loadedConfig.Assets.TTL))
	for _, out := range status.Outputs {
		rec := registry.Register(assets.Registration{
			Filename:   out.Filename,
			Subfolder:  out.Subfolder,
			FolderType: out.FolderType,
			JobID:      handle.ID,
			SessionID:  handle.SessionID,
		})
		observability.CLILogger.Info("Artifact registered",
			zap.String("asset_id", rec.AssetID),
			zap.String("file", rec.RelPath()),
			zap.String("url", rec.ViewURL(client.BaseURL())))
	}

	b, err := json.MarshalIndent(status.Outputs, "", "  ")
	if err != nil {
		return exitError(ExitSoftware, "Cannot encode outputs", err)
	}
	cmd.Println(string(b))
	return nil
}

// submitFaultError maps a classified fault onto an exit code, keeping
// the hint visible when one exists.
func submitFaultError(message string, err error) error {
	var f *faults.Fault
	if faults.IsUnreachable(err) {
		return exitError(ExitUnavailable, "Execution server unreachable", err)
	}
	if faults.IsDeadline(err) {
		return exitError(ExitTimeout, message, err)
	}
	if errors.As(err, &f) && f.Hint != "" {
		observability.CLILogger.Warn("Hint: " + f.Hint)
	}
	return exitError(ExitFailure, message, err)
}
