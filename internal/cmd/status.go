package cmd

import (
	"encoding/json"

	"github.com/spf13/cobra"

	"github.com/noderig/noderig/pkg/engine"
	"github.com/noderig/noderig/pkg/faults"
)

var statusCmd = &cobra.Command{
	Use:   "status <job-id>",
	Short: "Report a job's current state",
	Long: `Poll the execution server once and report the job's state, progress,
and outputs.

Examples:
  noderig status 3f6a9c70-...`,
	Args: cobra.ExactArgs(1),
	RunE: runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	client, err := newEngineClient()
	if err != nil {
		return exitError(ExitInvalidArgument, "Invalid engine configuration", err)
	}

	status := client.Poll(cmd.Context(), &engine.JobHandle{ID: args[0], SessionID: client.SessionID()})

	b, err := json.MarshalIndent(status, "", "  ")
	if err != nil {
		return exitError(ExitSoftware, "Cannot encode status", err)
	}
	cmd.Println(string(b))

	if status.State == engine.JobStateError && status.Fault != nil {
		if faults.IsUnreachable(status.Fault) {
			return exitError(ExitUnavailable, "Execution server unreachable", status.Fault)
		}
		return exitError(ExitFailure, "Job is in error state", status.Fault)
	}
	return nil
}
