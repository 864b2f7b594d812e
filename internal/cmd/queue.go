package cmd

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/noderig/noderig/pkg/engine"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect and manage the execution queue",
	Long: `Show the execution server's queue, interrupt the running job, clear
pending work, or cancel a specific job.

Examples:
  noderig queue
  noderig queue interrupt
  noderig queue clear
  noderig queue cancel 3f6a9c70-...`,
	Args: cobra.NoArgs,
	RunE: runQueueShow,
}

var queueInterruptCmd = &cobra.Command{
	Use:   "interrupt",
	Short: "Interrupt the currently running job",
	Args:  cobra.NoArgs,
	RunE:  runQueueInterrupt,
}

var queueClearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Remove all pending jobs from the queue",
	Args:  cobra.NoArgs,
	RunE:  runQueueClear,
}

var queueCancelCmd = &cobra.Command{
	Use:   "cancel <job-id>",
	Short: "Cancel a pending or running job",
	Args:  cobra.ExactArgs(1),
	RunE:  runQueueCancel,
}

func init() {
	queueCmd.AddCommand(queueInterruptCmd)
	queueCmd.AddCommand(queueClearCmd)
	queueCmd.AddCommand(queueCancelCmd)
	rootCmd.AddCommand(queueCmd)
}

func runQueueShow(cmd *cobra.Command, args []string) error {
	client, err := newEngineClient()
	if err != nil {
		return exitError(ExitInvalidArgument, "Invalid engine configuration", err)
	}

	info, err := client.Queue(cmd.Context())
	if err != nil {
		return exitError(ExitUnavailable, "Cannot read queue", err)
	}

	b, err := json.MarshalIndent(info, "", "  ")
	if err != nil {
		return exitError(ExitSoftware, "Cannot encode queue info", err)
	}
	cmd.Println(string(b))
	return nil
}

func runQueueInterrupt(cmd *cobra.Command, args []string) error {
	client, err := newEngineClient()
	if err != nil {
		return exitError(ExitInvalidArgument, "Invalid engine configuration", err)
	}
	if !client.Interrupt(cmd.Context()) {
		return exitError(ExitUnavailable, "Interrupt request failed", nil)
	}
	cmd.Println("interrupted")
	return nil
}

func runQueueClear(cmd *cobra.Command, args []string) error {
	client, err := newEngineClient()
	if err != nil {
		return exitError(ExitInvalidArgument, "Invalid engine configuration", err)
	}
	if !client.ClearQueue(cmd.Context()) {
		return exitError(ExitUnavailable, "Clear request failed", nil)
	}
	cmd.Println("queue cleared")
	return nil
}

func runQueueCancel(cmd *cobra.Command, args []string) error {
	client, err := newEngineClient()
	if err != nil {
		return exitError(ExitInvalidArgument, "Invalid engine configuration", err)
	}
	handle := &engine.JobHandle{ID: args[0], SessionID: client.SessionID()}
	if err := client.Cancel(cmd.Context(), handle); err != nil {
		return exitError(ExitFailure, fmt.Sprintf("Cannot cancel job %s", args[0]), err)
	}
	cmd.Printf("cancelled %s\n", args[0])
	return nil
}
