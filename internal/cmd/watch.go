package cmd

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noderig/noderig/internal/observability"
	"github.com/noderig/noderig/pkg/monitor"
)

var (
	watchJobID string
	watchJSON  bool
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Stream live execution progress",
	Long: `Attach to the execution server's progress stream and print events as
they arrive. Without --job the stream covers every job running under
the current session.

Examples:
  noderig watch
  noderig watch --job 3f6a9c70-... --json`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().StringVar(&watchJobID, "job", "", "only show events for this job")
	watchCmd.Flags().BoolVar(&watchJSON, "json", false, "emit events as JSON lines")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	session := flagSession
	if session == "" {
		session = uuid.NewString()
	}
	mon := monitor.New(loadedConfig.Engine.URL, session,
		monitor.WithLogger(observability.CLILogger))

	if err := mon.Connect(cmd.Context()); err != nil {
		return exitError(ExitUnavailable, "Cannot connect to progress stream", err)
	}
	defer mon.Close()

	observability.CLILogger.Info("Watching execution stream",
		zap.String("engine", loadedConfig.Engine.URL),
		zap.String("session", session))

	sawError := false
	for ev := range mon.Events() {
		if watchJobID != "" && ev.JobID != "" && ev.JobID != watchJobID {
			continue
		}
		if ev.Type == monitor.EventError {
			sawError = true
		}
		if watchJSON {
			line, err := json.Marshal(ev)
			if err != nil {
				continue
			}
			cmd.Println(string(line))
			continue
		}
		cmd.Println(formatEvent(ev, mon.OverallPercent()))
	}

	if dropped := mon.Dropped(); dropped > 0 {
		observability.CLILogger.Warn("Events dropped, consumer too slow",
			zap.Int64("dropped", dropped))
	}
	if sawError {
		return exitError(ExitFailure, "Execution reported an error", nil)
	}
	return nil
}

func formatEvent(ev monitor.Event, overall float64) string {
	switch ev.Type {
	case monitor.EventProgress:
		return fmt.Sprintf("[%5.1f%%] node %s: %d/%d", overall, ev.Node, ev.Value, ev.Max)
	case monitor.EventNodeStart:
		return fmt.Sprintf("[%5.1f%%] node %s started", overall, ev.Node)
	case monitor.EventNodeComplete:
		return fmt.Sprintf("[%5.1f%%] node %s done", overall, ev.Node)
	case monitor.EventCached:
		return fmt.Sprintf("[%5.1f%%] cached: %s", overall, strings.Join(ev.Nodes, ", "))
	case monitor.EventError:
		return fmt.Sprintf("[error] %s", ev.Message)
	default:
		return fmt.Sprintf("[%5.1f%%] %s", overall, ev.Message)
	}
}
