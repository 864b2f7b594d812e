package cmd

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noderig/noderig/internal/observability"
	"github.com/noderig/noderig/pkg/compiler"
	"github.com/noderig/noderig/pkg/graph"
	"github.com/noderig/noderig/pkg/schema"
)

var (
	compileNoSchema bool
	compilePretty   bool
)

var compileCmd = &cobra.Command{
	Use:   "compile <graph.json>",
	Short: "Compile an editor graph to the flat job format",
	Long: `Compile an editor-format node graph into the flat job document the
execution server accepts, without submitting it.

The server's node schema is fetched to map widget values onto input
names; pass --no-schema to compile offline with the static tables.

Examples:
  noderig compile workflow.json
  noderig compile workflow.json --pretty
  cat workflow.json | noderig compile - --no-schema`,
	Args: cobra.ExactArgs(1),
	RunE: runCompile,
}

func init() {
	rootCmd.AddCommand(compileCmd)
	compileCmd.Flags().BoolVar(&compileNoSchema, "no-schema", false, "Compile without server schema introspection")
	compileCmd.Flags().BoolVar(&compilePretty, "pretty", false, "Indent the emitted job document")
}

func runCompile(cmd *cobra.Command, args []string) error {
	raw, err := readInput(args[0])
	if err != nil {
		return exitError(ExitInvalidArgument, "Cannot read graph", err)
	}

	job, err := compileDocument(cmd, raw)
	if err != nil {
		return err
	}

	var out []byte
	if compilePretty {
		out, err = json.MarshalIndent(job, "", "  ")
	} else {
		out, err = json.Marshal(job)
	}
	if err != nil {
		return exitError(ExitSoftware, "Cannot encode job", err)
	}
	cmd.Println(string(out))
	return nil
}

// compileDocument parses either document form and compiles editor
// graphs, consulting the server schema unless disabled.
func compileDocument(cmd *cobra.Command, raw []byte) (compiler.Job, error) {
	g, err := graph.Parse(raw)
	if errors.Is(err, graph.ErrNotEditorFormat) {
		job, perr := compiler.ParseJob(raw)
		if perr != nil {
			return nil, exitError(ExitInvalidArgument, "Invalid job document", perr)
		}
		return job, nil
	}
	if err != nil {
		return nil, exitError(ExitInvalidArgument, "Invalid graph document", err)
	}

	var s *schema.Schema
	if !compileNoSchema {
		client, cerr := newEngineClient()
		if cerr != nil {
			return nil, exitError(ExitInvalidArgument, "Invalid engine configuration", cerr)
		}
		s, err = client.FetchSchema(cmd.Context(), "")
		if err != nil {
			observability.CLILogger.Warn("Schema fetch failed, compiling without it", zap.Error(err))
			s = nil
		}
	}

	job, err := compiler.Compile(g, s)
	if err != nil {
		var cerr *compiler.CompileError
		if errors.As(err, &cerr) {
			return nil, exitError(ExitInvalidArgument, "Graph cannot be compiled", cerr)
		}
		return nil, exitError(ExitSoftware, "Compilation failed", err)
	}
	if len(job) == 0 {
		return nil, exitError(ExitInvalidArgument, "Graph compiles to an empty job",
			fmt.Errorf("no executable nodes in graph"))
	}
	return job, nil
}
