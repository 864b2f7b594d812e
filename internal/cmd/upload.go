package cmd

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noderig/noderig/internal/observability"
)

var (
	uploadSubfolder string
	uploadOverwrite bool
	uploadName      string
)

var uploadCmd = &cobra.Command{
	Use:   "upload <file>",
	Short: "Upload an input image to the execution server",
	Long: `Upload a local image so a job can reference it by server filename.
The printed name is what belongs in a LoadImage input.

Examples:
  noderig upload cat.png
  noderig upload cat.png --subfolder inputs --overwrite`,
	Args: cobra.ExactArgs(1),
	RunE: runUpload,
}

func init() {
	uploadCmd.Flags().StringVar(&uploadSubfolder, "subfolder", "", "server-side subfolder to place the file in")
	uploadCmd.Flags().BoolVar(&uploadOverwrite, "overwrite", false, "replace an existing file with the same name")
	uploadCmd.Flags().StringVar(&uploadName, "name", "", "filename to use on the server (default: local basename)")
	rootCmd.AddCommand(uploadCmd)
}

func runUpload(cmd *cobra.Command, args []string) error {
	data, err := os.ReadFile(args[0])
	if err != nil {
		return exitError(ExitInvalidArgument, "Cannot read input file", err)
	}

	name := uploadName
	if name == "" {
		name = filepath.Base(args[0])
	}

	client, err := newEngineClient()
	if err != nil {
		return exitError(ExitInvalidArgument, "Invalid engine configuration", err)
	}

	result, err := client.UploadImage(cmd.Context(), data, name, uploadSubfolder, uploadOverwrite)
	if err != nil {
		return exitError(ExitUnavailable, "Upload failed", err)
	}

	observability.CLILogger.Info("Uploaded",
		zap.String("name", result.Name),
		zap.String("subfolder", result.Subfolder),
		zap.Int("bytes", len(data)))
	cmd.Println(result.ServerFilename())
	return nil
}
