package cmd

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/noderig/noderig/internal/observability"
	"github.com/noderig/noderig/pkg/assets"
	"github.com/noderig/noderig/pkg/engine"
	"github.com/noderig/noderig/pkg/faults"
	"github.com/noderig/noderig/pkg/preview"
)

var (
	assetsIndex      int
	assetsMaxDim     int
	assetsMaxChars   int
	assetsQuality    int
	assetsPreviewOut string
	assetsMatch      string
)

var assetsCmd = &cobra.Command{
	Use:   "assets",
	Short: "Inspect artifacts produced by completed jobs",
}

var assetsListCmd = &cobra.Command{
	Use:   "list <job-id>",
	Short: "List the artifacts a completed job produced",
	Long: `Fetch a completed job's outputs and print one registry record per
artifact. Records carry the stable asset id, the server-relative path,
and the fetch URL.

Examples:
  noderig assets list 3f6a9c70-...
  noderig assets list 3f6a9c70-... --match 'renders/*.png'`,
	Args: cobra.ExactArgs(1),
	RunE: runAssetsList,
}

var assetsShowCmd = &cobra.Command{
	Use:   "show <job-id>",
	Short: "Show one artifact record",
	Args:  cobra.ExactArgs(1),
	RunE:  runAssetsShow,
}

var assetsPreviewCmd = &cobra.Command{
	Use:   "preview <job-id>",
	Short: "Encode a budgeted inline preview for an artifact",
	Long: `Fetch one of a job's artifacts and print it as a size-budgeted JPEG
data URI. The encoder walks a descending dimension and quality ladder
until the result fits the character budget.

Examples:
  noderig assets preview 3f6a9c70-...
  noderig assets preview 3f6a9c70-... --index 1 --max-chars 50000 -o preview.txt`,
	Args: cobra.ExactArgs(1),
	RunE: runAssetsPreview,
}

func init() {
	assetsCmd.PersistentFlags().StringVar(&assetsMatch, "match", "", "glob filter on the artifact's relative path")
	assetsShowCmd.Flags().IntVar(&assetsIndex, "index", 0, "artifact index within the job's outputs")
	assetsPreviewCmd.Flags().IntVar(&assetsIndex, "index", 0, "artifact index within the job's outputs")
	assetsPreviewCmd.Flags().IntVar(&assetsMaxDim, "max-dim", 0, "bound on the preview's longer edge")
	assetsPreviewCmd.Flags().IntVar(&assetsMaxChars, "max-chars", 0, "character budget for the data URI")
	assetsPreviewCmd.Flags().IntVar(&assetsQuality, "quality", 0, "starting JPEG quality")
	assetsPreviewCmd.Flags().StringVarP(&assetsPreviewOut, "output", "o", "", "write the data URI to a file instead of stdout")
	assetsCmd.AddCommand(assetsListCmd)
	assetsCmd.AddCommand(assetsShowCmd)
	assetsCmd.AddCommand(assetsPreviewCmd)
	rootCmd.AddCommand(assetsCmd)
}

// jobRecords polls a job and registers its outputs, returning the
// registry snapshots newest first.
func jobRecords(ctx context.Context, client *engine.Client, jobID string) ([]assets.Record, error) {
	status := client.Poll(ctx, &engine.JobHandle{ID: jobID, SessionID: client.SessionID()})
	switch status.State {
	case engine.JobStateCompleted:
	case engine.JobStateError:
		if status.Fault != nil {
			return nil, status.Fault
		}
		return nil, fmt.Errorf("job %s failed: %s", jobID, status.Message)
	default:
		return nil, fmt.Errorf("job %s is %s, outputs are not available yet", jobID, status.State)
	}

	reg := assets.NewRegistry(assets.WithTTL(loadedConfig.Assets.TTL))
	for _, out := range status.Outputs {
		reg.Register(assets.Registration{
			Filename:   out.Filename,
			Subfolder:  out.Subfolder,
			FolderType: out.FolderType,
			JobID:      jobID,
			SessionID:  client.SessionID(),
		})
	}
	return reg.List(assets.ListOptions{JobID: jobID, Match: assetsMatch, Limit: reg.Len()}), nil
}

func runAssetsList(cmd *cobra.Command, args []string) error {
	client, err := newEngineClient()
	if err != nil {
		return exitError(ExitInvalidArgument, "Invalid engine configuration", err)
	}

	records, err := jobRecords(cmd.Context(), client, args[0])
	if err != nil {
		return assetsFaultError(err)
	}

	b, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return exitError(ExitSoftware, "Cannot encode records", err)
	}
	cmd.Println(string(b))
	return nil
}

func runAssetsShow(cmd *cobra.Command, args []string) error {
	client, err := newEngineClient()
	if err != nil {
		return exitError(ExitInvalidArgument, "Invalid engine configuration", err)
	}

	records, err := jobRecords(cmd.Context(), client, args[0])
	if err != nil {
		return assetsFaultError(err)
	}
	if assetsIndex < 0 || assetsIndex >= len(records) {
		return exitError(ExitInvalidArgument,
			fmt.Sprintf("Job has %d artifact(s), index %d is out of range", len(records), assetsIndex), nil)
	}

	b, err := json.MarshalIndent(records[assetsIndex], "", "  ")
	if err != nil {
		return exitError(ExitSoftware, "Cannot encode record", err)
	}
	cmd.Println(string(b))
	return nil
}

func runAssetsPreview(cmd *cobra.Command, args []string) error {
	client, err := newEngineClient()
	if err != nil {
		return exitError(ExitInvalidArgument, "Invalid engine configuration", err)
	}

	records, err := jobRecords(cmd.Context(), client, args[0])
	if err != nil {
		return assetsFaultError(err)
	}
	if assetsIndex < 0 || assetsIndex >= len(records) {
		return exitError(ExitInvalidArgument,
			fmt.Sprintf("Job has %d artifact(s), index %d is out of range", len(records), assetsIndex), nil)
	}
	rec := records[assetsIndex]

	data, err := fetchAssetBytes(cmd.Context(), &rec)
	if err != nil {
		return assetsFaultError(err)
	}

	opts := preview.Options{
		MaxDim:   loadedConfig.Preview.MaxDim,
		MaxChars: loadedConfig.Preview.MaxChars,
		Quality:  loadedConfig.Preview.Quality,
	}
	if assetsMaxDim > 0 {
		opts.MaxDim = assetsMaxDim
	}
	if assetsMaxChars > 0 {
		opts.MaxChars = assetsMaxChars
	}
	if assetsQuality > 0 {
		opts.Quality = assetsQuality
	}

	enc, err := preview.Encode(data, opts)
	if err != nil {
		var be *preview.BudgetError
		if errors.As(err, &be) {
			return exitError(ExitFailure,
				fmt.Sprintf("No preview fits %d characters, smallest attempt was %dpx at quality %d",
					be.Budget, be.MinDim, be.MinQuality), err)
		}
		return exitError(ExitFailure, "Preview encoding failed", err)
	}

	observability.CLILogger.Info("Preview encoded",
		zap.String("asset_id", rec.AssetID),
		zap.Int("width", enc.Width),
		zap.Int("height", enc.Height),
		zap.Int("chars", enc.CharLen))

	if assetsPreviewOut != "" {
		if err := os.WriteFile(assetsPreviewOut, []byte(enc.DataURI()), 0o644); err != nil {
			return exitError(ExitFailure, "Cannot write preview file", err)
		}
		return nil
	}
	cmd.Println(enc.DataURI())
	return nil
}

// fetchAssetBytes reads the artifact from the local output directory
// when visible, falling back to the server's view endpoint.
func fetchAssetBytes(ctx context.Context, rec *assets.Record) ([]byte, error) {
	if p := rec.LocalPath(loadedConfig.Assets.OutputRoot); p != "" {
		if data, err := os.ReadFile(p); err == nil {
			return data, nil
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rec.ViewURL(loadedConfig.Engine.URL), nil)
	if err != nil {
		return nil, err
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return nil, faults.ClassifyTransport("fetch asset", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, faults.Classify("fetch asset",
			fmt.Sprintf("HTTP %d fetching %s", resp.StatusCode, rec.Filename))
	}
	return io.ReadAll(resp.Body)
}

func assetsFaultError(err error) error {
	switch {
	case faults.IsUnreachable(err):
		return exitError(ExitUnavailable, "Execution server unreachable", err)
	case faults.IsDeadline(err):
		return exitError(ExitTimeout, "Timed out talking to the execution server", err)
	default:
		return exitError(ExitFailure, "Cannot read job artifacts", err)
	}
}
