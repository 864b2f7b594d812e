package cmd

import (
	"github.com/spf13/cobra"
)

var modelsRefresh bool

var modelsCmd = &cobra.Command{
	Use:   "models <kind>",
	Short: "List the models the execution server has loaded",
	Long: `List a model catalog by kind: checkpoint, lora, vae, controlnet, or
upscale. Catalogs are cached per kind; --refresh forces a re-fetch.

Examples:
  noderig models checkpoint
  noderig models lora --refresh`,
	Args: cobra.ExactArgs(1),
	RunE: runModels,
}

func init() {
	modelsCmd.Flags().BoolVar(&modelsRefresh, "refresh", false, "bypass the cached catalog")
	rootCmd.AddCommand(modelsCmd)
}

func runModels(cmd *cobra.Command, args []string) error {
	client, err := newEngineClient()
	if err != nil {
		return exitError(ExitInvalidArgument, "Invalid engine configuration", err)
	}

	var names []string
	if modelsRefresh {
		names = client.RefreshModels(cmd.Context(), args[0])
	} else {
		names = client.Models(cmd.Context(), args[0])
	}
	if len(names) == 0 {
		return exitError(ExitUnavailable,
			"No models of kind "+args[0]+", the server may be down or the kind unknown", nil)
	}

	for _, name := range names {
		cmd.Println(name)
	}
	return nil
}
