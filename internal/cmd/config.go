package cmd

import (
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/noderig/noderig/internal/config"
	"github.com/noderig/noderig/internal/observability"
)

var configInitPath string

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage noderig configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write a starter config file",
	Long: `Write a starter noderig.yaml with every setting at its default.
Without --path the file lands in the user config directory.

Examples:
  noderig config init
  noderig config init --path ./noderig.yaml`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

func init() {
	configInitCmd.Flags().StringVar(&configInitPath, "path", "", "where to write the config file")
	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configShowCmd)
	rootCmd.AddCommand(configCmd)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	path := configInitPath
	if path == "" {
		dir, err := os.UserConfigDir()
		if err != nil {
			return exitError(ExitFailure, "Cannot locate user config directory", err)
		}
		path = filepath.Join(dir, "noderig", "noderig.yaml")
	}

	if err := config.WriteDefault(path); err != nil {
		return exitError(ExitFailure, "Cannot write config file", err)
	}

	observability.CLILogger.Info("Wrote starter config", zap.String("path", path))
	cmd.Println(path)
	return nil
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	b, err := yaml.Marshal(loadedConfig)
	if err != nil {
		return exitError(ExitSoftware, "Cannot encode configuration", err)
	}
	cmd.Print(string(b))
	return nil
}
