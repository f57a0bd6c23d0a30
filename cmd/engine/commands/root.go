// Package commands implements the engine CLI.
package commands

import (
	"github.com/spf13/cobra"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "engine",
	Short: "Module lifecycle and retrieval engine for the application shell",
	Long: `engine runs the client-side retrieval engine: a content index for
full-text search over module content, a transition predictor that drives
speculative pre-loading, and a memory pressure evictor that bounds the
aggregate footprint of mounted modules.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "path to YAML config file")
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(simulateCmd)
}

// Execute runs the CLI.
func Execute() error {
	return rootCmd.Execute()
}
