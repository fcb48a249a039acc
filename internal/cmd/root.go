// Package cmd implements the costwise command line interface.
package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/costwise/costwise/client"
	"github.com/costwise/costwise/internal/config"
)

var rootCmd = &cobra.Command{
	Use:   "costwise",
	Short: "Cost-aware LLM task router",
	Long: `CostWise routes LLM tasks to the cheapest capable model, estimates
spend before execution, and escalates to a stronger tier when a
response fails its quality check.

The server subcommand runs the HTTP API; every other subcommand talks
to a running server.`,
	SilenceUsage:  true,
	SilenceErrors: true,
}

func init() {
	rootCmd.PersistentFlags().String("env", ".env", "Path to the .env config file")
	rootCmd.PersistentFlags().String("server", "http://localhost:8080", "Base URL of the costwise server")
	rootCmd.PersistentFlags().String("api-key", "", "API key (falls back to COSTWISE_API_KEY)")

	rootCmd.AddCommand(
		serveCmd,
		runCmd,
		estimateCmd,
		historyCmd,
		budgetCmd,
		modelsCmd,
		setupCmd,
	)
}

// Execute runs the CLI. version is stamped via -ldflags on the main package.
func Execute(version string) {
	rootCmd.Version = version
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func loadConfig(cmd *cobra.Command) *config.Config {
	envFile, _ := cmd.Flags().GetString("env")
	return config.Load(envFile)
}

// apiClient builds the HTTP client used by the remote subcommands.
func apiClient(cmd *cobra.Command) *client.Client {
	base, _ := cmd.Flags().GetString("server")
	key, _ := cmd.Flags().GetString("api-key")
	if key == "" {
		key = os.Getenv("COSTWISE_API_KEY")
	}
	return client.New(base, client.WithAPIKey(key))
}
