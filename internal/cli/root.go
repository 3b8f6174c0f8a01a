// Package cli implements the fabrikctl command tree. Every command is a
// thin client of the daemon's REST API.
package cli

import (
	"os"

	"github.com/spf13/cobra"
)

var (
	serverURL string
	apiKey    string
)

var rootCmd = &cobra.Command{
	Use:   "fabrikctl",
	Short: "Control the fabrik daemon",
	Long:  "fabrikctl — submit build instructions, develop tickets and watch progress on a running fabrikd.",
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", envOr("FABRIK_SERVER", "http://localhost:3000"), "Daemon base URL")
	rootCmd.PersistentFlags().StringVar(&apiKey, "api-key", os.Getenv("FABRIK_API_KEY"), "API key for Bearer auth")

	rootCmd.AddCommand(healthCmd)
	rootCmd.AddCommand(submitCmd)
	rootCmd.AddCommand(ticketsCmd)
	rootCmd.AddCommand(logsCmd)
	rootCmd.AddCommand(watchCmd)
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
