// Package cli implements the knoxctl admin command tree.
package cli

import (
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/arbetsytan/knox/internal/client"
)

var (
	flagAPIURL string
	flagAPIKey string
)

var rootCmd = &cobra.Command{
	Use:   "knoxctl",
	Short: "Admin CLI for the knox sanitization and report service",
	Long: "Manages projects, ingests documents through the sanitize pipeline,\n" +
		"compiles policy-gated reports and runs verified deletes against a\n" +
		"running knox server.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&flagAPIURL, "api-url", "", "Server base URL (default $KNOX_API_URL or http://localhost:8080)")
	rootCmd.PersistentFlags().StringVar(&flagAPIKey, "api-key", "", "Service key (default $KNOX_API_KEY)")
}

// apiClient resolves connection settings from flags and environment.
func apiClient() *client.Client {
	url := flagAPIURL
	if url == "" {
		url = os.Getenv("KNOX_API_URL")
	}
	if url == "" {
		url = "http://localhost:8080"
	}
	key := flagAPIKey
	if key == "" {
		key = os.Getenv("KNOX_API_KEY")
	}
	return client.New(url, key, 5*time.Minute)
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
