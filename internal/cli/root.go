// Package cli provides the command-line interface for toolbrief.
package cli

import (
	"fmt"
	"os"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"github.com/raphaelgruber/toolbrief/internal/client"
)

var (
	// Version is set at build time.
	Version = "0.1.0"

	// Global flags
	serverURL string
	sessionID string

	// API client, created before every command runs
	apiClient *client.Client
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:   "toolbrief",
	Short: "AI-generated user manuals for software tools",
	Long: `Toolbrief generates structured user manuals for software tools - features,
shortcuts, workflows, tips, and common mistakes - researched and written
by an LLM with web search, then cached and shared as JSON.

Jobs run asynchronously on the server; the CLI enqueues a generation,
watches its progress, and fetches the finished manual.`,
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if cmd.Name() == "version" || cmd.Name() == "help" {
			return nil
		}

		apiClient = client.New(serverURL)

		if sessionID == "" {
			sessionID = os.Getenv("TOOLBRIEF_SESSION")
		}
		if sessionID == "" {
			sessionID = defaultSessionID()
		}
		return nil
	},
}

// defaultSessionID derives a stable per-machine session identifier so that
// repeated CLI invocations share rate-limit and job-list scope.
func defaultSessionID() string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		return "cli-" + uuid.New().String()
	}
	return "cli-" + host
}

// Execute adds all child commands to the root command and sets flags appropriately.
func Execute() error {
	return rootCmd.Execute()
}

func init() {
	// Global flags
	rootCmd.PersistentFlags().StringVar(&serverURL, "server", "", "server URL (default $TOOLBRIEF_SERVER_URL or http://localhost:8484)")
	rootCmd.PersistentFlags().StringVar(&sessionID, "session", "", "session identifier (default $TOOLBRIEF_SESSION or a per-host id)")
}

// exitWithError prints an error message and exits with code 1.
func exitWithError(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "Error: "+format+"\n", args...)
	os.Exit(1)
}
