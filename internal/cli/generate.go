package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/toolbrief/internal/client"
)

var (
	generateQuick  bool
	generateAPIKey string
	generateNoWait bool
)

var generateCmd = &cobra.Command{
	Use:   "generate <tool-name>",
	Short: "Generate a user manual for a software tool",
	Long: `Generate a user manual for a software tool.

The server enqueues a generation job and the CLI shows live progress until
the manual is ready. If a fresh manual already exists it is returned
immediately; if the same tool is already being generated, the CLI attaches
to the in-flight job instead of starting a new one.

Examples:
  toolbrief generate "Notion"
  toolbrief generate "Visual Studio Code" --quick
  toolbrief generate "Figma" --api-key sk-... --no-wait`,
	Args: cobra.ExactArgs(1),
	RunE: runGenerate,
}

func init() {
	rootCmd.AddCommand(generateCmd)

	generateCmd.Flags().BoolVar(&generateQuick, "quick", false, "accept a manual up to a day old instead of a month")
	generateCmd.Flags().StringVar(&generateAPIKey, "api-key", "", "bring-your-own LLM API key for this job")
	generateCmd.Flags().BoolVar(&generateNoWait, "no-wait", false, "enqueue and exit without watching progress")
}

func runGenerate(cmd *cobra.Command, args []string) error {
	toolName := args[0]
	ctx := context.Background()

	result, err := apiClient.CreateJob(ctx, client.CreateJobInput{
		ToolName:  toolName,
		SessionID: sessionID,
		APIKey:    generateAPIKey,
		Quick:     generateQuick,
	})
	if err != nil {
		return fmt.Errorf("create job: %w", err)
	}

	if result.Cached {
		fmt.Printf("Manual for %q is fresh (generated %s).\n",
			toolName, result.GeneratedAt.Format(time.RFC3339))
		fmt.Printf("  %s\n", result.ShareURL)
		return nil
	}

	job := result.Job
	if result.Deduplicated {
		fmt.Printf("Generation for %q already in flight (job %s, position %d). Attaching...\n",
			job.Slug, job.ID, result.Position)
	} else {
		fmt.Printf("Queued %q (job %s, position %d).\n", job.Slug, job.ID, result.Position)
	}

	if generateNoWait {
		fmt.Printf("Use 'toolbrief jobs %s' to check status.\n", job.ID)
		return nil
	}

	if err := RunJobProgress(apiClient, job); err != nil {
		exitWithError("%v", err)
	}
	return nil
}
