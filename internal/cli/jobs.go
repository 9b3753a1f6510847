package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/toolbrief/internal/models"
)

var (
	jobsStatus string
	jobsWatch  bool
)

var jobsCmd = &cobra.Command{
	Use:   "jobs [job-id]",
	Short: "List or inspect generation jobs",
	Long: `List the current session's generation jobs or inspect a specific job by ID.

Examples:
  toolbrief jobs                      # List all jobs for this session
  toolbrief jobs --status queued      # Only queued jobs
  toolbrief jobs abc123               # Show details for job abc123
  toolbrief jobs abc123 --watch       # Attach the progress display`,
	Args: cobra.MaximumNArgs(1),
	RunE: runJobs,
}

func init() {
	rootCmd.AddCommand(jobsCmd)

	jobsCmd.Flags().StringVar(&jobsStatus, "status", "", "filter by status (queued, processing, completed, failed)")
	jobsCmd.Flags().BoolVarP(&jobsWatch, "watch", "w", false, "watch a job's progress (requires a job id)")
}

func runJobs(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	if len(args) == 1 {
		return showJob(ctx, args[0])
	}

	return listJobs(ctx)
}

func listJobs(ctx context.Context) error {
	var statuses []models.JobStatus
	if jobsStatus != "" {
		statuses = append(statuses, models.JobStatus(jobsStatus))
	}

	jobs, err := apiClient.ListJobs(ctx, sessionID, statuses...)
	if err != nil {
		return fmt.Errorf("list jobs: %w", err)
	}

	if len(jobs) == 0 {
		fmt.Println("No jobs found")
		return nil
	}

	fmt.Printf("%-36s %-20s %-12s %-10s %s\n", "ID", "TOOL", "STATUS", "STAGE", "CREATED")
	fmt.Println("--------------------------------------------------------------------------------------------")

	for _, job := range jobs {
		created := job.CreatedAt.Local().Format("15:04:05")
		fmt.Printf("%-36s %-20s %-12s %-10s %s\n", job.ID, job.Slug, job.Status, job.Stage, created)
	}

	return nil
}

func showJob(ctx context.Context, id string) error {
	job, err := apiClient.GetJob(ctx, id)
	if err != nil {
		return fmt.Errorf("get job: %w", err)
	}

	if jobsWatch && !job.Status.Terminal() {
		return RunJobProgress(apiClient, job)
	}

	fmt.Printf("Job: %s\n", job.ID)
	fmt.Printf("  Tool: %s (%s)\n", job.ToolName, job.Slug)
	fmt.Printf("  Status: %s\n", job.Status)
	if job.Stage != "" {
		fmt.Printf("  Stage: %s\n", job.Stage)
	}
	if job.Status == models.JobQueued {
		if position, err := apiClient.QueuePosition(ctx, job.ID); err == nil && position > 0 {
			fmt.Printf("  Position: %d\n", position)
		}
	}
	fmt.Printf("  Created: %s\n", job.CreatedAt.Format(time.RFC3339))
	if job.StartedAt != nil {
		fmt.Printf("  Started: %s\n", job.StartedAt.Format(time.RFC3339))
	}
	if job.CompletedAt != nil {
		fmt.Printf("  Completed: %s\n", job.CompletedAt.Format(time.RFC3339))
		if job.StartedAt != nil {
			duration := job.CompletedAt.Sub(*job.StartedAt)
			fmt.Printf("  Duration: %s\n", duration.Round(time.Second))
		}
	}

	if job.Error != "" {
		fmt.Printf("  Error: %s\n", job.Error)
	}

	if job.Result != nil {
		r := job.Result
		fmt.Println("\nResult:")
		fmt.Printf("  Manual: %s\n", r.ShareURL)
		fmt.Printf("  Features: %d, shortcuts: %d, workflows: %d, tips: %d\n",
			r.FeatureCount, r.ShortcutCount, r.WorkflowCount, r.TipCount)
		fmt.Printf("  Citations: %d\n", r.CitationCount)
		fmt.Printf("  Coverage: %.0f%%\n", r.CoverageScore*100)
		fmt.Printf("  Tokens: %d in / %d out\n", r.InputTokens, r.OutputTokens)
		fmt.Printf("  Cost: $%.4f (model $%.4f, search $%.4f)\n",
			r.Cost.Total, r.Cost.Model, r.Cost.Search)
	}

	return nil
}
