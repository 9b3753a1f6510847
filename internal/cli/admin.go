package cli

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"
)

var adminSecret string

var adminCmd = &cobra.Command{
	Use:   "admin",
	Short: "Administrative server operations",
	Long: `Administrative server operations.

Requires the server's admin secret, passed via --secret or the
TOOLBRIEF_ADMIN_SECRET env var.`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := rootCmd.PersistentPreRunE(cmd, args); err != nil {
			return err
		}
		if adminSecret != "" {
			apiClient.WithAdminSecret(adminSecret)
		}
		return nil
	},
}

var adminStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show server runtime statistics",
	RunE:  runAdminStats,
}

var adminProcessCmd = &cobra.Command{
	Use:   "process",
	Short: "Run a single processing cycle",
	RunE:  runAdminProcess,
}

var adminDeleteCmd = &cobra.Command{
	Use:   "delete <job-id>",
	Short: "Force-delete a job regardless of status",
	Args:  cobra.ExactArgs(1),
	RunE:  runAdminDelete,
}

func init() {
	rootCmd.AddCommand(adminCmd)
	adminCmd.AddCommand(adminStatsCmd)
	adminCmd.AddCommand(adminProcessCmd)
	adminCmd.AddCommand(adminDeleteCmd)

	adminCmd.PersistentFlags().StringVar(&adminSecret, "secret", "", "admin secret (default $TOOLBRIEF_ADMIN_SECRET)")
}

func runAdminStats(cmd *cobra.Command, args []string) error {
	ctx := context.Background()

	snap, err := apiClient.Stats(ctx)
	if err != nil {
		return fmt.Errorf("get stats: %w", err)
	}

	uptime := time.Duration(snap.UptimeSeconds * float64(time.Second)).Round(time.Second)
	fmt.Printf("Server uptime: %s\n\n", uptime)

	if len(snap.Operations) == 0 {
		fmt.Println("No operations recorded yet")
		return nil
	}

	names := make([]string, 0, len(snap.Operations))
	for name := range snap.Operations {
		names = append(names, name)
	}
	sort.Strings(names)

	fmt.Printf("%-16s %8s %8s %10s %10s %10s\n", "OPERATION", "COUNT", "FAILED", "AVG", "MIN", "MAX")
	fmt.Println("------------------------------------------------------------------")
	for _, name := range names {
		op := snap.Operations[name]
		fmt.Printf("%-16s %8d %8d %9.0fms %8dms %8dms\n",
			name, op.Count, op.Failures, op.AvgTimeMs, op.MinTimeMs, op.MaxTimeMs)
	}

	for _, name := range names {
		op := snap.Operations[name]
		if op.InputTokens != nil && op.OutputTokens != nil {
			fmt.Printf("\n%s tokens: %d in / %d out\n", name, *op.InputTokens, *op.OutputTokens)
		}
	}

	return nil
}

func runAdminProcess(cmd *cobra.Command, args []string) error {
	processed, err := apiClient.ProcessOnce(context.Background())
	if err != nil {
		return fmt.Errorf("process: %w", err)
	}

	if processed {
		fmt.Println("Processed one job")
	} else {
		fmt.Println("Queue is empty")
	}
	return nil
}

func runAdminDelete(cmd *cobra.Command, args []string) error {
	if err := apiClient.ForceDeleteJob(context.Background(), args[0]); err != nil {
		return fmt.Errorf("force delete job: %w", err)
	}

	fmt.Printf("Deleted: %s\n", args[0])
	return nil
}
