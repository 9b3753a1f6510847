package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
)

var (
	manualJSON     bool
	manualVersions bool
	manualOutput   string
)

var manualCmd = &cobra.Command{
	Use:   "manual <slug>",
	Short: "Fetch a generated manual",
	Long: `Fetch the latest generated manual for a tool by its slug.

By default a readable summary is printed; use --json for the full manual
document, --versions for the archived version history, and -o to write
the output to a file.

Examples:
  toolbrief manual notion
  toolbrief manual visual-studio-code --json -o vscode.json
  toolbrief manual figma --versions`,
	Args: cobra.ExactArgs(1),
	RunE: runManual,
}

func init() {
	rootCmd.AddCommand(manualCmd)

	manualCmd.Flags().BoolVar(&manualJSON, "json", false, "print the full manual as JSON")
	manualCmd.Flags().BoolVar(&manualVersions, "versions", false, "list archived versions instead of the manual")
	manualCmd.Flags().StringVarP(&manualOutput, "output", "o", "", "write output to file")
}

func runManual(cmd *cobra.Command, args []string) error {
	slug := args[0]
	ctx := context.Background()

	if manualVersions {
		return listVersions(ctx, slug)
	}

	manual, err := apiClient.GetManual(ctx, slug)
	if err != nil {
		return fmt.Errorf("get manual: %w", err)
	}

	if manualJSON {
		data, err := json.MarshalIndent(manual, "", "  ")
		if err != nil {
			return fmt.Errorf("marshal manual: %w", err)
		}
		return writeOutput(append(data, '\n'))
	}

	var out string
	out += fmt.Sprintf("%s (%s)\n", manual.ToolName, manual.Slug)
	out += fmt.Sprintf("Generated %s, coverage %.0f%%, %d citations\n\n",
		manual.GeneratedAt.Format(time.RFC3339), manual.CoverageScore*100, len(manual.Citations))
	out += fmt.Sprintf("%s\n", manual.Overview.Description)

	out += fmt.Sprintf("\nFeatures (%d):\n", len(manual.Features))
	for _, f := range manual.Features {
		out += fmt.Sprintf("  - %s [%s]: %s\n", f.Name, f.PowerLevel, f.WhatItsFor)
	}

	out += fmt.Sprintf("\nShortcuts (%d):\n", len(manual.Shortcuts))
	for _, s := range manual.Shortcuts {
		out += fmt.Sprintf("  - %-24s %s\n", s.Keys, s.Description)
	}

	out += fmt.Sprintf("\nWorkflows (%d):\n", len(manual.Workflows))
	for _, w := range manual.Workflows {
		out += fmt.Sprintf("  - %s [%s, %d steps]\n", w.Name, w.Difficulty, len(w.Steps))
	}

	out += fmt.Sprintf("\nTips (%d):\n", len(manual.Tips))
	for _, t := range manual.Tips {
		out += fmt.Sprintf("  - [%s] %s\n", t.Category, t.Title)
	}

	out += fmt.Sprintf("\nCommon mistakes (%d):\n", len(manual.CommonMistakes))
	for _, m := range manual.CommonMistakes {
		out += fmt.Sprintf("  - [%s] %s\n", m.Severity, m.Title)
	}

	return writeOutput([]byte(out))
}

func listVersions(ctx context.Context, slug string) error {
	versions, err := apiClient.GetManualVersions(ctx, slug)
	if err != nil {
		return fmt.Errorf("get manual versions: %w", err)
	}

	if len(versions) == 0 {
		fmt.Println("No versions found")
		return nil
	}

	fmt.Printf("%-22s %s\n", "UPLOADED", "URL")
	fmt.Println("--------------------------------------------------------------------------------")
	for _, v := range versions {
		fmt.Printf("%-22s %s\n", v.UploadedAt.Format(time.RFC3339), v.URL)
	}
	return nil
}

func writeOutput(data []byte) error {
	if manualOutput == "" {
		fmt.Print(string(data))
		return nil
	}
	if err := os.WriteFile(manualOutput, data, 0o644); err != nil {
		return fmt.Errorf("write output: %w", err)
	}
	fmt.Printf("Written to %s\n", manualOutput)
	return nil
}
