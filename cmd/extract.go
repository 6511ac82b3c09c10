package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lexmine/lexmine/internal/extraction"
	"github.com/lexmine/lexmine/internal/progress"
	"github.com/lexmine/lexmine/internal/session"
)

var extractCmd = &cobra.Command{
	Use:   "extract <document-id>",
	Short: "Extract concepts from a document",
	Long: `Runs the full extraction pipeline on one document: chunking,
concept extraction, and similarity checking against the concept
library. The session ends up waiting for review.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		database, err := openDatabase(cfg)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer database.Close()

		orch, err := buildOrchestrator(cfg, database)
		if err != nil {
			return err
		}
		reporter := progress.NewReporter()
		orch.OnProgress = progressFunc(reporter)
		defer reporter.Finish()

		result, err := orch.Run(cmd.Context(), args[0])
		if err != nil {
			if result != nil && result.SessionID != "" {
				fmt.Fprintf(os.Stderr, "Session %s failed during %s; run `lexmine resume %s` to retry.\n",
					result.SessionID, result.FailedPhase, result.SessionID)
			}
			return err
		}

		printRunResult(result)
		return nil
	},
}

var resumeCmd = &cobra.Command{
	Use:   "resume <session-id>",
	Short: "Resume a failed or interrupted extraction session",
	Long: `Picks an extraction session back up from its last persisted state.
Already processed chunks and similarity verdicts are not redone.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		database, err := openDatabase(cfg)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer database.Close()

		orch, err := buildOrchestrator(cfg, database)
		if err != nil {
			return err
		}
		reporter := progress.NewReporter()
		orch.OnProgress = progressFunc(reporter)
		defer reporter.Finish()

		result, err := orch.Execute(cmd.Context(), args[0])
		if err != nil {
			return err
		}

		printRunResult(result)
		return nil
	},
}

// progressFunc drives a terminal progress bar from pipeline progress
// writes.
func progressFunc(reporter progress.Reporter) func(session.Progress) {
	started := false
	return func(p session.Progress) {
		if !started && p.TotalChunks > 0 {
			reporter.Start(p.TotalChunks)
			started = true
		}
		if started {
			reporter.Update(p.ProcessedChunks, p.CurrentOperation)
		}
	}
}

func printRunResult(result *extraction.RunResult) {
	fmt.Printf("Session %s complete.\n", result.SessionID)
	if result.Stats != nil {
		fmt.Printf("  Concepts extracted: %d (%d distinct)\n",
			result.Stats.TotalConcepts, result.Stats.DistinctConcepts)
		fmt.Printf("  Mean confidence: %.2f\n", result.Stats.MeanConfidence)
		fmt.Printf("  Processing time: %.1fs\n", result.Stats.ProcessingSeconds)
	}
	fmt.Printf("Review at POST /api/sessions/%s/review or via the MCP tools.\n", result.SessionID)
}

func init() {
	rootCmd.AddCommand(extractCmd)
	rootCmd.AddCommand(resumeCmd)
}
