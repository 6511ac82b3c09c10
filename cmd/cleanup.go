package cmd

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/lexmine/lexmine/internal/audit"
	"github.com/lexmine/lexmine/internal/cleanup"
	"github.com/lexmine/lexmine/internal/session"
)

var cleanupApply bool

var cleanupCmd = &cobra.Command{
	Use:   "cleanup",
	Short: "Sweep old extraction sessions per the retention policy",
	Long: `Deletes expired archived sessions, sweeps stale runs (stuck
mid-pipeline or parked in error) and archives old reviewed ones. Runs
as a dry run unless --apply is given.`,
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

		runner := cleanup.NewRunner(session.NewStore(database), audit.NewStore(database), cleanup.Policy{
			ArchivedDays: cfg.Retention.ArchivedDays,
			StaleDays:    cfg.Retention.StaleDays,
			ReviewedDays: cfg.Retention.ReviewedDays,
		})

		report, err := runner.Run(cmd.Context(), time.Now().UTC(), !cleanupApply)
		if err != nil {
			return fmt.Errorf("cleanup: %w", err)
		}

		if report.DryRun {
			fmt.Println("Dry run; re-run with --apply to make changes.")
		}
		fmt.Printf("Examined %d sessions.\n", report.Examined)
		fmt.Printf("  Archived sessions deleted: %d\n", report.DeletedArchived)
		fmt.Printf("  Stale sessions deleted: %d\n", report.DeletedStale)
		fmt.Printf("  Reviewed sessions archived: %d\n", report.ArchivedReviewed)
		return nil
	},
}

func init() {
	cleanupCmd.Flags().BoolVar(&cleanupApply, "apply", false, "actually delete and archive instead of reporting")
	rootCmd.AddCommand(cleanupCmd)
}
