package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lexmine/lexmine/internal/documents"
	"github.com/lexmine/lexmine/internal/progress"
	"github.com/lexmine/lexmine/internal/walker"
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [dir]",
	Short: "Import lesson documents from a directory",
	Long: `Scans a directory for lesson files (markdown and plain text by
default), and stores each one as a document ready for extraction.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig()
		if err != nil {
			return err
		}

		rootDir := "."
		if len(args) > 0 {
			rootDir = args[0]
		}

		files, err := walker.Walk(walker.Config{
			RootDir: rootDir,
			Include: cfg.Ingest.Include,
			Exclude: cfg.Ingest.Exclude,
		})
		if err != nil {
			return fmt.Errorf("scanning %s: %w", rootDir, err)
		}
		if len(files) == 0 {
			fmt.Println("No lesson files found.")
			return nil
		}
		if verbose {
			fmt.Fprintf(os.Stderr, "Found %d lesson files in %s\n", len(files), rootDir)
		}

		database, err := openDatabase(cfg)
		if err != nil {
			return fmt.Errorf("opening database: %w", err)
		}
		defer database.Close()
		docs := documents.NewStore(database)

		ctx := cmd.Context()
		reporter := progress.NewReporter()
		reporter.Start(len(files))

		var imported int
		for i, f := range files {
			reporter.Update(i, f.RelPath)
			content, err := os.ReadFile(f.Path)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Warning: skipping %s: %v\n", f.RelPath, err)
				continue
			}
			if _, err := docs.Create(ctx, documents.Document{
				Name:    documents.TitleFromContent(string(content), f.RelPath),
				Content: string(content),
			}); err != nil {
				fmt.Fprintf(os.Stderr, "Warning: skipping %s: %v\n", f.RelPath, err)
				continue
			}
			imported++
		}
		reporter.Finish()

		fmt.Printf("Imported %d of %d lesson files.\n", imported, len(files))
		fmt.Println("Run `lexmine extract <document-id>` to extract concepts.")
		return nil
	},
}

func init() {
	rootCmd.AddCommand(ingestCmd)
}
