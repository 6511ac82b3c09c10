package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/lexmine/lexmine/internal/concepts"
)

var (
	conceptsCategory string
	conceptsSearch   string
	conceptsLimit    int
)

var conceptsCmd = &cobra.Command{
	Use:   "concepts",
	Short: "List concepts in the library",
	Long:  `Lists active concepts from the library, optionally filtered by category or a search term.`,
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

		library := concepts.NewStore(database)
		results, err := library.ListPage(cmd.Context(), concepts.ListFilter{
			Category:   concepts.Category(conceptsCategory),
			Search:     conceptsSearch,
			ActiveOnly: true,
		}, 1, conceptsLimit)
		if err != nil {
			return fmt.Errorf("listing concepts: %w", err)
		}
		if len(results) == 0 {
			fmt.Println("No concepts found. Extract and review a lesson first.")
			return nil
		}

		for _, c := range results {
			fmt.Printf("%s  %-12s %-12s %.2f  %s\n", c.ID, c.Category, c.Difficulty, c.Confidence, c.Name)
			if verbose && c.Description != "" {
				fmt.Printf("    %s\n", c.Description)
			}
		}
		return nil
	},
}

func init() {
	conceptsCmd.Flags().StringVar(&conceptsCategory, "category", "", "filter by category (grammar|vocabulary)")
	conceptsCmd.Flags().StringVar(&conceptsSearch, "search", "", "match against names and descriptions")
	conceptsCmd.Flags().IntVar(&conceptsLimit, "limit", 50, "maximum results")
	rootCmd.AddCommand(conceptsCmd)
}
