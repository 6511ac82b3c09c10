package cmd

import (
	"github.com/spf13/cobra"
)

var (
	cfgFile string
	verbose bool
)

var rootCmd = &cobra.Command{
	Use:   "lexmine",
	Short: "Extract language-learning concepts from lesson documents",
	Long: `Lexmine reads lesson documents, extracts the grammar and vocabulary
concepts they teach using an LLM, checks each candidate against the
existing concept library, and queues the results for human review.
Approved concepts accumulate into a deduplicated knowledge base.`,
}

func Execute() error {
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", ".lexmine.yml", "config file path")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")
}
