package cmd

import (
	"github.com/spf13/cobra"

	"github.com/lexmine/lexmine/internal/config"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize lexmine configuration with an interactive wizard",
	Long:  `Runs an interactive wizard to configure lexmine and generates a .lexmine.yml file.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		_, err := config.RunWizard()
		return err
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
}
