package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/lexmine/lexmine/internal/audit"
	"github.com/lexmine/lexmine/internal/concepts"
	"github.com/lexmine/lexmine/internal/documents"
	mcpserver "github.com/lexmine/lexmine/internal/mcp"
	"github.com/lexmine/lexmine/internal/review"
	"github.com/lexmine/lexmine/internal/session"
)

var mcpCmd = &cobra.Command{
	Use:   "mcp",
	Short: "Start the MCP server for AI agent integration",
	Long:  `Starts a Model Context Protocol (MCP) server on stdio, exposing the concept library and extraction sessions to AI agents.`,
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

		docs := documents.NewStore(database)
		sessions := session.NewStore(database)
		library := concepts.NewStore(database)
		reviewProcessor := review.NewProcessor(sessions, library, docs, audit.NewStore(database))

		// Set version from the cmd package variable.
		mcpserver.Version = Version

		// Stdout carries protocol messages, so announce on stderr.
		fmt.Fprintln(os.Stderr, "lexmine MCP server started on stdio")

		srv := mcpserver.NewServer(library, sessions, reviewProcessor)
		return srv.Serve()
	},
}

func init() {
	rootCmd.AddCommand(mcpCmd)
}
