package cmd

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/lexmine/lexmine/internal/audit"
	"github.com/lexmine/lexmine/internal/cleanup"
	"github.com/lexmine/lexmine/internal/concepts"
	"github.com/lexmine/lexmine/internal/documents"
	"github.com/lexmine/lexmine/internal/review"
	"github.com/lexmine/lexmine/internal/server"
	"github.com/lexmine/lexmine/internal/session"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the lexmine API server",
	Long:  `Starts the HTTP API server for documents, extraction sessions, review, and the concept library.`,
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

		docs := documents.NewStore(database)
		sessions := session.NewStore(database)
		library := concepts.NewStore(database)
		auditStore := audit.NewStore(database)

		port := cfg.Port
		if servePort != 0 {
			port = servePort
		}

		srv := server.New(server.Config{Port: port, AllowAll: true}, server.Deps{
			Documents:    docs,
			Sessions:     sessions,
			Concepts:     library,
			Audit:        auditStore,
			Orchestrator: orch,
			Review:       review.NewProcessor(sessions, library, docs, auditStore),
			Cleanup: cleanup.NewRunner(sessions, auditStore, cleanup.Policy{
				ArchivedDays: cfg.Retention.ArchivedDays,
				StaleDays:    cfg.Retention.StaleDays,
				ReviewedDays: cfg.Retention.ReviewedDays,
			}),
		})

		// Graceful shutdown.
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		go func() {
			<-ctx.Done()
			fmt.Fprintln(os.Stderr, "\nShutting down server...")
			srv.Shutdown(context.Background())
		}()

		fmt.Fprintf(os.Stderr, "lexmine server v%s starting on port %d\n", Version, port)
		fmt.Fprintf(os.Stderr, "  Database: %s\n", cfg.DataDir)
		fmt.Fprintf(os.Stderr, "  Provider: %s (%s)\n", cfg.Provider, cfg.Model)

		return srv.Start()
	},
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "Port to listen on (overrides config)")
	rootCmd.AddCommand(serveCmd)
}
