// Package mcp exposes the concept library and extraction sessions to
// MCP clients (editor assistants, agent frameworks).
package mcp

import (
	"github.com/mark3labs/mcp-go/server"

	"github.com/lexmine/lexmine/internal/concepts"
	"github.com/lexmine/lexmine/internal/review"
	"github.com/lexmine/lexmine/internal/session"
)

// Version is set via ldflags at build time.
var Version = "dev"

// Server wraps an MCP server that exposes concept library tools.
type Server struct {
	library  *concepts.Store
	sessions *session.Store
	review   *review.Processor
	mcp      *server.MCPServer
}

// NewServer creates an MCP server with the given dependencies.
func NewServer(library *concepts.Store, sessions *session.Store, reviewProcessor *review.Processor) *Server {
	s := &Server{
		library:  library,
		sessions: sessions,
		review:   reviewProcessor,
	}

	s.mcp = server.NewMCPServer(
		"lexmine",
		Version,
		server.WithToolCapabilities(false),
	)

	s.registerTools()
	return s
}

// registerTools adds all tool definitions and their handlers.
func (s *Server) registerTools() {
	s.mcp.AddTool(searchConceptsTool, s.handleSearchConcepts)
	s.mcp.AddTool(getSessionStatusTool, s.handleGetSessionStatus)
	s.mcp.AddTool(listPendingReviewsTool, s.handleListPendingReviews)
}

// Serve starts the MCP server on stdio. Stdout carries MCP protocol
// messages; all logging must go to stderr.
func (s *Server) Serve() error {
	return server.ServeStdio(s.mcp)
}
