package mcp

import (
	"context"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"

	"github.com/lexmine/lexmine/internal/concepts"
	"github.com/lexmine/lexmine/internal/session"
)

// handleSearchConcepts searches the library by name or description.
func (s *Server) handleSearchConcepts(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	query, err := request.RequireString("query")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: query"), nil
	}

	limit := request.GetInt("limit", 10)
	if limit <= 0 {
		limit = 10
	}
	filter := concepts.ListFilter{
		Search:     query,
		Category:   concepts.Category(request.GetString("category", "")),
		ActiveOnly: true,
	}

	results, err := s.library.ListPage(ctx, filter, 1, limit)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("search failed: %v", err)), nil
	}
	if len(results) == 0 {
		return mcp.NewToolResultText("No concepts match. The library may still be empty; extract and review a lesson first."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Found %d concepts:\n\n", len(results))
	for _, c := range results {
		fmt.Fprintf(&b, "## %s (%s, %s)\n%s\n", c.Name, c.Category, c.Difficulty, c.Description)
		if len(c.Examples) > 0 {
			fmt.Fprintf(&b, "Examples: %s\n", strings.Join(c.Examples, "; "))
		}
		b.WriteString("\n")
	}
	return mcp.NewToolResultText(b.String()), nil
}

// handleGetSessionStatus reports one session's lifecycle state and progress.
func (s *Server) handleGetSessionStatus(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	id, err := request.RequireString("session_id")
	if err != nil {
		return mcp.NewToolResultError("missing required parameter: session_id"), nil
	}

	sess, err := s.sessions.GetByID(ctx, id)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("session lookup failed: %v", err)), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Session %s\n", sess.ID)
	fmt.Fprintf(&b, "Document: %s\nStatus: %s\n", sess.DocumentID, sess.Status)
	fmt.Fprintf(&b, "Chunks: %d/%d processed\n", sess.Progress.ProcessedChunks, sess.Progress.TotalChunks)
	fmt.Fprintf(&b, "Concepts: %d extracted, %d similarity checked\n",
		sess.Progress.ExtractedConceptCount, sess.Progress.SimilarityCheckedCount)
	if sess.Progress.CurrentOperation != "" {
		fmt.Fprintf(&b, "Current operation: %s\n", sess.Progress.CurrentOperation)
	}
	if sess.ErrorMessage != "" {
		fmt.Fprintf(&b, "Error: %s\n", sess.ErrorMessage)
	}
	return mcp.NewToolResultText(b.String()), nil
}

// handleListPendingReviews lists sessions awaiting review decisions:
// finalized ones still in extracted plus those already in_review.
func (s *Server) handleListPendingReviews(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	var sessions []*session.Session
	for _, status := range []session.Status{session.StatusExtracted, session.StatusInReview} {
		batch, err := s.sessions.List(ctx, session.ListFilter{Status: status})
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("listing sessions failed: %v", err)), nil
		}
		for _, sess := range batch {
			// Extracted sessions count only once finalization has
			// initialized their review progress.
			if status == session.StatusExtracted && sess.ReviewProgress == nil {
				continue
			}
			sessions = append(sessions, sess)
		}
	}
	if len(sessions) == 0 {
		return mcp.NewToolResultText("No sessions are waiting for review."), nil
	}

	var b strings.Builder
	fmt.Fprintf(&b, "%d sessions awaiting review:\n\n", len(sessions))
	for _, sess := range sessions {
		fmt.Fprintf(&b, "## Session %s (document %s)\n", sess.ID, sess.DocumentID)
		items, err := s.review.Payload(ctx, sess.ID)
		if err != nil {
			fmt.Fprintf(&b, "could not load items: %v\n\n", err)
			continue
		}
		for _, item := range items {
			marker := " "
			if item.Decision != "" {
				marker = item.Decision
			}
			fmt.Fprintf(&b, "- [%s] %s (%s, %.2f confidence, %d matches)\n",
				marker, item.Name, item.Category, item.Confidence, len(item.Matches))
		}
		b.WriteString("\n")
	}
	return mcp.NewToolResultText(b.String()), nil
}
