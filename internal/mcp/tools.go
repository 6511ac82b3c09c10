package mcp

import "github.com/mark3labs/mcp-go/mcp"

// searchConceptsTool defines the search_concepts MCP tool.
var searchConceptsTool = mcp.NewTool("search_concepts",
	mcp.WithDescription("Search the concept library by name or description. Returns matching grammar and vocabulary concepts."),
	mcp.WithString("query",
		mcp.Required(),
		mcp.Description("Search text matched against concept names and descriptions"),
	),
	mcp.WithString("category",
		mcp.Description("Filter by concept category"),
		mcp.Enum("grammar", "vocabulary"),
	),
	mcp.WithNumber("limit",
		mcp.Description("Maximum number of results to return (default 10)"),
	),
)

// getSessionStatusTool defines the get_session_status MCP tool.
var getSessionStatusTool = mcp.NewTool("get_session_status",
	mcp.WithDescription("Get the status and progress of one extraction session."),
	mcp.WithString("session_id",
		mcp.Required(),
		mcp.Description("Extraction session id"),
	),
)

// listPendingReviewsTool defines the list_pending_reviews MCP tool.
var listPendingReviewsTool = mcp.NewTool("list_pending_reviews",
	mcp.WithDescription("List extraction sessions waiting for human review, with their reviewable concepts."),
)
