// Package judge wraps the LLM provider behind the two model-facing
// roles of the pipeline: extracting concept candidates from lesson
// chunks and judging candidate similarity against the concept index.
package judge

import (
	"context"

	"github.com/lexmine/lexmine/internal/concepts"
	"github.com/lexmine/lexmine/internal/session"
)

// Usage reports token consumption for a single model call.
type Usage struct {
	InputTokens  int
	OutputTokens int
}

// Extractor pulls concept candidates out of one lesson chunk.
type Extractor interface {
	Extract(ctx context.Context, chunk string, chunkIndex int) ([]session.ExtractedConcept, Usage, error)
}

// SimilarityJudge compares one candidate against the active concept
// index and returns the plausible matches with scores.
type SimilarityJudge interface {
	Judge(ctx context.Context, candidate session.ExtractedConcept, index []concepts.IndexEntry) ([]session.Match, Usage, error)
}
