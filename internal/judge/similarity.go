package judge

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/lexmine/lexmine/internal/concepts"
	"github.com/lexmine/lexmine/internal/llm"
	"github.com/lexmine/lexmine/internal/session"
)

const similaritySystemPrompt = `You are a curator of a language-learning concept library. Given one newly extracted concept candidate and the library's existing concepts, identify which existing concepts cover the same material.

Respond with JSON only, in this shape:
{
  "matches": [
    {"concept_id": "id from the list", "score": 0.0 to 1.0, "justification": "one sentence"}
  ]
}

Score 1.0 means the candidate is the same concept. Score below 0.5 means they are merely related. Return {"matches": []} when nothing in the library covers the candidate.`

// LLMJudge implements SimilarityJudge against an llm.Provider. Matches
// scoring below the threshold are dropped.
type LLMJudge struct {
	provider  llm.Provider
	model     string
	threshold float64
}

// NewSimilarityJudge creates an LLM-backed similarity judge.
func NewSimilarityJudge(provider llm.Provider, model string, threshold float64) *LLMJudge {
	return &LLMJudge{provider: provider, model: model, threshold: threshold}
}

type similarityResponse struct {
	Matches []struct {
		ConceptID     string  `json:"concept_id"`
		Score         float64 `json:"score"`
		Justification string  `json:"justification"`
	} `json:"matches"`
}

// Judge compares one candidate against the index. An empty index short
// circuits to no matches without a model call.
func (j *LLMJudge) Judge(ctx context.Context, candidate session.ExtractedConcept, index []concepts.IndexEntry) ([]session.Match, Usage, error) {
	if len(index) == 0 {
		return nil, Usage{}, nil
	}

	resp, err := j.provider.Complete(ctx, llm.CompletionRequest{
		Model: j.model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: similaritySystemPrompt},
			{Role: llm.RoleUser, Content: buildSimilarityPrompt(candidate, index)},
		},
		MaxTokens:   1024,
		Temperature: 0.0,
		JSONMode:    true,
	})
	if err != nil {
		return nil, Usage{}, fmt.Errorf("similarity completion: %w", err)
	}
	usage := Usage{InputTokens: resp.InputTokens, OutputTokens: resp.OutputTokens}

	var parsed similarityResponse
	if err := json.Unmarshal([]byte(stripFences(resp.Content)), &parsed); err != nil {
		return nil, usage, fmt.Errorf("parsing similarity response: %w", err)
	}

	byID := make(map[string]concepts.IndexEntry, len(index))
	for _, e := range index {
		byID[e.ID] = e
	}

	var matches []session.Match
	for _, m := range parsed.Matches {
		entry, known := byID[m.ConceptID]
		if !known {
			// The model invented an id; skip rather than pollute review.
			continue
		}
		score := clamp01(m.Score)
		if score < j.threshold {
			continue
		}
		matches = append(matches, session.Match{
			ConceptID:     entry.ID,
			ConceptName:   entry.Name,
			Score:         score,
			Justification: strings.TrimSpace(m.Justification),
		})
	}
	return matches, usage, nil
}

func buildSimilarityPrompt(candidate session.ExtractedConcept, index []concepts.IndexEntry) string {
	var b strings.Builder
	b.WriteString("Candidate concept:\n")
	fmt.Fprintf(&b, "- name: %s\n- category: %s\n- difficulty: %s\n- description: %s\n",
		candidate.Name, candidate.Category, candidate.Difficulty, candidate.Description)
	if len(candidate.Examples) > 0 {
		fmt.Fprintf(&b, "- examples: %s\n", strings.Join(candidate.Examples, "; "))
	}

	b.WriteString("\nExisting concepts:\n")
	for _, e := range index {
		fmt.Fprintf(&b, "- id: %s | name: %s | category: %s | description: %s\n",
			e.ID, e.Name, e.Category, e.Description)
	}
	return b.String()
}
