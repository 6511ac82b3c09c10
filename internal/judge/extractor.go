package judge

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/lexmine/lexmine/internal/concepts"
	"github.com/lexmine/lexmine/internal/llm"
	"github.com/lexmine/lexmine/internal/session"
)

const extractSystemPrompt = `You are a language-learning content analyst. You extract grammar and vocabulary concepts from lesson material.

Respond with JSON only, in this shape:
{
  "concepts": [
    {
      "name": "concept name",
      "category": "grammar" or "vocabulary",
      "difficulty": "beginner", "intermediate" or "advanced",
      "description": "one or two sentences explaining the concept",
      "examples": ["example usage", "..."],
      "tags": ["short", "topical", "tags"],
      "confidence": 0.0 to 1.0
    }
  ]
}

Extract every distinct teachable concept the text covers. Confidence reflects how clearly the text teaches the concept, not how common it is. Return {"concepts": []} if the text teaches nothing.`

// LLMExtractor implements Extractor against an llm.Provider.
type LLMExtractor struct {
	provider llm.Provider
	model    string
}

// NewExtractor creates an LLM-backed concept extractor.
func NewExtractor(provider llm.Provider, model string) *LLMExtractor {
	return &LLMExtractor{provider: provider, model: model}
}

type extractResponse struct {
	Concepts []struct {
		Name        string   `json:"name"`
		Category    string   `json:"category"`
		Difficulty  string   `json:"difficulty"`
		Description string   `json:"description"`
		Examples    []string `json:"examples"`
		Tags        []string `json:"tags"`
		Confidence  float64  `json:"confidence"`
	} `json:"concepts"`
}

// Extract sends one chunk to the model and parses the candidates.
func (e *LLMExtractor) Extract(ctx context.Context, chunk string, chunkIndex int) ([]session.ExtractedConcept, Usage, error) {
	resp, err := completeWithRetry(ctx, e.provider, llm.CompletionRequest{
		Model: e.model,
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: extractSystemPrompt},
			{Role: llm.RoleUser, Content: "Lesson content:\n\n" + chunk},
		},
		MaxTokens:   4096,
		Temperature: 0.1,
		JSONMode:    true,
	})
	if err != nil {
		return nil, Usage{}, fmt.Errorf("extraction completion: %w", err)
	}
	usage := Usage{InputTokens: resp.InputTokens, OutputTokens: resp.OutputTokens}

	var parsed extractResponse
	if err := json.Unmarshal([]byte(stripFences(resp.Content)), &parsed); err != nil {
		return nil, usage, fmt.Errorf("parsing extraction response: %w", err)
	}

	var out []session.ExtractedConcept
	for _, c := range parsed.Concepts {
		name := strings.TrimSpace(c.Name)
		if name == "" {
			continue
		}
		out = append(out, session.ExtractedConcept{
			Name:        name,
			Category:    normalizeCategory(c.Category),
			Difficulty:  normalizeDifficulty(c.Difficulty),
			Description: strings.TrimSpace(c.Description),
			Examples:    c.Examples,
			Tags:        c.Tags,
			Confidence:  clamp01(c.Confidence),
			ChunkIndex:  chunkIndex,
		})
	}
	return out, usage, nil
}

// completeWithRetry backs off on rate-limit and overload errors; other
// failures surface immediately.
func completeWithRetry(ctx context.Context, provider llm.Provider, req llm.CompletionRequest) (*llm.CompletionResponse, error) {
	maxRetries := 5
	backoff := 15 * time.Second

	for attempt := 0; attempt <= maxRetries; attempt++ {
		resp, err := provider.Complete(ctx, req)
		if err == nil {
			return resp, nil
		}

		errStr := err.Error()
		retryable := strings.Contains(errStr, "rate_limit") ||
			strings.Contains(errStr, "429") ||
			strings.Contains(errStr, "too many requests") ||
			strings.Contains(errStr, "overloaded")
		if !retryable {
			return nil, err
		}
		if attempt == maxRetries {
			return nil, fmt.Errorf("rate limited after %d retries: %w", maxRetries, err)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(backoff):
			backoff *= 2
			if backoff > 2*time.Minute {
				backoff = 2 * time.Minute
			}
		}
	}
	return nil, fmt.Errorf("unreachable")
}

// stripFences removes markdown code fences some models wrap around
// JSON even in JSON mode.
func stripFences(raw string) string {
	raw = strings.TrimSpace(raw)
	if !strings.HasPrefix(raw, "```") {
		return raw
	}
	lines := strings.Split(raw, "\n")
	if len(lines) < 2 {
		return raw
	}
	end := len(lines)
	if strings.TrimSpace(lines[end-1]) == "```" {
		end--
	}
	return strings.Join(lines[1:end], "\n")
}

func normalizeCategory(s string) string {
	c := concepts.Category(strings.ToLower(strings.TrimSpace(s)))
	if concepts.ValidCategory(c) {
		return string(c)
	}
	return string(concepts.CategoryVocabulary)
}

func normalizeDifficulty(s string) string {
	d := concepts.Difficulty(strings.ToLower(strings.TrimSpace(s)))
	if concepts.ValidDifficulty(d) {
		return string(d)
	}
	return string(concepts.DifficultyBeginner)
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
