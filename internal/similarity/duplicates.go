package similarity

import (
	"context"
	"fmt"
	"strings"

	"github.com/philippgille/chromem-go"

	"github.com/lexmine/lexmine/internal/concepts"
	"github.com/lexmine/lexmine/internal/session"
)

// DuplicateDetector flags extracted concepts that already exist in the
// library, first by exact name, then semantically over an in-memory
// vector collection.
type DuplicateDetector struct {
	threshold float64
	embedder  chromem.EmbeddingFunc
}

// NewDuplicateDetector creates a detector. A nil embedder disables the
// semantic pass; exact name matching still runs.
func NewDuplicateDetector(threshold float64, embedder chromem.EmbeddingFunc) *DuplicateDetector {
	return &DuplicateDetector{threshold: threshold, embedder: embedder}
}

// Detect compares candidates against the library index and returns the
// flags, exact matches first.
func (d *DuplicateDetector) Detect(ctx context.Context, candidates []session.ExtractedConcept, index []concepts.IndexEntry) (*session.DuplicateDetection, error) {
	result := &session.DuplicateDetection{Checked: true, Duplicates: []session.DuplicateFlag{}}
	if len(index) == 0 || len(candidates) == 0 {
		return result, nil
	}

	byLowerName := make(map[string]concepts.IndexEntry, len(index))
	for _, e := range index {
		byLowerName[strings.ToLower(e.Name)] = e
	}

	flagged := make(map[string]bool)
	for _, c := range candidates {
		if flagged[c.Name] {
			continue
		}
		if existing, ok := byLowerName[strings.ToLower(c.Name)]; ok {
			result.Duplicates = append(result.Duplicates, session.DuplicateFlag{
				ConceptName:       c.Name,
				ExistingConceptID: existing.ID,
				Method:            "exact",
				Score:             1,
			})
			flagged[c.Name] = true
		}
	}

	if d.embedder == nil {
		return result, nil
	}

	collection, err := buildCollection(ctx, index, d.embedder)
	if err != nil {
		return nil, fmt.Errorf("building duplicate index: %w", err)
	}

	for _, c := range candidates {
		if flagged[c.Name] {
			continue
		}
		flagged[c.Name] = true

		hits, err := collection.Query(ctx, entryText(c.Name, c.Description), 1, nil, nil)
		if err != nil {
			return nil, fmt.Errorf("querying duplicate index for %q: %w", c.Name, err)
		}
		if len(hits) == 0 || float64(hits[0].Similarity) < d.threshold {
			continue
		}
		result.Duplicates = append(result.Duplicates, session.DuplicateFlag{
			ConceptName:       c.Name,
			ExistingConceptID: hits[0].ID,
			Method:            "semantic",
			Score:             float64(hits[0].Similarity),
		})
	}
	return result, nil
}

func buildCollection(ctx context.Context, index []concepts.IndexEntry, embedder chromem.EmbeddingFunc) (*chromem.Collection, error) {
	db := chromem.NewDB()
	collection, err := db.CreateCollection("concepts", nil, embedder)
	if err != nil {
		return nil, err
	}

	docs := make([]chromem.Document, 0, len(index))
	for _, e := range index {
		docs = append(docs, chromem.Document{
			ID:      e.ID,
			Content: entryText(e.Name, e.Description),
		})
	}
	if err := collection.AddDocuments(ctx, docs, 1); err != nil {
		return nil, err
	}
	return collection, nil
}

func entryText(name, description string) string {
	if description == "" {
		return name
	}
	return name + ": " + description
}
