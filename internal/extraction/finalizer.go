package extraction

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/lexmine/lexmine/internal/documents"
	"github.com/lexmine/lexmine/internal/session"
)

// ErrNotReady marks a finalize call against a session whose similarity
// checks have not finished.
var ErrNotReady = errors.New("session not ready to finalize")

// Stats are the aggregate figures computed when a session is sealed
// for review.
type Stats struct {
	TotalConcepts       int     `json:"total_concepts"`
	DistinctConcepts    int     `json:"distinct_concepts"`
	MeanConfidence      float64 `json:"mean_confidence"`
	HighConfidenceCount int     `json:"high_confidence_count"`
	CategoryCount       int     `json:"category_count"`
	ProcessingSeconds   float64 `json:"processing_seconds"`
}

// highConfidenceFloor is the exclusive bound above which a candidate
// counts as high confidence.
const highConfidenceFloor = 0.8

// Finalizer seals an extracted session: verifies every candidate was
// similarity checked, records aggregate stats and hands the session to
// review.
type Finalizer struct {
	sessions  *session.Store
	documents *documents.Store
}

// NewFinalizer creates a finalizer.
func NewFinalizer(sessions *session.Store, docs *documents.Store) *Finalizer {
	return &Finalizer{sessions: sessions, documents: docs}
}

// Finalize seals a fully checked session: aggregate stats are computed
// and review progress is initialized. The session stays extracted until
// a reviewer records the first decision. It refuses sessions that are
// not extracted or that still hold unchecked candidates; both point at
// pipeline inconsistency rather than normal flow.
func (f *Finalizer) Finalize(ctx context.Context, sessionID string) (*Stats, error) {
	sess, err := f.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if unchecked := len(sess.UncheckedConcepts()); unchecked > 0 {
		return nil, fmt.Errorf("session %s has %d of %d concepts unchecked: %w",
			sessionID, unchecked, len(sess.ExtractedConcepts), ErrNotReady)
	}
	switch sess.Status {
	case session.StatusExtracted:
	case session.StatusSimilarityChecking:
		// Fully checked but the completing batch never flipped the
		// status; finish that transition here.
		if sess, err = f.sessions.Transition(ctx, sessionID, session.StatusExtracted); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("session %s is %s, not extracted: %w", sessionID, sess.Status, ErrNotReady)
	}

	stats := computeStats(sess)
	sess.Metadata.MeanConfidence = stats.MeanConfidence
	sess.Metadata.HighConfidenceCount = stats.HighConfidenceCount
	sess.Metadata.CategoryCount = stats.CategoryCount
	sess.Metadata.ProcessingSeconds = stats.ProcessingSeconds

	now := time.Now().UTC()
	sess.ReviewProgress = &session.ReviewProgress{
		TotalConcepts: stats.DistinctConcepts,
		Decisions:     map[string]string{},
		IsDraft:       true,
		LastUpdated:   now,
	}
	sess.Progress.Phase = "finalized"
	sess.Progress.CurrentOperation = "awaiting review"
	sess.Progress.EstimatedSecondsRemaining = 0
	sess.Progress.LastUpdated = now

	if err := f.sessions.Update(ctx, sess); err != nil {
		return nil, err
	}

	// The document's status mirrors the pipeline for listing purposes;
	// a failed write must not undo a successful finalization.
	if err := f.documents.SetExtractionStatus(ctx, sess.DocumentID, documents.StatusExtracted); err != nil {
		log.Printf("extraction: document %s status update: %v", sess.DocumentID, err)
	}
	return &stats, nil
}

func computeStats(sess *session.Session) Stats {
	stats := Stats{TotalConcepts: len(sess.ExtractedConcepts)}

	names := make(map[string]bool)
	categories := make(map[string]bool)
	var sum float64
	for _, c := range sess.ExtractedConcepts {
		names[c.Name] = true
		categories[c.Category] = true
		sum += c.Confidence
		if c.Confidence > highConfidenceFloor {
			stats.HighConfidenceCount++
		}
	}
	stats.DistinctConcepts = len(names)
	stats.CategoryCount = len(categories)
	if stats.TotalConcepts > 0 {
		stats.MeanConfidence = sum / float64(stats.TotalConcepts)
	}
	if sess.ExtractionStartedAt != nil {
		stats.ProcessingSeconds = time.Since(*sess.ExtractionStartedAt).Seconds()
	}
	return stats
}
