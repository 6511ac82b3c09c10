// Package similarity runs judged similarity checks over a session's
// extracted concepts in resumable batches, and flags duplicates
// against the concept library before review.
package similarity

import (
	"context"
	"fmt"
	"time"

	"github.com/lexmine/lexmine/internal/concepts"
	"github.com/lexmine/lexmine/internal/judge"
	"github.com/lexmine/lexmine/internal/session"
)

// BatchReport summarizes one ProcessBatch call.
type BatchReport struct {
	SessionID string `json:"session_id"`
	Processed int    `json:"processed"`
	Remaining int    `json:"remaining"`
	Completed bool   `json:"completed"`
}

// BatchProcessor checks extracted concepts against the concept index,
// a batch at a time. Each verdict is persisted before the next check
// starts, so an interrupted run resumes where it stopped.
type BatchProcessor struct {
	sessions *session.Store
	library  *concepts.Store
	judge    judge.SimilarityJudge

	batchSize int
	delay     time.Duration
	sleep     func(context.Context, time.Duration) error
}

// NewBatchProcessor creates a processor with the given batch size and
// pacing delay between judge calls.
func NewBatchProcessor(sessions *session.Store, library *concepts.Store, j judge.SimilarityJudge, batchSize int, delay time.Duration) *BatchProcessor {
	if batchSize < 1 {
		batchSize = 1
	}
	return &BatchProcessor{
		sessions:  sessions,
		library:   library,
		judge:     j,
		batchSize: batchSize,
		delay:     delay,
		sleep:     sleepCtx,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(d):
		return nil
	}
}

// ProcessBatch judges up to the configured batch size of unchecked
// concept names. Names that already carry a verdict are marked checked
// without a model call: re-running a batch never re-judges or
// duplicates work. When the last name is checked the session moves to
// extracted.
func (p *BatchProcessor) ProcessBatch(ctx context.Context, sessionID string) (*BatchReport, error) {
	return p.ProcessBatchN(ctx, sessionID, p.batchSize)
}

// ProcessBatchN is ProcessBatch with a caller-chosen batch size.
// Sizes below 1 fall back to the configured default.
func (p *BatchProcessor) ProcessBatchN(ctx context.Context, sessionID string, size int) (*BatchReport, error) {
	if size < 1 {
		size = p.batchSize
	}
	sess, err := p.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	switch sess.Status {
	case session.StatusSimilarityChecking:
	case session.StatusExtracted:
		return &BatchReport{SessionID: sessionID, Completed: true}, nil
	default:
		return nil, fmt.Errorf("session %s is %s, not similarity_checking", sessionID, sess.Status)
	}

	batch := uncheckedNames(sess, size)
	if len(batch) == 0 {
		return p.finishChecking(ctx, sess, 0)
	}

	index, err := p.library.ActiveIndex(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading concept index: %w", err)
	}

	processed := 0
	for i, name := range batch {
		judged, err := p.checkOne(ctx, sess, name, index)
		if err != nil {
			return nil, err
		}
		processed++

		sess.Progress.SimilarityCheckedCount = len(sess.ExtractedConcepts) - len(sess.UncheckedConcepts())
		sess.Progress.CurrentOperation = fmt.Sprintf("similarity check %q", name)
		sess.Progress.LastUpdated = time.Now().UTC()
		if err := p.sessions.Update(ctx, sess); err != nil {
			return nil, fmt.Errorf("persisting verdict for %q: %w", name, err)
		}

		// Pace judge calls; nothing to pace after the last item or
		// when the verdict came from the session itself.
		if judged && i < len(batch)-1 {
			if err := p.sleep(ctx, p.delay); err != nil {
				return nil, err
			}
		}
	}

	remaining := len(distinctNames(sess.UncheckedConcepts()))
	if remaining == 0 {
		return p.finishChecking(ctx, sess, processed)
	}
	return &BatchReport{SessionID: sessionID, Processed: processed, Remaining: remaining}, nil
}

// checkOne produces a verdict for one name. Returns whether the judge
// was actually called.
func (p *BatchProcessor) checkOne(ctx context.Context, sess *session.Session, name string, index []concepts.IndexEntry) (bool, error) {
	if sess.MatchFor(name) != nil {
		sess.MarkChecked(name)
		return false, nil
	}

	candidate := firstByName(sess.ExtractedConcepts, name)

	matches, _, err := p.judge.Judge(ctx, candidate, index)
	if err != nil {
		// One retry, then degrade to an empty verdict so a flaky
		// judge cannot wedge the whole session.
		matches, _, err = p.judge.Judge(ctx, candidate, index)
		if err != nil {
			matches = nil
		}
	}
	if matches == nil {
		matches = []session.Match{}
	}

	sess.SimilarityMatches = append(sess.SimilarityMatches, session.SimilarityMatch{
		ConceptName: name,
		Matches:     matches,
		CheckedAt:   time.Now().UTC(),
	})
	sess.MarkChecked(name)
	return true, nil
}

// finishChecking moves the session to extracted and records the mean
// extraction confidence. Zero concepts yields confidence 0.
func (p *BatchProcessor) finishChecking(ctx context.Context, sess *session.Session, processed int) (*BatchReport, error) {
	sess.Metadata.MeanConfidence = meanConfidence(sess.ExtractedConcepts)
	sess.Progress.SimilarityCheckedCount = len(sess.ExtractedConcepts)
	sess.Progress.CurrentOperation = "similarity checks complete"
	sess.Progress.LastUpdated = time.Now().UTC()
	if err := p.sessions.Update(ctx, sess); err != nil {
		return nil, err
	}
	if _, err := p.sessions.Transition(ctx, sess.ID, session.StatusExtracted); err != nil {
		return nil, err
	}
	return &BatchReport{SessionID: sess.ID, Processed: processed, Completed: true}, nil
}

func uncheckedNames(sess *session.Session, limit int) []string {
	names := distinctNames(sess.UncheckedConcepts())
	if len(names) > limit {
		names = names[:limit]
	}
	return names
}

func distinctNames(cs []session.ExtractedConcept) []string {
	seen := make(map[string]bool, len(cs))
	var names []string
	for _, c := range cs {
		if !seen[c.Name] {
			seen[c.Name] = true
			names = append(names, c.Name)
		}
	}
	return names
}

func firstByName(cs []session.ExtractedConcept, name string) session.ExtractedConcept {
	for _, c := range cs {
		if c.Name == name {
			return c
		}
	}
	return session.ExtractedConcept{Name: name}
}

func meanConfidence(cs []session.ExtractedConcept) float64 {
	if len(cs) == 0 {
		return 0
	}
	var sum float64
	for _, c := range cs {
		sum += c.Confidence
	}
	return sum / float64(len(cs))
}
