// Package extraction drives a full concept extraction run: chunking
// the document, extracting candidates per chunk, batching similarity
// checks and finalizing the session for review.
package extraction

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/lexmine/lexmine/internal/chunker"
	"github.com/lexmine/lexmine/internal/concepts"
	"github.com/lexmine/lexmine/internal/documents"
	"github.com/lexmine/lexmine/internal/judge"
	"github.com/lexmine/lexmine/internal/session"
	"github.com/lexmine/lexmine/internal/similarity"
)

// RunResult reports how far a run got. FailedPhase is empty when the
// run completed.
type RunResult struct {
	SessionID   string `json:"session_id"`
	Completed   bool   `json:"completed"`
	FailedPhase string `json:"failed_phase,omitempty"`
	Stats       *Stats `json:"stats,omitempty"`
}

// Orchestrator wires the pipeline stages together. Every stage writes
// its results to the session before moving on, so a crashed or failed
// run resumes from durable state instead of starting over.
type Orchestrator struct {
	documents *documents.Store
	sessions  *session.Store
	library   *concepts.Store
	extractor judge.Extractor
	processor *similarity.BatchProcessor
	detector  *similarity.DuplicateDetector
	chunker   *chunker.Chunker
	finalizer *Finalizer

	provider string
	model    string

	// OnProgress, when set, observes every progress write. Used by the
	// CLI to drive its progress bar.
	OnProgress func(session.Progress)
}

// NewOrchestrator assembles a pipeline. The detector may be nil to
// skip pre-review duplicate flagging.
func NewOrchestrator(
	docs *documents.Store,
	sessions *session.Store,
	library *concepts.Store,
	extractor judge.Extractor,
	processor *similarity.BatchProcessor,
	detector *similarity.DuplicateDetector,
	ch *chunker.Chunker,
	provider, model string,
) *Orchestrator {
	return &Orchestrator{
		documents: docs,
		sessions:  sessions,
		library:   library,
		extractor: extractor,
		processor: processor,
		detector:  detector,
		chunker:   ch,
		finalizer: NewFinalizer(sessions, docs),
		provider:  provider,
		model:     model,
	}
}

// Prepare validates the document and opens a session in the analyzing
// state. session.ErrActiveSession surfaces unchanged so callers can
// map it to a conflict.
func (o *Orchestrator) Prepare(ctx context.Context, documentID string) (*session.Session, error) {
	doc, err := o.documents.GetByID(ctx, documentID)
	if err != nil {
		return nil, err
	}
	return o.sessions.Create(ctx, doc.ID, doc.Name)
}

// Analyze opens a session for the document and runs the chunk-analysis
// phase, leaving the session in the extracting state. It is the first
// of the externally drivable pipeline steps; Run covers all of them in
// one call.
func (o *Orchestrator) Analyze(ctx context.Context, documentID string) (*session.Session, error) {
	sess, err := o.Prepare(ctx, documentID)
	if err != nil {
		return nil, err
	}
	if err := o.analyze(ctx, sess); err != nil {
		_, ferr := o.fail(ctx, sess.ID, "analyzing", err)
		return nil, ferr
	}
	return o.sessions.GetByID(ctx, sess.ID)
}

// ExtractChunks runs the per-chunk extraction phase for a session in
// the extracting state, leaving it in similarity_checking.
func (o *Orchestrator) ExtractChunks(ctx context.Context, sessionID string) (*session.Session, error) {
	sess, err := o.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Status != session.StatusExtracting {
		return nil, fmt.Errorf("session %s is %s, not extracting", sessionID, sess.Status)
	}
	if err := o.extract(ctx, sess); err != nil {
		_, ferr := o.fail(ctx, sessionID, "extracting", err)
		return nil, ferr
	}
	return o.sessions.GetByID(ctx, sessionID)
}

// SimilarityBatch runs one similarity batch of the given size; sizes
// below 1 use the processor default.
func (o *Orchestrator) SimilarityBatch(ctx context.Context, sessionID string, size int) (*similarity.BatchReport, error) {
	return o.processor.ProcessBatchN(ctx, sessionID, size)
}

// FinalizeSession seals a fully checked session for review.
func (o *Orchestrator) FinalizeSession(ctx context.Context, sessionID string) (*Stats, error) {
	return o.finalizer.Finalize(ctx, sessionID)
}

// Run executes the full pipeline for a document and returns where it
// ended up. A stage failure parks the session in the error state with
// all accumulated data intact; the session is never deleted.
func (o *Orchestrator) Run(ctx context.Context, documentID string) (*RunResult, error) {
	sess, err := o.Prepare(ctx, documentID)
	if err != nil {
		return nil, err
	}
	return o.Execute(ctx, sess.ID)
}

// Execute drives a session from its current state to completion. It
// accepts sessions in any resumable state, including error.
func (o *Orchestrator) Execute(ctx context.Context, sessionID string) (*RunResult, error) {
	sess, err := o.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	if sess.Status == session.StatusError {
		if sess, err = o.sessions.Transition(ctx, sessionID, session.StatusAnalyzing); err != nil {
			return nil, err
		}
	}

	for {
		switch sess.Status {
		case session.StatusAnalyzing:
			if err := o.analyze(ctx, sess); err != nil {
				return o.fail(ctx, sess.ID, "analyzing", err)
			}
		case session.StatusExtracting:
			if err := o.extract(ctx, sess); err != nil {
				return o.fail(ctx, sess.ID, "extracting", err)
			}
		case session.StatusSimilarityChecking:
			if err := o.checkSimilarity(ctx, sess); err != nil {
				return o.fail(ctx, sess.ID, "similarity_checking", err)
			}
		case session.StatusExtracted:
			stats, err := o.finalizer.Finalize(ctx, sess.ID)
			if err != nil {
				return o.fail(ctx, sess.ID, "finalizing", err)
			}
			return &RunResult{SessionID: sess.ID, Completed: true, Stats: stats}, nil
		case session.StatusInReview, session.StatusReviewed:
			return &RunResult{SessionID: sess.ID, Completed: true}, nil
		default:
			return nil, fmt.Errorf("session %s is %s and cannot run", sess.ID, sess.Status)
		}

		if sess, err = o.sessions.GetByID(ctx, sessionID); err != nil {
			return nil, err
		}
	}
}

// analyze chunks the document, stores the chunk plan and advances to
// extracting. Resumed sessions that already hold a plan skip straight
// through.
func (o *Orchestrator) analyze(ctx context.Context, sess *session.Session) error {
	if len(sess.Progress.Chunks) == 0 {
		doc, err := o.documents.GetByID(ctx, sess.DocumentID)
		if err != nil {
			return fmt.Errorf("loading document: %w", err)
		}

		analysis, err := o.chunker.Analyze(doc.Content)
		if err != nil {
			return fmt.Errorf("chunking document: %w", err)
		}

		sess.Progress.Phase = "analyzing"
		sess.Progress.TotalChunks = len(analysis.Chunks)
		sess.Progress.Chunks = analysis.Chunks
		sess.Progress.EstimatedSecondsRemaining = analysis.EstimatedSeconds
		sess.Progress.CurrentOperation = fmt.Sprintf("planned %d chunks", len(analysis.Chunks))
		sess.Metadata.Provider = o.provider
		sess.Metadata.Model = o.model
		o.writeProgress(sess)
		if err := o.sessions.Update(ctx, sess); err != nil {
			return fmt.Errorf("persisting chunk plan: %w", err)
		}
	}

	// Document status tracks the pipeline but never blocks it.
	if err := o.documents.SetExtractionStatus(ctx, sess.DocumentID, documents.StatusExtracting); err != nil {
		log.Printf("extraction: document %s status update: %v", sess.DocumentID, err)
	}

	_, err := o.sessions.Transition(ctx, sess.ID, session.StatusExtracting)
	return err
}

// extract runs the model over every chunk not yet processed, persisting
// after each chunk.
func (o *Orchestrator) extract(ctx context.Context, sess *session.Session) error {
	chunks := sess.Progress.Chunks
	for i := sess.Progress.ProcessedChunks; i < len(chunks); i++ {
		extracted, _, err := o.extractor.Extract(ctx, chunks[i].Content, chunks[i].Index)
		if err != nil {
			return fmt.Errorf("extracting chunk %d: %w", i, err)
		}

		sess.ExtractedConcepts = append(sess.ExtractedConcepts, extracted...)
		sess.Progress.Phase = "extracting"
		sess.Progress.ProcessedChunks = i + 1
		sess.Progress.ExtractedConceptCount = len(sess.ExtractedConcepts)
		sess.Progress.CurrentOperation = fmt.Sprintf("extracted chunk %d/%d", i+1, len(chunks))
		sess.Progress.EstimatedSecondsRemaining = remainingEstimate(chunks, i+1)
		o.writeProgress(sess)
		if err := o.sessions.Update(ctx, sess); err != nil {
			return fmt.Errorf("persisting chunk %d results: %w", i, err)
		}
	}

	if o.detector != nil && sess.DuplicateDetection == nil {
		index, err := o.library.ActiveIndex(ctx)
		if err != nil {
			return fmt.Errorf("loading concept index: %w", err)
		}
		detection, err := o.detector.Detect(ctx, sess.ExtractedConcepts, index)
		if err != nil {
			// Duplicate flags assist review but are not required for it.
			log.Printf("extraction: duplicate detection for %s: %v", sess.ID, err)
		} else {
			sess.DuplicateDetection = detection
			if err := o.sessions.Update(ctx, sess); err != nil {
				return err
			}
		}
	}

	_, err := o.sessions.Transition(ctx, sess.ID, session.StatusSimilarityChecking)
	return err
}

func (o *Orchestrator) checkSimilarity(ctx context.Context, sess *session.Session) error {
	for {
		report, err := o.processor.ProcessBatch(ctx, sess.ID)
		if err != nil {
			return err
		}
		if o.OnProgress != nil {
			if current, err := o.sessions.GetByID(ctx, sess.ID); err == nil {
				o.OnProgress(current.Progress)
			}
		}
		if report.Completed {
			return nil
		}
	}
}

func (o *Orchestrator) fail(ctx context.Context, sessionID, phase string, cause error) (*RunResult, error) {
	if err := o.sessions.SetError(ctx, sessionID, cause.Error()); err != nil && !errors.Is(err, session.ErrNotFound) {
		log.Printf("extraction: recording error for %s: %v", sessionID, err)
	}
	return &RunResult{SessionID: sessionID, FailedPhase: phase}, fmt.Errorf("%s: %w", phase, cause)
}

func (o *Orchestrator) writeProgress(sess *session.Session) {
	sess.Progress.LastUpdated = time.Now().UTC()
	if o.OnProgress != nil {
		o.OnProgress(sess.Progress)
	}
}

func remainingEstimate(chunks []chunker.Chunk, processed int) int {
	total := 0
	for _, c := range chunks[processed:] {
		total += c.EstimatedSeconds
	}
	return total
}
