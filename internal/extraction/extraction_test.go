package extraction

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"github.com/lexmine/lexmine/internal/chunker"
	"github.com/lexmine/lexmine/internal/concepts"
	"github.com/lexmine/lexmine/internal/db"
	"github.com/lexmine/lexmine/internal/documents"
	"github.com/lexmine/lexmine/internal/judge"
	"github.com/lexmine/lexmine/internal/session"
	"github.com/lexmine/lexmine/internal/similarity"
)

const lessonContent = `The present tense describes actions happening now. Learners meet it first.

The past tense describes completed actions. It follows once the present is solid.

Common verbs include hablar, comer and vivir. Each follows its conjugation family.`

type fakeExtractor struct {
	failures int
	calls    int
}

func (f *fakeExtractor) Extract(ctx context.Context, chunk string, chunkIndex int) ([]session.ExtractedConcept, judge.Usage, error) {
	f.calls++
	if f.failures > 0 {
		f.failures--
		return nil, judge.Usage{}, errors.New("model unavailable")
	}
	return []session.ExtractedConcept{{
		Name:       fmt.Sprintf("concept-%d", chunkIndex),
		Category:   "grammar",
		Difficulty: "beginner",
		Confidence: 0.9,
		ChunkIndex: chunkIndex,
	}}, judge.Usage{}, nil
}

type noMatchJudge struct{}

func (noMatchJudge) Judge(ctx context.Context, candidate session.ExtractedConcept, index []concepts.IndexEntry) ([]session.Match, judge.Usage, error) {
	return nil, judge.Usage{}, nil
}

type testEnv struct {
	docs     *documents.Store
	sessions *session.Store
	library  *concepts.Store
	orch     *Orchestrator
	ext      *fakeExtractor
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	docs := documents.NewStore(database)
	sessions := session.NewStore(database)
	library := concepts.NewStore(database)
	ext := &fakeExtractor{}
	processor := similarity.NewBatchProcessor(sessions, library, noMatchJudge{}, 5, 0)

	orch := NewOrchestrator(docs, sessions, library, ext, processor, nil,
		chunker.New(100), "openai", "test-model")
	return &testEnv{docs: docs, sessions: sessions, library: library, orch: orch, ext: ext}
}

func createDoc(t *testing.T, env *testEnv) *documents.Document {
	t.Helper()
	doc, err := env.docs.Create(context.Background(), documents.Document{Name: "Tenses", Content: lessonContent})
	if err != nil {
		t.Fatalf("Create document: %v", err)
	}
	return doc
}

func TestRunFullPipeline(t *testing.T) {
	env := setupEnv(t)
	doc := createDoc(t, env)
	ctx := context.Background()

	result, err := env.orch.Run(ctx, doc.ID)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !result.Completed || result.Stats == nil {
		t.Fatalf("unexpected result %+v", result)
	}

	// The finished run rests at extracted; the first review decision
	// opens in_review.
	sess, _ := env.sessions.GetByID(ctx, result.SessionID)
	if sess.Status != session.StatusExtracted {
		t.Errorf("expected extracted, got %s", sess.Status)
	}
	if len(sess.ExtractedConcepts) == 0 {
		t.Fatal("expected extracted concepts")
	}
	if len(sess.UncheckedConcepts()) != 0 {
		t.Error("all concepts should be similarity checked")
	}
	if sess.ReviewProgress == nil || !sess.ReviewProgress.IsDraft {
		t.Errorf("expected draft review progress, got %+v", sess.ReviewProgress)
	}
	if sess.Metadata.Provider != "openai" || sess.Metadata.Model != "test-model" {
		t.Errorf("metadata not recorded: %+v", sess.Metadata)
	}
	if result.Stats.TotalConcepts != len(sess.ExtractedConcepts) {
		t.Errorf("stats count mismatch: %+v", result.Stats)
	}
	if result.Stats.HighConfidenceCount != result.Stats.TotalConcepts {
		t.Errorf("0.9 confidence should count as high: %+v", result.Stats)
	}

	updated, _ := env.docs.GetByID(ctx, doc.ID)
	if updated.ExtractionStatus != documents.StatusExtracted {
		t.Errorf("expected document extracted, got %s", updated.ExtractionStatus)
	}
}

func TestRunConflictsOnActiveSession(t *testing.T) {
	env := setupEnv(t)
	doc := createDoc(t, env)
	ctx := context.Background()

	if _, err := env.orch.Run(ctx, doc.ID); err != nil {
		t.Fatalf("Run: %v", err)
	}
	// The finished session awaits review, which still blocks new runs.
	if _, err := env.orch.Run(ctx, doc.ID); !errors.Is(err, session.ErrActiveSession) {
		t.Fatalf("expected ErrActiveSession, got %v", err)
	}
}

func TestRunFailurePreservesSession(t *testing.T) {
	env := setupEnv(t)
	doc := createDoc(t, env)
	ctx := context.Background()

	env.ext.failures = 100
	result, err := env.orch.Run(ctx, doc.ID)
	if err == nil {
		t.Fatal("expected run failure")
	}
	if result == nil || result.FailedPhase != "extracting" {
		t.Fatalf("unexpected result %+v", result)
	}

	sess, err := env.sessions.GetByID(ctx, result.SessionID)
	if err != nil {
		t.Fatalf("session should survive failure: %v", err)
	}
	if sess.Status != session.StatusError {
		t.Errorf("expected error status, got %s", sess.Status)
	}
	if sess.ErrorMessage == "" {
		t.Error("expected recorded error message")
	}
	if len(sess.Progress.Chunks) == 0 {
		t.Error("chunk plan should be preserved through failure")
	}
}

func TestExecuteResumesWithoutRedoingWork(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	// Clean run first, to learn how many chunks the content yields.
	baseline := createDoc(t, env)
	result, err := env.orch.Run(ctx, baseline.ID)
	if err != nil {
		t.Fatalf("baseline Run: %v", err)
	}
	full, _ := env.sessions.GetByID(ctx, result.SessionID)
	if full.Progress.TotalChunks < 2 {
		t.Fatalf("content produced %d chunks, need at least 2", full.Progress.TotalChunks)
	}
	callsForClean := env.ext.calls

	// Same content again, interrupted after the first chunk.
	doc2, _ := env.docs.Create(ctx, documents.Document{Name: "Tenses 2", Content: lessonContent})
	sess2, err := env.orch.Prepare(ctx, doc2.ID)
	if err != nil {
		t.Fatalf("Prepare: %v", err)
	}
	env.ext.calls = 0
	env.orch.extractor = &failingAfter{inner: env.ext, succeedFirst: 1}
	if _, err := env.orch.Execute(ctx, sess2.ID); err == nil {
		t.Fatal("expected interrupted run to fail")
	}

	interrupted, _ := env.sessions.GetByID(ctx, sess2.ID)
	if interrupted.Status != session.StatusError {
		t.Fatalf("expected error status, got %s", interrupted.Status)
	}
	if interrupted.Progress.ProcessedChunks != 1 {
		t.Fatalf("expected 1 processed chunk, got %d", interrupted.Progress.ProcessedChunks)
	}

	// Resume with a healthy extractor; only the remaining chunks run.
	env.orch.extractor = env.ext
	env.ext.calls = 0
	resumed, err := env.orch.Execute(ctx, sess2.ID)
	if err != nil {
		t.Fatalf("resumed Execute: %v", err)
	}
	if !resumed.Completed {
		t.Fatalf("unexpected result %+v", resumed)
	}
	if env.ext.calls != callsForClean-1 {
		t.Errorf("resume re-extracted chunks: %d calls, want %d", env.ext.calls, callsForClean-1)
	}
}

type failingAfter struct {
	inner        judge.Extractor
	succeedFirst int
	calls        int
}

func (f *failingAfter) Extract(ctx context.Context, chunk string, chunkIndex int) ([]session.ExtractedConcept, judge.Usage, error) {
	f.calls++
	if f.calls > f.succeedFirst {
		return nil, judge.Usage{}, errors.New("model unavailable")
	}
	return f.inner.Extract(ctx, chunk, chunkIndex)
}

func TestFinalizeRejectsUncheckedConcepts(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	sess, _ := env.sessions.Create(ctx, "doc-x", "")
	sess.ExtractedConcepts = []session.ExtractedConcept{{Name: "a", Confidence: 0.9}}
	env.sessions.Update(ctx, sess)
	env.sessions.Transition(ctx, sess.ID, session.StatusExtracting)
	env.sessions.Transition(ctx, sess.ID, session.StatusSimilarityChecking)
	env.sessions.Transition(ctx, sess.ID, session.StatusExtracted)

	f := NewFinalizer(env.sessions, env.docs)
	if _, err := f.Finalize(ctx, sess.ID); err == nil {
		t.Fatal("expected error for unchecked concepts")
	}
}

func TestFinalizeRejectsWrongStatus(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	sess, _ := env.sessions.Create(ctx, "doc-x", "")
	f := NewFinalizer(env.sessions, env.docs)
	if _, err := f.Finalize(ctx, sess.ID); err == nil {
		t.Fatal("expected error for analyzing session")
	}
}

func TestFinalizeZeroConcepts(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	sess, _ := env.sessions.Create(ctx, "doc-x", "")
	env.sessions.Transition(ctx, sess.ID, session.StatusExtracting)
	env.sessions.Transition(ctx, sess.ID, session.StatusSimilarityChecking)
	env.sessions.Transition(ctx, sess.ID, session.StatusExtracted)

	f := NewFinalizer(env.sessions, env.docs)
	stats, err := f.Finalize(ctx, sess.ID)
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if stats.TotalConcepts != 0 || stats.MeanConfidence != 0 {
		t.Errorf("unexpected stats %+v", stats)
	}

	final, _ := env.sessions.GetByID(ctx, sess.ID)
	if final.Status != session.StatusExtracted {
		t.Errorf("expected extracted, got %s", final.Status)
	}
	if final.ReviewProgress == nil {
		t.Error("finalize should initialize review progress")
	}
}

func TestFinalizeNonFatalDocumentWrite(t *testing.T) {
	env := setupEnv(t)
	ctx := context.Background()

	// Session points at a document that no longer exists; finalize
	// must still succeed.
	sess, _ := env.sessions.Create(ctx, "ghost-doc", "")
	env.sessions.Transition(ctx, sess.ID, session.StatusExtracting)
	env.sessions.Transition(ctx, sess.ID, session.StatusSimilarityChecking)
	env.sessions.Transition(ctx, sess.ID, session.StatusExtracted)

	f := NewFinalizer(env.sessions, env.docs)
	if _, err := f.Finalize(ctx, sess.ID); err != nil {
		t.Fatalf("Finalize should tolerate missing document: %v", err)
	}

	final, _ := env.sessions.GetByID(ctx, sess.ID)
	if final.Status != session.StatusExtracted {
		t.Errorf("expected extracted, got %s", final.Status)
	}
}

func TestComputeStats(t *testing.T) {
	started := time.Now().UTC().Add(-10 * time.Second)
	sess := &session.Session{
		ExtractionStartedAt: &started,
		ExtractedConcepts: []session.ExtractedConcept{
			{Name: "a", Category: "grammar", Confidence: 0.95},
			{Name: "a", Category: "grammar", Confidence: 0.85},
			{Name: "b", Category: "vocabulary", Confidence: 0.6},
		},
	}

	stats := computeStats(sess)
	if stats.TotalConcepts != 3 || stats.DistinctConcepts != 2 {
		t.Errorf("unexpected counts %+v", stats)
	}
	if stats.HighConfidenceCount != 2 {
		t.Errorf("expected 2 high confidence, got %d", stats.HighConfidenceCount)
	}
	if stats.CategoryCount != 2 {
		t.Errorf("expected 2 categories, got %d", stats.CategoryCount)
	}
	if stats.MeanConfidence < 0.79 || stats.MeanConfidence > 0.81 {
		t.Errorf("unexpected mean %f", stats.MeanConfidence)
	}
	if stats.ProcessingSeconds < 9 {
		t.Errorf("unexpected processing seconds %f", stats.ProcessingSeconds)
	}
}
