package cleanup

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lexmine/lexmine/internal/audit"
	"github.com/lexmine/lexmine/internal/db"
	"github.com/lexmine/lexmine/internal/session"
)

func setupEnv(t *testing.T) (*db.DB, *session.Store, *audit.Store) {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return database, session.NewStore(database), audit.NewStore(database)
}

func backdate(t *testing.T, database *db.DB, sessionID string, age time.Duration) {
	t.Helper()
	_, err := database.ExecContext(context.Background(),
		`UPDATE extraction_sessions SET updated_at = ? WHERE id = ?`,
		time.Now().UTC().Add(-age), sessionID)
	if err != nil {
		t.Fatalf("backdate: %v", err)
	}
}

func sessionWithStatus(t *testing.T, sessions *session.Store, docID string, statuses ...session.Status) *session.Session {
	t.Helper()
	ctx := context.Background()
	sess, err := sessions.Create(ctx, docID, "")
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	for _, s := range statuses {
		if _, err := sessions.Transition(ctx, sess.ID, s); err != nil {
			t.Fatalf("Transition to %s: %v", s, err)
		}
	}
	return sess
}

func defaultPolicy() Policy {
	return Policy{ArchivedDays: 30, StaleDays: 1, ReviewedDays: 7}
}

func TestRunSweepsByPolicy(t *testing.T) {
	database, sessions, auditStore := setupEnv(t)
	ctx := context.Background()

	oldArchived := sessionWithStatus(t, sessions, "d1", session.StatusArchived)
	backdate(t, database, oldArchived.ID, 31*24*time.Hour)

	freshArchived := sessionWithStatus(t, sessions, "d2", session.StatusArchived)
	backdate(t, database, freshArchived.ID, 5*24*time.Hour)

	staleRun := sessionWithStatus(t, sessions, "d3", session.StatusExtracting)
	backdate(t, database, staleRun.ID, 2*24*time.Hour)

	oldReviewed := sessionWithStatus(t, sessions, "d4",
		session.StatusExtracting, session.StatusSimilarityChecking,
		session.StatusExtracted, session.StatusInReview, session.StatusReviewed)
	backdate(t, database, oldReviewed.ID, 8*24*time.Hour)

	erroredRun := sessionWithStatus(t, sessions, "d5", session.StatusExtracting)
	if err := sessions.SetError(ctx, erroredRun.ID, "boom"); err != nil {
		t.Fatalf("SetError: %v", err)
	}
	backdate(t, database, erroredRun.ID, 90*24*time.Hour)

	runner := NewRunner(sessions, auditStore, defaultPolicy())
	report, err := runner.Run(ctx, time.Now().UTC(), false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}

	if report.DeletedArchived != 1 || report.DeletedStale != 2 || report.ArchivedReviewed != 1 {
		t.Fatalf("unexpected report %+v", report)
	}

	if _, err := sessions.GetByID(ctx, oldArchived.ID); err != session.ErrNotFound {
		t.Error("old archived session should be deleted")
	}
	if _, err := sessions.GetByID(ctx, freshArchived.ID); err != nil {
		t.Error("fresh archived session should survive")
	}
	if _, err := sessions.GetByID(ctx, staleRun.ID); err != session.ErrNotFound {
		t.Error("stale run should be deleted")
	}
	reviewed, err := sessions.GetByID(ctx, oldReviewed.ID)
	if err != nil || reviewed.Status != session.StatusArchived {
		t.Errorf("old reviewed session should be archived, got %+v (%v)", reviewed, err)
	}
	if _, err := sessions.GetByID(ctx, erroredRun.ID); err != session.ErrNotFound {
		t.Error("old error session should be deleted as stale")
	}

	entries, _ := auditStore.List(ctx, audit.Query{Action: audit.ActionCleanup})
	if len(entries) != 1 {
		t.Errorf("expected one audit entry, got %d", len(entries))
	}
}

func TestRunSweepsOldErrorSessions(t *testing.T) {
	database, sessions, _ := setupEnv(t)
	ctx := context.Background()

	failed := sessionWithStatus(t, sessions, "d1", session.StatusExtracting)
	if err := sessions.SetError(ctx, failed.ID, "model unavailable"); err != nil {
		t.Fatalf("SetError: %v", err)
	}
	backdate(t, database, failed.ID, 365*24*time.Hour)

	fresh := sessionWithStatus(t, sessions, "d2", session.StatusExtracting)
	if err := sessions.SetError(ctx, fresh.ID, "model unavailable"); err != nil {
		t.Fatalf("SetError: %v", err)
	}

	runner := NewRunner(sessions, nil, Policy{StaleDays: 1})
	report, err := runner.Run(ctx, time.Now().UTC(), false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.DeletedStale != 1 {
		t.Fatalf("expected 1 stale deletion, got %+v", report)
	}
	if _, err := sessions.GetByID(ctx, failed.ID); err != session.ErrNotFound {
		t.Error("old error session should be gone")
	}
	// A recent failure keeps its diagnostic state until it goes stale.
	if _, err := sessions.GetByID(ctx, fresh.ID); err != nil {
		t.Errorf("fresh error session should survive: %v", err)
	}
}

func TestRunDryRunTouchesNothing(t *testing.T) {
	database, sessions, auditStore := setupEnv(t)
	ctx := context.Background()

	old := sessionWithStatus(t, sessions, "d1", session.StatusArchived)
	backdate(t, database, old.ID, 31*24*time.Hour)

	runner := NewRunner(sessions, auditStore, defaultPolicy())
	report, err := runner.Run(ctx, time.Now().UTC(), true)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if !report.DryRun || report.DeletedArchived != 1 {
		t.Fatalf("unexpected report %+v", report)
	}

	if _, err := sessions.GetByID(ctx, old.ID); err != nil {
		t.Error("dry run must not delete sessions")
	}
	entries, _ := auditStore.List(ctx, audit.Query{})
	if len(entries) != 0 {
		t.Error("dry run must not write audit entries")
	}
}

func TestRunIsIdempotent(t *testing.T) {
	database, sessions, _ := setupEnv(t)
	ctx := context.Background()

	old := sessionWithStatus(t, sessions, "d1", session.StatusArchived)
	backdate(t, database, old.ID, 31*24*time.Hour)

	runner := NewRunner(sessions, nil, defaultPolicy())
	now := time.Now().UTC()

	first, err := runner.Run(ctx, now, false)
	if err != nil {
		t.Fatalf("first Run: %v", err)
	}
	second, err := runner.Run(ctx, now, false)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if first.DeletedArchived != 1 || second.DeletedArchived != 0 {
		t.Errorf("second run repeated work: %+v then %+v", first, second)
	}
}

func TestRunDisabledRules(t *testing.T) {
	database, sessions, _ := setupEnv(t)
	ctx := context.Background()

	old := sessionWithStatus(t, sessions, "d1", session.StatusArchived)
	backdate(t, database, old.ID, 365*24*time.Hour)

	runner := NewRunner(sessions, nil, Policy{})
	report, err := runner.Run(ctx, time.Now().UTC(), false)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if report.DeletedArchived != 0 {
		t.Errorf("disabled policy should sweep nothing, got %+v", report)
	}
}

func TestRoute_DefaultsToDryRun(t *testing.T) {
	database, sessions, _ := setupEnv(t)

	old := sessionWithStatus(t, sessions, "d1", session.StatusArchived)
	backdate(t, database, old.ID, 31*24*time.Hour)

	r := chi.NewRouter()
	RegisterRoutes(r, NewRunner(sessions, nil, defaultPolicy()))

	req := httptest.NewRequest("POST", "/api/cleanup", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}

	var report Report
	json.Unmarshal(w.Body.Bytes(), &report)
	if !report.DryRun {
		t.Error("route should default to dry run")
	}
	if _, err := sessions.GetByID(context.Background(), old.ID); err != nil {
		t.Error("dry run must not delete")
	}

	req = httptest.NewRequest("POST", "/api/cleanup?dry_run=false", nil)
	w = httptest.NewRecorder()
	r.ServeHTTP(w, req)
	json.Unmarshal(w.Body.Bytes(), &report)
	if report.DryRun || report.DeletedArchived != 1 {
		t.Errorf("unexpected real-run report %+v", report)
	}
}
