package concepts

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"

	"github.com/lexmine/lexmine/internal/audit"
	"github.com/lexmine/lexmine/internal/db"
)

func setupTestStore(t *testing.T) *Store {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	return NewStore(database)
}

func mustCreate(t *testing.T, store *Store, c Concept) *Concept {
	t.Helper()
	created, err := store.Create(context.Background(), c)
	if err != nil {
		t.Fatalf("Create: %v", err)
	}
	return created
}

func TestCreateAndGet(t *testing.T) {
	store := setupTestStore(t)

	created := mustCreate(t, store, Concept{
		Name:        "Present Tense",
		Category:    CategoryGrammar,
		Description: "Describes actions happening now.",
		Examples:    []string{"I walk", "She runs"},
		Difficulty:  DifficultyBeginner,
		Confidence:  0.9,
		Tags:        []string{"verbs"},
	})
	if created.ID == "" {
		t.Error("expected non-empty ID")
	}
	if !created.Active {
		t.Error("new concepts should be active")
	}

	fetched, err := store.GetByID(context.Background(), created.ID)
	if err != nil {
		t.Fatalf("GetByID: %v", err)
	}
	if fetched.Name != "Present Tense" {
		t.Errorf("unexpected name %q", fetched.Name)
	}
	if len(fetched.Examples) != 2 {
		t.Errorf("expected 2 examples, got %d", len(fetched.Examples))
	}
}

func TestCreateRejectsBadCategory(t *testing.T) {
	store := setupTestStore(t)
	_, err := store.Create(context.Background(), Concept{Name: "X", Category: "syntax"})
	if err == nil {
		t.Fatal("expected error for unknown category")
	}
}

func TestGetByIDNotFound(t *testing.T) {
	store := setupTestStore(t)
	_, err := store.GetByID(context.Background(), "missing")
	if err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestListPageFilters(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	mustCreate(t, store, Concept{Name: "Past Tense", Category: CategoryGrammar})
	mustCreate(t, store, Concept{Name: "Greetings", Category: CategoryVocabulary})
	deactivated := mustCreate(t, store, Concept{Name: "Old Rule", Category: CategoryGrammar})
	if err := store.Deactivate(ctx, deactivated.ID); err != nil {
		t.Fatalf("Deactivate: %v", err)
	}

	grammar, err := store.ListPage(ctx, ListFilter{Category: CategoryGrammar, ActiveOnly: true}, 1, 10)
	if err != nil {
		t.Fatalf("ListPage: %v", err)
	}
	if len(grammar) != 1 {
		t.Fatalf("expected 1 active grammar concept, got %d", len(grammar))
	}

	all, _ := store.ListPage(ctx, ListFilter{}, 1, 10)
	if len(all) != 3 {
		t.Errorf("expected 3 total, got %d", len(all))
	}

	byName, _ := store.ListPage(ctx, ListFilter{Search: "Greet"}, 1, 10)
	if len(byName) != 1 || byName[0].Name != "Greetings" {
		t.Errorf("search filter failed: %+v", byName)
	}
}

func TestListPagePagination(t *testing.T) {
	store := setupTestStore(t)
	for i := 0; i < 5; i++ {
		mustCreate(t, store, Concept{Name: "C", Category: CategoryVocabulary})
	}

	page1, _ := store.ListPage(context.Background(), ListFilter{}, 1, 2)
	page3, _ := store.ListPage(context.Background(), ListFilter{}, 3, 2)
	if len(page1) != 2 {
		t.Errorf("expected 2 on page 1, got %d", len(page1))
	}
	if len(page3) != 1 {
		t.Errorf("expected 1 on page 3, got %d", len(page3))
	}
}

func TestActiveIndexExcludesInactive(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	kept := mustCreate(t, store, Concept{Name: "Kept", Category: CategoryGrammar})
	gone := mustCreate(t, store, Concept{Name: "Gone", Category: CategoryGrammar})
	store.Deactivate(ctx, gone.ID)

	index, err := store.ActiveIndex(ctx)
	if err != nil {
		t.Fatalf("ActiveIndex: %v", err)
	}
	if len(index) != 1 || index[0].ID != kept.ID {
		t.Errorf("expected only the active concept in the index, got %+v", index)
	}
}

func TestLinkUpsert(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	c := mustCreate(t, store, Concept{Name: "C", Category: CategoryVocabulary})

	if err := store.Link(ctx, c.ID, "doc-1", 0.5, "first"); err != nil {
		t.Fatalf("Link: %v", err)
	}
	if err := store.Link(ctx, c.ID, "doc-1", 0.9, "second"); err != nil {
		t.Fatalf("Link upsert: %v", err)
	}

	links, err := store.LinksForDocument(ctx, "doc-1")
	if err != nil {
		t.Fatalf("LinksForDocument: %v", err)
	}
	if len(links) != 1 {
		t.Fatalf("expected 1 link after upsert, got %d", len(links))
	}
	if links[0].Confidence != 0.9 || links[0].Excerpt != "second" {
		t.Errorf("expected updated link, got %+v", links[0])
	}
}

// HTTP handler tests

func TestRoute_GetConcept(t *testing.T) {
	store := setupTestStore(t)
	created := mustCreate(t, store, Concept{Name: "Articles", Category: CategoryGrammar})

	r := chi.NewRouter()
	RegisterRoutes(r, store, nil)

	req := httptest.NewRequest("GET", "/api/concepts/"+created.ID, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	var c Concept
	json.Unmarshal(w.Body.Bytes(), &c)
	if c.Name != "Articles" {
		t.Errorf("unexpected name %q", c.Name)
	}
}

func TestRoute_GetNotFound(t *testing.T) {
	store := setupTestStore(t)

	r := chi.NewRouter()
	RegisterRoutes(r, store, nil)

	req := httptest.NewRequest("GET", "/api/concepts/nope", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", w.Code)
	}
	var body map[string]any
	json.Unmarshal(w.Body.Bytes(), &body)
	if body["error"] != "not_found" {
		t.Errorf("expected not_found kind, got %v", body["error"])
	}
}

func TestRoute_ListRejectsBadCategory(t *testing.T) {
	store := setupTestStore(t)

	r := chi.NewRouter()
	RegisterRoutes(r, store, nil)

	req := httptest.NewRequest("GET", "/api/concepts/?category=syntax", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", w.Code)
	}
}

func TestRoute_Deactivate(t *testing.T) {
	store := setupTestStore(t)
	created := mustCreate(t, store, Concept{Name: "C", Category: CategoryVocabulary})

	r := chi.NewRouter()
	RegisterRoutes(r, store, nil)

	req := httptest.NewRequest("DELETE", "/api/concepts/"+created.ID, nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", w.Code)
	}
	fetched, _ := store.GetByID(context.Background(), created.ID)
	if fetched.Active {
		t.Error("expected concept to be inactive")
	}
}

func TestRoute_MergeWritesAudit(t *testing.T) {
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { database.Close() })
	store := NewStore(database)
	auditStore := audit.NewStore(database)

	target := mustCreate(t, store, Concept{Name: "Past Tense", Category: CategoryGrammar, Difficulty: DifficultyBeginner})
	source := mustCreate(t, store, Concept{Name: "Preterite", Category: CategoryGrammar, Difficulty: DifficultyBeginner})

	r := chi.NewRouter()
	RegisterRoutes(r, store, auditStore)

	body := `{"target_id":"` + target.ID + `","source_ids":["` + source.ID + `"]}`
	req := httptest.NewRequest("POST", "/api/concepts/merge", strings.NewReader(body))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	merged, _ := store.GetByID(context.Background(), source.ID)
	if merged.Active {
		t.Error("source should be deactivated after merge")
	}

	entries, err := auditStore.List(context.Background(), audit.Query{Action: audit.ActionMerge})
	if err != nil {
		t.Fatalf("audit list: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected 1 merge audit entry, got %d", len(entries))
	}
	if entries[0].ScopeID != target.ID {
		t.Errorf("audit entry should reference target, got %q", entries[0].ScopeID)
	}
}
