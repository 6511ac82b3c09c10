package concepts

import (
	"context"
	"testing"
)

func TestMergeFoldsSourcesIntoTarget(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	target := mustCreate(t, store, Concept{Name: "Present Tense", Category: CategoryGrammar, Difficulty: DifficultyBeginner})
	src1 := mustCreate(t, store, Concept{Name: "Present Simple", Category: CategoryGrammar, Difficulty: DifficultyBeginner})
	src2 := mustCreate(t, store, Concept{Name: "Simple Present", Category: CategoryGrammar, Difficulty: DifficultyIntermediate})

	merged, err := store.Merge(ctx, MergeRequest{
		TargetID:    target.ID,
		SourceIDs:   []string{src1.ID, src2.ID},
		Name:        "Present Tense",
		Description: "Merged description.",
		Examples:    []string{"I walk"},
	})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if merged.Description != "Merged description." {
		t.Errorf("target fields not updated: %+v", merged)
	}

	for _, id := range []string{src1.ID, src2.ID} {
		src, _ := store.GetByID(ctx, id)
		if src.Active {
			t.Errorf("source %s should be deactivated", id)
		}
	}

	lineage, err := store.Lineage(ctx, target.ID)
	if err != nil {
		t.Fatalf("Lineage: %v", err)
	}
	if len(lineage) != 2 {
		t.Errorf("expected 2 lineage records, got %d", len(lineage))
	}
}

func TestMergeAllOrNothing(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	target := mustCreate(t, store, Concept{Name: "T", Category: CategoryGrammar})
	src := mustCreate(t, store, Concept{Name: "S", Category: CategoryGrammar})

	_, err := store.Merge(ctx, MergeRequest{
		TargetID:  target.ID,
		SourceIDs: []string{src.ID, "does-not-exist"},
		Name:      "Should Not Apply",
	})
	if err == nil {
		t.Fatal("expected merge to fail with an unresolved source")
	}

	// Nothing may have changed.
	after, _ := store.GetByID(ctx, target.ID)
	if after.Name != "T" {
		t.Errorf("target mutated despite failed merge: %q", after.Name)
	}
	srcAfter, _ := store.GetByID(ctx, src.ID)
	if !srcAfter.Active {
		t.Error("source deactivated despite failed merge")
	}
	lineage, _ := store.Lineage(ctx, target.ID)
	if len(lineage) != 0 {
		t.Errorf("lineage written despite failed merge: %d records", len(lineage))
	}
}

func TestMergeRejectsIncompatible(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	cases := []struct {
		name   string
		target Concept
		source Concept
	}{
		{
			"category mismatch",
			Concept{Name: "T", Category: CategoryGrammar},
			Concept{Name: "S", Category: CategoryVocabulary},
		},
		{
			"difficulty gap",
			Concept{Name: "T", Category: CategoryGrammar, Difficulty: DifficultyBeginner},
			Concept{Name: "S", Category: CategoryGrammar, Difficulty: DifficultyAdvanced},
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			target := mustCreate(t, store, tc.target)
			source := mustCreate(t, store, tc.source)

			_, err := store.Merge(ctx, MergeRequest{TargetID: target.ID, SourceIDs: []string{source.ID}})
			if err == nil {
				t.Fatal("expected incompatibility error")
			}
			srcAfter, _ := store.GetByID(ctx, source.ID)
			if !srcAfter.Active {
				t.Error("source deactivated despite failed merge")
			}
		})
	}
}

func TestMergeRejectsInactiveParticipants(t *testing.T) {
	store := setupTestStore(t)
	ctx := context.Background()

	target := mustCreate(t, store, Concept{Name: "T", Category: CategoryGrammar})
	source := mustCreate(t, store, Concept{Name: "S", Category: CategoryGrammar})
	store.Deactivate(ctx, source.ID)

	if _, err := store.Merge(ctx, MergeRequest{TargetID: target.ID, SourceIDs: []string{source.ID}}); err == nil {
		t.Fatal("expected error merging an inactive source")
	}
}

func TestMergeRejectsTargetAsSource(t *testing.T) {
	store := setupTestStore(t)
	target := mustCreate(t, store, Concept{Name: "T", Category: CategoryGrammar})

	if _, err := store.Merge(context.Background(), MergeRequest{TargetID: target.ID, SourceIDs: []string{target.ID}}); err == nil {
		t.Fatal("expected error when target appears in sources")
	}
}
