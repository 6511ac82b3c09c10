package concepts

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// mergeCompatible reports whether a source concept may be folded into the
// target: categories must match and difficulties must be within one level.
func mergeCompatible(target, source *Concept) error {
	if target.Category != source.Category {
		return fmt.Errorf("category mismatch: target is %s, source %s is %s", target.Category, source.ID, source.Category)
	}
	diff := difficultyRank[target.Difficulty] - difficultyRank[source.Difficulty]
	if diff < -1 || diff > 1 {
		return fmt.Errorf("difficulty gap too large: target is %s, source %s is %s", target.Difficulty, source.ID, source.Difficulty)
	}
	return nil
}

// Merge folds the source concepts into the target: the final field values
// are written onto the target, the sources are deactivated, and a lineage
// record is kept per source. The whole operation runs in one transaction;
// any unresolved or incompatible id aborts with no mutation.
func (s *Store) Merge(ctx context.Context, req MergeRequest) (*Concept, error) {
	if req.TargetID == "" {
		return nil, fmt.Errorf("merge: target_id is required")
	}
	if len(req.SourceIDs) == 0 {
		return nil, fmt.Errorf("merge: at least one source_id is required")
	}
	for _, id := range req.SourceIDs {
		if id == req.TargetID {
			return nil, fmt.Errorf("merge: target %s cannot also be a source", id)
		}
	}

	// Resolve and validate everything before touching the store.
	target, err := s.GetByID(ctx, req.TargetID)
	if err != nil {
		return nil, fmt.Errorf("merge: resolving target %s: %w", req.TargetID, err)
	}
	if !target.Active {
		return nil, fmt.Errorf("merge: target %s is not active", req.TargetID)
	}

	sources := make([]*Concept, 0, len(req.SourceIDs))
	for _, id := range req.SourceIDs {
		src, err := s.GetByID(ctx, id)
		if err != nil {
			return nil, fmt.Errorf("merge: resolving source %s: %w", id, err)
		}
		if !src.Active {
			return nil, fmt.Errorf("merge: source %s is not active", id)
		}
		if err := mergeCompatible(target, src); err != nil {
			return nil, fmt.Errorf("merge: %w", err)
		}
		sources = append(sources, src)
	}

	merged := *target
	if req.Name != "" {
		merged.Name = req.Name
	}
	if req.Description != "" {
		merged.Description = req.Description
	}
	if req.Examples != nil {
		merged.Examples = req.Examples
	}
	if req.Difficulty != "" {
		if !ValidDifficulty(req.Difficulty) {
			return nil, fmt.Errorf("merge: invalid difficulty %q", req.Difficulty)
		}
		merged.Difficulty = req.Difficulty
	}
	if req.Tags != nil {
		merged.Tags = req.Tags
	}
	merged.UpdatedAt = time.Now().UTC()

	examples, err := json.Marshal(emptyToSlice(merged.Examples))
	if err != nil {
		return nil, fmt.Errorf("merge: marshalling examples: %w", err)
	}
	tags, err := json.Marshal(emptyToSlice(merged.Tags))
	if err != nil {
		return nil, fmt.Errorf("merge: marshalling tags: %w", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("merge: begin tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`UPDATE concepts SET name = ?, description = ?, examples = ?, difficulty = ?, tags = ?, updated_at = ? WHERE id = ?`,
		merged.Name, merged.Description, string(examples), string(merged.Difficulty), string(tags), merged.UpdatedAt, merged.ID)
	if err != nil {
		return nil, fmt.Errorf("merge: updating target: %w", err)
	}

	now := time.Now().UTC()
	for _, src := range sources {
		if _, err := tx.ExecContext(ctx,
			`UPDATE concepts SET active = 0, updated_at = ? WHERE id = ?`, now, src.ID); err != nil {
			return nil, fmt.Errorf("merge: deactivating source %s: %w", src.ID, err)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO concept_lineage (id, source_concept_id, target_concept_id, merged_at) VALUES (?, ?, ?, ?)`,
			uuid.New().String(), src.ID, merged.ID, now); err != nil {
			return nil, fmt.Errorf("merge: recording lineage for %s: %w", src.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("merge: commit: %w", err)
	}
	return &merged, nil
}
