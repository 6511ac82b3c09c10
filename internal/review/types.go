package review

import (
	"github.com/lexmine/lexmine/internal/session"
)

// Actions a reviewer can take on one extracted concept.
const (
	ActionApprove = "approve"
	ActionLink    = "link"
	ActionEdit    = "edit"
	ActionReject  = "reject"
)

// Decision is one reviewer verdict, keyed by concept name.
type Decision struct {
	ConceptName     string         `json:"concept_name"`
	Action          string         `json:"action"`
	TargetConceptID string         `json:"target_concept_id,omitempty"`
	Edited          *EditedConcept `json:"edited,omitempty"`
}

// EditedConcept carries reviewer overrides for an edit decision. Empty
// fields keep the extracted values.
type EditedConcept struct {
	Name        string   `json:"name,omitempty"`
	Category    string   `json:"category,omitempty"`
	Difficulty  string   `json:"difficulty,omitempty"`
	Description string   `json:"description,omitempty"`
	Examples    []string `json:"examples,omitempty"`
	Tags        []string `json:"tags,omitempty"`
}

// Result records what happened to one decision.
type Result struct {
	ConceptName string `json:"concept_name"`
	Action      string `json:"action"`
	ConceptID   string `json:"concept_id,omitempty"`
	Applied     bool   `json:"applied"`
	Error       string `json:"error,omitempty"`
}

// ApplyReport summarizes one apply call.
type ApplyReport struct {
	SessionID     string         `json:"session_id"`
	Results       []Result       `json:"results"`
	Applied       int            `json:"applied"`
	Remaining     int            `json:"remaining"`
	SessionStatus session.Status `json:"session_status"`
}

// Item is one reviewable concept: all chunk occurrences folded by
// name, with the similarity verdict and duplicate flags alongside.
type Item struct {
	Name           string                  `json:"name"`
	Category       string                  `json:"category"`
	Difficulty     string                  `json:"difficulty"`
	Description    string                  `json:"description"`
	Examples       []string                `json:"examples"`
	Tags           []string                `json:"tags"`
	Confidence     float64                 `json:"confidence"`
	Occurrences    int                     `json:"occurrences"`
	ChunkIndexes   []int                   `json:"chunk_indexes"`
	Matches        []session.Match         `json:"matches"`
	DuplicateFlags []session.DuplicateFlag `json:"duplicate_flags,omitempty"`
	Decision       string                  `json:"decision,omitempty"`
}
