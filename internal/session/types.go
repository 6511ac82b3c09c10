package session

import (
	"time"

	"github.com/lexmine/lexmine/internal/chunker"
)

// Status is the lifecycle state of an extraction session.
type Status string

const (
	StatusAnalyzing          Status = "analyzing"
	StatusExtracting         Status = "extracting"
	StatusSimilarityChecking Status = "similarity_checking"
	StatusExtracted          Status = "extracted"
	StatusInReview           Status = "in_review"
	StatusReviewed           Status = "reviewed"
	StatusError              Status = "error"
	StatusArchived           Status = "archived"
)

// validTransitions lists the allowed next states per status. Error and
// archive are reachable from every non-terminal state; archived is the
// only truly terminal one.
var validTransitions = map[Status][]Status{
	StatusAnalyzing:          {StatusExtracting, StatusError, StatusArchived},
	StatusExtracting:         {StatusSimilarityChecking, StatusError, StatusArchived},
	StatusSimilarityChecking: {StatusExtracted, StatusError, StatusArchived},
	StatusExtracted:          {StatusInReview, StatusError, StatusArchived},
	StatusInReview:           {StatusReviewed, StatusError, StatusArchived},
	StatusReviewed:           {StatusArchived},
	StatusError:              {StatusAnalyzing, StatusArchived},
	StatusArchived:           {},
}

// CanTransition reports whether moving from one status to another is a
// legal lifecycle step.
func CanTransition(from, to Status) bool {
	for _, next := range validTransitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

// IsActive reports whether a session in this status blocks starting a
// new extraction for the same document.
func (s Status) IsActive() bool {
	switch s {
	case StatusAnalyzing, StatusExtracting, StatusSimilarityChecking, StatusExtracted, StatusInReview:
		return true
	}
	return false
}

// IsTerminal reports whether the session has finished its lifecycle.
func (s Status) IsTerminal() bool {
	return s == StatusReviewed || s == StatusError || s == StatusArchived
}

// ValidStatus reports whether the string names a known status.
func ValidStatus(s Status) bool {
	_, ok := validTransitions[s]
	return ok
}

// ExtractedConcept is one concept candidate produced by the extraction
// model, before review.
type ExtractedConcept struct {
	Name              string   `json:"name"`
	Category          string   `json:"category"`
	Difficulty        string   `json:"difficulty"`
	Description       string   `json:"description"`
	Examples          []string `json:"examples"`
	Tags              []string `json:"tags"`
	Confidence        float64  `json:"confidence"`
	ChunkIndex        int      `json:"chunk_index"`
	SimilarityChecked bool     `json:"similarity_checked"`
}

// Match is one existing concept the similarity judge considered close
// to an extracted candidate.
type Match struct {
	ConceptID     string  `json:"concept_id"`
	ConceptName   string  `json:"concept_name"`
	Score         float64 `json:"score"`
	Justification string  `json:"justification"`
}

// SimilarityMatch records the judge's verdict for one candidate name.
// Matches is empty when nothing in the store resembles the candidate.
type SimilarityMatch struct {
	ConceptName string    `json:"concept_name"`
	Matches     []Match   `json:"matches"`
	CheckedAt   time.Time `json:"checked_at"`
}

// Progress tracks where a running extraction is, for polling clients
// and for resuming interrupted runs.
type Progress struct {
	Phase                     string          `json:"phase"`
	TotalChunks               int             `json:"total_chunks"`
	ProcessedChunks           int             `json:"processed_chunks"`
	ExtractedConceptCount     int             `json:"extracted_concept_count"`
	SimilarityCheckedCount    int             `json:"similarity_checked_count"`
	CurrentOperation          string          `json:"current_operation"`
	EstimatedSecondsRemaining int             `json:"estimated_seconds_remaining"`
	ErrorMessage              string          `json:"error_message,omitempty"`
	Chunks                    []chunker.Chunk `json:"chunks,omitempty"`
	LastUpdated               time.Time       `json:"last_updated"`
}

// ProgressPatch is a partial progress update. Nil fields are left
// untouched so concurrent writers never clobber each other's fields.
type ProgressPatch struct {
	Phase                     *string `json:"phase,omitempty"`
	ProcessedChunks           *int    `json:"processed_chunks,omitempty"`
	ExtractedConceptCount     *int    `json:"extracted_concept_count,omitempty"`
	SimilarityCheckedCount    *int    `json:"similarity_checked_count,omitempty"`
	CurrentOperation          *string `json:"current_operation,omitempty"`
	EstimatedSecondsRemaining *int    `json:"estimated_seconds_remaining,omitempty"`
	ErrorMessage              *string `json:"error_message,omitempty"`
}

// DecisionRecord is one recorded review verdict, kept verbatim with
// the candidate snapshot it judged. Records are append-only.
type DecisionRecord struct {
	Action          string           `json:"action"`
	Concept         ExtractedConcept `json:"concept"`
	TargetConceptID string           `json:"target_concept_id,omitempty"`
	EditedFields    map[string]any   `json:"edited_fields,omitempty"`
	Timestamp       time.Time        `json:"timestamp"`
}

// ReviewProgress tracks a human reviewer's pass over the extracted
// concepts. Decisions holds the latest verdict by concept name; Applied
// holds the ones already executed against the library, which makes
// re-submitting a batch of decisions safe. Records is the full log of
// everything the reviewer submitted, in arrival order.
type ReviewProgress struct {
	TotalConcepts int               `json:"total_concepts"`
	ReviewedCount int               `json:"reviewed_count"`
	Decisions     map[string]string `json:"decisions"`
	Applied       map[string]string `json:"applied,omitempty"`
	Records       []DecisionRecord  `json:"records,omitempty"`
	IsDraft       bool              `json:"is_draft"`
	LastUpdated   time.Time         `json:"last_updated"`
}

// DuplicateFlag marks one candidate the duplicate detector tied to an
// existing concept before review.
type DuplicateFlag struct {
	ConceptName       string  `json:"concept_name"`
	ExistingConceptID string  `json:"existing_concept_id"`
	Method            string  `json:"method"`
	Score             float64 `json:"score"`
}

// DuplicateDetection is the output of the pre-review duplicate pass.
type DuplicateDetection struct {
	Checked    bool            `json:"checked"`
	Duplicates []DuplicateFlag `json:"duplicates"`
}

// Metadata carries run-level facts and the aggregate statistics
// computed at finalization.
type Metadata struct {
	Provider            string  `json:"provider,omitempty"`
	Model               string  `json:"model,omitempty"`
	MeanConfidence      float64 `json:"mean_confidence"`
	HighConfidenceCount int     `json:"high_confidence_count"`
	CategoryCount       int     `json:"category_count"`
	ProcessingSeconds   float64 `json:"processing_seconds"`
}

// Session is one extraction run over a lesson document, durable across
// process restarts.
type Session struct {
	ID                  string              `json:"id"`
	DocumentID          string              `json:"document_id"`
	Name                string              `json:"name"`
	Status              Status              `json:"status"`
	ExtractedConcepts   []ExtractedConcept  `json:"extracted_concepts"`
	SimilarityMatches   []SimilarityMatch   `json:"similarity_matches"`
	Progress            Progress            `json:"progress"`
	ReviewProgress      *ReviewProgress     `json:"review_progress,omitempty"`
	DuplicateDetection  *DuplicateDetection `json:"duplicate_detection,omitempty"`
	Metadata            Metadata            `json:"metadata"`
	ErrorMessage        string              `json:"error_message,omitempty"`
	ExtractionStartedAt *time.Time          `json:"extraction_started_at,omitempty"`
	CreatedAt           time.Time           `json:"created_at"`
	UpdatedAt           time.Time           `json:"updated_at"`
}

// UncheckedConcepts returns the extracted concepts still waiting for a
// similarity verdict, in extraction order.
func (s *Session) UncheckedConcepts() []ExtractedConcept {
	var out []ExtractedConcept
	for _, c := range s.ExtractedConcepts {
		if !c.SimilarityChecked {
			out = append(out, c)
		}
	}
	return out
}

// MarkChecked flags every extracted concept with the given name as
// similarity-checked. Duplicate names across chunks share one verdict.
func (s *Session) MarkChecked(name string) {
	for i := range s.ExtractedConcepts {
		if s.ExtractedConcepts[i].Name == name {
			s.ExtractedConcepts[i].SimilarityChecked = true
		}
	}
}

// MatchFor returns the stored similarity verdict for a concept name,
// or nil if that name has not been judged yet.
func (s *Session) MatchFor(name string) *SimilarityMatch {
	for i := range s.SimilarityMatches {
		if s.SimilarityMatches[i].ConceptName == name {
			return &s.SimilarityMatches[i]
		}
	}
	return nil
}

// ListFilter controls which sessions List returns.
type ListFilter struct {
	DocumentID string
	Status     Status
	Limit      int
}
