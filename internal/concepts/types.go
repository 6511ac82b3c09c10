package concepts

import "time"

// Category classifies what kind of learning concept a record is.
type Category string

const (
	CategoryGrammar    Category = "grammar"
	CategoryVocabulary Category = "vocabulary"
)

// Difficulty is the learner level a concept is pitched at.
type Difficulty string

const (
	DifficultyBeginner     Difficulty = "beginner"
	DifficultyIntermediate Difficulty = "intermediate"
	DifficultyAdvanced     Difficulty = "advanced"
)

// difficultyRank orders difficulties for merge compatibility checks.
var difficultyRank = map[Difficulty]int{
	DifficultyBeginner:     0,
	DifficultyIntermediate: 1,
	DifficultyAdvanced:     2,
}

// Concept is a durable knowledge unit: a grammar rule or vocabulary item
// distilled from lesson content. Concepts are deactivated rather than
// hard-deleted so merge lineage stays resolvable.
type Concept struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Category    Category   `json:"category"`
	Description string     `json:"description"`
	Examples    []string   `json:"examples"`
	Difficulty  Difficulty `json:"difficulty"`
	Confidence  float64    `json:"confidence"`
	Tags        []string   `json:"tags"`
	Active      bool       `json:"active"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

// IndexEntry is the read-only snapshot of an active concept used as the
// comparison set for similarity and duplication checks.
type IndexEntry struct {
	ID          string   `json:"id"`
	Name        string   `json:"name"`
	Category    Category `json:"category"`
	Description string   `json:"description"`
	Examples    []string `json:"examples"`
}

// Link ties a concept to a source document with the confidence and
// excerpt recorded at extraction time.
type Link struct {
	ConceptID  string    `json:"concept_id"`
	DocumentID string    `json:"document_id"`
	Confidence float64   `json:"confidence"`
	Excerpt    string    `json:"excerpt"`
	CreatedAt  time.Time `json:"created_at"`
}

// LineageRecord maps a merged-away source concept to its surviving target.
type LineageRecord struct {
	ID              string    `json:"id"`
	SourceConceptID string    `json:"source_concept_id"`
	TargetConceptID string    `json:"target_concept_id"`
	MergedAt        time.Time `json:"merged_at"`
}

// ListFilter controls which concepts ListPage returns.
type ListFilter struct {
	Category   Category
	ActiveOnly bool
	Search     string // substring match on name
}

// MergeRequest folds the source concepts into the target, writing the
// final field values onto the target record.
type MergeRequest struct {
	TargetID    string     `json:"target_id"`
	SourceIDs   []string   `json:"source_ids"`
	Name        string     `json:"name"`
	Description string     `json:"description"`
	Examples    []string   `json:"examples"`
	Difficulty  Difficulty `json:"difficulty"`
	Tags        []string   `json:"tags"`
}

// ValidCategory reports whether c is a known category.
func ValidCategory(c Category) bool {
	return c == CategoryGrammar || c == CategoryVocabulary
}

// ValidDifficulty reports whether d is a known difficulty.
func ValidDifficulty(d Difficulty) bool {
	_, ok := difficultyRank[d]
	return ok
}
