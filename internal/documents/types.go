package documents

import "time"

// ExtractionStatus tracks how far a lesson document has moved through
// the concept extraction pipeline.
type ExtractionStatus string

const (
	StatusPending    ExtractionStatus = "pending"
	StatusExtracting ExtractionStatus = "extracting"
	StatusExtracted  ExtractionStatus = "extracted"
	StatusReviewed   ExtractionStatus = "reviewed"
)

// Document is a lesson source: notes, practice text, keyword lists.
type Document struct {
	ID               string           `json:"id"`
	Name             string           `json:"name"`
	Content          string           `json:"content"`
	ExtractionStatus ExtractionStatus `json:"extraction_status"`
	ContentLength    int              `json:"content_length"`
	CreatedAt        time.Time        `json:"created_at"`
	UpdatedAt        time.Time        `json:"updated_at"`
}

// ListFilter controls which documents List returns.
type ListFilter struct {
	Status ExtractionStatus
	Limit  int
	Offset int
}
