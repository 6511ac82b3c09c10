package concepts

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lexmine/lexmine/internal/db"
)

// ErrNotFound is returned when a concept id does not resolve.
var ErrNotFound = errors.New("concept not found")

// Store manages persistence of durable concepts, their document links,
// and merge lineage.
type Store struct {
	db *db.DB
}

// NewStore creates a new concept store.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// Create inserts a new concept. If c.ID is empty a UUID is generated.
func (s *Store) Create(ctx context.Context, c Concept) (*Concept, error) {
	if c.ID == "" {
		c.ID = uuid.New().String()
	}
	if !ValidCategory(c.Category) {
		return nil, fmt.Errorf("invalid category %q", c.Category)
	}
	if c.Difficulty == "" {
		c.Difficulty = DifficultyBeginner
	}
	if !ValidDifficulty(c.Difficulty) {
		return nil, fmt.Errorf("invalid difficulty %q", c.Difficulty)
	}
	now := time.Now().UTC()
	c.CreatedAt = now
	c.UpdatedAt = now
	c.Active = true

	examples, err := json.Marshal(emptyToSlice(c.Examples))
	if err != nil {
		return nil, fmt.Errorf("marshalling examples: %w", err)
	}
	tags, err := json.Marshal(emptyToSlice(c.Tags))
	if err != nil {
		return nil, fmt.Errorf("marshalling tags: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO concepts (id, name, category, description, examples, difficulty, confidence, tags, active, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, 1, ?, ?)`,
		c.ID, c.Name, string(c.Category), c.Description, string(examples), string(c.Difficulty), c.Confidence, string(tags), c.CreatedAt, c.UpdatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("inserting concept: %w", err)
	}
	return &c, nil
}

const conceptColumns = `id, name, category, description, examples, difficulty, confidence, tags, active, created_at, updated_at`

// GetByID retrieves a concept by its ID. Returns ErrNotFound if absent.
func (s *Store) GetByID(ctx context.Context, id string) (*Concept, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+conceptColumns+` FROM concepts WHERE id = ?`, id)
	c, err := scanConcept(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting concept: %w", err)
	}
	return c, nil
}

// ListPage returns one page of concepts matching the filter, newest first.
func (s *Store) ListPage(ctx context.Context, filter ListFilter, page, limit int) ([]Concept, error) {
	if page < 1 {
		page = 1
	}
	if limit < 1 {
		limit = 20
	}

	var clauses []string
	var args []any
	if filter.Category != "" {
		clauses = append(clauses, "category = ?")
		args = append(args, string(filter.Category))
	}
	if filter.ActiveOnly {
		clauses = append(clauses, "active = 1")
	}
	if filter.Search != "" {
		clauses = append(clauses, "name LIKE ?")
		args = append(args, "%"+filter.Search+"%")
	}

	query := `SELECT ` + conceptColumns + ` FROM concepts`
	if len(clauses) > 0 {
		query += " WHERE " + strings.Join(clauses, " AND ")
	}
	query += " ORDER BY created_at DESC, id LIMIT ? OFFSET ?"
	args = append(args, limit, (page-1)*limit)

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing concepts: %w", err)
	}
	defer rows.Close()

	var out []Concept
	for rows.Next() {
		c, err := scanConcept(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning concept: %w", err)
		}
		out = append(out, *c)
	}
	return out, rows.Err()
}

// ActiveIndex returns the comparison snapshot of all active concepts.
func (s *Store) ActiveIndex(ctx context.Context) ([]IndexEntry, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, category, description, examples FROM concepts WHERE active = 1 ORDER BY name`)
	if err != nil {
		return nil, fmt.Errorf("loading concept index: %w", err)
	}
	defer rows.Close()

	var index []IndexEntry
	for rows.Next() {
		var e IndexEntry
		var category, examples string
		if err := rows.Scan(&e.ID, &e.Name, &category, &e.Description, &examples); err != nil {
			return nil, fmt.Errorf("scanning index entry: %w", err)
		}
		e.Category = Category(category)
		if err := json.Unmarshal([]byte(examples), &e.Examples); err != nil {
			e.Examples = nil
		}
		index = append(index, e)
	}
	return index, rows.Err()
}

// Deactivate marks a concept inactive. It stays resolvable by ID.
func (s *Store) Deactivate(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE concepts SET active = 0, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("deactivating concept: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Link associates a concept with a source document. Linking the same
// pair twice updates the recorded confidence and excerpt.
func (s *Store) Link(ctx context.Context, conceptID, documentID string, confidence float64, excerpt string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO concept_links (concept_id, document_id, confidence, excerpt, created_at)
		 VALUES (?, ?, ?, ?, ?)
		 ON CONFLICT(concept_id, document_id) DO UPDATE SET confidence = excluded.confidence, excerpt = excluded.excerpt`,
		conceptID, documentID, confidence, excerpt, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("linking concept %s to document %s: %w", conceptID, documentID, err)
	}
	return nil
}

// LinksForDocument returns all concept links recorded for a document.
func (s *Store) LinksForDocument(ctx context.Context, documentID string) ([]Link, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT concept_id, document_id, confidence, excerpt, created_at FROM concept_links WHERE document_id = ?`,
		documentID)
	if err != nil {
		return nil, fmt.Errorf("listing links: %w", err)
	}
	defer rows.Close()

	var links []Link
	for rows.Next() {
		var l Link
		if err := rows.Scan(&l.ConceptID, &l.DocumentID, &l.Confidence, &l.Excerpt, &l.CreatedAt); err != nil {
			return nil, fmt.Errorf("scanning link: %w", err)
		}
		links = append(links, l)
	}
	return links, rows.Err()
}

// Lineage returns the merge lineage records pointing at the given target.
func (s *Store) Lineage(ctx context.Context, targetID string) ([]LineageRecord, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source_concept_id, target_concept_id, merged_at FROM concept_lineage WHERE target_concept_id = ?`,
		targetID)
	if err != nil {
		return nil, fmt.Errorf("listing lineage: %w", err)
	}
	defer rows.Close()

	var records []LineageRecord
	for rows.Next() {
		var r LineageRecord
		if err := rows.Scan(&r.ID, &r.SourceConceptID, &r.TargetConceptID, &r.MergedAt); err != nil {
			return nil, fmt.Errorf("scanning lineage: %w", err)
		}
		records = append(records, r)
	}
	return records, rows.Err()
}

// scanner is implemented by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanConcept(sc scanner) (*Concept, error) {
	var c Concept
	var category, difficulty, examples, tags string
	var active int
	err := sc.Scan(&c.ID, &c.Name, &category, &c.Description, &examples, &difficulty, &c.Confidence, &tags, &active, &c.CreatedAt, &c.UpdatedAt)
	if err != nil {
		return nil, err
	}
	c.Category = Category(category)
	c.Difficulty = Difficulty(difficulty)
	c.Active = active != 0
	if err := json.Unmarshal([]byte(examples), &c.Examples); err != nil {
		c.Examples = nil
	}
	if err := json.Unmarshal([]byte(tags), &c.Tags); err != nil {
		c.Tags = nil
	}
	return &c, nil
}

func emptyToSlice(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
