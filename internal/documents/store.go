package documents

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/lexmine/lexmine/internal/db"
)

// ErrNotFound is returned when a document id does not resolve.
var ErrNotFound = errors.New("document not found")

// Store manages persistence of lesson documents.
type Store struct {
	db *db.DB
}

// NewStore creates a new document store.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// Create adds a new lesson document.
func (s *Store) Create(ctx context.Context, d Document) (*Document, error) {
	if d.ID == "" {
		d.ID = uuid.New().String()
	}
	if strings.TrimSpace(d.Name) == "" {
		return nil, fmt.Errorf("document name is required")
	}
	now := time.Now().UTC()
	d.CreatedAt = now
	d.UpdatedAt = now
	d.ExtractionStatus = StatusPending
	d.ContentLength = len(d.Content)

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO documents (id, name, content, extraction_status, content_length, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.Name, d.Content, string(d.ExtractionStatus), d.ContentLength, d.CreatedAt, d.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("inserting document: %w", err)
	}
	return &d, nil
}

// GetByID retrieves a document by its ID. Returns ErrNotFound if absent.
func (s *Store) GetByID(ctx context.Context, id string) (*Document, error) {
	var d Document
	var status string
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, content, extraction_status, content_length, created_at, updated_at
		 FROM documents WHERE id = ?`, id,
	).Scan(&d.ID, &d.Name, &d.Content, &status, &d.ContentLength, &d.CreatedAt, &d.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("getting document: %w", err)
	}
	d.ExtractionStatus = ExtractionStatus(status)
	return &d, nil
}

// List returns documents matching the filter, newest first.
func (s *Store) List(ctx context.Context, filter ListFilter) ([]Document, error) {
	query := `SELECT id, name, content, extraction_status, content_length, created_at, updated_at FROM documents`
	var args []any
	if filter.Status != "" {
		query += " WHERE extraction_status = ?"
		args = append(args, string(filter.Status))
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}
	if filter.Offset > 0 {
		query += " OFFSET ?"
		args = append(args, filter.Offset)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing documents: %w", err)
	}
	defer rows.Close()

	var docs []Document
	for rows.Next() {
		var d Document
		var status string
		if err := rows.Scan(&d.ID, &d.Name, &d.Content, &status, &d.ContentLength, &d.CreatedAt, &d.UpdatedAt); err != nil {
			return nil, fmt.Errorf("scanning document: %w", err)
		}
		d.ExtractionStatus = ExtractionStatus(status)
		docs = append(docs, d)
	}
	return docs, rows.Err()
}

// SetExtractionStatus updates a document's pipeline status.
func (s *Store) SetExtractionStatus(ctx context.Context, id string, status ExtractionStatus) error {
	res, err := s.db.ExecContext(ctx,
		`UPDATE documents SET extraction_status = ?, updated_at = ? WHERE id = ?`,
		string(status), time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("updating extraction status: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
