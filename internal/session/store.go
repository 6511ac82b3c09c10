package session

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lexmine/lexmine/internal/db"
)

// ErrNotFound is returned when a session id does not resolve.
var ErrNotFound = errors.New("session not found")

// ErrActiveSession is returned when creating a session for a document
// that already has one in flight.
var ErrActiveSession = errors.New("document already has an active session")

// ErrInvalidTransition is returned for lifecycle steps the state
// machine does not allow.
var ErrInvalidTransition = errors.New("invalid status transition")

// Store manages persistence of extraction sessions.
type Store struct {
	db *db.DB
}

// NewStore creates a new session store.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// Create starts a new session for a document in the analyzing state.
// It fails with ErrActiveSession if the document already has a session
// that has not reached a terminal state.
func (s *Store) Create(ctx context.Context, documentID, name string) (*Session, error) {
	if documentID == "" {
		return nil, fmt.Errorf("document id is required")
	}

	var active int
	err := s.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM extraction_sessions
		 WHERE document_id = ? AND status IN ('analyzing','extracting','similarity_checking','extracted','in_review')`,
		documentID,
	).Scan(&active)
	if err != nil {
		return nil, fmt.Errorf("checking active sessions: %w", err)
	}
	if active > 0 {
		return nil, ErrActiveSession
	}

	now := time.Now().UTC()
	sess := &Session{
		ID:         uuid.New().String(),
		DocumentID: documentID,
		Name:       name,
		Status:     StatusAnalyzing,
		Progress:   Progress{Phase: string(StatusAnalyzing), LastUpdated: now},
		CreatedAt:  now,
		UpdatedAt:  now,
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO extraction_sessions
		 (id, document_id, name, status, extracted_concepts, similarity_matches, progress,
		  review_progress, duplicate_detection, metadata, error_message, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		sess.ID, sess.DocumentID, sess.Name, string(sess.Status),
		mustJSON(sess.ExtractedConcepts), mustJSON(sess.SimilarityMatches), mustJSON(sess.Progress),
		"{}", "{}", mustJSON(sess.Metadata), "", sess.CreatedAt, sess.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("inserting session: %w", err)
	}
	return sess, nil
}

// GetByID retrieves a session by its ID. Returns ErrNotFound if absent.
func (s *Store) GetByID(ctx context.Context, id string) (*Session, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT id, document_id, name, status, extracted_concepts, similarity_matches, progress,
		        review_progress, duplicate_detection, metadata, error_message,
		        extraction_started_at, created_at, updated_at
		 FROM extraction_sessions WHERE id = ?`, id)
	return scanSession(row)
}

// List returns sessions matching the filter, newest first.
func (s *Store) List(ctx context.Context, filter ListFilter) ([]*Session, error) {
	query := `SELECT id, document_id, name, status, extracted_concepts, similarity_matches, progress,
	                 review_progress, duplicate_detection, metadata, error_message,
	                 extraction_started_at, created_at, updated_at
	          FROM extraction_sessions WHERE 1=1`
	var args []any
	if filter.DocumentID != "" {
		query += " AND document_id = ?"
		args = append(args, filter.DocumentID)
	}
	if filter.Status != "" {
		query += " AND status = ?"
		args = append(args, string(filter.Status))
	}
	query += " ORDER BY created_at DESC"
	if filter.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filter.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// Update persists the session's mutable fields. Status changes must go
// through Transition or SetError so lifecycle rules stay enforced.
func (s *Store) Update(ctx context.Context, sess *Session) error {
	sess.UpdatedAt = time.Now().UTC()
	res, err := s.db.ExecContext(ctx,
		`UPDATE extraction_sessions SET
		   name = ?, extracted_concepts = ?, similarity_matches = ?, progress = ?,
		   review_progress = ?, duplicate_detection = ?, metadata = ?,
		   extraction_started_at = ?, updated_at = ?
		 WHERE id = ?`,
		sess.Name, mustJSON(sess.ExtractedConcepts), mustJSON(sess.SimilarityMatches), mustJSON(sess.Progress),
		jsonOrEmpty(sess.ReviewProgress), jsonOrEmpty(sess.DuplicateDetection), mustJSON(sess.Metadata),
		sess.ExtractionStartedAt, sess.UpdatedAt, sess.ID)
	if err != nil {
		return fmt.Errorf("updating session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Transition moves a session to a new status, enforcing the state
// machine. Returns the refreshed session.
func (s *Store) Transition(ctx context.Context, id string, to Status) (*Session, error) {
	sess, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if !CanTransition(sess.Status, to) {
		return nil, fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, sess.Status, to)
	}

	now := time.Now().UTC()
	if to == StatusExtracting && sess.ExtractionStartedAt == nil {
		sess.ExtractionStartedAt = &now
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE extraction_sessions SET status = ?, extraction_started_at = ?, updated_at = ? WHERE id = ?`,
		string(to), sess.ExtractionStartedAt, now, id)
	if err != nil {
		return nil, fmt.Errorf("transitioning session: %w", err)
	}
	sess.Status = to
	sess.UpdatedAt = now
	return sess, nil
}

// SetError moves the session to the error state and records the
// message. The session's accumulated data is kept intact so the run
// can be inspected and resumed.
func (s *Store) SetError(ctx context.Context, id, message string) error {
	sess, err := s.GetByID(ctx, id)
	if err != nil {
		return err
	}
	if sess.Status == StatusArchived {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, sess.Status, StatusError)
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE extraction_sessions SET status = ?, error_message = ?, updated_at = ? WHERE id = ?`,
		string(StatusError), message, time.Now().UTC(), id)
	if err != nil {
		return fmt.Errorf("recording session error: %w", err)
	}
	return nil
}

// ApplyProgressPatch merges a partial progress update into the stored
// progress, leaving unset fields untouched, and returns the result.
func (s *Store) ApplyProgressPatch(ctx context.Context, id string, patch ProgressPatch) (*Session, error) {
	sess, err := s.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}

	p := &sess.Progress
	if patch.Phase != nil {
		p.Phase = *patch.Phase
	}
	if patch.ProcessedChunks != nil {
		p.ProcessedChunks = *patch.ProcessedChunks
	}
	if patch.ExtractedConceptCount != nil {
		p.ExtractedConceptCount = *patch.ExtractedConceptCount
	}
	if patch.SimilarityCheckedCount != nil {
		p.SimilarityCheckedCount = *patch.SimilarityCheckedCount
	}
	if patch.CurrentOperation != nil {
		p.CurrentOperation = *patch.CurrentOperation
	}
	if patch.EstimatedSecondsRemaining != nil {
		p.EstimatedSecondsRemaining = *patch.EstimatedSecondsRemaining
	}
	if patch.ErrorMessage != nil {
		p.ErrorMessage = *patch.ErrorMessage
	}
	p.LastUpdated = time.Now().UTC()

	if err := s.Update(ctx, sess); err != nil {
		return nil, err
	}
	return sess, nil
}

// Delete removes a session permanently. Used by retention cleanup.
func (s *Store) Delete(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM extraction_sessions WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanSession(row scanner) (*Session, error) {
	var sess Session
	var status string
	var concepts, matches, progress, reviewProgress, dupDetection, metadata string
	var startedAt sql.NullTime

	err := row.Scan(&sess.ID, &sess.DocumentID, &sess.Name, &status,
		&concepts, &matches, &progress, &reviewProgress, &dupDetection, &metadata,
		&sess.ErrorMessage, &startedAt, &sess.CreatedAt, &sess.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scanning session: %w", err)
	}

	sess.Status = Status(status)
	if startedAt.Valid {
		t := startedAt.Time
		sess.ExtractionStartedAt = &t
	}
	if err := json.Unmarshal([]byte(concepts), &sess.ExtractedConcepts); err != nil {
		return nil, fmt.Errorf("decoding extracted concepts: %w", err)
	}
	if err := json.Unmarshal([]byte(matches), &sess.SimilarityMatches); err != nil {
		return nil, fmt.Errorf("decoding similarity matches: %w", err)
	}
	if err := json.Unmarshal([]byte(progress), &sess.Progress); err != nil {
		return nil, fmt.Errorf("decoding progress: %w", err)
	}
	if reviewProgress != "" && reviewProgress != "{}" {
		sess.ReviewProgress = &ReviewProgress{}
		if err := json.Unmarshal([]byte(reviewProgress), sess.ReviewProgress); err != nil {
			return nil, fmt.Errorf("decoding review progress: %w", err)
		}
	}
	if dupDetection != "" && dupDetection != "{}" {
		sess.DuplicateDetection = &DuplicateDetection{}
		if err := json.Unmarshal([]byte(dupDetection), sess.DuplicateDetection); err != nil {
			return nil, fmt.Errorf("decoding duplicate detection: %w", err)
		}
	}
	if err := json.Unmarshal([]byte(metadata), &sess.Metadata); err != nil {
		return nil, fmt.Errorf("decoding metadata: %w", err)
	}
	return &sess, nil
}

func mustJSON(v any) string {
	data, err := json.Marshal(v)
	if err != nil {
		return "{}"
	}
	return string(data)
}

func jsonOrEmpty(v any) string {
	switch t := v.(type) {
	case *ReviewProgress:
		if t == nil {
			return "{}"
		}
	case *DuplicateDetection:
		if t == nil {
			return "{}"
		}
	}
	return mustJSON(v)
}
