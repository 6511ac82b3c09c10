package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/lexmine/lexmine/internal/db"
)

// Store persists audit entries.
type Store struct {
	db *db.DB
}

// NewStore creates a Store backed by the given database.
func NewStore(database *db.DB) *Store {
	return &Store{db: database}
}

// Log inserts an entry. Empty actor defaults to "system".
func (s *Store) Log(ctx context.Context, entry Entry) error {
	if entry.ID == "" {
		entry.ID = uuid.New().String()
	}
	if entry.Actor == "" {
		entry.Actor = "system"
	}
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx,
		`INSERT INTO audit_entries (id, timestamp, actor, action, scope, scope_id, summary, detail)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		entry.ID, entry.Timestamp, entry.Actor, string(entry.Action),
		string(entry.Scope), entry.ScopeID, entry.Summary, entry.Detail)
	if err != nil {
		return fmt.Errorf("inserting audit entry: %w", err)
	}
	return nil
}

// List returns entries matching the query, newest first.
func (s *Store) List(ctx context.Context, q Query) ([]Entry, error) {
	query := `SELECT id, timestamp, actor, action, scope, scope_id, summary, detail
	          FROM audit_entries WHERE 1=1`
	var args []any
	if q.Scope != "" {
		query += " AND scope = ?"
		args = append(args, string(q.Scope))
	}
	if q.ScopeID != "" {
		query += " AND scope_id = ?"
		args = append(args, q.ScopeID)
	}
	if q.Action != "" {
		query += " AND action = ?"
		args = append(args, string(q.Action))
	}
	query += " ORDER BY timestamp DESC"
	if q.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, q.Limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing audit entries: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var action, scope string
		if err := rows.Scan(&e.ID, &e.Timestamp, &e.Actor, &action, &scope, &e.ScopeID, &e.Summary, &e.Detail); err != nil {
			return nil, fmt.Errorf("scanning audit entry: %w", err)
		}
		e.Action = Action(action)
		e.Scope = Scope(scope)
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
