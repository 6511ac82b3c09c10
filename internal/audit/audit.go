// Package audit records who changed the concept library and why.
// Review decisions, merges and cleanup runs all leave entries here.
package audit

import "time"

// Action names what happened.
type Action string

const (
	ActionApprove Action = "approve"
	ActionLink    Action = "link"
	ActionEdit    Action = "edit"
	ActionReject  Action = "reject"
	ActionMerge   Action = "merge"
	ActionCleanup Action = "cleanup"
)

// Scope names the kind of entity an entry is about.
type Scope string

const (
	ScopeConcept  Scope = "concept"
	ScopeSession  Scope = "session"
	ScopeDocument Scope = "document"
)

// Entry is one audit record.
type Entry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Actor     string    `json:"actor"`
	Action    Action    `json:"action"`
	Scope     Scope     `json:"scope"`
	ScopeID   string    `json:"scope_id"`
	Summary   string    `json:"summary"`
	Detail    string    `json:"detail"`
}

// Query filters audit listings.
type Query struct {
	Scope   Scope
	ScopeID string
	Action  Action
	Limit   int
}
