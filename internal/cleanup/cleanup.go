// Package cleanup enforces session retention: old archived sessions
// are deleted, abandoned runs are swept away and long-reviewed
// sessions are archived.
package cleanup

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/lexmine/lexmine/internal/audit"
	"github.com/lexmine/lexmine/internal/session"
)

// Policy is the retention schedule, in days. Zero or negative values
// disable that rule.
type Policy struct {
	ArchivedDays int
	StaleDays    int
	ReviewedDays int
}

// Report summarizes one cleanup pass. With DryRun set, the counts
// describe what a real run would do; nothing is touched.
type Report struct {
	DryRun           bool     `json:"dry_run"`
	Examined         int      `json:"examined"`
	DeletedArchived  int      `json:"deleted_archived"`
	DeletedStale     int      `json:"deleted_stale"`
	ArchivedReviewed int      `json:"archived_reviewed"`
	SessionIDs       []string `json:"session_ids,omitempty"`
}

// Runner applies a retention policy to the session store.
type Runner struct {
	sessions *session.Store
	audit    *audit.Store
	policy   Policy
}

// NewRunner creates a cleanup runner. The audit store may be nil.
func NewRunner(sessions *session.Store, auditStore *audit.Store, policy Policy) *Runner {
	return &Runner{sessions: sessions, audit: auditStore, policy: policy}
}

// Run sweeps the session store once. Running twice with the same
// clock does the same or less work, never more.
func (r *Runner) Run(ctx context.Context, now time.Time, dryRun bool) (*Report, error) {
	sessions, err := r.sessions.List(ctx, session.ListFilter{})
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}

	report := &Report{DryRun: dryRun, Examined: len(sessions)}
	for _, sess := range sessions {
		age := now.Sub(sess.UpdatedAt)

		switch {
		case sess.Status == session.StatusArchived && expired(age, r.policy.ArchivedDays):
			report.DeletedArchived++
			report.SessionIDs = append(report.SessionIDs, sess.ID)
			if !dryRun {
				if err := r.sessions.Delete(ctx, sess.ID); err != nil {
					return nil, fmt.Errorf("deleting archived session %s: %w", sess.ID, err)
				}
			}

		case isStale(sess.Status) && expired(age, r.policy.StaleDays):
			report.DeletedStale++
			report.SessionIDs = append(report.SessionIDs, sess.ID)
			if !dryRun {
				if err := r.sessions.Delete(ctx, sess.ID); err != nil {
					return nil, fmt.Errorf("deleting stale session %s: %w", sess.ID, err)
				}
			}

		case sess.Status == session.StatusReviewed && expired(age, r.policy.ReviewedDays):
			report.ArchivedReviewed++
			report.SessionIDs = append(report.SessionIDs, sess.ID)
			if !dryRun {
				if _, err := r.sessions.Transition(ctx, sess.ID, session.StatusArchived); err != nil {
					return nil, fmt.Errorf("archiving session %s: %w", sess.ID, err)
				}
			}
		}
	}

	if !dryRun && r.audit != nil && len(report.SessionIDs) > 0 {
		entry := audit.Entry{
			Action: audit.ActionCleanup,
			Scope:  audit.ScopeSession,
			Summary: fmt.Sprintf("cleanup: deleted %d archived, %d stale; archived %d reviewed",
				report.DeletedArchived, report.DeletedStale, report.ArchivedReviewed),
		}
		if err := r.audit.Log(ctx, entry); err != nil {
			log.Printf("cleanup: audit log: %v", err)
		}
	}
	return report, nil
}

// isStale covers runs that never finished: a session stuck mid-pipeline
// or parked in error with no writes for the stale window was abandoned,
// not paused.
func isStale(s session.Status) bool {
	switch s {
	case session.StatusAnalyzing, session.StatusExtracting, session.StatusSimilarityChecking,
		session.StatusError:
		return true
	}
	return false
}

func expired(age time.Duration, days int) bool {
	if days <= 0 {
		return false
	}
	return age > time.Duration(days)*24*time.Hour
}
