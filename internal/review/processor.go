// Package review applies human verdicts over an extracted session to
// the concept library.
package review

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/lexmine/lexmine/internal/audit"
	"github.com/lexmine/lexmine/internal/concepts"
	"github.com/lexmine/lexmine/internal/documents"
	"github.com/lexmine/lexmine/internal/session"
)

// Processor turns review decisions into concept library mutations.
type Processor struct {
	sessions  *session.Store
	library   *concepts.Store
	documents *documents.Store
	audit     *audit.Store
}

// NewProcessor creates a review processor.
func NewProcessor(sessions *session.Store, library *concepts.Store, docs *documents.Store, auditStore *audit.Store) *Processor {
	return &Processor{sessions: sessions, library: library, documents: docs, audit: auditStore}
}

// Payload builds the reviewable items for a session, one per distinct
// concept name, with verdicts and duplicate flags attached. Finalized
// sessions are reviewable from extracted onward.
func (p *Processor) Payload(ctx context.Context, sessionID string) ([]Item, error) {
	sess, err := p.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	switch sess.Status {
	case session.StatusExtracted, session.StatusInReview, session.StatusReviewed:
	default:
		return nil, fmt.Errorf("session %s is %s, not reviewable", sessionID, sess.Status)
	}
	return buildItems(sess), nil
}

// SaveDraft stores decisions on the session without touching the
// library. Drafts can be saved any number of times. The first recorded
// decision moves an extracted session into in_review.
func (p *Processor) SaveDraft(ctx context.Context, sessionID string, decisions []Decision) (*session.ReviewProgress, error) {
	sess, err := p.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Status != session.StatusExtracted && sess.Status != session.StatusInReview {
		return nil, fmt.Errorf("session %s is %s, not reviewable", sessionID, sess.Status)
	}

	names := distinctNames(sess)
	rp := sess.ReviewProgress
	if rp == nil {
		rp = &session.ReviewProgress{TotalConcepts: len(names), Decisions: map[string]string{}}
		sess.ReviewProgress = rp
	}
	for _, d := range decisions {
		if err := validateDecision(d, names); err != nil {
			return nil, err
		}
		rp.Decisions[d.ConceptName] = d.Action
		recordDecision(rp, sess, d)
	}
	rp.ReviewedCount = len(rp.Decisions)
	rp.IsDraft = true
	rp.LastUpdated = time.Now().UTC()

	if err := p.sessions.Update(ctx, sess); err != nil {
		return nil, err
	}
	if sess.Status == session.StatusExtracted && len(rp.Decisions) > 0 {
		if _, err := p.sessions.Transition(ctx, sessionID, session.StatusInReview); err != nil {
			return nil, err
		}
	}
	return rp, nil
}

// Apply executes decisions against the library. Each decision gets its
// own result; one bad decision does not block the others. The first
// recorded decision moves an extracted session into in_review; when
// every distinct concept has a decision the session and its document
// both advance to reviewed. Decision order never changes the outcome.
func (p *Processor) Apply(ctx context.Context, sessionID, actor string, decisions []Decision) (*ApplyReport, error) {
	sess, err := p.sessions.GetByID(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	if sess.Status != session.StatusExtracted && sess.Status != session.StatusInReview {
		return nil, fmt.Errorf("session %s is %s, not reviewable", sessionID, sess.Status)
	}

	names := distinctNames(sess)
	report := &ApplyReport{SessionID: sessionID, Results: []Result{}}

	rp := sess.ReviewProgress
	if rp == nil {
		rp = &session.ReviewProgress{TotalConcepts: len(names), Decisions: map[string]string{}}
		sess.ReviewProgress = rp
	}
	if rp.Applied == nil {
		rp.Applied = map[string]string{}
	}

	for _, d := range decisions {
		result := Result{ConceptName: d.ConceptName, Action: d.Action}
		if err := validateDecision(d, names); err != nil {
			result.Error = err.Error()
			report.Results = append(report.Results, result)
			continue
		}
		if _, done := rp.Applied[d.ConceptName]; done {
			result.Error = "concept already reviewed"
			report.Results = append(report.Results, result)
			continue
		}

		conceptID, err := p.applyOne(ctx, sess, d)
		if err != nil {
			result.Error = err.Error()
			report.Results = append(report.Results, result)
			continue
		}

		result.Applied = true
		result.ConceptID = conceptID
		report.Results = append(report.Results, result)
		report.Applied++
		rp.Decisions[d.ConceptName] = d.Action
		rp.Applied[d.ConceptName] = d.Action
		recordDecision(rp, sess, d)

		p.logDecision(ctx, actor, sess, d, conceptID)
	}

	rp.ReviewedCount = len(rp.Applied)
	rp.IsDraft = rp.ReviewedCount < len(names)
	rp.LastUpdated = time.Now().UTC()
	report.Remaining = len(names) - rp.ReviewedCount

	if err := p.sessions.Update(ctx, sess); err != nil {
		return nil, err
	}

	status := sess.Status
	if status == session.StatusExtracted && (len(rp.Decisions) > 0 || report.Remaining == 0) {
		if _, err := p.sessions.Transition(ctx, sessionID, session.StatusInReview); err != nil {
			return nil, err
		}
		status = session.StatusInReview
	}
	if report.Remaining == 0 {
		if _, err := p.sessions.Transition(ctx, sessionID, session.StatusReviewed); err != nil {
			return nil, err
		}
		status = session.StatusReviewed
		// Document advancement mirrors the session; failure to write
		// it must not roll back applied decisions.
		if err := p.documents.SetExtractionStatus(ctx, sess.DocumentID, documents.StatusReviewed); err != nil {
			log.Printf("review: document %s status update: %v", sess.DocumentID, err)
		}
	}
	report.SessionStatus = status
	return report, nil
}

// applyOne mutates the library for a single decision and returns the
// affected concept id, if any.
func (p *Processor) applyOne(ctx context.Context, sess *session.Session, d Decision) (string, error) {
	switch d.Action {
	case ActionReject:
		return "", nil

	case ActionLink:
		target, err := p.library.GetByID(ctx, d.TargetConceptID)
		if err != nil {
			return "", fmt.Errorf("resolving link target: %w", err)
		}
		candidate := firstByName(sess, d.ConceptName)
		if err := p.library.Link(ctx, target.ID, sess.DocumentID, candidate.Confidence, excerptFor(sess, candidate)); err != nil {
			return "", err
		}
		return target.ID, nil

	case ActionApprove, ActionEdit:
		candidate := firstByName(sess, d.ConceptName)
		c := concepts.Concept{
			Name:        candidate.Name,
			Category:    concepts.Category(candidate.Category),
			Difficulty:  concepts.Difficulty(candidate.Difficulty),
			Description: candidate.Description,
			Examples:    candidate.Examples,
			Tags:        candidate.Tags,
			Confidence:  candidate.Confidence,
		}
		if d.Action == ActionEdit {
			applyEdits(&c, d.Edited)
		}
		created, err := p.library.Create(ctx, c)
		if err != nil {
			return "", err
		}
		if err := p.library.Link(ctx, created.ID, sess.DocumentID, candidate.Confidence, excerptFor(sess, candidate)); err != nil {
			return "", err
		}
		return created.ID, nil
	}
	return "", fmt.Errorf("unknown action %q", d.Action)
}

// recordDecision appends the verdict, with the candidate snapshot it
// judged, to the session's decision log.
func recordDecision(rp *session.ReviewProgress, sess *session.Session, d Decision) {
	rp.Records = append(rp.Records, session.DecisionRecord{
		Action:          d.Action,
		Concept:         firstByName(sess, d.ConceptName),
		TargetConceptID: d.TargetConceptID,
		EditedFields:    editedFields(d.Edited),
		Timestamp:       time.Now().UTC(),
	})
}

func editedFields(e *EditedConcept) map[string]any {
	if e == nil {
		return nil
	}
	fields := map[string]any{}
	if e.Name != "" {
		fields["name"] = e.Name
	}
	if e.Category != "" {
		fields["category"] = e.Category
	}
	if e.Difficulty != "" {
		fields["difficulty"] = e.Difficulty
	}
	if e.Description != "" {
		fields["description"] = e.Description
	}
	if e.Examples != nil {
		fields["examples"] = e.Examples
	}
	if e.Tags != nil {
		fields["tags"] = e.Tags
	}
	return fields
}

func (p *Processor) logDecision(ctx context.Context, actor string, sess *session.Session, d Decision, conceptID string) {
	if p.audit == nil {
		return
	}
	entry := audit.Entry{
		Actor:   actor,
		Action:  audit.Action(d.Action),
		Scope:   audit.ScopeConcept,
		ScopeID: conceptID,
		Summary: fmt.Sprintf("%s %q from session %s", d.Action, d.ConceptName, sess.ID),
	}
	if err := p.audit.Log(ctx, entry); err != nil {
		log.Printf("review: audit log: %v", err)
	}
}

func validateDecision(d Decision, names map[string]bool) error {
	if !names[d.ConceptName] {
		return fmt.Errorf("unknown concept %q", d.ConceptName)
	}
	switch d.Action {
	case ActionApprove, ActionReject:
	case ActionLink:
		if d.TargetConceptID == "" {
			return fmt.Errorf("link decision for %q needs target_concept_id", d.ConceptName)
		}
	case ActionEdit:
		if d.Edited == nil {
			return fmt.Errorf("edit decision for %q needs edited fields", d.ConceptName)
		}
	default:
		return fmt.Errorf("unknown action %q", d.Action)
	}
	return nil
}

func applyEdits(c *concepts.Concept, e *EditedConcept) {
	if e == nil {
		return
	}
	if e.Name != "" {
		c.Name = e.Name
	}
	if e.Category != "" {
		c.Category = concepts.Category(e.Category)
	}
	if e.Difficulty != "" {
		c.Difficulty = concepts.Difficulty(e.Difficulty)
	}
	if e.Description != "" {
		c.Description = e.Description
	}
	if e.Examples != nil {
		c.Examples = e.Examples
	}
	if e.Tags != nil {
		c.Tags = e.Tags
	}
}

func buildItems(sess *session.Session) []Item {
	var order []string
	byName := map[string]*Item{}
	for _, c := range sess.ExtractedConcepts {
		item, ok := byName[c.Name]
		if !ok {
			item = &Item{
				Name:        c.Name,
				Category:    c.Category,
				Difficulty:  c.Difficulty,
				Description: c.Description,
				Examples:    c.Examples,
				Tags:        c.Tags,
				Confidence:  c.Confidence,
				Matches:     []session.Match{},
			}
			byName[c.Name] = item
			order = append(order, c.Name)
		}
		item.Occurrences++
		item.ChunkIndexes = append(item.ChunkIndexes, c.ChunkIndex)
		if c.Confidence > item.Confidence {
			item.Confidence = c.Confidence
		}
	}

	for name, item := range byName {
		if verdict := sess.MatchFor(name); verdict != nil {
			item.Matches = verdict.Matches
		}
		if sess.DuplicateDetection != nil {
			for _, flag := range sess.DuplicateDetection.Duplicates {
				if flag.ConceptName == name {
					item.DuplicateFlags = append(item.DuplicateFlags, flag)
				}
			}
		}
		if sess.ReviewProgress != nil {
			item.Decision = sess.ReviewProgress.Decisions[name]
		}
	}

	items := make([]Item, 0, len(order))
	for _, name := range order {
		items = append(items, *byName[name])
	}
	return items
}

func distinctNames(sess *session.Session) map[string]bool {
	names := map[string]bool{}
	for _, c := range sess.ExtractedConcepts {
		names[c.Name] = true
	}
	return names
}

func firstByName(sess *session.Session, name string) session.ExtractedConcept {
	for _, c := range sess.ExtractedConcepts {
		if c.Name == name {
			return c
		}
	}
	return session.ExtractedConcept{Name: name}
}

// excerptFor pulls a short snippet of the chunk the candidate came
// from, for the concept-document link.
func excerptFor(sess *session.Session, c session.ExtractedConcept) string {
	if c.ChunkIndex < 0 || c.ChunkIndex >= len(sess.Progress.Chunks) {
		return ""
	}
	content := sess.Progress.Chunks[c.ChunkIndex].Content
	if len(content) > 200 {
		content = content[:200]
	}
	return content
}
