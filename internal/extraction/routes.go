package extraction

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/lexmine/lexmine/internal/api"
	"github.com/lexmine/lexmine/internal/documents"
	"github.com/lexmine/lexmine/internal/session"
)

// RegisterRoutes mounts the extraction API. /api/extract runs the full
// pipeline in the background; the per-phase routes let a caller drive
// the same steps one request at a time.
func RegisterRoutes(r chi.Router, orch *Orchestrator, sessions *session.Store) {
	r.Post("/api/extract", handleExtract(orch))
	r.Post("/api/sessions/analyze", handleAnalyze(orch))
	r.Post("/api/sessions/{id}/extract", handleExtractChunks(orch, sessions))
	r.Post("/api/sessions/{id}/similarity", handleSimilarityBatch(orch, sessions))
	r.Post("/api/sessions/{id}/finalize", handleFinalize(orch))
	r.Post("/api/sessions/{id}/resume", handleResume(orch, sessions))
}

type extractRequest struct {
	DocumentID string `json:"document_id"`
}

func handleExtract(orch *Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req extractRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			api.Error(w, http.StatusBadRequest, api.KindValidation, "invalid request body")
			return
		}
		if req.DocumentID == "" {
			api.Error(w, http.StatusBadRequest, api.KindValidation, "document_id is required")
			return
		}

		sess, err := orch.Prepare(r.Context(), req.DocumentID)
		if errors.Is(err, documents.ErrNotFound) {
			api.Error(w, http.StatusNotFound, api.KindNotFound, "document not found")
			return
		}
		if errors.Is(err, session.ErrActiveSession) {
			api.Error(w, http.StatusConflict, api.KindConflict, "document already has an active session")
			return
		}
		if err != nil {
			api.Error(w, http.StatusInternalServerError, api.KindFatal, err.Error())
			return
		}

		go runDetached(orch, sess.ID)
		api.JSON(w, http.StatusAccepted, sess)
	}
}

func handleAnalyze(orch *Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req extractRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			api.Error(w, http.StatusBadRequest, api.KindValidation, "invalid request body")
			return
		}
		if req.DocumentID == "" {
			api.Error(w, http.StatusBadRequest, api.KindValidation, "document_id is required")
			return
		}

		sess, err := orch.Analyze(r.Context(), req.DocumentID)
		if errors.Is(err, documents.ErrNotFound) {
			api.Error(w, http.StatusNotFound, api.KindNotFound, "document not found")
			return
		}
		if errors.Is(err, session.ErrActiveSession) {
			api.Error(w, http.StatusConflict, api.KindConflict, "document already has an active session")
			return
		}
		if err != nil {
			api.Error(w, http.StatusInternalServerError, api.KindFatal, err.Error())
			return
		}
		api.JSON(w, http.StatusCreated, sess)
	}
}

func handleExtractChunks(orch *Orchestrator, sessions *session.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := loadSession(w, r, sessions)
		if !ok {
			return
		}
		if sess.Status != session.StatusExtracting {
			api.Error(w, http.StatusConflict, api.KindConflict,
				"session is "+string(sess.Status)+", not extracting")
			return
		}

		id := sess.ID
		sess, err := orch.ExtractChunks(r.Context(), id)
		if err != nil {
			api.ErrorDetail(w, http.StatusInternalServerError, api.KindFatal, err.Error(),
				map[string]any{"session_id": id, "phase": "extracting"})
			return
		}
		api.JSON(w, http.StatusOK, sess)
	}
}

type similarityRequest struct {
	BatchSize int `json:"batch_size"`
}

func handleSimilarityBatch(orch *Orchestrator, sessions *session.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req similarityRequest
		if r.Body != nil {
			// An empty body means the configured batch size.
			_ = json.NewDecoder(r.Body).Decode(&req)
		}

		sess, ok := loadSession(w, r, sessions)
		if !ok {
			return
		}
		switch sess.Status {
		case session.StatusSimilarityChecking, session.StatusExtracted:
		default:
			api.Error(w, http.StatusConflict, api.KindConflict,
				"session is "+string(sess.Status)+", not similarity_checking")
			return
		}

		report, err := orch.SimilarityBatch(r.Context(), sess.ID, req.BatchSize)
		if err != nil {
			api.ErrorDetail(w, http.StatusInternalServerError, api.KindFatal, err.Error(),
				map[string]any{"session_id": sess.ID, "phase": "similarity_checking"})
			return
		}
		api.JSON(w, http.StatusOK, report)
	}
}

func handleFinalize(orch *Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		stats, err := orch.FinalizeSession(r.Context(), chi.URLParam(r, "id"))
		if errors.Is(err, session.ErrNotFound) {
			api.Error(w, http.StatusNotFound, api.KindNotFound, "session not found")
			return
		}
		if errors.Is(err, ErrNotReady) {
			api.ErrorDetail(w, http.StatusConflict, api.KindInconsistency, err.Error(),
				map[string]any{"session_id": chi.URLParam(r, "id"), "phase": "finalizing"})
			return
		}
		if err != nil {
			api.Error(w, http.StatusInternalServerError, api.KindFatal, err.Error())
			return
		}
		api.JSON(w, http.StatusOK, stats)
	}
}

func loadSession(w http.ResponseWriter, r *http.Request, sessions *session.Store) (*session.Session, bool) {
	sess, err := sessions.GetByID(r.Context(), chi.URLParam(r, "id"))
	if errors.Is(err, session.ErrNotFound) {
		api.Error(w, http.StatusNotFound, api.KindNotFound, "session not found")
		return nil, false
	}
	if err != nil {
		api.Error(w, http.StatusInternalServerError, api.KindFatal, err.Error())
		return nil, false
	}
	return sess, true
}

func handleResume(orch *Orchestrator, sessions *session.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, ok := loadSession(w, r, sessions)
		if !ok {
			return
		}

		switch sess.Status {
		case session.StatusError, session.StatusAnalyzing, session.StatusExtracting,
			session.StatusSimilarityChecking, session.StatusExtracted:
		default:
			api.Error(w, http.StatusConflict, api.KindConflict,
				"session is "+string(sess.Status)+" and cannot be resumed")
			return
		}

		go runDetached(orch, sess.ID)
		api.JSON(w, http.StatusAccepted, sess)
	}
}

func runDetached(orch *Orchestrator, sessionID string) {
	if _, err := orch.Execute(context.Background(), sessionID); err != nil {
		log.Printf("extraction: session %s: %v", sessionID, err)
	}
}
