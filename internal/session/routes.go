package session

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	"github.com/lexmine/lexmine/internal/api"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// RegisterRoutes mounts the session API routes. Paths are registered
// directly because other features hang their own handlers off the
// /api/sessions/{id} subtree.
func RegisterRoutes(r chi.Router, store *Store) {
	r.Get("/api/sessions", handleList(store))
	r.Get("/api/sessions/{id}", handleGet(store))
	r.Post("/api/sessions/{id}/archive", handleArchive(store))
	r.Get("/api/sessions/{id}/progress", handleProgressStream(store, time.Second))
}

func handleList(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter := ListFilter{
			DocumentID: r.URL.Query().Get("document_id"),
			Status:     Status(r.URL.Query().Get("status")),
		}
		if filter.Status != "" && !ValidStatus(filter.Status) {
			api.Error(w, http.StatusBadRequest, api.KindValidation, "unknown status "+string(filter.Status))
			return
		}

		sessions, err := store.List(r.Context(), filter)
		if err != nil {
			api.Error(w, http.StatusInternalServerError, api.KindFatal, err.Error())
			return
		}
		if sessions == nil {
			sessions = []*Session{}
		}
		api.JSON(w, http.StatusOK, sessions)
	}
}

func handleGet(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := store.GetByID(r.Context(), chi.URLParam(r, "id"))
		if errors.Is(err, ErrNotFound) {
			api.Error(w, http.StatusNotFound, api.KindNotFound, "session not found")
			return
		}
		if err != nil {
			api.Error(w, http.StatusInternalServerError, api.KindFatal, err.Error())
			return
		}
		api.JSON(w, http.StatusOK, sess)
	}
}

func handleArchive(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := store.Transition(r.Context(), chi.URLParam(r, "id"), StatusArchived)
		if errors.Is(err, ErrNotFound) {
			api.Error(w, http.StatusNotFound, api.KindNotFound, "session not found")
			return
		}
		if errors.Is(err, ErrInvalidTransition) {
			api.Error(w, http.StatusConflict, api.KindConflict, err.Error())
			return
		}
		if err != nil {
			api.Error(w, http.StatusInternalServerError, api.KindFatal, err.Error())
			return
		}
		api.JSON(w, http.StatusOK, sess)
	}
}

// handleProgressStream upgrades to a websocket and pushes progress
// snapshots until the session reaches a terminal state or the client
// disconnects.
func handleProgressStream(store *Store, interval time.Duration) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if _, err := store.GetByID(r.Context(), id); errors.Is(err, ErrNotFound) {
			api.Error(w, http.StatusNotFound, api.KindNotFound, "session not found")
			return
		}

		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			sess, err := store.GetByID(r.Context(), id)
			if err != nil {
				return
			}
			snapshot := map[string]any{
				"session_id": sess.ID,
				"status":     sess.Status,
				"progress":   sess.Progress,
			}
			if err := conn.WriteJSON(snapshot); err != nil {
				return
			}
			if sess.Status.IsTerminal() || sess.Status == StatusExtracted || sess.Status == StatusInReview {
				return
			}

			select {
			case <-ticker.C:
			case <-r.Context().Done():
				return
			}
		}
	}
}
