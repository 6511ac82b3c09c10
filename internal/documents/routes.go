package documents

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/lexmine/lexmine/internal/api"
)

// RegisterRoutes mounts the lesson document API routes.
func RegisterRoutes(r chi.Router, store *Store) {
	r.Route("/api/documents", func(r chi.Router) {
		r.Get("/", handleList(store))
		r.Post("/", handleCreate(store))
		r.Get("/{id}", handleGet(store))
	})
}

type createRequest struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

func handleCreate(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req createRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			api.Error(w, http.StatusBadRequest, api.KindValidation, "invalid request body")
			return
		}
		if req.Name == "" {
			api.Error(w, http.StatusBadRequest, api.KindValidation, "name is required")
			return
		}
		if req.Content == "" {
			api.Error(w, http.StatusBadRequest, api.KindValidation, "content is required")
			return
		}

		created, err := store.Create(r.Context(), Document{Name: req.Name, Content: req.Content})
		if err != nil {
			api.Error(w, http.StatusInternalServerError, api.KindFatal, err.Error())
			return
		}
		api.JSON(w, http.StatusCreated, created)
	}
}

func handleGet(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		d, err := store.GetByID(r.Context(), chi.URLParam(r, "id"))
		if errors.Is(err, ErrNotFound) {
			api.Error(w, http.StatusNotFound, api.KindNotFound, "document not found")
			return
		}
		if err != nil {
			api.Error(w, http.StatusInternalServerError, api.KindFatal, err.Error())
			return
		}
		api.JSON(w, http.StatusOK, d)
	}
}

func handleList(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter := ListFilter{Status: ExtractionStatus(r.URL.Query().Get("status"))}
		if v := r.URL.Query().Get("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				filter.Limit = n
			}
		}
		if v := r.URL.Query().Get("offset"); v != "" {
			if n, err := strconv.Atoi(v); err == nil {
				filter.Offset = n
			}
		}

		docs, err := store.List(r.Context(), filter)
		if err != nil {
			api.Error(w, http.StatusInternalServerError, api.KindFatal, err.Error())
			return
		}
		if docs == nil {
			docs = []Document{}
		}
		api.JSON(w, http.StatusOK, docs)
	}
}
