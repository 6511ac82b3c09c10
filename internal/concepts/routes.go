package concepts

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/lexmine/lexmine/internal/api"
	"github.com/lexmine/lexmine/internal/audit"
)

// RegisterRoutes mounts the concept API routes. The audit store may be
// nil, which drops merge audit entries.
func RegisterRoutes(r chi.Router, store *Store, auditStore *audit.Store) {
	r.Route("/api/concepts", func(r chi.Router) {
		r.Get("/", handleList(store))
		r.Post("/merge", handleMerge(store, auditStore))
		r.Get("/{id}", handleGet(store))
		r.Get("/{id}/lineage", handleLineage(store))
		r.Delete("/{id}", handleDeactivate(store))
	})
}

func handleList(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		filter := ListFilter{
			Category:   Category(r.URL.Query().Get("category")),
			Search:     r.URL.Query().Get("search"),
			ActiveOnly: r.URL.Query().Get("active") != "false",
		}
		if filter.Category != "" && !ValidCategory(filter.Category) {
			api.Error(w, http.StatusBadRequest, api.KindValidation, "unknown category")
			return
		}

		page, _ := strconv.Atoi(r.URL.Query().Get("page"))
		limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))

		list, err := store.ListPage(r.Context(), filter, page, limit)
		if err != nil {
			api.Error(w, http.StatusInternalServerError, api.KindFatal, err.Error())
			return
		}
		if list == nil {
			list = []Concept{}
		}
		api.JSON(w, http.StatusOK, list)
	}
}

func handleGet(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		c, err := store.GetByID(r.Context(), chi.URLParam(r, "id"))
		if errors.Is(err, ErrNotFound) {
			api.Error(w, http.StatusNotFound, api.KindNotFound, "concept not found")
			return
		}
		if err != nil {
			api.Error(w, http.StatusInternalServerError, api.KindFatal, err.Error())
			return
		}
		api.JSON(w, http.StatusOK, c)
	}
}

func handleLineage(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		records, err := store.Lineage(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			api.Error(w, http.StatusInternalServerError, api.KindFatal, err.Error())
			return
		}
		if records == nil {
			records = []LineageRecord{}
		}
		api.JSON(w, http.StatusOK, records)
	}
}

func handleDeactivate(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		err := store.Deactivate(r.Context(), chi.URLParam(r, "id"))
		if errors.Is(err, ErrNotFound) {
			api.Error(w, http.StatusNotFound, api.KindNotFound, "concept not found")
			return
		}
		if err != nil {
			api.Error(w, http.StatusInternalServerError, api.KindFatal, err.Error())
			return
		}
		api.JSON(w, http.StatusOK, map[string]string{"status": "deactivated"})
	}
}

func handleMerge(store *Store, auditStore *audit.Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req MergeRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			api.Error(w, http.StatusBadRequest, api.KindValidation, "invalid request body")
			return
		}

		merged, err := store.Merge(r.Context(), req)
		if err != nil {
			status := http.StatusBadRequest
			kind := api.KindValidation
			if errors.Is(err, ErrNotFound) {
				status = http.StatusNotFound
				kind = api.KindNotFound
			}
			api.Error(w, status, kind, err.Error())
			return
		}

		if auditStore != nil {
			entry := audit.Entry{
				Action:  audit.ActionMerge,
				Scope:   audit.ScopeConcept,
				ScopeID: merged.ID,
				Summary: fmt.Sprintf("merged %s into %q", strings.Join(req.SourceIDs, ", "), merged.Name),
			}
			if err := auditStore.Log(r.Context(), entry); err != nil {
				log.Printf("concepts: audit log: %v", err)
			}
		}
		api.JSON(w, http.StatusOK, merged)
	}
}
