package audit

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/lexmine/lexmine/internal/api"
)

// RegisterRoutes mounts the audit trail API.
func RegisterRoutes(r chi.Router, store *Store) {
	r.Get("/api/audit", handleList(store))
}

func handleList(store *Store) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := Query{
			Scope:   Scope(r.URL.Query().Get("scope")),
			ScopeID: r.URL.Query().Get("scope_id"),
			Action:  Action(r.URL.Query().Get("action")),
			Limit:   100,
		}
		if v := r.URL.Query().Get("limit"); v != "" {
			if n, err := strconv.Atoi(v); err == nil && n > 0 {
				q.Limit = n
			}
		}

		entries, err := store.List(r.Context(), q)
		if err != nil {
			api.Error(w, http.StatusInternalServerError, api.KindFatal, err.Error())
			return
		}
		if entries == nil {
			entries = []Entry{}
		}
		api.JSON(w, http.StatusOK, entries)
	}
}
