package review

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/lexmine/lexmine/internal/api"
	"github.com/lexmine/lexmine/internal/session"
)

// RegisterRoutes mounts the review API.
func RegisterRoutes(r chi.Router, p *Processor) {
	r.Get("/api/sessions/{id}/review", handlePayload(p))
	r.Post("/api/sessions/{id}/review", handleSubmit(p))
}

func handlePayload(p *Processor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		items, err := p.Payload(r.Context(), chi.URLParam(r, "id"))
		if errors.Is(err, session.ErrNotFound) {
			api.Error(w, http.StatusNotFound, api.KindNotFound, "session not found")
			return
		}
		if err != nil {
			api.Error(w, http.StatusConflict, api.KindConflict, err.Error())
			return
		}
		if items == nil {
			items = []Item{}
		}
		api.JSON(w, http.StatusOK, items)
	}
}

type submitRequest struct {
	Actor     string     `json:"actor"`
	Draft     bool       `json:"draft"`
	Decisions []Decision `json:"decisions"`
}

func handleSubmit(p *Processor) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")

		var req submitRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			api.Error(w, http.StatusBadRequest, api.KindValidation, "invalid request body")
			return
		}

		if req.Draft {
			rp, err := p.SaveDraft(r.Context(), id, req.Decisions)
			if err != nil {
				writeSubmitError(w, err)
				return
			}
			api.JSON(w, http.StatusOK, rp)
			return
		}

		report, err := p.Apply(r.Context(), id, req.Actor, req.Decisions)
		if err != nil {
			writeSubmitError(w, err)
			return
		}
		api.JSON(w, http.StatusOK, report)
	}
}

func writeSubmitError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, session.ErrNotFound):
		api.Error(w, http.StatusNotFound, api.KindNotFound, "session not found")
	case strings.Contains(err.Error(), "not reviewable"):
		api.Error(w, http.StatusConflict, api.KindConflict, err.Error())
	default:
		api.Error(w, http.StatusBadRequest, api.KindValidation, err.Error())
	}
}
