package cleanup

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/lexmine/lexmine/internal/api"
)

// RegisterRoutes mounts the cleanup API. Dry run is the default;
// callers must pass dry_run=false to actually sweep.
func RegisterRoutes(r chi.Router, runner *Runner) {
	r.Post("/api/cleanup", handleRun(runner))
}

func handleRun(runner *Runner) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		dryRun := r.URL.Query().Get("dry_run") != "false"

		report, err := runner.Run(r.Context(), time.Now().UTC(), dryRun)
		if err != nil {
			api.Error(w, http.StatusInternalServerError, api.KindFatal, err.Error())
			return
		}
		api.JSON(w, http.StatusOK, report)
	}
}
