package api

import (
	"encoding/json"
	"net/http"
)

// Error kinds carried by every failure payload so callers can branch
// without parsing messages.
const (
	KindValidation      = "validation"
	KindConflict        = "conflict"
	KindNotFound        = "not_found"
	KindUpstreamFailure = "upstream_failure"
	KindInconsistency   = "inconsistency"
	KindFatal           = "fatal"
)

// ErrorBody is the JSON failure payload shared by all routes.
type ErrorBody struct {
	Error   string         `json:"error"`
	Message string         `json:"message"`
	Detail  map[string]any `json:"detail,omitempty"`
}

// JSON writes v as a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// Error writes a failure payload with a machine-checkable kind.
func Error(w http.ResponseWriter, status int, kind, message string) {
	JSON(w, status, ErrorBody{Error: kind, Message: message})
}

// ErrorDetail writes a failure payload with extra context (session id,
// phase, counts) so callers can resume manually.
func ErrorDetail(w http.ResponseWriter, status int, kind, message string, detail map[string]any) {
	JSON(w, status, ErrorBody{Error: kind, Message: message, Detail: detail})
}
