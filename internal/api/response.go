package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/unifound/unifound/internal/gateway"
	"github.com/unifound/unifound/internal/report"
	"github.com/unifound/unifound/internal/workflow"
)

// jsonResponse writes a JSON response with the given status code.
func jsonResponse(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		if err := json.NewEncoder(w).Encode(data); err != nil {
			slog.Error("encoding response", "error", err)
		}
	}
}

// jsonError writes a JSON error response.
func jsonError(w http.ResponseWriter, status int, message string) {
	jsonResponse(w, status, map[string]string{"error": message})
}

// decodeJSON decodes a JSON request body into the given target.
func decodeJSON(r *http.Request, target any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(target)
}

// failure maps a domain error to its HTTP status. Validation failures carry
// their per-field details so the form can mark the offending inputs.
func failure(w http.ResponseWriter, err error) {
	var verr *report.ValidationError
	switch {
	case errors.As(err, &verr):
		jsonResponse(w, http.StatusUnprocessableEntity, map[string]any{
			"error":  verr.Error(),
			"fields": verr.Fields,
		})
	case errors.Is(err, workflow.ErrUnauthorized):
		jsonError(w, http.StatusForbidden, "admin only")
	case errors.Is(err, gateway.ErrNotFound):
		jsonError(w, http.StatusNotFound, "not found")
	case errors.Is(err, workflow.ErrIneligibleClaim), errors.Is(err, gateway.ErrPreconditionFailed):
		jsonError(w, http.StatusConflict, err.Error())
	case errors.Is(err, gateway.ErrConflict):
		jsonError(w, http.StatusConflict, "already exists")
	case errors.Is(err, gateway.ErrUploadFailed):
		jsonError(w, http.StatusBadRequest, "image could not be processed")
	case errors.Is(err, gateway.ErrBadCursor):
		jsonError(w, http.StatusBadRequest, "invalid page cursor")
	default:
		slog.Error("request failed", "error", err)
		jsonError(w, http.StatusInternalServerError, "internal error")
	}
}
