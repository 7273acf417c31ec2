package api

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"ecoindex/internal/core"
)

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]any{"error": message})
}

type validationBody struct {
	Error  string            `json:"error"`
	Fields []core.FieldError `json:"errors"`
}

// statusFor maps an error kind onto its HTTP status.
func statusFor(err error) int {
	var verr *core.ValidationError
	switch {
	case errors.As(err, &verr):
		return http.StatusUnprocessableEntity
	case errors.Is(err, core.ErrUnauthorized):
		return http.StatusUnauthorized
	case errors.Is(err, core.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, core.ErrConflict):
		return http.StatusConflict
	case errors.Is(err, core.ErrStoreUnavailable):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// writeErr renders err with the status its kind maps to. Unclassified errors
// are logged and hidden from the caller.
func writeErr(w http.ResponseWriter, r *http.Request, logger *slog.Logger, err error) {
	status := statusFor(err)
	switch status {
	case http.StatusUnprocessableEntity:
		var verr *core.ValidationError
		errors.As(err, &verr)
		writeJSON(w, status, validationBody{Error: verr.Error(), Fields: verr.Fields})
		return
	case http.StatusUnauthorized:
		w.Header().Set("WWW-Authenticate", "Bearer")
	case http.StatusServiceUnavailable:
		logger.ErrorContext(r.Context(), "store unavailable", "request_id", requestID(r.Context()), "err", err)
		writeError(w, status, "service temporarily unavailable")
		return
	case http.StatusInternalServerError:
		logger.ErrorContext(r.Context(), "request failed", "request_id", requestID(r.Context()), "err", err)
		writeError(w, status, "internal server error")
		return
	}
	writeError(w, status, err.Error())
}
