package web

import (
	"encoding/json"
	"errors"
	"net/http"

	"pos-backend/internal/core"

	"github.com/sirupsen/logrus"
)

type errorResponse struct {
	Error     string `json:"error"`
	Code      string `json:"code"`
	RequestID string `json:"request_id,omitempty"`
}

// writeError writes a structured JSON error response.
func writeError(w http.ResponseWriter, r *http.Request, message, code string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	resp := errorResponse{
		Error:     message,
		Code:      code,
		RequestID: requestIDFromContext(r.Context()),
	}
	_ = json.NewEncoder(w).Encode(resp)
}

// writeJSON writes a JSON response with status 200.
func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(v)
}

// respondError maps core error kinds to HTTP statuses. Storage failures are
// logged server-side and surfaced without internal detail.
func respondError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, core.ErrNotFound):
		writeError(w, r, err.Error(), "NOT_FOUND", http.StatusNotFound)
	case errors.Is(err, core.ErrInsufficientStock):
		writeError(w, r, err.Error(), "INSUFFICIENT_STOCK", http.StatusConflict)
	case errors.Is(err, core.ErrInvalidInput):
		writeError(w, r, err.Error(), "INVALID_INPUT", http.StatusBadRequest)
	case errors.Is(err, core.ErrStorage):
		logrus.WithFields(logrus.Fields{
			"error":      err.Error(),
			"request_id": requestIDFromContext(r.Context()),
		}).Error("storage failure")
		writeError(w, r, "storage failure, retry the request", "STORAGE_FAILURE", http.StatusInternalServerError)
	default:
		logrus.WithFields(logrus.Fields{
			"error":      err.Error(),
			"request_id": requestIDFromContext(r.Context()),
		}).Error("unhandled error")
		writeError(w, r, "internal server error", "INTERNAL_ERROR", http.StatusInternalServerError)
	}
}
