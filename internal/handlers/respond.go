package handlers

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/motionlab/backend/internal/logging"
	"github.com/motionlab/backend/internal/validate"
)

// envelope is the uniform response body shared with the client.
type envelope struct {
	Success bool            `json:"success"`
	Data    any             `json:"data,omitempty"`
	Message string          `json:"message,omitempty"`
	Errors  validate.Errors `json:"errors,omitempty"`
}

func respondData(ctx context.Context, w http.ResponseWriter, status int, data any) {
	respondJSON(ctx, w, status, envelope{Success: true, Data: data})
}

func respondMessage(ctx context.Context, w http.ResponseWriter, status int, message string) {
	respondJSON(ctx, w, status, envelope{Success: status < http.StatusBadRequest, Message: message})
}

func respondInvalid(ctx context.Context, w http.ResponseWriter, errs validate.Errors) {
	respondJSON(ctx, w, http.StatusBadRequest, envelope{Message: "Validation failed", Errors: errs})
}

func respondJSON(ctx context.Context, w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(payload); err != nil {
		logging.FromContext(ctx).Error("encode response body", "status", status, "error", err)
		return
	}

	logger := logging.FromContext(ctx)
	switch {
	case status >= http.StatusInternalServerError:
		logger.Error("request failed", "status", status, "response", payload)
	case status >= http.StatusBadRequest:
		logger.Warn("request returned client error", "status", status, "response", payload)
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20))
	return dec.Decode(dst)
}

func methodNotAllowed(w http.ResponseWriter) {
	w.WriteHeader(http.StatusMethodNotAllowed)
}
