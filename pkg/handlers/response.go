// Package handlers implements the HTTP API of zelta-engine: project CRUD,
// document submission, the four stage-generation endpoints (including the
// streaming variant of stage 1), per-idea image regeneration, and the
// health endpoints. Handlers stay thin: they parse and validate the request
// shape, delegate to the service layer, and translate service errors into
// HTTP status codes.
package handlers

import (
	"encoding/json"
	"errors"
	"net/http"

	"go.uber.org/zap"

	"github.com/zelta-inc/zelta-engine/pkg/apperrors"
)

// ApiResponse provides a consistent response structure for every JSON
// endpoint: data rides in Data on success, Error carries a human-readable
// message on failure.
type ApiResponse struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

// WriteJSON writes a JSON response and returns any encoding error.
func WriteJSON(w http.ResponseWriter, statusCode int, data interface{}) error {
	w.Header().Set("Content-Type", "application/json")
	if statusCode != http.StatusOK {
		w.WriteHeader(statusCode)
	}
	return json.NewEncoder(w).Encode(data)
}

// WriteData writes a successful ApiResponse wrapping data.
func WriteData(w http.ResponseWriter, statusCode int, data interface{}, logger *zap.Logger) {
	if err := WriteJSON(w, statusCode, ApiResponse{Success: true, Data: data}); err != nil {
		logger.Error("Failed to write response", zap.Error(err))
	}
}

// WriteError writes a failed ApiResponse with the given message.
func WriteError(w http.ResponseWriter, statusCode int, message string, logger *zap.Logger) {
	if err := WriteJSON(w, statusCode, ApiResponse{Success: false, Error: message}); err != nil {
		logger.Error("Failed to write error response", zap.Error(err))
	}
}

// WriteServiceError translates a service-layer error into an HTTP response.
// Known error classes map to specific status codes; anything unrecognized
// becomes a 500 with a generic message so internals never leak to clients.
func WriteServiceError(w http.ResponseWriter, err error, logger *zap.Logger) {
	status, message := statusForError(err)
	if status == http.StatusInternalServerError {
		logger.Error("Unhandled service error", zap.Error(err))
	}
	WriteError(w, status, message, logger)
}

// statusForError maps service error classes to HTTP status codes.
// Backend outages always surface the same generic message; the retry
// chain has already logged the provider-specific details.
func statusForError(err error) (int, string) {
	switch {
	case errors.Is(err, apperrors.ErrValidation):
		return http.StatusBadRequest, err.Error()
	case errors.Is(err, apperrors.ErrStageNotReady):
		return http.StatusConflict, err.Error()
	case errors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound, err.Error()
	case errors.Is(err, apperrors.ErrBackendUnavailable):
		return http.StatusServiceUnavailable, "The generation service is temporarily unavailable. Please try again."
	case errors.Is(err, apperrors.ErrMalformedOutput):
		return http.StatusBadGateway, err.Error()
	default:
		return http.StatusInternalServerError, "An unexpected error occurred"
	}
}
