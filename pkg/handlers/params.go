package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/zelta-inc/zelta-engine/pkg/auth"
	"github.com/zelta-inc/zelta-engine/pkg/models"
)

// ParseProjectID extracts and validates the project ID from the request path.
// Returns the parsed UUID and true on success, or uuid.Nil and false after
// writing an error response.
// Expects path parameter: pid
func ParseProjectID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "pid", "Invalid project ID format", logger)
}

// ParseIdeaID extracts and validates the product idea ID from the request path.
// Returns the parsed UUID and true on success, or uuid.Nil and false after
// writing an error response.
// Expects path parameter: iid
func ParseIdeaID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (uuid.UUID, bool) {
	return parseUUID(w, r, "iid", "Invalid idea ID format", logger)
}

// ParseStageNumber extracts and validates the stage number from the request
// path. Returns the number and true on success, or 0 and false after writing
// an error response.
// Expects path parameter: n
func ParseStageNumber(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (int, bool) {
	raw := r.PathValue("n")
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 || n > models.StageCount {
		message := fmt.Sprintf("Invalid stage number %q: must be between 1 and %d", raw, models.StageCount)
		WriteError(w, http.StatusBadRequest, message, logger)
		return 0, false
	}
	return n, true
}

// OwnerID extracts the authenticated user's ID from the request context.
// Returns the ID and true on success, or empty string and false after
// writing a 401 response. Auth middleware populates the context, so a
// missing ID means the route was wired without it.
func OwnerID(w http.ResponseWriter, r *http.Request, logger *zap.Logger) (string, bool) {
	ownerID := auth.OwnerIDFromContext(r.Context())
	if ownerID == "" {
		WriteError(w, http.StatusUnauthorized, "Authentication required", logger)
		return "", false
	}
	return ownerID, true
}

// parseUUID is the internal helper that does the actual parsing work.
func parseUUID(w http.ResponseWriter, r *http.Request, pathParam, errorMessage string, logger *zap.Logger) (uuid.UUID, bool) {
	id, err := uuid.Parse(r.PathValue(pathParam))
	if err != nil {
		WriteError(w, http.StatusBadRequest, errorMessage, logger)
		return uuid.Nil, false
	}
	return id, true
}
