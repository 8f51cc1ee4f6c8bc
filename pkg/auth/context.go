package auth

import (
	"context"
	"fmt"
)

// OwnerIDFromContext extracts the owner ID from JWT claims in the context.
// Projects are scoped to the authenticated caller, and the token subject is
// the owner ID everywhere in the engine. Returns empty string if the request
// is not authenticated.
func OwnerIDFromContext(ctx context.Context) string {
	claims, ok := GetClaims(ctx)
	if !ok || claims == nil {
		return ""
	}
	return claims.Subject
}

// RequireOwnerID extracts the owner ID and fails if the context carries no
// authenticated caller. Use this on paths where anonymous access is a bug,
// such as MCP tool handlers behind the auth middleware.
func RequireOwnerID(ctx context.Context) (string, error) {
	ownerID := OwnerIDFromContext(ctx)
	if ownerID == "" {
		return "", fmt.Errorf("owner ID not found in context")
	}
	return ownerID, nil
}
