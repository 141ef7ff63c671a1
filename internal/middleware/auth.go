package middleware

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"hygiene-log-backend/internal/services"
)

type contextKey string

const identityKey contextKey = "identity"

// Identity resolves the request's identity from either a bearer token
// (authenticated user) or the X-Device-ID header (unauthenticated local
// scope). Requests carrying neither are rejected: every operation needs a
// scope to run under.
func Identity(userService *services.UserService) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity, err := identityFromRequest(r, userService)
			if err != nil {
				respondError(w, err.Error(), http.StatusUnauthorized)
				return
			}

			ctx := context.WithValue(r.Context(), identityKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireAuth rejects requests whose identity is not an authenticated user.
// It must run after Identity.
func RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !GetIdentity(r.Context()).Authenticated() {
			respondError(w, "Authentication required", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func identityFromRequest(r *http.Request, userService *services.UserService) (services.Identity, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || parts[0] != "Bearer" {
			return services.Identity{}, fmt.Errorf("invalid authorization header format")
		}
		userID, err := userService.ValidateJWT(parts[1])
		if err != nil {
			return services.Identity{}, fmt.Errorf("invalid token")
		}
		return services.Identity{UserID: userID}, nil
	}

	if deviceID := r.Header.Get("X-Device-ID"); deviceID != "" {
		return services.Identity{DeviceID: deviceID}, nil
	}

	return services.Identity{}, fmt.Errorf("authorization or X-Device-ID required")
}

// GetIdentity extracts the request identity from context.
func GetIdentity(ctx context.Context) services.Identity {
	identity, ok := ctx.Value(identityKey).(services.Identity)
	if !ok {
		return services.Identity{}
	}
	return identity
}

// respondError sends an error response
func respondError(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}

// ValidateWebSocketToken validates a JWT from a WebSocket query parameter.
func ValidateWebSocketToken(token string, userService *services.UserService) (string, error) {
	if token == "" {
		return "", fmt.Errorf("token required")
	}
	return userService.ValidateJWT(token)
}
