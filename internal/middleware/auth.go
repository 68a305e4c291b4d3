// Package middleware provides HTTP middleware for the catalog service.
package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/quickshop/catalog/internal/app/services/users"
	"github.com/quickshop/catalog/pkg/logger"
)

// AuthMiddleware provides JWT authentication.
type AuthMiddleware struct {
	users     *users.Service
	logger    *logger.Logger
	skipPaths map[string]bool
}

// NewAuthMiddleware creates a new authentication middleware. Requests to
// skipPaths pass through unauthenticated.
func NewAuthMiddleware(userService *users.Service, log *logger.Logger, skipPaths []string) *AuthMiddleware {
	if log == nil {
		log = logger.NewDefault("auth")
	}
	skip := make(map[string]bool)
	for _, path := range skipPaths {
		skip[path] = true
	}
	return &AuthMiddleware{users: userService, logger: log, skipPaths: skip}
}

// Handler returns the middleware handler.
func (m *AuthMiddleware) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if m.skipPaths[r.URL.Path] {
			next.ServeHTTP(w, r)
			return
		}

		token := extractToken(r)
		if token == "" {
			jsonError(w, "missing authorization", http.StatusUnauthorized)
			return
		}

		claims, err := m.users.ParseToken(token)
		if err != nil {
			m.logger.WithContext(r.Context()).WithError(err).Warn("token validation failed")
			jsonError(w, "invalid token", http.StatusUnauthorized)
			return
		}

		ctx := context.WithValue(r.Context(), logger.UserIDKey, claims.UserID)
		if claims.Role != "" {
			ctx = context.WithValue(ctx, logger.RoleKey, claims.Role)
		}

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// extractToken pulls the bearer token from the Authorization header, with a
// query parameter fallback for WebSocket clients that cannot set headers.
func extractToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader != "" {
		parts := strings.SplitN(authHeader, " ", 2)
		if len(parts) == 2 && parts[0] == "Bearer" {
			return parts[1]
		}
		return ""
	}
	return r.URL.Query().Get("access_token")
}

// GetUserID returns the authenticated user ID from the context.
func GetUserID(ctx context.Context) string {
	if id, ok := ctx.Value(logger.UserIDKey).(string); ok {
		return id
	}
	return ""
}

// GetRole returns the authenticated user's role from the context.
func GetRole(ctx context.Context) string {
	if role, ok := ctx.Value(logger.RoleKey).(string); ok {
		return role
	}
	return ""
}

func jsonError(w http.ResponseWriter, message string, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": message})
}
