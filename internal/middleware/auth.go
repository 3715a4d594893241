// Package middleware provides the gateway's HTTP middleware.
package middleware

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/soni0021/apiservices-backend/internal/app/domain/user"
	"github.com/soni0021/apiservices-backend/internal/app/services/auth"
	"github.com/soni0021/apiservices-backend/internal/errors"
	"github.com/soni0021/apiservices-backend/pkg/logger"
)

type contextKey string

const (
	userIDKey contextKey = "user_id"
	roleKey   contextKey = "role"
)

// UserID returns the authenticated management user's ID, if any.
func UserID(ctx context.Context) string {
	v, _ := ctx.Value(userIDKey).(string)
	return v
}

// Role returns the authenticated management user's role, if any.
func Role(ctx context.Context) string {
	v, _ := ctx.Value(roleKey).(string)
	return v
}

// AdminAuth validates Bearer tokens on the management API.
type AdminAuth struct {
	auth *auth.Service
	log  *logger.Logger
}

// NewAdminAuth creates the admin token middleware.
func NewAdminAuth(a *auth.Service, log *logger.Logger) *AdminAuth {
	if log == nil {
		log = logger.NewDefault("admin-auth")
	}
	return &AdminAuth{auth: a, log: log}
}

// Handler rejects requests without a valid token.
func (m *AdminAuth) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		if header == "" {
			writeError(w, errors.Unauthenticated("missing Authorization header"))
			return
		}
		parts := strings.SplitN(header, " ", 2)
		if len(parts) != 2 || parts[0] != "Bearer" {
			writeError(w, errors.Unauthenticated("invalid Authorization header format"))
			return
		}

		claims, err := m.auth.Validate(parts[1])
		if err != nil {
			m.log.WithError(err).Debug("token validation failed")
			writeError(w, err)
			return
		}

		ctx := context.WithValue(r.Context(), userIDKey, claims.UserID)
		ctx = context.WithValue(ctx, roleKey, claims.Role)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequireAdmin rejects non-admin users. Must run after Handler.
func (m *AdminAuth) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if Role(r.Context()) != user.RoleAdmin {
			writeError(w, errors.Forbidden("admin role required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeError(w http.ResponseWriter, err error) {
	se := errors.GetServiceError(err)
	if se == nil {
		se = errors.Internal("internal error", err)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(se.HTTPStatus)
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"error": map[string]interface{}{
			"code":    se.Code,
			"message": se.Message,
		},
	})
}
