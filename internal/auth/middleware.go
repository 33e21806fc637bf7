package auth

import (
	"errors"
	"net/http"
	"strings"

	"github.com/noah-isme/bookstore/internal/common"
)

// Middleware wires authentication context into HTTP handlers.
type Middleware struct {
	Service *Service
}

// RequireAuth admits requests carrying a valid bearer token whose session is
// still open, and records the username on the request context.
func (m Middleware) RequireAuth(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := bearerToken(r)
		if token == "" {
			common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
			return
		}
		claims, err := m.Service.ParseAccessToken(token)
		if err != nil {
			var appErr *common.AppError
			if errors.As(err, &appErr) {
				common.JSONError(w, appErr.HTTPStatus, appErr.Code, appErr.Message, nil)
				return
			}
			common.JSONError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing or invalid token", nil)
			return
		}
		if !m.Service.sessions.Active(claims.Username) {
			common.JSONError(w, http.StatusUnauthorized, "NO_SESSION", "session is closed", nil)
			return
		}
		next.ServeHTTP(w, r.WithContext(common.WithUsername(r.Context(), claims.Username)))
	})
}

// RequireAdmin must run after RequireAuth.
func (m Middleware) RequireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		username, _ := common.Username(r.Context())
		sess, ok := m.Service.sessions.Get(username)
		if !ok || !sess.IsAdmin {
			common.WriteError(w, common.ErrForbidden)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func bearerToken(r *http.Request) string {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if len(header) > 7 && strings.EqualFold(header[:7], "bearer ") {
		return strings.TrimSpace(header[7:])
	}
	return ""
}
