package api

import (
	"context"
	"net/http"
	"strings"

	"github.com/voodoo-o/toy-exchange/pkg/exchange/user"
)

type contextKey int

const userContextKey contextKey = iota

// callerFrom extracts the authenticated user placed by requireAuth.
func callerFrom(ctx context.Context) (user.User, bool) {
	u, ok := ctx.Value(userContextKey).(user.User)
	return u, ok
}

// requireAuth resolves "Authorization: TOKEN <api-key>" to a user and
// injects it into the request context. Missing or unknown keys get 401.
func (s *Server) requireAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		header := r.Header.Get("Authorization")
		scheme, key, found := strings.Cut(header, " ")
		if !found || scheme != "TOKEN" || key == "" {
			respondError(w, http.StatusUnauthorized, "unauthorized", "expected Authorization: TOKEN <api-key>")
			return
		}

		u, err := s.users.GetByKey(key)
		if err != nil {
			respondError(w, http.StatusUnauthorized, "unauthorized", "unknown api key")
			return
		}

		next(w, r.WithContext(context.WithValue(r.Context(), userContextKey, u)))
	}
}

// requireAdmin is requireAuth plus an ADMIN role check. Role capability is
// enforced here only; the matching core never sees credentials.
func (s *Server) requireAdmin(next http.HandlerFunc) http.HandlerFunc {
	return s.requireAuth(func(w http.ResponseWriter, r *http.Request) {
		u, _ := callerFrom(r.Context())
		if u.Role != user.RoleAdmin {
			respondError(w, http.StatusForbidden, "forbidden", "admin role required")
			return
		}
		next(w, r)
	})
}
