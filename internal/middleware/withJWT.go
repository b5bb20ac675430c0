// Package middleware provides the HTTP middleware of the link service:
// owner authentication, subnet guarding, request logging and metrics.
package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/atinyakov/linkgate/internal/app/service"
)

// ContextKey is a custom type used for keys in the context.
type ContextKey string

// UserIDKey holds the authenticated owner ID.
const UserIDKey ContextKey = "userID"

// InjectUserID adds the user ID to the request context.
func InjectUserID(req *http.Request, userID string) *http.Request {
	ctx := context.WithValue(req.Context(), UserIDKey, userID)
	return req.WithContext(ctx)
}

func bearerToken(r *http.Request) string {
	h := r.Header.Get("Authorization")
	if token, ok := strings.CutPrefix(h, "Bearer "); ok {
		return strings.TrimSpace(token)
	}
	return ""
}

// WithJWT authenticates owners. The token is taken from the Authorization
// bearer header or from the "token" cookie. Requests without a valid token
// are rejected with 401.
func WithJWT(auth service.AuthIface) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			var (
				claims *service.Claims
				err    error
			)

			if token := bearerToken(r); token != "" {
				claims, err = auth.ParseRawJWT(token)
			} else if cookie, cErr := r.Cookie("token"); cErr == nil {
				claims, err = auth.ParseClaims(cookie)
			} else {
				err = service.ErrInvalidToken
			}

			if err != nil {
				w.Header().Set("WWW-Authenticate", `Bearer realm="linkgate"`)
				http.Error(w, http.StatusText(http.StatusUnauthorized), http.StatusUnauthorized)
				return
			}

			next.ServeHTTP(w, InjectUserID(r, claims.UserID))
		})
	}
}
