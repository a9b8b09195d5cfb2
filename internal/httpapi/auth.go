package httpapi

import (
	"context"
	"net/http"
	"strings"

	"github.com/MinWook6457/Re-cord/internal/session"
)

type claimsContextKey struct{}

// AuthMiddleware verifies the session token on every request except the
// public endpoints. A verified claim is placed in the request context;
// any verification failure ends the request with 401 before a handler
// or the store is reached.
func AuthMiddleware(sessions *session.Manager, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if isPublicEndpoint(r) {
			next.ServeHTTP(w, r)
			return
		}
		token := tokenFromRequest(r)
		claims, ok := sessions.Verify(token)
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized", "missing or invalid session")
			return
		}
		ctx := context.WithValue(r.Context(), claimsContextKey{}, claims)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func claimsFromContext(ctx context.Context) (*session.Claims, bool) {
	value := ctx.Value(claimsContextKey{})
	if value == nil {
		return nil, false
	}
	claims, ok := value.(*session.Claims)
	if !ok {
		return nil, false
	}
	return claims, true
}

// tokenFromRequest prefers the session cookie and falls back to a
// bearer Authorization header for non-browser clients.
func tokenFromRequest(r *http.Request) string {
	if cookie, err := r.Cookie(sessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	return bearerToken(r.Header.Get("Authorization"))
}

func bearerToken(header string) string {
	if header == "" {
		return ""
	}
	parts := strings.Fields(header)
	if len(parts) != 2 {
		return ""
	}
	if strings.ToLower(parts[0]) != "bearer" {
		return ""
	}
	return parts[1]
}

func isPublicEndpoint(r *http.Request) bool {
	switch r.URL.Path {
	case "/healthz", "/metrics":
		return true
	case "/api/auth/register", "/api/auth/login":
		return r.Method == http.MethodPost
	default:
		return r.Method == http.MethodOptions
	}
}
