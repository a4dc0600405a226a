package auth

import (
	"context"
	"net/http"
	"strings"

	"finanzas/internal/core"
)

// CookieName carries the session token.
const CookieName = "auth_token"

type contextKey struct{}

// WithSession stores the resolved session in ctx.
func WithSession(ctx context.Context, s core.Session) context.Context {
	return context.WithValue(ctx, contextKey{}, s)
}

// SessionFromContext returns the session placed by Middleware.
func SessionFromContext(ctx context.Context) (core.Session, bool) {
	s, ok := ctx.Value(contextKey{}).(core.Session)
	return s, ok
}

// UserID returns the tenant of the request, or 0.
func UserID(ctx context.Context) int64 {
	s, _ := SessionFromContext(ctx)
	return s.UserID
}

// TokenFromRequest reads the session cookie, falling back to a bearer
// token.
func TokenFromRequest(r *http.Request) string {
	if c, err := r.Cookie(CookieName); err == nil && c.Value != "" {
		return c.Value
	}
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return ""
}

// Middleware rejects requests without a live session through onFail.
func (s *Service) Middleware(onFail func(http.ResponseWriter, *http.Request, error)) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			sess, err := s.Resolve(r.Context(), TokenFromRequest(r))
			if err != nil {
				onFail(w, r, err)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithSession(r.Context(), sess)))
		})
	}
}

// SetCookie writes the session cookie.
func SetCookie(w http.ResponseWriter, s core.Session, secure bool) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    s.Token,
		Path:     "/",
		Expires:  s.ExpiresAt,
		HttpOnly: true,
		Secure:   secure,
		SameSite: http.SameSiteLaxMode,
	})
}

// ClearCookie expires the session cookie.
func ClearCookie(w http.ResponseWriter) {
	http.SetCookie(w, &http.Cookie{
		Name:     CookieName,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
	})
}
