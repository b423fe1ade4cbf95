package chi

import (
	"context"
	"net/http"
	"strings"
)

// UserHeader carries the acting user id set by the upstream auth gateway.
const UserHeader = "X-User-ID"

// exemptPaths are routes that bypass authentication (health, metrics).
var exemptPaths = map[string]struct{}{
	"/health":  {},
	"/metrics": {},
}

type userKey struct{}

func keySet(keys []string) map[string]struct{} {
	set := make(map[string]struct{}, len(keys))
	for _, k := range keys {
		if k != "" {
			set[k] = struct{}{}
		}
	}
	return set
}

func bearerToken(r *http.Request) (string, string) {
	auth := r.Header.Get("Authorization")
	if auth == "" {
		return "", "missing authorization header"
	}
	const bearerPrefix = "Bearer "
	if !strings.HasPrefix(auth, bearerPrefix) {
		return "", "authorization header must use Bearer scheme"
	}
	return auth[len(bearerPrefix):], ""
}

// BearerAuthMiddleware returns a middleware that validates Bearer tokens.
// If apiKeys is empty, authentication is disabled (pass-through).
func BearerAuthMiddleware(apiKeys []string) func(http.Handler) http.Handler {
	validKeys := keySet(apiKeys)

	return func(next http.Handler) http.Handler {
		// Auth disabled, pass everything through
		if len(validKeys) == 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if _, ok := exemptPaths[r.URL.Path]; ok {
				next.ServeHTTP(w, r)
				return
			}

			token, problem := bearerToken(r)
			if problem != "" {
				writeError(w, http.StatusUnauthorized, CodeUnauthenticated, problem)
				return
			}
			if _, ok := validKeys[token]; !ok {
				writeError(w, http.StatusUnauthorized, CodeUnauthenticated, "invalid api key")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// AdminOnly restricts a route group to admin keys. Authentication itself is
// BearerAuthMiddleware's job; a valid non-admin key gets 403 here.
// If adminKeys is empty, the check is disabled.
func AdminOnly(adminKeys []string) func(http.Handler) http.Handler {
	admins := keySet(adminKeys)

	return func(next http.Handler) http.Handler {
		if len(admins) == 0 {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, problem := bearerToken(r)
			if problem != "" {
				writeError(w, http.StatusUnauthorized, CodeUnauthenticated, problem)
				return
			}
			if _, ok := admins[token]; !ok {
				writeError(w, http.StatusForbidden, CodeForbidden, "admin api key required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireUser rejects requests without an acting user and stores the id in the context.
func RequireUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimSpace(r.Header.Get(UserHeader))
		if id == "" {
			writeError(w, http.StatusUnauthorized, CodeUnauthenticated, "missing "+UserHeader+" header")
			return
		}
		next.ServeHTTP(w, r.WithContext(ContextWithUser(r.Context(), id)))
	})
}

// ContextWithUser attaches the acting user id.
func ContextWithUser(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, userKey{}, id)
}

// UserFromContext returns the acting user id, or "" when none was set.
func UserFromContext(ctx context.Context) string {
	id, _ := ctx.Value(userKey{}).(string)
	return id
}

// optionalUser reads the acting user without requiring it.
func optionalUser(r *http.Request) string {
	if id := UserFromContext(r.Context()); id != "" {
		return id
	}
	return strings.TrimSpace(r.Header.Get(UserHeader))
}
