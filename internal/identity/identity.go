// Package identity extracts caller identity from request headers.
package identity

import (
	"context"
	"net"
	"net/http"
	"regexp"
	"strings"
)

const (
	UserHeaderName    = "X-Lanne-User-ID"
	SessionHeaderName = "X-Lanne-Session-ID"
)

type contextKey int

const (
	userIDKey contextKey = iota
	sessionIDKey
)

var idPattern = regexp.MustCompile(`^[A-Za-z0-9._:-]{1,128}$`)

// UserIDFromContext extracts the user ID from the request context.
func UserIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(userIDKey).(string); ok {
		return v
	}
	return ""
}

// SessionIDFromContext extracts the session ID from the request context.
func SessionIDFromContext(ctx context.Context) string {
	if v, ok := ctx.Value(sessionIDKey).(string); ok {
		return v
	}
	return ""
}

// Sanitize returns id trimmed, or "" when it is not a usable identifier.
func Sanitize(id string) string {
	id = strings.TrimSpace(id)
	if !idPattern.MatchString(id) {
		return ""
	}
	return id
}

// Middleware stores the sanitized identity headers in the request context.
// Missing or malformed headers leave the corresponding value empty.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		if uid := Sanitize(r.Header.Get(UserHeaderName)); uid != "" {
			ctx = context.WithValue(ctx, userIDKey, uid)
		}
		if sid := Sanitize(r.Header.Get(SessionHeaderName)); sid != "" {
			ctx = context.WithValue(ctx, sessionIDKey, sid)
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// CallerKey identifies the caller for throttling: the user id when present,
// otherwise the client IP. Session ids are ignored so rotating them does not
// bypass limits.
func CallerKey(r *http.Request) string {
	if uid := UserIDFromContext(r.Context()); uid != "" {
		return "user:" + uid
	}
	return "ip:" + IPFromRequest(r)
}

// IPFromRequest returns a normalized remote IP for optional request tracing.
func IPFromRequest(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
