package authz

import (
	"errors"
	"log/slog"
	"net"
	"net/http"

	"github.com/parleyhq/parley/internal/observability"
	"github.com/parleyhq/parley/internal/platform/httpx"
	"github.com/parleyhq/parley/internal/privilege"
	"github.com/parleyhq/parley/internal/session"
	"github.com/parleyhq/parley/internal/shared"
)

// TokenHeader carries the session token when no cookie is present, for
// API clients that manage the token themselves.
const TokenHeader = "X-Session-Token"

// Middleware adapts the Gate to chi handler chains. Token extraction from
// the transport happens here; the Gate itself only sees extracted tokens.
type Middleware struct {
	Gate       *Gate
	CookieName string
	Logger     *slog.Logger
	Metrics    *observability.Metrics

	// BindClient rejects reuse of a session id from a different IP or
	// user agent than the one it was created with. Optional hardening,
	// off by default.
	BindClient bool
}

// Require guards a route subtree with a single privilege. On success the
// resolved session record is placed in the request context for the
// handler; on failure the request is rejected with a generic message that
// leaks nothing about the privilege catalog.
func (m Middleware) Require(p privilege.Privilege) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec, err := m.Gate.Authorize(r.Context(), m.extractToken(r), p)
			if err != nil {
				m.reject(w, r, err)
				return
			}
			if m.BindClient && !m.clientMatches(rec, r) {
				m.reject(w, r, shared.ErrUnauthenticated)
				return
			}
			m.Metrics.ObserveAuthzDecision("allowed")
			ctx := session.ContextWithRecord(r.Context(), rec)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// RequireSession guards a route subtree with authentication only: any
// live authorized session passes, no privilege consulted.
func (m Middleware) RequireSession() func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			rec, err := m.Gate.Resolve(r.Context(), m.extractToken(r))
			if err != nil {
				m.reject(w, r, err)
				return
			}
			if m.BindClient && !m.clientMatches(rec, r) {
				m.reject(w, r, shared.ErrUnauthenticated)
				return
			}
			ctx := session.ContextWithRecord(r.Context(), rec)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func (m Middleware) extractToken(r *http.Request) string {
	if m.CookieName != "" {
		if cookie, err := r.Cookie(m.CookieName); err == nil && cookie.Value != "" {
			return cookie.Value
		}
	}
	return r.Header.Get(TokenHeader)
}

func (m Middleware) clientMatches(rec *session.Record, r *http.Request) bool {
	if rec.Agent != "" && rec.Agent != r.UserAgent() {
		return false
	}
	if rec.IP != "" && rec.IP != ClientIP(r) {
		return false
	}
	return true
}

// ClientIP returns the caller's address without the ephemeral port, so a
// stored session IP compares stably across connections.
func ClientIP(r *http.Request) string {
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}

func (m Middleware) reject(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, shared.ErrUnauthenticated):
		m.Metrics.ObserveAuthzDecision("unauthenticated")
		httpx.Problem(w, http.StatusUnauthorized, "Unauthenticated", "please log in again")
	case errors.Is(err, shared.ErrForbidden):
		m.Metrics.ObserveAuthzDecision("forbidden")
		httpx.Problem(w, http.StatusForbidden, "Forbidden", "")
	default:
		m.Metrics.ObserveAuthzDecision("error")
		if m.Logger != nil {
			m.Logger.Error("authorization gate failure",
				slog.String("path", r.URL.Path),
				slog.Any("error", err))
		}
		httpx.Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
