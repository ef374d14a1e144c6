// Package authz is the request-time enforcement point. Every protected
// action passes through the Gate, which resolves the caller's session,
// derives the role, and checks the required privilege before control
// reaches the action body.
package authz

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/parleyhq/parley/internal/privilege"
	"github.com/parleyhq/parley/internal/session"
	"github.com/parleyhq/parley/internal/shared"
)

// RoleLoader resolves the role identifier of a user. Implemented by the
// account repository; stubbed in tests.
type RoleLoader interface {
	LoadRole(ctx context.Context, userID int64) (string, error)
}

// Gate performs the session → role → privilege sequence for one request.
// It holds no per-request state, so a single Gate serves all callers.
type Gate struct {
	store    *session.Store
	roles    RoleLoader
	resolver *privilege.Resolver
	logger   *slog.Logger
}

// NewGate constructs a Gate.
func NewGate(store *session.Store, roles RoleLoader, resolver *privilege.Resolver, logger *slog.Logger) *Gate {
	return &Gate{store: store, roles: roles, resolver: resolver, logger: logger}
}

// Authorize checks that the token identifies a live authorized session
// whose role holds the required privilege, and slides the session's idle
// window on success. The returned record is the explicit session value
// handed to the action.
//
// Expected failures come back as ErrUnauthenticated (no, unknown or
// expired session; unbound user) or ErrForbidden (insufficient
// privilege). Anything else is a backing-store failure the caller should
// surface as a server error.
func (g *Gate) Authorize(ctx context.Context, token string, required privilege.Privilege) (*session.Record, error) {
	if token == "" {
		return nil, shared.ErrUnauthenticated
	}

	rec, err := g.store.Get(ctx, token)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.ErrUnauthenticated
		}
		return nil, fmt.Errorf("authz: load session: %w", err)
	}
	if !rec.Authorized() {
		return nil, shared.ErrUnauthenticated
	}

	role, err := g.roles.LoadRole(ctx, rec.UserID)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			// The account vanished underneath a live session.
			return nil, shared.ErrUnauthenticated
		}
		return nil, fmt.Errorf("authz: load role for user %d: %w", rec.UserID, err)
	}

	if err := g.resolver.Require(role, required); err != nil {
		if g.logger != nil {
			g.logger.Warn("authorization denied",
				slog.String("session_id", rec.ID),
				slog.String("role", role))
		}
		return nil, shared.ErrForbidden
	}

	if err := g.store.Touch(ctx, token); err != nil {
		return nil, fmt.Errorf("authz: touch session: %w", err)
	}
	return rec, nil
}

// Resolve performs only the session half of Authorize: the token must
// identify a live authorized session, but no privilege is checked. Used
// by actions any signed-in user may perform, such as changing their own
// password. The idle window slides on success.
func (g *Gate) Resolve(ctx context.Context, token string) (*session.Record, error) {
	if token == "" {
		return nil, shared.ErrUnauthenticated
	}
	rec, err := g.store.Get(ctx, token)
	if err != nil {
		if errors.Is(err, shared.ErrNotFound) {
			return nil, shared.ErrUnauthenticated
		}
		return nil, fmt.Errorf("authz: load session: %w", err)
	}
	if !rec.Authorized() {
		return nil, shared.ErrUnauthenticated
	}
	if err := g.store.Touch(ctx, token); err != nil {
		return nil, fmt.Errorf("authz: touch session: %w", err)
	}
	return rec, nil
}
