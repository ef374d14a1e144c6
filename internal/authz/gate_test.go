package authz_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parleyhq/parley/internal/authz"
	"github.com/parleyhq/parley/internal/privilege"
	"github.com/parleyhq/parley/internal/session"
	"github.com/parleyhq/parley/internal/shared"
	_ "github.com/parleyhq/parley/testing"
)

type stubRoleLoader struct {
	roles map[int64]string
	err   error
}

func (s *stubRoleLoader) LoadRole(ctx context.Context, userID int64) (string, error) {
	if s.err != nil {
		return "", s.err
	}
	role, ok := s.roles[userID]
	if !ok {
		return "", shared.ErrNotFound
	}
	return role, nil
}

func newGateFixture(t *testing.T, roles map[int64]string) (*authz.Gate, *session.Store) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })

	store := session.NewStore(client, time.Hour)
	gate := authz.NewGate(store, &stubRoleLoader{roles: roles}, privilege.NewResolver(), nil)
	return gate, store
}

func authorizedSession(t *testing.T, store *session.Store, userID int64) string {
	t.Helper()
	rec, err := store.Create(context.Background(), "198.51.100.4", "go-test")
	require.NoError(t, err)
	require.NoError(t, store.AuthorizeUser(context.Background(), rec.ID, userID, "en"))
	return rec.ID
}

func TestAuthorizeMissingToken(t *testing.T) {
	gate, _ := newGateFixture(t, nil)

	_, err := gate.Authorize(context.Background(), "", privilege.RoomRead)
	assert.True(t, errors.Is(err, shared.ErrUnauthenticated))
}

func TestAuthorizeUnknownToken(t *testing.T) {
	gate, _ := newGateFixture(t, nil)

	_, err := gate.Authorize(context.Background(), "deadbeef", privilege.RoomRead)
	assert.True(t, errors.Is(err, shared.ErrUnauthenticated))
}

func TestAuthorizeAnonymousSession(t *testing.T) {
	gate, store := newGateFixture(t, nil)

	rec, err := store.Create(context.Background(), "", "")
	require.NoError(t, err)

	_, err = gate.Authorize(context.Background(), rec.ID, privilege.RoomRead)
	assert.True(t, errors.Is(err, shared.ErrUnauthenticated))
}

func TestAuthorizeViewerReadAllowedDeleteForbidden(t *testing.T) {
	gate, store := newGateFixture(t, map[int64]string{7: privilege.RoleViewer})
	token := authorizedSession(t, store, 7)

	rec, err := gate.Authorize(context.Background(), token, privilege.RoomRead)
	require.NoError(t, err)
	assert.EqualValues(t, 7, rec.UserID)

	_, err = gate.Authorize(context.Background(), token, privilege.RoomDelete)
	assert.True(t, errors.Is(err, shared.ErrForbidden))
}

func TestAuthorizeVanishedAccount(t *testing.T) {
	gate, store := newGateFixture(t, map[int64]string{})
	token := authorizedSession(t, store, 9)

	_, err := gate.Authorize(context.Background(), token, privilege.RoomRead)
	assert.True(t, errors.Is(err, shared.ErrUnauthenticated))
}

func TestAuthorizeTouchesSession(t *testing.T) {
	gate, store := newGateFixture(t, map[int64]string{7: privilege.RoleViewer})
	token := authorizedSession(t, store, 7)

	before, err := store.Get(context.Background(), token)
	require.NoError(t, err)

	time.Sleep(5 * time.Millisecond)

	_, err = gate.Authorize(context.Background(), token, privilege.RoomRead)
	require.NoError(t, err)

	after, err := store.Get(context.Background(), token)
	require.NoError(t, err)
	assert.True(t, after.LastSeen.After(before.LastSeen), "last_seen must slide on success")
}

func TestResolveRequiresAuthorizedSession(t *testing.T) {
	gate, store := newGateFixture(t, map[int64]string{7: privilege.RoleViewer})

	anon, err := store.Create(context.Background(), "", "")
	require.NoError(t, err)
	_, err = gate.Resolve(context.Background(), anon.ID)
	assert.True(t, errors.Is(err, shared.ErrUnauthenticated))

	token := authorizedSession(t, store, 7)
	rec, err := gate.Resolve(context.Background(), token)
	require.NoError(t, err)
	assert.EqualValues(t, 7, rec.UserID)
}
