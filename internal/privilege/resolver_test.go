package privilege

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/parleyhq/parley/internal/shared"
)

func TestHasPrivilegeMatchesPrivilegesOf(t *testing.T) {
	resolver := NewResolver()
	roles := []string{RoleAdmin, RoleLecturer, RoleViewer, "ghost"}

	for _, role := range roles {
		granted := make(map[Privilege]struct{})
		for _, p := range resolver.PrivilegesOf(role) {
			granted[p] = struct{}{}
		}
		for _, p := range ListSystemPrivileges() {
			_, inSet := granted[p]
			assert.Equal(t, inSet, resolver.HasPrivilege(role, p),
				"role %s privilege %s", role, p)
		}
	}
}

func TestUnknownRoleResolvesToEmptySet(t *testing.T) {
	resolver := NewResolver()

	granted := resolver.PrivilegesOf("intruder")
	assert.Empty(t, granted)
	assert.False(t, resolver.HasPrivilege("intruder", RoomRead))
}

func TestPrivilegesOfIsSortedAndCaseInsensitive(t *testing.T) {
	resolver := NewResolver()

	viewer := resolver.PrivilegesOf("  Viewer ")
	require.Equal(t, []Privilege{RoomRead}, viewer)

	admin := resolver.PrivilegesOf(RoleAdmin)
	for i := 1; i < len(admin); i++ {
		prev, cur := admin[i-1], admin[i]
		if prev.Resource == cur.Resource {
			assert.Less(t, prev.Action, cur.Action)
		} else {
			assert.Less(t, prev.Resource, cur.Resource)
		}
	}
}

func TestRequire(t *testing.T) {
	resolver := NewResolver()

	require.NoError(t, resolver.Require(RoleViewer, RoomRead))

	err := resolver.Require(RoleViewer, RoomDelete)
	require.Error(t, err)
	assert.True(t, errors.Is(err, shared.ErrForbidden))
}
