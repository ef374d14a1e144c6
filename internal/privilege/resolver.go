package privilege

import (
	"fmt"
	"sort"
	"strings"

	"github.com/parleyhq/parley/internal/shared"
)

// Resolver answers role → privilege questions. The underlying sets are
// built once and never mutated, so concurrent reads need no locking.
type Resolver struct {
	grants map[string]map[Privilege]struct{}
}

// NewResolver builds a Resolver from the compiled-in catalog.
func NewResolver() *Resolver {
	return newResolverFrom(catalog)
}

func newResolverFrom(roles map[string][]Privilege) *Resolver {
	grants := make(map[string]map[Privilege]struct{}, len(roles))
	for role, granted := range roles {
		set := make(map[Privilege]struct{}, len(granted))
		for _, p := range granted {
			set[p] = struct{}{}
		}
		grants[normalizeRole(role)] = set
	}
	return &Resolver{grants: grants}
}

// PrivilegesOf returns the privilege set granted to a role, sorted by
// resource then action. An unknown role yields an empty set, never an
// error: absence of privilege is the safe failure mode.
func (r *Resolver) PrivilegesOf(role string) []Privilege {
	set, ok := r.grants[normalizeRole(role)]
	if !ok {
		return []Privilege{}
	}
	granted := make([]Privilege, 0, len(set))
	for p := range set {
		granted = append(granted, p)
	}
	sort.Slice(granted, func(i, j int) bool {
		if granted[i].Resource != granted[j].Resource {
			return granted[i].Resource < granted[j].Resource
		}
		return granted[i].Action < granted[j].Action
	})
	return granted
}

// HasPrivilege reports whether the role holds the privilege.
func (r *Resolver) HasPrivilege(role string, p Privilege) bool {
	set, ok := r.grants[normalizeRole(role)]
	if !ok {
		return false
	}
	_, ok = set[p]
	return ok
}

// Require fails with ErrForbidden when the role does not hold the
// privilege. The error never names the missing privilege so probing
// clients cannot enumerate the catalog.
func (r *Resolver) Require(role string, p Privilege) error {
	if !r.HasPrivilege(role, p) {
		return fmt.Errorf("privilege: role %q: %w", role, shared.ErrForbidden)
	}
	return nil
}

func normalizeRole(role string) string {
	return strings.ToLower(strings.TrimSpace(role))
}
