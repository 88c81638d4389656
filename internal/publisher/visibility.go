package publisher

import (
	"fmt"
	"slices"

	"github.com/Brownbull/gabeda-backend/internal/apiserver/database"

	"github.com/ifuryst/lol"
)

// Visibility maps each result kind to the roles allowed to see it
type Visibility map[database.ResultKind][]database.Role

// DefaultVisibility is the single declaration of who sees which result kind
func DefaultVisibility() Visibility {
	all := slices.Clone(database.AllRoles)
	restricted := []database.Role{database.RoleAdmin, database.RoleBusinessOwner, database.RoleOperationsManager}
	return Visibility{
		database.KindKPI:       all,
		database.KindPareto:    slices.Clone(all),
		database.KindPeakTimes: slices.Clone(all),
		database.KindAlert:     restricted,
		database.KindInventory: slices.Clone(restricted),
	}
}

// NewVisibility applies per-kind overrides on top of the defaults
func NewVisibility(overrides map[string][]string) (Visibility, error) {
	v := DefaultVisibility()
	for kind, names := range overrides {
		k := database.ResultKind(kind)
		if !k.Valid() {
			return nil, fmt.Errorf("unknown result kind %q", kind)
		}
		roles := make([]database.Role, 0, len(names))
		for _, name := range lol.UniqSlice(names) {
			r := database.Role(name)
			if !r.Valid() {
				return nil, fmt.Errorf("unknown role %q for result kind %s", name, kind)
			}
			roles = append(roles, r)
		}
		v[k] = roles
	}
	return v, nil
}

// Roles returns the roles allowed to see kind
func (v Visibility) Roles(kind database.ResultKind) []database.Role {
	return v[kind]
}

// Visible reports whether any of roles may see kind
func (v Visibility) Visible(kind database.ResultKind, roles []database.Role) bool {
	for _, r := range roles {
		if slices.Contains(v[kind], r) {
			return true
		}
	}
	return false
}

// KindsFor lists the kinds any of roles may see
func (v Visibility) KindsFor(roles []database.Role) []database.ResultKind {
	var kinds []database.ResultKind
	for _, k := range database.ResultKinds {
		if v.Visible(k, roles) {
			kinds = append(kinds, k)
		}
	}
	return kinds
}
