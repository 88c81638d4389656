package database

import (
	"sort"
	"strings"

	"gorm.io/gorm"
)

// Scope is the set of rows a query may return. It is applied inside every
// read method, so a caller cannot forget it. The zero value matches nothing.
type Scope struct {
	elevated bool
	tenant   uint
	roles    map[uint][]Role
}

// SystemScope sees every tenant and every result
func SystemScope() Scope {
	return Scope{elevated: true}
}

// MemberScope sees the given tenants, and on each tenant only the results
// visible to the listed roles
func MemberScope(roles map[uint][]Role) Scope {
	cp := make(map[uint][]Role, len(roles))
	for tenantID, rs := range roles {
		cp[tenantID] = append([]Role(nil), rs...)
	}
	return Scope{roles: cp}
}

// ForTenant narrows the scope to one tenant
func (s Scope) ForTenant(tenantID uint) Scope {
	s.tenant = tenantID
	return s
}

func (s Scope) Elevated() bool { return s.elevated }

// Tenant returns the tenant the scope is narrowed to, or 0
func (s Scope) Tenant() uint { return s.tenant }

// Allows reports whether rows of tenantID fall inside the scope
func (s Scope) Allows(tenantID uint) bool {
	if s.tenant != 0 && s.tenant != tenantID {
		return false
	}
	if s.elevated {
		return true
	}
	_, ok := s.roles[tenantID]
	return ok
}

// RolesFor returns the viewer's roles on tenantID
func (s Scope) RolesFor(tenantID uint) []Role {
	return s.roles[tenantID]
}

// Roles returns the union of the viewer's roles across the scoped tenants
func (s Scope) Roles() []Role {
	seen := make(map[Role]bool)
	var out []Role
	for _, id := range s.tenantIDs() {
		for _, r := range s.roles[id] {
			if !seen[r] {
				seen[r] = true
				out = append(out, r)
			}
		}
	}
	return out
}

func (s Scope) tenantIDs() []uint {
	ids := make([]uint, 0, len(s.roles))
	for id := range s.roles {
		if s.tenant != 0 && id != s.tenant {
			continue
		}
		ids = append(ids, id)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })
	return ids
}

// applyTenant restricts rows by their tenant column
func (s Scope) applyTenant(db *gorm.DB, column string) *gorm.DB {
	if s.elevated {
		if s.tenant != 0 {
			return db.Where(column+" = ?", s.tenant)
		}
		return db
	}
	ids := s.tenantIDs()
	if len(ids) == 0 {
		return db.Where("1 = 0")
	}
	return db.Where(column+" IN ?", ids)
}

// applyResults restricts results by tenant and by role visibility
func (s Scope) applyResults(db *gorm.DB) *gorm.DB {
	if s.elevated {
		return s.applyTenant(db, "analytics_results.tenant_id")
	}
	ids := s.tenantIDs()
	clauses := make([]string, 0, len(ids))
	args := make([]any, 0, 2*len(ids))
	for _, id := range ids {
		roles := s.roles[id]
		if len(roles) == 0 {
			continue
		}
		names := make([]string, len(roles))
		for i, r := range roles {
			names[i] = string(r)
		}
		clauses = append(clauses, "(analytics_results.tenant_id = ? AND EXISTS ("+
			"SELECT 1 FROM analytics_result_roles rr "+
			"WHERE rr.result_id = analytics_results.id AND rr.role IN ?))")
		args = append(args, id, names)
	}
	if len(clauses) == 0 {
		return db.Where("1 = 0")
	}
	return db.Where("("+strings.Join(clauses, " OR ")+")", args...)
}
