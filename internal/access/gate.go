package access

import (
	"context"
	"errors"
	"fmt"
	"slices"

	"github.com/Brownbull/gabeda-backend/internal/apiserver/database"
	"github.com/Brownbull/gabeda-backend/internal/common/cnst"

	"go.uber.org/zap"
	"gorm.io/gorm"
)

// ErrAccessDenied is returned when the viewer is not entitled to the requested data
var ErrAccessDenied = cnst.ErrAccessDenied

// Viewer is the identity behind a read request
type Viewer struct {
	UserID   uint
	Username string
	Elevated bool
}

// MembershipProvider resolves the roles a user holds on tenants
type MembershipProvider interface {
	// RolesFor returns the roles of userID on tenantID, or nil when not a member
	RolesFor(ctx context.Context, userID, tenantID uint) ([]database.Role, error)
	// Memberships returns the roles of userID on every tenant the user belongs to
	Memberships(ctx context.Context, userID uint) (map[uint][]database.Role, error)
	// Standing reports whether userID is currently elevated and active
	Standing(ctx context.Context, userID uint) (elevated, active bool, err error)
}

// DBMemberships reads memberships from the database
type DBMemberships struct {
	db database.Database
}

func NewDBMemberships(db database.Database) *DBMemberships {
	return &DBMemberships{db: db}
}

func (m *DBMemberships) RolesFor(ctx context.Context, userID, tenantID uint) ([]database.Role, error) {
	ms, err := m.db.GetMembership(ctx, userID, tenantID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return []database.Role{ms.Role}, nil
}

func (m *DBMemberships) Memberships(ctx context.Context, userID uint) (map[uint][]database.Role, error) {
	ms, err := m.db.ListMemberships(ctx, userID)
	if err != nil {
		return nil, err
	}
	out := make(map[uint][]database.Role, len(ms))
	for _, mm := range ms {
		out[mm.TenantID] = append(out[mm.TenantID], mm.Role)
	}
	return out, nil
}

// Standing reads the stored user so a demoted or deactivated user loses
// access before their token expires. A missing user is inactive.
func (m *DBMemberships) Standing(ctx context.Context, userID uint) (bool, bool, error) {
	u, err := m.db.GetUserByID(ctx, userID)
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return false, false, nil
	}
	if err != nil {
		return false, false, err
	}
	return u.IsElevated, u.IsActive, nil
}

// Gate turns a viewer into the database scope every read path runs under
type Gate struct {
	members MembershipProvider
	logger  *zap.Logger
}

func NewGate(members MembershipProvider, logger *zap.Logger) *Gate {
	return &Gate{members: members, logger: logger.Named("access.gate")}
}

// Scope resolves the viewer's scope. tenantID 0 means every tenant the viewer
// may see; a specific tenant the viewer is not a member of is denied.
func (g *Gate) Scope(ctx context.Context, viewer Viewer, tenantID uint) (database.Scope, error) {
	viewer, err := g.current(ctx, viewer)
	if err != nil {
		return database.Scope{}, err
	}
	if viewer.Elevated {
		s := database.SystemScope()
		if tenantID != 0 {
			s = s.ForTenant(tenantID)
		}
		return s, nil
	}

	if tenantID != 0 {
		roles, err := g.members.RolesFor(ctx, viewer.UserID, tenantID)
		if err != nil {
			return database.Scope{}, fmt.Errorf("resolve membership: %w", err)
		}
		if len(roles) == 0 {
			g.logger.Debug("viewer is not a member of tenant",
				zap.Uint("user_id", viewer.UserID),
				zap.Uint("tenant_id", tenantID))
			return database.Scope{}, fmt.Errorf("user %d on tenant %d: %w", viewer.UserID, tenantID, ErrAccessDenied)
		}
		return database.MemberScope(map[uint][]database.Role{tenantID: roles}).ForTenant(tenantID), nil
	}

	all, err := g.members.Memberships(ctx, viewer.UserID)
	if err != nil {
		return database.Scope{}, fmt.Errorf("resolve memberships: %w", err)
	}
	return database.MemberScope(all), nil
}

// RequireRole denies a non elevated viewer holding none of roles on tenantID
func (g *Gate) RequireRole(ctx context.Context, viewer Viewer, tenantID uint, roles ...database.Role) error {
	viewer, err := g.current(ctx, viewer)
	if err != nil {
		return err
	}
	if viewer.Elevated {
		return nil
	}
	held, err := g.members.RolesFor(ctx, viewer.UserID, tenantID)
	if err != nil {
		return fmt.Errorf("resolve membership: %w", err)
	}
	for _, r := range held {
		if slices.Contains(roles, r) {
			return nil
		}
	}
	return fmt.Errorf("user %d on tenant %d: %w", viewer.UserID, tenantID, ErrAccessDenied)
}

// current replaces the elevation carried by the token with the stored one and
// denies inactive users
func (g *Gate) current(ctx context.Context, viewer Viewer) (Viewer, error) {
	elevated, active, err := g.members.Standing(ctx, viewer.UserID)
	if err != nil {
		return Viewer{}, fmt.Errorf("resolve user: %w", err)
	}
	if !active {
		g.logger.Debug("viewer is not active", zap.Uint("user_id", viewer.UserID))
		return Viewer{}, fmt.Errorf("user %d is not active: %w", viewer.UserID, ErrAccessDenied)
	}
	if viewer.Elevated && !elevated {
		g.logger.Info("elevation revoked since token was issued", zap.Uint("user_id", viewer.UserID))
	}
	viewer.Elevated = elevated
	return viewer, nil
}
