package publisher

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/Brownbull/gabeda-backend/internal/analytics"
	"github.com/Brownbull/gabeda-backend/internal/apiserver/database"
	"github.com/Brownbull/gabeda-backend/internal/common/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func newTestDB(t *testing.T) database.Database {
	t.Helper()
	db, err := database.NewSQLite(&config.DatabaseConfig{Type: "sqlite", DBName: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func fullReport() *analytics.Report {
	return &analytics.Report{
		Provider:  "local",
		KPI:       &analytics.KPI{TotalRevenue: 10, TotalTransactions: 1, AvgTransaction: 10},
		Pareto:    &analytics.Pareto{Mode: "tail"},
		Inventory: &analytics.Inventory{DeadStockDays: 30},
		Alerts:    &analytics.Alerts{},
		PeakTimes: &analytics.PeakTimes{},
	}
}

func TestDefaultVisibility(t *testing.T) {
	v := DefaultVisibility()
	assert.ElementsMatch(t, database.AllRoles, v.Roles(database.KindKPI))
	assert.ElementsMatch(t, database.AllRoles, v.Roles(database.KindPeakTimes))
	assert.NotContains(t, v.Roles(database.KindAlert), database.RoleAnalyst)
	assert.NotContains(t, v.Roles(database.KindInventory), database.RoleAnalyst)
	assert.Contains(t, v.Roles(database.KindInventory), database.RoleOperationsManager)

	assert.True(t, v.Visible(database.KindAlert, []database.Role{database.RoleAnalyst, database.RoleAdmin}))
	assert.False(t, v.Visible(database.KindAlert, []database.Role{database.RoleAnalyst}))
	assert.Equal(t, []database.ResultKind{database.KindKPI, database.KindPareto, database.KindPeakTimes},
		v.KindsFor([]database.Role{database.RoleAnalyst}))
}

func TestNewVisibility(t *testing.T) {
	v, err := NewVisibility(map[string][]string{"pareto": {"admin", "admin", "analyst"}})
	require.NoError(t, err)
	assert.ElementsMatch(t, []database.Role{database.RoleAdmin, database.RoleAnalyst}, v.Roles(database.KindPareto))
	assert.ElementsMatch(t, database.AllRoles, v.Roles(database.KindKPI))

	_, err = NewVisibility(map[string][]string{"forecast": {"admin"}})
	assert.Error(t, err)
	_, err = NewVisibility(map[string][]string{"kpi": {"intern"}})
	assert.Error(t, err)
}

func TestPublish(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	tenant := &database.Tenant{Name: "acme"}
	require.NoError(t, db.CreateTenant(ctx, tenant))

	p := New(db, nil, zap.NewNop())
	attemptID := "attempt-1"
	results, err := p.Publish(ctx, tenant.ID, &attemptID, fullReport())
	require.NoError(t, err)
	require.Len(t, results, 5)

	all, err := db.ListResults(ctx, database.SystemScope(), "")
	require.NoError(t, err)
	assert.Len(t, all, 5)

	ops := database.MemberScope(map[uint][]database.Role{tenant.ID: {database.RoleAnalyst}})
	visible, err := db.ListResults(ctx, ops, "")
	require.NoError(t, err)
	assert.Len(t, visible, 3)
	for _, r := range visible {
		assert.Contains(t, r.RoleSet(), database.RoleAnalyst)
	}

	var kpi analytics.KPI
	for _, r := range all {
		if r.Kind == database.KindKPI {
			require.NoError(t, json.Unmarshal(r.Payload, &kpi))
		}
	}
	assert.Equal(t, 10.0, kpi.TotalRevenue)

	// republishing appends
	_, err = p.Publish(ctx, tenant.ID, &attemptID, fullReport())
	require.NoError(t, err)
	all, err = db.ListResults(ctx, database.SystemScope(), database.KindKPI)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestPublishFallbackTitles(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	tenant := &database.Tenant{Name: "acme"}
	require.NoError(t, db.CreateTenant(ctx, tenant))

	rep := analytics.Fallback(analytics.Input{Tenant: tenant})
	results, err := New(db, nil, zap.NewNop()).Publish(ctx, tenant.ID, nil, rep)
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Contains(t, results[0].Title, "preliminary")
	assert.Nil(t, results[0].AttemptID)
}
