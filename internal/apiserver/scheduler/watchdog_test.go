package scheduler

import (
	"context"
	"testing"
	"time"

	"github.com/Brownbull/gabeda-backend/internal/apiserver/database"
	"github.com/Brownbull/gabeda-backend/internal/common/config"
	"github.com/Brownbull/gabeda-backend/internal/ledger"
	"github.com/Brownbull/gabeda-backend/pkg/metrics"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func TestWatchdog_Sweep(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	tenant := &database.Tenant{Name: "acme"}
	require.NoError(t, db.CreateTenant(ctx, tenant))

	old := time.Now().Add(-time.Hour)
	stuck := &database.Attempt{ID: "stuck", TenantID: tenant.ID, FileRef: "f", Status: database.AttemptProcessing, CreatedAt: old, UpdatedAt: old}
	fresh := &database.Attempt{ID: "fresh", TenantID: tenant.ID, FileRef: "f", Status: database.AttemptProcessing}
	require.NoError(t, db.CreateAttempt(ctx, stuck))
	require.NoError(t, db.CreateAttempt(ctx, fresh))

	lw := ledger.NewWriter(db, 10, zap.NewNop())
	_, err := lw.Write(ctx, tenant.ID, "stuck", []*database.Transaction{
		{Date: old, ProductID: "p", Quantity: 1, Revenue: 10, UnitPrice: 10},
	})
	require.NoError(t, err)

	m := metrics.New(config.MetricsConfig{Namespace: "wd"})
	w := NewWatchdog(db, lw, m, time.Minute, 10*time.Minute, zap.NewNop())

	n, err := w.Sweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	got, err := db.GetAttempt(ctx, database.SystemScope(), "stuck")
	require.NoError(t, err)
	assert.Equal(t, database.AttemptFailed, got.Status)
	assert.Contains(t, got.ErrorMessage, "watchdog")

	got, err = db.GetAttempt(ctx, database.SystemScope(), "fresh")
	require.NoError(t, err)
	assert.Equal(t, database.AttemptProcessing, got.Status)

	rows, err := lw.Snapshot(ctx, tenant.ID)
	require.NoError(t, err)
	assert.Empty(t, rows)

	n, err = w.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)

	gathered, err := testutil.GatherAndCount(m.Registry(), "wd_watchdog_force_failed_total")
	require.NoError(t, err)
	assert.Equal(t, 1, gathered)
}

func TestWatchdog_StartStop(t *testing.T) {
	db := newTestDB(t)
	w := NewWatchdog(db, ledger.NewWriter(db, 10, zap.NewNop()), nil, 10*time.Millisecond, time.Minute, zap.NewNop())

	require.NoError(t, w.Start())
	assert.Error(t, w.Start())
	time.Sleep(30 * time.Millisecond)
	require.NoError(t, w.Stop())
	require.NoError(t, w.Stop())
}

type recordingEnqueuer struct{ ids []string }

func (e *recordingEnqueuer) Enqueue(_ context.Context, id string) error {
	e.ids = append(e.ids, id)
	return nil
}

func TestWatchdog_RequeuesOldPending(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	tenant := &database.Tenant{Name: "acme"}
	require.NoError(t, db.CreateTenant(ctx, tenant))

	old := time.Now().Add(-time.Hour)
	require.NoError(t, db.CreateAttempt(ctx, &database.Attempt{ID: "lost", TenantID: tenant.ID, FileRef: "f", Status: database.AttemptPending, CreatedAt: old, UpdatedAt: old}))
	require.NoError(t, db.CreateAttempt(ctx, &database.Attempt{ID: "queued", TenantID: tenant.ID, FileRef: "f", Status: database.AttemptPending}))

	enq := &recordingEnqueuer{}
	w := NewWatchdog(db, ledger.NewWriter(db, 10, zap.NewNop()), nil, time.Minute, 10*time.Minute, zap.NewNop()).WithRequeue(enq)

	n, err := w.Sweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, []string{"lost"}, enq.ids)
}
