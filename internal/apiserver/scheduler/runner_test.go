package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/Brownbull/gabeda-backend/internal/apiserver/database"
	"github.com/Brownbull/gabeda-backend/internal/common/cnst"
	"github.com/Brownbull/gabeda-backend/internal/common/config"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type recordingProcessor struct {
	mu  sync.Mutex
	ids []string
}

func (p *recordingProcessor) Process(_ context.Context, id string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.ids = append(p.ids, id)
	return nil
}

func (p *recordingProcessor) seen() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.ids...)
}

// cancellingProcessor cancels its caller mid-run and records whether its own ctx survived
type cancellingProcessor struct {
	cancel context.CancelFunc
	ctxErr error
}

func (p *cancellingProcessor) Process(ctx context.Context, _ string) error {
	p.cancel()
	p.ctxErr = ctx.Err()
	return p.ctxErr
}

func newTestDB(t *testing.T) database.Database {
	t.Helper()
	db, err := database.NewSQLite(&config.DatabaseConfig{Type: "sqlite", DBName: ":memory:"})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestRunner_Inline(t *testing.T) {
	p := &recordingProcessor{}
	r := NewRunner(nil, p, 1, zap.NewNop())

	assert.ErrorIs(t, r.Enqueue(context.Background(), "early"), cnst.ErrRunnerStopped)

	require.NoError(t, r.Start())
	assert.Error(t, r.Start())
	require.NoError(t, r.Enqueue(context.Background(), "a1"))
	assert.Equal(t, []string{"a1"}, p.seen())

	require.NoError(t, r.Stop())
	require.NoError(t, r.Stop())
	assert.ErrorIs(t, r.Enqueue(context.Background(), "late"), cnst.ErrRunnerStopped)
}

func TestRunner_InlineIgnoresCallerCancel(t *testing.T) {
	reqCtx, cancel := context.WithCancel(context.Background())
	defer cancel()
	p := &cancellingProcessor{cancel: cancel}
	r := NewRunner(nil, p, 1, zap.NewNop())
	require.NoError(t, r.Start())
	defer r.Stop()

	require.NoError(t, r.Enqueue(reqCtx, "a1"))
	assert.Error(t, reqCtx.Err())
	assert.NoError(t, p.ctxErr)
}

func TestRunner_Workers(t *testing.T) {
	for name, queue := range map[string]func(t *testing.T) Queue{
		"memory": func(t *testing.T) Queue { return NewMemoryQueue(16) },
		"redis": func(t *testing.T) Queue {
			q, _ := newRedisQueue(t)
			return q
		},
	} {
		t.Run(name, func(t *testing.T) {
			p := &recordingProcessor{}
			r := NewRunner(queue(t), p, 3, zap.NewNop())
			require.NoError(t, r.Start())

			for _, id := range []string{"a", "b", "c", "d"} {
				require.NoError(t, r.Enqueue(context.Background(), id))
			}
			assert.Eventually(t, func() bool { return len(p.seen()) == 4 }, 5*time.Second, 10*time.Millisecond)
			require.NoError(t, r.Stop())
			assert.ElementsMatch(t, []string{"a", "b", "c", "d"}, p.seen())
		})
	}
}

func TestRunner_RequeuePending(t *testing.T) {
	db := newTestDB(t)
	ctx := context.Background()
	tenant := &database.Tenant{Name: "acme"}
	require.NoError(t, db.CreateTenant(ctx, tenant))

	base := time.Now().Add(-time.Hour)
	for i, st := range []database.AttemptStatus{database.AttemptPending, database.AttemptCompleted, database.AttemptPending} {
		require.NoError(t, db.CreateAttempt(ctx, &database.Attempt{
			ID:        []string{"p1", "done", "p2"}[i],
			TenantID:  tenant.ID,
			FileRef:   "f",
			Status:    st,
			CreatedAt: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	p := &recordingProcessor{}
	r := NewRunner(nil, p, 1, zap.NewNop())
	require.NoError(t, r.Start())
	defer r.Stop()

	n, err := r.RequeuePending(ctx, db)
	require.NoError(t, err)
	assert.Equal(t, 2, n)
	assert.Equal(t, []string{"p1", "p2"}, p.seen())
}
