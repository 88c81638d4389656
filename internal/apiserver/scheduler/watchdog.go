package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/Brownbull/gabeda-backend/internal/apiserver/database"
	"github.com/Brownbull/gabeda-backend/internal/ledger"
	"github.com/Brownbull/gabeda-backend/pkg/metrics"

	"go.uber.org/zap"
)

// Enqueuer hands an attempt to a runner
type Enqueuer interface {
	Enqueue(ctx context.Context, attemptID string) error
}

// Watchdog force-fails attempts stuck in processing and removes their ledger
// records. With a requeue target it also re-enqueues attempts left pending.
type Watchdog struct {
	logger       *zap.Logger
	requeue      Enqueuer
	db           database.Database
	ledger       *ledger.Writer
	metrics      *metrics.Metrics
	interval     time.Duration
	staleAfter   time.Duration
	now          func() time.Time
	cancel       context.CancelFunc
	done         chan struct{}
	running      bool
	runningMutex sync.Mutex
}

func NewWatchdog(db database.Database, lw *ledger.Writer, m *metrics.Metrics, interval, staleAfter time.Duration, logger *zap.Logger) *Watchdog {
	if interval <= 0 {
		interval = time.Minute
	}
	return &Watchdog{
		logger:     logger.Named("scheduler.watchdog"),
		db:         db,
		ledger:     lw,
		metrics:    m,
		interval:   interval,
		staleAfter: staleAfter,
		now:        time.Now,
	}
}

// WithRequeue makes Sweep re-enqueue attempts pending for longer than the stale bound
func (w *Watchdog) WithRequeue(e Enqueuer) *Watchdog {
	w.requeue = e
	return w
}

// Start runs Sweep on every tick until Stop
func (w *Watchdog) Start() error {
	w.runningMutex.Lock()
	defer w.runningMutex.Unlock()
	if w.running {
		return fmt.Errorf("watchdog is already running")
	}
	ctx, cancel := context.WithCancel(context.Background())
	w.cancel = cancel
	w.done = make(chan struct{})
	w.running = true

	w.logger.Info("starting watchdog",
		zap.Duration("interval", w.interval),
		zap.Duration("stale_after", w.staleAfter))
	go w.loop(ctx)
	return nil
}

func (w *Watchdog) Stop() error {
	w.runningMutex.Lock()
	defer w.runningMutex.Unlock()
	if !w.running {
		return nil
	}
	w.logger.Info("stopping watchdog")
	w.cancel()
	<-w.done
	w.running = false
	return nil
}

func (w *Watchdog) loop(ctx context.Context) {
	defer close(w.done)
	ticker := time.NewTicker(w.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if _, err := w.Sweep(ctx); err != nil && ctx.Err() == nil {
				w.logger.Error("watchdog sweep failed", zap.Error(err))
			}
		}
	}
}

// Sweep fails every attempt processing for longer than the stale bound and
// returns how many it failed
func (w *Watchdog) Sweep(ctx context.Context) (int, error) {
	cutoff := w.now().Add(-w.staleAfter)
	stale, err := w.db.ListStaleAttempts(ctx, cutoff)
	if err != nil {
		return 0, err
	}

	msg := fmt.Sprintf("processing did not finish within %s and was stopped by the watchdog", w.staleAfter)
	failed := 0
	for _, a := range stale {
		ok, err := w.db.FailStaleAttempt(ctx, a.ID, cutoff, msg)
		if err != nil {
			w.logger.Error("failed to fail stale attempt", zap.String("attempt_id", a.ID), zap.Error(err))
			continue
		}
		if !ok {
			// finished between the listing and the update
			continue
		}
		failed++
		if _, err := w.ledger.Purge(ctx, a.ID); err != nil {
			w.logger.Error("failed to purge ledger of stale attempt", zap.String("attempt_id", a.ID), zap.Error(err))
		}
		w.logger.Warn("stale attempt failed",
			zap.String("attempt_id", a.ID),
			zap.Uint("tenant_id", a.TenantID),
			zap.String("status", string(database.AttemptFailed)),
			zap.Time("last_update", a.UpdatedAt))
	}
	w.metrics.WatchdogFailed(failed)

	if w.requeue != nil {
		w.requeuePending(ctx, cutoff)
	}
	return failed, nil
}

// requeuePending covers attempts whose enqueue was lost, such as a full
// memory queue. A duplicate enqueue is harmless: only one worker wins the
// pending to processing transition.
func (w *Watchdog) requeuePending(ctx context.Context, cutoff time.Time) {
	pending, err := w.db.ListAttemptsByStatus(ctx, database.AttemptPending, 0)
	if err != nil {
		w.logger.Error("failed to list pending attempts", zap.Error(err))
		return
	}
	for _, a := range pending {
		if !a.UpdatedAt.Before(cutoff) {
			continue
		}
		if err := w.requeue.Enqueue(ctx, a.ID); err != nil {
			w.logger.Warn("failed to requeue pending attempt", zap.String("attempt_id", a.ID), zap.Error(err))
			continue
		}
		w.logger.Info("requeued pending attempt", zap.String("attempt_id", a.ID))
	}
}
