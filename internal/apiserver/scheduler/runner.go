package scheduler

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/Brownbull/gabeda-backend/internal/apiserver/database"
	"github.com/Brownbull/gabeda-backend/internal/common/cnst"

	"go.uber.org/zap"
)

// Processor runs one attempt to a terminal status
type Processor interface {
	Process(ctx context.Context, attemptID string) error
}

// Runner executes submitted attempts. With a nil queue attempts run inline in
// the submitting goroutine; otherwise a fixed pool of workers drains the queue.
type Runner struct {
	logger       *zap.Logger
	queue        Queue
	processor    Processor
	workers      int
	ctx          context.Context
	cancel       context.CancelFunc
	wg           sync.WaitGroup
	running      bool
	runningMutex sync.RWMutex
}

func NewRunner(queue Queue, processor Processor, workers int, logger *zap.Logger) *Runner {
	if workers <= 0 {
		workers = 1
	}
	return &Runner{
		logger:    logger.Named("scheduler.runner"),
		queue:     queue,
		processor: processor,
		workers:   workers,
	}
}

// Start launches the workers
func (r *Runner) Start() error {
	r.runningMutex.Lock()
	defer r.runningMutex.Unlock()

	if r.running {
		return fmt.Errorf("runner is already running")
	}
	r.ctx, r.cancel = context.WithCancel(context.Background())
	r.running = true

	if r.queue == nil {
		r.logger.Info("starting inline runner")
		return nil
	}
	r.logger.Info("starting runner", zap.Int("workers", r.workers))
	for i := 0; i < r.workers; i++ {
		r.wg.Add(1)
		go r.work(i)
	}
	return nil
}

// Stop stops taking new attempts and waits for in-flight ones to finish
func (r *Runner) Stop() error {
	r.runningMutex.Lock()
	if !r.running {
		r.runningMutex.Unlock()
		return nil
	}
	r.logger.Info("stopping runner")
	r.running = false
	r.cancel()
	r.runningMutex.Unlock()

	r.wg.Wait()
	if r.queue != nil {
		return r.queue.Close()
	}
	return nil
}

// Enqueue hands an attempt to the runner. Inline runners process it before returning.
func (r *Runner) Enqueue(ctx context.Context, attemptID string) error {
	r.runningMutex.RLock()
	running := r.running
	r.runningMutex.RUnlock()
	if !running {
		return cnst.ErrRunnerStopped
	}

	if r.queue == nil {
		// the caller going away does not stop a started attempt
		if err := r.processor.Process(context.WithoutCancel(ctx), attemptID); err != nil {
			r.logger.Warn("attempt did not complete", zap.String("attempt_id", attemptID), zap.Error(err))
		}
		return nil
	}
	if err := r.queue.Push(ctx, attemptID); err != nil {
		return fmt.Errorf("enqueue attempt %s: %w", attemptID, err)
	}
	r.logger.Debug("attempt enqueued", zap.String("attempt_id", attemptID))
	return nil
}

// RequeuePending enqueues every attempt still pending, such as those queued
// in memory before a restart
func (r *Runner) RequeuePending(ctx context.Context, db database.Database) (int, error) {
	pending, err := db.ListAttemptsByStatus(ctx, database.AttemptPending, 0)
	if err != nil {
		return 0, err
	}
	n := 0
	for _, a := range pending {
		if err := r.Enqueue(ctx, a.ID); err != nil {
			return n, err
		}
		n++
	}
	if n > 0 {
		r.logger.Info("requeued pending attempts", zap.Int("count", n))
	}
	return n, nil
}

func (r *Runner) work(n int) {
	defer r.wg.Done()
	logger := r.logger.With(zap.Int("worker", n))
	for {
		id, err := r.queue.Pop(r.ctx)
		if err != nil {
			if r.ctx.Err() != nil {
				return
			}
			logger.Error("failed to take attempt from queue", zap.Error(err))
			select {
			case <-r.ctx.Done():
				return
			case <-time.After(time.Second):
			}
			continue
		}

		// an attempt that started runs to a terminal status even while stopping
		err = r.processor.Process(context.WithoutCancel(r.ctx), id)
		switch {
		case err == nil:
		case errors.Is(err, cnst.ErrInvalidTransition):
			logger.Debug("attempt already taken", zap.String("attempt_id", id))
		default:
			logger.Warn("attempt did not complete", zap.String("attempt_id", id), zap.Error(err))
		}
	}
}
