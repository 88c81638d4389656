package scheduler

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/Brownbull/gabeda-backend/internal/common/cnst"
	"github.com/Brownbull/gabeda-backend/internal/common/config"

	"github.com/redis/go-redis/v9"
)

// Queue holds attempt ids waiting for a worker
type Queue interface {
	// Push appends an attempt id
	Push(ctx context.Context, attemptID string) error
	// Pop blocks until an attempt id is available or ctx is done
	Pop(ctx context.Context) (string, error)
	Close() error
}

// MemoryQueue is a bounded in-process queue. Pending work is lost on restart
// and picked up again by Runner.RequeuePending.
type MemoryQueue struct {
	ch chan string
}

func NewMemoryQueue(size int) *MemoryQueue {
	if size <= 0 {
		size = 64
	}
	return &MemoryQueue{ch: make(chan string, size)}
}

func (q *MemoryQueue) Push(_ context.Context, attemptID string) error {
	select {
	case q.ch <- attemptID:
		return nil
	default:
		return cnst.ErrQueueFull
	}
}

func (q *MemoryQueue) Pop(ctx context.Context) (string, error) {
	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case id := <-q.ch:
		return id, nil
	}
}

func (q *MemoryQueue) Close() error { return nil }

// RedisQueue shares attempts between api server replicas through a redis list
type RedisQueue struct {
	client *redis.Client
	key    string
	wait   time.Duration
}

// NewRedisQueue connects to redis and checks the connection
func NewRedisQueue(ctx context.Context, cfg config.RedisConfig, key string) (*RedisQueue, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}
	return NewRedisQueueWithClient(client, key), nil
}

func NewRedisQueueWithClient(client *redis.Client, key string) *RedisQueue {
	if key == "" {
		key = "gabeda:ingest:queue"
	}
	return &RedisQueue{client: client, key: key, wait: time.Second}
}

func (q *RedisQueue) Push(ctx context.Context, attemptID string) error {
	return q.client.LPush(ctx, q.key, attemptID).Err()
}

func (q *RedisQueue) Pop(ctx context.Context) (string, error) {
	for {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		res, err := q.client.BRPop(ctx, q.wait, q.key).Result()
		if errors.Is(err, redis.Nil) {
			continue
		}
		if err != nil {
			if ctx.Err() != nil {
				return "", ctx.Err()
			}
			return "", err
		}
		// BRPOP answers with the key and the value
		return res[1], nil
	}
}

// Len reports how many attempts wait in the list
func (q *RedisQueue) Len(ctx context.Context) (int64, error) {
	return q.client.LLen(ctx, q.key).Result()
}

func (q *RedisQueue) Close() error {
	return q.client.Close()
}
