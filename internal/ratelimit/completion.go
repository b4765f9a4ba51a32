package ratelimit

import (
	"context"
	"errors"
	"time"

	"github.com/bwmarrin/snowflake"
	redis "github.com/redis/go-redis/v9"
	"github.com/smallbiznis/workdesk/internal/config"
	"github.com/smallbiznis/workdesk/internal/observability/metrics"
	"go.uber.org/zap"
)

const (
	keyCompletionLock = "workdesk:work_order:complete:"
	defaultLockWait   = 2 * time.Second
)

var ErrLockHeld = errors.New("work_order_busy")

// CompletionLocker serializes completion of one work order across replicas.
type CompletionLocker struct {
	locker  *Locker
	log     *zap.Logger
	metrics *metrics.WorkflowMetrics
	ttl     time.Duration
	wait    time.Duration
}

func NewCompletionLocker(cfg config.Config, client *redis.Client, log *zap.Logger, workflow *metrics.WorkflowMetrics) *CompletionLocker {
	ttl := cfg.RateLimit.LockTTL
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	return &CompletionLocker{
		locker:  NewLocker(client),
		log:     log.Named("ratelimit.completion"),
		metrics: workflow,
		ttl:     ttl,
		wait:    defaultLockWait,
	}
}

// Acquire blocks until the lock is held or the wait budget runs out. Redis failures degrade to no lock.
func (c *CompletionLocker) Acquire(ctx context.Context, workOrderID snowflake.ID) (func(), error) {
	noop := func() {}
	if c == nil || c.locker == nil {
		return noop, nil
	}

	id := zap.String("work_order_id", workOrderID.String())
	started := time.Now()
	lease, err := c.locker.Acquire(ctx, keyCompletionLock+workOrderID.String(), c.ttl, c.wait)
	c.metrics.ObserveLockWait(time.Since(started))
	switch {
	case errors.Is(err, ErrLockTimeout):
		return noop, ErrLockHeld
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return noop, err
	case err != nil:
		c.log.Warn("completion lock unavailable", id, zap.Error(err))
		return noop, nil
	}

	return func() {
		releaseCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), time.Second)
		defer cancel()
		if err := lease.Release(releaseCtx); err != nil {
			c.log.Warn("completion lock release failed", id, zap.Error(err))
		}
	}, nil
}
