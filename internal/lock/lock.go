// Package lock serialises writers to the books.
package lock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bsm/redislock"
	redis "github.com/redis/go-redis/v9"
	"github.com/sirupsen/logrus"
)

var ErrNotObtained = errors.New("could not obtain write lock")

// Locker grants exclusive access to a key. The returned release func must be
// called exactly once.
type Locker interface {
	Acquire(ctx context.Context, key string) (release func(), err error)
}

// Local is an in-process mutex.
type Local struct {
	ch chan struct{}
}

func NewLocal() *Local {
	return &Local{ch: make(chan struct{}, 1)}
}

func (l *Local) Acquire(ctx context.Context, _ string) (func(), error) {
	select {
	case l.ch <- struct{}{}:
		return func() { <-l.ch }, nil
	case <-ctx.Done():
		return nil, fmt.Errorf("%w: %v", ErrNotObtained, ctx.Err())
	}
}

// Redis holds a bsm/redislock lease per key, so several processes sharing
// one store still take turns. The in-process mutex is held as well.
type Redis struct {
	client *redislock.Client
	local  *Local
	ttl    time.Duration
	wait   time.Duration
	logger *logrus.Logger
}

func NewRedis(rdb redis.UniversalClient, ttl time.Duration, wait time.Duration, logger *logrus.Logger) *Redis {
	if ttl <= 0 {
		ttl = 30 * time.Second
	}
	if wait <= 0 {
		wait = 10 * time.Second
	}
	return &Redis{
		client: redislock.New(rdb),
		local:  NewLocal(),
		ttl:    ttl,
		wait:   wait,
		logger: logger,
	}
}

func (r *Redis) Acquire(ctx context.Context, key string) (func(), error) {
	releaseLocal, err := r.local.Acquire(ctx, key)
	if err != nil {
		return nil, err
	}

	lockKey := "lock:thredvault:" + key
	backoff := redislock.LimitRetry(redislock.LinearBackoff(100*time.Millisecond), int(r.wait/(100*time.Millisecond)))
	lease, err := r.client.Obtain(ctx, lockKey, r.ttl, &redislock.Options{RetryStrategy: backoff})
	if errors.Is(err, redislock.ErrNotObtained) {
		releaseLocal()
		return nil, ErrNotObtained
	}
	if err != nil {
		releaseLocal()
		return nil, fmt.Errorf("obtain %s: %w", lockKey, err)
	}

	return func() {
		if err := lease.Release(context.Background()); err != nil && !errors.Is(err, redislock.ErrLockNotHeld) {
			r.logger.WithFields(logrus.Fields{
				"module": "lock",
				"key":    lockKey,
			}).Warn("failed to release redis lock: " + err.Error())
		}
		releaseLocal()
	}, nil
}
