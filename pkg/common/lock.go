package common

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/bsm/redislock"
	"github.com/doherty-labs/health-app-demo/pkg/types"
	"github.com/rs/zerolog/log"
)

const lockRetryInterval = 100 * time.Millisecond

// RedisLockOptions controls lease duration and wait behavior for one acquire
type RedisLockOptions struct {
	// TtlS is the lease duration in seconds. The lease bounds the maximum
	// hold time regardless of holder health.
	TtlS int

	// Retries is the number of additional acquisition attempts when the
	// lock is held by someone else. Ignored when Blocking is set.
	Retries int

	// Blocking waits for the lock until the context deadline instead of
	// failing with LockUnavailableError.
	Blocking bool
}

// RedisLock is a named, leased mutual-exclusion token shared across workers
// and processes. Not reentrant.
type RedisLock struct {
	client *RedisClient
	locker *redislock.Client
	mu     sync.Mutex
	held   map[string]*redislock.Lock
}

func NewRedisLock(rdb *RedisClient) *RedisLock {
	return &RedisLock{
		client: rdb,
		locker: redislock.New(rdb),
		held:   map[string]*redislock.Lock{},
	}
}

// Acquire obtains the named lock. Non-blocking callers observe
// types.LockUnavailableError when the lock is held elsewhere.
func (l *RedisLock) Acquire(ctx context.Context, key string, opts RedisLockOptions) error {
	var strategy redislock.RetryStrategy
	if opts.Blocking {
		strategy = redislock.LinearBackoff(lockRetryInterval)
	} else {
		strategy = redislock.LimitRetry(redislock.LinearBackoff(lockRetryInterval), opts.Retries)
	}

	lock, err := l.locker.Obtain(ctx, key, time.Duration(opts.TtlS)*time.Second, &redislock.Options{
		RetryStrategy: strategy,
	})
	if err != nil {
		if errors.Is(err, redislock.ErrNotObtained) {
			return &types.LockUnavailableError{Key: key}
		}
		return err
	}

	l.mu.Lock()
	l.held[key] = lock
	l.mu.Unlock()
	return nil
}

// Release frees the named lock. Releasing a lock whose lease already expired
// is a no-op so crash-recovery paths can call this speculatively.
func (l *RedisLock) Release(key string) error {
	l.mu.Lock()
	lock, ok := l.held[key]
	delete(l.held, key)
	l.mu.Unlock()

	if !ok {
		return nil
	}

	if err := lock.Release(context.Background()); err != nil {
		if errors.Is(err, redislock.ErrLockNotHeld) {
			log.Warn().Str("lock_key", key).Msg("lock lease expired before release")
			return nil
		}
		return err
	}
	return nil
}
