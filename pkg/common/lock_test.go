package common

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doherty-labs/health-app-demo/pkg/types"
)

func TestLockMutualExclusion(t *testing.T) {
	rdb, err := NewRedisClientForTest()
	require.NoError(t, err)
	t.Cleanup(func() { rdb.Close() })

	ctx := context.Background()
	key := Keys.IndexMigrationLock("widget")

	first := NewRedisLock(rdb)
	require.NoError(t, first.Acquire(ctx, key, RedisLockOptions{TtlS: 10}))

	second := NewRedisLock(rdb)
	err = second.Acquire(ctx, key, RedisLockOptions{TtlS: 10})
	var unavailable *types.LockUnavailableError
	require.ErrorAs(t, err, &unavailable)
	assert.Equal(t, key, unavailable.Key)

	require.NoError(t, first.Release(key))
	require.NoError(t, second.Acquire(ctx, key, RedisLockOptions{TtlS: 10}))
}

func TestLockBlockingWaitsForRelease(t *testing.T) {
	rdb, err := NewRedisClientForTest()
	require.NoError(t, err)
	t.Cleanup(func() { rdb.Close() })

	ctx := context.Background()
	key := Keys.IndexMigrationLock("widget")

	holder := NewRedisLock(rdb)
	require.NoError(t, holder.Acquire(ctx, key, RedisLockOptions{TtlS: 10}))

	var wg sync.WaitGroup
	acquired := make(chan struct{})

	wg.Add(1)
	go func() {
		defer wg.Done()
		waiter := NewRedisLock(rdb)
		if err := waiter.Acquire(ctx, key, RedisLockOptions{TtlS: 10, Blocking: true}); err == nil {
			close(acquired)
			waiter.Release(key)
		}
	}()

	// The waiter must not get through while the lock is held
	select {
	case <-acquired:
		t.Fatal("blocking acquire succeeded while lock was held")
	case <-time.After(300 * time.Millisecond):
	}

	require.NoError(t, holder.Release(key))

	select {
	case <-acquired:
	case <-time.After(5 * time.Second):
		t.Fatal("blocking acquire did not proceed after release")
	}
	wg.Wait()
}

func TestLockBlockingHonorsContextCancel(t *testing.T) {
	rdb, err := NewRedisClientForTest()
	require.NoError(t, err)
	t.Cleanup(func() { rdb.Close() })

	key := Keys.IndexMigrationLock("widget")

	holder := NewRedisLock(rdb)
	require.NoError(t, holder.Acquire(context.Background(), key, RedisLockOptions{TtlS: 10}))

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()

	waiter := NewRedisLock(rdb)
	err = waiter.Acquire(ctx, key, RedisLockOptions{TtlS: 10, Blocking: true})
	require.Error(t, err)
}

func TestReleaseUnknownKeyIsNoOp(t *testing.T) {
	rdb, err := NewRedisClientForTest()
	require.NoError(t, err)
	t.Cleanup(func() { rdb.Close() })

	lock := NewRedisLock(rdb)
	require.NoError(t, lock.Release("never_acquired"))
}

func TestLockRetriesEventuallyAcquire(t *testing.T) {
	rdb, err := NewRedisClientForTest()
	require.NoError(t, err)
	t.Cleanup(func() { rdb.Close() })

	ctx := context.Background()
	key := Keys.IndexMigrationLock("widget")

	holder := NewRedisLock(rdb)
	require.NoError(t, holder.Acquire(ctx, key, RedisLockOptions{TtlS: 10}))

	go func() {
		time.Sleep(250 * time.Millisecond)
		holder.Release(key)
	}()

	waiter := NewRedisLock(rdb)
	require.NoError(t, waiter.Acquire(ctx, key, RedisLockOptions{TtlS: 10, Retries: 50}))
}
