package cache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doherty-labs/health-app-demo/pkg/common"
)

type snapshot struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

func newTestCache(t *testing.T) *Cache {
	t.Helper()

	rdb, err := common.NewRedisClientForTest()
	require.NoError(t, err)
	t.Cleanup(func() { rdb.Close() })

	return New(rdb, time.Hour)
}

func TestFetchComputesOnceThenServesCached(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	computeCount := 0
	compute := func(ctx context.Context) (snapshot, error) {
		computeCount++
		return snapshot{ID: 1, Name: "hillside surgery"}, nil
	}

	first, err := Fetch(ctx, c, "practice", "1", 0, false, compute)
	require.NoError(t, err)
	second, err := Fetch(ctx, c, "practice", "1", 0, false, compute)
	require.NoError(t, err)

	assert.Equal(t, first, second)
	assert.Equal(t, 1, computeCount)
}

func TestFetchSkipCacheAlwaysRecomputes(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	computeCount := 0
	compute := func(ctx context.Context) (snapshot, error) {
		computeCount++
		return snapshot{ID: 1, Name: "hillside surgery"}, nil
	}

	_, err := Fetch(ctx, c, "practice", "1", 0, false, compute)
	require.NoError(t, err)
	_, err = Fetch(ctx, c, "practice", "1", 0, true, compute)
	require.NoError(t, err)

	assert.Equal(t, 2, computeCount)
}

func TestInvalidateForcesRecompute(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	computeCount := 0
	compute := func(ctx context.Context) (snapshot, error) {
		computeCount++
		return snapshot{ID: 1, Name: "hillside surgery"}, nil
	}

	_, err := Fetch(ctx, c, "practice", "1", 0, false, compute)
	require.NoError(t, err)

	require.NoError(t, c.Invalidate(ctx, "practice", "1"))

	_, err = Fetch(ctx, c, "practice", "1", 0, false, compute)
	require.NoError(t, err)
	assert.Equal(t, 2, computeCount)
}

func TestInvalidateAbsentKeyIsNoOp(t *testing.T) {
	c := newTestCache(t)
	require.NoError(t, c.Invalidate(context.Background(), "practice", "404"))
}

func TestFetchPropagatesComputeError(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	boom := errors.New("row vanished")
	_, err := Fetch(ctx, c, "practice", "1", 0, false, func(ctx context.Context) (snapshot, error) {
		return snapshot{}, boom
	})
	require.ErrorIs(t, err, boom)

	// Nothing was cached for the failed compute
	computeCount := 0
	_, err = Fetch(ctx, c, "practice", "1", 0, false, func(ctx context.Context) (snapshot, error) {
		computeCount++
		return snapshot{ID: 1}, nil
	})
	require.NoError(t, err)
	assert.Equal(t, 1, computeCount)
}

func TestFetchKeysAreScopedByObjectType(t *testing.T) {
	c := newTestCache(t)
	ctx := context.Background()

	practice, err := Fetch(ctx, c, "practice", "1", 0, false, func(ctx context.Context) (snapshot, error) {
		return snapshot{ID: 1, Name: "practice one"}, nil
	})
	require.NoError(t, err)

	patient, err := Fetch(ctx, c, "patient", "1", 0, false, func(ctx context.Context) (snapshot, error) {
		return snapshot{ID: 1, Name: "patient one"}, nil
	})
	require.NoError(t, err)

	assert.NotEqual(t, practice.Name, patient.Name)
}
