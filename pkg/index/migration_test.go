package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doherty-labs/health-app-demo/pkg/common"
	"github.com/doherty-labs/health-app-demo/pkg/types"
)

// countingStore records the size of every bulk call passing through it
type countingStore struct {
	IndexStore
	bulkSizes []int
}

func (s *countingStore) Bulk(ctx context.Context, index string, docs []BulkDoc) (int, error) {
	s.bulkSizes = append(s.bulkSizes, len(docs))
	return s.IndexStore.Bulk(ctx, index, docs)
}

func TestReindexChunksBulkCalls(t *testing.T) {
	store := &countingStore{IndexStore: NewMemoryIndexStore()}
	svc := newWidgetService(t, store)
	ctx := context.Background()

	require.NoError(t, svc.EnsureIndex(ctx))

	total := 6000
	err := WithMigration(ctx, svc, func(ctx context.Context) error {
		populator := svc.Populator()
		for i := 0; i < total; i++ {
			doc := &widgetDoc{ID: fmt.Sprintf("%d", i), Name: fmt.Sprintf("widget %d", i)}
			if err := populator.Add(ctx, doc); err != nil {
				return err
			}
		}
		if err := populator.Flush(ctx); err != nil {
			return err
		}
		assert.Equal(t, total, populator.Count())
		return nil
	})
	require.NoError(t, err)

	// 6000 documents at the default chunk of 2500: two full chunks plus the
	// flushed remainder
	assert.Equal(t, []int{2500, 2500, 1000}, store.bulkSizes)

	result, err := svc.Search(ctx, SearchRequest{})
	require.NoError(t, err)
	assert.Equal(t, total, result.Total)
}

func TestMigrationReadsServeOldGenerationUntilEnd(t *testing.T) {
	store := NewMemoryIndexStore()
	svc := newWidgetService(t, store)
	ctx := context.Background()

	require.NoError(t, svc.Add(ctx, &widgetDoc{ID: "old", Name: "survivor"}))

	require.NoError(t, svc.BeginMigration(ctx))

	// Writes land in the new generation
	require.NoError(t, svc.Update(ctx, &widgetDoc{ID: "new", Name: "incoming"}))

	// Reads still resolve the old generation
	_, err := svc.Get(ctx, "old")
	require.NoError(t, err)
	_, err = svc.Get(ctx, "new")
	var notFound *types.DocumentNotFoundError
	require.ErrorAs(t, err, &notFound)

	require.NoError(t, svc.EndMigration(ctx))

	// Cutover complete: the new generation serves reads, the old one is gone
	_, err = svc.Get(ctx, "new")
	require.NoError(t, err)
	_, err = svc.Get(ctx, "old")
	require.ErrorAs(t, err, &notFound)
}

func TestEndMigrationDeletesPreviousGeneration(t *testing.T) {
	store := NewMemoryIndexStore()
	svc := newWidgetService(t, store)
	ctx := context.Background()

	require.NoError(t, svc.EnsureIndex(ctx))
	before, err := store.GetAliasIndexes(ctx, "widget")
	require.NoError(t, err)

	require.NoError(t, svc.BeginMigration(ctx))
	require.NoError(t, svc.EndMigration(ctx))

	after, err := store.GetAliasIndexes(ctx, "widget")
	require.NoError(t, err)
	require.Len(t, after, 1)
	assert.NotEqual(t, before[0], after[0])

	exists, err := store.IndexExists(ctx, before[0])
	require.NoError(t, err)
	assert.False(t, exists)
}

func TestFailedMigrationRestoresTopology(t *testing.T) {
	store := NewMemoryIndexStore()
	svc := newWidgetService(t, store)
	ctx := context.Background()

	require.NoError(t, svc.Add(ctx, &widgetDoc{ID: "1", Name: "precious"}))
	before, err := store.GetAliasIndexes(ctx, "widget")
	require.NoError(t, err)

	boom := errors.New("populate blew up")
	err = WithMigration(ctx, svc, func(ctx context.Context) error {
		return boom
	})
	require.ErrorIs(t, err, boom)

	// Both aliases point back at the original generation
	readGens, err := store.GetAliasIndexes(ctx, "widget")
	require.NoError(t, err)
	writeGens, err := store.GetAliasIndexes(ctx, "widget.write")
	require.NoError(t, err)
	assert.Equal(t, before, readGens)
	assert.Equal(t, before, writeGens)

	// The document is still reachable on both paths
	raw, err := svc.Get(ctx, "1")
	require.NoError(t, err)
	var doc widgetDoc
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, "precious", doc.Name)

	require.NoError(t, svc.Update(ctx, &widgetDoc{ID: "1", Name: "still writable"}))
}

func TestMigrationHoldsLockUntilEnd(t *testing.T) {
	store := NewMemoryIndexStore()

	rdb, err := common.NewRedisClientForTest()
	require.NoError(t, err)
	t.Cleanup(func() { rdb.Close() })

	lock := common.NewRedisLock(rdb)
	svc := NewService(widgetIndex(), store, lock, types.IndexConfig{})
	ctx := context.Background()

	require.NoError(t, svc.EnsureIndex(ctx))
	require.NoError(t, svc.BeginMigration(ctx))

	// A second worker cannot take the migration lock while the run is live
	other := common.NewRedisLock(rdb)
	err = other.Acquire(ctx, common.Keys.IndexMigrationLock("widget"), common.RedisLockOptions{TtlS: 10})
	var unavailable *types.LockUnavailableError
	require.ErrorAs(t, err, &unavailable)

	require.NoError(t, svc.EndMigration(ctx))

	// Lock released at end of run
	require.NoError(t, other.Acquire(ctx, common.Keys.IndexMigrationLock("widget"), common.RedisLockOptions{TtlS: 10}))
	require.NoError(t, other.Release(common.Keys.IndexMigrationLock("widget")))
}

func TestAbortedMigrationReleasesLock(t *testing.T) {
	store := NewMemoryIndexStore()

	rdb, err := common.NewRedisClientForTest()
	require.NoError(t, err)
	t.Cleanup(func() { rdb.Close() })

	lock := common.NewRedisLock(rdb)
	svc := NewService(widgetIndex(), store, lock, types.IndexConfig{})
	ctx := context.Background()

	require.NoError(t, svc.EnsureIndex(ctx))

	err = WithMigration(ctx, svc, func(ctx context.Context) error {
		return errors.New("fail the run")
	})
	require.Error(t, err)

	other := common.NewRedisLock(rdb)
	require.NoError(t, other.Acquire(ctx, common.Keys.IndexMigrationLock("widget"), common.RedisLockOptions{TtlS: 10}))
}

func TestUpdateAliasesIsAtomic(t *testing.T) {
	store := NewMemoryIndexStore()
	ctx := context.Background()

	require.NoError(t, store.CreateIndex(ctx, "widget_a", nil, nil))
	require.NoError(t, store.UpdateAliases(ctx, []AliasAction{
		{Type: AliasAdd, Alias: "widget", Index: "widget_a"},
	}))

	// One bad action fails the whole batch without touching bindings
	err := store.UpdateAliases(ctx, []AliasAction{
		{Type: AliasRemove, Alias: "widget", Index: "widget_a"},
		{Type: AliasAdd, Alias: "widget", Index: "widget_missing"},
	})
	var rebindErr *types.AliasRebindError
	require.ErrorAs(t, err, &rebindErr)

	bound, err := store.GetAliasIndexes(ctx, "widget")
	require.NoError(t, err)
	assert.Equal(t, []string{"widget_a"}, bound)
}
