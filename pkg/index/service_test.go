package index

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/doherty-labs/health-app-demo/pkg/common"
	"github.com/doherty-labs/health-app-demo/pkg/types"
)

type widgetDoc struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

func (d *widgetDoc) DocumentID() string {
	return d.ID
}

func widgetIndex() LogicalIndex {
	return LogicalIndex{
		Name: "widget",
		Mapping: map[string]any{
			"id":   map[string]any{"type": "keyword"},
			"name": map[string]any{"type": "search_as_you_type"},
		},
	}
}

func newWidgetService(t *testing.T, store IndexStore) *Service {
	t.Helper()

	rdb, err := common.NewRedisClientForTest()
	require.NoError(t, err)
	t.Cleanup(func() { rdb.Close() })

	return NewService(widgetIndex(), store, common.NewRedisLock(rdb), types.IndexConfig{})
}

func TestFirstOperationProvisionsIndex(t *testing.T) {
	store := NewMemoryIndexStore()
	svc := newWidgetService(t, store)
	ctx := context.Background()

	require.NoError(t, svc.Add(ctx, &widgetDoc{ID: "1", Name: "gizmo"}))

	readGens, err := store.GetAliasIndexes(ctx, "widget")
	require.NoError(t, err)
	writeGens, err := store.GetAliasIndexes(ctx, "widget.write")
	require.NoError(t, err)

	require.Len(t, readGens, 1)
	assert.Equal(t, readGens, writeGens)
	assert.True(t, strings.HasPrefix(readGens[0], "widget_"))
}

func TestAddIsFirstWriterWins(t *testing.T) {
	store := NewMemoryIndexStore()
	svc := newWidgetService(t, store)
	ctx := context.Background()

	require.NoError(t, svc.Add(ctx, &widgetDoc{ID: "1", Name: "original"}))
	require.NoError(t, svc.Add(ctx, &widgetDoc{ID: "1", Name: "usurper"}))

	raw, err := svc.Get(ctx, "1")
	require.NoError(t, err)

	var doc widgetDoc
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, "original", doc.Name)
}

func TestUpdateUpsertsAbsentDocument(t *testing.T) {
	store := NewMemoryIndexStore()
	svc := newWidgetService(t, store)
	ctx := context.Background()

	require.NoError(t, svc.Update(ctx, &widgetDoc{ID: "9", Name: "late arrival"}))

	raw, err := svc.Get(ctx, "9")
	require.NoError(t, err)

	var doc widgetDoc
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, "late arrival", doc.Name)
}

func TestUpdateReplacesExistingFields(t *testing.T) {
	store := NewMemoryIndexStore()
	svc := newWidgetService(t, store)
	ctx := context.Background()

	require.NoError(t, svc.Add(ctx, &widgetDoc{ID: "1", Name: "before"}))
	require.NoError(t, svc.Update(ctx, &widgetDoc{ID: "1", Name: "after"}))

	raw, err := svc.Get(ctx, "1")
	require.NoError(t, err)

	var doc widgetDoc
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, "after", doc.Name)
}

func TestRemoveAbsentDocumentIsNoOp(t *testing.T) {
	store := NewMemoryIndexStore()
	svc := newWidgetService(t, store)

	require.NoError(t, svc.Remove(context.Background(), "does-not-exist"))
}

func TestRemoveDeletesDocument(t *testing.T) {
	store := NewMemoryIndexStore()
	svc := newWidgetService(t, store)
	ctx := context.Background()

	require.NoError(t, svc.Add(ctx, &widgetDoc{ID: "1", Name: "gone soon"}))
	require.NoError(t, svc.Remove(ctx, "1"))

	_, err := svc.Get(ctx, "1")
	var notFound *types.DocumentNotFoundError
	require.ErrorAs(t, err, &notFound)
}

func TestBulkAddRejectsDuplicates(t *testing.T) {
	store := NewMemoryIndexStore()
	svc := newWidgetService(t, store)
	ctx := context.Background()

	require.NoError(t, svc.Add(ctx, &widgetDoc{ID: "1", Name: "already here"}))

	count, err := svc.BulkAdd(ctx, []Document{
		&widgetDoc{ID: "1", Name: "duplicate"},
		&widgetDoc{ID: "2", Name: "fresh"},
	})

	var bulkErr *types.BulkIndexError
	require.ErrorAs(t, err, &bulkErr)
	require.Len(t, bulkErr.Failures, 1)
	assert.Equal(t, "1", bulkErr.Failures[0].ID)
	assert.Equal(t, 1, count)

	// The original document was not overwritten
	raw, err := svc.Get(ctx, "1")
	require.NoError(t, err)
	var doc widgetDoc
	require.NoError(t, json.Unmarshal(raw, &doc))
	assert.Equal(t, "already here", doc.Name)
}

func TestSearchFindsDocuments(t *testing.T) {
	store := NewMemoryIndexStore()
	svc := newWidgetService(t, store)
	ctx := context.Background()

	require.NoError(t, svc.Add(ctx, &widgetDoc{ID: "1", Name: "red gizmo"}))
	require.NoError(t, svc.Add(ctx, &widgetDoc{ID: "2", Name: "blue gadget"}))

	result, err := svc.Search(ctx, SearchRequest{
		Query: map[string]any{
			"multi_match": map[string]any{"query": "gizmo", "fields": []string{"name"}},
		},
	})
	require.NoError(t, err)
	require.Equal(t, 1, result.Total)
	assert.Equal(t, "1", result.Hits[0].ID)
}

func TestDeleteIndexRemovesEveryGeneration(t *testing.T) {
	store := NewMemoryIndexStore()
	svc := newWidgetService(t, store)
	ctx := context.Background()

	require.NoError(t, svc.EnsureIndex(ctx))
	require.NoError(t, svc.DeleteIndex(ctx))

	_, err := store.GetAliasIndexes(ctx, "widget.write")
	var notFound *types.AliasNotFoundError
	require.ErrorAs(t, err, &notFound)

	// Deleting again is fine
	require.NoError(t, svc.DeleteIndex(ctx))
}
