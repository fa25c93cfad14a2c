package index

import (
	"context"
	"encoding/json"
)

// AliasActionType is one side of an atomic alias update
type AliasActionType string

const (
	AliasAdd    AliasActionType = "add"
	AliasRemove AliasActionType = "remove"
)

// AliasAction binds or unbinds one physical index generation to an alias.
// Actions are only ever applied as part of a single atomic UpdateAliases
// call so readers never observe an alias resolving to a partial set.
type AliasAction struct {
	Type  AliasActionType
	Alias string
	Index string
}

// SearchRequest carries the raw query body parts of a search call
type SearchRequest struct {
	Query   map[string]any
	Size    *int
	Aggs    map[string]any
	Suggest map[string]any
}

// SearchHit is one matching document
type SearchHit struct {
	ID     string
	Score  float64
	Source json.RawMessage
}

// SearchResult is the decoded response of a search call
type SearchResult struct {
	Total        int
	Hits         []SearchHit
	Aggregations json.RawMessage
}

// BulkDoc is one document of a create-only bulk call
type BulkDoc struct {
	ID     string
	Source any
}

// IndexStore is the behavioral contract on the backing document index.
// It must support named aliases over versioned physical indexes, atomic
// multi-action alias updates, per-document create/upsert/delete with
// optional synchronous visibility refresh, and bulk create with per-item
// failure reporting. Implemented by ElasticIndexStore and, for tests and
// local development, MemoryIndexStore.
type IndexStore interface {
	// Index lifecycle

	// CreateIndex provisions a new physical index with the given schema.
	// The index is not bound to any alias.
	CreateIndex(ctx context.Context, name string, mapping, settings map[string]any) error

	// DeleteIndex removes a physical index. Deleting an absent index is
	// not an error so retried cleanup stays safe.
	DeleteIndex(ctx context.Context, name string) error

	// IndexExists reports whether an index or alias answers to name
	IndexExists(ctx context.Context, name string) (bool, error)

	// PutMapping updates the field mapping of the index behind name
	PutMapping(ctx context.Context, name string, mapping map[string]any) error

	// Refresh makes just-written documents visible to subsequent reads
	Refresh(ctx context.Context, name string) error

	// Alias indirection

	// UpdateAliases applies all actions as one atomic operation. Failure
	// surfaces as types.AliasRebindError and leaves bindings untouched.
	UpdateAliases(ctx context.Context, actions []AliasAction) error

	// GetAliasIndexes returns the physical indexes currently bound to the
	// alias, or types.AliasNotFoundError when nothing answers to it.
	GetAliasIndexes(ctx context.Context, alias string) ([]string, error)

	// Documents

	DocumentExists(ctx context.Context, index, id string) (bool, error)

	// IndexDocument inserts or fully replaces the document
	IndexDocument(ctx context.Context, index, id string, doc any, refresh bool) error

	// UpsertDocument inserts the document if absent, replaces its fields
	// if present
	UpsertDocument(ctx context.Context, index, id string, doc any, refresh bool) error

	// DeleteDocument removes the document; types.DocumentNotFoundError
	// when absent
	DeleteDocument(ctx context.Context, index, id string, refresh bool) error

	// GetDocument returns the raw document source, or
	// types.DocumentNotFoundError
	GetDocument(ctx context.Context, index, id string) (json.RawMessage, error)

	// Bulk inserts documents with create-only semantics: a document whose
	// id already exists fails individually. Any per-item failure fails the
	// whole call with types.BulkIndexError. Returns the success count.
	Bulk(ctx context.Context, index string, docs []BulkDoc) (int, error)

	// Search runs a query against the index or alias
	Search(ctx context.Context, index string, req SearchRequest) (*SearchResult, error)

	// Close releases backend resources
	Close() error
}
