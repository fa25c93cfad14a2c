package index

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/doherty-labs/health-app-demo/pkg/common"
	"github.com/doherty-labs/health-app-demo/pkg/types"
	"github.com/rs/zerolog/log"
)

// Document is anything addressable by its system-of-record primary id
type Document interface {
	DocumentID() string
}

// Service is the per-entity sync facade between the system-of-record and
// the search index. All mutations target the write alias, all reads target
// the read alias, and every operation starts with an explicit EnsureIndex
// so a brand-new entity type provisions itself on first use.
type Service struct {
	logical   LogicalIndex
	store     IndexStore
	lock      *common.RedisLock
	lockTTL   time.Duration
	chunkSize int
}

func NewService(logical LogicalIndex, store IndexStore, lock *common.RedisLock, cfg types.IndexConfig) *Service {
	lockTTL := cfg.MigrationLockTTL
	if lockTTL <= 0 {
		lockTTL = types.DefaultMigrationLockTTL
	}
	chunkSize := cfg.ChunkSize
	if chunkSize <= 0 {
		chunkSize = types.DefaultReindexChunkSize
	}
	return &Service{
		logical:   logical,
		store:     store,
		lock:      lock,
		lockTTL:   lockTTL,
		chunkSize: chunkSize,
	}
}

// Populator returns a bulk populator sized to the configured reindex chunk
func (s *Service) Populator() *Populator {
	return NewPopulator(s, s.chunkSize)
}

// Logical returns the logical index definition this service fronts
func (s *Service) Logical() LogicalIndex {
	return s.logical
}

func (s *Service) lockKey() string {
	return common.Keys.IndexMigrationLock(s.logical.Name)
}

// EnsureIndex provisions the logical index if and only if nothing currently
// answers the write alias. Idempotent; called unconditionally at the start
// of every operation.
func (s *Service) EnsureIndex(ctx context.Context) error {
	exists, err := s.store.IndexExists(ctx, s.logical.WriteAlias())
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return s.CreateIndex(ctx)
}

// CreateIndex allocates a fresh physical generation and atomically binds
// both aliases to it.
func (s *Service) CreateIndex(ctx context.Context) error {
	name := s.logical.NewGenerationName()
	if err := s.store.CreateIndex(ctx, name, s.logical.Mapping, s.logical.Settings); err != nil {
		return err
	}

	return s.store.UpdateAliases(ctx, []AliasAction{
		{Type: AliasAdd, Alias: s.logical.ReadAlias(), Index: name},
		{Type: AliasAdd, Alias: s.logical.WriteAlias(), Index: name},
	})
}

// DeleteIndex removes every generation behind the write alias. Used by the
// full reset flow; absent generations are tolerated.
func (s *Service) DeleteIndex(ctx context.Context) error {
	names, err := s.store.GetAliasIndexes(ctx, s.logical.WriteAlias())
	if err != nil {
		var notFound *types.AliasNotFoundError
		if errors.As(err, &notFound) {
			return nil
		}
		return err
	}
	for _, name := range names {
		if err := s.store.DeleteIndex(ctx, name); err != nil {
			return err
		}
	}
	return nil
}

// UpdateMapping pushes the current mapping onto the write alias
func (s *Service) UpdateMapping(ctx context.Context) error {
	if err := s.EnsureIndex(ctx); err != nil {
		return err
	}
	return s.store.PutMapping(ctx, s.logical.WriteAlias(), s.logical.Mapping)
}

// RefreshIndex makes just-written documents visible to reads
func (s *Service) RefreshIndex(ctx context.Context) error {
	return s.store.Refresh(ctx, s.logical.WriteAlias())
}

// Add inserts the document unless one with the same id already exists.
// Create is first-writer-wins, not an overwrite.
func (s *Service) Add(ctx context.Context, doc Document) error {
	if err := s.EnsureIndex(ctx); err != nil {
		return err
	}

	exists, err := s.store.DocumentExists(ctx, s.logical.WriteAlias(), doc.DocumentID())
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	return s.store.IndexDocument(ctx, s.logical.WriteAlias(), doc.DocumentID(), doc, true)
}

// Update upserts the document: inserts if absent, replaces fields if
// present. Covers the race where a create's deferred index write has not
// landed yet.
func (s *Service) Update(ctx context.Context, doc Document) error {
	if err := s.EnsureIndex(ctx); err != nil {
		return err
	}
	return s.store.UpsertDocument(ctx, s.logical.WriteAlias(), doc.DocumentID(), doc, true)
}

// Remove deletes the document; removing an absent id is a no-op
func (s *Service) Remove(ctx context.Context, id string) error {
	if err := s.EnsureIndex(ctx); err != nil {
		return err
	}

	exists, err := s.store.DocumentExists(ctx, s.logical.WriteAlias(), id)
	if err != nil {
		return err
	}
	if !exists {
		return nil
	}
	return s.store.DeleteDocument(ctx, s.logical.WriteAlias(), id, true)
}

// Get fetches the raw document source by id from the read alias
func (s *Service) Get(ctx context.Context, id string) (json.RawMessage, error) {
	if err := s.EnsureIndex(ctx); err != nil {
		return nil, err
	}
	return s.store.GetDocument(ctx, s.logical.ReadAlias(), id)
}

// Search queries the read alias. During a migration this still serves the
// pre-migration generation until the read alias is cut over.
func (s *Service) Search(ctx context.Context, req SearchRequest) (*SearchResult, error) {
	if err := s.EnsureIndex(ctx); err != nil {
		return nil, err
	}
	return s.store.Search(ctx, s.logical.ReadAlias(), req)
}

// BulkAdd inserts documents with create-only semantics. Any per-document
// failure fails the whole call with types.BulkIndexError; callers must not
// assume partial success.
func (s *Service) BulkAdd(ctx context.Context, docs []Document) (int, error) {
	if err := s.EnsureIndex(ctx); err != nil {
		return 0, err
	}

	bulk := make([]BulkDoc, 0, len(docs))
	for _, doc := range docs {
		bulk = append(bulk, BulkDoc{ID: doc.DocumentID(), Source: doc})
	}

	count, err := s.store.Bulk(ctx, s.logical.WriteAlias(), bulk)
	if err != nil {
		return count, err
	}

	log.Debug().
		Str("index", s.logical.Name).
		Int("count", count).
		Msg("bulk added documents")
	return count, nil
}
