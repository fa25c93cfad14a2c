package index

import (
	"context"
	"errors"

	"github.com/doherty-labs/health-app-demo/pkg/common"
	"github.com/doherty-labs/health-app-demo/pkg/types"
	"github.com/rs/zerolog/log"
)

// Zero-downtime reindex protocol. A migration run walks
// begin -> populate -> end, holding the per-index migration lock for the
// whole run. Reads keep hitting the old generation through the read alias
// until end cuts it over atomically; failures anywhere after begin take the
// abort path, which restores the pre-migration alias topology and discards
// the half-built generation.

// BeginMigration acquires the migration lock, creates a fresh generation,
// and atomically repoints the write alias at it. The read alias is left
// untouched so the old generation keeps serving queries.
func (s *Service) BeginMigration(ctx context.Context) error {
	if err := s.lock.Acquire(ctx, s.lockKey(), common.RedisLockOptions{
		TtlS:     int(s.lockTTL.Seconds()),
		Blocking: true,
	}); err != nil {
		return err
	}

	newName := s.logical.NewGenerationName()
	if err := s.store.CreateIndex(ctx, newName, s.logical.Mapping, s.logical.Settings); err != nil {
		s.releaseLock()
		return err
	}

	actions := []AliasAction{
		{Type: AliasAdd, Alias: s.logical.WriteAlias(), Index: newName},
	}
	current, err := s.currentAliasIndexes(ctx, s.logical.WriteAlias())
	if err != nil {
		s.cleanupGeneration(ctx, newName)
		s.releaseLock()
		return err
	}
	for _, name := range current {
		actions = append(actions, AliasAction{Type: AliasRemove, Alias: s.logical.WriteAlias(), Index: name})
	}

	if err := s.store.UpdateAliases(ctx, actions); err != nil {
		s.cleanupGeneration(ctx, newName)
		s.releaseLock()
		return err
	}

	log.Info().
		Str("index", s.logical.Name).
		Str("generation", newName).
		Msg("migration started, write alias cut over")
	return nil
}

// EndMigration atomically repoints the read alias at the freshly populated
// generation(s), deletes the generations that dropped off the read alias,
// refreshes the new generation, and releases the lock. Deletion strictly
// follows cutover so in-flight reads never hit a missing index.
func (s *Service) EndMigration(ctx context.Context) error {
	defer s.releaseLock()

	previous, err := s.currentAliasIndexes(ctx, s.logical.ReadAlias())
	if err != nil {
		return err
	}
	migrated, err := s.currentAliasIndexes(ctx, s.logical.WriteAlias())
	if err != nil {
		return err
	}

	actions := []AliasAction{}
	for _, name := range previous {
		actions = append(actions, AliasAction{Type: AliasRemove, Alias: s.logical.ReadAlias(), Index: name})
	}
	for _, name := range migrated {
		actions = append(actions, AliasAction{Type: AliasAdd, Alias: s.logical.ReadAlias(), Index: name})
	}

	if err := s.store.UpdateAliases(ctx, actions); err != nil {
		return err
	}

	for _, name := range previous {
		if err := s.store.DeleteIndex(ctx, name); err != nil {
			return err
		}
	}

	if err := s.RefreshIndex(ctx); err != nil {
		return err
	}

	log.Info().
		Str("index", s.logical.Name).
		Strs("generations", migrated).
		Msg("migration finished, read alias cut over")
	return nil
}

// AbortMigration restores the pre-migration alias topology: the write alias
// is pointed back at the generation(s) still serving reads, and the
// half-built generation is deleted. Writes that landed on the discarded
// generation during the failed run are lost; this is a documented
// limitation of the protocol.
func (s *Service) AbortMigration(ctx context.Context) error {
	defer s.releaseLock()

	abandoned, err := s.currentAliasIndexes(ctx, s.logical.WriteAlias())
	if err != nil {
		return err
	}
	previous, err := s.currentAliasIndexes(ctx, s.logical.ReadAlias())
	if err != nil {
		return err
	}

	actions := []AliasAction{}
	for _, name := range abandoned {
		actions = append(actions, AliasAction{Type: AliasRemove, Alias: s.logical.WriteAlias(), Index: name})
	}
	for _, name := range previous {
		actions = append(actions, AliasAction{Type: AliasAdd, Alias: s.logical.WriteAlias(), Index: name})
	}

	if err := s.store.UpdateAliases(ctx, actions); err != nil {
		return err
	}

	for _, name := range abandoned {
		if err := s.store.DeleteIndex(ctx, name); err != nil {
			return err
		}
	}

	log.Warn().
		Str("index", s.logical.Name).
		Strs("abandoned", abandoned).
		Msg("migration aborted, previous topology restored")
	return nil
}

// currentAliasIndexes treats an unbound alias as an empty set so the very
// first migration of a logical index works against a blank backend.
func (s *Service) currentAliasIndexes(ctx context.Context, alias string) ([]string, error) {
	names, err := s.store.GetAliasIndexes(ctx, alias)
	if err != nil {
		var notFound *types.AliasNotFoundError
		if errors.As(err, &notFound) {
			return nil, nil
		}
		return nil, err
	}
	return names, nil
}

func (s *Service) cleanupGeneration(ctx context.Context, name string) {
	if err := s.store.DeleteIndex(ctx, name); err != nil {
		log.Error().Err(err).Str("generation", name).Msg("failed to delete orphaned generation")
	}
}

func (s *Service) releaseLock() {
	if err := s.lock.Release(s.lockKey()); err != nil {
		log.Error().Err(err).Str("index", s.logical.Name).Msg("failed to release migration lock")
	}
}

// WithMigration runs populate inside a begin/end migration pair. On error
// the abort path restores the pre-migration topology and the original error
// is returned to the caller.
func WithMigration(ctx context.Context, svc *Service, populate func(ctx context.Context) error) error {
	if err := svc.BeginMigration(ctx); err != nil {
		return err
	}

	if err := populate(ctx); err != nil {
		if abortErr := svc.AbortMigration(ctx); abortErr != nil {
			log.Error().Err(abortErr).Str("index", svc.logical.Name).Msg("failed to abort migration")
		}
		return err
	}

	return svc.EndMigration(ctx)
}

// Populator batches documents into fixed-size bulk calls during a reindex.
// The final partial chunk is flushed by Flush.
type Populator struct {
	svc       *Service
	chunkSize int
	buf       []Document
	count     int
}

func NewPopulator(svc *Service, chunkSize int) *Populator {
	if chunkSize <= 0 {
		chunkSize = types.DefaultReindexChunkSize
	}
	return &Populator{
		svc:       svc,
		chunkSize: chunkSize,
		buf:       make([]Document, 0, chunkSize),
	}
}

// Add buffers one document, issuing a bulk call whenever a full chunk has
// accumulated.
func (p *Populator) Add(ctx context.Context, doc Document) error {
	p.buf = append(p.buf, doc)
	if len(p.buf) == p.chunkSize {
		return p.flush(ctx)
	}
	return nil
}

// Flush writes out the remaining partial chunk
func (p *Populator) Flush(ctx context.Context) error {
	if len(p.buf) == 0 {
		return nil
	}
	return p.flush(ctx)
}

// Count returns the number of documents successfully bulk-added so far
func (p *Populator) Count() int {
	return p.count
}

func (p *Populator) flush(ctx context.Context) error {
	n, err := p.svc.BulkAdd(ctx, p.buf)
	p.count += n
	p.buf = p.buf[:0]
	return err
}
