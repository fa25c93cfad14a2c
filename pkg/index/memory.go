package index

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/doherty-labs/health-app-demo/pkg/types"
)

// MemoryIndexStore implements IndexStore entirely in memory. It backs tests
// and local development where no Elasticsearch cluster is available, and
// mirrors the backend semantics the engine relies on: atomic multi-action
// alias updates, create-only bulk with per-item failures, idempotent index
// deletion, and alias resolution on both read and write paths.
type MemoryIndexStore struct {
	mu      sync.RWMutex
	indexes map[string]*memoryIndex
	aliases map[string]map[string]bool // alias -> set of index names
}

type memoryIndex struct {
	mapping  map[string]any
	settings map[string]any
	docs     map[string]json.RawMessage
}

func NewMemoryIndexStore() *MemoryIndexStore {
	return &MemoryIndexStore{
		indexes: map[string]*memoryIndex{},
		aliases: map[string]map[string]bool{},
	}
}

// resolveRead returns the physical indexes behind name, which may be an
// alias or a concrete index.
func (s *MemoryIndexStore) resolveRead(name string) []*memoryIndex {
	if bound, ok := s.aliases[name]; ok && len(bound) > 0 {
		names := make([]string, 0, len(bound))
		for n := range bound {
			names = append(names, n)
		}
		sort.Strings(names)

		out := make([]*memoryIndex, 0, len(names))
		for _, n := range names {
			if idx, ok := s.indexes[n]; ok {
				out = append(out, idx)
			}
		}
		return out
	}
	if idx, ok := s.indexes[name]; ok {
		return []*memoryIndex{idx}
	}
	return nil
}

// resolveWrite returns the single physical index mutations on name land in.
// Writing through an alias bound to more than one generation is rejected,
// matching the backend.
func (s *MemoryIndexStore) resolveWrite(name string) (*memoryIndex, error) {
	targets := s.resolveRead(name)
	if len(targets) == 0 {
		return nil, &types.AliasNotFoundError{Alias: name}
	}
	if len(targets) > 1 {
		return nil, fmt.Errorf("write target %s resolves to %d indexes", name, len(targets))
	}
	return targets[0], nil
}

func (s *MemoryIndexStore) CreateIndex(_ context.Context, name string, mapping, settings map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.indexes[name]; ok {
		return fmt.Errorf("index already exists: %s", name)
	}
	s.indexes[name] = &memoryIndex{
		mapping:  mapping,
		settings: settings,
		docs:     map[string]json.RawMessage{},
	}
	return nil
}

func (s *MemoryIndexStore) DeleteIndex(_ context.Context, name string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.indexes, name)
	for _, bound := range s.aliases {
		delete(bound, name)
	}
	return nil
}

func (s *MemoryIndexStore) IndexExists(_ context.Context, name string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if _, ok := s.indexes[name]; ok {
		return true, nil
	}
	bound, ok := s.aliases[name]
	return ok && len(bound) > 0, nil
}

func (s *MemoryIndexStore) PutMapping(_ context.Context, name string, mapping map[string]any) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	targets := s.resolveRead(name)
	if len(targets) == 0 {
		return &types.AliasNotFoundError{Alias: name}
	}
	for _, idx := range targets {
		idx.mapping = mapping
	}
	return nil
}

func (s *MemoryIndexStore) Refresh(_ context.Context, name string) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.resolveRead(name)) == 0 {
		return &types.AliasNotFoundError{Alias: name}
	}
	return nil
}

func (s *MemoryIndexStore) UpdateAliases(_ context.Context, actions []AliasAction) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Validate the whole action list before touching anything so a failed
	// call leaves bindings exactly as they were.
	for _, a := range actions {
		if _, ok := s.indexes[a.Index]; !ok {
			return &types.AliasRebindError{Err: fmt.Errorf("no such index: %s", a.Index)}
		}
		if a.Type != AliasAdd && a.Type != AliasRemove {
			return &types.AliasRebindError{Err: fmt.Errorf("unknown alias action: %s", a.Type)}
		}
	}

	for _, a := range actions {
		switch a.Type {
		case AliasAdd:
			if s.aliases[a.Alias] == nil {
				s.aliases[a.Alias] = map[string]bool{}
			}
			s.aliases[a.Alias][a.Index] = true
		case AliasRemove:
			delete(s.aliases[a.Alias], a.Index)
		}
	}
	return nil
}

func (s *MemoryIndexStore) GetAliasIndexes(_ context.Context, alias string) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	bound, ok := s.aliases[alias]
	if !ok || len(bound) == 0 {
		return nil, &types.AliasNotFoundError{Alias: alias}
	}

	indexes := make([]string, 0, len(bound))
	for name := range bound {
		indexes = append(indexes, name)
	}
	sort.Strings(indexes)
	return indexes, nil
}

func (s *MemoryIndexStore) DocumentExists(_ context.Context, index, id string) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, idx := range s.resolveRead(index) {
		if _, ok := idx.docs[id]; ok {
			return true, nil
		}
	}
	return false, nil
}

func (s *MemoryIndexStore) IndexDocument(_ context.Context, index, id string, doc any, refresh bool) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	target, err := s.resolveWrite(index)
	if err != nil {
		return err
	}
	target.docs[id] = data
	return nil
}

func (s *MemoryIndexStore) UpsertDocument(_ context.Context, index, id string, doc any, refresh bool) error {
	data, err := json.Marshal(doc)
	if err != nil {
		return fmt.Errorf("failed to encode document: %w", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	target, err := s.resolveWrite(index)
	if err != nil {
		return err
	}

	if existing, ok := target.docs[id]; ok {
		// Merge incoming fields over the stored document
		var merged map[string]any
		if err := json.Unmarshal(existing, &merged); err != nil {
			return fmt.Errorf("failed to decode stored document: %w", err)
		}
		var incoming map[string]any
		if err := json.Unmarshal(data, &incoming); err != nil {
			return fmt.Errorf("failed to decode incoming document: %w", err)
		}
		for k, v := range incoming {
			merged[k] = v
		}
		data, err = json.Marshal(merged)
		if err != nil {
			return fmt.Errorf("failed to encode merged document: %w", err)
		}
	}

	target.docs[id] = data
	return nil
}

func (s *MemoryIndexStore) DeleteDocument(_ context.Context, index, id string, refresh bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	target, err := s.resolveWrite(index)
	if err != nil {
		return err
	}
	if _, ok := target.docs[id]; !ok {
		return &types.DocumentNotFoundError{Index: index, ID: id}
	}
	delete(target.docs, id)
	return nil
}

func (s *MemoryIndexStore) GetDocument(_ context.Context, index, id string) (json.RawMessage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, idx := range s.resolveRead(index) {
		if doc, ok := idx.docs[id]; ok {
			return doc, nil
		}
	}
	return nil, &types.DocumentNotFoundError{Index: index, ID: id}
}

func (s *MemoryIndexStore) Bulk(_ context.Context, index string, docs []BulkDoc) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	target, err := s.resolveWrite(index)
	if err != nil {
		return 0, err
	}

	success := 0
	failures := []types.BulkItemError{}
	for _, doc := range docs {
		if _, ok := target.docs[doc.ID]; ok {
			failures = append(failures, types.BulkItemError{
				ID:     doc.ID,
				Status: 409,
				Reason: "version conflict, document already exists",
			})
			continue
		}
		data, err := json.Marshal(doc.Source)
		if err != nil {
			failures = append(failures, types.BulkItemError{
				ID:     doc.ID,
				Status: 400,
				Reason: err.Error(),
			})
			continue
		}
		target.docs[doc.ID] = data
		success++
	}

	if len(failures) > 0 {
		return success, &types.BulkIndexError{Failures: failures}
	}
	return success, nil
}

func (s *MemoryIndexStore) Search(_ context.Context, index string, req SearchRequest) (*SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	targets := s.resolveRead(index)
	if len(targets) == 0 {
		return nil, &types.AliasNotFoundError{Alias: index}
	}

	term := extractQueryText(req.Query)

	hits := []SearchHit{}
	for _, idx := range targets {
		ids := make([]string, 0, len(idx.docs))
		for id := range idx.docs {
			ids = append(ids, id)
		}
		sort.Strings(ids)

		for _, id := range ids {
			doc := idx.docs[id]
			if term == "" || strings.Contains(strings.ToLower(string(doc)), strings.ToLower(term)) {
				hits = append(hits, SearchHit{ID: id, Score: 1.0, Source: doc})
			}
		}
	}

	if req.Size != nil && len(hits) > *req.Size {
		hits = hits[:*req.Size]
	}

	return &SearchResult{Total: len(hits), Hits: hits}, nil
}

// extractQueryText pulls the free-text term out of the subset of the query
// DSL the engine emits: multi_match, match, term, and match_all.
func extractQueryText(query map[string]any) string {
	if query == nil {
		return ""
	}
	if mm, ok := query["multi_match"].(map[string]any); ok {
		if q, ok := mm["query"].(string); ok {
			return q
		}
	}
	if m, ok := query["match"].(map[string]any); ok {
		for _, v := range m {
			switch val := v.(type) {
			case string:
				return val
			case map[string]any:
				if q, ok := val["query"].(string); ok {
					return q
				}
			}
		}
	}
	if t, ok := query["term"].(map[string]any); ok {
		for _, v := range t {
			if sv, ok := v.(string); ok {
				return sv
			}
		}
	}
	if b, ok := query["bool"].(map[string]any); ok {
		if must, ok := b["must"].([]any); ok {
			for _, clause := range must {
				if cm, ok := clause.(map[string]any); ok {
					if text := extractQueryText(cm); text != "" {
						return text
					}
				}
			}
		}
	}
	return ""
}

func (s *MemoryIndexStore) Close() error {
	return nil
}
