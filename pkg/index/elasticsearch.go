package index

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"

	"github.com/doherty-labs/health-app-demo/pkg/types"
)

// ElasticIndexStore implements IndexStore against an Elasticsearch cluster
// over its JSON REST API.
type ElasticIndexStore struct {
	baseURL    string
	username   string
	password   string
	httpClient *http.Client
}

func NewElasticIndexStore(cfg types.ElasticConfig) (*ElasticIndexStore, error) {
	if cfg.Host == "" {
		cfg.Host = "localhost"
	}
	if cfg.Port == 0 {
		cfg.Port = 9200
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = types.DefaultElasticRequestTimeout
	}

	baseURL := cfg.Host
	if !strings.Contains(baseURL, "://") {
		baseURL = fmt.Sprintf("http://%s:%d", cfg.Host, cfg.Port)
	}

	return &ElasticIndexStore{
		baseURL:  strings.TrimSuffix(baseURL, "/"),
		username: cfg.User,
		password: cfg.Password,
		httpClient: &http.Client{
			Timeout: cfg.Timeout,
		},
	}, nil
}

func (s *ElasticIndexStore) do(ctx context.Context, method, path string, body any) (*http.Response, error) {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("failed to encode request body: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
	if err != nil {
		return nil, err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.username != "" {
		req.SetBasicAuth(s.username, s.password)
	}

	return s.httpClient.Do(req)
}

func readError(resp *http.Response, op string) error {
	respBody, _ := io.ReadAll(resp.Body)
	return fmt.Errorf("failed to %s: %s", op, string(respBody))
}

func (s *ElasticIndexStore) CreateIndex(ctx context.Context, name string, mapping, settings map[string]any) error {
	body := map[string]any{}
	if mapping != nil {
		body["mappings"] = mapping
	}
	if settings != nil && len(settings) > 0 {
		body["settings"] = settings
	}

	resp, err := s.do(ctx, http.MethodPut, "/"+url.PathEscape(name), body)
	if err != nil {
		return fmt.Errorf("failed to create index: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return readError(resp, "create index")
	}
	return nil
}

func (s *ElasticIndexStore) DeleteIndex(ctx context.Context, name string) error {
	resp, err := s.do(ctx, http.MethodDelete, "/"+url.PathEscape(name)+"?ignore_unavailable=true", nil)
	if err != nil {
		return fmt.Errorf("failed to delete index: %w", err)
	}
	defer resp.Body.Close()

	// 404 is ok - index was already gone
	if resp.StatusCode >= 400 && resp.StatusCode != 404 {
		return readError(resp, "delete index")
	}
	return nil
}

func (s *ElasticIndexStore) IndexExists(ctx context.Context, name string) (bool, error) {
	resp, err := s.do(ctx, http.MethodHead, "/"+url.PathEscape(name), nil)
	if err != nil {
		return false, fmt.Errorf("failed to check index: %w", err)
	}
	resp.Body.Close()

	return resp.StatusCode == 200, nil
}

func (s *ElasticIndexStore) PutMapping(ctx context.Context, name string, mapping map[string]any) error {
	resp, err := s.do(ctx, http.MethodPut, "/"+url.PathEscape(name)+"/_mapping", mapping)
	if err != nil {
		return fmt.Errorf("failed to update mapping: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return readError(resp, "update mapping")
	}
	return nil
}

func (s *ElasticIndexStore) Refresh(ctx context.Context, name string) error {
	resp, err := s.do(ctx, http.MethodPost, "/"+url.PathEscape(name)+"/_refresh", nil)
	if err != nil {
		return fmt.Errorf("failed to refresh index: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return readError(resp, "refresh index")
	}
	return nil
}

func (s *ElasticIndexStore) UpdateAliases(ctx context.Context, actions []AliasAction) error {
	encoded := make([]map[string]any, 0, len(actions))
	for _, a := range actions {
		encoded = append(encoded, map[string]any{
			string(a.Type): map[string]any{
				"index": a.Index,
				"alias": a.Alias,
			},
		})
	}

	resp, err := s.do(ctx, http.MethodPost, "/_aliases", map[string]any{"actions": encoded})
	if err != nil {
		return &types.AliasRebindError{Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		respBody, _ := io.ReadAll(resp.Body)
		return &types.AliasRebindError{Err: fmt.Errorf("%s", string(respBody))}
	}
	return nil
}

func (s *ElasticIndexStore) GetAliasIndexes(ctx context.Context, alias string) ([]string, error) {
	resp, err := s.do(ctx, http.MethodGet, "/_alias/"+url.PathEscape(alias), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get alias: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == 404 {
		return nil, &types.AliasNotFoundError{Alias: alias}
	}
	if resp.StatusCode >= 400 {
		return nil, readError(resp, "get alias")
	}

	// Response keys are the physical index names
	var result map[string]json.RawMessage
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode alias response: %w", err)
	}

	indexes := make([]string, 0, len(result))
	for name := range result {
		indexes = append(indexes, name)
	}
	if len(indexes) == 0 {
		return nil, &types.AliasNotFoundError{Alias: alias}
	}
	return indexes, nil
}

func (s *ElasticIndexStore) DocumentExists(ctx context.Context, index, id string) (bool, error) {
	resp, err := s.do(ctx, http.MethodHead, fmt.Sprintf("/%s/_doc/%s", url.PathEscape(index), url.PathEscape(id)), nil)
	if err != nil {
		return false, fmt.Errorf("failed to check document: %w", err)
	}
	resp.Body.Close()

	return resp.StatusCode == 200, nil
}

func refreshParam(refresh bool) string {
	if refresh {
		return "?refresh=true"
	}
	return ""
}

func (s *ElasticIndexStore) IndexDocument(ctx context.Context, index, id string, doc any, refresh bool) error {
	path := fmt.Sprintf("/%s/_doc/%s%s", url.PathEscape(index), url.PathEscape(id), refreshParam(refresh))
	resp, err := s.do(ctx, http.MethodPut, path, doc)
	if err != nil {
		return fmt.Errorf("failed to index document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return readError(resp, "index document")
	}
	return nil
}

func (s *ElasticIndexStore) UpsertDocument(ctx context.Context, index, id string, doc any, refresh bool) error {
	path := fmt.Sprintf("/%s/_update/%s%s", url.PathEscape(index), url.PathEscape(id), refreshParam(refresh))
	resp, err := s.do(ctx, http.MethodPost, path, map[string]any{
		"doc":           doc,
		"doc_as_upsert": true,
	})
	if err != nil {
		return fmt.Errorf("failed to upsert document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return readError(resp, "upsert document")
	}
	return nil
}

func (s *ElasticIndexStore) DeleteDocument(ctx context.Context, index, id string, refresh bool) error {
	path := fmt.Sprintf("/%s/_doc/%s%s", url.PathEscape(index), url.PathEscape(id), refreshParam(refresh))
	resp, err := s.do(ctx, http.MethodDelete, path, nil)
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == 404 {
		return &types.DocumentNotFoundError{Index: index, ID: id}
	}
	if resp.StatusCode >= 400 {
		return readError(resp, "delete document")
	}
	return nil
}

func (s *ElasticIndexStore) GetDocument(ctx context.Context, index, id string) (json.RawMessage, error) {
	resp, err := s.do(ctx, http.MethodGet, fmt.Sprintf("/%s/_doc/%s", url.PathEscape(index), url.PathEscape(id)), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to get document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == 404 {
		return nil, &types.DocumentNotFoundError{Index: index, ID: id}
	}
	if resp.StatusCode >= 400 {
		return nil, readError(resp, "get document")
	}

	var result struct {
		Source json.RawMessage `json:"_source"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode document: %w", err)
	}
	return result.Source, nil
}

func (s *ElasticIndexStore) Bulk(ctx context.Context, index string, docs []BulkDoc) (int, error) {
	if len(docs) == 0 {
		return 0, nil
	}

	var buf bytes.Buffer
	for _, doc := range docs {
		action, err := json.Marshal(map[string]any{
			"create": map[string]any{"_id": doc.ID},
		})
		if err != nil {
			return 0, fmt.Errorf("failed to encode bulk action: %w", err)
		}
		source, err := json.Marshal(doc.Source)
		if err != nil {
			return 0, fmt.Errorf("failed to encode bulk document %s: %w", doc.ID, err)
		}
		buf.Write(action)
		buf.WriteByte('\n')
		buf.Write(source)
		buf.WriteByte('\n')
	}

	path := fmt.Sprintf("/%s/_bulk", url.PathEscape(index))
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, s.baseURL+path, &buf)
	if err != nil {
		return 0, err
	}
	req.Header.Set("Content-Type", "application/x-ndjson")
	if s.username != "" {
		req.SetBasicAuth(s.username, s.password)
	}

	resp, err := s.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("failed to bulk index: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return 0, readError(resp, "bulk index")
	}

	var result struct {
		Errors bool `json:"errors"`
		Items  []map[string]struct {
			ID     string `json:"_id"`
			Status int    `json:"status"`
			Error  *struct {
				Type   string `json:"type"`
				Reason string `json:"reason"`
			} `json:"error"`
		} `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return 0, fmt.Errorf("failed to decode bulk response: %w", err)
	}

	success := 0
	failures := []types.BulkItemError{}
	for _, item := range result.Items {
		for _, op := range item {
			if op.Error != nil {
				reason := op.Error.Reason
				if reason == "" {
					reason = op.Error.Type
				}
				failures = append(failures, types.BulkItemError{
					ID:     op.ID,
					Status: op.Status,
					Reason: reason,
				})
			} else {
				success++
			}
		}
	}

	if len(failures) > 0 {
		return success, &types.BulkIndexError{Failures: failures}
	}
	return success, nil
}

func (s *ElasticIndexStore) Search(ctx context.Context, index string, req SearchRequest) (*SearchResult, error) {
	body := map[string]any{}
	if req.Query != nil {
		body["query"] = req.Query
	}
	if req.Size != nil {
		body["size"] = *req.Size
	}
	if req.Aggs != nil {
		body["aggs"] = req.Aggs
	}
	if req.Suggest != nil {
		body["suggest"] = req.Suggest
	}

	resp, err := s.do(ctx, http.MethodPost, "/"+url.PathEscape(index)+"/_search", body)
	if err != nil {
		return nil, fmt.Errorf("failed to search: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		return nil, readError(resp, "search")
	}

	var result struct {
		Hits struct {
			Total struct {
				Value int `json:"value"`
			} `json:"total"`
			Hits []struct {
				ID     string          `json:"_id"`
				Score  float64         `json:"_score"`
				Source json.RawMessage `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
		Aggregations json.RawMessage `json:"aggregations"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode search results: %w", err)
	}

	hits := make([]SearchHit, 0, len(result.Hits.Hits))
	for _, hit := range result.Hits.Hits {
		hits = append(hits, SearchHit{ID: hit.ID, Score: hit.Score, Source: hit.Source})
	}

	return &SearchResult{
		Total:        result.Hits.Total.Value,
		Hits:         hits,
		Aggregations: result.Aggregations,
	}, nil
}

// Close closes the store (no-op for HTTP client)
func (s *ElasticIndexStore) Close() error {
	return nil
}
