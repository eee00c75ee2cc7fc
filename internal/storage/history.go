package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"

	es "github.com/elastic/go-elasticsearch/v8"

	"github.com/jonesrussell/merchantcrawl/internal/domain"
	"github.com/jonesrussell/merchantcrawl/internal/logger"
)

// HistoryStore records one document per ingestion run, keyed by run ID.
type HistoryStore struct {
	client *es.Client
	index  string
	logger logger.Interface
}

// NewHistoryStore creates a history store writing to the given index.
func NewHistoryStore(client *es.Client, index string, log logger.Interface) *HistoryStore {
	return &HistoryStore{
		client: client,
		index:  index,
		logger: log.WithComponent("history_store"),
	}
}

// SaveRun indexes a run result under its run ID.
func (s *HistoryStore) SaveRun(ctx context.Context, run *domain.RunResult) error {
	ctx, cancel := context.WithTimeout(ctx, DefaultIndexTimeout)
	defer cancel()

	body, err := json.Marshal(run)
	if err != nil {
		return fmt.Errorf("failed to marshal run %s: %w", run.RunID, err)
	}

	res, err := s.client.Index(
		s.index,
		bytes.NewReader(body),
		s.client.Index.WithContext(ctx),
		s.client.Index.WithDocumentID(run.RunID),
	)
	if err != nil {
		return fmt.Errorf("failed to index run %s: %w", run.RunID, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("index run %s returned error: %s", run.RunID, res.String())
	}

	s.logger.Debug("Run history saved", "run_id", run.RunID, "status", string(run.Status))
	return nil
}

// GetRun retrieves one run result by run ID.
func (s *HistoryStore) GetRun(ctx context.Context, runID string) (*domain.RunResult, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultIndexTimeout)
	defer cancel()

	res, err := s.client.Get(s.index, runID, s.client.Get.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to get run %s: %w", runID, err)
	}
	defer res.Body.Close()

	if res.StatusCode == 404 {
		return nil, fmt.Errorf("%w: %s", ErrRunNotFound, runID)
	}
	if res.IsError() {
		return nil, fmt.Errorf("get run %s returned error: %s", runID, res.String())
	}

	var doc struct {
		Source domain.RunResult `json:"_source"`
	}
	if decodeErr := json.NewDecoder(res.Body).Decode(&doc); decodeErr != nil {
		return nil, fmt.Errorf("failed to decode run %s: %w", runID, decodeErr)
	}
	return &doc.Source, nil
}

// RecentRuns returns up to limit runs, most recent first, optionally
// filtered to one source. An empty sourceID returns runs for all
// sources.
func (s *HistoryStore) RecentRuns(ctx context.Context, sourceID string, limit int) ([]*domain.RunResult, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultSearchTimeout)
	defer cancel()

	if limit <= 0 {
		limit = 10
	}

	query := map[string]any{
		"size": limit,
		"sort": []map[string]any{
			{"started_at": map[string]any{"order": "desc"}},
		},
	}
	if sourceID != "" {
		query["query"] = map[string]any{
			"term": map[string]any{"source_id": sourceID},
		}
	}

	body, err := json.Marshal(query)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal history query: %w", err)
	}

	res, err := s.client.Search(
		s.client.Search.WithContext(ctx),
		s.client.Search.WithIndex(s.index),
		s.client.Search.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return nil, fmt.Errorf("failed to search run history: %w", err)
	}
	defer res.Body.Close()

	if res.StatusCode == 404 {
		// The index does not exist until the first run completes.
		return nil, nil
	}
	if res.IsError() {
		return nil, fmt.Errorf("history search returned error: %s", res.String())
	}

	var parsed struct {
		Hits struct {
			Hits []struct {
				Source domain.RunResult `json:"_source"`
			} `json:"hits"`
		} `json:"hits"`
	}
	if decodeErr := json.NewDecoder(res.Body).Decode(&parsed); decodeErr != nil {
		return nil, fmt.Errorf("failed to decode history response: %w", decodeErr)
	}

	runs := make([]*domain.RunResult, 0, len(parsed.Hits.Hits))
	for i := range parsed.Hits.Hits {
		run := parsed.Hits.Hits[i].Source
		runs = append(runs, &run)
	}
	return runs, nil
}
