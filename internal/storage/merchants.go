package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	es "github.com/elastic/go-elasticsearch/v8"

	"github.com/jonesrussell/merchantcrawl/internal/domain"
	"github.com/jonesrussell/merchantcrawl/internal/logger"
)

// Timeouts for Elasticsearch operations.
const (
	DefaultBulkTimeout   = 30 * time.Second
	DefaultIndexTimeout  = 10 * time.Second
	DefaultSearchTimeout = 10 * time.Second
)

// MerchantStore indexes merchant documents keyed by their natural ID, so
// re-crawling the same source updates existing documents instead of
// duplicating them.
type MerchantStore struct {
	client *es.Client
	index  string
	logger logger.Interface
}

// NewMerchantStore creates a merchant store writing to the given index.
func NewMerchantStore(client *es.Client, index string, log logger.Interface) *MerchantStore {
	return &MerchantStore{
		client: client,
		index:  index,
		logger: log.WithComponent("merchant_store"),
	}
}

// UpsertResult reports the outcome of a bulk upsert.
type UpsertResult struct {
	Created int
	Updated int
}

// bulkResponse is the subset of the Bulk API response we need.
type bulkResponse struct {
	Errors bool `json:"errors"`
	Items  []map[string]struct {
		ID     string `json:"_id"`
		Result string `json:"result"`
		Status int    `json:"status"`
		Error  *struct {
			Type   string `json:"type"`
			Reason string `json:"reason"`
		} `json:"error"`
	} `json:"items"`
}

// UpsertBatch indexes a batch of merchants with the Bulk API and reports
// how many documents were created versus updated. Individual item
// failures are logged and counted as errors in the returned error.
func (s *MerchantStore) UpsertBatch(ctx context.Context, merchants []*domain.Merchant) (UpsertResult, error) {
	var result UpsertResult
	if len(merchants) == 0 {
		return result, nil
	}
	if s.client == nil {
		return result, errors.New("elasticsearch client is not initialized")
	}

	ctx, cancel := context.WithTimeout(ctx, DefaultBulkTimeout)
	defer cancel()

	var buf bytes.Buffer
	for _, m := range merchants {
		action := map[string]any{
			"index": map[string]any{"_index": s.index, "_id": m.ID},
		}
		if err := json.NewEncoder(&buf).Encode(action); err != nil {
			return result, fmt.Errorf("failed to encode bulk action: %w", err)
		}
		if err := json.NewEncoder(&buf).Encode(m); err != nil {
			return result, fmt.Errorf("failed to encode merchant %s: %w", m.ID, err)
		}
	}

	res, err := s.client.Bulk(
		bytes.NewReader(buf.Bytes()),
		s.client.Bulk.WithContext(ctx),
		s.client.Bulk.WithIndex(s.index),
	)
	if err != nil {
		return result, fmt.Errorf("bulk index failed: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return result, fmt.Errorf("bulk index returned error: %s", res.String())
	}

	var parsed bulkResponse
	if decodeErr := json.NewDecoder(res.Body).Decode(&parsed); decodeErr != nil {
		return result, fmt.Errorf("failed to decode bulk response: %w", decodeErr)
	}

	var failed int
	for _, item := range parsed.Items {
		for _, op := range item {
			switch {
			case op.Error != nil:
				failed++
				s.logger.Warn("Bulk item failed",
					"doc_id", op.ID,
					"status", op.Status,
					"error_type", op.Error.Type,
					"reason", op.Error.Reason)
			case op.Result == "created":
				result.Created++
			case op.Result == "updated":
				result.Updated++
			}
		}
	}

	s.logger.Debug("Bulk upsert complete",
		"index", s.index,
		"total", len(merchants),
		"created", result.Created,
		"updated", result.Updated,
		"failed", failed)

	if failed > 0 {
		return result, fmt.Errorf("bulk index: %d of %d items failed", failed, len(merchants))
	}
	return result, nil
}

// Get retrieves one merchant by its natural ID.
func (s *MerchantStore) Get(ctx context.Context, id string) (*domain.Merchant, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultIndexTimeout)
	defer cancel()

	res, err := s.client.Get(s.index, id, s.client.Get.WithContext(ctx))
	if err != nil {
		return nil, fmt.Errorf("failed to get merchant %s: %w", id, err)
	}
	defer res.Body.Close()

	if res.StatusCode == 404 {
		return nil, fmt.Errorf("%w: %s", ErrMerchantNotFound, id)
	}
	if res.IsError() {
		return nil, fmt.Errorf("get merchant %s returned error: %s", id, res.String())
	}

	var doc struct {
		Source domain.Merchant `json:"_source"`
	}
	if decodeErr := json.NewDecoder(res.Body).Decode(&doc); decodeErr != nil {
		return nil, fmt.Errorf("failed to decode merchant %s: %w", id, decodeErr)
	}
	return &doc.Source, nil
}

// CountBySource returns the number of merchant documents for a source.
func (s *MerchantStore) CountBySource(ctx context.Context, sourceID string) (int, error) {
	ctx, cancel := context.WithTimeout(ctx, DefaultSearchTimeout)
	defer cancel()

	query := map[string]any{
		"query": map[string]any{
			"term": map[string]any{"source_id": sourceID},
		},
	}
	body, err := json.Marshal(query)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal count query: %w", err)
	}

	res, err := s.client.Count(
		s.client.Count.WithContext(ctx),
		s.client.Count.WithIndex(s.index),
		s.client.Count.WithBody(bytes.NewReader(body)),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to count merchants for source %s: %w", sourceID, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return 0, fmt.Errorf("count returned error: %s", res.String())
	}

	var parsed struct {
		Count int `json:"count"`
	}
	if decodeErr := json.NewDecoder(res.Body).Decode(&parsed); decodeErr != nil {
		return 0, fmt.Errorf("failed to decode count response: %w", decodeErr)
	}
	return parsed.Count, nil
}
