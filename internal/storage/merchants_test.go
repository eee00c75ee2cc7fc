package storage_test

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	es "github.com/elastic/go-elasticsearch/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/merchantcrawl/internal/domain"
	"github.com/jonesrussell/merchantcrawl/internal/logger"
	"github.com/jonesrussell/merchantcrawl/internal/storage"
)

// newTestClient points an Elasticsearch client at a fake server.
func newTestClient(t *testing.T, handler http.Handler) (*es.Client, *httptest.Server) {
	t.Helper()

	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	client, err := es.NewClient(es.Config{Addresses: []string{srv.URL}})
	require.NoError(t, err)
	return client, srv
}

func testMerchant(id string) *domain.Merchant {
	return &domain.Merchant{
		ID:       id,
		SourceID: "kyoto",
		Name:     "Merchant " + id,
	}
}

func TestUpsertBatchCountsCreatedAndUpdated(t *testing.T) {
	t.Parallel()

	var bulkBody string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !strings.Contains(r.URL.Path, "_bulk") {
			http.NotFound(w, r)
			return
		}
		raw, _ := io.ReadAll(r.Body)
		bulkBody = string(raw)

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		fmt.Fprint(w, `{
			"errors": false,
			"items": [
				{"index": {"_id": "kyoto_00000001", "result": "created", "status": 201}},
				{"index": {"_id": "kyoto_00000002", "result": "updated", "status": 200}},
				{"index": {"_id": "kyoto_00000003", "result": "created", "status": 201}}
			]
		}`)
	}))

	store := storage.NewMerchantStore(client, "merchants", logger.NewNoOp())

	result, err := store.UpsertBatch(context.Background(), []*domain.Merchant{
		testMerchant("kyoto_00000001"),
		testMerchant("kyoto_00000002"),
		testMerchant("kyoto_00000003"),
	})
	require.NoError(t, err)

	assert.Equal(t, 2, result.Created)
	assert.Equal(t, 1, result.Updated)

	// Each merchant contributes an action line carrying its natural key.
	assert.Contains(t, bulkBody, `"_id":"kyoto_00000001"`)
	assert.Contains(t, bulkBody, `"_id":"kyoto_00000003"`)
}

func TestUpsertBatchReportsItemFailures(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		fmt.Fprint(w, `{
			"errors": true,
			"items": [
				{"index": {"_id": "kyoto_00000001", "result": "created", "status": 201}},
				{"index": {"_id": "kyoto_00000002", "status": 400, "error": {"type": "mapper_parsing_exception", "reason": "bad field"}}}
			]
		}`)
	}))

	store := storage.NewMerchantStore(client, "merchants", logger.NewNoOp())

	result, err := store.UpsertBatch(context.Background(), []*domain.Merchant{
		testMerchant("kyoto_00000001"),
		testMerchant("kyoto_00000002"),
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "1 of 2 items failed")
	assert.Equal(t, 1, result.Created, "successful items should still be counted")
}

func TestUpsertBatchEmptyIsNoOp(t *testing.T) {
	t.Parallel()

	var requests int
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requests++
	}))

	store := storage.NewMerchantStore(client, "merchants", logger.NewNoOp())

	result, err := store.UpsertBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Zero(t, result.Created)
	assert.Zero(t, result.Updated)
	assert.Zero(t, requests, "empty batch should not hit the cluster")
}

func TestGetMerchant(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Elastic-Product", "Elasticsearch")

		if strings.Contains(r.URL.Path, "missing") {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"found": false}`)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"found":   true,
			"_source": testMerchant("kyoto_00000001"),
		})
	}))

	store := storage.NewMerchantStore(client, "merchants", logger.NewNoOp())

	m, err := store.Get(context.Background(), "kyoto_00000001")
	require.NoError(t, err)
	assert.Equal(t, "kyoto_00000001", m.ID)
	assert.Equal(t, "kyoto", m.SourceID)

	_, err = store.Get(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrMerchantNotFound)
}

func TestCountBySource(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		fmt.Fprint(w, `{"count": 42}`)
	}))

	store := storage.NewMerchantStore(client, "merchants", logger.NewNoOp())

	count, err := store.CountBySource(context.Background(), "kyoto")
	require.NoError(t, err)
	assert.Equal(t, 42, count)
}
