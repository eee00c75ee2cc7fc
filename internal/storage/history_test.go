package storage_test

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/merchantcrawl/internal/domain"
	"github.com/jonesrussell/merchantcrawl/internal/logger"
	"github.com/jonesrussell/merchantcrawl/internal/storage"
)

func TestSaveRunIndexesByRunID(t *testing.T) {
	t.Parallel()

	var path string
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path = r.URL.Path
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		fmt.Fprint(w, `{"result": "created"}`)
	}))

	store := storage.NewHistoryStore(client, "crawl_history", logger.NewNoOp())

	run := domain.NewRunResult("kyoto", "Kyoto Merchants")
	run.Complete(domain.RunStatusSuccess)

	require.NoError(t, store.SaveRun(context.Background(), run))
	assert.Equal(t, "/crawl_history/_doc/"+run.RunID, path)
}

func TestRecentRunsParsesHits(t *testing.T) {
	t.Parallel()

	var searchBody map[string]any
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&searchBody)

		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		fmt.Fprint(w, `{
			"hits": {"hits": [
				{"_source": {"run_id": "kyoto_aaaa1111", "source_id": "kyoto", "status": "success", "total_merchants": 60}},
				{"_source": {"run_id": "kyoto_bbbb2222", "source_id": "kyoto", "status": "partial", "total_merchants": 12}}
			]}
		}`)
	}))

	store := storage.NewHistoryStore(client, "crawl_history", logger.NewNoOp())

	runs, err := store.RecentRuns(context.Background(), "kyoto", 5)
	require.NoError(t, err)
	require.Len(t, runs, 2)

	assert.Equal(t, "kyoto_aaaa1111", runs[0].RunID)
	assert.Equal(t, domain.RunStatusSuccess, runs[0].Status)
	assert.Equal(t, domain.RunStatusPartial, runs[1].Status)

	// The query should filter by source and cap the result size.
	assert.EqualValues(t, 5, searchBody["size"])
	queryJSON, _ := json.Marshal(searchBody["query"])
	assert.Contains(t, string(queryJSON), "kyoto")
}

func TestRecentRunsMissingIndex(t *testing.T) {
	t.Parallel()

	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Elastic-Product", "Elasticsearch")
		w.WriteHeader(http.StatusNotFound)
		fmt.Fprint(w, `{"error": {"type": "index_not_found_exception"}}`)
	}))

	store := storage.NewHistoryStore(client, "crawl_history", logger.NewNoOp())

	runs, err := store.RecentRuns(context.Background(), "", 10)
	require.NoError(t, err, "a missing history index means no runs yet, not a failure")
	assert.Empty(t, runs)
}

func TestGetRun(t *testing.T) {
	t.Parallel()

	started := time.Now().Add(-time.Minute).UTC()
	client, _ := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Header().Set("X-Elastic-Product", "Elasticsearch")

		if strings.Contains(r.URL.Path, "missing") {
			w.WriteHeader(http.StatusNotFound)
			fmt.Fprint(w, `{"found": false}`)
			return
		}
		json.NewEncoder(w).Encode(map[string]any{
			"found": true,
			"_source": domain.RunResult{
				RunID:     "kyoto_aaaa1111",
				SourceID:  "kyoto",
				StartedAt: started,
				Status:    domain.RunStatusSuccess,
			},
		})
	}))

	store := storage.NewHistoryStore(client, "crawl_history", logger.NewNoOp())

	run, err := store.GetRun(context.Background(), "kyoto_aaaa1111")
	require.NoError(t, err)
	assert.Equal(t, "kyoto", run.SourceID)

	_, err = store.GetRun(context.Background(), "missing")
	assert.ErrorIs(t, err, storage.ErrRunNotFound)
}
