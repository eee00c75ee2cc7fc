package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	es "github.com/elastic/go-elasticsearch/v8"

	"github.com/jonesrussell/merchantcrawl/internal/logger"
)

// merchantMapping defines the merchant index schema.
var merchantMapping = map[string]any{
	"mappings": map[string]any{
		"properties": map[string]any{
			"merchant_id":    map[string]string{"type": "keyword"},
			"source_id":      map[string]string{"type": "keyword"},
			"source_name":    map[string]string{"type": "keyword"},
			"name":           map[string]string{"type": "text"},
			"address":        map[string]string{"type": "text"},
			"phone":          map[string]string{"type": "keyword"},
			"business_hours": map[string]string{"type": "text"},
			"closed_days":    map[string]string{"type": "text"},
			"detail_url":     map[string]string{"type": "keyword"},
			"website":        map[string]string{"type": "keyword"},
			"benefits":       map[string]string{"type": "text"},
			"description":    map[string]string{"type": "text"},
			"parking":        map[string]string{"type": "text"},
			"postal_code":    map[string]string{"type": "keyword"},
			"category":       map[string]string{"type": "keyword"},
			"latitude":       map[string]string{"type": "float"},
			"longitude":      map[string]string{"type": "float"},
			"geocoded_at":    map[string]string{"type": "date"},
			"scraped_at":     map[string]string{"type": "date"},
			"updated_at":     map[string]string{"type": "date"},
			"is_active":      map[string]string{"type": "boolean"},
		},
	},
}

// historyMapping defines the run history index schema.
var historyMapping = map[string]any{
	"mappings": map[string]any{
		"properties": map[string]any{
			"run_id":             map[string]string{"type": "keyword"},
			"source_id":          map[string]string{"type": "keyword"},
			"source_name":        map[string]string{"type": "keyword"},
			"started_at":         map[string]string{"type": "date"},
			"completed_at":       map[string]string{"type": "date"},
			"status":             map[string]string{"type": "keyword"},
			"total_merchants":    map[string]string{"type": "integer"},
			"new_merchants":      map[string]string{"type": "integer"},
			"updated_merchants":  map[string]string{"type": "integer"},
			"geocoded_merchants": map[string]string{"type": "integer"},
			"geocoding_errors":   map[string]string{"type": "integer"},
			"errors":             map[string]string{"type": "text"},
			"duration_seconds":   map[string]string{"type": "float"},
		},
	},
}

// EnsureIndexes creates the merchant and history indexes if they do not
// exist yet. Existing indexes are left untouched.
func EnsureIndexes(ctx context.Context, client *es.Client, merchantIndex, historyIndex string, log logger.Interface) error {
	for _, idx := range []struct {
		name    string
		mapping map[string]any
	}{
		{merchantIndex, merchantMapping},
		{historyIndex, historyMapping},
	} {
		if err := ensureIndex(ctx, client, idx.name, idx.mapping, log); err != nil {
			return err
		}
	}
	return nil
}

func ensureIndex(ctx context.Context, client *es.Client, name string, mapping map[string]any, log logger.Interface) error {
	exists, err := client.Indices.Exists(
		[]string{name},
		client.Indices.Exists.WithContext(ctx),
	)
	if err != nil {
		return fmt.Errorf("failed to check index %s: %w", name, err)
	}
	defer exists.Body.Close()

	if exists.StatusCode == http.StatusOK {
		return nil
	}

	body, err := json.Marshal(mapping)
	if err != nil {
		return fmt.Errorf("failed to marshal mapping for %s: %w", name, err)
	}

	res, err := client.Indices.Create(
		name,
		client.Indices.Create.WithContext(ctx),
		client.Indices.Create.WithBody(strings.NewReader(string(body))),
	)
	if err != nil {
		return fmt.Errorf("failed to create index %s: %w", name, err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return fmt.Errorf("create index %s returned error: %s", name, res.String())
	}

	log.Info("Created index", "index", name)
	return nil
}
