// Package storage persists merchants and run history to Elasticsearch.
package storage

import (
	"fmt"

	es "github.com/elastic/go-elasticsearch/v8"

	"github.com/jonesrussell/merchantcrawl/internal/config"
	"github.com/jonesrussell/merchantcrawl/internal/logger"
)

// NewClient creates an Elasticsearch client from configuration and
// verifies connectivity with a ping.
func NewClient(cfg *config.ElasticsearchConfig, log logger.Interface) (*es.Client, error) {
	log.Debug("Connecting to Elasticsearch", "addresses", cfg.Addresses)

	clientConfig := es.Config{
		Addresses: cfg.Addresses,
	}
	if cfg.APIKey != "" {
		clientConfig.APIKey = cfg.APIKey
	} else if cfg.Username != "" && cfg.Password != "" {
		clientConfig.Username = cfg.Username
		clientConfig.Password = cfg.Password
	}

	client, err := es.NewClient(clientConfig)
	if err != nil {
		return nil, fmt.Errorf("failed to create Elasticsearch client: %w", err)
	}

	res, err := client.Ping()
	if err != nil {
		return nil, fmt.Errorf("failed to ping Elasticsearch: %w", err)
	}
	defer res.Body.Close()

	if res.IsError() {
		return nil, fmt.Errorf("error pinging Elasticsearch: %s", res.String())
	}

	return client, nil
}
