package common

import (
	"context"
	"fmt"

	"github.com/jonesrussell/merchantcrawl/internal/config"
	"github.com/jonesrussell/merchantcrawl/internal/crawler"
	"github.com/jonesrussell/merchantcrawl/internal/database"
	"github.com/jonesrussell/merchantcrawl/internal/extractor"
	"github.com/jonesrussell/merchantcrawl/internal/geocode"
	"github.com/jonesrussell/merchantcrawl/internal/job"
	"github.com/jonesrussell/merchantcrawl/internal/notify"
	"github.com/jonesrussell/merchantcrawl/internal/sources"
	"github.com/jonesrussell/merchantcrawl/internal/storage"
)

// Stores bundles the persistence layer shared by commands.
type Stores struct {
	Merchants   *storage.MerchantStore
	History     *storage.HistoryStore
	Checkpoints *database.CheckpointRepository
}

// NewStores connects to Elasticsearch and Postgres and prepares the
// indexes and tables the application writes to.
func (d *Deps) NewStores(ctx context.Context) (*Stores, error) {
	esClient, err := storage.NewClient(&d.Config.Elasticsearch, d.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Elasticsearch: %w", err)
	}

	if ensureErr := storage.EnsureIndexes(
		ctx,
		esClient,
		d.Config.Elasticsearch.MerchantIndex,
		d.Config.Elasticsearch.HistoryIndex,
		d.Logger,
	); ensureErr != nil {
		return nil, ensureErr
	}

	db, err := database.Connect(ctx, database.Config{
		Host:     d.Config.Database.Host,
		Port:     d.Config.Database.Port,
		User:     d.Config.Database.User,
		Password: d.Config.Database.Password,
		DBName:   d.Config.Database.DBName,
		SSLMode:  d.Config.Database.SSLMode,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Postgres: %w", err)
	}

	checkpoints := database.NewCheckpointRepository(db)
	if schemaErr := checkpoints.EnsureSchema(ctx); schemaErr != nil {
		return nil, schemaErr
	}

	return &Stores{
		Merchants:   storage.NewMerchantStore(esClient, d.Config.Elasticsearch.MerchantIndex, d.Logger),
		History:     storage.NewHistoryStore(esClient, d.Config.Elasticsearch.HistoryIndex, d.Logger),
		Checkpoints: checkpoints,
	}, nil
}

// NewEnricher builds the geocoding enricher, or a pass-through one when
// geocoding is disabled.
func (d *Deps) NewEnricher() (*geocode.Enricher, error) {
	if !d.Config.Geocoder.Enabled {
		return geocode.NewEnricher(nil, d.Logger), nil
	}

	geocoder, err := geocode.NewGoogleGeocoder(&d.Config.Geocoder, d.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create geocoder: %w", err)
	}

	var g geocode.Geocoder = geocoder
	if d.Config.Geocoder.CacheEnabled {
		g = geocode.NewCached(geocoder, d.Logger)
	}
	return geocode.NewEnricher(g, d.Logger), nil
}

// NewNotifier builds the Slack notifier, or a no-op one when no webhook
// is configured.
func (d *Deps) NewNotifier() notify.Notifier {
	if d.Config.Notifier.SlackWebhookURL == "" {
		return notify.NewNoOp()
	}
	return notify.NewSlack(
		d.Config.Notifier.SlackWebhookURL,
		notify.WithChannel(d.Config.Notifier.Channel),
		notify.WithUsername(d.Config.Notifier.Username),
	)
}

// NewIngestionJob assembles an ingestion job for one source.
func (d *Deps) NewIngestionJob(src *sources.Source, stores *Stores) (*job.IngestionJob, error) {
	ext, err := newExtractor(src, d.Config.Crawler, d)
	if err != nil {
		return nil, err
	}

	enricher, err := d.NewEnricher()
	if err != nil {
		return nil, err
	}

	return job.NewIngestionJob(job.Params{
		Source:      src,
		CrawlerCfg:  d.Config.Crawler,
		Extractor:   ext,
		Checkpoints: stores.Checkpoints,
		Merchants:   stores.Merchants,
		History:     stores.History,
		Enricher:    enricher,
		Notifier:    d.NewNotifier(),
		Logger:      d.Logger,
	})
}

func newExtractor(src *sources.Source, crawlerCfg config.CrawlerConfig, d *Deps) (crawler.Extractor, error) {
	ext, err := extractor.NewHTML(src, extractor.Options{
		UserAgent:      crawlerCfg.UserAgent,
		RequestTimeout: crawlerCfg.RequestTimeout,
	}, d.Logger)
	if err != nil {
		return nil, fmt.Errorf("failed to create extractor for source %s: %w", src.ID, err)
	}
	return ext, nil
}
