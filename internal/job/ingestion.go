// Package job orchestrates ingestion runs: one run crawls one source,
// enriches and persists its merchants, checkpoints progress page by
// page, and records the outcome in run history.
package job

import (
	"context"
	"errors"
	"time"

	"github.com/jonesrussell/merchantcrawl/internal/config"
	"github.com/jonesrussell/merchantcrawl/internal/crawler"
	"github.com/jonesrussell/merchantcrawl/internal/database"
	"github.com/jonesrussell/merchantcrawl/internal/domain"
	"github.com/jonesrussell/merchantcrawl/internal/logger"
	"github.com/jonesrussell/merchantcrawl/internal/notify"
	"github.com/jonesrussell/merchantcrawl/internal/ratelimit"
	"github.com/jonesrussell/merchantcrawl/internal/sources"
	"github.com/jonesrussell/merchantcrawl/internal/storage"
)

// CheckpointStore persists per-source crawl progress.
type CheckpointStore interface {
	Get(ctx context.Context, sourceID string) (*domain.Checkpoint, error)
	Save(ctx context.Context, cp *domain.Checkpoint) error
	Clear(ctx context.Context, sourceID string) error
}

// MerchantStore persists merchant batches.
type MerchantStore interface {
	UpsertBatch(ctx context.Context, merchants []*domain.Merchant) (storage.UpsertResult, error)
}

// HistoryStore records terminal run results.
type HistoryStore interface {
	SaveRun(ctx context.Context, run *domain.RunResult) error
}

// Enricher geocodes merchant batches before persistence.
type Enricher interface {
	EnrichBatch(ctx context.Context, merchants []*domain.Merchant) (geocoded, failed int, err error)
}

// Params holds the dependencies for an ingestion job.
type Params struct {
	Source      *sources.Source
	CrawlerCfg  config.CrawlerConfig
	Extractor   crawler.Extractor
	Checkpoints CheckpointStore
	Merchants   MerchantStore
	History     HistoryStore
	Enricher    Enricher
	Notifier    notify.Notifier
	Logger      logger.Interface
}

// IngestionJob runs one source end to end. A job instance is single
// use, like the controller it drives.
type IngestionJob struct {
	source      *sources.Source
	crawlerCfg  config.CrawlerConfig
	extractor   crawler.Extractor
	checkpoints CheckpointStore
	merchants   MerchantStore
	history     HistoryStore
	enricher    Enricher
	notifier    notify.Notifier
	logger      logger.Interface

	run *domain.RunResult

	// checkpoint state, mutated only from the controller's goroutine
	completedPages []int
	lastMerchantID string
	persistErrs    []error
	enrichFailed   bool
}

// NewIngestionJob creates a job for one source.
func NewIngestionJob(p Params) (*IngestionJob, error) {
	if p.Source == nil || p.Extractor == nil {
		return nil, crawler.ErrInvalidConfig
	}
	if p.Notifier == nil {
		p.Notifier = notify.NewNoOp()
	}

	return &IngestionJob{
		source:      p.Source,
		crawlerCfg:  p.CrawlerCfg,
		extractor:   p.Extractor,
		checkpoints: p.Checkpoints,
		merchants:   p.Merchants,
		history:     p.History,
		enricher:    p.Enricher,
		notifier:    p.Notifier,
		logger:      p.Logger.WithComponent("ingestion").WithSource(p.Source.ID),
	}, nil
}

// Run executes the ingestion run and returns its result. The result is
// always non-nil and always in a terminal state; the error reports why
// a run failed or was cut short.
func (j *IngestionJob) Run(ctx context.Context) (*domain.RunResult, error) {
	j.run = domain.NewRunResult(j.source.ID, j.source.Name)
	runLog := j.logger.WithRunID(j.run.RunID)
	runLog.Info("Ingestion run starting", "source_name", j.source.Name)

	if err := j.notifier.NotifyStart(ctx, j.run); err != nil {
		runLog.Warn("Start notification failed", "error", err)
	}
	j.run.Status = domain.RunStatusRunning

	startPage := j.resumePage(ctx, runLog)

	controller, err := crawler.New(
		j.controllerConfig(),
		j.extractor,
		j.limiter(),
		j.flushBatch(ctx, runLog),
		j.pageComplete(ctx, runLog),
		j.logger,
	)
	if err != nil {
		return j.finish(ctx, runLog, domain.RunStatusFailed, err)
	}

	crawlErr := controller.Run(ctx, startPage)

	switch {
	case crawlErr != nil:
		return j.finish(ctx, runLog, domain.RunStatusFailed, crawlErr)
	case len(j.persistErrs) > 0:
		return j.finish(ctx, runLog, domain.RunStatusFailed,
			crawler.PersistenceError(errors.Join(j.persistErrs...)))
	case j.enrichFailed:
		return j.finish(ctx, runLog, domain.RunStatusPartial, nil)
	default:
		return j.finish(ctx, runLog, domain.RunStatusSuccess, nil)
	}
}

// resumePage loads the checkpoint and decides where the crawl starts.
func (j *IngestionJob) resumePage(ctx context.Context, runLog logger.Interface) int {
	if j.checkpoints == nil {
		return 0
	}

	cp, err := j.checkpoints.Get(ctx, j.source.ID)
	if err != nil {
		if !errors.Is(err, database.ErrCheckpointNotFound) {
			runLog.Warn("Checkpoint load failed, starting fresh", "error", err)
		}
		return 0
	}

	j.completedPages = cp.CompletedPages
	resume := cp.ResumePage()
	if resume > 0 {
		runLog.Info("Resuming from checkpoint",
			"resume_page", resume,
			"completed_pages", len(cp.CompletedPages),
			"total_saved", cp.TotalSaved,
		)
	}
	return resume
}

func (j *IngestionJob) controllerConfig() crawler.Config {
	cfg := crawler.Config{
		SourceID:          j.source.ID,
		StartPage:         j.source.StartPage,
		EndPage:           j.source.EndPage,
		MaxEmptyPages:     j.source.MaxEmptyPages,
		MaxDuplicatePages: j.source.MaxDuplicatePages,
		BatchSize:         j.crawlerCfg.BatchSize,
	}
	if cfg.MaxEmptyPages <= 0 {
		cfg.MaxEmptyPages = j.crawlerCfg.MaxEmptyPages
	}
	if cfg.MaxDuplicatePages <= 0 {
		cfg.MaxDuplicatePages = j.crawlerCfg.MaxDuplicatePages
	}
	return cfg
}

// limiter builds the pacing limiter, preferring per-source overrides.
func (j *IngestionJob) limiter() *ratelimit.Limiter {
	rl := j.source.RateLimit
	switch {
	case rl.RequestsPerSecond > 0:
		return ratelimit.NewPerSecond(rl.RequestsPerSecond)
	case rl.MinWait > 0 || rl.MaxWait > 0:
		return ratelimit.New(rl.MinWait, rl.MaxWait)
	case j.crawlerCfg.RequestsPerSecond > 0:
		return ratelimit.NewPerSecond(j.crawlerCfg.RequestsPerSecond)
	default:
		return ratelimit.New(j.crawlerCfg.MinWait, j.crawlerCfg.MaxWait)
	}
}

// flushBatch enriches and persists one batch, accumulating run counters.
func (j *IngestionJob) flushBatch(ctx context.Context, runLog logger.Interface) crawler.FlushFunc {
	return func(batch []*domain.Merchant) error {
		if j.enricher != nil {
			geocoded, failed, enrichErr := j.enricher.EnrichBatch(ctx, batch)
			j.run.GeocodedCount += geocoded
			j.run.GeocodeErrors += failed
			if failed > 0 {
				j.enrichFailed = true
			}
			if enrichErr != nil && ctx.Err() == nil {
				j.enrichFailed = true
				runLog.Error("Batch enrichment failed", "error", enrichErr)
			}
		}

		result, err := j.merchants.UpsertBatch(ctx, batch)
		j.run.TotalMerchants += result.Created + result.Updated
		j.run.NewMerchants += result.Created
		j.run.UpdatedCount += result.Updated
		if len(batch) > 0 {
			j.lastMerchantID = batch[len(batch)-1].ID
		}
		if err != nil {
			j.persistErrs = append(j.persistErrs, err)
			return err
		}
		return nil
	}
}

// pageComplete checkpoints completed-through progress after each page.
func (j *IngestionJob) pageComplete(ctx context.Context, runLog logger.Interface) crawler.PageCompleteFunc {
	return func(pageNum int) error {
		if j.checkpoints == nil {
			return nil
		}

		j.completedPages = append(j.completedPages, pageNum)
		cp := &domain.Checkpoint{
			SourceID:       j.source.ID,
			CompletedPages: j.completedPages,
			TotalSaved:     j.run.TotalMerchants,
			LastMerchantID: j.lastMerchantID,
			UpdatedAt:      time.Now(),
		}
		if err := j.checkpoints.Save(ctx, cp); err != nil {
			runLog.Error("Checkpoint save failed", "page", pageNum, "error", err)
			return err
		}
		return nil
	}
}

// finish moves the run to its terminal state, writes history, clears
// the checkpoint on success, and notifies. History and notification
// failures are logged, never returned: the run outcome is already
// decided.
func (j *IngestionJob) finish(
	ctx context.Context,
	runLog logger.Interface,
	status domain.RunStatus,
	cause error,
) (*domain.RunResult, error) {
	if cause != nil {
		j.run.AddError(cause.Error())
	}
	j.run.Complete(status)

	runLog.Info("Ingestion run finished",
		"status", string(j.run.Status),
		"merchants", j.run.TotalMerchants,
		"new", j.run.NewMerchants,
		"updated", j.run.UpdatedCount,
		"geocoded", j.run.GeocodedCount,
		"geocode_errors", j.run.GeocodeErrors,
		"duration_seconds", j.run.DurationSeconds,
	)

	// History writes and checkpoint clears must survive a canceled run
	// context.
	finishCtx := context.WithoutCancel(ctx)

	if j.history != nil {
		if err := j.history.SaveRun(finishCtx, j.run); err != nil {
			runLog.Error("Run history save failed", "error", err)
		}
	}

	if status == domain.RunStatusSuccess && j.checkpoints != nil {
		if err := j.checkpoints.Clear(finishCtx, j.source.ID); err != nil {
			runLog.Error("Checkpoint clear failed", "error", err)
		}
	}

	var notifyErr error
	if cause != nil {
		notifyErr = j.notifier.NotifyError(finishCtx, j.run, cause)
	} else {
		notifyErr = j.notifier.NotifyComplete(finishCtx, j.run)
	}
	if notifyErr != nil {
		runLog.Warn("Completion notification failed", "error", notifyErr)
	}

	return j.run, cause
}
