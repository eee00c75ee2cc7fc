package crawler

import (
	"context"
	"errors"
	"sync"

	"github.com/jonesrussell/merchantcrawl/internal/domain"
	"github.com/jonesrussell/merchantcrawl/internal/logger"
	"github.com/jonesrussell/merchantcrawl/internal/ratelimit"
)

// Default termination thresholds for auto-detect pagination.
const (
	DefaultMaxEmptyPages     = 3
	DefaultMaxDuplicatePages = 3
)

// Extractor is the per-source capability that turns a page number into
// record links and a record link into a parsed merchant. Fetch-level
// retries are the extractor's responsibility, not the controller's.
// A ListPage error wrapping ErrSession aborts the crawl; any other
// error is treated as an empty page and logged.
type Extractor interface {
	ListPage(ctx context.Context, pageNum int) ([]string, error)
	FetchRecord(ctx context.Context, link string) (*domain.Merchant, error)
}

// Status is the controller's lifecycle state.
type Status string

const (
	// StatusIdle means the controller has not started.
	StatusIdle Status = "idle"
	// StatusRunning means the page loop is in progress.
	StatusRunning Status = "running"
	// StatusCompleted means a termination condition fired normally.
	StatusCompleted Status = "completed"
	// StatusAborted means the crawl stopped on an unrecoverable
	// condition or cancellation.
	StatusAborted Status = "aborted"
)

// Config holds the pagination parameters for one source crawl.
type Config struct {
	// SourceID identifies the source being crawled.
	SourceID string
	// StartPage is the first page to fetch. Defaults to 1.
	StartPage int
	// EndPage is the known last page. Zero enables auto-detect mode,
	// where empty- and duplicate-page streaks terminate the crawl.
	EndPage int
	// MaxEmptyPages is the consecutive-empty-page streak that ends an
	// auto-detect crawl. Defaults to DefaultMaxEmptyPages.
	MaxEmptyPages int
	// MaxDuplicatePages is the consecutive-duplicate-page streak that
	// ends an auto-detect crawl. Defaults to DefaultMaxDuplicatePages.
	MaxDuplicatePages int
	// BatchSize is the accumulator flush threshold.
	BatchSize int
}

// PageCompleteFunc is invoked after every link on a page has been
// processed, before the next page is fetched. Errors are logged and do
// not stop the crawl.
type PageCompleteFunc func(pageNum int) error

// Controller walks a source's listing pages in increasing order, feeding
// discovered links through dedup and batch accumulation until a
// termination condition fires. One controller serves exactly one run of
// one source; it is not reusable.
type Controller struct {
	cfg       Config
	extractor Extractor
	limiter   *ratelimit.Limiter
	dedup     *Deduplicator
	accum     *Accumulator
	onPage    PageCompleteFunc
	metrics   *Metrics
	logger    logger.Interface

	mu     sync.RWMutex
	status Status
}

// New creates a controller for one source crawl. flush receives each
// full or final batch; onPage is invoked once per completed page.
func New(
	cfg Config,
	extractor Extractor,
	limiter *ratelimit.Limiter,
	flush FlushFunc,
	onPage PageCompleteFunc,
	log logger.Interface,
) (*Controller, error) {
	if extractor == nil || limiter == nil {
		return nil, ErrInvalidConfig
	}
	if cfg.StartPage <= 0 {
		cfg.StartPage = 1
	}
	if cfg.MaxEmptyPages <= 0 {
		cfg.MaxEmptyPages = DefaultMaxEmptyPages
	}
	if cfg.MaxDuplicatePages <= 0 {
		cfg.MaxDuplicatePages = DefaultMaxDuplicatePages
	}

	return &Controller{
		cfg:       cfg,
		extractor: extractor,
		limiter:   limiter,
		dedup:     NewDeduplicator(),
		accum:     NewAccumulator(cfg.BatchSize, flush, log),
		onPage:    onPage,
		metrics:   NewMetrics(),
		logger:    log.WithComponent("crawler").WithSource(cfg.SourceID),
	}, nil
}

// Status returns the controller's current lifecycle state.
func (c *Controller) Status() Status {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.status == "" {
		return StatusIdle
	}
	return c.status
}

// Metrics returns a snapshot of the crawl counters.
func (c *Controller) Metrics() Metrics {
	return c.metrics.Snapshot()
}

func (c *Controller) setStatus(s Status) {
	c.mu.Lock()
	c.status = s
	c.mu.Unlock()
}

// Run executes the page loop starting at startPage, or at the
// configured first page when startPage is zero. It returns nil on
// normal termination, the context error on cancellation, and a typed
// session error when the source is unusable. The accumulator is always
// drained before Run returns, so records parsed from completed pages
// reach the flush callback exactly once.
func (c *Controller) Run(ctx context.Context, startPage int) error {
	c.mu.Lock()
	if c.status != "" && c.status != StatusIdle {
		c.mu.Unlock()
		return ErrAlreadyStarted
	}
	c.status = StatusRunning
	c.mu.Unlock()

	if startPage <= 0 {
		startPage = c.cfg.StartPage
	}
	autoDetect := c.cfg.EndPage == 0

	c.logger.Info("Crawl starting",
		"start_page", startPage,
		"end_page", c.cfg.EndPage,
		"auto_detect", autoDetect,
	)

	var (
		emptyStreak     int
		duplicateStreak int
		previousLinks   map[string]struct{}
	)

	for pageNum := startPage; ; pageNum++ {
		if !autoDetect && pageNum > c.cfg.EndPage {
			c.logger.Info("Reached configured end page", "end_page", c.cfg.EndPage)
			break
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return c.abort(err)
		}

		links, err := c.extractor.ListPage(ctx, pageNum)
		if err != nil {
			if isFatal(ctx, err) {
				c.logger.Error("Source unusable, aborting crawl",
					"page", pageNum, "error", err)
				return c.abort(err)
			}
			// A transient listing failure counts as an empty page.
			c.logger.Warn("Listing page fetch failed",
				"page", pageNum, "error", err)
			links = nil
		}
		c.metrics.addPage(len(links) == 0)

		if autoDetect {
			if len(links) == 0 {
				emptyStreak++
				c.logger.Info("Empty listing page",
					"page", pageNum,
					"empty_streak", emptyStreak,
					"max_empty_pages", c.cfg.MaxEmptyPages,
				)
				if emptyStreak >= c.cfg.MaxEmptyPages {
					c.logger.Info("Empty-page streak reached, stopping")
					break
				}
			} else {
				emptyStreak = 0

				current := linkSet(links)
				if previousLinks != nil && setsEqual(current, previousLinks) {
					duplicateStreak++
					c.logger.Info("Duplicate listing page",
						"page", pageNum,
						"duplicate_streak", duplicateStreak,
						"max_duplicate_pages", c.cfg.MaxDuplicatePages,
					)
					if duplicateStreak >= c.cfg.MaxDuplicatePages {
						c.logger.Info("Duplicate-page streak reached, stopping")
						break
					}
				} else {
					duplicateStreak = 0
				}
				previousLinks = current
			}
		}

		if err := c.processPage(ctx, pageNum, links); err != nil {
			return c.abort(err)
		}

		if c.onPage != nil {
			if cbErr := c.onPage(pageNum); cbErr != nil {
				c.logger.Error("Page-complete callback failed",
					"page", pageNum, "error", cbErr)
			}
		}

		// Interrupts are honored between pages, never mid-page, so the
		// checkpoint always reflects a consistent completed-through
		// state.
		select {
		case <-ctx.Done():
			return c.abort(ctx.Err())
		default:
		}
	}

	c.accum.Drain()
	c.setStatus(StatusCompleted)

	snap := c.metrics.Snapshot()
	c.logger.Info("Crawl completed",
		"pages", snap.PagesVisited,
		"records", snap.RecordsParsed,
		"parse_failures", snap.ParseFailures,
		"deduped", snap.LinksDeduped,
	)
	return nil
}

// processPage fetches and accumulates each not-yet-seen link on a page,
// in discovery order.
func (c *Controller) processPage(ctx context.Context, pageNum int, links []string) error {
	deduped := 0
	for _, link := range links {
		if !c.dedup.MarkIfNew(link) {
			deduped++
			continue
		}

		if err := c.limiter.Wait(ctx); err != nil {
			return err
		}

		record, err := c.extractor.FetchRecord(ctx, link)
		if err != nil {
			if isFatal(ctx, err) {
				return err
			}
			c.logger.Warn("Record skipped",
				"page", pageNum, "link", link, "error", err)
			c.metrics.addRecord(false)
			continue
		}

		c.metrics.addRecord(true)
		c.accum.Add(record)
	}
	c.metrics.addLinks(len(links), deduped)
	return nil
}

// abort drains the accumulator so already-parsed records from completed
// pages are not lost, marks the controller aborted, and returns err.
func (c *Controller) abort(err error) error {
	c.accum.Drain()
	c.setStatus(StatusAborted)
	return err
}

// isFatal reports whether an extractor error should abort the crawl
// rather than be contained at page or record level.
func isFatal(ctx context.Context, err error) bool {
	if ctx.Err() != nil {
		return true
	}
	return errors.Is(err, ErrSession)
}

func linkSet(links []string) map[string]struct{} {
	set := make(map[string]struct{}, len(links))
	for _, l := range links {
		set[l] = struct{}{}
	}
	return set
}

func setsEqual(a, b map[string]struct{}) bool {
	if len(a) != len(b) {
		return false
	}
	for k := range a {
		if _, ok := b[k]; !ok {
			return false
		}
	}
	return true
}
