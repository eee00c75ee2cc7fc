package crawler

import (
	"github.com/jonesrussell/merchantcrawl/internal/domain"
	"github.com/jonesrussell/merchantcrawl/internal/logger"
)

// DefaultBatchSize is the flush threshold used when none is configured.
const DefaultBatchSize = 50

// FlushFunc receives a full or final batch of merchants. A flush error
// is logged and swallowed: delivery is at-most-once per batch, the
// accumulator never re-queues a failed batch.
type FlushFunc func(batch []*domain.Merchant) error

// Accumulator buffers parsed merchants and hands them to the flush
// callback in batches of at most batchSize.
type Accumulator struct {
	batchSize int
	flush     FlushFunc
	buf       []*domain.Merchant
	flushes   int
	logger    logger.Interface
}

// NewAccumulator creates a batch accumulator. A non-positive batchSize
// falls back to DefaultBatchSize.
func NewAccumulator(batchSize int, flush FlushFunc, log logger.Interface) *Accumulator {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Accumulator{
		batchSize: batchSize,
		flush:     flush,
		buf:       make([]*domain.Merchant, 0, batchSize),
		logger:    log,
	}
}

// Add appends a merchant to the current batch, flushing when the batch
// reaches the configured size.
func (a *Accumulator) Add(m *domain.Merchant) {
	a.buf = append(a.buf, m)
	if len(a.buf) >= a.batchSize {
		a.flushNow()
	}
}

// Drain flushes any non-empty remainder. Always called exactly once at
// the end of a crawl; a no-op when the buffer is empty.
func (a *Accumulator) Drain() {
	if len(a.buf) == 0 {
		return
	}
	a.flushNow()
}

// Pending returns the number of buffered, unflushed merchants.
func (a *Accumulator) Pending() int {
	return len(a.buf)
}

// Flushes returns how many times the flush callback has been invoked.
func (a *Accumulator) Flushes() int {
	return a.flushes
}

func (a *Accumulator) flushNow() {
	batch := a.buf
	a.buf = make([]*domain.Merchant, 0, a.batchSize)
	a.flushes++

	if a.flush == nil {
		return
	}
	if err := a.flush(batch); err != nil {
		a.logger.Error("Batch flush failed",
			"batch_size", len(batch),
			"error", err,
		)
	}
}
