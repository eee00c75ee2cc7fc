package crawler

import (
	"sync"
	"time"
)

// Metrics holds per-run crawl counters.
type Metrics struct {
	mu sync.Mutex
	// PagesVisited is the number of listing pages fetched.
	PagesVisited int64
	// LinksSeen is the number of record links discovered, duplicates
	// included.
	LinksSeen int64
	// LinksDeduped is the number of links skipped as already seen this
	// run.
	LinksDeduped int64
	// RecordsParsed is the number of records successfully parsed.
	RecordsParsed int64
	// ParseFailures is the number of record fetches or parses that
	// failed and were skipped.
	ParseFailures int64
	// EmptyPages is the number of pages that yielded no links.
	EmptyPages int64
	// StartTime is when the crawl began.
	StartTime time.Time
}

// NewMetrics creates a zeroed metrics instance stamped with the current
// time.
func NewMetrics() *Metrics {
	return &Metrics{StartTime: time.Now()}
}

// Snapshot returns a copy of the current counters, safe to read without
// further synchronization.
func (m *Metrics) Snapshot() Metrics {
	m.mu.Lock()
	defer m.mu.Unlock()
	return Metrics{
		PagesVisited:  m.PagesVisited,
		LinksSeen:     m.LinksSeen,
		LinksDeduped:  m.LinksDeduped,
		RecordsParsed: m.RecordsParsed,
		ParseFailures: m.ParseFailures,
		EmptyPages:    m.EmptyPages,
		StartTime:     m.StartTime,
	}
}

func (m *Metrics) addPage(empty bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.PagesVisited++
	if empty {
		m.EmptyPages++
	}
}

func (m *Metrics) addLinks(seen, deduped int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LinksSeen += int64(seen)
	m.LinksDeduped += int64(deduped)
}

func (m *Metrics) addRecord(ok bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if ok {
		m.RecordsParsed++
	} else {
		m.ParseFailures++
	}
}
