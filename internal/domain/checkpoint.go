package domain

import "time"

// Checkpoint records crawl progress for one source so an interrupted run
// can resume without reprocessing completed pages.
type Checkpoint struct {
	// SourceID identifies the source the checkpoint belongs to
	SourceID string `json:"source_id" db:"source_id"`
	// CompletedPages lists the page numbers fully processed so far
	CompletedPages []int `json:"completed_pages"`
	// TotalSaved is the cumulative number of merchants persisted
	TotalSaved int `json:"total_saved" db:"total_saved"`
	// LastMerchantID is the identifier of the last processed merchant
	LastMerchantID string `json:"last_merchant_id" db:"last_merchant_id"`
	// UpdatedAt is when the checkpoint was last written
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// ResumePage returns the first page a resumed run should fetch:
// one past the highest completed page. Returns 0 when no pages have
// completed, meaning the caller should start from its configured
// first page.
func (c *Checkpoint) ResumePage() int {
	if c == nil || len(c.CompletedPages) == 0 {
		return 0
	}
	maxPage := c.CompletedPages[0]
	for _, p := range c.CompletedPages[1:] {
		if p > maxPage {
			maxPage = p
		}
	}
	return maxPage + 1
}
