package domain

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// RunStatus represents the lifecycle state of one ingestion run.
type RunStatus string

const (
	// RunStatusPending means the run has been created but not started.
	RunStatusPending RunStatus = "pending"
	// RunStatusRunning means the run is in progress.
	RunStatusRunning RunStatus = "running"
	// RunStatusSuccess means the run completed normally.
	RunStatusSuccess RunStatus = "success"
	// RunStatusPartial means the run persisted what it could but
	// enrichment failed.
	RunStatusPartial RunStatus = "partial"
	// RunStatusFailed means the run could not complete.
	RunStatusFailed RunStatus = "failed"
)

// Terminal reports whether the status is a terminal state.
func (s RunStatus) Terminal() bool {
	switch s {
	case RunStatusSuccess, RunStatusPartial, RunStatusFailed:
		return true
	default:
		return false
	}
}

// RunResult summarizes one ingestion run. It is created at run start,
// mutated throughout the run, and persisted once per terminal state to
// run history.
type RunResult struct {
	RunID           string     `json:"run_id"`
	SourceID        string     `json:"source_id"`
	SourceName      string     `json:"source_name"`
	StartedAt       time.Time  `json:"started_at"`
	CompletedAt     *time.Time `json:"completed_at,omitempty"`
	Status          RunStatus  `json:"status"`
	TotalMerchants  int        `json:"total_merchants"`
	NewMerchants    int        `json:"new_merchants"`
	UpdatedCount    int        `json:"updated_merchants"`
	GeocodedCount   int        `json:"geocoded_merchants"`
	GeocodeErrors   int        `json:"geocoding_errors"`
	Errors          []string   `json:"errors,omitempty"`
	DurationSeconds float64    `json:"duration_seconds"`
}

// NewRunResult creates a pending run result with a fresh run ID.
func NewRunResult(sourceID, sourceName string) *RunResult {
	return &RunResult{
		RunID:      NewRunID(sourceID),
		SourceID:   sourceID,
		SourceName: sourceName,
		StartedAt:  time.Now(),
		Status:     RunStatusPending,
	}
}

// NewRunID generates a run identifier unique per invocation,
// "<source>_<uuid8>".
func NewRunID(sourceID string) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
	return sourceID + "_" + id
}

// Complete stamps the completion time and duration and sets the
// terminal status. It is a no-op if the run already reached a terminal
// state; history records are never overwritten after that.
func (r *RunResult) Complete(status RunStatus) {
	if r.Status.Terminal() {
		return
	}
	now := time.Now()
	r.CompletedAt = &now
	r.DurationSeconds = now.Sub(r.StartedAt).Seconds()
	r.Status = status
}

// AddError appends an error message to the run's error list.
func (r *RunResult) AddError(msg string) {
	r.Errors = append(r.Errors, msg)
}
