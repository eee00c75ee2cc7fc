// Package crawler provides the pagination state machine that drives a
// source's extractor across listing pages.
package crawler

import (
	"errors"
	"fmt"
)

// Failure taxonomy for crawl and ingestion. Callers classify failures
// with errors.Is against these sentinels.
var (
	// ErrSession is returned when a source-wide precondition fails,
	// e.g. an expected access token could not be obtained. It aborts
	// the run.
	ErrSession = errors.New("session setup failed")

	// ErrExtraction is returned when a page or record could not be
	// parsed. Contained at its level; never aborts a run on its own.
	ErrExtraction = errors.New("extraction failed")

	// ErrEnrichment is returned when geocoding fails at run level. It
	// degrades the run to partial, never aborts it.
	ErrEnrichment = errors.New("enrichment failed")

	// ErrPersistence is returned when a write to the merchant store
	// fails. It fails the run: silently losing records is unacceptable.
	ErrPersistence = errors.New("persistence failed")

	// ErrNotification is returned when an outbound notification fails.
	// Always swallowed and logged.
	ErrNotification = errors.New("notification failed")

	// ErrInvalidConfig is returned when the controller configuration is
	// invalid.
	ErrInvalidConfig = errors.New("invalid crawl configuration")

	// ErrAlreadyStarted is returned when Run is called on a controller
	// that has already been started; controllers serve one run only.
	ErrAlreadyStarted = errors.New("crawl controller already started")
)

// SessionError wraps a source-wide precondition failure so it matches
// ErrSession.
func SessionError(sourceID string, err error) error {
	return fmt.Errorf("%w: source %s: %w", ErrSession, sourceID, err)
}

// PersistenceError wraps a store write failure so it matches
// ErrPersistence.
func PersistenceError(err error) error {
	return fmt.Errorf("%w: %w", ErrPersistence, err)
}

// EnrichmentError wraps a geocoding failure so it matches ErrEnrichment.
func EnrichmentError(err error) error {
	return fmt.Errorf("%w: %w", ErrEnrichment, err)
}
