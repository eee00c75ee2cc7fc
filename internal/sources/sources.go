// Package sources manages the configuration of crawl sources. Each
// source describes one upstream listing site: where its pages live, how
// record links are recognized, and how fast it may be crawled.
package sources

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	// ErrNoSources indicates no sources were found in the configuration.
	ErrNoSources = errors.New("no sources found in configuration")
	// ErrSourceNotFound is returned when the requested source is not
	// configured.
	ErrSourceNotFound = errors.New("source not found")
	// ErrMissingRequiredField indicates a required source field is
	// missing.
	ErrMissingRequiredField = errors.New("missing required field")
	// ErrInvalidPageTemplate indicates the list URL template has no
	// page placeholder.
	ErrInvalidPageTemplate = errors.New("list_url_template must contain a %d page placeholder")
)

// Source describes one upstream listing site.
type Source struct {
	// ID is the short source identifier, e.g. "kyoto"
	ID string `mapstructure:"id"`
	// Name is the human-readable source name
	Name string `mapstructure:"name"`
	// BaseURL is the site root used to resolve relative links
	BaseURL string `mapstructure:"base_url"`
	// ListURLTemplate is a fmt template with one %d verb for the page
	// number, e.g. "https://example.jp/shops?page=%d"
	ListURLTemplate string `mapstructure:"list_url_template"`
	// DetailPattern is a regular expression a discovered href must
	// match to count as a record link
	DetailPattern string `mapstructure:"detail_pattern"`
	// StartPage is the first listing page. Defaults to 1
	StartPage int `mapstructure:"start_page"`
	// EndPage is the known last page; zero enables auto-detect
	EndPage int `mapstructure:"end_page"`
	// MaxEmptyPages / MaxDuplicatePages override the crawl defaults
	MaxEmptyPages     int `mapstructure:"max_empty_pages"`
	MaxDuplicatePages int `mapstructure:"max_duplicate_pages"`
	// RateLimit overrides the global pacing for this source
	RateLimit RateLimit `mapstructure:"rate_limit"`
	// Selectors locate merchant fields on listing and detail pages
	Selectors Selectors `mapstructure:"selectors"`
	// Schedule is an optional cron expression for the scheduler daemon
	Schedule string `mapstructure:"schedule"`
	// Enabled sources are included in `crawl --all` runs
	Enabled bool `mapstructure:"enabled"`
}

// RateLimit is a per-source pacing override.
type RateLimit struct {
	MinWait           time.Duration `mapstructure:"min_wait"`
	MaxWait           time.Duration `mapstructure:"max_wait"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
}

// Selectors holds the CSS selectors for one source.
type Selectors struct {
	// Link selects anchor elements on a listing page. Defaults to
	// "a[href]"
	Link string `mapstructure:"link"`
	// Detail selects merchant fields on a detail page
	Detail DetailSelectors `mapstructure:"detail"`
}

// DetailSelectors locate individual merchant fields on a detail page.
type DetailSelectors struct {
	Name          string `mapstructure:"name"`
	Address       string `mapstructure:"address"`
	Phone         string `mapstructure:"phone"`
	BusinessHours string `mapstructure:"business_hours"`
	ClosedDays    string `mapstructure:"closed_days"`
	Website       string `mapstructure:"website"`
	Benefits      string `mapstructure:"benefits"`
	Description   string `mapstructure:"description"`
	Parking       string `mapstructure:"parking"`
	PostalCode    string `mapstructure:"postal_code"`
	Category      string `mapstructure:"category"`
}

// ListURL renders the listing URL for a page number.
func (s *Source) ListURL(pageNum int) string {
	return fmt.Sprintf(s.ListURLTemplate, pageNum)
}

// AutoDetect reports whether pagination termination is heuristic.
func (s *Source) AutoDetect() bool {
	return s.EndPage == 0
}

// Validate checks the source definition for required fields.
func (s *Source) Validate() error {
	switch {
	case s.ID == "":
		return fmt.Errorf("%w: id", ErrMissingRequiredField)
	case s.Name == "":
		return fmt.Errorf("%w: name (source %s)", ErrMissingRequiredField, s.ID)
	case s.BaseURL == "":
		return fmt.Errorf("%w: base_url (source %s)", ErrMissingRequiredField, s.ID)
	case s.ListURLTemplate == "":
		return fmt.Errorf("%w: list_url_template (source %s)", ErrMissingRequiredField, s.ID)
	}
	if !strings.Contains(s.ListURLTemplate, "%d") {
		return fmt.Errorf("%w (source %s)", ErrInvalidPageTemplate, s.ID)
	}
	return nil
}

// applyDefaults fills unset optional fields.
func (s *Source) applyDefaults() {
	if s.StartPage <= 0 {
		s.StartPage = 1
	}
	if s.Selectors.Link == "" {
		s.Selectors.Link = "a[href]"
	}
}
