// Package extractor implements the per-source extraction capability:
// turning a listing page number into record links and a record link
// into a parsed merchant. The generic HTML extractor is driven entirely
// by selector configuration, so adding a source needs no code.
package extractor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/gocolly/colly/v2"

	"github.com/jonesrussell/merchantcrawl/internal/crawler"
	"github.com/jonesrussell/merchantcrawl/internal/domain"
	"github.com/jonesrussell/merchantcrawl/internal/logger"
	"github.com/jonesrussell/merchantcrawl/internal/sources"
	"github.com/jonesrussell/merchantcrawl/internal/textutil"
)

// ErrNoName is returned when a detail page yields no merchant name; a
// record without a name is unusable.
var ErrNoName = errors.New("detail page has no merchant name")

// Options configures the HTTP behavior shared by all sources.
type Options struct {
	UserAgent      string
	RequestTimeout time.Duration
}

// HTML extracts merchant records from selector-configured HTML sources.
type HTML struct {
	source   *sources.Source
	opts     Options
	detailRe *regexp.Regexp
	logger   logger.Interface
}

// Ensure HTML implements the controller's extractor capability.
var _ crawler.Extractor = (*HTML)(nil)

// NewHTML creates an extractor for one source.
func NewHTML(src *sources.Source, opts Options, log logger.Interface) (*HTML, error) {
	var detailRe *regexp.Regexp
	if src.DetailPattern != "" {
		re, err := regexp.Compile(src.DetailPattern)
		if err != nil {
			return nil, fmt.Errorf("invalid detail_pattern for source %s: %w", src.ID, err)
		}
		detailRe = re
	}

	return &HTML{
		source:   src,
		opts:     opts,
		detailRe: detailRe,
		logger:   log.WithComponent("extractor").WithSource(src.ID),
	}, nil
}

// ListPage fetches one listing page and returns the record-detail links
// discovered on it, in document order, de-duplicated within the page.
func (h *HTML) ListPage(ctx context.Context, pageNum int) ([]string, error) {
	listURL := h.source.ListURL(pageNum)

	var links []string
	seen := make(map[string]struct{})

	c := h.newCollector(ctx)
	c.OnHTML(h.source.Selectors.Link, func(e *colly.HTMLElement) {
		href := e.Attr("href")
		if href == "" {
			return
		}
		abs := e.Request.AbsoluteURL(href)
		if abs == "" {
			return
		}
		if h.detailRe != nil && !h.detailRe.MatchString(abs) {
			return
		}
		if _, dup := seen[abs]; dup {
			return
		}
		seen[abs] = struct{}{}
		links = append(links, abs)
	})

	if err := c.Visit(listURL); err != nil {
		return nil, fmt.Errorf("failed to fetch listing page %d (%s): %w", pageNum, listURL, err)
	}
	c.Wait()

	h.logger.Debug("Listing page fetched", "page", pageNum, "links", len(links))
	return links, nil
}

// FetchRecord fetches and parses one merchant detail page.
func (h *HTML) FetchRecord(ctx context.Context, link string) (*domain.Merchant, error) {
	var (
		doc      *goquery.Document
		parseErr error
	)

	c := h.newCollector(ctx)
	c.OnResponse(func(r *colly.Response) {
		doc, parseErr = goquery.NewDocumentFromReader(bytes.NewReader(r.Body))
	})

	if err := c.Visit(link); err != nil {
		return nil, fmt.Errorf("%w: fetch %s: %w", crawler.ErrExtraction, link, err)
	}
	c.Wait()

	if parseErr != nil {
		return nil, fmt.Errorf("%w: parse %s: %w", crawler.ErrExtraction, link, parseErr)
	}
	if doc == nil {
		return nil, fmt.Errorf("%w: empty response for %s", crawler.ErrExtraction, link)
	}

	return h.parseDetail(doc, link)
}

// parseDetail maps the configured detail selectors onto a merchant.
func (h *HTML) parseDetail(doc *goquery.Document, link string) (*domain.Merchant, error) {
	sel := h.source.Selectors.Detail

	name := selectText(doc, sel.Name)
	if name == "" {
		return nil, fmt.Errorf("%w: %w: %s", crawler.ErrExtraction, ErrNoName, link)
	}

	now := time.Now()
	return &domain.Merchant{
		ID:            domain.MerchantID(h.source.ID, link),
		SourceID:      h.source.ID,
		SourceName:    h.source.Name,
		Name:          name,
		Address:       selectText(doc, sel.Address),
		Phone:         selectText(doc, sel.Phone),
		BusinessHours: selectText(doc, sel.BusinessHours),
		ClosedDays:    selectText(doc, sel.ClosedDays),
		DetailURL:     link,
		Website:       selectAttr(doc, sel.Website, "href"),
		Benefits:      selectText(doc, sel.Benefits),
		Description:   selectText(doc, sel.Description),
		Parking:       selectText(doc, sel.Parking),
		PostalCode:    selectText(doc, sel.PostalCode),
		Category:      selectText(doc, sel.Category),
		ScrapedAt:     now,
		UpdatedAt:     now,
		Active:        true,
	}, nil
}

// newCollector builds a single-use collector. Pacing is the crawl
// controller's job, so the collector itself applies no delays.
func (h *HTML) newCollector(ctx context.Context) *colly.Collector {
	c := colly.NewCollector(
		colly.UserAgent(h.opts.UserAgent),
		colly.AllowURLRevisit(),
		colly.StdlibContext(ctx),
	)
	if h.opts.RequestTimeout > 0 {
		c.SetRequestTimeout(h.opts.RequestTimeout)
	}
	return c
}

func selectText(doc *goquery.Document, selector string) string {
	if selector == "" {
		return ""
	}
	return textutil.Normalize(doc.Find(selector).First().Text())
}

func selectAttr(doc *goquery.Document, selector, attr string) string {
	if selector == "" {
		return ""
	}
	val, _ := doc.Find(selector).First().Attr(attr)
	return textutil.Normalize(val)
}
