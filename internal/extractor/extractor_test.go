package extractor_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/merchantcrawl/internal/crawler"
	"github.com/jonesrussell/merchantcrawl/internal/domain"
	"github.com/jonesrussell/merchantcrawl/internal/extractor"
	"github.com/jonesrussell/merchantcrawl/internal/logger"
	"github.com/jonesrussell/merchantcrawl/internal/sources"
)

const listPage = `<html><body>
<div class="shops">
  <a class="shop-link" href="/shops/101">Ramen A</a>
  <a class="shop-link" href="/shops/102">Cafe B</a>
  <a class="shop-link" href="/shops/101">Ramen A again</a>
  <a class="shop-link" href="/about">About us</a>
</div>
</body></html>`

const detailPage = `<html><body>
<h1 class="shop-name">  Ramen　Alpha  </h1>
<span class="shop-address">1-2-3 Example St</span>
<span class="shop-phone">075-123-4567</span>
<dd class="shop-hours">11:00 - 21:00</dd>
<dd class="shop-closed">Wednesday</dd>
<a class="shop-site" href="https://ramen-alpha.example.com">site</a>
<p class="shop-benefit">5% off</p>
</body></html>`

func testSource(baseURL string) *sources.Source {
	return &sources.Source{
		ID:              "kyoto",
		Name:            "Kyoto Merchants",
		BaseURL:         baseURL,
		ListURLTemplate: baseURL + "/shops?page=%d",
		DetailPattern:   `/shops/\d+$`,
		Selectors: sources.Selectors{
			Link: "a.shop-link",
			Detail: sources.DetailSelectors{
				Name:          "h1.shop-name",
				Address:       "span.shop-address",
				Phone:         "span.shop-phone",
				BusinessHours: "dd.shop-hours",
				ClosedDays:    "dd.shop-closed",
				Website:       "a.shop-site",
				Benefits:      "p.shop-benefit",
			},
		},
		Enabled: true,
	}
}

func newExtractor(t *testing.T, src *sources.Source) *extractor.HTML {
	t.Helper()
	h, err := extractor.NewHTML(src, extractor.Options{UserAgent: "test-agent"}, logger.NewNoOp())
	require.NoError(t, err)
	return h
}

func TestListPageCollectsDetailLinks(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, listPage)
	}))
	defer srv.Close()

	h := newExtractor(t, testSource(srv.URL))

	links, err := h.ListPage(context.Background(), 1)
	require.NoError(t, err)

	assert.Equal(t, []string{
		srv.URL + "/shops/101",
		srv.URL + "/shops/102",
	}, links, "links should be absolute, pattern-filtered and de-duplicated")
}

func TestListPageEmpty(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><p>No results</p></body></html>`)
	}))
	defer srv.Close()

	h := newExtractor(t, testSource(srv.URL))

	links, err := h.ListPage(context.Background(), 99)
	require.NoError(t, err)
	assert.Empty(t, links)
}

func TestFetchRecordParsesDetailPage(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, detailPage)
	}))
	defer srv.Close()

	src := testSource(srv.URL)
	h := newExtractor(t, src)

	link := srv.URL + "/shops/101"
	m, err := h.FetchRecord(context.Background(), link)
	require.NoError(t, err)

	assert.Equal(t, domain.MerchantID("kyoto", link), m.ID)
	assert.Equal(t, "kyoto", m.SourceID)
	assert.Equal(t, "Kyoto Merchants", m.SourceName)
	assert.Equal(t, "Ramen Alpha", m.Name, "name should be whitespace-normalized")
	assert.Equal(t, "1-2-3 Example St", m.Address)
	assert.Equal(t, "075-123-4567", m.Phone)
	assert.Equal(t, "11:00 - 21:00", m.BusinessHours)
	assert.Equal(t, "Wednesday", m.ClosedDays)
	assert.Equal(t, "https://ramen-alpha.example.com", m.Website)
	assert.Equal(t, link, m.DetailURL)
	assert.True(t, m.Active)
	assert.False(t, m.ScrapedAt.IsZero())
}

func TestFetchRecordMissingNameFails(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, `<html><body><span class="shop-address">somewhere</span></body></html>`)
	}))
	defer srv.Close()

	h := newExtractor(t, testSource(srv.URL))

	_, err := h.FetchRecord(context.Background(), srv.URL+"/shops/101")
	require.Error(t, err)
	assert.ErrorIs(t, err, crawler.ErrExtraction)
	assert.ErrorIs(t, err, extractor.ErrNoName)
}

func TestFetchRecordServerError(t *testing.T) {
	t.Parallel()

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	h := newExtractor(t, testSource(srv.URL))

	_, err := h.FetchRecord(context.Background(), srv.URL+"/shops/101")
	require.Error(t, err)
	assert.ErrorIs(t, err, crawler.ErrExtraction)
}

func TestNewHTMLRejectsBadPattern(t *testing.T) {
	t.Parallel()

	src := testSource("http://example.com")
	src.DetailPattern = "[invalid"

	_, err := extractor.NewHTML(src, extractor.Options{}, logger.NewNoOp())
	require.Error(t, err)
}
