package geocode_test

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonesrussell/merchantcrawl/internal/domain"
	"github.com/jonesrussell/merchantcrawl/internal/geocode"
	"github.com/jonesrussell/merchantcrawl/internal/logger"
)

// fakeGeocoder resolves from a fixed table and counts upstream calls.
type fakeGeocoder struct {
	locations map[string]*geocode.Location
	err       error
	calls     int
}

func (f *fakeGeocoder) Geocode(_ context.Context, address string) (*geocode.Location, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	loc, ok := f.locations[address]
	if !ok {
		return nil, fmt.Errorf("%w: %q", geocode.ErrNotFound, address)
	}
	return loc, nil
}

func TestCachedGeocoderHitsSkipUpstream(t *testing.T) {
	t.Parallel()

	fake := &fakeGeocoder{locations: map[string]*geocode.Location{
		"1-2-3 Example St": {Latitude: 35.0116, Longitude: 135.7681},
	}}
	cached := geocode.NewCached(fake, logger.NewNoOp())
	ctx := context.Background()

	for range 3 {
		loc, err := cached.Geocode(ctx, "1-2-3 Example St")
		require.NoError(t, err)
		assert.InDelta(t, 35.0116, loc.Latitude, 0.0001)
	}

	assert.Equal(t, 1, fake.calls, "repeat lookups should come from cache")

	hits, misses, rate := cached.Stats()
	assert.Equal(t, 2, hits)
	assert.Equal(t, 1, misses)
	assert.InDelta(t, 2.0/3.0, rate, 0.0001)
}

func TestCachedGeocoderNormalizesKeys(t *testing.T) {
	t.Parallel()

	fake := &fakeGeocoder{locations: map[string]*geocode.Location{
		"1-2-3 Example St": {Latitude: 35.0, Longitude: 135.0},
	}}
	cached := geocode.NewCached(fake, logger.NewNoOp())
	ctx := context.Background()

	_, err := cached.Geocode(ctx, "1-2-3 Example St")
	require.NoError(t, err)

	// Same address with extra whitespace and different case hits the
	// cache instead of the upstream.
	loc, err := cached.Geocode(ctx, "  1-2-3  example st ")
	require.NoError(t, err)
	assert.InDelta(t, 35.0, loc.Latitude, 0.0001)
	assert.Equal(t, 1, fake.calls)
}

func TestCachedGeocoderCachesNotFound(t *testing.T) {
	t.Parallel()

	fake := &fakeGeocoder{locations: map[string]*geocode.Location{}}
	cached := geocode.NewCached(fake, logger.NewNoOp())
	ctx := context.Background()

	for range 2 {
		_, err := cached.Geocode(ctx, "nowhere at all")
		assert.ErrorIs(t, err, geocode.ErrNotFound)
	}
	assert.Equal(t, 1, fake.calls, "not-found should be cached too")
}

func TestCachedGeocoderDoesNotCacheTransientErrors(t *testing.T) {
	t.Parallel()

	fake := &fakeGeocoder{err: errors.New("quota exceeded")}
	cached := geocode.NewCached(fake, logger.NewNoOp())
	ctx := context.Background()

	for range 2 {
		_, err := cached.Geocode(ctx, "1-2-3 Example St")
		require.Error(t, err)
	}
	assert.Equal(t, 2, fake.calls, "transient failures must stay retryable")
}

func TestCachedGeocoderClear(t *testing.T) {
	t.Parallel()

	fake := &fakeGeocoder{locations: map[string]*geocode.Location{
		"1-2-3 Example St": {Latitude: 35.0, Longitude: 135.0},
	}}
	cached := geocode.NewCached(fake, logger.NewNoOp())
	ctx := context.Background()

	_, err := cached.Geocode(ctx, "1-2-3 Example St")
	require.NoError(t, err)

	cached.Clear()

	_, err = cached.Geocode(ctx, "1-2-3 Example St")
	require.NoError(t, err)
	assert.Equal(t, 2, fake.calls)

	hits, misses, _ := cached.Stats()
	assert.Zero(t, hits)
	assert.Equal(t, 1, misses)
}

func TestEnrichBatch(t *testing.T) {
	t.Parallel()

	fake := &fakeGeocoder{locations: map[string]*geocode.Location{
		"1-2-3 Example St": {Latitude: 35.0, Longitude: 135.0},
	}}
	enricher := geocode.NewEnricher(fake, logger.NewNoOp())

	already := &domain.Merchant{ID: "m3", Address: "1-2-3 Example St", Latitude: 1, Longitude: 1}
	batch := []*domain.Merchant{
		{ID: "m1", Address: "1-2-3 Example St"},
		{ID: "m2", Address: "unknown place"},
		already,
		{ID: "m4"},
	}

	geocoded, failed, err := enricher.EnrichBatch(context.Background(), batch)
	require.NoError(t, err)

	assert.Equal(t, 1, geocoded)
	assert.Equal(t, 1, failed)

	assert.InDelta(t, 35.0, batch[0].Latitude, 0.0001)
	assert.NotNil(t, batch[0].GeocodedAt)
	assert.Nil(t, batch[1].GeocodedAt)
	assert.InDelta(t, 1.0, already.Latitude, 0.0001, "existing coordinates must not be overwritten")
	assert.Equal(t, 2, fake.calls, "merchants without an address or with coordinates are skipped")
}

func TestEnrichBatchNilGeocoder(t *testing.T) {
	t.Parallel()

	enricher := geocode.NewEnricher(nil, logger.NewNoOp())

	geocoded, failed, err := enricher.EnrichBatch(context.Background(), []*domain.Merchant{
		{ID: "m1", Address: "1-2-3 Example St"},
	})
	require.NoError(t, err)
	assert.Zero(t, geocoded)
	assert.Zero(t, failed)
}

func TestEnrichBatchStopsOnCancel(t *testing.T) {
	t.Parallel()

	fake := &fakeGeocoder{locations: map[string]*geocode.Location{}}
	enricher := geocode.NewEnricher(fake, logger.NewNoOp())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, _, err := enricher.EnrichBatch(ctx, []*domain.Merchant{
		{ID: "m1", Address: "somewhere"},
	})
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, fake.calls)
}
