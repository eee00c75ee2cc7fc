package geocode

import (
	"context"
	"errors"
	"time"

	"github.com/jonesrussell/merchantcrawl/internal/domain"
	"github.com/jonesrussell/merchantcrawl/internal/logger"
)

// Enricher applies geocoding to merchant batches before they are
// persisted.
type Enricher struct {
	geocoder Geocoder
	logger   logger.Interface
}

// NewEnricher creates a batch enricher. A nil geocoder disables
// enrichment: batches pass through untouched.
func NewEnricher(geocoder Geocoder, log logger.Interface) *Enricher {
	return &Enricher{
		geocoder: geocoder,
		logger:   log.WithComponent("enricher"),
	}
}

// EnrichBatch geocodes every merchant in the batch that has an address
// and no coordinates yet. It reports how many merchants were geocoded
// and how many lookups failed; unresolvable addresses are skipped, not
// fatal. Context cancellation stops the batch early and is returned.
func (e *Enricher) EnrichBatch(ctx context.Context, merchants []*domain.Merchant) (geocoded, failed int, err error) {
	if e.geocoder == nil {
		return 0, 0, nil
	}

	for _, m := range merchants {
		if m.Address == "" || m.HasCoordinates() {
			continue
		}
		if ctx.Err() != nil {
			return geocoded, failed, ctx.Err()
		}

		loc, lookupErr := e.geocoder.Geocode(ctx, m.Address)
		if lookupErr != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return geocoded, failed, ctxErr
			}
			failed++
			if errors.Is(lookupErr, ErrNotFound) {
				e.logger.Debug("Address not found", "merchant_id", m.ID, "address", m.Address)
			} else {
				e.logger.Warn("Geocoding failed", "merchant_id", m.ID, "error", lookupErr)
			}
			continue
		}

		now := time.Now()
		m.Latitude = loc.Latitude
		m.Longitude = loc.Longitude
		m.GeocodedAt = &now
		geocoded++
	}

	return geocoded, failed, nil
}
