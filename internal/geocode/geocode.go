// Package geocode enriches merchants with coordinates. Lookups go
// through an in-memory cache so one source's repeated addresses cost a
// single upstream call.
package geocode

import (
	"context"
	"errors"
	"fmt"

	"googlemaps.github.io/maps"

	"github.com/jonesrussell/merchantcrawl/internal/config"
	"github.com/jonesrussell/merchantcrawl/internal/logger"
)

var (
	// ErrNoAPIKey is returned when the geocoder is enabled without an API key.
	ErrNoAPIKey = errors.New("geocoder api key is required")
	// ErrNotFound is returned when an address resolves to no location.
	ErrNotFound = errors.New("address not found")
)

// Location is a resolved coordinate pair.
type Location struct {
	Latitude  float64
	Longitude float64
}

// Geocoder resolves a street address to coordinates.
type Geocoder interface {
	Geocode(ctx context.Context, address string) (*Location, error)
}

// GoogleGeocoder resolves addresses with the Google Maps Geocoding API.
type GoogleGeocoder struct {
	client *maps.Client
	region string
	logger logger.Interface
}

var _ Geocoder = (*GoogleGeocoder)(nil)

// NewGoogleGeocoder creates a geocoder from configuration.
func NewGoogleGeocoder(cfg *config.GeocoderConfig, log logger.Interface) (*GoogleGeocoder, error) {
	if cfg.APIKey == "" {
		return nil, ErrNoAPIKey
	}

	client, err := maps.NewClient(maps.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}

	return &GoogleGeocoder{
		client: client,
		region: cfg.Region,
		logger: log.WithComponent("geocoder"),
	}, nil
}

// Geocode resolves one address. Returns ErrNotFound when the API has no
// result for it.
func (g *GoogleGeocoder) Geocode(ctx context.Context, address string) (*Location, error) {
	req := &maps.GeocodingRequest{
		Address: address,
		Region:  g.region,
	}

	results, err := g.client.Geocode(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("geocode request failed for %q: %w", address, err)
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrNotFound, address)
	}

	loc := results[0].Geometry.Location
	g.logger.Debug("Address geocoded", "address", address, "lat", loc.Lat, "lng", loc.Lng)

	return &Location{Latitude: loc.Lat, Longitude: loc.Lng}, nil
}
