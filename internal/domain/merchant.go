// Package domain provides domain models used across the application.
package domain

import (
	"crypto/sha256"
	"encoding/hex"
	"time"
)

const merchantIDHashLen = 8

// Merchant represents one merchant listing harvested from a source.
type Merchant struct {
	// ID is the natural key: "<source>_<sha256(detail URL)[:8]>".
	ID string `json:"merchant_id" mapstructure:"merchant_id"`
	// SourceID identifies the upstream source the merchant came from
	SourceID string `json:"source_id" mapstructure:"source_id"`
	// SourceName is the human-readable source name
	SourceName string `json:"source_name" mapstructure:"source_name"`
	// Name of the merchant
	Name string `json:"name" mapstructure:"name"`
	// Address of the merchant
	Address string `json:"address,omitempty" mapstructure:"address"`
	// Phone number
	Phone string `json:"phone,omitempty" mapstructure:"phone"`
	// BusinessHours as displayed upstream
	BusinessHours string `json:"business_hours,omitempty" mapstructure:"business_hours"`
	// ClosedDays as displayed upstream
	ClosedDays string `json:"closed_days,omitempty" mapstructure:"closed_days"`
	// DetailURL is the canonical detail page the record was parsed from
	DetailURL string `json:"detail_url" mapstructure:"detail_url"`
	// Website of the merchant, when listed
	Website string `json:"website,omitempty" mapstructure:"website"`
	// Benefits offered by the merchant
	Benefits string `json:"benefits,omitempty" mapstructure:"benefits"`
	// Description free text
	Description string `json:"description,omitempty" mapstructure:"description"`
	// Parking information
	Parking string `json:"parking,omitempty" mapstructure:"parking"`
	// PostalCode when listed
	PostalCode string `json:"postal_code,omitempty" mapstructure:"postal_code"`
	// Category or genre
	Category string `json:"category,omitempty" mapstructure:"category"`

	// Coordinates, set by geocoding enrichment
	Latitude   float64    `json:"latitude,omitempty" mapstructure:"latitude"`
	Longitude  float64    `json:"longitude,omitempty" mapstructure:"longitude"`
	GeocodedAt *time.Time `json:"geocoded_at,omitempty" mapstructure:"geocoded_at"`

	// Metadata
	ScrapedAt time.Time `json:"scraped_at" mapstructure:"scraped_at"`
	UpdatedAt time.Time `json:"updated_at" mapstructure:"updated_at"`
	Active    bool      `json:"is_active" mapstructure:"is_active"`

	// Extra holds source-specific fields that have no dedicated column
	Extra map[string]any `json:"extra_fields,omitempty" mapstructure:"extra_fields"`
}

// HasCoordinates reports whether the merchant already carries geocoded
// coordinates.
func (m *Merchant) HasCoordinates() bool {
	return m.Latitude != 0 || m.Longitude != 0
}

// MerchantID derives the stable natural key for a merchant from its
// source and canonical detail URL. Recomputing it from the same inputs
// always yields the same key, so repeated runs upsert instead of
// duplicating.
func MerchantID(sourceID, detailURL string) string {
	sum := sha256.Sum256([]byte(detailURL))
	return sourceID + "_" + hex.EncodeToString(sum[:])[:merchantIDHashLen]
}
