// Package normalize maps raw source records into typed listing entities.
// All functions are pure: no I/O, no shared state.
package normalize

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"rentdata/collector/internal/models"
)

// SourceTimeLayout is the fixed timestamp format used by the listing source.
const SourceTimeLayout = "2006-01-02 15:04"

// Reject reasons. Every per-record failure wraps exactly one of these so
// callers can bucket rejections with errors.Is.
var (
	ErrMissingLocation    = errors.New("record has no geotag")
	ErrMalformedPrice     = errors.New("malformed price")
	ErrMalformedTimestamp = errors.New("malformed timestamp")
)

// Property normalizes a raw whole-unit record into a PropertyListing.
// Records without a geotag are rejected outright; a partial entity is
// never produced.
func Property(raw models.RawListing, market models.Market) (*models.PropertyListing, error) {
	if raw.Geotag == nil {
		return nil, fmt.Errorf("record %d: %w", raw.ID, ErrMissingLocation)
	}

	price, err := parsePrice(raw.Price)
	if err != nil {
		return nil, fmt.Errorf("record %d: %w", raw.ID, err)
	}

	updated, err := time.Parse(SourceTimeLayout, raw.LastUpdated)
	if err != nil {
		return nil, fmt.Errorf("record %d: %q: %w", raw.ID, raw.LastUpdated, ErrMalformedTimestamp)
	}

	lat, lon := raw.Geotag.Lat(), raw.Geotag.Lon()

	p := &models.PropertyListing{
		ExternalID:      raw.ID,
		RepostOfID:      raw.RepostOf,
		URL:             raw.URL,
		LastUpdated:     updated,
		Price:           price,
		State:           market.State,
		Metro:           market.City,
		SiteMetro:       raw.SiteMetro,
		ZipCode:         raw.ZipCode,
		Bathrooms:       floatOrZero(raw.Bathrooms),
		SqFt:            parseArea(raw.Area),
		LocationLabel:   raw.Where,
		Latitude:        &lat,
		Longitude:       &lon,
		Address:         raw.Address,
		HousingType:     raw.HousingType,
		ACType:          raw.ACType,
		LaundryType:     raw.LaundryType,
		ParkingType:     raw.ParkingType,
		Furnished:       raw.Furnished,
		CatsAllowed:     raw.CatsAllowed,
		DogsAllowed:     raw.DogsAllowed,
		SecurityDeposit: parseDeposit(raw.SecurityDeposit),
		Title:           raw.Name,
		Details:         raw.Body,
	}
	if raw.Bedrooms != nil {
		p.Bedrooms = *raw.Bedrooms
	}
	return p, nil
}

// Room normalizes a raw private-room record into a RoomListing. Rules are
// identical to Property minus the bedroom/bathroom counts.
func Room(raw models.RawListing, market models.Market) (*models.RoomListing, error) {
	if raw.Geotag == nil {
		return nil, fmt.Errorf("record %d: %w", raw.ID, ErrMissingLocation)
	}

	price, err := parsePrice(raw.Price)
	if err != nil {
		return nil, fmt.Errorf("record %d: %w", raw.ID, err)
	}

	updated, err := time.Parse(SourceTimeLayout, raw.LastUpdated)
	if err != nil {
		return nil, fmt.Errorf("record %d: %q: %w", raw.ID, raw.LastUpdated, ErrMalformedTimestamp)
	}

	lat, lon := raw.Geotag.Lat(), raw.Geotag.Lon()

	return &models.RoomListing{
		ExternalID:      raw.ID,
		RepostOfID:      raw.RepostOf,
		URL:             raw.URL,
		LastUpdated:     updated,
		Price:           price,
		State:           market.State,
		Metro:           market.City,
		SiteMetro:       raw.SiteMetro,
		ZipCode:         raw.ZipCode,
		SqFt:            parseArea(raw.Area),
		LocationLabel:   raw.Where,
		Latitude:        &lat,
		Longitude:       &lon,
		Address:         raw.Address,
		HousingType:     raw.HousingType,
		ACType:          raw.ACType,
		LaundryType:     raw.LaundryType,
		ParkingType:     raw.ParkingType,
		Furnished:       raw.Furnished,
		CatsAllowed:     raw.CatsAllowed,
		DogsAllowed:     raw.DogsAllowed,
		SecurityDeposit: parseDeposit(raw.SecurityDeposit),
		Title:           raw.Name,
		Details:         raw.Body,
	}, nil
}

// parsePrice strips the currency symbol and grouping separators and parses
// the remainder as a positive integer.
func parsePrice(s string) (int, error) {
	cleaned := strings.TrimSpace(s)
	cleaned = strings.ReplaceAll(cleaned, "$", "")
	cleaned = strings.ReplaceAll(cleaned, ",", "")

	price, err := strconv.Atoi(cleaned)
	if err != nil {
		return 0, fmt.Errorf("%q: %w", s, ErrMalformedPrice)
	}
	if price <= 0 {
		return 0, fmt.Errorf("%q: non-positive: %w", s, ErrMalformedPrice)
	}
	return price, nil
}

// parseArea strips the unit suffix and parses square footage. An absent or
// unparsable area is left unset rather than failing the record.
func parseArea(s *string) *int {
	if s == nil {
		return nil
	}
	cleaned := strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(*s), "ft2"))
	sqft, err := strconv.Atoi(cleaned)
	if err != nil {
		return nil
	}
	return &sqft
}

func parseDeposit(s *string) *int {
	if s == nil {
		return nil
	}
	amount, err := parsePrice(*s)
	if err != nil {
		return nil
	}
	return &amount
}

func floatOrZero(f *float64) float64 {
	if f == nil {
		return 0
	}
	return *f
}
