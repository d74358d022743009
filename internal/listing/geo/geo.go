// internal/listing/geo/geo.go

// Package geo resolves page context into coordinates: city/region records
// for taxonomy pages and facility records for detail pages.
package geo

import (
	"context"
	"database/sql"
	"errors"

	"premium-listings/internal/common/logger"
	"premium-listings/internal/models"
)

// Resolver looks up coordinates for retrieval contexts. A nil location with
// a nil error means "no coordinates known"; callers degrade to the next
// location fallback rather than failing.
type Resolver interface {
	CityLocation(ctx context.Context, stateSlug, citySlug string) (*models.Location, error)
	ListingLocation(ctx context.Context, listingID int64) (*models.Location, error)
}

// Store is the Postgres-backed Resolver over the regions and facility
// location tables maintained by the indexing pipeline.
type Store struct {
	db     *sql.DB
	logger logger.Logger
}

func NewStore(db *sql.DB, log logger.Logger) *Store {
	return &Store{
		db:     db,
		logger: log.WithFields(map[string]interface{}{"component": "geo-store"}),
	}
}

// CityLocation returns the coordinates of a city region. A city that exists
// without geocoding, or not at all, returns nil without error.
func (s *Store) CityLocation(ctx context.Context, stateSlug, citySlug string) (*models.Location, error) {
	const q = `
		SELECT id, name, latitude, longitude
		FROM regions
		WHERE kind = 'city' AND state_slug = $1 AND slug = $2`

	var (
		id       int64
		name     string
		lat, lon sql.NullFloat64
	)
	err := s.db.QueryRowContext(ctx, q, stateSlug, citySlug).Scan(&id, &name, &lat, &lon)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !lat.Valid || !lon.Valid {
		s.logger.Debug("city region has no coordinates", map[string]interface{}{
			"state": stateSlug, "city": citySlug,
		})
		return nil, nil
	}

	return &models.Location{
		Lat:      lat.Float64,
		Lon:      lon.Float64,
		RegionID: id,
		Name:     name,
	}, nil
}

// ListingLocation returns the coordinates of one facility, for detail pages
// that rank nearby alternatives around it.
func (s *Store) ListingLocation(ctx context.Context, listingID int64) (*models.Location, error) {
	const q = `
		SELECT latitude, longitude
		FROM facility_locations
		WHERE listing_id = $1`

	var lat, lon sql.NullFloat64
	err := s.db.QueryRowContext(ctx, q, listingID).Scan(&lat, &lon)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if !lat.Valid || !lon.Valid {
		return nil, nil
	}

	return &models.Location{Lat: lat.Float64, Lon: lon.Float64}, nil
}
