// internal/listing/retrieve/context.go
package retrieve

import (
	"context"

	"premium-listings/internal/models"
)

// PageContext describes where the placement is rendered. Slugs come from the
// caller's routing layer; ListingID is the facility a detail page shows.
type PageContext struct {
	PageType  models.PageType
	StateSlug string
	CitySlug  string
	ListingID int64
}

// Request is one placement's retrieval input.
type Request struct {
	Mode          string
	CardCount     int
	SelectedTerms map[string][]string
	Context       PageContext

	ExcludeDisplayed bool
	ExcludedIDs      []int64
	// DisplayContext names the dedup scope. Empty means placements on the
	// same Path share one scope.
	DisplayContext string
	Path           string

	// UserLocation is a caller-resolved point (geo headers, profile). It
	// wins over taxonomy-derived locations.
	UserLocation *models.Location

	// Debug flags. BypassCache also forces a fresh randomization seed.
	BypassCache        bool
	ForceEmptyLocation bool
}

// resolvePageType infers the page type when the caller did not set one:
// a city slug outranks a state slug, a listing ID means a detail page, and
// anything else is a default placement.
func (r Request) resolvePageType() models.PageType {
	if r.Context.PageType != "" {
		return r.Context.PageType
	}
	switch {
	case r.Context.CitySlug != "":
		return models.PageTypeCity
	case r.Context.StateSlug != "":
		return models.PageTypeState
	case r.Context.ListingID > 0:
		return models.PageTypeDetail
	default:
		return models.PageTypeDefault
	}
}

// resolveLocation picks the coordinates for the query, or nil when the page
// ranks without distance. Resolver errors degrade to nil; the query builder
// falls back to state scoping or unscoped ranking.
func (e *Engine) resolveLocation(ctx context.Context, r Request, pageType models.PageType) *models.Location {
	if r.ForceEmptyLocation {
		return nil
	}
	if r.UserLocation != nil {
		return r.UserLocation
	}

	var (
		loc *models.Location
		err error
	)
	switch pageType {
	case models.PageTypeCity:
		loc, err = e.geo.CityLocation(ctx, r.Context.StateSlug, r.Context.CitySlug)
	case models.PageTypeDetail:
		if r.Context.ListingID > 0 {
			loc, err = e.geo.ListingLocation(ctx, r.Context.ListingID)
		}
	default:
		// State pages rank statewide; default placements without a caller
		// location rank unscoped.
		return nil
	}

	if err != nil {
		e.logger.Warn("location lookup failed, degrading to no location", map[string]interface{}{
			"pageType": string(pageType),
			"error":    err.Error(),
		})
		return nil
	}
	return loc
}
