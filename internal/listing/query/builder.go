// internal/listing/query/builder.go
package query

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"premium-listings/internal/models"
)

// Field names in the search index.
const (
	FieldListingID    = "listing_id"
	FieldStatus       = "status"
	FieldDocType      = "type"
	FieldPremiumLevel = "listing.premium_level.keyword"
	FieldPacingScore  = "listing.pacing_score"
	FieldTotalPoints  = "listing.total_points"
	FieldStateSlug    = "listing.state_slug"
	FieldLocation     = "listing.location"

	docTypeFacility = "facility"
	statusPublished = "publish"
)

// Retrieval modes.
const (
	ModeAll      = "all"
	ModeFiltered = "filtered"
	ModeTabbed   = "tabbed"
)

// termGroup maps one selected-terms group to its index field. Order is fixed
// so tab ordering and query layout are deterministic.
type termGroup struct {
	Key   string
	Field string
}

var termGroups = []termGroup{
	{"treatmentOptions", "listing.treatment"},
	{"paymentOptions", "listing.payment"},
	{"programs", "listing.programs"},
	{"levelsOfCare", "listing.levels_of_care"},
	{"clinicalServices", "listing.clinical_services"},
	{"amenities", "listing.amenities"},
}

// TabTerm is one taxonomy term that gets its own sub-query in tabbed mode.
type TabTerm struct {
	Key   string
	Type  string
	Value string
	Field string
	Label string
}

// Input carries everything the builder needs for one retrieval.
type Input struct {
	CardCount     int
	PageType      models.PageType
	Location      *models.Location
	StateSlug     string
	ExcludedIDs   []int64
	SelectedTerms map[string][]string
	Seed          int64
}

// Builder renders retrieval inputs into document store query bodies.
type Builder struct {
	maxRadius  string
	oversample int
}

func NewBuilder(maxRadiusMiles, oversampleFactor int) *Builder {
	if maxRadiusMiles <= 0 {
		maxRadiusMiles = 500
	}
	if oversampleFactor <= 0 {
		oversampleFactor = 3
	}
	return &Builder{
		maxRadius:  fmt.Sprintf("%dmi", maxRadiusMiles),
		oversample: oversampleFactor,
	}
}

// ==========================
// 1. Base Query
// ==========================

// Build produces the query body for all and filtered retrievals.
func (b *Builder) Build(in Input) map[string]interface{} {
	q := b.baseQuery(in)

	if len(in.SelectedTerms) > 0 {
		if groups := buildGroupFilters(in.SelectedTerms); len(groups) > 0 {
			addFilters(q, groups...)
		}
	}

	return q
}

// baseQuery builds the shared query skeleton: published facility docs,
// exclusions, location or state scoping, the five-stage sort, and the
// source projection. Size is oversampled so post-exclusion slicing can
// still fill the request.
func (b *Builder) baseQuery(in Input) map[string]interface{} {
	must := []map[string]interface{}{
		MatchFilter{Field: FieldStatus, Value: statusPublished}.Clause(),
		MatchFilter{Field: FieldDocType, Value: docTypeFacility}.Clause(),
	}

	// State pages filter by state slug. City pages fall back to the same
	// filter when no coordinates could be resolved for the city.
	useStateFilter := in.PageType == models.PageTypeState ||
		(in.PageType == models.PageTypeCity && in.Location == nil)
	if useStateFilter && in.StateSlug != "" {
		must = append(must, TermFilter{Field: FieldStateSlug, Value: in.StateSlug}.Clause())
	}

	boolQuery := map[string]interface{}{"must": must}

	if ids := dedupeIDs(in.ExcludedIDs); len(ids) > 0 {
		boolQuery["must_not"] = []map[string]interface{}{
			TermsFilter{Field: FieldListingID, Values: ids}.Clause(),
		}
	}

	if b.useLocation(in) {
		boolQuery["filter"] = []map[string]interface{}{
			GeoDistanceFilter{
				Field:    FieldLocation,
				Distance: b.maxRadius,
				Lat:      in.Location.Lat,
				Lon:      in.Location.Lon,
			}.Clause(),
		}
	}

	return map[string]interface{}{
		"size":    b.size(in.CardCount),
		"query":   map[string]interface{}{"bool": boolQuery},
		"sort":    sortClauses(b.sortCriteria(in)),
		"_source": map[string]interface{}{"includes": sourceFields()},
	}
}

func (b *Builder) size(cardCount int) int {
	if cardCount <= 0 {
		cardCount = 3
	}
	return cardCount * b.oversample
}

// State pages rank statewide; distance is ignored there even when
// coordinates happen to be available.
func (b *Builder) useLocation(in Input) bool {
	return in.Location != nil && in.PageType != models.PageTypeState
}

// ==========================
// 2. Sort Criteria
// ==========================

const relevanceScript = `
double baseScore = 0;
if (doc.containsKey('listing.total_points') && !doc['listing.total_points'].empty) {
	baseScore = doc['listing.total_points'].value;
}
double distanceInMiles = 0;
if (doc.containsKey('listing.location') && !doc['listing.location'].empty) {
	double distance = doc['listing.location'].arcDistance(params.lat, params.lon);
	distanceInMiles = distance * 0.000621371;
}
double distanceBoost = 0;
if (distanceInMiles <= 25) {
	distanceBoost = 10;
} else if (distanceInMiles <= 50) {
	distanceBoost = 5;
} else if (distanceInMiles <= 100) {
	distanceBoost = 2;
}
return baseScore + distanceBoost;
`

const randomTiebreakScript = `
long listingId = doc['listing_id'].value;
long seed = params.seed;
Random random = new Random(seed + listingId);
return random.nextInt(100);
`

func (b *Builder) sortCriteria(in Input) []Sort {
	sorts := []Sort{
		// Tier ordering always wins; pacing can only reorder within a tier.
		// Premium level labels sort correctly in keyword order.
		FieldSort{Field: FieldPremiumLevel, Order: "desc", Missing: "_last", UnmappedType: "keyword"},
		FieldSort{Field: FieldPacingScore, Order: "desc", Missing: 0, UnmappedType: "integer"},
	}

	if b.useLocation(in) {
		sorts = append(sorts, ScriptSort{
			Source: relevanceScript,
			Params: map[string]interface{}{"lat": in.Location.Lat, "lon": in.Location.Lon},
			Order:  "desc",
		})
	} else {
		sorts = append(sorts, FieldSort{
			Field: FieldTotalPoints, Order: "desc", Missing: "_last", UnmappedType: "integer",
		})
	}

	// Seeded randomization breaks remaining ties without disturbing pacing
	// order. Same seed for the whole time bucket, so the order is stable
	// for as long as the cache is.
	sorts = append(sorts, ScriptSort{
		Source: randomTiebreakScript,
		Params: map[string]interface{}{"seed": in.Seed},
		Order:  "desc",
	})

	if b.useLocation(in) {
		sorts = append(sorts, GeoDistanceSort{
			Field: FieldLocation,
			Lat:   in.Location.Lat,
			Lon:   in.Location.Lon,
			Order: "asc",
			Unit:  "mi",
		})
	}

	return sorts
}

// ==========================
// 3. Term Filters and Tabs
// ==========================

// buildGroupFilters renders selected terms into one OR clause per group. A
// document must match at least one term in every selected group.
func buildGroupFilters(selected map[string][]string) []Filter {
	var filters []Filter
	for _, g := range termGroups {
		values := selected[g.Key]
		if len(values) == 0 {
			continue
		}
		or := OrFilter{}
		for _, v := range values {
			or.Filters = append(or.Filters, MatchFilter{Field: g.Field, Value: v})
		}
		filters = append(filters, or)
	}
	return filters
}

// ExtractTerms flattens selected terms into the per-tab term list, in the
// fixed group order and preserving each group's value order.
func ExtractTerms(selected map[string][]string) []TabTerm {
	var terms []TabTerm
	for _, g := range termGroups {
		for _, v := range selected[g.Key] {
			terms = append(terms, TabTerm{
				Key:   g.Key + "_" + slugify(v),
				Type:  g.Key,
				Value: v,
				Field: g.Field,
				Label: v,
			})
		}
	}
	return terms
}

// BuildTabbed renders one sub-query per tab term as a multi-search NDJSON
// body. Every sub-query shares the base filters and sort.
func (b *Builder) BuildTabbed(in Input, terms []TabTerm) ([]byte, error) {
	var body bytes.Buffer
	for _, term := range terms {
		q := b.baseQuery(in)
		addFilters(q, MatchFilter{Field: term.Field, Value: term.Value})

		body.WriteString("{}\n")
		line, err := json.Marshal(q)
		if err != nil {
			return nil, err
		}
		body.Write(line)
		body.WriteByte('\n')
	}
	return body.Bytes(), nil
}

// addFilters appends clauses to the query's bool filter, creating it when
// the base query had no geo filter.
func addFilters(q map[string]interface{}, filters ...Filter) {
	boolQuery := q["query"].(map[string]interface{})["bool"].(map[string]interface{})
	existing, _ := boolQuery["filter"].([]map[string]interface{})
	boolQuery["filter"] = append(existing, clauses(filters)...)
}

func dedupeIDs(ids []int64) []int64 {
	if len(ids) == 0 {
		return nil
	}
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id <= 0 {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

func slugify(s string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(strings.TrimSpace(s)) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
		case r == ' ' || r == '-' || r == '_':
			sb.WriteByte('-')
		}
	}
	return strings.Trim(sb.String(), "-")
}

func sourceFields() []string {
	return []string{
		"title",
		"listing_id",
		"permalink",
		"listing.premium_level",
		"listing.pacing_score",
		"listing.total_points",
		"listing.address",
		"listing.phone",
		"listing.rating_avg",
		"listing.review_count",
		"listing.image_url",
		"listing.featured_image",
		"listing.claimed",
		"listing.website",
		"listing.overview",
		"listing.winner_name",
		"listing.winner_name2",
		"listing.winner_rank",
		"listing.winner_rank2",
		"listing.city",
		"listing.state",
		"listing.insurance",
		"listing.zip_code",
		"listing.program",
	}
}
