// internal/listing/query/builder_test.go
package query

import (
	"bytes"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"premium-listings/internal/models"
)

func testLocation() *models.Location {
	return &models.Location{Lat: 34.05, Lon: -118.24}
}

// roundTrip re-encodes the query body through JSON so assertions see the
// exact shape the document store would receive.
func roundTrip(t *testing.T, q map[string]interface{}) map[string]interface{} {
	t.Helper()
	raw, err := json.Marshal(q)
	require.NoError(t, err)
	var out map[string]interface{}
	require.NoError(t, json.Unmarshal(raw, &out))
	return out
}

func boolQuery(t *testing.T, q map[string]interface{}) map[string]interface{} {
	t.Helper()
	return q["query"].(map[string]interface{})["bool"].(map[string]interface{})
}

func sortList(t *testing.T, q map[string]interface{}) []interface{} {
	t.Helper()
	return q["sort"].([]interface{})
}

// ==========================
// Base Query Shape
// ==========================

func TestBuild_BaseQueryShape(t *testing.T) {
	b := NewBuilder(500, 3)

	q := roundTrip(t, b.Build(Input{
		CardCount: 3,
		PageType:  models.PageTypeDefault,
		Location:  testLocation(),
		Seed:      1234,
	}))

	assert.EqualValues(t, 9, q["size"], "size oversamples card count by 3x")

	bq := boolQuery(t, q)
	must := bq["must"].([]interface{})
	require.Len(t, must, 2)
	assert.Contains(t, must[0].(map[string]interface{}), "match")
	_, hasMustNot := bq["must_not"]
	assert.False(t, hasMustNot, "no exclusions means no must_not clause")

	filter := bq["filter"].([]interface{})
	require.Len(t, filter, 1)
	geo := filter[0].(map[string]interface{})["geo_distance"].(map[string]interface{})
	assert.Equal(t, "500mi", geo["distance"])

	src := q["_source"].(map[string]interface{})["includes"].([]interface{})
	assert.Contains(t, src, "listing.pacing_score")
	assert.Contains(t, src, "permalink")
}

func TestBuild_ExcludedIDs(t *testing.T) {
	b := NewBuilder(500, 3)

	q := roundTrip(t, b.Build(Input{
		CardCount:   3,
		PageType:    models.PageTypeDetail,
		Location:    testLocation(),
		ExcludedIDs: []int64{10, 20, 10, 0, -3},
	}))

	mustNot := boolQuery(t, q)["must_not"].([]interface{})
	require.Len(t, mustNot, 1)
	terms := mustNot[0].(map[string]interface{})["terms"].(map[string]interface{})
	ids := terms["listing_id"].([]interface{})
	// Duplicates and non-positive IDs are dropped.
	assert.Len(t, ids, 2)
}

func TestBuild_StatePageUsesStateFilterNotGeo(t *testing.T) {
	b := NewBuilder(500, 3)

	q := roundTrip(t, b.Build(Input{
		CardCount: 3,
		PageType:  models.PageTypeState,
		Location:  testLocation(), // present but ignored statewide
		StateSlug: "california",
	}))

	bq := boolQuery(t, q)
	_, hasFilter := bq["filter"]
	assert.False(t, hasFilter, "state pages never geo-filter")

	must := bq["must"].([]interface{})
	require.Len(t, must, 3)
	term := must[2].(map[string]interface{})["term"].(map[string]interface{})
	assert.Equal(t, "california", term["listing.state_slug"])
}

func TestBuild_CityPageFallsBackToStateFilter(t *testing.T) {
	b := NewBuilder(500, 3)

	// City term without coordinates degrades to state-level scoping.
	q := roundTrip(t, b.Build(Input{
		CardCount: 3,
		PageType:  models.PageTypeCity,
		Location:  nil,
		StateSlug: "texas",
	}))

	bq := boolQuery(t, q)
	must := bq["must"].([]interface{})
	require.Len(t, must, 3)
	_, hasFilter := bq["filter"]
	assert.False(t, hasFilter)
}

// ==========================
// Sort Criteria
// ==========================

func TestBuild_SortStagesWithLocation(t *testing.T) {
	b := NewBuilder(500, 3)

	q := roundTrip(t, b.Build(Input{
		CardCount: 3,
		PageType:  models.PageTypeDefault,
		Location:  testLocation(),
		Seed:      42,
	}))

	sorts := sortList(t, q)
	require.Len(t, sorts, 5)

	first := sorts[0].(map[string]interface{})
	level := first["listing.premium_level.keyword"].(map[string]interface{})
	assert.Equal(t, "desc", level["order"])
	assert.Equal(t, "_last", level["missing"])

	second := sorts[1].(map[string]interface{})
	pacing := second["listing.pacing_score"].(map[string]interface{})
	assert.Equal(t, "desc", pacing["order"])
	assert.EqualValues(t, 0, pacing["missing"])

	third := sorts[2].(map[string]interface{})["_script"].(map[string]interface{})
	script := third["script"].(map[string]interface{})
	assert.Contains(t, script["source"], "arcDistance")

	fourth := sorts[3].(map[string]interface{})["_script"].(map[string]interface{})
	random := fourth["script"].(map[string]interface{})
	assert.Contains(t, random["source"], "Random(seed + listingId)")
	params := random["params"].(map[string]interface{})
	assert.EqualValues(t, 42, params["seed"])

	fifth := sorts[4].(map[string]interface{})["_geo_distance"].(map[string]interface{})
	assert.Equal(t, "asc", fifth["order"])
	assert.Equal(t, "mi", fifth["unit"])
}

func TestBuild_SortStagesWithoutLocation(t *testing.T) {
	b := NewBuilder(500, 3)

	q := roundTrip(t, b.Build(Input{
		CardCount: 3,
		PageType:  models.PageTypeState,
		StateSlug: "california",
	}))

	sorts := sortList(t, q)
	require.Len(t, sorts, 4, "no distance sort and no distance boost statewide")

	third := sorts[2].(map[string]interface{})
	points, ok := third["listing.total_points"].(map[string]interface{})
	require.True(t, ok, "relevance stage degrades to the plain points field")
	assert.Equal(t, "desc", points["order"])
}

// ==========================
// Filtered Mode
// ==========================

func TestBuild_FilteredModeGroupsTerms(t *testing.T) {
	b := NewBuilder(500, 3)

	q := roundTrip(t, b.Build(Input{
		CardCount: 3,
		PageType:  models.PageTypeDefault,
		Location:  testLocation(),
		SelectedTerms: map[string][]string{
			"treatmentOptions": {"Alcohol", "Opioid"},
			"amenities":        {"Pool"},
		},
	}))

	filter := boolQuery(t, q)["filter"].([]interface{})
	// geo filter + one OR group per selected group, ANDed together
	require.Len(t, filter, 3)

	group := filter[1].(map[string]interface{})["bool"].(map[string]interface{})
	assert.EqualValues(t, 1, group["minimum_should_match"])
	should := group["should"].([]interface{})
	assert.Len(t, should, 2)
	match := should[0].(map[string]interface{})["match"].(map[string]interface{})
	assert.Equal(t, "Alcohol", match["listing.treatment"])
}

// ==========================
// Tabbed Mode
// ==========================

func TestExtractTerms_FixedGroupOrder(t *testing.T) {
	terms := ExtractTerms(map[string][]string{
		"amenities":        {"Pool"},
		"treatmentOptions": {"Alcohol Detox"},
		"programs":         {"Inpatient", "Outpatient"},
	})

	require.Len(t, terms, 4)
	assert.Equal(t, "treatmentOptions_alcohol-detox", terms[0].Key)
	assert.Equal(t, "programs_inpatient", terms[1].Key)
	assert.Equal(t, "programs_outpatient", terms[2].Key)
	assert.Equal(t, "amenities_pool", terms[3].Key)
	assert.Equal(t, "listing.amenities", terms[3].Field)
	assert.Equal(t, "Pool", terms[3].Label)
}

func TestBuildTabbed_NDJSON(t *testing.T) {
	b := NewBuilder(500, 3)

	terms := ExtractTerms(map[string][]string{
		"amenities": {"Pool"},
		"programs":  {"Outpatient"},
	})
	body, err := b.BuildTabbed(Input{
		CardCount: 3,
		PageType:  models.PageTypeDefault,
		Location:  testLocation(),
	}, terms)
	require.NoError(t, err)

	lines := bytes.Split(bytes.TrimRight(body, "\n"), []byte("\n"))
	require.Len(t, lines, 4, "header + query per tab")
	assert.Equal(t, "{}", string(lines[0]))
	assert.Equal(t, "{}", string(lines[2]))

	var q map[string]interface{}
	require.NoError(t, json.Unmarshal(lines[1], &q))
	filter := boolQuery(t, q)["filter"].([]interface{})
	last := filter[len(filter)-1].(map[string]interface{})["match"].(map[string]interface{})
	assert.Equal(t, "Outpatient", last["listing.programs"])
}

// ==========================
// Seed
// ==========================

func TestBucketSeed_StableWithinWindow(t *testing.T) {
	window := 15 * time.Minute
	base := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

	a := BucketSeed(base, window)
	b := BucketSeed(base.Add(14*time.Minute+59*time.Second), window)
	c := BucketSeed(base.Add(window), window)

	assert.Equal(t, a, b, "seed is stable inside one bucket")
	assert.Equal(t, a+1, c, "seed advances exactly once per bucket")
}

func TestBucketSeed_ZeroWindowDefaults(t *testing.T) {
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	assert.Equal(t, BucketSeed(now, 15*time.Minute), BucketSeed(now, 0))
}
