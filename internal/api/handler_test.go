// internal/api/handler_test.go
package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"premium-listings/internal/common/config"
	"premium-listings/internal/common/logger"
	"premium-listings/internal/listing/retrieve"
	"premium-listings/internal/models"
)

type fakeSearcher struct {
	response []byte
	err      error
	calls    int
}

func (f *fakeSearcher) Search(context.Context, []byte) ([]byte, error) {
	f.calls++
	return f.response, f.err
}

func (f *fakeSearcher) MultiSearch(context.Context, []byte) ([]byte, error) {
	f.calls++
	return f.response, f.err
}

type fakeResolver struct{}

func (fakeResolver) CityLocation(context.Context, string, string) (*models.Location, error) {
	return nil, nil
}

func (fakeResolver) ListingLocation(context.Context, int64) (*models.Location, error) {
	return nil, nil
}

func searchResponse(ids ...int64) []byte {
	hits := ""
	for i, id := range ids {
		if i > 0 {
			hits += ","
		}
		hits += fmt.Sprintf(`{"_source":{"listing_id":%d,"title":"Facility %d","listing":{"premium_level":"Premium"}}}`, id, id)
	}
	return []byte(`{"hits":{"hits":[` + hits + `]}}`)
}

func newTestRouter(t *testing.T, searcher *fakeSearcher, cfg config.ListingsConfig) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)

	mr := miniredis.RunT(t)
	rdb := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { rdb.Close() })

	log := logger.NewTestLogger(t)
	engine := retrieve.NewEngine(searcher, fakeResolver{}, rdb, cfg, log)

	api, err := NewAPI(engine, cfg, log)
	require.NoError(t, err)

	router := gin.New()
	SetupRoutes(router, api)
	return router
}

func testConfig() config.ListingsConfig {
	return config.ListingsConfig{
		Index:            "listings",
		CacheTTLSeconds:  900,
		MaxRadiusMiles:   500,
		DefaultCardCount: 3,
		OversampleFactor: 3,
		QueryTimeoutMS:   5000,
	}
}

func postJSON(router *gin.Engine, body string, headers map[string]string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, "/v1/listing-cards", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

// ==========================
// Happy Path
// ==========================

func TestListingCards(t *testing.T) {
	searcher := &fakeSearcher{response: searchResponse(1, 2, 3)}
	router := newTestRouter(t, searcher, testConfig())

	w := postJSON(router, `{
		"mode": "none",
		"card_count": 3,
		"context": {"state": "california"},
		"path": "/california/"
	}`, nil)

	require.Equal(t, http.StatusOK, w.Code)

	var resp retrieveResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.RenderID)
	assert.Len(t, resp.Cards, 3)
	assert.Equal(t, []int64{1, 2, 3}, resp.DisplayedIDs)
}

func TestListingCards_DefaultsApply(t *testing.T) {
	searcher := &fakeSearcher{response: searchResponse(1)}
	router := newTestRouter(t, searcher, testConfig())

	// Empty body object: every field is optional.
	w := postJSON(router, `{}`, nil)
	require.Equal(t, http.StatusOK, w.Code)
}

// ==========================
// Validation
// ==========================

func TestListingCards_Validation(t *testing.T) {
	tests := []struct {
		name string
		body string
	}{
		{"not json", `not json at all`},
		{"unknown key rejected", `{"mode": "none", "shuffle": true}`},
		{"bad mode", `{"mode": "everything"}`},
		{"zero card count", `{"card_count": 0}`},
		{"bad page type", `{"context": {"page_type": "galaxy"}}`},
		{"unknown term group", `{"selected_terms": {"colors": ["red"]}}`},
		{"lat out of range", `{"user_location": {"lat": 120, "lon": 0}}`},
		{"location missing lon", `{"user_location": {"lat": 10}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			searcher := &fakeSearcher{response: searchResponse(1)}
			router := newTestRouter(t, searcher, testConfig())

			w := postJSON(router, tt.body, nil)
			require.Equal(t, http.StatusBadRequest, w.Code)
			assert.Contains(t, w.Body.String(), "INVALID_REQUEST")
			assert.Zero(t, searcher.calls, "invalid requests never reach the engine")
		})
	}
}

// ==========================
// Degradation
// ==========================

func TestListingCards_EngineFailureStill200(t *testing.T) {
	searcher := &fakeSearcher{err: errors.New("search backend down")}
	router := newTestRouter(t, searcher, testConfig())

	w := postJSON(router, `{"mode": "none", "card_count": 3}`, nil)

	require.Equal(t, http.StatusOK, w.Code)
	var resp retrieveResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Empty(t, resp.Cards)
	assert.Empty(t, resp.DisplayedIDs)
}

// ==========================
// Flags and Headers
// ==========================

func TestListingCards_BypassGatedByConfig(t *testing.T) {
	searcher := &fakeSearcher{response: searchResponse(1, 2, 3)}
	router := newTestRouter(t, searcher, testConfig()) // AllowCacheBypass=false

	body := `{"mode": "none", "card_count": 3, "bypass_cache": true, "path": "/x/"}`
	postJSON(router, body, nil)
	postJSON(router, body, nil)

	assert.Equal(t, 1, searcher.calls, "bypass is ignored when not enabled, so the second call is a cache hit")
}

func TestListingCards_BypassWhenEnabled(t *testing.T) {
	cfg := testConfig()
	cfg.AllowCacheBypass = true
	searcher := &fakeSearcher{response: searchResponse(1, 2, 3)}
	router := newTestRouter(t, searcher, cfg)

	body := `{"mode": "none", "card_count": 3, "bypass_cache": true, "path": "/x/"}`
	postJSON(router, body, nil)
	postJSON(router, body, nil)

	assert.Equal(t, 2, searcher.calls)
}

func TestListingCards_GeoHeaders(t *testing.T) {
	searcher := &fakeSearcher{response: searchResponse(1)}
	router := newTestRouter(t, searcher, testConfig())

	w := postJSON(router, `{"mode": "none", "card_count": 3, "fetch_location": true}`, map[string]string{
		"X-Geo-Latitude":  "30.26",
		"X-Geo-Longitude": "-97.74",
	})
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 1, searcher.calls)
}

func TestHealth(t *testing.T) {
	router := newTestRouter(t, &fakeSearcher{}, testConfig())

	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "ok")
}
