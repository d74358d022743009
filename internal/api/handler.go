// internal/api/handler.go

// Package api is the thin REST surface over the retrieval engine. It
// validates and maps requests; ranking and caching live below it.
package api

import (
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/xeipuuv/gojsonschema"

	"premium-listings/internal/common/config"
	stderrors "premium-listings/internal/common/errors"
	"premium-listings/internal/common/logger"
	"premium-listings/internal/listing/retrieve"
	"premium-listings/internal/models"
)

// API holds the handler dependencies.
type API struct {
	engine *retrieve.Engine
	cfg    config.ListingsConfig
	logger logger.Logger
	schema *gojsonschema.Schema
}

func NewAPI(engine *retrieve.Engine, cfg config.ListingsConfig, log logger.Logger) (*API, error) {
	schema, err := gojsonschema.NewSchema(gojsonschema.NewStringLoader(retrieveRequestSchema))
	if err != nil {
		return nil, err
	}
	return &API{
		engine: engine,
		cfg:    cfg,
		logger: log.WithFields(map[string]interface{}{"component": "api"}),
		schema: schema,
	}, nil
}

// SetupRoutes registers all routes.
func SetupRoutes(router *gin.Engine, api *API) {
	router.GET("/healthz", api.HealthHandler)

	v1 := router.Group("/v1")
	{
		v1.POST("/listing-cards", api.ListingCardsHandler)
	}
}

// ==========================
// 1. Request / Response
// ==========================

type retrieveRequest struct {
	Mode          string              `json:"mode"`
	CardCount     int                 `json:"card_count"`
	SelectedTerms map[string][]string `json:"selected_terms"`
	Context       struct {
		PageType  string `json:"page_type"`
		State     string `json:"state"`
		City      string `json:"city"`
		ListingID int64  `json:"listing_id"`
	} `json:"context"`
	ExcludeDisplayed bool    `json:"exclude_displayed"`
	ExcludedIDs      []int64 `json:"excluded_ids"`
	DisplayContext   string  `json:"display_context"`
	Path             string  `json:"path"`
	UserLocation     *struct {
		Lat float64 `json:"lat"`
		Lon float64 `json:"lon"`
	} `json:"user_location"`
	FetchLocation bool `json:"fetch_location"`
	BypassCache   bool `json:"bypass_cache"`
}

type retrieveResponse struct {
	RenderID     string                   `json:"render_id"`
	Cards        []models.Card            `json:"cards"`
	Tabs         map[string][]models.Card `json:"tabs,omitempty"`
	TabOrder     []string                 `json:"tab_order,omitempty"`
	DisplayedIDs []int64                  `json:"displayed_ids"`
	FromCache    bool                     `json:"from_cache"`
}

type errorResponse struct {
	Error *stderrors.StandardError `json:"error"`
}

// ==========================
// 2. Handlers
// ==========================

func (api *API) HealthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

// ListingCardsHandler runs one retrieval. Invalid payloads get a 400;
// engine-level failures still return 200 with empty cards, because listing
// content is supplementary and callers render without it.
func (api *API) ListingCardsHandler(c *gin.Context) {
	body, err := io.ReadAll(c.Request.Body)
	if err != nil {
		api.badRequest(c, "unreadable request body")
		return
	}

	result, schemaErr := api.schema.Validate(gojsonschema.NewBytesLoader(body))
	if schemaErr != nil {
		api.badRequest(c, "request body is not valid JSON")
		return
	}
	if !result.Valid() {
		details := make([]string, 0, len(result.Errors()))
		for _, e := range result.Errors() {
			details = append(details, e.String())
		}
		api.badRequest(c, strings.Join(details, "; "))
		return
	}

	var req retrieveRequest
	if err := json.Unmarshal(body, &req); err != nil {
		api.badRequest(c, "request body does not match the expected shape")
		return
	}

	engineReq := api.toEngineRequest(c, req)
	res := api.engine.NewSession().Retrieve(c.Request.Context(), engineReq)

	cards := res.Cards
	if cards == nil {
		cards = []models.Card{}
	}
	c.JSON(http.StatusOK, retrieveResponse{
		RenderID:     uuid.NewString(),
		Cards:        cards,
		Tabs:         res.Tabs,
		TabOrder:     res.TabOrder,
		DisplayedIDs: res.DisplayedIDs,
		FromCache:    res.FromCache,
	})
}

func (api *API) toEngineRequest(c *gin.Context, req retrieveRequest) retrieve.Request {
	out := retrieve.Request{
		Mode:          req.Mode,
		CardCount:     req.CardCount,
		SelectedTerms: req.SelectedTerms,
		Context: retrieve.PageContext{
			PageType:  models.PageType(req.Context.PageType),
			StateSlug: req.Context.State,
			CitySlug:  req.Context.City,
			ListingID: req.Context.ListingID,
		},
		ExcludeDisplayed: req.ExcludeDisplayed,
		ExcludedIDs:      req.ExcludedIDs,
		DisplayContext:   req.DisplayContext,
		Path:             req.Path,
	}
	if out.Path == "" {
		out.Path = c.Request.URL.Path
	}

	if req.UserLocation != nil {
		out.UserLocation = &models.Location{Lat: req.UserLocation.Lat, Lon: req.UserLocation.Lon}
	} else if req.FetchLocation {
		out.UserLocation = locationFromHeaders(c)
	}

	// The bypass flag forces live queries; it stays dark unless explicitly
	// enabled for the deployment.
	if req.BypassCache && api.cfg.AllowCacheBypass {
		out.BypassCache = true
	}

	return out
}

func (api *API) badRequest(c *gin.Context, details string) {
	c.JSON(http.StatusBadRequest, errorResponse{
		Error: stderrors.NewInvalidRequestError(details),
	})
}

// locationFromHeaders reads the coarse coordinates the edge proxy attaches
// to geolocated requests.
func locationFromHeaders(c *gin.Context) *models.Location {
	lat, errLat := strconv.ParseFloat(c.GetHeader("X-Geo-Latitude"), 64)
	lon, errLon := strconv.ParseFloat(c.GetHeader("X-Geo-Longitude"), 64)
	if errLat != nil || errLon != nil {
		return nil
	}
	return &models.Location{Lat: lat, Lon: lon}
}
