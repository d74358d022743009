// internal/listing/retrieve/orchestrator.go

// Package retrieve runs the retrieval pipeline: resolve the page context,
// consult the result cache, query the document store, shape hits into cards,
// and track what was displayed.
package retrieve

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"

	"premium-listings/internal/common/config"
	stderrors "premium-listings/internal/common/errors"
	"premium-listings/internal/common/logger"
	"premium-listings/internal/common/metrics"
	"premium-listings/internal/listing/cache"
	"premium-listings/internal/listing/geo"
	"premium-listings/internal/listing/query"
	"premium-listings/internal/listing/registry"
	"premium-listings/internal/models"
)

// Searcher executes document store queries. Satisfied by the Elasticsearch
// client wrapper; tests substitute a fake.
type Searcher interface {
	Search(ctx context.Context, body []byte) ([]byte, error)
	MultiSearch(ctx context.Context, body []byte) ([]byte, error)
}

// Result is one placement's retrieval outcome. Exactly one of Cards and
// Tabs is populated, by mode.
type Result struct {
	Cards        []models.Card            `json:"cards,omitempty"`
	Tabs         map[string][]models.Card `json:"tabs,omitempty"`
	TabOrder     []string                 `json:"tab_order,omitempty"`
	DisplayedIDs []int64                  `json:"displayed_ids"`
	FromCache    bool                     `json:"-"`
}

// cacheEntry is the serialized form of a cacheable result. DisplayedIDs are
// recomputed per request, never cached.
type cacheEntry struct {
	Cards    []models.Card            `json:"cards,omitempty"`
	Tabs     map[string][]models.Card `json:"tabs,omitempty"`
	TabOrder []string                 `json:"tab_order,omitempty"`
}

// Engine holds the long-lived retrieval dependencies.
type Engine struct {
	searcher Searcher
	builder  *query.Builder
	geo      geo.Resolver
	rdb      *redis.Client
	cfg      config.ListingsConfig
	logger   logger.Logger
	now      func() time.Time
}

func NewEngine(searcher Searcher, geoResolver geo.Resolver, rdb *redis.Client, cfg config.ListingsConfig, log logger.Logger) *Engine {
	return &Engine{
		searcher: searcher,
		builder:  query.NewBuilder(cfg.MaxRadiusMiles, cfg.OversampleFactor),
		geo:      geoResolver,
		rdb:      rdb,
		cfg:      cfg,
		logger:   log.WithFields(map[string]interface{}{"component": "retrieve"}),
		now:      time.Now,
	}
}

// Session scopes one inbound request: its memo cache tier and its display
// registry live and die with it.
type Session struct {
	engine   *Engine
	cache    *cache.Cache
	registry *registry.Registry
}

func (e *Engine) NewSession() *Session {
	return &Session{
		engine:   e,
		cache:    cache.New(e.rdb, e.cacheTTL(), e.logger),
		registry: registry.New(),
	}
}

func (e *Engine) cacheTTL() time.Duration {
	return time.Duration(e.cfg.CacheTTLSeconds) * time.Second
}

// ==========================
// 1. Pipeline
// ==========================

// Retrieve runs the full pipeline for one placement. It never returns an
// error: every failure is logged and degrades to an empty result, so a
// broken search backend costs the page its cards, not its render.
func (s *Session) Retrieve(ctx context.Context, req Request) Result {
	e := s.engine
	start := e.now()
	mode := normalizeMode(req.Mode)
	defer func() {
		metrics.RetrievalsTotal.WithLabelValues(mode).Inc()
		metrics.RetrievalDuration.WithLabelValues(mode).Observe(e.now().Sub(start).Seconds())
	}()

	if req.CardCount <= 0 {
		req.CardCount = e.cfg.DefaultCardCount
	}

	pageType := req.resolvePageType()
	location := e.resolveLocation(ctx, req, pageType)
	contextKey := registry.ContextKey(req.DisplayContext, req.Path)

	seed := query.BucketSeed(e.now(), e.cacheTTL())
	if req.BypassCache {
		seed = query.RandomSeed()
	}

	key := cache.Key(cache.KeySpec{
		Mode:          mode,
		CardCount:     req.CardCount,
		SelectedTerms: req.SelectedTerms,
		PageType:      pageType,
		StateSlug:     req.Context.StateSlug,
		CitySlug:      req.Context.CitySlug,
		Location:      location,
		Seed:          seed,
		Path:          req.Path,
	})
	opts := cache.Options{SkipMemo: req.ExcludeDisplayed, Bypass: req.BypassCache}
	excluded := s.excludedIDs(req, pageType, contextKey)

	// The cache key deliberately ignores exclusions, so a hit may contain
	// cards this placement must not repeat. Dedup runs against the returned
	// set instead of fragmenting the cache per exclusion list.
	var entry cacheEntry
	if s.cache.Get(ctx, key, &entry, opts) {
		result := Result{
			Cards:     entry.Cards,
			Tabs:      entry.Tabs,
			TabOrder:  entry.TabOrder,
			FromCache: true,
		}
		return s.finish(contextKey, result.without(excluded))
	}

	in := query.Input{
		CardCount:   req.CardCount,
		PageType:    pageType,
		Location:    location,
		StateSlug:   req.Context.StateSlug,
		ExcludedIDs: excluded,
		Seed:        seed,
	}
	if mode == query.ModeFiltered {
		in.SelectedTerms = req.SelectedTerms
	}

	var result Result
	if mode == query.ModeTabbed {
		result = s.retrieveTabbed(ctx, in, req)
	} else {
		result = s.retrieveFlat(ctx, in, req)
	}

	if !result.empty() {
		s.cache.Put(ctx, key, cacheEntry{
			Cards:    result.Cards,
			Tabs:     result.Tabs,
			TabOrder: result.TabOrder,
		}, opts)
	}

	return s.finish(contextKey, result)
}

func (s *Session) retrieveFlat(ctx context.Context, in query.Input, req Request) Result {
	body, err := json.Marshal(s.engine.builder.Build(in))
	if err != nil {
		s.engine.failSearch(stderrors.NewMalformedResponseError(err))
		return Result{}
	}

	raw, err := s.engine.search(ctx, body, false)
	if err != nil {
		return Result{}
	}

	cards, err := shapeHits(raw, req.CardCount)
	if err != nil {
		s.engine.failSearch(err)
		return Result{}
	}
	return Result{Cards: cards}
}

func (s *Session) retrieveTabbed(ctx context.Context, in query.Input, req Request) Result {
	terms := query.ExtractTerms(req.SelectedTerms)
	if len(terms) == 0 {
		// Tabbed placement with nothing selected behaves like a flat one.
		return s.retrieveFlat(ctx, in, req)
	}

	body, err := s.engine.builder.BuildTabbed(in, terms)
	if err != nil {
		s.engine.failSearch(stderrors.NewMalformedResponseError(err))
		return Result{}
	}

	raw, err := s.engine.search(ctx, body, true)
	if err != nil {
		return Result{}
	}

	tabs, order, err := shapeTabs(raw, terms, req.CardCount)
	if err != nil {
		s.engine.failSearch(err)
		return Result{}
	}
	return Result{Tabs: tabs, TabOrder: order}
}

// ==========================
// 2. Execution and Bookkeeping
// ==========================

// search runs one query under the configured timeout. All failures are
// logged and metered here; the caller only sees that there is no result.
func (e *Engine) search(ctx context.Context, body []byte, multi bool) ([]byte, error) {
	timeout := time.Duration(e.cfg.QueryTimeoutMS) * time.Millisecond
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	var (
		raw []byte
		err error
	)
	if multi {
		raw, err = e.searcher.MultiSearch(ctx, body)
	} else {
		raw, err = e.searcher.Search(ctx, body)
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			e.failSearch(stderrors.NewSearchTimeoutError())
		} else {
			e.failSearch(stderrors.NewTransportFailureError(err))
		}
		return nil, err
	}
	return raw, nil
}

func (e *Engine) failSearch(err error) {
	code := stderrors.ErrCodeTransportFailure
	var stdErr *stderrors.StandardError
	if errors.As(err, &stdErr) {
		code = stdErr.Code
	}
	metrics.SearchFailures.WithLabelValues(string(code)).Inc()
	e.logger.Error("retrieval degraded to empty result", map[string]interface{}{
		"error": err.Error(),
	})
}

// excludedIDs merges caller exclusions, the detail page's own listing, and,
// when requested, everything already displayed in this context.
func (s *Session) excludedIDs(req Request, pageType models.PageType, contextKey string) []int64 {
	ids := append([]int64(nil), req.ExcludedIDs...)
	if pageType == models.PageTypeDetail && req.Context.ListingID > 0 {
		ids = append(ids, req.Context.ListingID)
	}
	if req.ExcludeDisplayed {
		ids = append(ids, s.registry.Displayed(contextKey)...)
	}
	return ids
}

// finish registers the result's IDs against the display context and stamps
// them on the result.
func (s *Session) finish(contextKey string, result Result) Result {
	ids := result.collectIDs()
	if len(ids) > 0 {
		s.registry.Register(contextKey, ids)
	}
	result.DisplayedIDs = ids
	return result
}

func (r Result) empty() bool {
	return len(r.Cards) == 0 && len(r.Tabs) == 0
}

// without drops the given IDs from every card list. Used on cache hits,
// where exclusions were not part of the query.
func (r Result) without(ids []int64) Result {
	if len(ids) == 0 {
		return r
	}
	drop := make(map[int64]struct{}, len(ids))
	for _, id := range ids {
		drop[id] = struct{}{}
	}
	filter := func(cards []models.Card) []models.Card {
		out := cards[:0:0]
		for _, c := range cards {
			if _, ok := drop[c.ID]; !ok {
				out = append(out, c)
			}
		}
		return out
	}

	r.Cards = filter(r.Cards)
	if r.Tabs != nil {
		tabs := make(map[string][]models.Card, len(r.Tabs))
		for label, cards := range r.Tabs {
			tabs[label] = filter(cards)
		}
		r.Tabs = tabs
	}
	return r
}

func (r Result) collectIDs() []int64 {
	seen := make(map[int64]struct{})
	var ids []int64
	add := func(cards []models.Card) {
		for _, c := range cards {
			if _, ok := seen[c.ID]; ok {
				continue
			}
			seen[c.ID] = struct{}{}
			ids = append(ids, c.ID)
		}
	}
	add(r.Cards)
	for _, label := range r.TabOrder {
		add(r.Tabs[label])
	}
	return ids
}

func normalizeMode(mode string) string {
	switch mode {
	case "filter", query.ModeFiltered:
		return query.ModeFiltered
	case "tabs", query.ModeTabbed:
		return query.ModeTabbed
	default:
		return query.ModeAll
	}
}
