// internal/listing/cache/key.go
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"sort"

	"premium-listings/internal/models"
)

const keyPrefix = "listing_cards:"

// KeySpec holds exactly the request attributes that determine query results.
// Exclusion lists, render identifiers, and presentation-only fields are
// deliberately absent: two placements that differ only in those must share a
// cached entry.
type KeySpec struct {
	Mode          string              `json:"mode"`
	CardCount     int                 `json:"card_count"`
	SelectedTerms map[string][]string `json:"selected_terms,omitempty"`
	PageType      models.PageType     `json:"page_type"`
	StateSlug     string              `json:"state"`
	CitySlug      string              `json:"city"`
	Location      *models.Location    `json:"location,omitempty"`
	Seed          int64               `json:"seed"`
	Path          string              `json:"path"`
}

// Key returns the deterministic cache key for the spec. Term groups are
// serialized in sorted order so map iteration cannot produce two keys for
// the same request.
func Key(spec KeySpec) string {
	normalized := struct {
		Mode          string           `json:"mode"`
		CardCount     int              `json:"card_count"`
		SelectedTerms []termEntry      `json:"selected_terms,omitempty"`
		PageType      models.PageType  `json:"page_type"`
		StateSlug     string           `json:"state"`
		CitySlug      string           `json:"city"`
		Location      *models.Location `json:"location,omitempty"`
		Seed          int64            `json:"seed"`
		Path          string           `json:"path"`
	}{
		Mode:          spec.Mode,
		CardCount:     spec.CardCount,
		SelectedTerms: normalizeTerms(spec.SelectedTerms),
		PageType:      spec.PageType,
		StateSlug:     spec.StateSlug,
		CitySlug:      spec.CitySlug,
		Location:      spec.Location,
		Seed:          spec.Seed,
		Path:          spec.Path,
	}

	raw, _ := json.Marshal(normalized)
	sum := sha256.Sum256(raw)
	return keyPrefix + hex.EncodeToString(sum[:])
}

type termEntry struct {
	Group  string   `json:"group"`
	Values []string `json:"values"`
}

func normalizeTerms(selected map[string][]string) []termEntry {
	if len(selected) == 0 {
		return nil
	}
	groups := make([]string, 0, len(selected))
	for g, values := range selected {
		if len(values) > 0 {
			groups = append(groups, g)
		}
	}
	sort.Strings(groups)

	out := make([]termEntry, 0, len(groups))
	for _, g := range groups {
		values := append([]string(nil), selected[g]...)
		sort.Strings(values)
		out = append(out, termEntry{Group: g, Values: values})
	}
	return out
}
