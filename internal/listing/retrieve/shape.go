// internal/listing/retrieve/shape.go
package retrieve

import (
	"encoding/json"
	"regexp"
	"strings"

	stderrors "premium-listings/internal/common/errors"
	"premium-listings/internal/listing/query"
	"premium-listings/internal/models"
)

type searchResponse struct {
	Hits struct {
		Hits []struct {
			Source models.ListingSource `json:"_source"`
		} `json:"hits"`
	} `json:"hits"`
}

type msearchResponse struct {
	Responses []json.RawMessage `json:"responses"`
}

// ==========================
// 1. Hit Shaping
// ==========================

// shapeHits decodes one search response and shapes it into at most cardCount
// cards. The store already sorted; shaping only transforms and slices.
func shapeHits(raw []byte, cardCount int) ([]models.Card, error) {
	var resp searchResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, stderrors.NewMalformedResponseError(err)
	}

	cards := make([]models.Card, 0, len(resp.Hits.Hits))
	for _, hit := range resp.Hits.Hits {
		cards = append(cards, toCard(hit.Source))
	}

	if cardCount > 0 && len(cards) > cardCount {
		cards = cards[:cardCount]
	}
	return cards, nil
}

func toCard(src models.ListingSource) models.Card {
	l := src.Listing

	image := l.FeaturedImg
	if image == "" {
		image = l.ImageURL
	}

	addr := parseAddress(l.Address)
	award, awardDescription := deriveAward(l)

	return models.Card{
		ID:           src.ID,
		Title:        src.Title,
		ListingLink:  src.Permalink,
		ListingImage: image,

		Premium:      models.IsPremium(l.PremiumLevel),
		PremiumLevel: l.PremiumLevel,
		TotalPoints:  l.TotalPoints,

		Phone:   formatPhone(l.Phone),
		Address: l.Address,
		City:    addr.City,
		State:   addr.State,
		Zip:     addr.Zip,

		Rating:  l.RatingAvg,
		Reviews: l.ReviewCount,

		Award:            award,
		AwardDescription: awardDescription,

		AcceptsInsurance: l.Insurance,
		Website:          l.Website,
		Overview:         l.Overview,
		Claimed:          l.Claimed,
		Program:          l.Program,
	}
}

// deriveAward builds the award badge from the ranked-list winner fields,
// preferring the primary placement over the secondary one.
func deriveAward(l models.ListingFields) (award, description string) {
	switch {
	case l.WinnerRank != "" && l.WinnerName != "":
		return l.WinnerRank, "Top 10 Facility In " + capitalize(l.WinnerName)
	case l.WinnerRank2 != "" && l.WinnerName2 != "":
		return l.WinnerRank2, "Top 10 Facility In " + capitalize(l.WinnerName2)
	}
	return "", ""
}

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

// ==========================
// 2. Tabbed Shaping
// ==========================

// shapeTabs decodes a multi-search response into per-term card lists, keyed
// by term label in term order. Tabs whose leading cards repeat a previous
// tab's get rotated so the visible cards differ across tabs.
func shapeTabs(raw []byte, terms []query.TabTerm, cardCount int) (map[string][]models.Card, []string, error) {
	var resp msearchResponse
	if err := json.Unmarshal(raw, &resp); err != nil {
		return nil, nil, stderrors.NewMalformedResponseError(err)
	}

	tabs := make(map[string][]models.Card, len(terms))
	order := make([]string, 0, len(terms))
	seen := make(map[int64]bool)

	for i, sub := range resp.Responses {
		if i >= len(terms) {
			break
		}
		term := terms[i]

		cards, err := shapeHits(sub, cardCount)
		if err != nil {
			// One undecodable sub-response empties its tab only.
			cards = nil
		}

		for j := range cards {
			cards[j].TermKey = term.Key
			cards[j].TermLabel = term.Label
			cards[j].TermType = term.Type
			cards[j].TermValue = term.Value
		}

		cards = rotateDuplicateLead(cards, seen)
		for _, c := range leadCards(cards) {
			seen[c.ID] = true
		}

		tabs[term.Label] = cards
		order = append(order, term.Label)
	}

	return tabs, order, nil
}

// rotateDuplicateLead moves a tab's first two cards to the end when either
// of them was already the lead of an earlier tab. Tabs with two or fewer
// cards have nothing to rotate behind, so they are left alone.
func rotateDuplicateLead(cards []models.Card, seen map[int64]bool) []models.Card {
	if len(cards) <= 2 {
		return cards
	}
	duplicate := false
	for _, c := range leadCards(cards) {
		if seen[c.ID] {
			duplicate = true
			break
		}
	}
	if !duplicate {
		return cards
	}
	return append(append([]models.Card{}, cards[2:]...), cards[:2]...)
}

func leadCards(cards []models.Card) []models.Card {
	if len(cards) > 2 {
		return cards[:2]
	}
	return cards
}

// ==========================
// 3. Address and Phone
// ==========================

type addressParts struct {
	Street string
	City   string
	State  string
	Zip    string
}

var (
	spaceRe    = regexp.MustCompile(`\s+`)
	commaRe    = regexp.MustCompile(`\s*,\s*`)
	stateZipRe = regexp.MustCompile(`(?i)\b([A-Z]{2})\s+(\d{5}(?:-\d{4})?)$`)
	digitsRe   = regexp.MustCompile(`[^0-9]`)
)

// parseAddress splits a single-line US address into street/city/state/zip.
// Best effort: anything that does not end in "ST 12345" parses to empty
// parts rather than guessing.
func parseAddress(address string) addressParts {
	var parts addressParts

	address = spaceRe.ReplaceAllString(strings.TrimSpace(address), " ")
	address = commaRe.ReplaceAllString(address, ", ")
	if address == "" {
		return parts
	}

	m := stateZipRe.FindStringSubmatch(address)
	if m == nil {
		return parts
	}
	parts.State = strings.ToUpper(m[1])
	parts.Zip = m[2]

	remaining := strings.TrimSuffix(address, m[0])
	remaining = strings.TrimRight(remaining, ", ")

	if idx := strings.LastIndex(remaining, ","); idx >= 0 {
		parts.Street = strings.TrimSpace(remaining[:idx])
		parts.City = strings.TrimSpace(remaining[idx+1:])
	} else if idx := strings.LastIndex(remaining, " "); idx >= 0 {
		// No comma: take the last word as the city.
		parts.Street = strings.TrimSpace(remaining[:idx])
		parts.City = strings.TrimSpace(remaining[idx+1:])
	} else {
		parts.City = remaining
	}

	return parts
}

// formatPhone renders a US phone number as (xxx) xxx-xxxx, keeping a
// leading country code when present. Anything else passes through
// unchanged.
func formatPhone(phone string) string {
	digits := digitsRe.ReplaceAllString(phone, "")
	switch len(digits) {
	case 10:
		return "(" + digits[:3] + ") " + digits[3:6] + "-" + digits[6:]
	case 11:
		return digits[:1] + " (" + digits[1:4] + ") " + digits[4:7] + "-" + digits[7:]
	}
	return phone
}
