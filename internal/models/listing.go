// internal/models/listing.go
package models

// Premium level labels as stored in the search index. Sorting on the keyword
// field relies on the lexicographic order Premium+ > Premium > Free.
const (
	LevelFree        = "Free"
	LevelPremium     = "Premium"
	LevelPremiumPlus = "Premium+"
)

// PageType identifies the kind of page a retrieval is rendered on. It drives
// location resolution and the filter layout of the query.
type PageType string

const (
	PageTypeDefault PageType = "default"
	PageTypeDetail  PageType = "facility"
	PageTypeState   PageType = "state"
	PageTypeCity    PageType = "city"
)

// Location is a resolved geographic point, optionally carrying the region
// record it came from.
type Location struct {
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	RegionID int64   `json:"region_id,omitempty"`
	Name     string  `json:"name,omitempty"`
}

// ListingFields is the nested "listing" object of an indexed document. Only
// the projected fields appear here; the index holds more.
type ListingFields struct {
	PremiumLevel string  `json:"premium_level"`
	PacingScore  int     `json:"pacing_score"`
	TotalPoints  float64 `json:"total_points"`
	Address      string  `json:"address"`
	Phone        string  `json:"phone"`
	RatingAvg    float64 `json:"rating_avg"`
	ReviewCount  int     `json:"review_count"`
	ImageURL     string  `json:"image_url"`
	FeaturedImg  string  `json:"featured_image"`
	Website      string  `json:"website"`
	Overview     string  `json:"overview"`
	WinnerName   string  `json:"winner_name"`
	WinnerName2  string  `json:"winner_name2"`
	WinnerRank   string  `json:"winner_rank"`
	WinnerRank2  string  `json:"winner_rank2"`
	City         string  `json:"city"`
	State        string  `json:"state"`
	ZipCode      string  `json:"zip_code"`
	Insurance    bool    `json:"insurance"`
	Claimed      bool    `json:"claimed"`
	Program      string  `json:"program"`
}

// ListingSource is the _source projection of one document store hit.
type ListingSource struct {
	ID        int64         `json:"listing_id"`
	Title     string        `json:"title"`
	Permalink string        `json:"permalink"`
	Listing   ListingFields `json:"listing"`
}

// Card is one shaped result entry, ready for the presentation layer.
type Card struct {
	ID           int64  `json:"id"`
	Title        string `json:"title"`
	ListingLink  string `json:"listing_link"`
	ListingImage string `json:"listing_image"`

	Premium      bool   `json:"premium"`
	PremiumLevel string `json:"premium_level"`

	TotalPoints float64 `json:"original_total_points"`

	Phone   string `json:"phone"`
	Address string `json:"address"`
	City    string `json:"city"`
	State   string `json:"state"`
	Zip     string `json:"zip"`

	Rating  float64 `json:"rating"`
	Reviews int     `json:"reviews"`

	Award            string `json:"award"`
	AwardDescription string `json:"award_description"`

	AcceptsInsurance bool   `json:"accepts_insurance"`
	Website          string `json:"website"`
	Overview         string `json:"overview"`
	Claimed          bool   `json:"claimed"`
	Program          string `json:"program"`

	// Populated in tabbed mode only.
	TermKey   string `json:"term_key,omitempty"`
	TermLabel string `json:"term_label,omitempty"`
	TermType  string `json:"term_type,omitempty"`
	TermValue string `json:"term_value,omitempty"`
}

// IsPremium reports whether a premium level label is a paid tier.
func IsPremium(level string) bool {
	return level == LevelPremium || level == LevelPremiumPlus
}
