package listing

import (
	"time"
)

// Listing is one real-estate unit offered for sale. Optional fields use
// pointers so "absent" is distinguishable from zero; the quality gate relies
// on that distinction.
type Listing struct {
	ID           string    `json:"listing_id" db:"listing_id"`
	Price        *float64  `json:"price,omitempty" db:"price"`
	Beds         *int      `json:"beds,omitempty" db:"beds"`
	Baths        *float64  `json:"baths,omitempty" db:"baths"`
	Area         *float64  `json:"area,omitempty" db:"area"`
	YearBuilt    *int      `json:"year_built,omitempty" db:"year_built"`
	PropertyType string    `json:"property_type" db:"property_type"`
	GroupKey     string    `json:"group_key" db:"group_key"`
	Address      *string   `json:"address,omitempty" db:"address"`
	City         *string   `json:"city,omitempty" db:"city"`
	Locality     *string   `json:"locality,omitempty" db:"locality"`
	URL          *string   `json:"listing_url,omitempty" db:"listing_url"`
	AgentName    *string   `json:"agent_name,omitempty" db:"agent_name"`
	NumPhotos    *int      `json:"num_photos,omitempty" db:"num_photos"`
	DaysOnMarket *int      `json:"days_on_market,omitempty" db:"days_on_market"`

	// IngestionQuality is the persisted data-quality verdict: "PASS" or a
	// failure reason code. Set by the gate, not by the crawler.
	IngestionQuality string `json:"ingestion_quality" db:"ingestion_quality"`

	ScrapedAt time.Time `json:"scraped_at" db:"scraped_at"`
}

// PricePerArea returns price divided by area, the primary anomaly signal.
// Undefined (ok=false) when either field is absent or area is not positive.
func (l *Listing) PricePerArea() (float64, bool) {
	if l.Price == nil || l.Area == nil || *l.Area <= 0 {
		return 0, false
	}
	return *l.Price / *l.Area, true
}

// HasModelFeatures reports whether the listing carries every structural
// feature the fair-value model trains on.
func (l *Listing) HasModelFeatures() bool {
	return l.Area != nil && *l.Area > 0 && l.Beds != nil && *l.Beds > 0 && l.Price != nil && *l.Price > 0
}

func Float(v float64) *float64 { return &v }
func Int(v int) *int           { return &v }
func String(v string) *string  { return &v }
