package listing

import (
	"crypto/sha1"
	"encoding/hex"
	"strconv"
	"strings"
	"time"
)

// Raw is a listing record as the crawler emits it: everything stringly typed,
// any field possibly empty. Clean converts it into a typed Listing where
// unparseable values become absent, never errors.
type Raw struct {
	ListingID    string `json:"listing_id"`
	Price        string `json:"price"`
	Beds         string `json:"beds"`
	Baths        string `json:"baths"`
	Area         string `json:"area"`
	YearBuilt    string `json:"year_built"`
	PropertyType string `json:"property_type"`
	DaysOnMarket string `json:"days_on_market"`
	Address      string `json:"address"`
	GroupKey     string `json:"group_key"`
	ListingURL   string `json:"listing_url"`
	AgentName    string `json:"agent_name"`
	NumPhotos    string `json:"num_photos"`
	ScrapedAt    string `json:"scraped_at"`
}

// Clean normalizes a raw crawler record. Missing listing IDs fall back to a
// hash of the listing URL so re-scrapes of the same page stay stable.
func (r Raw) Clean(now time.Time) Listing {
	l := Listing{
		ID:           r.ListingID,
		Price:        ParsePrice(r.Price),
		Beds:         parseInt(r.Beds),
		Baths:        parseFloat(r.Baths),
		Area:         ParseArea(r.Area),
		YearBuilt:    parseInt(r.YearBuilt),
		PropertyType: strings.TrimSpace(r.PropertyType),
		GroupKey:     strings.TrimSpace(r.GroupKey),
		DaysOnMarket: parseInt(r.DaysOnMarket),
		NumPhotos:    parseInt(r.NumPhotos),
		ScrapedAt:    now,
	}

	if addr := strings.TrimSpace(r.Address); addr != "" {
		l.Address = &addr
		city, locality := splitAddress(addr)
		if city != "" {
			l.City = &city
		}
		if locality != "" {
			l.Locality = &locality
		}
	}
	if url := strings.TrimSpace(r.ListingURL); url != "" {
		l.URL = &url
	}
	if agent := strings.TrimSpace(r.AgentName); agent != "" {
		l.AgentName = &agent
	}

	if l.ID == "" && l.URL != nil {
		sum := sha1.Sum([]byte(*l.URL))
		l.ID = hex.EncodeToString(sum[:])
	}

	if ts := strings.TrimSpace(r.ScrapedAt); ts != "" {
		if parsed, err := time.Parse(time.RFC3339, ts); err == nil {
			l.ScrapedAt = parsed
		}
	}

	return l
}

// ParsePrice extracts a currency amount from strings like "$450,000".
// Returns nil when no parseable number remains.
func ParsePrice(s string) *float64 {
	cleaned := stripNonNumeric(s)
	if cleaned == "" {
		return nil
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return nil
	}
	return &v
}

// ParseArea extracts a size from strings like "2,000 sqft".
func ParseArea(s string) *float64 {
	cleaned := stripNonNumeric(s)
	if cleaned == "" {
		return nil
	}
	v, err := strconv.ParseFloat(cleaned, 64)
	if err != nil {
		return nil
	}
	return &v
}

func parseFloat(s string) *float64 {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return nil
	}
	return &v
}

func parseInt(s string) *int {
	v, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
	if err != nil {
		return nil
	}
	i := int(v)
	return &i
}

func stripNonNumeric(s string) string {
	var b strings.Builder
	for _, r := range s {
		if r >= '0' && r <= '9' || r == '.' {
			b.WriteRune(r)
		}
	}
	return b.String()
}

// splitAddress derives (city, locality) from a comma-separated address:
// locality is the first segment, city the last. A single segment is street
// text only, so it yields a locality but no city.
func splitAddress(addr string) (city, locality string) {
	var parts []string
	for _, p := range strings.Split(addr, ",") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	switch len(parts) {
	case 0:
		return "", ""
	case 1:
		return "", parts[0]
	}
	return parts[len(parts)-1], parts[0]
}
