package listing_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketsight/marketsight/internal/listing"
)

func TestRaw_Clean(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)

	t.Run("parses_currency_and_area_strings", func(t *testing.T) {
		raw := listing.Raw{
			ListingID:    "listing_001",
			Price:        "$450,000",
			Beds:         "3",
			Baths:        "1.5",
			Area:         "2,000 sqft",
			YearBuilt:    "2015",
			PropertyType: "House",
			Address:      "123 Main St, Springfield",
			GroupKey:     "12345",
			ListingURL:   "https://example.com/001",
		}

		l := raw.Clean(now)
		require.NotNil(t, l.Price)
		assert.Equal(t, 450000.0, *l.Price)
		require.NotNil(t, l.Area)
		assert.Equal(t, 2000.0, *l.Area)
		require.NotNil(t, l.Baths)
		assert.Equal(t, 1.5, *l.Baths)
		require.NotNil(t, l.Beds)
		assert.Equal(t, 3, *l.Beds)
		assert.Equal(t, now, l.ScrapedAt)

		require.NotNil(t, l.City)
		assert.Equal(t, "Springfield", *l.City)
		require.NotNil(t, l.Locality)
		assert.Equal(t, "123 Main St", *l.Locality)
	})

	t.Run("street_only_address_has_no_city", func(t *testing.T) {
		l := listing.Raw{ListingID: "x", Address: "123 Main St"}.Clean(now)
		require.NotNil(t, l.Address)
		assert.Nil(t, l.City)
		require.NotNil(t, l.Locality)
		assert.Equal(t, "123 Main St", *l.Locality)
	})

	t.Run("unparseable_numerics_become_absent", func(t *testing.T) {
		raw := listing.Raw{ListingID: "x", Price: "call agent", Area: "n/a", Beds: ""}
		l := raw.Clean(now)
		assert.Nil(t, l.Price)
		assert.Nil(t, l.Area)
		assert.Nil(t, l.Beds)
	})

	t.Run("missing_id_falls_back_to_url_hash", func(t *testing.T) {
		a := listing.Raw{ListingURL: "https://example.com/same"}.Clean(now)
		b := listing.Raw{ListingURL: "https://example.com/same"}.Clean(now)
		require.NotEmpty(t, a.ID)
		assert.Equal(t, a.ID, b.ID)

		c := listing.Raw{ListingURL: "https://example.com/other"}.Clean(now)
		assert.NotEqual(t, a.ID, c.ID)
	})

	t.Run("blank_strings_stay_nil", func(t *testing.T) {
		l := listing.Raw{ListingID: "x", Address: "   ", AgentName: " "}.Clean(now)
		assert.Nil(t, l.Address)
		assert.Nil(t, l.AgentName)
	})
}

func TestListing_PricePerArea(t *testing.T) {
	tests := []struct {
		name   string
		price  *float64
		area   *float64
		want   float64
		wantOK bool
	}{
		{"defined", listing.Float(450000), listing.Float(2000), 225, true},
		{"zero_area", listing.Float(450000), listing.Float(0), 0, false},
		{"negative_area", listing.Float(450000), listing.Float(-10), 0, false},
		{"missing_price", nil, listing.Float(2000), 0, false},
		{"missing_area", listing.Float(450000), nil, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l := listing.Listing{Price: tt.price, Area: tt.area}
			got, ok := l.PricePerArea()
			assert.Equal(t, tt.wantOK, ok)
			if tt.wantOK {
				assert.InDelta(t, tt.want, got, 1e-9)
			}
		})
	}
}
