package seed

import (
	"time"

	"github.com/marketsight/marketsight/internal/listing"
)

// Demo returns the sample batch used for local development: six houses and
// two condos in one postal scope, as the crawler would emit them.
func Demo(now time.Time) []listing.Listing {
	raws := []listing.Raw{
		{ListingID: "listing_001", Price: "$450,000", Beds: "3", Baths: "2", Area: "2,000", YearBuilt: "2015", PropertyType: "House", DaysOnMarket: "45", Address: "123 Main St", GroupKey: "12345", ListingURL: "https://example.com/001"},
		{ListingID: "listing_002", Price: "$550,000", Beds: "4", Baths: "3", Area: "2,500", YearBuilt: "2010", PropertyType: "House", DaysOnMarket: "30", Address: "456 Oak Ave", GroupKey: "12345", ListingURL: "https://example.com/002"},
		{ListingID: "listing_003", Price: "$350,000", Beds: "3", Baths: "2", Area: "2,200", YearBuilt: "2012", PropertyType: "House", DaysOnMarket: "5", Address: "789 Pine Rd", GroupKey: "12345", ListingURL: "https://example.com/003"},
		{ListingID: "listing_004", Price: "$750,000", Beds: "3", Baths: "2", Area: "1,800", YearBuilt: "2018", PropertyType: "House", DaysOnMarket: "120", Address: "321 Elm St", GroupKey: "12345", ListingURL: "https://example.com/004"},
		{ListingID: "listing_005", Price: "$500,000", Beds: "3", Baths: "2", Area: "2,100", YearBuilt: "2014", PropertyType: "House", DaysOnMarket: "20", Address: "654 Maple Dr", GroupKey: "12345", ListingURL: "https://example.com/005"},
		{ListingID: "listing_006", Price: "$520,000", Beds: "3", Baths: "2", Area: "2,050", YearBuilt: "2016", PropertyType: "House", DaysOnMarket: "35", Address: "987 Birch Ln", GroupKey: "12345", ListingURL: "https://example.com/006"},
		{ListingID: "condo_001", Price: "$300,000", Beds: "2", Baths: "1.5", Area: "1,000", YearBuilt: "2020", PropertyType: "Condo", DaysOnMarket: "15", Address: "111 Condo Way", GroupKey: "12345", ListingURL: "https://example.com/condo_001"},
		{ListingID: "condo_002", Price: "$320,000", Beds: "2", Baths: "2", Area: "1,100", YearBuilt: "2019", PropertyType: "Condo", DaysOnMarket: "25", Address: "222 Condo Way", GroupKey: "12345", ListingURL: "https://example.com/condo_002"},
	}

	out := make([]listing.Listing, len(raws))
	for i, r := range raws {
		out[i] = r.Clean(now)
	}
	return out
}
