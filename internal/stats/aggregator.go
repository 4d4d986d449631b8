package stats

import (
	"math"
	"sort"
	"time"

	"github.com/marketsight/marketsight/internal/listing"
	"github.com/marketsight/marketsight/internal/quality"
)

// GroupStat is the reference distribution for one (group key, property type,
// date) partition: sample mean and Bessel-corrected standard deviation of
// price-per-area over the PASS listings that contributed.
//
// Std is nil when fewer than two listings contributed; the classifier treats
// that as "no deviation can be judged".
type GroupStat struct {
	GroupKey     string    `json:"group_key" db:"group_key"`
	PropertyType string    `json:"property_type" db:"property_type"`
	StatDate     time.Time `json:"stat_date" db:"stat_date"`
	Mean         float64   `json:"mean_ppa" db:"mean_ppa"`
	Std          *float64  `json:"std_ppa,omitempty" db:"std_ppa"`
	Count        int       `json:"listing_count" db:"listing_count"`
}

type partitionKey struct {
	group        string
	propertyType string
}

// Compute builds group statistics from the current set of listings. Only
// PASS listings with a defined price-per-area contribute. The computation is
// stateless and idempotent: the same input always yields the same output,
// in a stable (group, property type) order.
func Compute(listings []listing.Listing, statDate time.Time) []GroupStat {
	partitions := make(map[partitionKey][]float64)
	for i := range listings {
		l := &listings[i]
		if l.IngestionQuality != string(quality.StatusPass) {
			continue
		}
		ppa, ok := l.PricePerArea()
		if !ok {
			continue
		}
		k := partitionKey{group: l.GroupKey, propertyType: l.PropertyType}
		partitions[k] = append(partitions[k], ppa)
	}

	out := make([]GroupStat, 0, len(partitions))
	for k, values := range partitions {
		gs := GroupStat{
			GroupKey:     k.group,
			PropertyType: k.propertyType,
			StatDate:     statDate,
			Mean:         mean(values),
			Count:        len(values),
		}
		if len(values) >= 2 {
			std := sampleStd(values, gs.Mean)
			gs.Std = &std
		}
		out = append(out, gs)
	}

	sort.Slice(out, func(i, j int) bool {
		if out[i].GroupKey != out[j].GroupKey {
			return out[i].GroupKey < out[j].GroupKey
		}
		return out[i].PropertyType < out[j].PropertyType
	})
	return out
}

// Lookup finds the stat for a listing's partition, nil when the partition
// was not computed this run.
func Lookup(statsRows []GroupStat, groupKey, propertyType string) *GroupStat {
	for i := range statsRows {
		if statsRows[i].GroupKey == groupKey && statsRows[i].PropertyType == propertyType {
			return &statsRows[i]
		}
	}
	return nil
}

func mean(values []float64) float64 {
	var sum float64
	for _, v := range values {
		sum += v
	}
	return sum / float64(len(values))
}

// sampleStd divides by n-1. Callers guarantee len(values) >= 2.
func sampleStd(values []float64, mu float64) float64 {
	var ss float64
	for _, v := range values {
		d := v - mu
		ss += d * d
	}
	return math.Sqrt(ss / float64(len(values)-1))
}
