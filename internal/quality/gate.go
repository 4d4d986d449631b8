package quality

import (
	"strings"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/marketsight/marketsight/internal/listing"
)

// Status is the data-quality verdict code persisted on the listing row.
type Status string

const (
	StatusPass           Status = "PASS"
	StatusAreaBelowMin   Status = "FAIL_AREA_BELOW_MIN"
	StatusMissingPrice   Status = "FAIL_MISSING_PRICE"
	StatusMissingAddress Status = "FAIL_MISSING_ADDRESS"
)

// Verdict is the gate outcome for one listing at evaluation time.
type Verdict struct {
	Status      Status    `json:"status"`
	EvaluatedAt time.Time `json:"evaluated_at"`
}

// Passed reports whether the listing is eligible for group statistics and
// model training.
func (v Verdict) Passed() bool { return v.Status == StatusPass }

// Gate applies plausibility rules to incoming listings before they can
// influence aggregate statistics. Rules run in a fixed order; the first
// failure wins.
type Gate struct {
	minArea float64
}

// NewGate returns a gate with the configured minimum plausible area.
func NewGate(minArea float64) *Gate {
	return &Gate{minArea: minArea}
}

// Evaluate checks one listing. Absent fields fail the relevant rule; the
// gate never returns an error, malformed input is a verdict, not a defect.
func (g *Gate) Evaluate(l listing.Listing, now time.Time) Verdict {
	if l.Area == nil || *l.Area < g.minArea {
		area := 0.0
		if l.Area != nil {
			area = *l.Area
		}
		log.Warn().Str("listing_id", l.ID).Float64("area", area).Float64("min_area", g.minArea).
			Msg("dq fail: area below minimum")
		return Verdict{Status: StatusAreaBelowMin, EvaluatedAt: now}
	}

	if l.Price == nil || *l.Price <= 0 {
		price := 0.0
		if l.Price != nil {
			price = *l.Price
		}
		log.Warn().Str("listing_id", l.ID).Float64("price", price).
			Msg("dq fail: missing or zero price")
		return Verdict{Status: StatusMissingPrice, EvaluatedAt: now}
	}

	if l.Address == nil || strings.TrimSpace(*l.Address) == "" {
		log.Warn().Str("listing_id", l.ID).Msg("dq fail: missing address")
		return Verdict{Status: StatusMissingAddress, EvaluatedAt: now}
	}

	return Verdict{Status: StatusPass, EvaluatedAt: now}
}
