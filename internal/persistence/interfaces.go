package persistence

import (
	"context"
	"fmt"
	"time"

	"github.com/marketsight/marketsight/internal/listing"
	"github.com/marketsight/marketsight/internal/stats"
)

// Analysis is one scored listing, keyed by listing ID with upsert semantics.
// PredictedPrice and DeviationPct are nil on the statistical-fallback path;
// GroupMean/GroupStd record the reference distribution that was used.
type Analysis struct {
	ListingID        string    `json:"listing_id" db:"listing_id"`
	PricePerArea     *float64  `json:"price_per_area,omitempty" db:"price_per_area"`
	PredictedPrice   *float64  `json:"predicted_price,omitempty" db:"predicted_price"`
	DeviationPct     *float64  `json:"deviation_pct,omitempty" db:"deviation_pct"`
	IsAnomaly        bool      `json:"is_anomaly" db:"is_anomaly"`
	AnomalyKind      *string   `json:"anomaly_kind,omitempty" db:"anomaly_kind"`
	GroupMean        *float64  `json:"group_mean,omitempty" db:"group_mean"`
	GroupStd         *float64  `json:"group_std,omitempty" db:"group_std"`
	IngestionQuality string    `json:"ingestion_quality" db:"ingestion_quality"`
	AnalysisMode     string    `json:"analysis_mode" db:"analysis_mode"`
	AnalyzedAt       time.Time `json:"analyzed_at" db:"analyzed_at"`
}

// RowError identifies a single failed row within a batch write.
type RowError struct {
	Key string
	Err error
}

// UpsertResult reports per-row outcomes of a batch upsert so a retry can be
// scoped to the failures only.
type UpsertResult struct {
	Succeeded int
	Failed    []RowError
}

// Err summarizes the batch outcome, nil when every row succeeded.
func (r UpsertResult) Err() error {
	if len(r.Failed) == 0 {
		return nil
	}
	return fmt.Errorf("%d of %d rows failed, first failure on %s: %w",
		len(r.Failed), r.Succeeded+len(r.Failed), r.Failed[0].Key, r.Failed[0].Err)
}

// Store is the engine's persistence contract. Every upsert is atomic per
// row; a failed row never corrupts previously written rows, and an empty
// batch is a no-op.
type Store interface {
	// UpsertListings writes listing rows (including the ingestion-quality
	// verdict), insert-or-overwrite keyed by listing ID.
	UpsertListings(ctx context.Context, rows []listing.Listing) (UpsertResult, error)

	// RecentByScope loads listings for a geographic scope scraped at or
	// after since, any quality status.
	RecentByScope(ctx context.Context, scope string, since time.Time) ([]listing.Listing, error)

	// UpsertGroupStats writes reference distributions keyed by
	// (group, property type, date).
	UpsertGroupStats(ctx context.Context, rows []stats.GroupStat) (UpsertResult, error)

	// UpsertAnalyses writes analysis rows keyed by listing ID.
	UpsertAnalyses(ctx context.Context, rows []Analysis) (UpsertResult, error)

	Ping(ctx context.Context) error
	Close() error
}
