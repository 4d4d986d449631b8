package persistence

import (
	"context"
	"time"

	"github.com/sony/gobreaker"

	"github.com/marketsight/marketsight/internal/listing"
	"github.com/marketsight/marketsight/internal/stats"
)

// BreakerStore wraps a Store with a circuit breaker so a dead database trips
// fast instead of timing out row by row on every write. Per-row failures
// inside a successful batch do not count against the breaker; only
// whole-call failures do.
type BreakerStore struct {
	inner   Store
	breaker *gobreaker.CircuitBreaker
}

// NewBreakerStore wraps inner with sane batch-engine breaker settings.
func NewBreakerStore(inner Store) *BreakerStore {
	return &BreakerStore{
		inner: inner,
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "store",
			MaxRequests: 1,
			Interval:    60 * time.Second,
			Timeout:     30 * time.Second,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= 3
			},
		}),
	}
}

func (b *BreakerStore) UpsertListings(ctx context.Context, rows []listing.Listing) (UpsertResult, error) {
	out, err := b.breaker.Execute(func() (interface{}, error) {
		return b.inner.UpsertListings(ctx, rows)
	})
	if err != nil {
		return UpsertResult{}, err
	}
	return out.(UpsertResult), nil
}

func (b *BreakerStore) RecentByScope(ctx context.Context, scope string, since time.Time) ([]listing.Listing, error) {
	out, err := b.breaker.Execute(func() (interface{}, error) {
		return b.inner.RecentByScope(ctx, scope, since)
	})
	if err != nil {
		return nil, err
	}
	return out.([]listing.Listing), nil
}

func (b *BreakerStore) UpsertGroupStats(ctx context.Context, rows []stats.GroupStat) (UpsertResult, error) {
	out, err := b.breaker.Execute(func() (interface{}, error) {
		return b.inner.UpsertGroupStats(ctx, rows)
	})
	if err != nil {
		return UpsertResult{}, err
	}
	return out.(UpsertResult), nil
}

func (b *BreakerStore) UpsertAnalyses(ctx context.Context, rows []Analysis) (UpsertResult, error) {
	out, err := b.breaker.Execute(func() (interface{}, error) {
		return b.inner.UpsertAnalyses(ctx, rows)
	})
	if err != nil {
		return UpsertResult{}, err
	}
	return out.(UpsertResult), nil
}

func (b *BreakerStore) Ping(ctx context.Context) error {
	_, err := b.breaker.Execute(func() (interface{}, error) {
		return nil, b.inner.Ping(ctx)
	})
	return err
}

func (b *BreakerStore) Close() error {
	return b.inner.Close()
}
