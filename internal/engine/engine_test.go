package engine_test

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketsight/marketsight/internal/config"
	"github.com/marketsight/marketsight/internal/engine"
	"github.com/marketsight/marketsight/internal/listing"
	"github.com/marketsight/marketsight/internal/persistence"
	"github.com/marketsight/marketsight/internal/persistence/sqlitestore"
	"github.com/marketsight/marketsight/internal/quality"
	"github.com/marketsight/marketsight/internal/report"
	"github.com/marketsight/marketsight/internal/seed"
)

func testEngineConfig() config.EngineConfig {
	return config.EngineConfig{
		MinArea:               500,
		DeviationThresholdPct: 15,
		SigmaMultiplier:       1.5,
		TrainingWindowDays:    90,
		MinTrainingSize:       10,
		ModelTrees:            25,
		ModelMaxDepth:         10,
		ModelSeed:             42,
	}
}

func openSeededStore(t *testing.T, now time.Time) persistence.Store {
	t.Helper()
	st, err := sqlitestore.Open(context.Background(), ":memory:", 5*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	res, err := st.UpsertListings(context.Background(), seed.Demo(now))
	require.NoError(t, err)
	require.NoError(t, res.Err())
	return st
}

func TestEngine_RunDemoBatch(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	st := openSeededStore(t, now)

	paths := config.PathsConfig{ReportsDir: t.TempDir(), ModelsDir: t.TempDir()}
	eng := engine.New(st, testEngineConfig(), paths, engine.WithClock(func() time.Time { return now }))

	rep, err := eng.Run(context.Background(), "12345")
	require.NoError(t, err)
	require.NotNil(t, rep)

	// Eight listings, none fail the gate; below the minimum training size
	// the run degrades to statistics-only scoring.
	assert.Equal(t, 8, rep.TotalListings)
	assert.Equal(t, 0, rep.DQFailures)
	assert.Equal(t, report.ModeStatOnly, rep.Mode)

	// Only the 416.67/area house sits past 1.5 sigma of its group.
	assert.Equal(t, 1, rep.Anomalies)
	assert.Equal(t, 0, rep.Opportunities)
	assert.Equal(t, 1, rep.Risks)

	outlier, err := sqlitestore.AnalysisByID(context.Background(), st, "listing_004")
	require.NoError(t, err)
	assert.True(t, outlier.IsAnomaly)
	require.NotNil(t, outlier.AnomalyKind)
	assert.Equal(t, "over-priced", *outlier.AnomalyKind)
	require.NotNil(t, outlier.PricePerArea)
	assert.InDelta(t, 416.67, *outlier.PricePerArea, 0.01)
	require.NotNil(t, outlier.GroupMean)
	assert.InDelta(t, 252.09, *outlier.GroupMean, 0.01)
	require.NotNil(t, outlier.GroupStd)
	assert.InDelta(t, 86.83, *outlier.GroupStd, 0.01)
	assert.Equal(t, report.ModeStatOnly, outlier.AnalysisMode)
	assert.Equal(t, string(quality.StatusPass), outlier.IngestionQuality)

	normal, err := sqlitestore.AnalysisByID(context.Background(), st, "condo_001")
	require.NoError(t, err)
	assert.False(t, normal.IsAnomaly)
	assert.Nil(t, normal.AnomalyKind)
}

// mlMarket builds a feature-complete synthetic market, 24 houses priced at
// 200 per area unit plus one listing at triple the going rate, large enough
// to cross the minimum training size.
func mlMarket(now time.Time) []listing.Listing {
	rows := make([]listing.Listing, 0, 25)
	for i := 0; i < 24; i++ {
		area := 1000.0 + 50*float64(i)
		rows = append(rows, listing.Listing{
			ID:           fmt.Sprintf("house_%03d", i),
			Price:        listing.Float(200 * area),
			Area:         listing.Float(area),
			Beds:         listing.Int(2 + i%3),
			Baths:        listing.Float(2),
			YearBuilt:    listing.Int(2010 + i%10),
			PropertyType: "House",
			GroupKey:     "67890",
			Address:      listing.String(fmt.Sprintf("%d Market St", i+1)),
			ScrapedAt:    now,
		})
	}
	rows = append(rows, listing.Listing{
		ID:           "house_overpriced",
		Price:        listing.Float(915000), // 3x the 200/area market rate
		Area:         listing.Float(1525),
		Beds:         listing.Int(3),
		Baths:        listing.Float(2),
		YearBuilt:    listing.Int(2015),
		PropertyType: "House",
		GroupKey:     "67890",
		Address:      listing.String("666 Bubble Ct"),
		ScrapedAt:    now,
	})
	return rows
}

func TestEngine_ModelPathScoring(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	st, err := sqlitestore.Open(context.Background(), ":memory:", 5*time.Second)
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	res, err := st.UpsertListings(context.Background(), mlMarket(now))
	require.NoError(t, err)
	require.NoError(t, res.Err())

	cfg := testEngineConfig()
	paths := config.PathsConfig{ReportsDir: t.TempDir(), ModelsDir: t.TempDir()}
	eng := engine.New(st, cfg, paths, engine.WithClock(func() time.Time { return now }))

	rep, err := eng.Run(context.Background(), "67890")
	require.NoError(t, err)
	assert.Equal(t, 25, rep.TotalListings)
	assert.Equal(t, 0, rep.DQFailures)
	assert.Equal(t, report.ModeML, rep.Mode)

	outlier, err := sqlitestore.AnalysisByID(context.Background(), st, "house_overpriced")
	require.NoError(t, err)
	assert.Equal(t, report.ModeML, outlier.AnalysisMode)
	require.NotNil(t, outlier.PredictedPrice)
	assert.Greater(t, *outlier.PredictedPrice, 0.0)
	assert.Less(t, *outlier.PredictedPrice, 915000.0)
	require.NotNil(t, outlier.DeviationPct)
	assert.Greater(t, *outlier.DeviationPct, cfg.DeviationThresholdPct)
	assert.True(t, outlier.IsAnomaly)
	require.NotNil(t, outlier.AnomalyKind)
	assert.Equal(t, "over-priced", *outlier.AnomalyKind)

	// The group reference distribution is recorded even on the model path.
	require.NotNil(t, outlier.GroupMean)
	require.NotNil(t, outlier.GroupStd)

	normal, err := sqlitestore.AnalysisByID(context.Background(), st, "house_010")
	require.NoError(t, err)
	assert.Equal(t, report.ModeML, normal.AnalysisMode)
	require.NotNil(t, normal.PredictedPrice)
	require.NotNil(t, normal.DeviationPct)
	assert.Less(t, math.Abs(*normal.DeviationPct), cfg.DeviationThresholdPct)
	assert.False(t, normal.IsAnomaly)
	require.NotNil(t, normal.GroupMean)
	require.NotNil(t, normal.GroupStd)
}

func TestEngine_RunIsIdempotentPerListing(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	st := openSeededStore(t, now)

	paths := config.PathsConfig{ReportsDir: t.TempDir(), ModelsDir: t.TempDir()}
	eng := engine.New(st, testEngineConfig(), paths, engine.WithClock(func() time.Time { return now }))

	first, err := eng.Run(context.Background(), "12345")
	require.NoError(t, err)
	second, err := eng.Run(context.Background(), "12345")
	require.NoError(t, err)

	assert.Equal(t, first.TotalListings, second.TotalListings)
	assert.Equal(t, first.Anomalies, second.Anomalies)
}

func TestEngine_DQFailuresExcludedFromStats(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	st := openSeededStore(t, now)

	// A zero-area listing with an absurd price: must fail the gate and must
	// not move the House group statistics.
	bad := listing.Listing{
		ID:           "bad_area",
		Price:        listing.Float(99000000),
		Area:         listing.Float(0),
		Beds:         listing.Int(3),
		PropertyType: "House",
		GroupKey:     "12345",
		Address:      listing.String("13 Nowhere"),
		ScrapedAt:    now,
	}
	res, err := st.UpsertListings(context.Background(), []listing.Listing{bad})
	require.NoError(t, err)
	require.NoError(t, res.Err())

	paths := config.PathsConfig{ReportsDir: t.TempDir(), ModelsDir: t.TempDir()}
	eng := engine.New(st, testEngineConfig(), paths, engine.WithClock(func() time.Time { return now }))

	rep, err := eng.Run(context.Background(), "12345")
	require.NoError(t, err)
	assert.Equal(t, 9, rep.TotalListings)
	assert.Equal(t, 1, rep.DQFailures)
	assert.Equal(t, 1, rep.Anomalies) // unchanged by the rejected listing

	badRow, err := sqlitestore.AnalysisByID(context.Background(), st, "bad_area")
	require.NoError(t, err)
	assert.Equal(t, string(quality.StatusAreaBelowMin), badRow.IngestionQuality)
	assert.False(t, badRow.IsAnomaly)
	assert.Nil(t, badRow.PricePerArea)
}

// blockingStore parks RecentByScope until released, to hold a run in flight.
type blockingStore struct {
	persistence.Store
	release chan struct{}
	started chan struct{}
	once    sync.Once
}

func (b *blockingStore) RecentByScope(ctx context.Context, scope string, since time.Time) ([]listing.Listing, error) {
	b.once.Do(func() { close(b.started) })
	<-b.release
	return b.Store.RecentByScope(ctx, scope, since)
}

func TestEngine_RejectsConcurrentRunForSameScope(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	inner := openSeededStore(t, now)
	st := &blockingStore{
		Store:   inner,
		release: make(chan struct{}),
		started: make(chan struct{}),
	}

	paths := config.PathsConfig{ReportsDir: t.TempDir(), ModelsDir: t.TempDir()}
	eng := engine.New(st, testEngineConfig(), paths, engine.WithClock(func() time.Time { return now }))

	done := make(chan error, 1)
	go func() {
		_, err := eng.Run(context.Background(), "12345")
		done <- err
	}()

	<-st.started
	_, err := eng.Run(context.Background(), "12345")
	assert.ErrorIs(t, err, engine.ErrScopeBusy)

	close(st.release)
	require.NoError(t, <-done)

	_, err = eng.Run(context.Background(), "99999")
	require.NoError(t, err)
}

// failingStore returns an error on analysis writes.
type failingStore struct {
	persistence.Store
}

func (f *failingStore) UpsertAnalyses(ctx context.Context, rows []persistence.Analysis) (persistence.UpsertResult, error) {
	return persistence.UpsertResult{}, errors.New("connection lost")
}

func TestEngine_NoReportOnFailedRun(t *testing.T) {
	now := time.Date(2026, 9, 1, 12, 0, 0, 0, time.UTC)
	st := &failingStore{Store: openSeededStore(t, now)}

	paths := config.PathsConfig{ReportsDir: t.TempDir(), ModelsDir: t.TempDir()}
	eng := engine.New(st, testEngineConfig(), paths, engine.WithClock(func() time.Time { return now }))

	rep, err := eng.Run(context.Background(), "12345")
	assert.Error(t, err)
	assert.Nil(t, rep)
}
