package model_test

import (
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/marketsight/marketsight/internal/listing"
	"github.com/marketsight/marketsight/internal/model"
	"github.com/marketsight/marketsight/internal/quality"
)

func syntheticListings(n int, now time.Time) []listing.Listing {
	out := make([]listing.Listing, n)
	for i := 0; i < n; i++ {
		area := 1000.0 + float64(i)*50
		price := area * 200 // linear market: 200 per unit area
		out[i] = listing.Listing{
			ID:               fmt.Sprintf("syn_%03d", i),
			Price:            listing.Float(price),
			Area:             listing.Float(area),
			Beds:             listing.Int(2 + i%3),
			Baths:            listing.Float(float64(1 + i%2)),
			YearBuilt:        listing.Int(1990 + i%30),
			PropertyType:     "House",
			GroupKey:         "12345",
			IngestionQuality: string(quality.StatusPass),
			ScrapedAt:        now.AddDate(0, 0, -(i % 30)),
		}
	}
	return out
}

func testParams() model.Params {
	return model.Params{
		WindowDays:      90,
		MinTrainingSize: 10,
		NumTrees:        25,
		MaxDepth:        10,
		Seed:            42,
	}
}

func TestPredictor_FallbackBelowMinimum(t *testing.T) {
	now := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	p := model.New(testParams())

	trained := p.Train(syntheticListings(8, now), now)
	assert.False(t, trained)
	assert.False(t, p.Trained())
	assert.Equal(t, 8, p.TrainingSize())

	_, ok := p.Predict(syntheticListings(1, now)[0])
	assert.False(t, ok)
}

func TestPredictor_TrainAndPredict(t *testing.T) {
	now := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	rows := syntheticListings(40, now)

	p := model.New(testParams())
	require.True(t, p.Train(rows, now))
	assert.Equal(t, 40, p.TrainingSize())

	// An in-distribution listing should predict near the linear market rate.
	target := listing.Listing{
		Area:      listing.Float(1500),
		Beds:      listing.Int(3),
		Baths:     listing.Float(2),
		YearBuilt: listing.Int(2005),
	}
	pred, ok := p.Predict(target)
	require.True(t, ok)
	assert.Greater(t, pred, 0.0)
	assert.InDelta(t, 300000, pred, 60000)
}

func TestPredictor_Deterministic(t *testing.T) {
	now := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	rows := syntheticListings(40, now)
	target := listing.Listing{
		Area:      listing.Float(1234),
		Beds:      listing.Int(3),
		Baths:     listing.Float(2),
		YearBuilt: listing.Int(2001),
	}

	a := model.New(testParams())
	require.True(t, a.Train(rows, now))
	predA, _ := a.Predict(target)

	b := model.New(testParams())
	require.True(t, b.Train(rows, now))
	predB, _ := b.Predict(target)

	assert.Equal(t, predA, predB)
}

func TestPredictor_ExcludesStaleAndFailedRows(t *testing.T) {
	now := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	rows := syntheticListings(12, now)
	rows[0].ScrapedAt = now.AddDate(0, 0, -120) // outside 90-day window
	rows[1].IngestionQuality = string(quality.StatusMissingPrice)

	p := model.New(testParams())
	p.Train(rows, now)
	assert.Equal(t, 10, p.TrainingSize())
}

func TestPredictor_ImputesMissingOptionalFeatures(t *testing.T) {
	now := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	rows := syntheticListings(20, now)

	p := model.New(testParams())
	require.True(t, p.Train(rows, now))

	// Baths and year built absent at prediction time: the training medians
	// fill in, prediction still succeeds.
	target := listing.Listing{Area: listing.Float(1500), Beds: listing.Int(3)}
	pred, ok := p.Predict(target)
	require.True(t, ok)
	assert.Greater(t, pred, 0.0)
}

func TestBundle_RoundTrip(t *testing.T) {
	now := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	rows := syntheticListings(40, now)

	p := model.New(testParams())
	require.True(t, p.Train(rows, now))

	bundle, err := p.Bundle("12345", now)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "model_12345.json")
	require.NoError(t, model.SaveBundle(path, bundle))

	loaded, err := model.LoadBundle(path)
	require.NoError(t, err)
	assert.Equal(t, bundle.TrainingSize, loaded.TrainingSize)
	assert.Equal(t, bundle.Scaler, loaded.Scaler)

	restored := model.New(testParams())
	require.NoError(t, restored.Restore(loaded))
	assert.True(t, restored.Trained())

	target := listing.Listing{
		Area:      listing.Float(1500),
		Beds:      listing.Int(3),
		Baths:     listing.Float(2),
		YearBuilt: listing.Int(2005),
	}
	want, _ := p.Predict(target)
	got, ok := restored.Predict(target)
	require.True(t, ok)
	assert.Equal(t, want, got)
}

func TestBundle_CorruptArtifactMeansAbsent(t *testing.T) {
	now := time.Date(2026, 9, 1, 0, 0, 0, 0, time.UTC)
	p := model.New(testParams())
	require.True(t, p.Train(syntheticListings(40, now), now))

	bundle, err := p.Bundle("12345", now)
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "model.json")
	require.NoError(t, model.SaveBundle(path, bundle))

	t.Run("tampered_payload_fails_checksum", func(t *testing.T) {
		data, err := os.ReadFile(path)
		require.NoError(t, err)
		tampered := []byte(string(data))
		// Flip the training size digit somewhere in the payload.
		for i := range tampered {
			if tampered[i] == '4' {
				tampered[i] = '7'
				break
			}
		}
		bad := filepath.Join(t.TempDir(), "bad.json")
		require.NoError(t, os.WriteFile(bad, tampered, 0644))

		_, err = model.LoadBundle(bad)
		assert.Error(t, err)

		fresh := model.New(testParams())
		assert.False(t, fresh.LoadInto(bad))
		assert.False(t, fresh.Trained())
	})

	t.Run("missing_file_means_absent", func(t *testing.T) {
		fresh := model.New(testParams())
		assert.False(t, fresh.LoadInto(filepath.Join(t.TempDir(), "nope.json")))
	})

	t.Run("truncated_json_means_absent", func(t *testing.T) {
		trunc := filepath.Join(t.TempDir(), "trunc.json")
		require.NoError(t, os.WriteFile(trunc, []byte(`{"version":1,`), 0644))
		fresh := model.New(testParams())
		assert.False(t, fresh.LoadInto(trunc))
	})
}

func TestFitScaler(t *testing.T) {
	t.Run("standardizes_columns", func(t *testing.T) {
		X := [][]float64{{1, 10}, {3, 30}}
		s, err := model.FitScaler(X)
		require.NoError(t, err)
		assert.Equal(t, []float64{2, 20}, s.Mean)

		z := s.Transform([]float64{2, 20})
		assert.Equal(t, []float64{0, 0}, z)
	})

	t.Run("zero_variance_column_keeps_unit_scale", func(t *testing.T) {
		X := [][]float64{{5, 1}, {5, 2}}
		s, err := model.FitScaler(X)
		require.NoError(t, err)
		assert.Equal(t, 1.0, s.Std[0])
	})

	t.Run("empty_matrix_errors", func(t *testing.T) {
		_, err := model.FitScaler(nil)
		assert.Error(t, err)
	})
}
