package model

import (
	"sort"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/marketsight/marketsight/internal/listing"
	"github.com/marketsight/marketsight/internal/quality"
)

// Feature column order for the fair-value model.
const (
	featArea = iota
	featBeds
	featBaths
	featYearBuilt
	numFeatures
)

// Defaults used when a training set has no value at all for an optional
// feature, matching the prediction-time fallbacks of the statistical design.
const (
	defaultBaths     = 0
	defaultYearBuilt = 2000
)

// Params configures predictor training. Zero values fall back to the
// documented defaults via config; the predictor itself does not default.
type Params struct {
	WindowDays      int
	MinTrainingSize int
	NumTrees        int
	MaxDepth        int
	Seed            int64
	Workers         int
}

// Medians are the imputation values for optional structural features,
// computed from the training set and frozen into the bundle.
type Medians struct {
	Baths     float64 `json:"baths"`
	YearBuilt float64 `json:"year_built"`
}

// Predictor estimates a listing's fair price from structural features. It is
// retrained from scratch on every run; when training data is insufficient it
// stays untrained and callers fall back to group statistics.
type Predictor struct {
	params  Params
	scaler  *Scaler
	forest  *Forest
	medians Medians
	trained bool
	size    int
}

func New(params Params) *Predictor {
	return &Predictor{params: params}
}

// Train builds the training set from PASS listings inside the recency window
// and fits scaler + forest. Returns true when the model is usable. Any data
// defect degrades to untrained, never to an error.
func (p *Predictor) Train(listings []listing.Listing, now time.Time) bool {
	p.trained = false
	p.scaler = nil
	p.forest = nil

	rows := p.trainingRows(listings, now)
	p.size = len(rows)

	if len(rows) < p.params.MinTrainingSize {
		log.Warn().Int("training_size", len(rows)).Int("min_required", p.params.MinTrainingSize).
			Msg("insufficient training data, falling back to statistical scoring")
		return false
	}

	p.medians = computeMedians(rows)

	X := make([][]float64, len(rows))
	y := make([]float64, len(rows))
	for i, r := range rows {
		X[i] = p.featureVector(r)
		y[i] = *r.Price
	}

	scaler, err := FitScaler(X)
	if err != nil {
		log.Warn().Err(err).Msg("degenerate feature matrix, model untrained")
		return false
	}

	forest, err := TrainForest(scaler.TransformAll(X), y, ForestParams{
		NumTrees: p.params.NumTrees,
		MaxDepth: p.params.MaxDepth,
		Seed:     p.params.Seed,
		Workers:  p.params.Workers,
	})
	if err != nil {
		log.Warn().Err(err).Msg("forest training failed, model untrained")
		return false
	}

	p.scaler = scaler
	p.forest = forest
	p.trained = true
	log.Info().Int("training_size", len(rows)).Int("trees", forestSize(forest)).
		Msg("fair-value model trained")
	return true
}

// Trained reports whether Predict can be called this run.
func (p *Predictor) Trained() bool { return p.trained }

// TrainingSize is the number of rows the last Train call saw.
func (p *Predictor) TrainingSize() int { return p.size }

// Predict estimates the fair price for one listing, clamped non-negative.
// ok is false when the predictor is untrained or the listing lacks the
// required features.
func (p *Predictor) Predict(l listing.Listing) (float64, bool) {
	if !p.trained {
		return 0, false
	}
	if l.Area == nil || *l.Area <= 0 || l.Beds == nil {
		return 0, false
	}
	x := p.featureVector(l)
	pred := p.forest.Predict(p.scaler.Transform(x))
	if pred < 0 {
		pred = 0
	}
	return pred, true
}

func (p *Predictor) featureVector(l listing.Listing) []float64 {
	x := make([]float64, numFeatures)
	if l.Area != nil {
		x[featArea] = *l.Area
	}
	if l.Beds != nil {
		x[featBeds] = float64(*l.Beds)
	}
	if l.Baths != nil {
		x[featBaths] = *l.Baths
	} else {
		x[featBaths] = p.medians.Baths
	}
	if l.YearBuilt != nil {
		x[featYearBuilt] = float64(*l.YearBuilt)
	} else {
		x[featYearBuilt] = p.medians.YearBuilt
	}
	return x
}

// trainingRows keeps PASS listings within the recency window that carry
// every required feature.
func (p *Predictor) trainingRows(listings []listing.Listing, now time.Time) []listing.Listing {
	since := now.AddDate(0, 0, -p.params.WindowDays)
	var rows []listing.Listing
	for _, l := range listings {
		if l.IngestionQuality != string(quality.StatusPass) {
			continue
		}
		if l.ScrapedAt.Before(since) || l.ScrapedAt.After(now) {
			continue
		}
		if !l.HasModelFeatures() {
			continue
		}
		rows = append(rows, l)
	}
	return rows
}

func computeMedians(rows []listing.Listing) Medians {
	var baths, years []float64
	for _, l := range rows {
		if l.Baths != nil {
			baths = append(baths, *l.Baths)
		}
		if l.YearBuilt != nil {
			years = append(years, float64(*l.YearBuilt))
		}
	}
	return Medians{
		Baths:     median(baths, defaultBaths),
		YearBuilt: median(years, defaultYearBuilt),
	}
}

func median(values []float64, fallback float64) float64 {
	if len(values) == 0 {
		return fallback
	}
	sorted := append([]float64(nil), values...)
	sort.Float64s(sorted)
	mid := len(sorted) / 2
	if len(sorted)%2 == 0 {
		return (sorted[mid-1] + sorted[mid]) / 2
	}
	return sorted[mid]
}

func forestSize(f *Forest) int {
	if f == nil {
		return 0
	}
	return len(f.Trees)
}
