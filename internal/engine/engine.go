package engine

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"github.com/marketsight/marketsight/internal/classify"
	"github.com/marketsight/marketsight/internal/config"
	"github.com/marketsight/marketsight/internal/listing"
	"github.com/marketsight/marketsight/internal/metrics"
	"github.com/marketsight/marketsight/internal/model"
	"github.com/marketsight/marketsight/internal/persistence"
	"github.com/marketsight/marketsight/internal/quality"
	"github.com/marketsight/marketsight/internal/report"
	"github.com/marketsight/marketsight/internal/stats"
)

// Engine runs the full anomaly-detection pass for a scope: gate, aggregate,
// train, classify, persist, report. One batch pass, sequential by design;
// only tree training parallelizes internally.
type Engine struct {
	store     persistence.Store
	cfg       config.EngineConfig
	paths     config.PathsConfig
	collector *metrics.Collector
	locks     *scopeLocks
	now       func() time.Time
}

// Option customizes an Engine.
type Option func(*Engine)

// WithClock overrides the engine clock, used by tests.
func WithClock(now func() time.Time) Option {
	return func(e *Engine) { e.now = now }
}

// WithMetrics attaches a prometheus collector.
func WithMetrics(c *metrics.Collector) Option {
	return func(e *Engine) { e.collector = c }
}

// New builds an engine over the given store and configuration.
func New(store persistence.Store, cfg config.EngineConfig, paths config.PathsConfig, opts ...Option) *Engine {
	e := &Engine{
		store: store,
		cfg:   cfg,
		paths: paths,
		locks: newScopeLocks(),
		now:   time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Run executes one complete analysis pass for scope. It returns ErrScopeBusy
// when a run for the same scope is already in flight, and emits a RunReport
// only when the run completed; partially written rows from an aborted run
// stay valid but yield no report.
func (e *Engine) Run(ctx context.Context, scope string) (*report.RunReport, error) {
	if !e.locks.acquire(scope) {
		return nil, fmt.Errorf("%w: %s", ErrScopeBusy, scope)
	}
	defer e.locks.release(scope)

	now := e.now().UTC()
	runID := uuid.NewString()
	log.Info().Str("run_id", runID).Str("scope", scope).Msg("analysis run started")

	since := now.AddDate(0, 0, -e.cfg.TrainingWindowDays)
	listings, err := e.store.RecentByScope(ctx, scope, since)
	if err != nil {
		return nil, fmt.Errorf("failed to load listings: %w", err)
	}
	if len(listings) == 0 {
		log.Warn().Str("scope", scope).Msg("no listings to analyze")
	}

	// Gate every listing and persist the verdicts so the aggregator and
	// predictor can filter on the stored status.
	gate := quality.NewGate(e.cfg.MinArea)
	dqFailures := 0
	for i := range listings {
		verdict := gate.Evaluate(listings[i], now)
		listings[i].IngestionQuality = string(verdict.Status)
		if !verdict.Passed() {
			dqFailures++
			if e.collector != nil {
				e.collector.DQFailures.WithLabelValues(string(verdict.Status)).Inc()
			}
		}
	}
	if res, err := e.store.UpsertListings(ctx, listings); err != nil {
		return nil, fmt.Errorf("failed to persist listing verdicts: %w", err)
	} else if err := res.Err(); err != nil {
		log.Error().Err(err).Msg("some listing rows failed to persist")
	}

	passing := make([]listing.Listing, 0, len(listings))
	for _, l := range listings {
		if l.IngestionQuality == string(quality.StatusPass) {
			passing = append(passing, l)
		}
	}

	// Group statistics are recomputed from scratch; the previous run's rows
	// for the same keys are superseded by upsert.
	statDate := now.Truncate(24 * time.Hour)
	groupStats := stats.Compute(passing, statDate)
	if res, err := e.store.UpsertGroupStats(ctx, groupStats); err != nil {
		return nil, fmt.Errorf("failed to persist group stats: %w", err)
	} else if err := res.Err(); err != nil {
		log.Error().Err(err).Msg("some group stat rows failed to persist")
	}

	predictor := model.New(model.Params{
		WindowDays:      e.cfg.TrainingWindowDays,
		MinTrainingSize: e.cfg.MinTrainingSize,
		NumTrees:        e.cfg.ModelTrees,
		MaxDepth:        e.cfg.ModelMaxDepth,
		Seed:            e.cfg.ModelSeed,
	})
	trained := predictor.Train(passing, now)
	if e.collector != nil {
		e.collector.TrainingSetSize.Set(float64(predictor.TrainingSize()))
		if trained {
			e.collector.ModelTrained.Set(1)
		} else {
			e.collector.ModelTrained.Set(0)
		}
	}
	if trained {
		e.saveModel(predictor, scope, now)
	}

	analyses := make([]persistence.Analysis, 0, len(listings))
	rep := &report.RunReport{
		RunID:                 runID,
		GeneratedAt:           now,
		Scope:                 scope,
		Mode:                  report.ModeStatOnly,
		TotalListings:         len(listings),
		DQFailures:            dqFailures,
		DeviationThresholdPct: e.cfg.DeviationThresholdPct,
		SigmaMultiplier:       e.cfg.SigmaMultiplier,
	}
	if trained {
		rep.Mode = report.ModeML
	}

	for i := range listings {
		a := e.score(&listings[i], predictor, groupStats, now)
		if a.IsAnomaly {
			rep.Anomalies++
			switch classify.Kind(deref(a.AnomalyKind)) {
			case classify.KindUnderPriced:
				rep.Opportunities++
			case classify.KindOverPriced:
				rep.Risks++
			}
			if e.collector != nil {
				e.collector.Anomalies.WithLabelValues(deref(a.AnomalyKind)).Inc()
			}
		}
		analyses = append(analyses, a)
	}

	if res, err := e.store.UpsertAnalyses(ctx, analyses); err != nil {
		return nil, fmt.Errorf("failed to persist analyses: %w", err)
	} else if err := res.Err(); err != nil {
		log.Error().Err(err).Msg("some analysis rows failed to persist")
	}

	if err := ctx.Err(); err != nil {
		// Aborted run: persisted rows stay valid, but no report is emitted.
		return nil, fmt.Errorf("run aborted: %w", err)
	}

	if e.collector != nil {
		e.collector.RunsTotal.Inc()
		e.collector.ListingsProcessed.Add(float64(len(listings)))
	}

	log.Info().Str("run_id", runID).Int("listings", rep.TotalListings).
		Int("dq_failures", rep.DQFailures).Int("anomalies", rep.Anomalies).
		Int("opportunities", rep.Opportunities).Int("risks", rep.Risks).
		Str("mode", rep.Mode).Msg("analysis run complete")
	return rep, nil
}

// score classifies one listing, DQ-passing or not. Failed listings are still
// scored when a ratio is computable, tagged with their failing status so
// consumers can discount them.
func (e *Engine) score(l *listing.Listing, predictor *model.Predictor, groupStats []stats.GroupStat, now time.Time) persistence.Analysis {
	a := persistence.Analysis{
		ListingID:        l.ID,
		IngestionQuality: l.IngestionQuality,
		AnalysisMode:     report.ModeStatOnly,
		AnalyzedAt:       now,
	}

	ppa, hasPPA := l.PricePerArea()
	if hasPPA {
		a.PricePerArea = &ppa
	}

	// The group reference distribution is recorded even on the model path.
	gs := stats.Lookup(groupStats, l.GroupKey, l.PropertyType)
	if gs != nil {
		a.GroupMean = &gs.Mean
		a.GroupStd = gs.Std
	}

	var res classify.Result
	if predicted, ok := predictor.Predict(*l); ok && l.Price != nil {
		a.AnalysisMode = report.ModeML
		a.PredictedPrice = &predicted
		res = classify.ByModel(*l.Price, predicted, e.cfg.DeviationThresholdPct)
		a.DeviationPct = res.DeviationPct
	} else if hasPPA && gs != nil {
		res = classify.ByGroupStat(ppa, gs.Mean, gs.Std, e.cfg.SigmaMultiplier)
	}

	a.IsAnomaly = res.IsAnomaly
	if res.Kind != classify.KindNone {
		kind := string(res.Kind)
		a.AnomalyKind = &kind
	}
	return a
}

// saveModel persists the trained bundle; failures are logged, never fatal,
// because the bundle is a disposable artifact.
func (e *Engine) saveModel(predictor *model.Predictor, scope string, now time.Time) {
	bundle, err := predictor.Bundle(scope, now)
	if err != nil {
		log.Warn().Err(err).Msg("could not snapshot model bundle")
		return
	}
	path := filepath.Join(e.paths.ModelsDir, fmt.Sprintf("model_%s.json", scope))
	if err := model.SaveBundle(path, bundle); err != nil {
		log.Warn().Err(err).Str("path", path).Msg("could not persist model bundle")
		return
	}
	log.Info().Str("path", path).Int("training_size", bundle.TrainingSize).Msg("model bundle saved")
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
