package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Collector holds the engine's prometheus instruments on a private registry
// so embedding applications can expose it however they like.
type Collector struct {
	registry *prometheus.Registry

	RunsTotal         prometheus.Counter
	ListingsProcessed prometheus.Counter
	DQFailures        *prometheus.CounterVec
	Anomalies         *prometheus.CounterVec
	TrainingSetSize   prometheus.Gauge
	ModelTrained      prometheus.Gauge
}

// NewCollector builds and registers the engine instruments.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()

	c := &Collector{
		registry: reg,
		RunsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketsight_runs_total",
			Help: "Completed analysis runs.",
		}),
		ListingsProcessed: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "marketsight_listings_processed_total",
			Help: "Listings considered across all runs.",
		}),
		DQFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marketsight_dq_failures_total",
			Help: "Data-quality gate failures by reason.",
		}, []string{"reason"}),
		Anomalies: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "marketsight_anomalies_total",
			Help: "Flagged anomalies by kind.",
		}, []string{"kind"}),
		TrainingSetSize: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "marketsight_training_set_size",
			Help: "Rows in the last model training set.",
		}),
		ModelTrained: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "marketsight_model_trained",
			Help: "Whether the last run had a trained fair-value model.",
		}),
	}

	reg.MustRegister(c.RunsTotal, c.ListingsProcessed, c.DQFailures, c.Anomalies,
		c.TrainingSetSize, c.ModelTrained)
	return c
}

// Registry exposes the private registry for embedding in an HTTP handler.
func (c *Collector) Registry() *prometheus.Registry { return c.registry }
