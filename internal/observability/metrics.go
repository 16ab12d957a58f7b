package observability

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the Prometheus counters, histograms, and gauges for region syncs.
type Metrics struct {
	Syncs            *prometheus.CounterVec // labels: outcome={success,source_error,store_error}
	SyncDuration     prometheus.Histogram
	SyncRunning      prometheus.Gauge
	FeaturesIngested prometheus.Counter
	FeaturesPruned   prometheus.Counter

	// Remote source metrics.
	SourceRequests        *prometheus.CounterVec // labels: outcome={success,error}
	SourceRequestDuration prometheus.Histogram
	SourceCache           *prometheus.CounterVec // labels: result={hit,miss}
}

// NewMetrics creates and registers all sync metrics with the default Prometheus registry.
func NewMetrics() *Metrics {
	m := NewUnregisteredMetrics()
	prometheus.MustRegister(
		m.Syncs,
		m.SyncDuration,
		m.SyncRunning,
		m.FeaturesIngested,
		m.FeaturesPruned,
		m.SourceRequests,
		m.SourceRequestDuration,
		m.SourceCache,
	)
	return m
}

// NewMetricsForTesting creates Metrics without registering them, avoiding
// "already registered" panics when called from multiple tests.
func NewMetricsForTesting() *Metrics {
	return NewUnregisteredMetrics()
}

// NewUnregisteredMetrics creates Metrics that are not exported anywhere, for
// one-shot processes with no /metrics endpoint.
func NewUnregisteredMetrics() *Metrics {
	return &Metrics{
		Syncs: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "region_sentinel",
			Name:      "syncs_total",
			Help:      "Region sync passes by outcome.",
		}, []string{"outcome"}),
		SyncDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "region_sentinel",
			Name:      "sync_duration_seconds",
			Help:      "Duration of a complete region sync pass.",
			Buckets:   []float64{0.1, 0.5, 1, 2.5, 5, 10, 30, 60, 120},
		}),
		SyncRunning: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "region_sentinel",
			Name:      "sync_running",
			Help:      "Number of region syncs currently in flight.",
		}),
		FeaturesIngested: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "region_sentinel",
			Name:      "features_ingested_total",
			Help:      "Total normalized features written to the store.",
		}),
		FeaturesPruned: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "region_sentinel",
			Name:      "features_pruned_total",
			Help:      "Total stale features deleted after a sync.",
		}),
		SourceRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "region_sentinel",
			Name:      "source_requests_total",
			Help:      "Remote feature source requests by outcome.",
		}, []string{"outcome"}),
		SourceRequestDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "region_sentinel",
			Name:      "source_request_duration_seconds",
			Help:      "Overpass API request duration in seconds.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),
		SourceCache: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "region_sentinel",
			Name:      "source_cache_total",
			Help:      "Feature source cache lookups by result.",
		}, []string{"result"}),
	}
}
