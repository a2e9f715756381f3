// Package monitoring exposes Prometheus metrics for the prediction service.
package monitoring

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const (
	StatusSuccess = "success"
	StatusError   = "error"
	StatusCached  = "cached"
)

var (
	// Predictions counts inference requests by outcome.
	Predictions = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tpt_predictions_total",
			Help: "Total number of prediction requests",
		},
		[]string{"status"}, // success|error|cached
	)

	InferenceDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "tpt_inference_duration_seconds",
			Help:    "Model inference duration in seconds",
			Buckets: []float64{0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1},
		},
	)

	ArtifactLoads = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tpt_artifact_loads_total",
			Help: "Total number of artifact loads",
		},
		[]string{"status"}, // success|error
	)

	// ClassLabelsFallback is 1 while the hardcoded class labels are in use.
	ClassLabelsFallback = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "tpt_class_labels_fallback",
			Help: "Whether the fallback class labels are in use",
		},
	)

	CacheHits = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "tpt_prediction_cache_hits_total",
			Help: "Total number of predictions served from the cache",
		},
	)

	HTTPRequests = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "tpt_http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "route", "code"},
	)
)

var initOnce sync.Once

// Init registers all metrics with the default registry. Safe to call more
// than once.
func Init() {
	initOnce.Do(func() {
		prometheus.MustRegister(Predictions)
		prometheus.MustRegister(InferenceDuration)
		prometheus.MustRegister(ArtifactLoads)
		prometheus.MustRegister(ClassLabelsFallback)
		prometheus.MustRegister(CacheHits)
		prometheus.MustRegister(HTTPRequests)
	})
}

// Handler serves the default registry.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveInference records a finished inference.
func ObserveInference(start time.Time, status string) {
	Predictions.WithLabelValues(status).Inc()
	if status == StatusCached {
		CacheHits.Inc()
	} else {
		InferenceDuration.Observe(time.Since(start).Seconds())
	}
}

// SetClassLabelsFallback mirrors the loader's fallback flag.
func SetClassLabelsFallback(active bool) {
	if active {
		ClassLabelsFallback.Set(1)
		return
	}
	ClassLabelsFallback.Set(0)
}
