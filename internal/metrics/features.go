package metrics

import "github.com/prometheus/client_golang/prometheus"

// Feature provider Prometheus metrics.
var (
	FeatureRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "petmatch",
			Name:      "feature_requests_total",
			Help:      "Total number of feature extraction requests",
		},
		[]string{"provider", "model", "status"},
	)

	FeatureRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "petmatch",
			Name:      "feature_request_duration_seconds",
			Help:      "Feature extraction request duration in seconds",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
		},
		[]string{"provider", "model"},
	)

	FeatureTokensTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "petmatch",
			Name:      "feature_tokens_total",
			Help:      "Total provider tokens consumed by feature extraction",
		},
		[]string{"provider", "model", "type"},
	)

	FeatureErrorsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "petmatch",
			Name:      "feature_errors_total",
			Help:      "Total feature extraction errors",
		},
		[]string{"provider", "model", "error_type"},
	)

	FeatureCacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "petmatch",
			Name:      "feature_cache_total",
			Help:      "Feature cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)
)

var featMetricsRegistered bool

// RegisterFeatureMetrics registers Prometheus feature metrics. Must be called once from main.
func RegisterFeatureMetrics() {
	if featMetricsRegistered {
		return
	}
	prometheus.MustRegister(FeatureRequestsTotal)
	prometheus.MustRegister(FeatureRequestDuration)
	prometheus.MustRegister(FeatureTokensTotal)
	prometheus.MustRegister(FeatureErrorsTotal)
	prometheus.MustRegister(FeatureCacheTotal)
	featMetricsRegistered = true
}
