package metrics

import "github.com/prometheus/client_golang/prometheus"

// Match sources.
const (
	SourceInteractive = "interactive"
	SourceSweep       = "sweep"
)

// Matching engine Prometheus metrics.
var (
	MatchesCreatedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "petmatch",
			Name:      "matches_created_total",
			Help:      "Total number of matches created",
		},
		[]string{"source", "confidence"},
	)

	MatchDuplicatesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "petmatch",
			Name:      "match_duplicates_total",
			Help:      "Match creations rejected because the pair already had a match",
		},
		[]string{"source"},
	)

	MatchTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "petmatch",
			Name:      "match_transitions_total",
			Help:      "Match status transitions by outcome",
		},
		[]string{"status", "result"},
	)

	SweepRunsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "petmatch",
			Name:      "sweep_runs_total",
			Help:      "Automatic matcher runs by result",
		},
		[]string{"result"}, // "ok" / "partial" / "aborted" / "skipped"
	)

	SweepDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "petmatch",
			Name:      "sweep_duration_seconds",
			Help:      "Automatic matcher run duration in seconds",
			Buckets:   []float64{0.1, 0.5, 1, 5, 10, 30, 60, 120, 300},
		},
	)

	SweepPetsProcessedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "petmatch",
			Name:      "sweep_pets_processed_total",
			Help:      "Pets processed by the automatic matcher",
		},
	)

	SweepPetErrorsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "petmatch",
			Name:      "sweep_pet_errors_total",
			Help:      "Pets the automatic matcher failed to process",
		},
	)

	NotificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "petmatch",
			Name:      "notifications_total",
			Help:      "Match notifications by outcome",
		},
		[]string{"result"}, // "sent" / "failed" / "dropped"
	)

	NotificationQueueDepth = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "petmatch",
			Name:      "notification_queue_depth",
			Help:      "Match events waiting for a notification worker",
		},
	)
)

var matchMetricsRegistered bool

// RegisterMatchingMetrics registers Prometheus matching metrics. Must be called once from main.
func RegisterMatchingMetrics() {
	if matchMetricsRegistered {
		return
	}
	prometheus.MustRegister(MatchesCreatedTotal)
	prometheus.MustRegister(MatchDuplicatesTotal)
	prometheus.MustRegister(MatchTransitionsTotal)
	prometheus.MustRegister(SweepRunsTotal)
	prometheus.MustRegister(SweepDuration)
	prometheus.MustRegister(SweepPetsProcessedTotal)
	prometheus.MustRegister(SweepPetErrorsTotal)
	prometheus.MustRegister(NotificationsTotal)
	prometheus.MustRegister(NotificationQueueDepth)
	matchMetricsRegistered = true
}
