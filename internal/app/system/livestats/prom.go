package livestats

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	recomputesTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "producthub_livestats_recomputes_total",
		Help: "Dashboard recomputes by outcome (published, failed, discarded)",
	}, []string{"outcome"})

	recomputeDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "producthub_livestats_recompute_duration_seconds",
		Help:    "Time spent scanning and aggregating one dashboard snapshot",
		Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10},
	})

	sessionsActive = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "producthub_livestats_sessions_active",
		Help: "Live aggregation sessions currently observing the store",
	})
)

const (
	outcomePublished = "published"
	outcomeFailed    = "failed"
	outcomeDiscarded = "discarded"
)
