package statistics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Prometheus collectors exported at the debug server's /metrics endpoint
// (internal/server), registered to the default registry on package init
// the way pkg/syshealth registers its process gauges.
var (
	TickDuration = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "worldforge_tick_duration_seconds",
		Help:    "Wall-clock duration of one engine tick.",
		Buckets: prometheus.DefBuckets,
	})

	EntitiesByKind = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "worldforge_entities_by_kind",
		Help: "Current entity count, labeled by kind.",
	}, []string{"kind"})

	RelationshipsByKind = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "worldforge_relationships_by_kind",
		Help: "Current relationship count, labeled by kind.",
	}, []string{"kind"})

	CullingTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "worldforge_culling_total",
		Help: "Total number of ticks where the relationship budget triggered culling.",
	})

	EnrichmentQueueDepth = promauto.NewGauge(prometheus.GaugeOpts{
		Name: "worldforge_enrichment_queue_depth",
		Help: "Current depth of the LLM enrichment queue.",
	})
)

// ObserveTickDuration records one tick's wall-clock duration.
func ObserveTickDuration(d time.Duration) {
	TickDuration.Observe(d.Seconds())
}

// UpdateGauges refreshes the by-kind gauges from one EpochStats snapshot.
func UpdateGauges(stats EpochStats) {
	for kind, count := range stats.EntitiesByKind {
		EntitiesByKind.WithLabelValues(kind).Set(float64(count))
	}
	for kind, count := range stats.RelationshipsByKind {
		RelationshipsByKind.WithLabelValues(kind).Set(float64(count))
	}
}
