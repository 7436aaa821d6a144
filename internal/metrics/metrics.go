package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the pipeline's Prometheus collectors.
type Metrics struct {
	RecordsFetched    *prometheus.CounterVec
	RecordsStored     *prometheus.CounterVec
	RecordsSkipped    *prometheus.CounterVec
	ProfilesUpserted  prometheus.Counter
	IdentitiesSkipped *prometheus.CounterVec
	StageDuration     *prometheus.HistogramVec
	StageFailures     *prometheus.CounterVec
}

// New creates the collectors and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		RecordsFetched: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bountyscope_ingest_records_fetched_total",
			Help: "Raw nodes returned by ingest queries",
		}, []string{"source"}),
		RecordsStored: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bountyscope_ingest_records_stored_total",
			Help: "Staging records appended",
		}, []string{"source"}),
		RecordsSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bountyscope_ingest_records_skipped_total",
			Help: "Raw nodes dropped by normalization",
		}, []string{"source"}),
		ProfilesUpserted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bountyscope_enrich_profiles_upserted_total",
			Help: "Profiles inserted or updated",
		}),
		IdentitiesSkipped: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bountyscope_enrich_identities_skipped_total",
			Help: "Identities whose enrichment was skipped",
		}, []string{"reason"}),
		StageDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "bountyscope_stage_duration_seconds",
			Help:    "Wall time of pipeline stages",
			Buckets: prometheus.ExponentialBuckets(0.1, 2, 12),
		}, []string{"stage"}),
		StageFailures: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "bountyscope_stage_failures_total",
			Help: "Stages that ended with an error",
		}, []string{"stage"}),
	}

	reg.MustRegister(
		m.RecordsFetched,
		m.RecordsStored,
		m.RecordsSkipped,
		m.ProfilesUpserted,
		m.IdentitiesSkipped,
		m.StageDuration,
		m.StageFailures,
	)
	return m
}
