// Package metrics records counters and histograms for a bundler run,
// grounded on the teacher's pkg/controller/instance/metrics.go. The
// teacher registers its vectors against sigs.k8s.io/controller-runtime's
// global registry, which has no home here outside a running operator;
// this package instead owns a private prometheus.Registry a CLI can
// serve over /metrics (§10.4) or print once and discard.
package metrics

import "github.com/prometheus/client_golang/prometheus"

// Metrics holds every vector a bundler run reports against.
type Metrics struct {
	Registry *prometheus.Registry

	PassDurationSeconds    *prometheus.HistogramVec
	BundlesCreatedTotal    prometheus.Counter
	GroupsCreatedTotal     prometheus.Counter
	SharedBundlesExtracted prometheus.Counter
	AncestorDeduped        prometheus.Counter
	AsyncInternalized      prometheus.Counter
	GroupsRemovedTotal     prometheus.Counter
	CandidatesDeclined     *prometheus.CounterVec
}

// New builds a Metrics with its own private registry, so concurrent
// bundler runs in the same process (e.g. in tests) never collide
// registering against prometheus' global default registry.
func New() *Metrics {
	m := &Metrics{
		Registry: prometheus.NewRegistry(),
		PassDurationSeconds: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "bundler_pass_duration_seconds",
				Help:    "Duration of each bundling pass in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"pass"},
		),
		BundlesCreatedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bundler_bundles_created_total",
			Help: "Total number of bundles created by pass 1",
		}),
		GroupsCreatedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bundler_groups_created_total",
			Help: "Total number of bundle groups created by pass 1",
		}),
		SharedBundlesExtracted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bundler_shared_bundles_extracted_total",
			Help: "Total number of shared bundles extracted by optimizer pass 4",
		}),
		AncestorDeduped: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bundler_ancestor_deduped_total",
			Help: "Total number of asset removals from ancestor dedup (optimizer pass 3)",
		}),
		AsyncInternalized: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bundler_async_internalized_total",
			Help: "Total number of async dependencies internalized by optimizer pass 5",
		}),
		GroupsRemovedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "bundler_groups_removed_total",
			Help: "Total number of bundle groups removed after async internalization",
		}),
		CandidatesDeclined: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "bundler_candidates_declined_total",
				Help: "Total number of optimizer decisions declined due to resource limits, by stage",
			},
			[]string{"stage"},
		),
	}

	m.Registry.MustRegister(
		m.PassDurationSeconds,
		m.BundlesCreatedTotal,
		m.GroupsCreatedTotal,
		m.SharedBundlesExtracted,
		m.AncestorDeduped,
		m.AsyncInternalized,
		m.GroupsRemovedTotal,
		m.CandidatesDeclined,
	)
	return m
}

// ObservePass records a single pass's duration in seconds.
func (m *Metrics) ObservePass(pass string, seconds float64) {
	m.PassDurationSeconds.WithLabelValues(pass).Observe(seconds)
}

// RecordDecline increments the declined-candidate counter for stage.
func (m *Metrics) RecordDecline(stage string) {
	m.CandidatesDeclined.WithLabelValues(stage).Inc()
}
