package storage

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

const metricsNamespace = "rdfstore"

// Commit results used as the "result" label
const (
	CommitResultCommitted = "committed"
	CommitResultConflict  = "conflict"
	CommitResultFailed    = "failed"
)

// Metrics holds the store's prometheus collectors. A nil *Metrics is
// valid and records nothing.
type Metrics struct {
	Commits           *prometheus.CounterVec
	CommitDuration    prometheus.Histogram
	Rollbacks         prometheus.Counter
	NodesRegistered   prometheus.Counter
	RegistrationRaces prometheus.Counter
	NodeCacheHits     prometheus.Counter
	NodeCacheMisses   prometheus.Counter
	IDLeases          *prometheus.CounterVec
}

// NewMetrics creates the collectors and registers them on reg. A nil
// registerer leaves them unregistered, which keeps parallel test
// databases from colliding on the default registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		Commits: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "commits_total",
				Help:      "Transaction commits by result.",
			},
			[]string{"result"},
		),
		CommitDuration: prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: metricsNamespace,
				Name:      "commit_duration_seconds",
				Help:      "Time spent in successful commits.",
				Buckets:   prometheus.ExponentialBuckets(0.0001, 4, 10),
			},
		),
		Rollbacks: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "rollbacks_total",
				Help:      "Transactions rolled back, explicitly or after a failed commit.",
			},
		),
		NodesRegistered: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "nodes_registered_total",
				Help:      "Node values durably registered by this process.",
			},
		),
		RegistrationRaces: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "node_registration_races_total",
				Help:      "Registrations that lost a race and adopted the winning ID.",
			},
		),
		NodeCacheHits: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "node_cache_hits_total",
				Help:      "Node lookups answered from memory.",
			},
		),
		NodeCacheMisses: prometheus.NewCounter(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "node_cache_misses_total",
				Help:      "Node lookups that went to badger.",
			},
		),
		IDLeases: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: metricsNamespace,
				Name:      "id_leases_total",
				Help:      "Batches leased from a persisted sequence.",
			},
			[]string{"sequence"},
		),
	}

	if reg != nil {
		reg.MustRegister(
			m.Commits,
			m.CommitDuration,
			m.Rollbacks,
			m.NodesRegistered,
			m.RegistrationRaces,
			m.NodeCacheHits,
			m.NodeCacheMisses,
			m.IDLeases,
		)
	}
	return m
}

func (m *Metrics) commit(result string, start time.Time) {
	if m == nil {
		return
	}
	m.Commits.WithLabelValues(result).Inc()
	if result == CommitResultCommitted {
		m.CommitDuration.Observe(time.Since(start).Seconds())
	}
}

func (m *Metrics) rollback() {
	if m == nil {
		return
	}
	m.Rollbacks.Inc()
}

func (m *Metrics) nodeRegistered() {
	if m == nil {
		return
	}
	m.NodesRegistered.Inc()
}

func (m *Metrics) registrationRace() {
	if m == nil {
		return
	}
	m.RegistrationRaces.Inc()
}

func (m *Metrics) cacheLookup(hit bool) {
	if m == nil {
		return
	}
	if hit {
		m.NodeCacheHits.Inc()
	} else {
		m.NodeCacheMisses.Inc()
	}
}

func (m *Metrics) idLease(sequence string) {
	if m == nil {
		return
	}
	m.IDLeases.WithLabelValues(sequence).Inc()
}
