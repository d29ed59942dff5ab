package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Atom manager metrics
	AtomsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "datafold_atoms_total",
			Help: "Total number of atoms persisted",
		},
	)

	RefsTotal = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "datafold_refs_total",
			Help: "Total number of atom refs tracked",
		},
	)

	AtomCreateDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "datafold_atom_create_duration_seconds",
			Help:    "Time taken to persist a new atom in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	RefAdvanceDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "datafold_ref_advance_duration_seconds",
			Help:    "Time taken to advance an atom ref in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	DanglingRefsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "datafold_dangling_refs_total",
			Help: "Total number of dangling refs observed by the background consistency check",
		},
	)

	// Schema registry metrics
	SchemasTotal = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "datafold_schemas_total",
			Help: "Total number of schemas by state",
		},
		[]string{"state"},
	)

	SchemaTransitionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datafold_schema_transitions_total",
			Help: "Total number of schema state transitions by target state",
		},
		[]string{"to"},
	)

	SchemaValidationFailuresTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "datafold_schema_validation_failures_total",
			Help: "Total number of schema validation failures",
		},
	)

	// Policy gate metrics
	GateDecisionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datafold_gate_decisions_total",
			Help: "Total number of policy gate decisions by access type and outcome",
		},
		[]string{"access", "outcome"},
	)

	GatePaymentRequired = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "datafold_gate_payment_required",
			Help:    "Distribution of computed required payment per operation",
			Buckets: prometheus.DefBuckets,
		},
	)

	// Executor metrics
	QueryDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "datafold_query_duration_seconds",
			Help:    "Time taken to execute a query in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"schema"},
	)

	MutationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "datafold_mutation_duration_seconds",
			Help:    "Time taken to execute a mutation in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"schema", "mutation_type"},
	)

	MutationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datafold_mutations_total",
			Help: "Total number of mutations by schema, type, and outcome",
		},
		[]string{"schema", "mutation_type", "outcome"},
	)

	// Event broker metrics
	EventsPublishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datafold_events_published_total",
			Help: "Total number of events published on the event broker by type",
		},
		[]string{"type"},
	)

	EventsDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "datafold_events_dropped_total",
			Help: "Total number of events dropped because a subscriber's buffer was full",
		},
		[]string{"type"},
	)

	// Reconciler metrics
	ReconciliationDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "datafold_reconciliation_duration_seconds",
			Help:    "Time taken for a reconciliation cycle in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	ReconciliationCyclesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "datafold_reconciliation_cycles_total",
			Help: "Total number of reconciliation cycles completed",
		},
	)
)

func init() {
	prometheus.MustRegister(AtomsTotal)
	prometheus.MustRegister(RefsTotal)
	prometheus.MustRegister(AtomCreateDuration)
	prometheus.MustRegister(RefAdvanceDuration)
	prometheus.MustRegister(DanglingRefsTotal)

	prometheus.MustRegister(SchemasTotal)
	prometheus.MustRegister(SchemaTransitionsTotal)
	prometheus.MustRegister(SchemaValidationFailuresTotal)

	prometheus.MustRegister(GateDecisionsTotal)
	prometheus.MustRegister(GatePaymentRequired)

	prometheus.MustRegister(EventsPublishedTotal)
	prometheus.MustRegister(EventsDroppedTotal)

	prometheus.MustRegister(QueryDuration)
	prometheus.MustRegister(MutationDuration)
	prometheus.MustRegister(MutationsTotal)

	prometheus.MustRegister(ReconciliationDuration)
	prometheus.MustRegister(ReconciliationCyclesTotal)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}

// Timer is a helper for timing operations
type Timer struct {
	start time.Time
}

// NewTimer creates a new timer
func NewTimer() *Timer {
	return &Timer{start: time.Now()}
}

// ObserveDuration records the duration to a histogram
func (t *Timer) ObserveDuration(histogram prometheus.Histogram) {
	duration := time.Since(t.start).Seconds()
	histogram.Observe(duration)
}

// ObserveDurationVec records the duration to a histogram vec with labels
func (t *Timer) ObserveDurationVec(histogram prometheus.ObserverVec, labels ...string) {
	duration := time.Since(t.start).Seconds()
	histogram.WithLabelValues(labels...).Observe(duration)
}

// Duration returns the elapsed time since timer started
func (t *Timer) Duration() time.Duration {
	return time.Since(t.start)
}
