package vectorstore

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus instruments shared by every Store
// implementation. A single instance should be constructed per process and
// passed into each provider's constructor; promauto registers on first use
// against the default registry.
type Metrics struct {
	opsTotal      *prometheus.CounterVec
	opDuration    *prometheus.HistogramVec
	vectorsInsert *prometheus.CounterVec
	collectionsG  *prometheus.GaugeVec
}

// NewMetrics registers the vectorstore instrument set. Safe to call more
// than once per process only if callers pass a non-default registerer;
// production code should construct exactly one Metrics and share it.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		opsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vectorcore",
			Subsystem: "vectorstore",
			Name:      "operations_total",
			Help:      "Count of vector store operations by provider, op, and outcome.",
		}, []string{"provider", "op", "outcome"}),
		opDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "vectorcore",
			Subsystem: "vectorstore",
			Name:      "operation_duration_seconds",
			Help:      "Vector store operation latency by provider and op.",
			Buckets:   prometheus.DefBuckets,
		}, []string{"provider", "op"}),
		vectorsInsert: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "vectorcore",
			Subsystem: "vectorstore",
			Name:      "vectors_inserted_total",
			Help:      "Count of vectors inserted, by provider and collection.",
		}, []string{"provider", "collection"}),
		collectionsG: factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "vectorcore",
			Subsystem: "vectorstore",
			Name:      "collection_vector_count",
			Help:      "Current vector count per collection.",
		}, []string{"provider", "collection"}),
	}
}

// observe records an operation's outcome and duration. err is only
// inspected for nil-ness; callers that need kind-level cardinality should
// keep that out of labels to avoid label explosion.
func (m *Metrics) observe(provider, op string, start time.Time, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.opsTotal.WithLabelValues(provider, op, outcome).Inc()
	m.opDuration.WithLabelValues(provider, op).Observe(time.Since(start).Seconds())
}

func (m *Metrics) addVectors(provider, collection string, n int) {
	if m == nil {
		return
	}
	m.vectorsInsert.WithLabelValues(provider, collection).Add(float64(n))
}

func (m *Metrics) setCollectionSize(provider, collection string, n int) {
	if m == nil {
		return
	}
	m.collectionsG.WithLabelValues(provider, collection).Set(float64(n))
}
