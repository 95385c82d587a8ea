package metrics

import (
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kirillkom/interview-rag-assistant/internal/core/domain"
)

const namespace = "ira"

// pipelineMetrics are the ingestion counters shared by the API and worker registries.
type pipelineMetrics struct {
	service string

	ingestionsTotal *prometheus.CounterVec
	chunksStored    prometheus.Counter
	chunksDropped   prometheus.Counter
	breakerOpen     *prometheus.GaugeVec
}

func newPipelineMetrics(service string, registry *prometheus.Registry) *pipelineMetrics {
	ingestionsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "ingest",
			Name:      "runs_total",
			Help:      "Total ingestion runs by outcome.",
		},
		[]string{"service", "outcome"},
	)
	chunksStored := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "ingest",
			Name:        "chunks_stored_total",
			Help:        "Chunks written to both the vector index and the chunk table.",
			ConstLabels: prometheus.Labels{"service": service},
		},
	)
	chunksDropped := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace:   namespace,
			Subsystem:   "ingest",
			Name:        "chunks_dropped_total",
			Help:        "Chunks lost after the vector batch retry pass.",
			ConstLabels: prometheus.Labels{"service": service},
		},
	)

	breakerOpen := prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "resilience",
			Name:      "circuit_open",
			Help:      "1 while the circuit breaker of an outbound operation is open.",
		},
		[]string{"service", "operation"},
	)

	registry.MustRegister(ingestionsTotal, chunksStored, chunksDropped, breakerOpen)

	return &pipelineMetrics{
		service:         service,
		ingestionsTotal: ingestionsTotal,
		chunksStored:    chunksStored,
		chunksDropped:   chunksDropped,
		breakerOpen:     breakerOpen,
	}
}

// ObserveDroppedChunks is called by the vector index after its retry pass.
func (m *pipelineMetrics) ObserveDroppedChunks(n int) {
	if n <= 0 {
		return
	}
	m.chunksDropped.Add(float64(n))
}

func (m *pipelineMetrics) RecordIngestion(report domain.IngestionReport) {
	outcome := "success"
	switch {
	case !report.OK:
		outcome = "failure"
	case report.Dropped > 0:
		outcome = "partial"
	}
	m.ingestionsTotal.WithLabelValues(m.service, outcome).Inc()
	if report.Stored > 0 {
		m.chunksStored.Add(float64(report.Stored))
	}
}

// ObserveBreakerState is called by the resilience executor on every breaker transition.
func (m *pipelineMetrics) ObserveBreakerState(operation, state string) {
	open := 0.0
	if state == "open" {
		open = 1
	}
	m.breakerOpen.WithLabelValues(m.service, operation).Set(open)
}
