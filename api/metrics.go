package api

import (
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/warp/inclusion-dashboard/dataset"
	"github.com/warp/inclusion-dashboard/indicator"
)

// Query outcomes recorded in dashboard_queries_total.
const (
	outcomeOK          = "ok"
	outcomeAbsent      = "absent"
	outcomeUnavailable = "unavailable"
	outcomeClientError = "client_error"
	outcomeError       = "error"
)

// Metrics owns a private registry so several servers (and tests) can live in
// one process.
type Metrics struct {
	registry *prometheus.Registry
	queries  *prometheus.CounterVec
	loads    *prometheus.CounterVec
	records  *prometheus.GaugeVec

	mu       sync.Mutex
	recorded *indicator.Snapshot
}

// NewMetrics creates and registers the dashboard collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		queries: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dashboard_queries_total",
			Help: "Dashboard queries served, by query and outcome",
		}, []string{"query", "outcome"}),
		loads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "dashboard_dataset_loads_total",
			Help: "Dataset and forecast load attempts, by kind and outcome",
		}, []string{"kind", "outcome"}),
		records: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "dashboard_dataset_records",
			Help: "Records in the loaded dataset, by record type",
		}, []string{"type"}),
	}
	m.registry.MustRegister(m.queries, m.loads, m.records)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveLoad implements dataset.Observer.
func (m *Metrics) ObserveLoad(kind string, _ dataset.Report, err error) {
	m.loads.WithLabelValues(kind, outcomeOf(err)).Inc()
}

func (m *Metrics) observeQuery(query, outcome string) {
	m.queries.WithLabelValues(query, outcome).Inc()
}

// recordSnapshot refreshes the record gauges when a new snapshot shows up.
func (m *Metrics) recordSnapshot(snap *indicator.Snapshot) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if snap == m.recorded {
		return
	}
	m.recorded = snap
	m.records.Reset()
	for typ, n := range snap.Counts() {
		m.records.WithLabelValues(string(typ)).Set(float64(n))
	}
}

func outcomeOf(err error) string {
	switch {
	case err == nil:
		return outcomeOK
	case indicator.IsUnavailable(err):
		return outcomeUnavailable
	case indicator.IsClientError(err):
		return outcomeClientError
	default:
		return outcomeError
	}
}
