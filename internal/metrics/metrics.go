package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/congo-pay/ledger/internal/money"
)

// Metrics holds the ledger's Prometheus collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	gatherer   prometheus.Gatherer
	operations *prometheus.CounterVec
	duration   *prometheus.HistogramVec
	volume     *prometheus.CounterVec
}

// New registers the ledger collectors on a fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	return NewWithRegistry(reg, reg)
}

// NewWithRegistry registers the collectors on reg and serves them from gatherer.
func NewWithRegistry(reg prometheus.Registerer, gatherer prometheus.Gatherer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		gatherer: gatherer,
		operations: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_operations_total",
				Help: "Ledger operations by outcome",
			},
			[]string{"operation", "outcome"},
		),
		duration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "ledger_operation_duration_seconds",
				Help:    "Duration of ledger operations including lock wait",
				Buckets: []float64{.001, .005, .01, .05, .1, .25, .5, 1, 2, 5},
			},
			[]string{"operation"},
		),
		volume: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "ledger_volume_minor_units_total",
				Help: "Committed amounts in minor currency units",
			},
			[]string{"operation", "currency"},
		),
	}
}

// ObserveOperation counts one operation attempt and its latency.
func (m *Metrics) ObserveOperation(operation, outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.operations.WithLabelValues(operation, outcome).Inc()
	m.duration.WithLabelValues(operation).Observe(took.Seconds())
}

// AddVolume adds a committed amount.
func (m *Metrics) AddVolume(operation, currency string, amount money.Money) {
	if m == nil || amount <= 0 {
		return
	}
	m.volume.WithLabelValues(operation, currency).Add(float64(amount.Minor()))
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	if m == nil || m.gatherer == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
