package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const subsystem = "book"

// Metrics contains metrics exposed by the exchange.
type Metrics struct {
	registry *prometheus.Registry

	// Orders accepted by the engine, by final status.
	Orders *prometheus.CounterVec
	// Orders rejected before reaching the book, by error kind.
	Rejects *prometheus.CounterVec
	// Cancels by outcome (ok, not_found).
	Cancels *prometheus.CounterVec
	// Executed fills and their notional.
	Fills    *prometheus.CounterVec
	Notional *prometheus.CounterVec
	// Resting orders and top-of-book spread after the last mutation.
	RestingOrders *prometheus.GaugeVec
	SpreadTicks   *prometheus.GaugeVec
	// Time spent inside Submit.
	MatchDuration *prometheus.HistogramVec
	// Failures writing to storage, the journal or the fill stream.
	SinkErrors *prometheus.CounterVec
}

// New registers the exchange metrics, plus Go runtime and process
// collectors, on a private registry.
func New(namespace string) *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return newMetrics(reg, namespace)
}

// NopMetrics returns Metrics on a registry that is never exposed.
func NopMetrics() *Metrics {
	return newMetrics(prometheus.NewRegistry(), "nop")
}

func newMetrics(reg *prometheus.Registry, namespace string) *Metrics {
	m := &Metrics{
		registry: reg,
		Orders: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "orders_total",
			Help:      "Orders processed by the matching engine.",
		}, []string{"symbol", "type", "status"}),
		Rejects: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "rejects_total",
			Help:      "Orders rejected before matching.",
		}, []string{"symbol", "kind"}),
		Cancels: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "cancels_total",
			Help:      "Cancel requests by result.",
		}, []string{"symbol", "result"}),
		Fills: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "fills_total",
			Help:      "Executed fills.",
		}, []string{"symbol"}),
		Notional: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "notional_total",
			Help:      "Sum of price times quantity over executed fills, in ticks times lots.",
		}, []string{"symbol"}),
		RestingOrders: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "resting_orders",
			Help:      "Orders resting on the book.",
		}, []string{"symbol"}),
		SpreadTicks: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "spread_ticks",
			Help:      "Best ask minus best bid, 0 when a side is empty.",
		}, []string{"symbol"}),
		MatchDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "match_duration_seconds",
			Help:      "Time spent matching one order.",
			Buckets:   prometheus.ExponentialBuckets(1e-6, 4, 10),
		}, []string{"symbol"}),
		SinkErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: subsystem,
			Name:      "sink_errors_total",
			Help:      "Failed writes to storage, journal or fill stream.",
		}, []string{"sink"}),
	}
	reg.MustRegister(
		m.Orders, m.Rejects, m.Cancels, m.Fills, m.Notional,
		m.RestingOrders, m.SpreadTicks, m.MatchDuration, m.SinkErrors,
	)
	return m
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveSubmit records the outcome of one accepted order.
func (m *Metrics) ObserveSubmit(symbol, orderType, status string, fills int, notional float64, took time.Duration) {
	m.Orders.WithLabelValues(symbol, orderType, status).Inc()
	m.MatchDuration.WithLabelValues(symbol).Observe(took.Seconds())
	if fills > 0 {
		m.Fills.WithLabelValues(symbol).Add(float64(fills))
		m.Notional.WithLabelValues(symbol).Add(notional)
	}
}

// ObserveBook records book gauges after a mutation.
func (m *Metrics) ObserveBook(symbol string, resting int, spread int64) {
	m.RestingOrders.WithLabelValues(symbol).Set(float64(resting))
	m.SpreadTicks.WithLabelValues(symbol).Set(float64(spread))
}
