package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "thredvault"

// Metrics holds the book-keeping counters and the HTTP instrumentation.
type Metrics struct {
	registry *prometheus.Registry

	HTTPRequestsTotal   *prometheus.CounterVec
	HTTPRequestDuration *prometheus.HistogramVec

	Operations       *prometheus.CounterVec
	GroupRecomputes  *prometheus.CounterVec
	UnitsReceived    prometheus.Counter
	UnitsSold        prometheus.Counter
	LedgerEvents     *prometheus.CounterVec
	CashOnHand       prometheus.Gauge
	InventoryValue   prometheus.Gauge
	LockWaitDuration prometheus.Histogram
}

func New() *Metrics {
	registry := prometheus.NewRegistry()
	registry.MustRegister(prometheus.NewGoCollector())
	registry.MustRegister(prometheus.NewProcessCollector(prometheus.ProcessCollectorOpts{}))

	m := &Metrics{registry: registry}

	m.HTTPRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "http_requests_total",
			Help:      "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)
	m.HTTPRequestDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request duration in seconds",
			Buckets:   []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)
	m.Operations = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "operations_total",
			Help:      "Book-keeping operations by name and outcome",
		},
		[]string{"operation", "outcome"},
	)
	m.GroupRecomputes = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "wac_group_recomputes_total",
			Help:      "Weighted-average cost recomputes by group and whether costs changed",
		},
		[]string{"group", "changed"},
	)
	m.UnitsReceived = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "units_received_total",
		Help:      "Units received into inventory",
	})
	m.UnitsSold = prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "units_sold_total",
		Help:      "Units sold out of inventory",
	})
	m.LedgerEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ledger_events_total",
			Help:      "Cash ledger events by kind",
		},
		[]string{"kind"},
	)
	m.CashOnHand = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "cash_on_hand",
		Help:      "Cash on hand after the last write",
	})
	m.InventoryValue = prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: namespace,
		Name:      "inventory_value",
		Help:      "On-hand inventory value at weighted-average cost after the last write",
	})
	m.LockWaitDuration = prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "write_lock_wait_seconds",
		Help:      "Time spent waiting for the writer lock",
		Buckets:   prometheus.DefBuckets,
	})

	registry.MustRegister(
		m.HTTPRequestsTotal,
		m.HTTPRequestDuration,
		m.Operations,
		m.GroupRecomputes,
		m.UnitsReceived,
		m.UnitsSold,
		m.LedgerEvents,
		m.CashOnHand,
		m.InventoryValue,
		m.LockWaitDuration,
	)
	return m
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{EnableOpenMetrics: true})
}

func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// RecordOperation counts one operation; a nil receiver is a no-op.
func (m *Metrics) RecordOperation(operation string, err error) {
	if m == nil {
		return
	}
	outcome := "ok"
	if err != nil {
		outcome = "error"
	}
	m.Operations.WithLabelValues(operation, outcome).Inc()
}

func (m *Metrics) RecordRecompute(group string, changed bool) {
	if m == nil {
		return
	}
	m.GroupRecomputes.WithLabelValues(group, strconv.FormatBool(changed)).Inc()
}

func (m *Metrics) RecordLedgerEvent(kind string) {
	if m == nil {
		return
	}
	m.LedgerEvents.WithLabelValues(kind).Inc()
}

func (m *Metrics) ObserveLockWait(d time.Duration) {
	if m == nil {
		return
	}
	m.LockWaitDuration.Observe(d.Seconds())
}

// RecordHTTPRequest records one served request.
func (m *Metrics) RecordHTTPRequest(method, path string, status int, d time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, path, strconv.Itoa(status)).Inc()
	m.HTTPRequestDuration.WithLabelValues(method, path).Observe(d.Seconds())
}
