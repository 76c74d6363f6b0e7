// README: Prometheus gauges for the running simulation and HTTP request counters.
package observability

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"ridesim/internal/modules/engine"
	"ridesim/internal/modules/mutation"
)

// Metrics owns its registry so several simulations can live in one process.
type Metrics struct {
	registry *prometheus.Registry

	simTime        prometheus.Gauge
	served         prometheus.Gauge
	expired        prometheus.Gauge
	active         prometheus.Gauge
	waiting        prometheus.Gauge
	avgWait        prometheus.Gauge
	utilization    prometheus.Gauge
	serviceLevel   prometheus.Gauge
	acceptanceRate prometheus.Gauge
	conflicts      prometheus.Gauge
	mutations      *prometheus.GaugeVec
	delivered      prometheus.Counter

	httpRequestsTotal *prometheus.CounterVec
	httpDuration      *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	gauge := func(name, help string) prometheus.Gauge {
		return prometheus.NewGauge(prometheus.GaugeOpts{Namespace: "ridesim", Name: name, Help: help})
	}
	m := &Metrics{
		registry:       prometheus.NewRegistry(),
		simTime:        gauge("sim_time", "Current simulation tick."),
		served:         gauge("served_requests", "Requests delivered so far."),
		expired:        gauge("expired_requests", "Requests expired so far."),
		active:         gauge("active_requests", "Requests waiting, assigned or picked."),
		waiting:        gauge("waiting_requests", "Requests waiting for a driver."),
		avgWait:        gauge("avg_wait_ticks", "Mean wait of delivered requests in ticks."),
		utilization:    gauge("driver_utilization", "Share of drivers serving a request."),
		serviceLevel:   gauge("service_level", "Served over served plus expired."),
		acceptanceRate: gauge("offer_acceptance_rate", "Accepted offers over offers made."),
		conflicts:      gauge("offer_conflicts", "Accepted offers that lost conflict resolution."),
		mutations: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: "ridesim",
			Name:      "mutations",
			Help:      "Behavior mutations by reason.",
		}, []string{"reason"}),
		delivered: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "ridesim",
			Name:      "deliveries_total",
			Help:      "Deliveries observed by this process.",
		}),
		httpRequestsTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total count of HTTP requests processed by route and status.",
		}, []string{"method", "route", "status"}),
		httpDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "Histogram of HTTP request durations by route.",
			Buckets: prometheus.DefBuckets,
		}, []string{"method", "route"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		m.simTime, m.served, m.expired, m.active, m.waiting, m.avgWait,
		m.utilization, m.serviceLevel, m.acceptanceRate, m.conflicts,
		m.mutations, m.delivered,
		m.httpRequestsTotal, m.httpDuration,
	)
	return m
}

// OnTick makes Metrics an engine.Observer.
func (m *Metrics) OnTick(_ context.Context, ev engine.TickEvent) error {
	s := ev.Metrics
	m.simTime.Set(float64(s.Time))
	m.served.Set(float64(s.Served))
	m.expired.Set(float64(s.Expired))
	m.active.Set(float64(s.Active))
	m.waiting.Set(float64(s.Waiting))
	m.avgWait.Set(s.AvgWait)
	m.utilization.Set(s.Utilization)
	m.serviceLevel.Set(s.ServiceLevel)
	m.acceptanceRate.Set(s.AcceptanceRate)
	m.conflicts.Set(float64(s.Conflicts))
	for _, r := range []mutation.Reason{
		mutation.ReasonExitGreedy, mutation.ReasonExitEarnings,
		mutation.ReasonLowEarnings, mutation.ReasonHighEarnings, mutation.ReasonExploration,
	} {
		m.mutations.WithLabelValues(string(r)).Set(float64(s.MutationsByReason[r]))
	}
	m.delivered.Add(float64(ev.Report.Delivered))
	return nil
}

// ObserveHTTP records one handled request.
func (m *Metrics) ObserveHTTP(method, route string, status int, d time.Duration) {
	m.httpRequestsTotal.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	m.httpDuration.WithLabelValues(method, route).Observe(d.Seconds())
}

func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Metrics) Registry() *prometheus.Registry { return m.registry }
