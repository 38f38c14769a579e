// Package metrics exposes bus, sampler and escalation activity as
// Prometheus metrics on a private registry.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/rileyhilliard/ramwatch/internal/bus"
	"github.com/rileyhilliard/ramwatch/internal/escalation"
	"github.com/rileyhilliard/ramwatch/internal/events"
	"github.com/rileyhilliard/ramwatch/internal/sampler"
)

const namespace = "ramwatch"

var (
	_ bus.Observer        = (*Metrics)(nil)
	_ escalation.Observer = (*Metrics)(nil)
	_ sampler.Observer    = (*Metrics)(nil)
)

// Metrics implements the observer interfaces of the bus, sampler and
// escalation policy.
type Metrics struct {
	reg *prometheus.Registry

	published  *prometheus.CounterVec
	saturated  *prometheus.CounterVec
	delivered  *prometheus.CounterVec
	failed     *prometheus.CounterVec
	handleTime *prometheus.HistogramVec
	dropped    prometheus.Counter
	queueDepth prometheus.Gauge

	ramPercent   prometheus.Gauge
	samples      prometheus.Counter
	sampleErrors prometheus.Counter
	sampleTime   prometheus.Histogram

	transitions *prometheus.CounterVec
	rejected    prometheus.Counter
	breach      prometheus.Gauge
	breachStart prometheus.Gauge
}

// New registers every metric, plus the Go and process collectors, on a
// fresh registry.
func New() *Metrics {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{Namespace: namespace}),
	)
	f := promauto.With(reg)

	return &Metrics{
		reg: reg,

		published: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bus",
			Name:      "events_published_total",
			Help:      "Events accepted by the bus, by type",
		}, []string{"type"}),
		saturated: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bus",
			Name:      "events_saturated_total",
			Help:      "Events refused because the bounded queue was full, by type",
		}, []string{"type"}),
		delivered: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bus",
			Name:      "deliveries_total",
			Help:      "Successful handler invocations, by type and handler",
		}, []string{"type", "handler"}),
		failed: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bus",
			Name:      "handler_failures_total",
			Help:      "Handler invocations that returned an error or panicked",
		}, []string{"type", "handler"}),
		handleTime: f.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "bus",
			Name:      "handler_duration_seconds",
			Help:      "Time spent in successful handler invocations",
			Buckets:   prometheus.DefBuckets,
		}, []string{"type"}),
		dropped: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "bus",
			Name:      "events_dropped_total",
			Help:      "Queued events abandoned at shutdown",
		}),
		queueDepth: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "bus",
			Name:      "queue_depth",
			Help:      "Events waiting to be routed",
		}),

		ramPercent: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "sampler",
			Name:      "ram_percent",
			Help:      "Most recent RAM usage reading",
		}),
		samples: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sampler",
			Name:      "samples_total",
			Help:      "Successful memory readings",
		}),
		sampleErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "sampler",
			Name:      "errors_total",
			Help:      "Failed memory readings",
		}),
		sampleTime: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Subsystem: "sampler",
			Name:      "read_duration_seconds",
			Help:      "Time taken to read memory usage",
			Buckets:   []float64{.001, .005, .01, .05, .1, .5, 1},
		}),

		transitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "escalation",
			Name:      "transitions_total",
			Help:      "Events derived by the escalation policy, by type",
		}, []string{"type"}),
		rejected: f.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "escalation",
			Name:      "rejected_samples_total",
			Help:      "Malformed samples the policy refused",
		}),
		breach: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "escalation",
			Name:      "breach_active",
			Help:      "Whether RAM is currently above the high threshold (1 = high, 0 = normal)",
		}),
		breachStart: f.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "escalation",
			Name:      "breach_started_timestamp_seconds",
			Help:      "Unix time the current breach began, 0 when normal",
		}),
	}
}

// Registry returns the registry the metrics live on.
func (m *Metrics) Registry() *prometheus.Registry { return m.reg }

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{Registry: m.reg})
}

func (m *Metrics) Published(t events.Type) { m.published.WithLabelValues(string(t)).Inc() }
func (m *Metrics) Saturated(t events.Type) { m.saturated.WithLabelValues(string(t)).Inc() }
func (m *Metrics) Dropped(n int)           { m.dropped.Add(float64(n)) }
func (m *Metrics) QueueDepth(n int)        { m.queueDepth.Set(float64(n)) }

func (m *Metrics) Delivered(t events.Type, handler string, took time.Duration) {
	m.delivered.WithLabelValues(string(t), handler).Inc()
	m.handleTime.WithLabelValues(string(t)).Observe(took.Seconds())
}

func (m *Metrics) Failed(t events.Type, handler string) {
	m.failed.WithLabelValues(string(t), handler).Inc()
}

func (m *Metrics) Sampled(u events.Usage, took time.Duration) {
	m.samples.Inc()
	m.ramPercent.Set(u.RAMPercent)
	m.sampleTime.Observe(took.Seconds())
}

func (m *Metrics) SampleFailed() { m.sampleErrors.Inc() }

func (m *Metrics) Transition(t events.Type) { m.transitions.WithLabelValues(string(t)).Inc() }
func (m *Metrics) Rejected()                { m.rejected.Inc() }

func (m *Metrics) Breach(active bool, since time.Time) {
	if !active {
		m.breach.Set(0)
		m.breachStart.Set(0)
		return
	}
	m.breach.Set(1)
	m.breachStart.Set(float64(since.Unix()))
}
