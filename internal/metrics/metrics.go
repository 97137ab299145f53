// Package metrics exposes Prometheus instruments for the logging agent.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics holds the agent's Prometheus instruments.
type Metrics struct {
	ticks         *prometheus.CounterVec
	publishes     *prometheus.CounterVec
	acquireErrors prometheus.Counter
	stateErrors   prometheus.Counter
	interfaces    prometheus.Gauge
	lastChange    prometheus.Gauge
	tickDuration  prometheus.Histogram
}

// New creates the instruments and registers them with reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ticks: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "netlogger_ticks_total",
			Help: "Polling ticks by outcome.",
		}, []string{"outcome"}),
		publishes: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "netlogger_publish_total",
			Help: "Publish attempts by backend and result.",
		}, []string{"backend", "result"}),
		acquireErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "netlogger_acquire_errors_total",
			Help: "Ticks where the network snapshot could not be acquired.",
		}),
		stateErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "netlogger_state_load_errors_total",
			Help: "Stored state loads that degraded to the empty snapshot.",
		}),
		interfaces: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "netlogger_interfaces",
			Help: "Interfaces in the most recent snapshot.",
		}),
		lastChange: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "netlogger_last_change_timestamp_seconds",
			Help: "Unix time of the last recorded network change.",
		}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "netlogger_tick_duration_seconds",
			Help:    "Time spent in one polling tick, publish included.",
			Buckets: prometheus.ExponentialBuckets(0.001, 4, 10),
		}),
	}
	reg.MustRegister(m.ticks, m.publishes, m.acquireErrors, m.stateErrors,
		m.interfaces, m.lastChange, m.tickDuration)
	return m
}

// ObserveTick counts a finished tick and its duration.
func (m *Metrics) ObserveTick(outcome string, d time.Duration) {
	m.ticks.WithLabelValues(outcome).Inc()
	m.tickDuration.Observe(d.Seconds())
}

// ObservePublish counts one publish attempt.
func (m *Metrics) ObservePublish(backend string, err error) {
	result := "success"
	if err != nil {
		result = "failure"
	}
	m.publishes.WithLabelValues(backend, result).Inc()
}

// AcquireFailed counts a failed snapshot acquisition.
func (m *Metrics) AcquireFailed() { m.acquireErrors.Inc() }

// StateLoadFailed counts a stored state load that fell back to empty.
func (m *Metrics) StateLoadFailed() { m.stateErrors.Inc() }

// SetInterfaces records the size of the latest snapshot.
func (m *Metrics) SetInterfaces(n int) { m.interfaces.Set(float64(n)) }

// MarkChange records the time of a recorded change.
func (m *Metrics) MarkChange(t time.Time) { m.lastChange.Set(float64(t.Unix())) }
