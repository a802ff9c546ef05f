// Package metrics exposes Prometheus metrics for ticks and alarm activity.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/philtim/timearchitect/alarm"
	"github.com/philtim/timearchitect/events"
	"github.com/philtim/timearchitect/logger"
)

// Service collects metrics on its own registry so that several instances
// (one per test) don't collide.
type Service struct {
	registry *prometheus.Registry

	ticks        prometheus.Counter
	tickFailures prometheus.Counter
	alarmEvents  *prometheus.CounterVec
	alarmState   prometheus.Gauge
	tickDuration prometheus.Histogram
}

// New creates and registers the metrics.
func New() *Service {
	m := &Service{
		registry: prometheus.NewRegistry(),

		ticks: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "timearchitect_ticks_total",
			Help: "Total number of clock ticks processed",
		}),
		tickFailures: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "timearchitect_tick_failures_total",
			Help: "Total number of ticks that failed and were recovered",
		}),
		alarmEvents: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "timearchitect_alarm_events_total",
				Help: "Total number of alarm and zone events by type",
			},
			[]string{"type"},
		),
		alarmState: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "timearchitect_alarm_state",
			Help: "Alarm state after the last tick (0 idle, 1 armed, 2 ringing)",
		}),
		tickDuration: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "timearchitect_tick_duration_seconds",
			Help:    "Time spent processing a tick",
			Buckets: prometheus.ExponentialBuckets(0.00001, 4, 8), // 10µs to ~160ms
		}),
	}

	m.registry.MustRegister(
		m.ticks,
		m.tickFailures,
		m.alarmEvents,
		m.alarmState,
		m.tickDuration,
	)
	return m
}

// Subscribe counts every event published on bus.
func (m *Service) Subscribe(bus *events.Bus) {
	bus.SubscribeAll(m.handleEvent)
	logger.Infof("Metrics service started")
}

// ObserveTick records one tick.
func (m *Service) ObserveTick(elapsed time.Duration, failed bool) {
	m.ticks.Inc()
	if failed {
		m.tickFailures.Inc()
	}
	m.tickDuration.Observe(elapsed.Seconds())
}

// ObserveAlarmState records the scheduler state.
func (m *Service) ObserveAlarmState(state alarm.State) {
	m.alarmState.Set(float64(state))
}

// Registry returns the underlying registry.
func (m *Service) Registry() *prometheus.Registry {
	return m.registry
}

// Handler returns the Prometheus HTTP handler for /metrics endpoint
func (m *Service) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}

func (m *Service) handleEvent(e events.Event) {
	m.alarmEvents.WithLabelValues(string(e.Type)).Inc()
}
