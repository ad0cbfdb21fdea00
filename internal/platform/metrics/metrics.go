package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds Prometheus counters and gauges for the livestream orchestrator.
// All methods are safe to call on a nil *Metrics, which records nothing.
type Metrics struct {
	registry           *prometheus.Registry
	requestsTotal      prometheus.Counter
	errorsTotal        prometheus.Counter
	phaseTransitions   *prometheus.CounterVec
	fatalErrorsTotal   prometheus.Counter
	failoversStarted   prometheus.Counter
	failoversCompleted prometheus.Counter
	failoversCancelled prometheus.Counter
	terminalErrors     prometheus.Counter
	activeStream       prometheus.Gauge
	overlayVisible     prometheus.Gauge
	subscribers        prometheus.Gauge
}

// New creates and registers Prometheus metrics for the orchestrator.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	m := &Metrics{
		registry: registry,
		requestsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "livestream_requests_total",
			Help: "Total number of HTTP requests received",
		}),
		errorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "livestream_errors_total",
			Help: "Total number of HTTP responses with error status (4xx or 5xx)",
		}),
		phaseTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "livestream_phase_transitions_total",
			Help: "Number of times a broadcast entered each phase",
		}, []string{"phase"}),
		fatalErrorsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "livestream_player_fatal_errors_total",
			Help: "Fatal player error codes received",
		}),
		failoversStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "livestream_failovers_started_total",
			Help: "Failovers that entered their grace delay",
		}),
		failoversCompleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "livestream_failovers_completed_total",
			Help: "Failovers that switched to the backup source",
		}),
		failoversCancelled: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "livestream_failovers_cancelled_total",
			Help: "Failovers cancelled because the player recovered",
		}),
		terminalErrors: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "livestream_terminal_errors_total",
			Help: "Fatal errors that put a broadcast in the error phase",
		}),
		activeStream: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "livestream_active_stream",
			Help: "1 when a broadcast is registered with the overlay coordinator",
		}),
		overlayVisible: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "livestream_overlay_visible",
			Help: "1 when the overlay is visible on the current route",
		}),
		subscribers: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "livestream_event_subscribers",
			Help: "Connected event stream subscribers",
		}),
	}

	registry.MustRegister(
		m.requestsTotal,
		m.errorsTotal,
		m.phaseTransitions,
		m.fatalErrorsTotal,
		m.failoversStarted,
		m.failoversCompleted,
		m.failoversCancelled,
		m.terminalErrors,
		m.activeStream,
		m.overlayVisible,
		m.subscribers,
	)

	return m
}

// IncRequests increments the total request counter.
func (m *Metrics) IncRequests() {
	if m == nil {
		return
	}
	m.requestsTotal.Inc()
}

// IncErrors increments the errors counter.
func (m *Metrics) IncErrors() {
	if m == nil {
		return
	}
	m.errorsTotal.Inc()
}

// ObservePhase counts a broadcast entering phase.
func (m *Metrics) ObservePhase(phase string) {
	if m == nil {
		return
	}
	m.phaseTransitions.WithLabelValues(phase).Inc()
}

// IncFatalErrors counts a fatal player error.
func (m *Metrics) IncFatalErrors() {
	if m == nil {
		return
	}
	m.fatalErrorsTotal.Inc()
}

// IncFailoversStarted counts a failover entering its grace delay.
func (m *Metrics) IncFailoversStarted() {
	if m == nil {
		return
	}
	m.failoversStarted.Inc()
}

// IncFailoversCompleted counts a switch to the backup source.
func (m *Metrics) IncFailoversCompleted() {
	if m == nil {
		return
	}
	m.failoversCompleted.Inc()
}

// IncFailoversCancelled counts a failover abandoned on player recovery.
func (m *Metrics) IncFailoversCancelled() {
	if m == nil {
		return
	}
	m.failoversCancelled.Inc()
}

// IncTerminalErrors counts a broadcast put into the error phase.
func (m *Metrics) IncTerminalErrors() {
	if m == nil {
		return
	}
	m.terminalErrors.Inc()
}

// SetActiveStream sets the active stream gauge.
func (m *Metrics) SetActiveStream(active bool) {
	if m == nil {
		return
	}
	m.activeStream.Set(boolToFloat(active))
}

// SetOverlayVisible sets the overlay visibility gauge.
func (m *Metrics) SetOverlayVisible(visible bool) {
	if m == nil {
		return
	}
	m.overlayVisible.Set(boolToFloat(visible))
}

// SetSubscribers sets the event subscriber gauge.
func (m *Metrics) SetSubscribers(n int) {
	if m == nil {
		return
	}
	m.subscribers.Set(float64(n))
}

// Handler returns an http.Handler that serves Prometheus metrics.
// updateGauges is called before each scrape to refresh gauge values.
func (m *Metrics) Handler(updateGauges func()) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if updateGauges != nil {
			updateGauges()
		}
		promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{}).ServeHTTP(w, r)
	})
}

// Registry exposes the underlying registry, mainly for tests.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

func boolToFloat(b bool) float64 {
	if b {
		return 1
	}
	return 0
}
