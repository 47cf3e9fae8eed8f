// Package metrics exposes Prometheus metrics on a private registry.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// States lists the control state label values, in gauge order.
var States = []string{"IDLE", "HEATING", "COOLING"}

// Metrics holds the daemon's collectors. A nil *Metrics is valid and
// records nothing.
type Metrics struct {
	registry *prometheus.Registry

	taskRuns     *prometheus.CounterVec
	taskDuration *prometheus.HistogramVec
	taskLateness *prometheus.HistogramVec

	fused       prometheus.Gauge
	liveSources prometheus.Gauge
	source      *prometheus.GaugeVec
	state       *prometheus.GaugeVec
	setpoint    *prometheus.GaugeVec

	mqttConnected  prometheus.Gauge
	mqttRecoveries prometheus.Counter

	settingsSaves *prometheus.CounterVec
	cbState       *prometheus.GaugeVec

	httpRequests *prometheus.CounterVec
}

// New creates and registers all collectors.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		taskRuns: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "goldilocks_task_runs_total",
			Help: "Scheduled task executions by task.",
		}, []string{"task"}),
		taskDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "goldilocks_task_duration_seconds",
			Help:    "Scheduled task run time by task.",
			Buckets: []float64{.001, .005, .01, .025, .05, .08, .1, .25, .5, 1},
		}, []string{"task"}),
		taskLateness: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "goldilocks_task_lateness_seconds",
			Help:    "Delay between a task's due time and its start.",
			Buckets: []float64{.001, .01, .05, .1, .5, 1, 5},
		}, []string{"task"}),
		fused: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "goldilocks_temperature_fahrenheit",
			Help: "Fused room temperature used for control.",
		}),
		liveSources: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "goldilocks_live_sources",
			Help: "Number of non-stale temperature sources.",
		}),
		source: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "goldilocks_source_temperature_fahrenheit",
			Help: "Last reading per temperature source.",
		}, []string{"source"}),
		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "goldilocks_control_state",
			Help: "1 for the current control state, 0 otherwise.",
		}, []string{"state"}),
		setpoint: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "goldilocks_setpoint_fahrenheit",
			Help: "Comfort range bounds.",
		}, []string{"bound"}),
		mqttConnected: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "goldilocks_mqtt_connected",
			Help: "1 while a broker session is held.",
		}),
		mqttRecoveries: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "goldilocks_mqtt_recoveries_total",
			Help: "Broker sessions discarded after a transport failure.",
		}),
		settingsSaves: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "goldilocks_settings_saves_total",
			Help: "Settings file writes by result.",
		}, []string{"result"}),
		cbState: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "goldilocks_cb_state",
			Help: "Circuit breaker state gauge (0 closed, 1 half, 2 open).",
		}, []string{"target"}),
		httpRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "goldilocks_http_requests_total",
			Help: "HTTP requests by route and status.",
		}, []string{"route", "status"}),
	}

	m.registry.MustRegister(
		m.taskRuns,
		m.taskDuration,
		m.taskLateness,
		m.fused,
		m.liveSources,
		m.source,
		m.state,
		m.setpoint,
		m.mqttConnected,
		m.mqttRecoveries,
		m.settingsSaves,
		m.cbState,
		m.httpRequests,
	)

	for _, s := range States {
		m.state.WithLabelValues(s).Set(0)
	}
	return m
}

// Registry returns the private registry.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// TaskRun records a scheduler task execution.
func (m *Metrics) TaskRun(name string, took, late time.Duration) {
	if m == nil {
		return
	}
	m.taskRuns.WithLabelValues(name).Inc()
	m.taskDuration.WithLabelValues(name).Observe(took.Seconds())
	if late < 0 {
		late = 0
	}
	m.taskLateness.WithLabelValues(name).Observe(late.Seconds())
}

// Temperature records the fused temperature and live source count.
func (m *Metrics) Temperature(fused float64, live int) {
	if m == nil {
		return
	}
	m.fused.Set(fused)
	m.liveSources.Set(float64(live))
}

// SourceReading records the last reading from one source.
func (m *Metrics) SourceReading(source string, value float64) {
	if m == nil {
		return
	}
	m.source.WithLabelValues(source).Set(value)
}

// ControlState marks state as current.
func (m *Metrics) ControlState(state string) {
	if m == nil {
		return
	}
	for _, s := range States {
		v := 0.0
		if s == state {
			v = 1
		}
		m.state.WithLabelValues(s).Set(v)
	}
}

// Setpoints records the comfort range.
func (m *Metrics) Setpoints(low, high float64) {
	if m == nil {
		return
	}
	m.setpoint.WithLabelValues("low").Set(low)
	m.setpoint.WithLabelValues("high").Set(high)
}

// MQTTConnected records whether a broker session is held.
func (m *Metrics) MQTTConnected(connected bool) {
	if m == nil {
		return
	}
	if connected {
		m.mqttConnected.Set(1)
	} else {
		m.mqttConnected.Set(0)
	}
}

// MQTTRecovery counts a discarded broker session.
func (m *Metrics) MQTTRecovery() {
	if m == nil {
		return
	}
	m.mqttRecoveries.Inc()
}

// SettingsSave counts a settings write attempt.
func (m *Metrics) SettingsSave(err error) {
	if m == nil {
		return
	}
	if err != nil {
		m.settingsSaves.WithLabelValues("error").Inc()
		return
	}
	m.settingsSaves.WithLabelValues("ok").Inc()
}

// SetCircuitBreakerState records a breaker state for target.
func (m *Metrics) SetCircuitBreakerState(target string, state float64) {
	if m == nil {
		return
	}
	m.cbState.WithLabelValues(target).Set(state)
}

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (s *statusRecorder) WriteHeader(status int) {
	s.status = status
	s.ResponseWriter.WriteHeader(status)
}

// WrapHandler counts requests to route by response status.
func (m *Metrics) WrapHandler(route string, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(recorder, r)
		if m != nil {
			m.httpRequests.WithLabelValues(route, strconv.Itoa(recorder.status)).Inc()
		}
	})
}
