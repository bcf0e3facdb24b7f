// Package metrics exposes controller metrics to Prometheus.
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/sweeney/vent-controller/internal/logic"
)

// Namespace prefixes every metric.
const Namespace = "vent"

var modes = []logic.Mode{
	logic.ModeNormal, logic.ModeRemote, logic.ModeDegraded, logic.ModeLocal, logic.ModeSafeStop,
}

// Collector provides controller metrics on a private registry.
type Collector struct {
	registry *prometheus.Registry

	// Acquisition
	AcquisitionCycles prometheus.Counter
	InvalidSnapshots  prometheus.Counter
	PollutantFailures prometheus.Gauge
	CO2               prometheus.Gauge
	Temperature       prometheus.Gauge
	Humidity          prometheus.Gauge

	// Decision
	DecisionDuration prometheus.Histogram
	Mode             *prometheus.GaugeVec
	FanDuty          *prometheus.GaugeVec
	ActuatorErrors   prometheus.Counter

	// Lifecycle
	Lifecycle   prometheus.Gauge
	Transitions *prometheus.CounterVec

	// Messaging
	AlertsRaised   prometheus.Counter
	AlertsDropped  *prometheus.CounterVec
	CyclesSkipped  *prometheus.CounterVec
	PublishErrors  *prometheus.CounterVec
	WeatherFetches *prometheus.CounterVec
}

// NewCollector creates a collector with its own registry, so several
// collectors can coexist in tests.
func NewCollector() *Collector {
	reg := prometheus.NewRegistry()
	f := promauto.With(reg)

	return &Collector{
		registry: reg,

		AcquisitionCycles: f.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "acquisition_cycles_total",
			Help:      "Total number of sensor acquisition cycles",
		}),
		InvalidSnapshots: f.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "invalid_snapshots_total",
			Help:      "Acquisition cycles that produced no usable snapshot",
		}),
		PollutantFailures: f.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "pollutant_consecutive_failures",
			Help:      "Current run of unusable CO2 readings",
		}),
		CO2: f.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "co2_ppm",
			Help:      "Last published CO2 concentration",
		}),
		Temperature: f.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "temperature_celsius",
			Help:      "Last published indoor temperature",
		}),
		Humidity: f.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "humidity_percent",
			Help:      "Last published relative humidity",
		}),

		DecisionDuration: f.NewHistogram(prometheus.HistogramOpts{
			Namespace: Namespace,
			Name:      "decision_duration_seconds",
			Help:      "Duration of one decision cycle",
			Buckets:   []float64{0.0001, 0.0005, 0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		}),
		Mode: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "mode",
			Help:      "Active operating mode (1 for the active mode)",
		}, []string{"mode"}),
		FanDuty: f.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "fan_duty",
			Help:      "Last duty written per fan (0-255)",
		}, []string{"fan"}),
		ActuatorErrors: f.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "actuator_errors_total",
			Help:      "Failed fan actuation attempts",
		}),

		Lifecycle: f.NewGauge(prometheus.GaugeOpts{
			Namespace: Namespace,
			Name:      "lifecycle_state",
			Help:      "Lifecycle state (0=INIT 1=PREHEATING 2=STABILIZING 3=RUNNING 4=ERROR)",
		}),
		Transitions: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "lifecycle_transitions_total",
			Help:      "Lifecycle transitions by target state",
		}, []string{"to"}),

		AlertsRaised: f.NewCounter(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "alerts_raised_total",
			Help:      "Alerts raised by the controller",
		}),
		AlertsDropped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "alerts_dropped_total",
			Help:      "Alerts dropped because a queue was full",
		}, []string{"queue"}),
		CyclesSkipped: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "cycles_skipped_total",
			Help:      "Cycles skipped because the data lock was not acquired in time",
		}, []string{"activity"}),
		PublishErrors: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "publish_errors_total",
			Help:      "Failed status or alert publishes",
		}, []string{"kind"}),
		WeatherFetches: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Name:      "weather_fetches_total",
			Help:      "Weather fetches by result",
		}, []string{"result"}),
	}
}

// Handler serves the collector's registry.
func (c *Collector) Handler() http.Handler {
	return promhttp.HandlerFor(c.registry, promhttp.HandlerOpts{})
}

// Registry returns the underlying registry.
func (c *Collector) Registry() *prometheus.Registry {
	return c.registry
}

// ObserveCycle records one acquisition cycle.
func (c *Collector) ObserveCycle(s logic.Snapshot, valid bool, failures int) {
	c.AcquisitionCycles.Inc()
	c.PollutantFailures.Set(float64(failures))
	if !valid {
		c.InvalidSnapshots.Inc()
		return
	}
	c.CO2.Set(s.CO2)
	c.Temperature.Set(s.Temperature)
	c.Humidity.Set(s.Humidity)
}

// SetMode marks m as the active mode.
func (c *Collector) SetMode(m logic.Mode) {
	for _, candidate := range modes {
		v := 0.0
		if candidate == m {
			v = 1
		}
		c.Mode.WithLabelValues(string(candidate)).Set(v)
	}
}

// SetLifecycle records a lifecycle transition.
func (c *Collector) SetLifecycle(l logic.Lifecycle) {
	c.Lifecycle.Set(float64(l))
	c.Transitions.WithLabelValues(l.String()).Inc()
}

// SetDuties records the duty of each fan.
func (c *Collector) SetDuties(duties []uint8) {
	for i, d := range duties {
		c.FanDuty.WithLabelValues(strconv.Itoa(i)).Set(float64(d))
	}
}

// ObserveDecision records the duration of a decision cycle.
func (c *Collector) ObserveDecision(d time.Duration) {
	c.DecisionDuration.Observe(d.Seconds())
}

// AlertDropped counts an alert rejected by queue.
func (c *Collector) AlertDropped(queue string) {
	c.AlertsDropped.WithLabelValues(queue).Inc()
}

// Skipped counts a cycle skipped by activity.
func (c *Collector) Skipped(activity string) {
	c.CyclesSkipped.WithLabelValues(activity).Inc()
}

// PublishFailed counts a failed publish of kind ("status" or "alert").
func (c *Collector) PublishFailed(kind string) {
	c.PublishErrors.WithLabelValues(kind).Inc()
}

// WeatherFetched counts a weather fetch by outcome.
func (c *Collector) WeatherFetched(ok bool) {
	result := "ok"
	if !ok {
		result = "error"
	}
	c.WeatherFetches.WithLabelValues(result).Inc()
}
