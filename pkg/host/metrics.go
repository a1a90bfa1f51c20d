package host

import (
	"errors"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics groups the collectors of the host runtime. A nil *Metrics records nothing.
type Metrics struct {
	commands        *prometheus.CounterVec
	frames          prometheus.Counter
	processDuration prometheus.Histogram
	timerFires      prometheus.Counter
	restarts        prometheus.Counter
	sessions        prometheus.Gauge
}

// NewMetrics creates the collectors and registers them on reg. Collectors already
// registered by an earlier session are reused, so several sessions can share reg.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		commands: register(reg, prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "plughost",
			Name:      "commands_total",
			Help:      "Commands handled by the worker loop, by kind.",
		}, []string{"kind"})),
		frames: register(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "plughost",
			Name:      "processed_frames_total",
			Help:      "Audio frames reported processed by plugins.",
		})),
		processDuration: register(reg, prometheus.NewHistogram(prometheus.HistogramOpts{
			Namespace: "plughost",
			Name:      "process_duration_seconds",
			Help:      "Time spent inside the plugin process call.",
			Buckets:   prometheus.ExponentialBuckets(25e-6, 2, 12),
		})),
		timerFires: register(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "plughost",
			Name:      "timer_fires_total",
			Help:      "Plugin timer callbacks delivered.",
		})),
		restarts: register(reg, prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "plughost",
			Name:      "restarts_total",
			Help:      "Audio processor restarts.",
		})),
		sessions: register(reg, prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "plughost",
			Name:      "sessions_active",
			Help:      "Running host sessions.",
		})),
	}
}

func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if reg == nil {
		return c
	}
	if err := reg.Register(c); err != nil {
		var are prometheus.AlreadyRegisteredError
		if errors.As(err, &are) {
			if existing, ok := are.ExistingCollector.(C); ok {
				return existing
			}
		}
	}
	return c
}

func (m *Metrics) command(kind string) {
	if m == nil {
		return
	}
	m.commands.WithLabelValues(kind).Inc()
}

func (m *Metrics) addFrames(n uint32) {
	if m == nil {
		return
	}
	m.frames.Add(float64(n))
}

func (m *Metrics) observeProcess(d time.Duration) {
	if m == nil {
		return
	}
	m.processDuration.Observe(d.Seconds())
}

func (m *Metrics) timerFired() {
	if m == nil {
		return
	}
	m.timerFires.Inc()
}

func (m *Metrics) incRestarts() {
	if m == nil {
		return
	}
	m.restarts.Inc()
}

func (m *Metrics) sessionStarted() {
	if m == nil {
		return
	}
	m.sessions.Inc()
}

func (m *Metrics) sessionEnded() {
	if m == nil {
		return
	}
	m.sessions.Dec()
}
