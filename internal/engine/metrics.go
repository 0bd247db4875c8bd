package engine

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics exposes Prometheus collectors that report engine activity.
type Metrics struct {
	evaluations  *prometheus.CounterVec
	passDuration *prometheus.HistogramVec
	emitted      *prometheus.CounterVec
	rejected     *prometheus.CounterVec
	ruleFaults   *prometheus.CounterVec
	actions      *prometheus.CounterVec
	dismissals   prometheus.Counter
	pending      prometheus.Gauge
}

var (
	defaultMetricsOnce sync.Once
	sharedMetrics      *Metrics
)

// DefaultMetrics returns the metrics registered with the global Prometheus
// registry, creating them once.
func DefaultMetrics() *Metrics {
	defaultMetricsOnce.Do(func() {
		sharedMetrics = MustNewMetrics(prometheus.DefaultRegisterer)
	})
	return sharedMetrics
}

// MustNewMetrics constructs a Metrics instance using the provided registerer.
// Tests should pass a fresh prometheus.NewRegistry(). Registration errors
// other than AlreadyRegistered panic.
func MustNewMetrics(reg prometheus.Registerer) *Metrics {
	if reg == nil {
		reg = prometheus.DefaultRegisterer
	}
	m := &Metrics{
		evaluations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nudge",
			Subsystem: "engine",
			Name:      "evaluations_total",
			Help:      "Evaluation passes run per surface.",
		}, []string{"surface"}),
		passDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "nudge",
			Subsystem: "engine",
			Name:      "evaluation_duration_seconds",
			Help:      "Time spent in one evaluation pass.",
			Buckets:   []float64{.0005, .001, .005, .01, .05, .1, .5},
		}, []string{"surface"}),
		emitted: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nudge",
			Subsystem: "engine",
			Name:      "candidates_emitted_total",
			Help:      "Candidates selected and committed.",
		}, []string{"surface", "rule"}),
		rejected: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nudge",
			Subsystem: "engine",
			Name:      "candidates_rejected_total",
			Help:      "Ranked candidates that were not emitted.",
		}, []string{"surface"}),
		ruleFaults: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nudge",
			Subsystem: "engine",
			Name:      "rule_faults_total",
			Help:      "Rule evaluations that panicked and were skipped.",
		}, []string{"rule"}),
		actions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "nudge",
			Subsystem: "engine",
			Name:      "actions_total",
			Help:      "Candidate actions by outcome.",
		}, []string{"action", "outcome"}),
		dismissals: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "nudge",
			Subsystem: "engine",
			Name:      "dismissals_total",
			Help:      "Candidates dismissed for the session.",
		}),
		pending: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: "nudge",
			Subsystem: "engine",
			Name:      "pending_writes",
			Help:      "Cooldown writes waiting to be retried.",
		}),
	}

	m.evaluations = register(reg, m.evaluations)
	m.passDuration = register(reg, m.passDuration)
	m.emitted = register(reg, m.emitted)
	m.rejected = register(reg, m.rejected)
	m.ruleFaults = register(reg, m.ruleFaults)
	m.actions = register(reg, m.actions)
	m.dismissals = register(reg, m.dismissals)
	m.pending = register(reg, m.pending)
	return m
}

// register adds c to reg, reusing an identical collector that is already
// registered.
func register[C prometheus.Collector](reg prometheus.Registerer, c C) C {
	if err := reg.Register(c); err != nil {
		if already, ok := err.(prometheus.AlreadyRegisteredError); ok {
			if existing, ok := already.ExistingCollector.(C); ok {
				return existing
			}
		}
		panic(err)
	}
	return c
}

// ObservePass records one evaluation pass.
func (m *Metrics) ObservePass(surface string, emitted, rejected int, d time.Duration) {
	if m == nil {
		return
	}
	m.evaluations.WithLabelValues(surface).Inc()
	m.passDuration.WithLabelValues(surface).Observe(d.Seconds())
	m.rejected.WithLabelValues(surface).Add(float64(rejected))
}

// IncEmitted counts one emitted candidate.
func (m *Metrics) IncEmitted(surface, rule string) {
	if m == nil {
		return
	}
	m.emitted.WithLabelValues(surface, rule).Inc()
}

// IncRuleFault counts a rule that panicked.
func (m *Metrics) IncRuleFault(rule string) {
	if m == nil {
		return
	}
	m.ruleFaults.WithLabelValues(rule).Inc()
}

// IncAction counts an Act call by action id and outcome.
func (m *Metrics) IncAction(action, outcome string) {
	if m == nil {
		return
	}
	m.actions.WithLabelValues(action, outcome).Inc()
}

// IncDismissal counts a dismissal.
func (m *Metrics) IncDismissal() {
	if m == nil {
		return
	}
	m.dismissals.Inc()
}

// SetPending reports how many cooldown writes are still buffered.
func (m *Metrics) SetPending(n int) {
	if m == nil {
		return
	}
	m.pending.Set(float64(n))
}
