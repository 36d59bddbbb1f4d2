package infra

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/eliteGoblin/focusd/study_mon/internal/domain"
)

// PromMetrics implements usecase.Metrics with prometheus collectors on a
// private registry.
type PromMetrics struct {
	registry     *prometheus.Registry
	cacheLookups *prometheus.CounterVec
	oracleCalls  *prometheus.CounterVec
	transitions  *prometheus.CounterVec
	terminations *prometheus.CounterVec
	punishments  prometheus.Counter
	state        *prometheus.GaugeVec
}

// NewPromMetrics creates and registers every collector.
func NewPromMetrics() *PromMetrics {
	m := &PromMetrics{
		registry: prometheus.NewRegistry(),
		cacheLookups: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "studymon_judge_cache_lookups_total",
			Help: "Judge cache lookups by result.",
		}, []string{"result"}),
		oracleCalls: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "studymon_oracle_calls_total",
			Help: "Oracle consultations by outcome.",
		}, []string{"outcome"}),
		transitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "studymon_state_transitions_total",
			Help: "Surveillance state transitions by target state.",
		}, []string{"to"}),
		terminations: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "studymon_terminations_total",
			Help: "Distraction kill attempts by outcome.",
		}, []string{"outcome"}),
		punishments: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "studymon_punishments_total",
			Help: "Sessions that reached PUNISHED.",
		}),
		state: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Name: "studymon_state",
			Help: "1 for the current surveillance state, 0 otherwise.",
		}, []string{"state"}),
	}

	m.registry.MustRegister(m.cacheLookups, m.oracleCalls, m.transitions, m.terminations, m.punishments, m.state)
	m.setState(domain.StateNormal)
	return m
}

func (m *PromMetrics) CacheHit() { m.cacheLookups.WithLabelValues("hit").Inc() }

func (m *PromMetrics) CacheMiss() { m.cacheLookups.WithLabelValues("miss").Inc() }

func (m *PromMetrics) OracleCall(outcome string) { m.oracleCalls.WithLabelValues(outcome).Inc() }

func (m *PromMetrics) Termination(outcome string) { m.terminations.WithLabelValues(outcome).Inc() }

func (m *PromMetrics) Punishment() { m.punishments.Inc() }

// Transition counts the move and updates the state gauge.
func (m *PromMetrics) Transition(to domain.SurveillanceState) {
	m.transitions.WithLabelValues(string(to)).Inc()
	m.setState(to)
}

func (m *PromMetrics) setState(current domain.SurveillanceState) {
	for _, s := range domain.AllStates {
		v := 0.0
		if s == current {
			v = 1
		}
		m.state.WithLabelValues(string(s)).Set(v)
	}
}

// Registry exposes the collectors for tests and custom exporters.
func (m *PromMetrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the prometheus text format.
func (m *PromMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
