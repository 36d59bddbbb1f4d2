package usecase

import "github.com/eliteGoblin/focusd/study_mon/internal/domain"

// Metrics receives counters from the judge and the state machine.
// Implementation: prometheus collectors in infra.
type Metrics interface {
	CacheHit()
	CacheMiss()
	OracleCall(outcome string)
	Transition(to domain.SurveillanceState)
	Termination(outcome string)
	Punishment()
}

// Oracle call outcomes.
const (
	OutcomeOK          = "ok"
	OutcomeError       = "error"
	OutcomeInvalid     = "invalid"
	OutcomeRateLimited = "rate_limited"
)

type nopMetrics struct{}

func (nopMetrics) CacheHit() {}
func (nopMetrics) CacheMiss() {}
func (nopMetrics) OracleCall(string) {}
func (nopMetrics) Transition(domain.SurveillanceState) {}
func (nopMetrics) Termination(string) {}
func (nopMetrics) Punishment() {}
