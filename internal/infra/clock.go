package infra

import (
	"time"

	"github.com/eliteGoblin/focusd/study_mon/internal/domain"
)

// RealClock implements domain.Clock with the time package.
type RealClock struct{}

// NewRealClock creates a wall clock.
func NewRealClock() domain.Clock {
	return RealClock{}
}

func (RealClock) Now() time.Time {
	return time.Now()
}

func (RealClock) AfterFunc(d time.Duration, f func()) domain.Timer {
	return time.AfterFunc(d, f)
}

var _ domain.Clock = RealClock{}
