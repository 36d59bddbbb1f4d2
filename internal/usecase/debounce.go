package usecase

import (
	"strings"
	"time"
)

// DebounceTracker rate-limits judge calls for a static window title.
// It also remembers the last observed title so the state machine can
// tell when the foreground window changed.
type DebounceTracker struct {
	interval        time.Duration
	lastWindowTitle string
	lastJudgeTitle  string
	lastJudgeTime   time.Time
}

// NewDebounceTracker creates a tracker with the given re-judge interval.
func NewDebounceTracker(interval time.Duration) *DebounceTracker {
	return &DebounceTracker{interval: interval}
}

// ShouldJudgeAgain reports whether title is due for a new judgment at now.
// Blank titles are never due.
func (d *DebounceTracker) ShouldJudgeAgain(title string, now time.Time) bool {
	if strings.TrimSpace(title) == "" {
		return false
	}
	if title != d.lastJudgeTitle {
		return true
	}
	return now.Sub(d.lastJudgeTime) >= d.interval
}

// RecordJudge marks title as judged at now.
func (d *DebounceTracker) RecordJudge(title string, now time.Time) {
	d.lastJudgeTitle = title
	d.lastJudgeTime = now
}

// ObserveTitle stores title as the latest foreground title and reports
// whether it differs from the previous one.
func (d *DebounceTracker) ObserveTitle(title string) (changed bool) {
	changed = title != d.lastWindowTitle
	d.lastWindowTitle = title
	return changed
}

// LastWindowTitle returns the most recently observed title.
func (d *DebounceTracker) LastWindowTitle() string {
	return d.lastWindowTitle
}
