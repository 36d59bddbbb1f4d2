// Package domain contains core business entities and interfaces.
// This is the innermost layer in Clean Architecture - no external dependencies.
package domain

import (
	"errors"
	"strings"
	"time"
)

// SurveillanceState is the escalation level of a monitored session.
type SurveillanceState string

const (
	StateNormal        SurveillanceState = "NORMAL"
	StateSuspicious    SurveillanceState = "SUSPICIOUS"
	StateAudioDetected SurveillanceState = "AUDIO_DETECTED"
	StateAIJudging     SurveillanceState = "AI_JUDGING"
	StateFinalWarning  SurveillanceState = "FINAL_WARNING"
	StatePunished      SurveillanceState = "PUNISHED"
)

// AllStates lists every state in escalation order.
var AllStates = []SurveillanceState{
	StateNormal,
	StateSuspicious,
	StateAudioDetected,
	StateAIJudging,
	StateFinalWarning,
	StatePunished,
}

// Level returns the escalation order of the state (NORMAL = 0).
func (s SurveillanceState) Level() int {
	for i, st := range AllStates {
		if st == s {
			return i
		}
	}
	return -1
}

// Verdict is the oracle's classification of a window/process pair.
type Verdict string

const (
	VerdictStudy       Verdict = "STUDY"
	VerdictDistraction Verdict = "DISTRACTION"
)

// ParseVerdict accepts exactly "STUDY" or "DISTRACTION".
func ParseVerdict(raw string) (Verdict, error) {
	switch Verdict(raw) {
	case VerdictStudy, VerdictDistraction:
		return Verdict(raw), nil
	}
	return "", ErrInvalidVerdict
}

// Sentinel errors shared across layers.
var (
	ErrInvalidVerdict    = errors.New("invalid verdict")
	ErrPromptUnsupported = errors.New("confirmation prompt not supported")
	ErrProcessNotFound   = errors.New("process not found")
)

// StatusSample is one observation from the OS probe.
type StatusSample struct {
	IdleTimeSeconds float64 `json:"idleTimeSeconds"`
	WindowTitle     string  `json:"windowTitle"`
	AudioPlaying    bool    `json:"audioPlaying"`
	PID             int     `json:"pid"`
	ProcessName     string  `json:"processName"`
}

// HasSignal reports whether the sample identifies a window or process at all.
func (s StatusSample) HasSignal() bool {
	return s.WindowTitle != "" || s.ProcessName != ""
}

// ProbeCommand is a control instruction delivered on the status stream.
type ProbeCommand string

// CommandCancelFinalWarning asks the monitor to abort the final-warning countdown.
const CommandCancelFinalWarning ProbeCommand = "cancel-final-warning"

// ProbeMessage is either a sample or a command, never both.
type ProbeMessage struct {
	Sample  *StatusSample
	Command ProbeCommand
}

// JudgeCacheEntry is a persisted verdict. Timestamp is epoch milliseconds.
type JudgeCacheEntry struct {
	Verdict   Verdict `json:"verdict"`
	Timestamp int64   `json:"timestamp"`
}

// JudgeCacheKeySeparator joins title and process name in cache keys.
const JudgeCacheKeySeparator = "||"

// JudgeCacheKey builds the cache key for a window/process pair.
func JudgeCacheKey(windowTitle, processName string) string {
	return windowTitle + JudgeCacheKeySeparator + processName
}

// SplitJudgeCacheKey reverses JudgeCacheKey. Titles containing the separator
// split on the last occurrence.
func SplitJudgeCacheKey(key string) (windowTitle, processName string) {
	i := strings.LastIndex(key, JudgeCacheKeySeparator)
	if i < 0 {
		return key, ""
	}
	return key[:i], key[i+len(JudgeCacheKeySeparator):]
}

// Escalation timings.
const (
	RecentInputThreshold = 60 * time.Second
	AbsenceThreshold     = 10 * time.Minute
	FinalWarningTimeout  = 5 * time.Minute
	RejudgeInterval      = 30 * time.Second
	JudgeCacheTTL        = 24 * time.Hour
	OracleTimeout        = 15 * time.Second
	PromptTimeout        = 60 * time.Second
)

// Thresholds groups the tunable timings of the state machine.
type Thresholds struct {
	RecentInput     time.Duration
	Absence         time.Duration
	FinalWarning    time.Duration
	RejudgeInterval time.Duration
}

// DefaultThresholds returns the standard escalation timings.
func DefaultThresholds() Thresholds {
	return Thresholds{
		RecentInput:     RecentInputThreshold,
		Absence:         AbsenceThreshold,
		FinalWarning:    FinalWarningTimeout,
		RejudgeInterval: RejudgeInterval,
	}
}

// OracleRequest is the body sent to the remote classifier.
type OracleRequest struct {
	WindowTitle string `json:"window_title"`
	ProcessName string `json:"process_name,omitempty"`
}

// OracleResponse is the classifier's reply. Only Verdict is required.
type OracleResponse struct {
	Verdict    string  `json:"verdict"`
	Reason     string  `json:"reason,omitempty"`
	Confidence float64 `json:"confidence,omitempty"`
}

// ConfirmAction is the user's answer to the kill-confirmation prompt.
type ConfirmAction string

const (
	ActionTerminate ConfirmAction = "terminate"
	ActionIgnore    ConfirmAction = "ignore"
)

// KillConfirmation is what the prompt shows the user.
type KillConfirmation struct {
	WindowTitle string `json:"windowTitle"`
	ProcessName string `json:"processName"`
	PID         int    `json:"pid"`
}

// ShameRecord marks that a session reached PUNISHED.
type ShameRecord struct {
	ID          string    `json:"id"`
	SessionID   string    `json:"session_id"`
	Reason      string    `json:"reason"`
	WindowTitle string    `json:"window_title,omitempty"`
	ProcessName string    `json:"process_name,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
}

// SessionSnapshot is the published view of a running monitor.
type SessionSnapshot struct {
	SessionID               string            `json:"session_id"`
	PID                     int               `json:"pid"`
	State                   SurveillanceState `json:"state"`
	FinalWarningRemainingMs *int64            `json:"final_warning_remaining_ms,omitempty"`
	LastSampleAt            int64             `json:"last_sample_at,omitempty"`
	LastHeartbeat           int64             `json:"last_heartbeat"`
	AppVersion              string            `json:"app_version,omitempty"`
}

// TerminationResult records how a terminate attempt ended.
type TerminationResult struct {
	PID      int
	Graceful bool
	Forced   bool
	Err      error
}
