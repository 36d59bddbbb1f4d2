package domain

// Event is a fire-and-forget UI notification.
type Event interface {
	EventName() string
}

// Event names as seen by the UI layer.
const (
	EventFinalWarning      = "final-warning"
	EventAbsence           = "absence"
	EventGameDetected      = "game-detected"
	EventProcessTerminated = "process-terminated"
	EventStateChanged      = "state-changed"
)

// FinalWarningEvent starts the UI countdown.
type FinalWarningEvent struct {
	TimeoutMs int64 `json:"timeoutMs"`
	StartTime int64 `json:"startTime"`
}

func (FinalWarningEvent) EventName() string { return EventFinalWarning }

// AbsenceEvent is emitted once the session is punished.
type AbsenceEvent struct{}

func (AbsenceEvent) EventName() string { return EventAbsence }

// GameDetectedEvent precedes the kill-confirmation prompt.
type GameDetectedEvent struct {
	WindowTitle string `json:"windowTitle"`
	ProcessName string `json:"processName"`
	Timestamp   int64  `json:"timestamp"`
}

func (GameDetectedEvent) EventName() string { return EventGameDetected }

// ProcessTerminatedEvent is the completion notice after a confirmed kill.
type ProcessTerminatedEvent struct {
	PID         int    `json:"pid"`
	ProcessName string `json:"processName"`
	Forced      bool   `json:"forced"`
}

func (ProcessTerminatedEvent) EventName() string { return EventProcessTerminated }

// StateChangedEvent reports every transition.
type StateChangedEvent struct {
	From SurveillanceState `json:"from"`
	To   SurveillanceState `json:"to"`
}

func (StateChangedEvent) EventName() string { return EventStateChanged }
