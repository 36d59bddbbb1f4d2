package domain

import (
	"context"
	"time"
)

// JudgeCache is the persistent verdict store.
// Implementation: JSON file, load-on-demand, save-after-every-write.
type JudgeCache interface {
	// Load returns the persisted mapping, or an empty one on any failure.
	Load() map[string]JudgeCacheEntry

	// Save overwrites the persisted mapping. Failures are logged, not returned.
	Save(entries map[string]JudgeCacheEntry)

	// Get returns the entry for the pair if it is fresh at now.
	Get(windowTitle, processName string, now time.Time) *JudgeCacheEntry

	// Put records a verdict and persists the store.
	Put(windowTitle, processName string, entry JudgeCacheEntry)
}

// Oracle classifies a window/process pair remotely.
// The raw verdict string is returned uncoerced.
type Oracle interface {
	Name() string
	Classify(ctx context.Context, req OracleRequest) (string, error)
}

// Judge decides STUDY or DISTRACTION. It never fails: infrastructure
// errors collapse to STUDY.
type Judge interface {
	Judge(ctx context.Context, windowTitle, processName string) Verdict
}

// ProcessManager handles OS process operations.
// Implementation: uses gopsutil for cross-platform support.
type ProcessManager interface {
	// FindByName returns PIDs of processes matching the pattern.
	FindByName(pattern string) ([]int, error)

	// Name returns the executable name of pid.
	Name(pid int) (string, error)

	// Terminate sends the graceful termination signal (SIGTERM).
	Terminate(pid int) error

	// Kill terminates a process by PID (SIGKILL).
	Kill(pid int) error

	// IsRunning checks if a PID exists and is running.
	IsRunning(pid int) bool
}

// ProcessTerminator kills a process, graceful first, forceful second.
// Best effort: failures are logged and reported in the result, never panicked.
type ProcessTerminator interface {
	Name() string
	Terminate(ctx context.Context, pid int) TerminationResult
}

// Notifier delivers UI events. Delivery is synchronous and must not block long.
type Notifier interface {
	Notify(event Event)
}

// Prompter asks the user whether to kill a detected game.
// Returns ErrPromptUnsupported when no prompt can be shown.
type Prompter interface {
	Confirm(ctx context.Context, req KillConfirmation) (ConfirmAction, error)
}

// ShameRecorder persists punishment records. Fire-and-forget.
type ShameRecorder interface {
	Record(ctx context.Context, record ShameRecord) error
}

// ShameStore is a ShameRecorder that can also list what it recorded.
type ShameStore interface {
	ShameRecorder
	List(ctx context.Context, limit int) ([]ShameRecord, error)
	Close() error
}

// SessionRegistry publishes the monitor's state for the status command.
// Implementation: JSON file written atomically.
type SessionRegistry interface {
	Publish(snapshot SessionSnapshot) error
	Read() (*SessionSnapshot, error)
	Clear() error
	Path() string
}

// StatusProbe delivers samples and commands from the OS probe until ctx
// ends or the source is exhausted, then closes the channel.
type StatusProbe interface {
	Messages(ctx context.Context) (<-chan ProbeMessage, error)
}

// Clock abstracts wall time so the final-warning countdown can be driven
// virtually in tests.
type Clock interface {
	Now() time.Time
	AfterFunc(d time.Duration, f func()) Timer
}

// Timer is a cancellable one-shot callback.
type Timer interface {
	Stop() bool
}

// KeyProvider abstracts the source of encryption keys.
type KeyProvider interface {
	// GetKey returns the encryption key bytes.
	GetKey() ([]byte, error)

	// StoreKey persists a new encryption key.
	StoreKey(key []byte) error

	// KeyExists checks if a key has been generated.
	KeyExists() bool
}
