package infra

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/study_mon/internal/domain"
)

const (
	// DefaultTerminateGrace is how long a process gets to exit after the
	// graceful request before it is force-killed.
	DefaultTerminateGrace = 3 * time.Second
	defaultPollInterval   = 100 * time.Millisecond
)

// ErrRefusedPID is returned for pids the terminator will never touch.
var ErrRefusedPID = errors.New("refusing to terminate pid")

// terminateStrategy is one platform's way of ending a process.
type terminateStrategy interface {
	Name() string
	IsAvailable(goos string) bool
	RequestExit(ctx context.Context, pid int) error
	ForceExit(ctx context.Context, pid int) error
}

// signalStrategy ends processes with SIGTERM then SIGKILL.
type signalStrategy struct {
	pm domain.ProcessManager
}

func (s *signalStrategy) Name() string { return "signal" }

func (s *signalStrategy) IsAvailable(goos string) bool { return goos != "windows" }

func (s *signalStrategy) RequestExit(_ context.Context, pid int) error { return s.pm.Terminate(pid) }

func (s *signalStrategy) ForceExit(_ context.Context, pid int) error { return s.pm.Kill(pid) }

// taskkillStrategy ends processes with taskkill, then taskkill /F.
type taskkillStrategy struct {
	runner CommandRunner
}

func (s *taskkillStrategy) Name() string { return "taskkill" }

func (s *taskkillStrategy) IsAvailable(goos string) bool { return goos == "windows" }

func (s *taskkillStrategy) RequestExit(ctx context.Context, pid int) error {
	return s.runner.Run(ctx, "taskkill", "/PID", strconv.Itoa(pid))
}

func (s *taskkillStrategy) ForceExit(ctx context.Context, pid int) error {
	return s.runner.Run(ctx, "taskkill", "/F", "/PID", strconv.Itoa(pid))
}

// ProcessTerminator implements domain.ProcessTerminator: graceful request,
// wait up to grace for the process to exit, then force.
type ProcessTerminator struct {
	strategy terminateStrategy
	pm       domain.ProcessManager
	grace    time.Duration
	poll     time.Duration
	selfPID  int
	logger   *zap.Logger
}

// TerminatorOption configures a ProcessTerminator.
type TerminatorOption func(*ProcessTerminator)

// WithGracePeriod overrides DefaultTerminateGrace.
func WithGracePeriod(d time.Duration) TerminatorOption {
	return func(t *ProcessTerminator) { t.grace = d }
}

// WithPollInterval sets how often liveness is checked during the grace period.
func WithPollInterval(d time.Duration) TerminatorOption {
	return func(t *ProcessTerminator) { t.poll = d }
}

// NewProcessTerminator picks the first strategy available on goos.
// Strategy selection happens once, at startup.
func NewProcessTerminator(goos string, pm domain.ProcessManager, runner CommandRunner, logger *zap.Logger, opts ...TerminatorOption) (*ProcessTerminator, error) {
	candidates := []terminateStrategy{
		&signalStrategy{pm: pm},
		&taskkillStrategy{runner: runner},
	}

	t := &ProcessTerminator{
		pm:      pm,
		grace:   DefaultTerminateGrace,
		poll:    defaultPollInterval,
		selfPID: os.Getpid(),
		logger:  logger,
	}
	for _, opt := range opts {
		opt(t)
	}

	for _, c := range candidates {
		if c.IsAvailable(goos) {
			t.strategy = c
			return t, nil
		}
	}
	return nil, fmt.Errorf("no termination strategy for %s", goos)
}

// Name returns the selected strategy name.
func (t *ProcessTerminator) Name() string {
	return t.strategy.Name()
}

// Terminate ends pid. Failures are reported in the result, never returned
// as a panic or retried.
func (t *ProcessTerminator) Terminate(ctx context.Context, pid int) domain.TerminationResult {
	result := domain.TerminationResult{PID: pid}

	if pid <= 0 || pid == t.selfPID {
		result.Err = fmt.Errorf("%w %d", ErrRefusedPID, pid)
		return result
	}
	if !t.pm.IsRunning(pid) {
		result.Err = fmt.Errorf("pid %d: %w", pid, domain.ErrProcessNotFound)
		return result
	}

	if err := t.strategy.RequestExit(ctx, pid); err != nil {
		t.logger.Debug("graceful exit request failed",
			zap.Int("pid", pid),
			zap.String("strategy", t.strategy.Name()),
			zap.Error(err))
	} else if t.waitForExit(ctx, pid) {
		result.Graceful = true
		return result
	}

	if !t.pm.IsRunning(pid) {
		result.Graceful = true
		return result
	}

	if err := t.strategy.ForceExit(ctx, pid); err != nil {
		result.Err = fmt.Errorf("force exit pid %d: %w", pid, err)
		return result
	}
	result.Forced = true
	return result
}

// waitForExit polls until pid is gone, the grace period ends, or ctx is done.
func (t *ProcessTerminator) waitForExit(ctx context.Context, pid int) bool {
	deadline := time.NewTimer(t.grace)
	defer deadline.Stop()
	ticker := time.NewTicker(t.poll)
	defer ticker.Stop()

	for {
		if !t.pm.IsRunning(pid) {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-deadline.C:
			return !t.pm.IsRunning(pid)
		case <-ticker.C:
		}
	}
}

var _ domain.ProcessTerminator = (*ProcessTerminator)(nil)
