package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/study_mon/internal/domain"
)

// SurveillanceConfig holds state machine configuration.
type SurveillanceConfig struct {
	Thresholds    domain.Thresholds
	PromptTimeout time.Duration
	SessionID     string
	Metrics       Metrics
}

// DefaultSurveillanceConfig returns the standard escalation timings.
func DefaultSurveillanceConfig() SurveillanceConfig {
	return SurveillanceConfig{
		Thresholds:    domain.DefaultThresholds(),
		PromptTimeout: domain.PromptTimeout,
		SessionID:     uuid.NewString(),
	}
}

// ignoreKey identifies a process the user declined to kill. Samples without
// a pid are told apart by window title instead.
type ignoreKey struct {
	pid         int
	processName string
	windowTitle string
}

func ignoreKeyFor(sample domain.StatusSample) ignoreKey {
	key := ignoreKey{pid: sample.PID, processName: sample.ProcessName}
	if sample.PID <= 0 {
		key.windowTitle = sample.WindowTitle
	}
	return key
}

// SurveillanceMachine is the escalation state machine for one session.
//
// UpdateStatus must not be called concurrently; the polling loop owns it.
// The mutex exists for the final-warning timer, which fires on its own
// goroutine, and for readers such as GetState.
type SurveillanceMachine struct {
	config     SurveillanceConfig
	judge      domain.Judge
	terminator domain.ProcessTerminator
	notifier   domain.Notifier
	prompter   domain.Prompter
	shame      domain.ShameRecorder
	clock      domain.Clock
	metrics    Metrics
	logger     *zap.Logger

	mu                sync.Mutex
	state             domain.SurveillanceState
	debounce          *DebounceTracker
	lastInputTime     time.Time
	lastSampleTime    time.Time
	finalWarningStart *time.Time
	finalWarningTimer domain.Timer
	timerGeneration   uint64
	ignored           map[ignoreKey]struct{}
	pending           []domain.Event
}

// NewSurveillanceMachine creates a machine in NORMAL.
// prompter may be nil, in which case detected games are terminated without asking.
func NewSurveillanceMachine(
	config SurveillanceConfig,
	judge domain.Judge,
	terminator domain.ProcessTerminator,
	notifier domain.Notifier,
	prompter domain.Prompter,
	shame domain.ShameRecorder,
	clock domain.Clock,
	logger *zap.Logger,
) *SurveillanceMachine {
	metrics := config.Metrics
	if metrics == nil {
		metrics = nopMetrics{}
	}
	if config.PromptTimeout <= 0 {
		config.PromptTimeout = domain.PromptTimeout
	}
	if notifier == nil {
		notifier = nopNotifier{}
	}
	return &SurveillanceMachine{
		config:        config,
		judge:         judge,
		terminator:    terminator,
		notifier:      notifier,
		prompter:      prompter,
		shame:         shame,
		clock:         clock,
		metrics:       metrics,
		logger:        logger.With(zap.String("session_id", config.SessionID)),
		state:         domain.StateNormal,
		debounce:      NewDebounceTracker(config.Thresholds.RejudgeInterval),
		lastInputTime: clock.Now(),
		ignored:       make(map[ignoreKey]struct{}),
	}
}

// SessionID identifies the monitored session.
func (m *SurveillanceMachine) SessionID() string {
	return m.config.SessionID
}

// GetState returns the current state.
func (m *SurveillanceMachine) GetState() domain.SurveillanceState {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// GetFinalWarningRemainingTime returns the countdown left, or false when no
// countdown is running.
func (m *SurveillanceMachine) GetFinalWarningRemainingTime() (time.Duration, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.finalWarningStart == nil {
		return 0, false
	}
	remaining := m.config.Thresholds.FinalWarning - m.clock.Now().Sub(*m.finalWarningStart)
	if remaining < 0 {
		remaining = 0
	}
	return remaining, true
}

// LastInputTime returns when recent input was last observed.
func (m *SurveillanceMachine) LastInputTime() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastInputTime
}

// LastSampleTime returns when UpdateStatus last ran; zero before the first sample.
func (m *SurveillanceMachine) LastSampleTime() time.Time {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastSampleTime
}

// UpdateStatus processes one probe sample. Side effects (notifications,
// timers, terminations) complete before it returns.
func (m *SurveillanceMachine) UpdateStatus(ctx context.Context, sample domain.StatusSample) {
	defer m.flush()

	m.mu.Lock()
	m.lastSampleTime = m.clock.Now()
	_, skipGameCheck := m.ignored[ignoreKeyFor(sample)]
	m.mu.Unlock()

	// A distraction verdict here means "looks like a game": ask to kill it.
	if sample.HasSignal() && !skipGameCheck {
		if m.judge.Judge(ctx, sample.WindowTitle, sample.ProcessName) == domain.VerdictDistraction {
			m.confirmKill(ctx, sample)
			return
		}
	}

	m.mu.Lock()
	now := m.clock.Now()
	// Compared in float seconds: huge idle values would overflow a Duration.
	idle := sample.IdleTimeSeconds

	if idle < m.config.Thresholds.RecentInput.Seconds() {
		m.lastInputTime = now
		if m.state != domain.StateNormal {
			m.transitionLocked(domain.StateNormal)
		}
		m.debounce.ObserveTitle(sample.WindowTitle)
		m.mu.Unlock()
		return
	}

	if m.state == domain.StateNormal {
		m.transitionLocked(domain.StateSuspicious)
	}

	titleChanged := m.debounce.ObserveTitle(sample.WindowTitle)

	if sample.AudioPlaying {
		if m.state == domain.StateSuspicious {
			m.transitionLocked(domain.StateAudioDetected)
		}
		if titleChanged || m.debounce.ShouldJudgeAgain(sample.WindowTitle, now) {
			// judgeLocked releases the lock.
			m.judgeLocked(ctx, sample.WindowTitle, sample.ProcessName)
			return
		}
		m.mu.Unlock()
		return
	}

	if idle > m.config.Thresholds.Absence.Seconds() &&
		m.state != domain.StateFinalWarning && m.state != domain.StatePunished {
		m.enterFinalWarningLocked()
	}
	m.mu.Unlock()
}

// CancelFinalWarning stops the countdown. Safe to call at any time.
func (m *SurveillanceMachine) CancelFinalWarning() {
	defer m.flush()

	m.mu.Lock()
	defer m.mu.Unlock()

	m.stopTimerLocked()
	if m.state == domain.StateFinalWarning {
		m.transitionLocked(domain.StateNormal)
	}
}

// judgeLocked runs the AI-judging stage. Called with m.mu held; returns with
// it released. The oracle call happens unlocked so the timer and readers are
// not blocked; the AI_JUDGING state rejects overlapping judgments.
func (m *SurveillanceMachine) judgeLocked(ctx context.Context, windowTitle, processName string) {
	now := m.clock.Now()
	if m.state == domain.StateAIJudging || !m.debounce.ShouldJudgeAgain(windowTitle, now) {
		m.mu.Unlock()
		return
	}

	m.transitionLocked(domain.StateAIJudging)
	m.debounce.RecordJudge(windowTitle, now)
	m.mu.Unlock()
	m.flush()

	verdict := m.judge.Judge(ctx, windowTitle, processName)

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != domain.StateAIJudging {
		m.logger.Info("state moved during judgment, dropping verdict",
			zap.String("state", string(m.state)),
			zap.String("verdict", string(verdict)))
		return
	}

	if verdict == domain.VerdictDistraction {
		m.enterFinalWarningLocked()
		return
	}
	m.lastInputTime = m.clock.Now()
	m.transitionLocked(domain.StateNormal)
}

// enterFinalWarningLocked starts the punishment countdown.
func (m *SurveillanceMachine) enterFinalWarningLocked() {
	if m.state == domain.StateFinalWarning {
		return
	}
	m.stopTimerLocked()
	m.transitionLocked(domain.StateFinalWarning)

	start := m.clock.Now()
	m.finalWarningStart = &start
	m.timerGeneration++
	generation := m.timerGeneration
	m.finalWarningTimer = m.clock.AfterFunc(m.config.Thresholds.FinalWarning, func() {
		m.onFinalWarningExpired(generation)
	})

	m.emitLocked(domain.FinalWarningEvent{
		TimeoutMs: m.config.Thresholds.FinalWarning.Milliseconds(),
		StartTime: start.UnixMilli(),
	})
}

// onFinalWarningExpired runs the punish sequence on the timer goroutine.
func (m *SurveillanceMachine) onFinalWarningExpired(generation uint64) {
	m.mu.Lock()
	if generation != m.timerGeneration || m.finalWarningTimer == nil {
		m.mu.Unlock()
		return
	}
	m.finalWarningTimer = nil
	m.finalWarningStart = nil

	m.transitionLocked(domain.StatePunished)
	m.metrics.Punishment()
	record := domain.ShameRecord{
		ID:          uuid.NewString(),
		SessionID:   m.config.SessionID,
		Reason:      "absence",
		WindowTitle: m.debounce.LastWindowTitle(),
		CreatedAt:   m.clock.Now(),
	}
	m.emitLocked(domain.AbsenceEvent{})
	m.mu.Unlock()

	if m.shame != nil {
		if err := m.shame.Record(context.Background(), record); err != nil {
			m.logger.Warn("failed to record shame", zap.Error(err))
		}
	}
	m.flush()
}

// confirmKill asks the user whether to terminate a detected game.
func (m *SurveillanceMachine) confirmKill(ctx context.Context, sample domain.StatusSample) {
	m.notifier.Notify(domain.GameDetectedEvent{
		WindowTitle: sample.WindowTitle,
		ProcessName: sample.ProcessName,
		Timestamp:   m.clock.Now().UnixMilli(),
	})

	if m.prompter == nil {
		m.terminate(ctx, sample)
		return
	}

	promptCtx, cancel := context.WithTimeout(ctx, m.config.PromptTimeout)
	defer cancel()

	action, err := m.prompter.Confirm(promptCtx, domain.KillConfirmation{
		WindowTitle: sample.WindowTitle,
		ProcessName: sample.ProcessName,
		PID:         sample.PID,
	})
	switch {
	case errors.Is(err, domain.ErrPromptUnsupported):
		m.logger.Info("prompt unavailable, terminating without confirmation",
			zap.Int("pid", sample.PID),
			zap.String("process_name", sample.ProcessName))
		m.terminate(ctx, sample)
	case err != nil:
		m.logger.Warn("kill confirmation failed, ignoring process",
			zap.Int("pid", sample.PID),
			zap.Error(err))
		m.ignore(sample)
	case action == domain.ActionTerminate:
		m.terminate(ctx, sample)
	default:
		m.logger.Info("user ignored detected game",
			zap.Int("pid", sample.PID),
			zap.String("process_name", sample.ProcessName))
		m.ignore(sample)
	}
}

func (m *SurveillanceMachine) terminate(ctx context.Context, sample domain.StatusSample) {
	result := m.terminator.Terminate(ctx, sample.PID)
	if result.Err != nil {
		m.metrics.Termination("failed")
		m.logger.Warn("termination failed",
			zap.String("terminator", m.terminator.Name()),
			zap.Int("pid", sample.PID),
			zap.Error(result.Err))
		return
	}

	outcome := "graceful"
	if result.Forced {
		outcome = "forced"
	}
	m.metrics.Termination(outcome)
	m.notifier.Notify(domain.ProcessTerminatedEvent{
		PID:         sample.PID,
		ProcessName: sample.ProcessName,
		Forced:      result.Forced,
	})
}

func (m *SurveillanceMachine) ignore(sample domain.StatusSample) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ignored[ignoreKeyFor(sample)] = struct{}{}
}

// transitionLocked moves to the target state. Entering NORMAL always clears
// the countdown so a stale timer cannot punish.
func (m *SurveillanceMachine) transitionLocked(to domain.SurveillanceState) {
	from := m.state
	if from == to {
		return
	}
	if to == domain.StateNormal {
		m.stopTimerLocked()
	}
	m.state = to
	m.metrics.Transition(to)
	m.logger.Info("state transition",
		zap.String("from", string(from)),
		zap.String("to", string(to)))
	m.emitLocked(domain.StateChangedEvent{From: from, To: to})
}

func (m *SurveillanceMachine) stopTimerLocked() {
	if m.finalWarningTimer != nil {
		m.finalWarningTimer.Stop()
		m.finalWarningTimer = nil
	}
	m.finalWarningStart = nil
	m.timerGeneration++
}

func (m *SurveillanceMachine) emitLocked(event domain.Event) {
	m.pending = append(m.pending, event)
}

type nopNotifier struct{}

func (nopNotifier) Notify(domain.Event) {}

// flush delivers queued events outside the lock.
func (m *SurveillanceMachine) flush() {
	m.mu.Lock()
	events := m.pending
	m.pending = nil
	m.mu.Unlock()

	for _, e := range events {
		m.notifier.Notify(e)
	}
}
