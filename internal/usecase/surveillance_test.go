package usecase

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/study_mon/internal/domain"
	"github.com/eliteGoblin/focusd/study_mon/test/fixtures"
)

// mockJudge implements domain.Judge for testing
type mockJudge struct {
	mu       sync.Mutex
	verdicts map[string]domain.Verdict
	calls    []string
}

func newMockJudge() *mockJudge {
	return &mockJudge{verdicts: make(map[string]domain.Verdict)}
}

func (m *mockJudge) set(title, process string, v domain.Verdict) {
	m.verdicts[domain.JudgeCacheKey(title, process)] = v
}

func (m *mockJudge) Judge(ctx context.Context, title, process string) domain.Verdict {
	m.mu.Lock()
	defer m.mu.Unlock()
	key := domain.JudgeCacheKey(title, process)
	m.calls = append(m.calls, key)
	if v, ok := m.verdicts[key]; ok {
		return v
	}
	return domain.VerdictStudy
}

func (m *mockJudge) callCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.calls)
}

// mockTerminator implements domain.ProcessTerminator for testing
type mockTerminator struct {
	terminated []int
	err        error
}

func (m *mockTerminator) Name() string { return "mock" }

func (m *mockTerminator) Terminate(ctx context.Context, pid int) domain.TerminationResult {
	m.terminated = append(m.terminated, pid)
	return domain.TerminationResult{PID: pid, Graceful: m.err == nil, Err: m.err}
}

// recordingNotifier implements domain.Notifier for testing
type recordingNotifier struct {
	mu     sync.Mutex
	events []domain.Event
}

func (r *recordingNotifier) Notify(e domain.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.events = append(r.events, e)
}

func (r *recordingNotifier) named(name string) []domain.Event {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []domain.Event
	for _, e := range r.events {
		if e.EventName() == name {
			out = append(out, e)
		}
	}
	return out
}

// mockPrompter implements domain.Prompter for testing
type mockPrompter struct {
	action  domain.ConfirmAction
	err     error
	prompts []domain.KillConfirmation
}

func (m *mockPrompter) Confirm(ctx context.Context, req domain.KillConfirmation) (domain.ConfirmAction, error) {
	m.prompts = append(m.prompts, req)
	return m.action, m.err
}

// mockShame implements domain.ShameRecorder for testing
type mockShame struct {
	mu      sync.Mutex
	records []domain.ShameRecord
	err     error
}

func (m *mockShame) Record(ctx context.Context, r domain.ShameRecord) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.records = append(m.records, r)
	return m.err
}

type machineHarness struct {
	machine    *SurveillanceMachine
	clock      *fixtures.FakeClock
	judge      *mockJudge
	terminator *mockTerminator
	notifier   *recordingNotifier
	prompter   *mockPrompter
	shame      *mockShame
}

func newHarness(t *testing.T) *machineHarness {
	t.Helper()
	h := &machineHarness{
		clock:      fixtures.NewFakeClock(time.UnixMilli(1_700_000_000_000)),
		judge:      newMockJudge(),
		terminator: &mockTerminator{},
		notifier:   &recordingNotifier{},
		prompter:   &mockPrompter{action: domain.ActionTerminate},
		shame:      &mockShame{},
	}
	config := DefaultSurveillanceConfig()
	config.SessionID = "test-session"
	h.machine = NewSurveillanceMachine(config, h.judge, h.terminator, h.notifier,
		h.prompter, h.shame, h.clock, zap.NewNop())
	return h
}

func (h *machineHarness) update(sample domain.StatusSample) {
	h.machine.UpdateStatus(context.Background(), sample)
}

func TestNewSurveillanceMachine_StartsNormal(t *testing.T) {
	h := newHarness(t)

	assert.Equal(t, domain.StateNormal, h.machine.GetState())
	_, running := h.machine.GetFinalWarningRemainingTime()
	assert.False(t, running)
	assert.Equal(t, "test-session", h.machine.SessionID())
}

func TestUpdateStatus_RecentInputAlwaysNormal(t *testing.T) {
	tests := []struct {
		name  string
		setup []domain.StatusSample
	}{
		{name: "from normal"},
		{
			name:  "from suspicious",
			setup: []domain.StatusSample{{IdleTimeSeconds: 120}},
		},
		{
			name:  "from final warning",
			setup: []domain.StatusSample{{IdleTimeSeconds: 700}},
		},
		{
			name:  "from audio detected",
			setup: []domain.StatusSample{{IdleTimeSeconds: 120, AudioPlaying: true}},
		},
	}

	for _, tt := range tests {
		for _, idle := range []float64{0, 30, 59.9} {
			t.Run(fmt.Sprintf("%s idle %v", tt.name, idle), func(t *testing.T) {
				h := newHarness(t)
				for _, s := range tt.setup {
					h.update(s)
				}

				h.update(domain.StatusSample{IdleTimeSeconds: idle, WindowTitle: "Notes"})

				assert.Equal(t, domain.StateNormal, h.machine.GetState())
				_, running := h.machine.GetFinalWarningRemainingTime()
				assert.False(t, running)
				assert.Zero(t, h.clock.Pending(), "final-warning timer must be cancelled")
				assert.Equal(t, h.clock.Now(), h.machine.LastInputTime())
			})
		}
	}
}

func TestUpdateStatus_IdleEscalatesToSuspicious(t *testing.T) {
	h := newHarness(t)

	h.update(domain.StatusSample{IdleTimeSeconds: 60})

	assert.Equal(t, domain.StateSuspicious, h.machine.GetState())
	changes := h.notifier.named(domain.EventStateChanged)
	require.Len(t, changes, 1)
	assert.Equal(t, domain.StateChangedEvent{From: domain.StateNormal, To: domain.StateSuspicious}, changes[0])
}

func TestUpdateStatus_AbsenceBoundary(t *testing.T) {
	h := newHarness(t)

	h.update(domain.StatusSample{IdleTimeSeconds: 600})
	assert.Equal(t, domain.StateSuspicious, h.machine.GetState(), "exactly 600s is not absence")

	h.update(domain.StatusSample{IdleTimeSeconds: 600.5})
	assert.Equal(t, domain.StateFinalWarning, h.machine.GetState())
}

func TestUpdateStatus_HugeIdleStaysAbsent(t *testing.T) {
	h := newHarness(t)

	h.update(domain.StatusSample{IdleTimeSeconds: 700})
	require.Equal(t, domain.StateFinalWarning, h.machine.GetState())

	// Far beyond what a time.Duration can hold.
	h.update(domain.StatusSample{IdleTimeSeconds: 1e10})

	assert.Equal(t, domain.StateFinalWarning, h.machine.GetState())
	_, running := h.machine.GetFinalWarningRemainingTime()
	assert.True(t, running)
	assert.Equal(t, 1, h.clock.Pending())
}

func TestUpdateStatus_HugeIdleFromNormalEntersFinalWarning(t *testing.T) {
	h := newHarness(t)

	h.update(domain.StatusSample{IdleTimeSeconds: 1e12})

	assert.Equal(t, domain.StateFinalWarning, h.machine.GetState())
}

func TestUpdateStatus_FinalWarning(t *testing.T) {
	h := newHarness(t)

	h.update(domain.StatusSample{IdleTimeSeconds: 0})
	require.Equal(t, domain.StateNormal, h.machine.GetState())

	h.update(domain.StatusSample{IdleTimeSeconds: 700, WindowTitle: "X"})

	assert.Equal(t, domain.StateFinalWarning, h.machine.GetState())
	remaining, running := h.machine.GetFinalWarningRemainingTime()
	require.True(t, running)
	assert.Equal(t, 5*time.Minute, remaining)

	warnings := h.notifier.named(domain.EventFinalWarning)
	require.Len(t, warnings, 1)
	assert.Equal(t, domain.FinalWarningEvent{
		TimeoutMs: 300_000,
		StartTime: h.clock.Now().UnixMilli(),
	}, warnings[0])

	h.clock.Advance(2 * time.Minute)
	remaining, _ = h.machine.GetFinalWarningRemainingTime()
	assert.Equal(t, 3*time.Minute, remaining)

	// Repeated absence samples do not restart the countdown.
	h.update(domain.StatusSample{IdleTimeSeconds: 820, WindowTitle: "X"})
	assert.Len(t, h.notifier.named(domain.EventFinalWarning), 1)
	assert.Equal(t, 1, h.clock.Pending())
}

func TestFinalWarning_ExpiresIntoPunished(t *testing.T) {
	h := newHarness(t)
	h.update(domain.StatusSample{IdleTimeSeconds: 700, WindowTitle: "X"})

	h.clock.Advance(299 * time.Second)
	assert.Equal(t, domain.StateFinalWarning, h.machine.GetState())

	h.clock.Advance(time.Second)
	assert.Equal(t, domain.StatePunished, h.machine.GetState())
	require.Len(t, h.shame.records, 1)
	assert.Equal(t, "test-session", h.shame.records[0].SessionID)
	assert.Equal(t, "absence", h.shame.records[0].Reason)
	assert.Equal(t, "X", h.shame.records[0].WindowTitle)
	assert.Len(t, h.notifier.named(domain.EventAbsence), 1)

	_, running := h.machine.GetFinalWarningRemainingTime()
	assert.False(t, running)

	// Punished is sticky for absent users.
	h.update(domain.StatusSample{IdleTimeSeconds: 900})
	h.clock.Advance(10 * time.Minute)
	assert.Equal(t, domain.StatePunished, h.machine.GetState())
	assert.Len(t, h.shame.records, 1)
	assert.Len(t, h.notifier.named(domain.EventAbsence), 1)

	// Recent input still resets.
	h.update(domain.StatusSample{IdleTimeSeconds: 1})
	assert.Equal(t, domain.StateNormal, h.machine.GetState())
}

func TestFinalWarning_ShameFailureIsNotFatal(t *testing.T) {
	h := newHarness(t)
	h.shame.err = errors.New("disk full")

	h.update(domain.StatusSample{IdleTimeSeconds: 700})
	h.clock.Advance(5 * time.Minute)

	assert.Equal(t, domain.StatePunished, h.machine.GetState())
	assert.Len(t, h.notifier.named(domain.EventAbsence), 1)
}

func TestCancelFinalWarning(t *testing.T) {
	h := newHarness(t)
	h.update(domain.StatusSample{IdleTimeSeconds: 700})
	require.Equal(t, domain.StateFinalWarning, h.machine.GetState())

	h.machine.CancelFinalWarning()
	assert.Equal(t, domain.StateNormal, h.machine.GetState())
	_, running := h.machine.GetFinalWarningRemainingTime()
	assert.False(t, running)

	events := len(h.notifier.events)
	assert.NotPanics(t, h.machine.CancelFinalWarning)
	assert.Equal(t, domain.StateNormal, h.machine.GetState())
	assert.Len(t, h.notifier.events, events, "second cancel is a no-op")

	h.clock.Advance(10 * time.Minute)
	assert.Equal(t, domain.StateNormal, h.machine.GetState(), "cancelled timer must not punish")
	assert.Empty(t, h.shame.records)
}

func TestCancelFinalWarning_OutsideCountdownKeepsState(t *testing.T) {
	h := newHarness(t)
	h.update(domain.StatusSample{IdleTimeSeconds: 120})

	h.machine.CancelFinalWarning()

	assert.Equal(t, domain.StateSuspicious, h.machine.GetState())
}

func TestUpdateStatus_AudioJudging(t *testing.T) {
	tests := []struct {
		name      string
		verdict   domain.Verdict
		wantState domain.SurveillanceState
	}{
		{name: "study returns to normal", verdict: domain.VerdictStudy, wantState: domain.StateNormal},
		{name: "distraction starts final warning", verdict: domain.VerdictDistraction, wantState: domain.StateFinalWarning},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := newHarness(t)
			judge := &stagedJudge{stage2: tt.verdict}
			h.machine.judge = judge

			h.update(domain.StatusSample{IdleTimeSeconds: 120, AudioPlaying: true, WindowTitle: "Lecture A"})

			assert.Equal(t, tt.wantState, h.machine.GetState())
			assert.Equal(t, 2, judge.calls, "game check plus one AI judgment")

			var path []domain.SurveillanceState
			for _, e := range h.notifier.named(domain.EventStateChanged) {
				path = append(path, e.(domain.StateChangedEvent).To)
			}
			assert.Equal(t, []domain.SurveillanceState{
				domain.StateSuspicious, domain.StateAudioDetected, domain.StateAIJudging, tt.wantState,
			}, path)
		})
	}
}

func TestUpdateStatus_AudioJudgingDebounced(t *testing.T) {
	h := newHarness(t)
	judge := &stagedJudge{stage2: domain.VerdictStudy}
	h.machine.judge = judge
	sample := domain.StatusSample{IdleTimeSeconds: 120, AudioPlaying: true, WindowTitle: "Lecture A"}

	h.update(sample)
	require.Equal(t, 2, judge.calls)

	h.clock.Advance(10 * time.Second)
	h.update(sample)
	assert.Equal(t, 3, judge.calls, "only the game check runs inside the debounce window")
	assert.Equal(t, domain.StateAudioDetected, h.machine.GetState())

	h.clock.Advance(20 * time.Second)
	h.update(sample)
	assert.Equal(t, 5, judge.calls, "re-judged once the interval elapsed")
	assert.Equal(t, domain.StateNormal, h.machine.GetState())
}

func TestUpdateStatus_AudioWithBlankTitleSkipsJudging(t *testing.T) {
	h := newHarness(t)

	h.update(domain.StatusSample{IdleTimeSeconds: 120, AudioPlaying: true, WindowTitle: "   "})

	assert.Equal(t, domain.StateAudioDetected, h.machine.GetState())
}

func TestUpdateStatus_AudioBlocksAbsenceEscalation(t *testing.T) {
	h := newHarness(t)

	h.update(domain.StatusSample{IdleTimeSeconds: 900, AudioPlaying: true})

	assert.Equal(t, domain.StateAudioDetected, h.machine.GetState())
	assert.Zero(t, h.clock.Pending())
}

func TestUpdateStatus_GameKillConfirmed(t *testing.T) {
	h := newHarness(t)
	h.judge.set("League of Legends", "LeagueClient", domain.VerdictDistraction)

	h.update(domain.StatusSample{
		IdleTimeSeconds: 0,
		WindowTitle:     "League of Legends",
		ProcessName:     "LeagueClient",
		PID:             4242,
	})

	require.Len(t, h.prompter.prompts, 1)
	assert.Equal(t, domain.KillConfirmation{
		WindowTitle: "League of Legends", ProcessName: "LeagueClient", PID: 4242,
	}, h.prompter.prompts[0])
	assert.Equal(t, []int{4242}, h.terminator.terminated)
	assert.Len(t, h.notifier.named(domain.EventGameDetected), 1)
	assert.Len(t, h.notifier.named(domain.EventProcessTerminated), 1)
	assert.Equal(t, domain.StateNormal, h.machine.GetState(), "game samples skip the rest of processing")
}

func TestUpdateStatus_GameKillIgnored(t *testing.T) {
	h := newHarness(t)
	h.prompter.action = domain.ActionIgnore
	h.judge.set("Dota 2", "dota2", domain.VerdictDistraction)
	sample := domain.StatusSample{WindowTitle: "Dota 2", ProcessName: "dota2", PID: 7}

	h.update(sample)
	h.update(sample)

	assert.Len(t, h.prompter.prompts, 1, "ignored process is not prompted again")
	assert.Empty(t, h.terminator.terminated)
	assert.Empty(t, h.notifier.named(domain.EventProcessTerminated))
}

func TestUpdateStatus_IgnoreWithoutPIDIsPerTitle(t *testing.T) {
	h := newHarness(t)
	h.prompter.action = domain.ActionIgnore
	h.judge.set("Reddit", "", domain.VerdictDistraction)
	h.judge.set("YouTube - gaming", "", domain.VerdictDistraction)

	h.update(domain.StatusSample{WindowTitle: "Reddit"})
	h.update(domain.StatusSample{WindowTitle: "Reddit"})
	require.Len(t, h.prompter.prompts, 1)

	h.update(domain.StatusSample{WindowTitle: "YouTube - gaming"})

	require.Len(t, h.prompter.prompts, 2, "a different title is still checked")
	assert.Equal(t, "YouTube - gaming", h.prompter.prompts[1].WindowTitle)
}

func TestUpdateStatus_IgnoreWithPIDCoversTitleChanges(t *testing.T) {
	h := newHarness(t)
	h.prompter.action = domain.ActionIgnore
	h.judge.set("Dota 2", "dota2", domain.VerdictDistraction)
	h.judge.set("Dota 2 - Lobby", "dota2", domain.VerdictDistraction)

	h.update(domain.StatusSample{WindowTitle: "Dota 2", ProcessName: "dota2", PID: 7})
	h.update(domain.StatusSample{WindowTitle: "Dota 2 - Lobby", ProcessName: "dota2", PID: 7})

	assert.Len(t, h.prompter.prompts, 1)
}

func TestUpdateStatus_GamePromptUnsupportedTerminates(t *testing.T) {
	h := newHarness(t)
	h.prompter.err = domain.ErrPromptUnsupported
	h.judge.set("", "steam", domain.VerdictDistraction)

	h.update(domain.StatusSample{ProcessName: "steam", PID: 99})

	assert.Equal(t, []int{99}, h.terminator.terminated)
}

func TestUpdateStatus_GamePromptTimeoutIgnores(t *testing.T) {
	h := newHarness(t)
	h.prompter.err = context.DeadlineExceeded
	h.judge.set("", "steam", domain.VerdictDistraction)

	h.update(domain.StatusSample{ProcessName: "steam", PID: 99})

	assert.Empty(t, h.terminator.terminated)
}

func TestUpdateStatus_NilPrompterTerminates(t *testing.T) {
	h := newHarness(t)
	h.machine.prompter = nil
	h.judge.set("", "steam", domain.VerdictDistraction)

	h.update(domain.StatusSample{ProcessName: "steam", PID: 5})

	assert.Equal(t, []int{5}, h.terminator.terminated)
}

func TestUpdateStatus_TerminationFailureNotSurfaced(t *testing.T) {
	h := newHarness(t)
	h.terminator.err = domain.ErrProcessNotFound
	h.judge.set("", "steam", domain.VerdictDistraction)

	assert.NotPanics(t, func() {
		h.update(domain.StatusSample{ProcessName: "steam", PID: 5})
	})
	assert.Empty(t, h.notifier.named(domain.EventProcessTerminated))
}

func TestUpdateStatus_NoSignalSkipsJudge(t *testing.T) {
	h := newHarness(t)

	h.update(domain.StatusSample{IdleTimeSeconds: 5})

	assert.Zero(t, h.judge.callCount())
}

func TestFinalWarning_JudgingDistractionRestartsCountdown(t *testing.T) {
	h := newHarness(t)
	judge := &stagedJudge{stage2: domain.VerdictDistraction}
	h.machine.judge = judge

	h.update(domain.StatusSample{IdleTimeSeconds: 700})
	require.Equal(t, domain.StateFinalWarning, h.machine.GetState())
	h.clock.Advance(4 * time.Minute)

	h.update(domain.StatusSample{IdleTimeSeconds: 940, AudioPlaying: true, WindowTitle: "Stream"})

	assert.Equal(t, domain.StateFinalWarning, h.machine.GetState())
	assert.Equal(t, 1, h.clock.Pending(), "only one outstanding countdown")
	remaining, _ := h.machine.GetFinalWarningRemainingTime()
	assert.Equal(t, 5*time.Minute, remaining)

	h.clock.Advance(time.Minute)
	assert.Equal(t, domain.StateFinalWarning, h.machine.GetState(), "old timer was replaced")
}

// stagedJudge answers STUDY on odd calls and stage2 on even ones. With audio
// samples the game check and the AI judgment alternate, so stage2 is what the
// AI-judging stage sees.
type stagedJudge struct {
	stage2 domain.Verdict
	calls  int
}

func (s *stagedJudge) Judge(ctx context.Context, title, process string) domain.Verdict {
	s.calls++
	if s.calls%2 == 0 {
		return s.stage2
	}
	return domain.VerdictStudy
}
