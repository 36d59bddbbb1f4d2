//go:build integration

package integration

import (
	"bytes"
	"context"
	"crypto/rand"
	"path/filepath"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/study_mon/internal/domain"
	"github.com/eliteGoblin/focusd/study_mon/internal/infra"
	"github.com/eliteGoblin/focusd/study_mon/internal/usecase"
	"github.com/eliteGoblin/focusd/study_mon/test/fixtures"
)

var _ = Describe("Study session", func() {
	var (
		ctx        context.Context
		dataDir    string
		clock      *fixtures.FakeClock
		oracle     *fixtures.OracleServer
		cache      *infra.FileJudgeCache
		events     *bytes.Buffer
		shame      *infra.EncryptedShameStore
		terminator *recordingTerminator
		prompter   *fixtures.ScriptedPrompter
		machine    *usecase.SurveillanceMachine
	)

	newMachine := func() *usecase.SurveillanceMachine {
		logger := zap.NewNop()
		judge := usecase.NewJudgeClient(cache, infra.NewHTTPOracle(oracle.URL, logger), clock, logger)
		config := usecase.DefaultSurveillanceConfig()
		config.SessionID = "integration-session"
		return usecase.NewSurveillanceMachine(
			config,
			judge,
			terminator,
			infra.NewJSONLineNotifier(events, logger),
			prompter,
			shame,
			clock,
			logger,
		)
	}

	BeforeEach(func() {
		ctx = context.Background()
		dataDir = GinkgoT().TempDir()
		clock = fixtures.NewFakeClock(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
		oracle = fixtures.NewOracleServer("Dota 2", "LeagueClient", "Reddit - funny")
		DeferCleanup(oracle.Close)

		cache = infra.NewFileJudgeCache(filepath.Join(dataDir, "judge_cache.json"), domain.JudgeCacheTTL, zap.NewNop())
		events = &bytes.Buffer{}

		key := make([]byte, 32)
		_, err := rand.Read(key)
		Expect(err).NotTo(HaveOccurred())
		shame, err = infra.NewEncryptedShameStore(dataDir, key)
		Expect(err).NotTo(HaveOccurred())
		DeferCleanup(shame.Close)

		terminator = &recordingTerminator{}
		prompter = fixtures.NewScriptedPrompter()
		machine = newMachine()
	})

	Context("when the student walks away", func() {
		BeforeEach(func() {
			machine.UpdateStatus(ctx, domain.StatusSample{IdleTimeSeconds: 0})
			Expect(machine.GetState()).To(Equal(domain.StateNormal))

			machine.UpdateStatus(ctx, domain.StatusSample{IdleTimeSeconds: 700, WindowTitle: "X"})
		})

		It("starts the five minute final warning", func() {
			Expect(machine.GetState()).To(Equal(domain.StateFinalWarning))
			remaining, ok := machine.GetFinalWarningRemainingTime()
			Expect(ok).To(BeTrue())
			Expect(remaining).To(Equal(5 * time.Minute))
			Expect(eventNames(events)).To(ContainElement(domain.EventFinalWarning))
		})

		It("punishes once the countdown expires", func() {
			clock.Advance(5 * time.Minute)

			Expect(machine.GetState()).To(Equal(domain.StatePunished))
			Expect(countEvents(events, domain.EventAbsence)).To(Equal(1))

			records, err := shame.List(ctx, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(HaveLen(1))
			Expect(records[0].SessionID).To(Equal("integration-session"))
			Expect(records[0].Reason).To(Equal("absence"))

			clock.Advance(10 * time.Minute)
			Expect(countEvents(events, domain.EventAbsence)).To(Equal(1))
		})

		It("does not punish when the student comes back in time", func() {
			clock.Advance(4 * time.Minute)
			machine.UpdateStatus(ctx, domain.StatusSample{IdleTimeSeconds: 1, WindowTitle: "X"})
			clock.Advance(5 * time.Minute)

			Expect(machine.GetState()).To(Equal(domain.StateNormal))
			Expect(countEvents(events, domain.EventAbsence)).To(BeZero())
		})

		It("does not punish after the warning is cancelled", func() {
			machine.CancelFinalWarning()
			machine.CancelFinalWarning()
			clock.Advance(10 * time.Minute)

			Expect(machine.GetState()).To(Equal(domain.StateNormal))
			records, err := shame.List(ctx, 10)
			Expect(err).NotTo(HaveOccurred())
			Expect(records).To(BeEmpty())
		})
	})

	Context("when audio is playing with no input", func() {
		It("judges a study video once and returns to normal", func() {
			sample := domain.StatusSample{IdleTimeSeconds: 700, AudioPlaying: true, WindowTitle: "Lecture A"}
			machine.UpdateStatus(ctx, sample)
			Expect(machine.GetState()).To(Equal(domain.StateNormal))

			clock.Advance(10 * time.Second)
			machine.UpdateStatus(ctx, sample)

			Expect(oracle.RequestsFor("Lecture A")).To(Equal(1))
			Expect(eventNames(events)).To(ContainElement(domain.EventStateChanged))
		})

		It("starts the final warning for a distraction the user chose to keep", func() {
			sample := domain.StatusSample{IdleTimeSeconds: 700, AudioPlaying: true, WindowTitle: "Reddit - funny"}
			machine.UpdateStatus(ctx, sample)
			Expect(eventNames(events)).To(ContainElement(domain.EventGameDetected))
			Expect(prompter.Asked()).To(HaveLen(1))

			clock.Advance(time.Second)
			machine.UpdateStatus(ctx, sample)

			Expect(machine.GetState()).To(Equal(domain.StateFinalWarning))
			Expect(oracle.RequestsFor("Reddit - funny")).To(Equal(1))
			Expect(prompter.Asked()).To(HaveLen(1))
		})

		It("reuses the persisted verdict across restarts", func() {
			sample := domain.StatusSample{IdleTimeSeconds: 700, AudioPlaying: true, WindowTitle: "Lecture B"}
			machine.UpdateStatus(ctx, sample)
			Expect(oracle.RequestsFor("Lecture B")).To(Equal(1))

			cache = infra.NewFileJudgeCache(filepath.Join(dataDir, "judge_cache.json"), domain.JudgeCacheTTL, zap.NewNop())
			restarted := newMachine()
			restarted.UpdateStatus(ctx, sample)

			Expect(oracle.RequestsFor("Lecture B")).To(Equal(1))
			Expect(restarted.GetState()).To(Equal(domain.StateNormal))
		})

		It("fails open when the oracle is down", func() {
			oracle.SetFailing(true)
			machine.UpdateStatus(ctx, domain.StatusSample{IdleTimeSeconds: 700, AudioPlaying: true, WindowTitle: "Dota 2"})

			Expect(machine.GetState()).To(Equal(domain.StateNormal))
			entry := cache.Get("Dota 2", "", clock.Now())
			Expect(entry).NotTo(BeNil())
			Expect(entry.Verdict).To(Equal(domain.VerdictStudy))
		})
	})

	Context("when a game is in the foreground", func() {
		sample := domain.StatusSample{IdleTimeSeconds: 5, WindowTitle: "League of Legends", ProcessName: "LeagueClient", PID: 4242}

		It("terminates the game when the user confirms", func() {
			prompter = fixtures.NewScriptedPrompter(domain.ActionTerminate)
			machine = newMachine()

			machine.UpdateStatus(ctx, sample)

			Expect(terminator.PIDs()).To(Equal([]int{4242}))
			Expect(prompter.Asked()).To(HaveLen(1))
			Expect(prompter.Asked()[0].ProcessName).To(Equal("LeagueClient"))
			Expect(eventNames(events)).To(Equal([]string{domain.EventGameDetected, domain.EventProcessTerminated}))
		})

		It("stops asking about a process the user ignored", func() {
			prompter = fixtures.NewScriptedPrompter(domain.ActionIgnore)
			machine = newMachine()

			machine.UpdateStatus(ctx, sample)
			machine.UpdateStatus(ctx, sample)

			Expect(terminator.PIDs()).To(BeEmpty())
			Expect(prompter.Asked()).To(HaveLen(1))
			Expect(machine.GetState()).To(Equal(domain.StateNormal))
		})

		It("terminates without asking when no prompt is available", func() {
			prompter.Err = domain.ErrPromptUnsupported

			machine.UpdateStatus(ctx, sample)

			Expect(terminator.PIDs()).To(Equal([]int{4242}))
		})
	})
})
