//go:build integration

package integration

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/study_mon/internal/daemon"
	"github.com/eliteGoblin/focusd/study_mon/internal/domain"
	"github.com/eliteGoblin/focusd/study_mon/internal/infra"
	"github.com/eliteGoblin/focusd/study_mon/internal/usecase"
	"github.com/eliteGoblin/focusd/study_mon/test/fixtures"
)

var _ = Describe("Monitor over a probe stream", func() {
	var (
		dataDir  string
		clock    *fixtures.FakeClock
		oracle   *fixtures.OracleServer
		events   *bytes.Buffer
		registry *infra.FileSessionRegistry
		machine  *usecase.SurveillanceMachine
	)

	BeforeEach(func() {
		dataDir = GinkgoT().TempDir()
		clock = fixtures.NewFakeClock(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
		oracle = fixtures.NewOracleServer()
		DeferCleanup(oracle.Close)
		events = &bytes.Buffer{}
		registry = infra.NewFileSessionRegistry(filepath.Join(dataDir, infra.SessionFileName))

		logger := zap.NewNop()
		cache := infra.NewFileJudgeCache(filepath.Join(dataDir, "judge_cache.json"), domain.JudgeCacheTTL, logger)
		judge := usecase.NewJudgeClient(cache, infra.NewHTTPOracle(oracle.URL, logger), clock, logger)
		config := usecase.DefaultSurveillanceConfig()
		machine = usecase.NewSurveillanceMachine(config, judge, &recordingTerminator{},
			infra.NewJSONLineNotifier(events, logger), nil, infra.NewLogShameRecorder(logger), clock, logger)
	})

	run := func(input string) error {
		probe := infra.NewStreamProbe(strings.NewReader(input), zap.NewNop())
		monitor := daemon.NewMonitor(daemon.DefaultMonitorConfig(), machine, probe, registry, clock, zap.NewNop())
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		return monitor.Run(ctx)
	}

	It("escalates on absence and stops at end of stream", func() {
		err := run(strings.Join([]string{
			`{"idleTimeSeconds":0}`,
			`not json`,
			`{"idleTimeSeconds":700,"windowTitle":"X","audioPlaying":false}`,
		}, "\n"))

		Expect(err).NotTo(HaveOccurred())
		Expect(machine.GetState()).To(Equal(domain.StateFinalWarning))
		Expect(eventNames(events)).To(ContainElement(domain.EventFinalWarning))
		Expect(oracle.RequestsFor("X")).To(Equal(1))
	})

	It("cancels the final warning on command", func() {
		err := run(strings.Join([]string{
			`{"idleTimeSeconds":700,"windowTitle":"X"}`,
			`{"command":"cancel-final-warning"}`,
		}, "\n"))

		Expect(err).NotTo(HaveOccurred())
		Expect(machine.GetState()).To(Equal(domain.StateNormal))
		_, running := machine.GetFinalWarningRemainingTime()
		Expect(running).To(BeFalse())
	})

	It("removes the session file on exit", func() {
		Expect(run(`{"idleTimeSeconds":0}`)).To(Succeed())

		_, err := os.Stat(registry.Path())
		Expect(os.IsNotExist(err)).To(BeTrue())
	})
})
