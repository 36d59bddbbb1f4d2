package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/eliteGoblin/focusd/study_mon/internal/config"
	"github.com/eliteGoblin/focusd/study_mon/internal/daemon"
	"github.com/eliteGoblin/focusd/study_mon/internal/domain"
	"github.com/eliteGoblin/focusd/study_mon/internal/infra"
	"github.com/eliteGoblin/focusd/study_mon/internal/policy"
	"github.com/eliteGoblin/focusd/study_mon/internal/usecase"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Monitor a study session",
	Long: `Reads status samples from the configured probe and drives the
surveillance state machine until the probe ends or the process is signalled.

UI events are written to stdout as JSON lines. Send SIGUSR1, or a
{"command":"cancel-final-warning"} line on the probe stream, to cancel a
running final warning.`,
	RunE: runRun,
}

var _ usecase.Metrics = (*infra.PromMetrics)(nil)

func runRun(cmd *cobra.Command, args []string) error {
	logger := createLogger()
	defer func() { _ = logger.Sync() }()

	paths := cfg.Paths()
	clock := infra.NewRealClock()
	metrics := infra.NewPromMetrics()

	judge, err := buildJudge(logger, clock, metrics)
	if err != nil {
		return err
	}

	terminator, err := buildTerminator(logger)
	if err != nil {
		return err
	}

	shame, closeShame, err := buildShameRecorder(logger)
	if err != nil {
		return err
	}
	defer closeShame()

	probe, err := buildProbe(logger)
	if err != nil {
		return err
	}

	machine := usecase.NewSurveillanceMachine(
		usecase.SurveillanceConfig{
			Thresholds:    cfg.Thresholds(),
			PromptTimeout: cfg.Prompt.Timeout,
			SessionID:     uuid.NewString(),
			Metrics:       metrics,
		},
		judge,
		terminator,
		infra.NewJSONLineNotifier(os.Stdout, logger),
		buildPrompter(),
		shame,
		clock,
		logger,
	)

	monitor := daemon.NewMonitor(
		daemon.MonitorConfig{SnapshotInterval: cfg.Snapshot.Interval, AppVersion: Version},
		machine,
		probe,
		infra.NewFileSessionRegistry(paths.SessionPath),
		clock,
		logger,
	)

	logger.Info("studymon starting",
		zap.String("version", Version),
		zap.String("session_id", machine.SessionID()),
		zap.String("data_dir", cfg.DataDir),
		zap.String("oracle", cfg.Oracle.Provider),
		zap.String("probe", cfg.Probe.Source),
		zap.String("terminator", terminator.Name()))

	// Set up graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		// Probe exhaustion ends the session, which must also stop the metrics server
		defer stop()
		if err := monitor.Run(gctx); err != nil && !errors.Is(err, context.Canceled) {
			return err
		}
		return nil
	})

	g.Go(func() error {
		watchCancelSignal(gctx, machine.CancelFinalWarning, logger)
		return nil
	})

	if cfg.Metrics.Addr != "" {
		mux := http.NewServeMux()
		mux.Handle("/metrics", metrics.Handler())
		server := &http.Server{Addr: cfg.Metrics.Addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}

		g.Go(func() error {
			logger.Info("metrics endpoint listening", zap.String("addr", cfg.Metrics.Addr))
			if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("metrics server: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-gctx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})
	}

	err = g.Wait()
	logger.Info("studymon stopped", zap.String("final_state", string(machine.GetState())), zap.Error(err))
	return err
}

func buildOracle(logger *zap.Logger) (domain.Oracle, error) {
	switch cfg.Oracle.Provider {
	case config.ProviderHTTP:
		return infra.NewHTTPOracle(cfg.Oracle.Endpoint, logger), nil
	case config.ProviderAnthropic:
		return infra.NewAnthropicOracle(os.Getenv(cfg.Oracle.APIKeyEnv), cfg.Oracle.Model, logger)
	case config.ProviderCatalog:
		return policy.NewCatalogOracle(policy.NewRegistry()), nil
	default:
		return nil, fmt.Errorf("unknown oracle provider %q", cfg.Oracle.Provider)
	}
}

func buildJudge(logger *zap.Logger, clock domain.Clock, metrics usecase.Metrics) (*usecase.JudgeClient, error) {
	oracle, err := buildOracle(logger)
	if err != nil {
		return nil, err
	}
	limiter := rate.NewLimiter(rate.Limit(cfg.Oracle.RatePerMinute/60), cfg.Oracle.Burst)

	return usecase.NewJudgeClient(
		infra.NewFileJudgeCache(cfg.Cache.Path, cfg.Cache.TTL, logger),
		oracle,
		clock,
		logger,
		usecase.WithRateLimiter(limiter),
		usecase.WithOracleTimeout(cfg.Oracle.Timeout),
		usecase.WithJudgeMetrics(metrics),
	), nil
}

func buildTerminator(logger *zap.Logger) (*infra.ProcessTerminator, error) {
	return infra.NewProcessTerminator(runtime.GOOS, infra.NewProcessManager(), &infra.RealCommandRunner{}, logger)
}

func buildShameRecorder(logger *zap.Logger) (domain.ShameRecorder, func(), error) {
	if !cfg.EncryptShame() {
		return infra.NewLogShameRecorder(logger), func() {}, nil
	}

	store, err := openShameStore(true)
	if err != nil {
		return nil, nil, err
	}
	return store, func() { _ = store.Close() }, nil
}

// openShameStore opens the encrypted store, creating its key only when create is set.
func openShameStore(create bool) (*infra.EncryptedShameStore, error) {
	dir := cfg.Paths().ShameDBDir
	provider := infra.NewFileKeyProvider(dir)

	var key []byte
	var err error
	if create {
		key, err = infra.EnsureKey(provider)
	} else {
		key, err = provider.GetKey()
	}
	if err != nil {
		return nil, fmt.Errorf("shame store key: %w", err)
	}
	return infra.NewEncryptedShameStore(dir, key)
}

func buildProbe(logger *zap.Logger) (domain.StatusProbe, error) {
	switch cfg.Probe.Source {
	case config.ProbeStdin:
		return infra.NewStreamProbe(os.Stdin, logger), nil
	case config.ProbeCommand:
		return infra.NewCommandProbe(cfg.Probe.Command, logger)
	case config.ProbeFile:
		return infra.NewFileProbe(cfg.Probe.File, logger), nil
	default:
		return nil, fmt.Errorf("unknown probe source %q", cfg.Probe.Source)
	}
}

// buildPrompter asks on the terminal. When stdin carries the probe stream
// the answer is read from the controlling terminal instead.
func buildPrompter() domain.Prompter {
	if cfg.Prompt.Mode == config.PromptNone {
		return infra.NoPrompter{}
	}

	var in io.Reader = os.Stdin
	if cfg.Probe.Source == config.ProbeStdin {
		tty, err := os.Open("/dev/tty")
		if err != nil {
			return infra.NoPrompter{}
		}
		in = tty
	}
	return infra.NewConsolePrompter(in, os.Stderr, cfg.Prompt.Timeout)
}
