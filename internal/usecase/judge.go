// Package usecase contains application business logic.
package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/eliteGoblin/focusd/study_mon/internal/domain"
)

// JudgeClient classifies window/process pairs through the cache and the oracle.
// Every failure resolves to STUDY so infrastructure trouble never punishes.
type JudgeClient struct {
	cache   domain.JudgeCache
	oracle  domain.Oracle
	clock   domain.Clock
	limiter *rate.Limiter
	timeout time.Duration
	metrics Metrics
	logger  *zap.Logger
}

// JudgeOption customizes a JudgeClient.
type JudgeOption func(*JudgeClient)

// WithRateLimiter bounds how often the oracle may be called.
func WithRateLimiter(l *rate.Limiter) JudgeOption {
	return func(j *JudgeClient) { j.limiter = l }
}

// WithOracleTimeout overrides the per-call oracle timeout.
func WithOracleTimeout(d time.Duration) JudgeOption {
	return func(j *JudgeClient) { j.timeout = d }
}

// WithJudgeMetrics attaches a metrics sink.
func WithJudgeMetrics(m Metrics) JudgeOption {
	return func(j *JudgeClient) {
		if m != nil {
			j.metrics = m
		}
	}
}

// NewJudgeClient creates a judge backed by cache and oracle.
func NewJudgeClient(
	cache domain.JudgeCache,
	oracle domain.Oracle,
	clock domain.Clock,
	logger *zap.Logger,
	opts ...JudgeOption,
) *JudgeClient {
	j := &JudgeClient{
		cache:   cache,
		oracle:  oracle,
		clock:   clock,
		timeout: domain.OracleTimeout,
		metrics: nopMetrics{},
		logger:  logger,
	}
	for _, opt := range opts {
		opt(j)
	}
	return j
}

// Judge returns the verdict for the pair.
func (j *JudgeClient) Judge(ctx context.Context, windowTitle, processName string) domain.Verdict {
	if windowTitle == "" && processName == "" {
		return domain.VerdictStudy
	}

	if entry := j.cache.Get(windowTitle, processName, j.clock.Now()); entry != nil {
		j.metrics.CacheHit()
		j.logger.Debug("judge cache hit",
			zap.String("window_title", windowTitle),
			zap.String("process_name", processName),
			zap.String("verdict", string(entry.Verdict)))
		return entry.Verdict
	}
	j.metrics.CacheMiss()

	if j.limiter != nil && !j.limiter.Allow() {
		j.metrics.OracleCall(OutcomeRateLimited)
		j.logger.Warn("oracle rate limited, assuming study",
			zap.String("window_title", windowTitle))
		return domain.VerdictStudy
	}

	verdict := j.ask(ctx, windowTitle, processName)

	j.cache.Put(windowTitle, processName, domain.JudgeCacheEntry{
		Verdict:   verdict,
		Timestamp: j.clock.Now().UnixMilli(),
	})
	return verdict
}

// ask calls the oracle and coerces the answer.
func (j *JudgeClient) ask(ctx context.Context, windowTitle, processName string) domain.Verdict {
	callCtx, cancel := context.WithTimeout(ctx, j.timeout)
	defer cancel()

	start := time.Now()
	raw, err := j.oracle.Classify(callCtx, domain.OracleRequest{
		WindowTitle: windowTitle,
		ProcessName: processName,
	})
	if err != nil {
		j.metrics.OracleCall(OutcomeError)
		j.logger.Warn("oracle call failed, assuming study",
			zap.String("oracle", j.oracle.Name()),
			zap.String("window_title", windowTitle),
			zap.String("process_name", processName),
			zap.Duration("elapsed", time.Since(start)),
			zap.Error(err))
		return domain.VerdictStudy
	}

	verdict, err := domain.ParseVerdict(raw)
	if err != nil {
		j.metrics.OracleCall(OutcomeInvalid)
		j.logger.Warn("oracle returned unknown verdict, assuming study",
			zap.String("oracle", j.oracle.Name()),
			zap.String("raw", raw))
		return domain.VerdictStudy
	}

	j.metrics.OracleCall(OutcomeOK)
	j.logger.Info("oracle verdict",
		zap.String("oracle", j.oracle.Name()),
		zap.String("window_title", windowTitle),
		zap.String("process_name", processName),
		zap.String("verdict", string(verdict)),
		zap.Duration("elapsed", time.Since(start)))
	return verdict
}

// Ensure JudgeClient implements domain.Judge.
var _ domain.Judge = (*JudgeClient)(nil)
