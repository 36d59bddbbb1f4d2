// Package daemon implements the long-running surveillance monitor.
package daemon

import (
	"context"
	"os"
	"time"

	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/study_mon/internal/domain"
)

// Machine is the part of the surveillance state machine the monitor drives.
type Machine interface {
	SessionID() string
	GetState() domain.SurveillanceState
	GetFinalWarningRemainingTime() (time.Duration, bool)
	LastSampleTime() time.Time
	UpdateStatus(ctx context.Context, sample domain.StatusSample)
	CancelFinalWarning()
}

// MonitorConfig holds monitor configuration.
type MonitorConfig struct {
	SnapshotInterval time.Duration // How often to publish the session snapshot
	AppVersion       string
}

// DefaultMonitorConfig returns default monitor configuration.
func DefaultMonitorConfig() MonitorConfig {
	return MonitorConfig{
		SnapshotInterval: 2 * time.Second,
	}
}

// Monitor feeds probe samples into the state machine one at a time and
// publishes the session snapshot for `studymon status`.
type Monitor struct {
	config   MonitorConfig
	machine  Machine
	probe    domain.StatusProbe
	registry domain.SessionRegistry
	clock    domain.Clock
	logger   *zap.Logger
}

// NewMonitor creates a monitor. registry may be nil to skip snapshots.
func NewMonitor(
	config MonitorConfig,
	machine Machine,
	probe domain.StatusProbe,
	registry domain.SessionRegistry,
	clock domain.Clock,
	logger *zap.Logger,
) *Monitor {
	if config.SnapshotInterval <= 0 {
		config.SnapshotInterval = DefaultMonitorConfig().SnapshotInterval
	}
	return &Monitor{
		config:   config,
		machine:  machine,
		probe:    probe,
		registry: registry,
		clock:    clock,
		logger:   logger,
	}
}

// Run blocks until ctx is cancelled or the probe is exhausted.
// Samples are processed strictly in arrival order; UpdateStatus is never
// called concurrently.
func (m *Monitor) Run(ctx context.Context) error {
	messages, err := m.probe.Messages(ctx)
	if err != nil {
		return err
	}

	m.logger.Info("monitor started",
		zap.String("session_id", m.machine.SessionID()),
		zap.Int("pid", os.Getpid()))

	m.publish()
	defer m.clear()

	ticker := time.NewTicker(m.config.SnapshotInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			m.logger.Info("monitor stopping", zap.String("state", string(m.machine.GetState())))
			return ctx.Err()

		case msg, ok := <-messages:
			if !ok {
				m.logger.Info("probe exhausted, monitor stopping",
					zap.String("state", string(m.machine.GetState())))
				return nil
			}
			m.handle(ctx, msg)

		case <-ticker.C:
			m.publish()
		}
	}
}

func (m *Monitor) handle(ctx context.Context, msg domain.ProbeMessage) {
	before := m.machine.GetState()

	switch {
	case msg.Command == domain.CommandCancelFinalWarning:
		m.logger.Info("final warning cancelled by user")
		m.machine.CancelFinalWarning()
	case msg.Sample != nil:
		m.machine.UpdateStatus(ctx, *msg.Sample)
	default:
		return
	}

	if m.machine.GetState() != before {
		m.publish()
	}
}

// Snapshot captures the machine's current view.
func (m *Monitor) Snapshot() domain.SessionSnapshot {
	now := m.clock.Now()
	snapshot := domain.SessionSnapshot{
		SessionID:     m.machine.SessionID(),
		PID:           os.Getpid(),
		State:         m.machine.GetState(),
		LastHeartbeat: now.Unix(),
		AppVersion:    m.config.AppVersion,
	}
	if remaining, ok := m.machine.GetFinalWarningRemainingTime(); ok {
		ms := remaining.Milliseconds()
		snapshot.FinalWarningRemainingMs = &ms
	}
	if last := m.machine.LastSampleTime(); !last.IsZero() {
		snapshot.LastSampleAt = last.UnixMilli()
	}
	return snapshot
}

func (m *Monitor) publish() {
	if m.registry == nil {
		return
	}
	if err := m.registry.Publish(m.Snapshot()); err != nil {
		m.logger.Warn("failed to publish session snapshot", zap.Error(err))
	}
}

func (m *Monitor) clear() {
	if m.registry == nil {
		return
	}
	if err := m.registry.Clear(); err != nil {
		m.logger.Warn("failed to clear session snapshot", zap.Error(err))
	}
}
