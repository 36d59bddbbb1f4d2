package infra

import (
	"context"
	"strings"
	"sync"

	"github.com/eliteGoblin/focusd/study_mon/internal/domain"
)

// mockProcessManager is a test double for ProcessManager
type mockProcessManager struct {
	mu          sync.Mutex
	runningPIDs map[int]bool
	names       map[int]string
	// ignoreTerm keeps the process alive after SIGTERM
	ignoreTerm bool
	termErr    error
	killErr    error
	terminated []int
	killedPIDs []int
}

func newMockProcessManager() *mockProcessManager {
	return &mockProcessManager{
		runningPIDs: make(map[int]bool),
		names:       make(map[int]string),
	}
}

func (m *mockProcessManager) FindByName(pattern string) ([]int, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var found []int
	for pid, name := range m.names {
		if strings.Contains(strings.ToLower(name), strings.ToLower(pattern)) {
			found = append(found, pid)
		}
	}
	return found, nil
}

func (m *mockProcessManager) Name(pid int) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	name, ok := m.names[pid]
	if !ok {
		return "", domain.ErrProcessNotFound
	}
	return name, nil
}

func (m *mockProcessManager) Terminate(pid int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.terminated = append(m.terminated, pid)
	if m.termErr != nil {
		return m.termErr
	}
	if !m.ignoreTerm {
		delete(m.runningPIDs, pid)
	}
	return nil
}

func (m *mockProcessManager) Kill(pid int) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.killedPIDs = append(m.killedPIDs, pid)
	if m.killErr != nil {
		return m.killErr
	}
	delete(m.runningPIDs, pid)
	return nil
}

func (m *mockProcessManager) IsRunning(pid int) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.runningPIDs[pid]
}

func (m *mockProcessManager) SetRunning(pid int, name string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.runningPIDs[pid] = true
	m.names[pid] = name
}

// mockCommandRunner records commands instead of executing them
type mockCommandRunner struct {
	mu       sync.Mutex
	commands [][]string
	onRun    func(args []string) error
	output   []byte
}

func (m *mockCommandRunner) Run(_ context.Context, name string, args ...string) error {
	m.mu.Lock()
	cmd := append([]string{name}, args...)
	m.commands = append(m.commands, cmd)
	onRun := m.onRun
	m.mu.Unlock()
	if onRun != nil {
		return onRun(cmd)
	}
	return nil
}

func (m *mockCommandRunner) Output(_ context.Context, name string, args ...string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.commands = append(m.commands, append([]string{name}, args...))
	return m.output, nil
}
