//go:build integration

package integration

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"sync"

	"github.com/eliteGoblin/focusd/study_mon/internal/domain"
)

type eventLine struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

// eventNames decodes the notifier output into event names in order.
func eventNames(buf *bytes.Buffer) []string {
	var names []string
	scanner := bufio.NewScanner(bytes.NewReader(buf.Bytes()))
	for scanner.Scan() {
		var line eventLine
		if err := json.Unmarshal(scanner.Bytes(), &line); err != nil {
			continue
		}
		names = append(names, line.Event)
	}
	return names
}

func countEvents(buf *bytes.Buffer, name string) int {
	n := 0
	for _, e := range eventNames(buf) {
		if e == name {
			n++
		}
	}
	return n
}

type recordingTerminator struct {
	mu   sync.Mutex
	pids []int
}

func (t *recordingTerminator) Name() string { return "recording" }

func (t *recordingTerminator) Terminate(_ context.Context, pid int) domain.TerminationResult {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.pids = append(t.pids, pid)
	return domain.TerminationResult{PID: pid, Graceful: true}
}

func (t *recordingTerminator) PIDs() []int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]int(nil), t.pids...)
}
