package infra

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/exec"
	"path/filepath"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/eliteGoblin/focusd/study_mon/internal/domain"
)

const (
	maxProbeLine      = 1 << 20
	fileProbeDebounce = 50 * time.Millisecond
)

// probeWire is the on-the-wire shape of one probe message.
type probeWire struct {
	Command         domain.ProbeCommand `json:"command"`
	IdleTimeSeconds *float64            `json:"idleTimeSeconds"`
	WindowTitle     string              `json:"windowTitle"`
	AudioPlaying    bool                `json:"audioPlaying"`
	PID             int                 `json:"pid"`
	ProcessName     string              `json:"processName"`
}

// ParseProbeMessage decodes one JSON document into a sample or a command.
// A sample must carry a non-negative idleTimeSeconds.
func ParseProbeMessage(data []byte) (domain.ProbeMessage, error) {
	var w probeWire
	if err := json.Unmarshal(data, &w); err != nil {
		return domain.ProbeMessage{}, fmt.Errorf("malformed probe message: %w", err)
	}

	if w.Command != "" {
		if w.Command != domain.CommandCancelFinalWarning {
			return domain.ProbeMessage{}, fmt.Errorf("unknown probe command %q", w.Command)
		}
		return domain.ProbeMessage{Command: w.Command}, nil
	}

	if w.IdleTimeSeconds == nil {
		return domain.ProbeMessage{}, errors.New("probe sample missing idleTimeSeconds")
	}
	if *w.IdleTimeSeconds < 0 {
		return domain.ProbeMessage{}, fmt.Errorf("negative idleTimeSeconds %v", *w.IdleTimeSeconds)
	}

	return domain.ProbeMessage{Sample: &domain.StatusSample{
		IdleTimeSeconds: *w.IdleTimeSeconds,
		WindowTitle:     w.WindowTitle,
		AudioPlaying:    w.AudioPlaying,
		PID:             w.PID,
		ProcessName:     w.ProcessName,
	}}, nil
}

// pumpLines forwards every parseable line of r to out until r is exhausted
// or ctx ends. Malformed lines are logged and skipped.
func pumpLines(ctx context.Context, r io.Reader, out chan<- domain.ProbeMessage, logger *zap.Logger) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxProbeLine)

	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		msg, err := ParseProbeMessage(line)
		if err != nil {
			logger.Warn("skipping probe line", zap.Error(err))
			continue
		}
		select {
		case out <- msg:
		case <-ctx.Done():
			return
		}
	}
	if err := scanner.Err(); err != nil {
		logger.Warn("probe stream ended with error", zap.Error(err))
	}
}

// StreamProbe reads line-delimited JSON from a reader such as stdin.
type StreamProbe struct {
	r      io.Reader
	logger *zap.Logger
}

// NewStreamProbe creates a probe over r.
func NewStreamProbe(r io.Reader, logger *zap.Logger) *StreamProbe {
	return &StreamProbe{r: r, logger: logger}
}

// Messages starts reading. The channel closes at EOF or when ctx ends.
func (p *StreamProbe) Messages(ctx context.Context) (<-chan domain.ProbeMessage, error) {
	out := make(chan domain.ProbeMessage)
	go func() {
		defer close(out)
		pumpLines(ctx, p.r, out, p.logger)
	}()
	return out, nil
}

// CommandProbe runs a helper program and reads its stdout as a StreamProbe would.
type CommandProbe struct {
	argv   []string
	logger *zap.Logger
}

// NewCommandProbe creates a probe for argv.
func NewCommandProbe(argv []string, logger *zap.Logger) (*CommandProbe, error) {
	if len(argv) == 0 || argv[0] == "" {
		return nil, errors.New("probe command is empty")
	}
	return &CommandProbe{argv: argv, logger: logger}, nil
}

// Messages starts the helper. It is killed when ctx ends.
func (p *CommandProbe) Messages(ctx context.Context) (<-chan domain.ProbeMessage, error) {
	cmd := exec.CommandContext(ctx, p.argv[0], p.argv[1:]...)
	cmd.Stderr = os.Stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("failed to attach probe stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("failed to start probe %s: %w", p.argv[0], err)
	}
	p.logger.Info("probe helper started", zap.Strings("argv", p.argv), zap.Int("pid", cmd.Process.Pid))

	out := make(chan domain.ProbeMessage)
	go func() {
		defer close(out)
		pumpLines(ctx, stdout, out, p.logger)
		// Drain so Wait does not block on a full pipe after ctx ended
		_, _ = io.Copy(io.Discard, stdout)
		if err := cmd.Wait(); err != nil && ctx.Err() == nil {
			p.logger.Warn("probe helper exited", zap.Error(err))
		}
	}()
	return out, nil
}

// FileProbe watches a status file that a helper rewrites, emitting its
// content each time it changes.
type FileProbe struct {
	path   string
	logger *zap.Logger
}

// NewFileProbe creates a probe for path.
func NewFileProbe(path string, logger *zap.Logger) *FileProbe {
	return &FileProbe{path: filepath.Clean(path), logger: logger}
}

// Messages watches the file's directory so atomic rename-over writes are seen.
func (p *FileProbe) Messages(ctx context.Context) (<-chan domain.ProbeMessage, error) {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("failed to create watcher: %w", err)
	}
	if err := watcher.Add(filepath.Dir(p.path)); err != nil {
		_ = watcher.Close()
		return nil, fmt.Errorf("failed to watch %s: %w", filepath.Dir(p.path), err)
	}

	out := make(chan domain.ProbeMessage)
	go func() {
		defer close(out)
		defer watcher.Close()

		debounce := time.NewTimer(0)
		if !debounce.Stop() {
			<-debounce.C
		}
		defer debounce.Stop()

		// Emit whatever is already there
		if _, err := os.Stat(p.path); err == nil {
			debounce.Reset(0)
		}

		for {
			select {
			case <-ctx.Done():
				return
			case event, ok := <-watcher.Events:
				if !ok {
					return
				}
				if filepath.Clean(event.Name) != p.path || !event.Has(fsnotify.Write|fsnotify.Create) {
					continue
				}
				debounce.Reset(fileProbeDebounce)
			case err, ok := <-watcher.Errors:
				if !ok {
					return
				}
				p.logger.Warn("status file watcher error", zap.Error(err))
			case <-debounce.C:
				msg, err := p.read()
				if err != nil {
					p.logger.Warn("skipping status file", zap.String("path", p.path), zap.Error(err))
					continue
				}
				select {
				case out <- msg:
				case <-ctx.Done():
					return
				}
			}
		}
	}()
	return out, nil
}

func (p *FileProbe) read() (domain.ProbeMessage, error) {
	data, err := os.ReadFile(p.path)
	if err != nil {
		return domain.ProbeMessage{}, err
	}
	return ParseProbeMessage(bytes.TrimSpace(data))
}

var (
	_ domain.StatusProbe = (*StreamProbe)(nil)
	_ domain.StatusProbe = (*CommandProbe)(nil)
	_ domain.StatusProbe = (*FileProbe)(nil)
)
