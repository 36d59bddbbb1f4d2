package infra

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/eliteGoblin/focusd/study_mon/internal/domain"
)

// ConsolePrompter asks on a terminal. Any answer other than yes means ignore.
type ConsolePrompter struct {
	out     io.Writer
	timeout time.Duration

	startOnce sync.Once
	in        io.Reader
	lines     chan string
	readErr   error
}

// NewConsolePrompter reads answers from in and writes questions to out.
func NewConsolePrompter(in io.Reader, out io.Writer, timeout time.Duration) *ConsolePrompter {
	if timeout <= 0 {
		timeout = domain.PromptTimeout
	}
	return &ConsolePrompter{
		in:      in,
		out:     out,
		timeout: timeout,
		lines:   make(chan string),
	}
}

// Confirm blocks until an answer, the timeout, or ctx cancellation.
func (p *ConsolePrompter) Confirm(ctx context.Context, req domain.KillConfirmation) (domain.ConfirmAction, error) {
	p.startOnce.Do(p.startReader)

	fmt.Fprintf(p.out, "\nDistraction detected: %q (%s, pid %d)\nTerminate it? [y/N] ", req.WindowTitle, req.ProcessName, req.PID)

	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	select {
	case <-ctx.Done():
		fmt.Fprintln(p.out)
		return domain.ActionIgnore, fmt.Errorf("no answer: %w", ctx.Err())
	case line, ok := <-p.lines:
		if !ok {
			return domain.ActionIgnore, fmt.Errorf("prompt input closed: %w", p.readErr)
		}
		switch strings.ToLower(strings.TrimSpace(line)) {
		case "y", "yes":
			return domain.ActionTerminate, nil
		default:
			return domain.ActionIgnore, nil
		}
	}
}

// startReader runs one scanner for the prompter's lifetime so an abandoned
// question never leaves a second reader on the same input.
func (p *ConsolePrompter) startReader() {
	go func() {
		scanner := bufio.NewScanner(p.in)
		for scanner.Scan() {
			p.lines <- scanner.Text()
		}
		p.readErr = scanner.Err()
		if p.readErr == nil {
			p.readErr = io.EOF
		}
		close(p.lines)
	}()
}

// NoPrompter is used where no interactive prompt exists. The state machine
// terminates immediately when it sees ErrPromptUnsupported.
type NoPrompter struct{}

// Confirm always reports that prompting is unsupported.
func (NoPrompter) Confirm(context.Context, domain.KillConfirmation) (domain.ConfirmAction, error) {
	return "", domain.ErrPromptUnsupported
}

var (
	_ domain.Prompter = (*ConsolePrompter)(nil)
	_ domain.Prompter = NoPrompter{}
)
