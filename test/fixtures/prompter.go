package fixtures

import (
	"context"
	"sync"

	"github.com/eliteGoblin/focusd/study_mon/internal/domain"
)

// ScriptedPrompter answers kill confirmations from a fixed script and
// remembers what it was asked. When the script runs out it returns Fallback.
type ScriptedPrompter struct {
	mu       sync.Mutex
	answers  []domain.ConfirmAction
	Fallback domain.ConfirmAction
	Err      error
	asked    []domain.KillConfirmation
}

// NewScriptedPrompter creates a prompter that gives answers in order.
func NewScriptedPrompter(answers ...domain.ConfirmAction) *ScriptedPrompter {
	return &ScriptedPrompter{answers: answers, Fallback: domain.ActionIgnore}
}

// Confirm returns the next scripted answer.
func (p *ScriptedPrompter) Confirm(_ context.Context, req domain.KillConfirmation) (domain.ConfirmAction, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.asked = append(p.asked, req)
	if p.Err != nil {
		return "", p.Err
	}
	if len(p.answers) == 0 {
		return p.Fallback, nil
	}
	next := p.answers[0]
	p.answers = p.answers[1:]
	return next, nil
}

// Asked returns every confirmation request so far.
func (p *ScriptedPrompter) Asked() []domain.KillConfirmation {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]domain.KillConfirmation(nil), p.asked...)
}

var _ domain.Prompter = (*ScriptedPrompter)(nil)
