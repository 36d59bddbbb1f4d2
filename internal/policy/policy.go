// Package policy holds the offline catalogue of known distractions.
// Each app (Steam, Dota 2, League of Legends) has its own policy describing
// how to recognise it from a window title or process name.
package policy

import (
	"regexp"
	"strings"
)

// AppPolicy describes one distraction.
type AppPolicy interface {
	// ID returns unique identifier (e.g., "steam", "dota2").
	ID() string

	// Name returns human-readable name for display.
	Name() string

	// ProcessPatterns returns process name fragments, matched case-insensitively.
	ProcessPatterns() []string

	// TitlePatterns returns regular expressions matched case-insensitively
	// against the foreground window title.
	TitlePatterns() []string
}

// matcher is an AppPolicy with its patterns prepared for matching.
type matcher struct {
	policy    AppPolicy
	processes []string
	titles    []*regexp.Regexp
}

func newMatcher(p AppPolicy) matcher {
	m := matcher{policy: p}
	for _, proc := range p.ProcessPatterns() {
		m.processes = append(m.processes, strings.ToLower(proc))
	}
	for _, title := range p.TitlePatterns() {
		m.titles = append(m.titles, regexp.MustCompile("(?i)"+title))
	}
	return m
}

func (m matcher) matches(windowTitle, processName string) bool {
	if processName != "" {
		proc := strings.ToLower(strings.TrimSuffix(processName, ".exe"))
		for _, p := range m.processes {
			if strings.Contains(proc, p) {
				return true
			}
		}
	}
	if windowTitle != "" {
		for _, re := range m.titles {
			if re.MatchString(windowTitle) {
				return true
			}
		}
	}
	return false
}
