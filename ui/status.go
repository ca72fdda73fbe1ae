package ui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/muesli/reflow/truncate"

	"github.com/dgnsrekt/asmrgen/internal/domain"
	"github.com/dgnsrekt/asmrgen/internal/pipeline"
)

// runStatus tracks the progress of one run for display.
type runStatus struct {
	stages  []pipeline.State
	entered map[pipeline.State]time.Time
	left    map[pipeline.State]time.Time

	started time.Time
	current pipeline.State
	failed  pipeline.State
	err     error
	kind    domain.Kind
}

func newRunStatus(ai bool, now time.Time) *runStatus {
	stages := []pipeline.State{
		pipeline.StateMappingVoices,
		pipeline.StateSynthesizing,
		pipeline.StateAssembling,
	}
	if ai {
		stages = append([]pipeline.State{pipeline.StateGenerating}, stages...)
	}
	return &runStatus{
		stages:  stages,
		entered: make(map[pipeline.State]time.Time),
		left:    make(map[pipeline.State]time.Time),
		started: now,
		current: pipeline.StateIdle,
		failed:  pipeline.StateIdle,
	}
}

// Apply records a transition.
func (s *runStatus) Apply(t pipeline.Transition) {
	if t.From != pipeline.StateIdle {
		s.left[t.From] = t.At
	}
	s.entered[t.To] = t.At
	s.current = t.To
	if t.To == pipeline.StateFailed {
		s.failed = t.From
		if t.Err != nil && s.err == nil {
			s.err = t.Err
			s.kind = domain.KindOf(t.Err)
		}
	}
}

// Fail records the run error.
func (s *runStatus) Fail(err error) {
	s.err = err
	s.kind = domain.KindOf(err)
	if s.failed == pipeline.StateIdle {
		s.failed = s.current
	}
	s.current = pipeline.StateFailed
}

// Done reports whether the run reached a terminal state.
func (s *runStatus) Done() bool {
	return s.current.IsTerminal()
}

// Elapsed returns the time from start to the last transition, or to now
// while running.
func (s *runStatus) Elapsed(now time.Time) time.Duration {
	if s.Done() {
		if at, ok := s.entered[s.current]; ok {
			return at.Sub(s.started)
		}
	}
	return now.Sub(s.started)
}

// View renders one line per stage.
func (s *runStatus) View(width int, spin string, now time.Time) string {
	var lines []string
	for _, st := range s.stages {
		icon, style := s.stageIcon(st, spin)
		line := fmt.Sprintf("%s %s", icon, stageName(st))
		if d, ok := s.stageDuration(st, now); ok {
			line += labelStyle.Render("  " + formatDuration(d))
		}
		lines = append(lines, style.Render(line))
	}
	lines = append(lines, labelStyle.Render("  total "+formatDuration(s.Elapsed(now))))

	if s.err != nil {
		kind := string(s.kind)
		if kind == "" {
			kind = "error"
		}
		msg := fmt.Sprintf("✗ %s: %v", kind, s.err)
		if width > 4 {
			msg = truncate.StringWithTail(msg, uint(width-2), "…") //nolint:gosec
		}
		lines = append(lines, "", errorStyle.Render(msg))
		if hint := s.kind.Advice().Hint(); hint != "" {
			lines = append(lines, labelStyle.Render("  "+hint))
		}
	}
	return strings.Join(lines, "\n")
}

func (s *runStatus) stageIcon(st pipeline.State, spin string) (string, lipgloss.Style) {
	switch {
	case s.current == pipeline.StateFailed && s.failed == st:
		return "✗", errorStyle
	case s.current == st:
		return spin, lipgloss.NewStyle().Foreground(blue)
	case s.isDone(st):
		return "✓", lipgloss.NewStyle().Foreground(darkGreen)
	default:
		return "○", lipgloss.NewStyle().Foreground(gray)
	}
}

func (s *runStatus) isDone(st pipeline.State) bool {
	_, ok := s.left[st]
	return ok && !(s.current == pipeline.StateFailed && s.failed == st)
}

func (s *runStatus) stageDuration(st pipeline.State, now time.Time) (time.Duration, bool) {
	in, ok := s.entered[st]
	if !ok {
		return 0, false
	}
	if out, ok := s.left[st]; ok {
		return out.Sub(in), true
	}
	if s.current == st {
		return now.Sub(in), true
	}
	return 0, false
}

func stageName(st pipeline.State) string {
	switch st {
	case pipeline.StateGenerating:
		return "Writing script"
	case pipeline.StateMappingVoices:
		return "Assigning voices"
	case pipeline.StateSynthesizing:
		return "Synthesizing speech"
	case pipeline.StateAssembling:
		return "Assembling audio"
	default:
		return st.String()
	}
}

// formatDuration formats a duration for display.
func formatDuration(d time.Duration) string {
	if d < 0 {
		return "0:00"
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	minutes := int(d.Minutes())
	seconds := int(d.Seconds()) % 60
	return fmt.Sprintf("%d:%02d", minutes, seconds)
}
