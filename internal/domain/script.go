package domain

import (
	"fmt"
	"regexp"
	"strings"
)

// DefaultSpeaker is the label given to lines that carry no speaker tag.
const DefaultSpeaker = "narrator"

// MaxLabelLength bounds the length of a speaker label.
const MaxLabelLength = 32

var labelPattern = regexp.MustCompile(`^[\p{L}][\p{L}\p{N} _.\-]*$`)

// ScriptLine is one speaker-tagged line of text.
type ScriptLine struct {
	Speaker string
	Text    string
}

// Script is an ordered sequence of speaker-tagged lines. A Script is treated
// as immutable; edits produce a new value.
type Script struct {
	Lines []ScriptLine
}

// NewScript copies lines into a new Script.
func NewScript(lines ...ScriptLine) Script {
	return Script{Lines: append([]ScriptLine(nil), lines...)}
}

// WithLines returns a new Script holding lines.
func (s Script) WithLines(lines []ScriptLine) Script {
	return NewScript(lines...)
}

// Len returns the number of lines.
func (s Script) Len() int { return len(s.Lines) }

// IsEmpty reports whether the script has no lines.
func (s Script) IsEmpty() bool { return len(s.Lines) == 0 }

// Speakers returns the distinct speaker labels in first-occurrence order.
func (s Script) Speakers() []string {
	seen := make(map[string]struct{}, 4)
	var out []string
	for _, l := range s.Lines {
		if _, ok := seen[l.Speaker]; ok {
			continue
		}
		seen[l.Speaker] = struct{}{}
		out = append(out, l.Speaker)
	}
	return out
}

// WordCount counts whitespace-separated words across all lines.
func (s Script) WordCount() int {
	n := 0
	for _, l := range s.Lines {
		n += len(strings.Fields(l.Text))
	}
	return n
}

// String renders the script in "Label: text" form, one line per entry.
func (s Script) String() string {
	var b strings.Builder
	for i, l := range s.Lines {
		if i > 0 {
			b.WriteByte('\n')
		}
		b.WriteString(l.Speaker)
		b.WriteString(": ")
		b.WriteString(l.Text)
	}
	return b.String()
}

// Validate checks that the script is non-empty, that no line is blank and
// that every label is well formed.
func (s Script) Validate() error {
	if s.IsEmpty() {
		return &ConfigurationError{Field: "script", Reason: "script has no lines"}
	}
	for i, l := range s.Lines {
		if err := ValidateLabel(l.Speaker); err != nil {
			return &ConfigurationError{Field: "script", Reason: fmt.Sprintf("line %d: %v", i+1, err)}
		}
		if strings.TrimSpace(l.Text) == "" {
			return &ConfigurationError{Field: "script", Reason: fmt.Sprintf("line %d: text is empty", i+1)}
		}
	}
	return nil
}

// ValidateLabel checks that label is a short identifier.
func ValidateLabel(label string) error {
	if label == "" {
		return fmt.Errorf("speaker label is empty")
	}
	if len(label) > MaxLabelLength {
		return fmt.Errorf("speaker label %q is longer than %d characters", label, MaxLabelLength)
	}
	if !labelPattern.MatchString(label) {
		return fmt.Errorf("speaker label %q is not well formed", label)
	}
	return nil
}

// IsLabel reports whether label is well formed.
func IsLabel(label string) bool {
	return ValidateLabel(label) == nil
}
