package domain

import (
	"errors"
	"fmt"
	"strings"
)

// RequestKind identifies which variant of a GenerationRequest is populated.
type RequestKind int

const (
	// RequestManual carries a user-written script.
	RequestManual RequestKind = iota
	// RequestAIGenerated asks the text model to write the script.
	RequestAIGenerated
)

// String returns the string representation of the request kind.
func (k RequestKind) String() string {
	switch k {
	case RequestManual:
		return "manual"
	case RequestAIGenerated:
		return "ai-generated"
	default:
		return "unknown"
	}
}

// Manual is a request whose script text was provided by the user.
type Manual struct {
	ScriptText string
}

// AIGenerated is a request for the text model to write a script.
type AIGenerated struct {
	Theme             string
	TargetLengthWords int

	// CustomPrompt replaces the theme body of the prompt when set. The
	// speaker tag instruction is still appended.
	CustomPrompt string
}

// GenerationRequest describes one user action. Exactly one of Manual and
// AIGenerated is non-nil.
type GenerationRequest struct {
	Manual      *Manual
	AIGenerated *AIGenerated
}

// NewManualRequest returns a request for a user-written script.
func NewManualRequest(text string) GenerationRequest {
	return GenerationRequest{Manual: &Manual{ScriptText: text}}
}

// NewAIRequest returns a request for a generated script.
func NewAIRequest(theme string, words int) GenerationRequest {
	return GenerationRequest{AIGenerated: &AIGenerated{Theme: theme, TargetLengthWords: words}}
}

// Kind reports which variant is populated.
func (r GenerationRequest) Kind() RequestKind {
	if r.Manual != nil {
		return RequestManual
	}
	return RequestAIGenerated
}

// Validate checks the one-variant invariant and the per-variant fields.
func (r GenerationRequest) Validate() error {
	switch {
	case r.Manual != nil && r.AIGenerated != nil:
		return &ConfigurationError{Field: "request", Reason: "both manual and generated variants are set"}
	case r.Manual == nil && r.AIGenerated == nil:
		return &ConfigurationError{Field: "request", Reason: "no variant is set"}
	case r.Manual != nil:
		if strings.TrimSpace(r.Manual.ScriptText) == "" {
			return &ConfigurationError{Field: "script", Reason: "script text is empty"}
		}
	default:
		if r.AIGenerated.TargetLengthWords <= 0 {
			return &ConfigurationError{
				Field:  "words",
				Reason: fmt.Sprintf("target length must be positive, got %d", r.AIGenerated.TargetLengthWords),
			}
		}
		if strings.TrimSpace(r.AIGenerated.Theme) == "" && strings.TrimSpace(r.AIGenerated.CustomPrompt) == "" {
			return &ConfigurationError{Field: "theme", Reason: "theme is empty"}
		}
	}
	return nil
}

// LengthPreset names a target word count.
type LengthPreset string

// Length presets offered by the CLI and TUI.
const (
	LengthShort    LengthPreset = "short"
	LengthMedium   LengthPreset = "medium"
	LengthLong     LengthPreset = "long"
	LengthVeryLong LengthPreset = "very-long"
)

var presetWords = map[LengthPreset]int{
	LengthShort:    150,
	LengthMedium:   300,
	LengthLong:     600,
	LengthVeryLong: 1000,
}

// ErrUnknownPreset is returned by ParseLengthPreset.
var ErrUnknownPreset = errors.New("unknown length preset")

// ParseLengthPreset converts a preset name into a word count.
func ParseLengthPreset(s string) (int, error) {
	key := LengthPreset(strings.ReplaceAll(strings.ToLower(strings.TrimSpace(s)), " ", "-"))
	if n, ok := presetWords[key]; ok {
		return n, nil
	}
	return 0, fmt.Errorf("%w %q: use short, medium, long or very-long", ErrUnknownPreset, s)
}
