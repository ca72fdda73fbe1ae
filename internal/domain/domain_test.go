package domain

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestGenerationRequestValidate(t *testing.T) {
	tests := []struct {
		name    string
		req     GenerationRequest
		wantErr bool
	}{
		{"manual", NewManualRequest("narrator: hi"), false},
		{"generated", NewAIRequest("rain on a tin roof", 300), false},
		{"custom prompt without theme", GenerationRequest{AIGenerated: &AIGenerated{CustomPrompt: "x", TargetLengthWords: 10}}, false},
		{"both variants", GenerationRequest{Manual: &Manual{ScriptText: "a"}, AIGenerated: &AIGenerated{Theme: "b", TargetLengthWords: 1}}, true},
		{"no variant", GenerationRequest{}, true},
		{"blank manual", NewManualRequest("  \n "), true},
		{"zero words", NewAIRequest("rain", 0), true},
		{"negative words", NewAIRequest("rain", -5), true},
		{"blank theme", NewAIRequest(" ", 100), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.req.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
			if err != nil && KindOf(err) != KindConfiguration {
				t.Errorf("KindOf() = %q, want %q", KindOf(err), KindConfiguration)
			}
		})
	}
}

func TestParseLengthPreset(t *testing.T) {
	tests := map[string]int{
		"short":     150,
		"Medium":    300,
		"long":      600,
		"very long": 1000,
		"very-long": 1000,
	}
	for in, want := range tests {
		got, err := ParseLengthPreset(in)
		if err != nil {
			t.Fatalf("ParseLengthPreset(%q) error: %v", in, err)
		}
		if got != want {
			t.Errorf("ParseLengthPreset(%q) = %d, want %d", in, got, want)
		}
	}

	if _, err := ParseLengthPreset("epic"); !errors.Is(err, ErrUnknownPreset) {
		t.Errorf("expected ErrUnknownPreset, got %v", err)
	}
}

func TestScriptSpeakersFirstOccurrence(t *testing.T) {
	s := NewScript(
		ScriptLine{"companion", "a"},
		ScriptLine{"narrator", "b"},
		ScriptLine{"companion", "c"},
		ScriptLine{"guest", "d"},
	)
	got := s.Speakers()
	want := []string{"companion", "narrator", "guest"}
	if fmt.Sprint(got) != fmt.Sprint(want) {
		t.Errorf("Speakers() = %v, want %v", got, want)
	}
	if s.WordCount() != 4 {
		t.Errorf("WordCount() = %d, want 4", s.WordCount())
	}
}

func TestScriptValidate(t *testing.T) {
	tests := []struct {
		name    string
		script  Script
		wantErr bool
	}{
		{"ok", NewScript(ScriptLine{"Speaker 1", "hello"}), false},
		{"empty", Script{}, true},
		{"blank text", NewScript(ScriptLine{"narrator", " "}), true},
		{"bad label", NewScript(ScriptLine{"#1", "hello"}), true},
		{"long label", NewScript(ScriptLine{"a very long speaker label that keeps going", "hello"}), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.script.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestScriptWithLinesCopies(t *testing.T) {
	lines := []ScriptLine{{"narrator", "one"}}
	s := Script{}.WithLines(lines)
	lines[0].Text = "changed"
	if s.Lines[0].Text != "one" {
		t.Errorf("WithLines shares the caller's slice")
	}
}

func TestAudioFormatDuration(t *testing.T) {
	f := DefaultAudioFormat()
	if got := f.Duration(48000); got != time.Second {
		t.Errorf("Duration(48000) = %v, want 1s", got)
	}
	if got := f.BytesFor(500 * time.Millisecond); got != 24000 {
		t.Errorf("BytesFor(500ms) = %d, want 24000", got)
	}
	stereo := AudioFormat{SampleRate: 44100, Channels: 2, BitDepth: 16}
	if got := stereo.FrameSize(); got != 4 {
		t.Errorf("FrameSize() = %d, want 4", got)
	}
	if err := (AudioFormat{SampleRate: 24000, Channels: 1, BitDepth: 8}).Validate(); err == nil {
		t.Errorf("expected 8-bit format to be rejected")
	}
}

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		want Kind
	}{
		{nil, KindNone},
		{ErrBusy, KindBusy},
		{fmt.Errorf("wrapped: %w", ErrCancelled), KindCancelled},
		{context.Canceled, KindCancelled},
		{&TransientServiceError{Service: "gemini", StatusCode: 503}, KindTransient},
		{&TransientServiceError{Service: "gemini", Err: context.DeadlineExceeded}, KindTransient},
		{context.DeadlineExceeded, KindCancelled},
		{&PermanentRequestError{Service: "gemini", StatusCode: 401}, KindPermanent},
		{&EmptyGenerationError{Attempts: 2}, KindEmptyGeneration},
		{&VoiceExhaustionError{Speaker: "narrator"}, KindVoiceExhaustion},
		{&ConfigurationError{Field: "voices"}, KindConfiguration},
		{&PartialSynthesisError{Segments: []AudioSegment{{Ordinal: 0}}, Err: &TransientServiceError{}}, KindPartialSynthesis},
		{&PartialSynthesisError{Err: &TransientServiceError{}}, KindTransient},
		{&PartialSynthesisError{Err: &PermanentRequestError{Service: "gemini", StatusCode: 400}}, KindPermanent},
		{kindedError{KindBusy}, KindBusy},
		{&AssemblyError{Reason: "empty"}, KindAssembly},
		{errors.New("boom"), KindInternal},
	}
	for _, tt := range tests {
		if got := KindOf(tt.err); got != tt.want {
			t.Errorf("KindOf(%v) = %q, want %q", tt.err, got, tt.want)
		}
	}
}

type kindedError struct{ kind Kind }

func (e kindedError) Error() string   { return string(e.kind) }
func (e kindedError) ErrorKind() Kind { return e.kind }

func TestKindAdvice(t *testing.T) {
	if KindTransient.Advice() != AdviceRetry {
		t.Errorf("transient should advise retry")
	}
	for _, k := range []Kind{KindPermanent, KindConfiguration, KindVoiceExhaustion, KindEmptyGeneration} {
		if k.Advice() != AdviceFixInput {
			t.Errorf("%s should advise fixing input", k)
		}
	}
	if KindPartialSynthesis.Advice() != AdvicePartial {
		t.Errorf("partial synthesis should advise partial")
	}
	if KindCancelled.Advice() != AdviceNone {
		t.Errorf("cancelled should advise nothing")
	}
}
