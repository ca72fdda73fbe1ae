// Package domain holds the value types, provider interfaces and error
// taxonomy shared by every stage of the generation pipeline. It has no
// dependencies on the other internal packages, so any of them can import it.
package domain

import "context"

// TextProvider is a language model endpoint: prompt in, text out.
type TextProvider interface {
	// Complete sends prompt and returns the model's raw text. lengthHint is
	// the target word count, which providers may use to size the response.
	Complete(ctx context.Context, prompt string, lengthHint int) (string, error)

	// Name identifies the provider in logs and errors.
	Name() string
}

// SpeechProvider is a multi-voice speech synthesis endpoint.
type SpeechProvider interface {
	// Synthesize voices text with the given voice and returns PCM audio in
	// whatever format the provider produces.
	Synthesize(ctx context.Context, text string, voice VoiceID) (RawAudio, error)

	// Name identifies the provider in logs, errors and cache keys.
	Name() string
}
