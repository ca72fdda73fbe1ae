package domain

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// Pipeline errors without extra context.
var (
	// ErrBusy indicates a run was requested while another is in flight.
	ErrBusy = errors.New("a generation is already running")

	// ErrCancelled indicates the caller cancelled the run.
	ErrCancelled = errors.New("generation cancelled")
)

// Kind identifies a failure category.
type Kind string

// Failure categories.
const (
	KindNone             Kind = ""
	KindTransient        Kind = "transient"
	KindPermanent        Kind = "permanent"
	KindEmptyGeneration  Kind = "empty-generation"
	KindVoiceExhaustion  Kind = "voice-exhaustion"
	KindConfiguration    Kind = "configuration"
	KindPartialSynthesis Kind = "partial-synthesis"
	KindAssembly         Kind = "assembly"
	KindBusy             Kind = "busy"
	KindCancelled        Kind = "cancelled"
	KindInternal         Kind = "internal"
)

// Advice tells the user what to do about a failure.
type Advice string

// Advice values.
const (
	AdviceRetry    Advice = "retry"
	AdviceFixInput Advice = "fix-input"
	AdvicePartial  Advice = "partial"
	AdviceNone     Advice = "none"
)

// Advice maps a failure kind to the action a user can take.
func (k Kind) Advice() Advice {
	switch k {
	case KindTransient:
		return AdviceRetry
	case KindPermanent, KindConfiguration, KindVoiceExhaustion, KindEmptyGeneration:
		return AdviceFixInput
	case KindPartialSynthesis:
		return AdvicePartial
	default:
		return AdviceNone
	}
}

// Hint returns a one-line, user-facing explanation of the advice.
func (a Advice) Hint() string {
	switch a {
	case AdviceRetry:
		return "the service is unavailable right now, try again"
	case AdviceFixInput:
		return "fix your input or configuration"
	case AdvicePartial:
		return "partial content is available"
	default:
		return ""
	}
}

// TransientServiceError is a failure worth retrying: timeouts, rate limits
// and server errors.
type TransientServiceError struct {
	Service    string
	StatusCode int
	Err        error
}

func (e *TransientServiceError) Error() string {
	return serviceMessage("transient", e.Service, e.StatusCode, "", e.Err)
}

func (e *TransientServiceError) Unwrap() error { return e.Err }

// PermanentRequestError is a failure that will not go away on retry:
// bad credentials, rejected content, malformed requests.
type PermanentRequestError struct {
	Service    string
	StatusCode int
	Reason     string
	Err        error
}

func (e *PermanentRequestError) Error() string {
	return serviceMessage("permanent", e.Service, e.StatusCode, e.Reason, e.Err)
}

func (e *PermanentRequestError) Unwrap() error { return e.Err }

func serviceMessage(class, service string, status int, reason string, err error) string {
	var b strings.Builder
	b.WriteString(service)
	if service == "" {
		b.WriteString("service")
	}
	b.WriteString(": ")
	b.WriteString(class)
	b.WriteString(" failure")
	if status > 0 {
		fmt.Fprintf(&b, " (status %d)", status)
	}
	if reason != "" {
		b.WriteString(": ")
		b.WriteString(reason)
	}
	if err != nil {
		b.WriteString(": ")
		b.WriteString(err.Error())
	}
	return b.String()
}

// EmptyGenerationError means the text model kept returning nothing usable.
type EmptyGenerationError struct {
	Attempts int
}

func (e *EmptyGenerationError) Error() string {
	return fmt.Sprintf("text generation returned no script lines after %d attempts", e.Attempts)
}

// VoiceExhaustionError means a speaker needed a default voice but the pool
// is empty.
type VoiceExhaustionError struct {
	Speaker string
}

func (e *VoiceExhaustionError) Error() string {
	return fmt.Sprintf("no voice available for speaker %q: the default voice pool is empty", e.Speaker)
}

// ConfigurationError reports invalid input or configuration detected before
// any service call.
type ConfigurationError struct {
	Field  string
	Reason string
}

func (e *ConfigurationError) Error() string {
	if e.Field == "" {
		return "configuration error: " + e.Reason
	}
	return fmt.Sprintf("configuration error: %s: %s", e.Field, e.Reason)
}

// PartialSynthesisError carries the segments produced before synthesis was
// aborted, in ascending ordinal order.
type PartialSynthesisError struct {
	Segments []AudioSegment
	Failed   int // ordinal of the unit that failed
	Err      error
}

func (e *PartialSynthesisError) Error() string {
	return fmt.Sprintf("synthesis aborted at unit %d with %d segments produced: %v", e.Failed, len(e.Segments), e.Err)
}

func (e *PartialSynthesisError) Unwrap() error { return e.Err }

// AssemblyError reports segments that cannot be combined.
type AssemblyError struct {
	Reason string
}

func (e *AssemblyError) Error() string {
	return "assembly failed: " + e.Reason
}

// IsTransient reports whether err should be retried.
func IsTransient(err error) bool {
	var t *TransientServiceError
	return errors.As(err, &t)
}

// KindOf classifies err. An error in the chain that reports its own kind
// through an ErrorKind method is trusted as is. A PartialSynthesisError
// with segments wins over the cause it wraps; one without segments is
// classified by its cause. A deadline on the run's own
// context counts as cancellation; providers report their per-call timeouts
// as TransientServiceError.
func KindOf(err error) Kind {
	if err == nil {
		return KindNone
	}
	var kinded interface{ ErrorKind() Kind }
	if errors.As(err, &kinded) {
		return kinded.ErrorKind()
	}

	var (
		partial *PartialSynthesisError
		empty   *EmptyGenerationError
		exhaust *VoiceExhaustionError
		cfg     *ConfigurationError
		asm     *AssemblyError
		perm    *PermanentRequestError
		trans   *TransientServiceError
	)
	switch {
	case errors.Is(err, ErrBusy):
		return KindBusy
	case errors.Is(err, ErrCancelled), errors.Is(err, context.Canceled):
		return KindCancelled
	case errors.As(err, &partial) && len(partial.Segments) > 0:
		return KindPartialSynthesis
	case errors.As(err, &empty):
		return KindEmptyGeneration
	case errors.As(err, &exhaust):
		return KindVoiceExhaustion
	case errors.As(err, &cfg):
		return KindConfiguration
	case errors.As(err, &asm):
		return KindAssembly
	case errors.As(err, &perm):
		return KindPermanent
	case errors.As(err, &trans):
		return KindTransient
	case errors.Is(err, context.DeadlineExceeded):
		return KindCancelled
	default:
		return KindInternal
	}
}
