// Package synth voices a mapped script one unit at a time and normalises
// every response to the session audio format.
package synth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/charmbracelet/log"
	"github.com/panjf2000/ants/v2"

	"github.com/dgnsrekt/asmrgen/internal/domain"
	"github.com/dgnsrekt/asmrgen/internal/retry"
)

var errNoAudio = errors.New("provider returned no audio")

// Config holds the synthesizer settings.
type Config struct {
	// Format is the session format every segment is converted to.
	Format domain.AudioFormat

	// Concurrency bounds the number of in-flight provider calls.
	Concurrency int

	// MergeRuns voices contiguous same-speaker lines in a single call.
	MergeRuns bool

	Retry retry.Policy

	// Cache is optional.
	Cache Cache

	Logger *log.Logger
}

// DefaultConfig returns 24kHz mono output with four concurrent calls.
func DefaultConfig() Config {
	return Config{
		Format:      domain.DefaultAudioFormat(),
		Concurrency: 4,
		Retry:       retry.DefaultPolicy(),
	}
}

// Validate checks the config ranges.
func (c Config) Validate() error {
	if err := c.Format.Validate(); err != nil {
		return err
	}
	if c.Concurrency < 1 || c.Concurrency > 16 {
		return fmt.Errorf("concurrency must be between 1 and 16, got %d", c.Concurrency)
	}
	return c.Retry.Validate()
}

// Unit is one synthesis call.
type Unit struct {
	Ordinal int
	Speaker string
	Text    string
}

// Units splits s into synthesis units. With merge set, contiguous lines of
// the same speaker form one unit.
func Units(s domain.Script, merge bool) []Unit {
	var units []Unit
	for _, l := range s.Lines {
		if merge && len(units) > 0 && units[len(units)-1].Speaker == l.Speaker {
			units[len(units)-1].Text += " " + l.Text
			continue
		}
		units = append(units, Unit{Ordinal: len(units), Speaker: l.Speaker, Text: l.Text})
	}
	return units
}

// Synthesizer drives a SpeechProvider over a script.
type Synthesizer struct {
	provider domain.SpeechProvider
	cfg      Config
	log      *log.Logger
}

// New creates a Synthesizer.
func New(provider domain.SpeechProvider, cfg Config) (*Synthesizer, error) {
	if provider == nil {
		return nil, errors.New("speech provider is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid synthesizer config: %w", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Synthesizer{provider: provider, cfg: cfg, log: logger.WithPrefix("synth")}, nil
}

// Format returns the session format of produced segments.
func (s *Synthesizer) Format() domain.AudioFormat { return s.cfg.Format }

// Synthesize voices every unit of script with the voice vm assigns to its
// speaker and returns the segments in ordinal order.
//
// Every speaker must be mapped before any call is made. If a unit fails for
// good, units not yet started are skipped and a PartialSynthesisError
// carries the segments before the first unit that has no audio. Cancelling ctx yields
// ErrCancelled and no segments.
func (s *Synthesizer) Synthesize(ctx context.Context, script domain.Script, vm domain.VoiceMap) ([]domain.AudioSegment, error) {
	if script.IsEmpty() {
		return nil, &domain.ConfigurationError{Field: "script", Reason: "nothing to synthesize"}
	}
	if missing := unmapped(script, vm); len(missing) > 0 {
		return nil, &domain.ConfigurationError{
			Field:  "voices",
			Reason: "no voice mapped for speaker(s) " + strings.Join(missing, ", "),
		}
	}

	units := Units(script, s.cfg.MergeRuns)

	pool, err := ants.NewPool(s.cfg.Concurrency, ants.WithPanicHandler(func(p any) {
		s.log.Error("Synthesis task panicked", "panic", p)
	}))
	if err != nil {
		return nil, fmt.Errorf("failed to create worker pool: %w", err)
	}
	defer pool.Release()

	runCtx, abort := context.WithCancel(ctx)
	defer abort()

	var (
		mu       sync.Mutex
		wg       sync.WaitGroup
		results  = make([]*domain.AudioSegment, len(units))
		failErr  error
		failedAt = -1
	)
	fail := func(ordinal int, err error) {
		mu.Lock()
		if failErr == nil {
			failErr, failedAt = err, ordinal
		}
		mu.Unlock()
		abort()
	}

	for _, u := range units {
		if runCtx.Err() != nil {
			break
		}
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()
			if runCtx.Err() != nil {
				return
			}
			seg, err := s.synthesizeUnit(runCtx, u, vm[u.Speaker])
			if err != nil {
				fail(u.Ordinal, err)
				return
			}
			mu.Lock()
			results[u.Ordinal] = &seg
			mu.Unlock()
		})
		if submitErr != nil {
			wg.Done()
			fail(u.Ordinal, fmt.Errorf("failed to schedule unit %d: %w", u.Ordinal, submitErr))
			break
		}
	}
	wg.Wait()

	if ctx.Err() != nil {
		return nil, errors.Join(domain.ErrCancelled, ctx.Err())
	}

	// Only the unbroken run of units from the start is kept, so a partial
	// never skips a line.
	segments := make([]domain.AudioSegment, 0, len(units))
	for i, r := range results {
		if r == nil {
			if failErr == nil {
				fail(i, fmt.Errorf("unit %d produced no audio", i))
			}
			break
		}
		segments = append(segments, *r)
	}

	if failErr != nil {
		s.log.Warn("Synthesis aborted", "failed_unit", failedAt, "produced", len(segments), "of", len(units), "err", failErr)
		return nil, &domain.PartialSynthesisError{Segments: segments, Failed: failedAt, Err: failErr}
	}

	s.log.Debug("Synthesized script", "units", len(units), "provider", s.provider.Name())
	return segments, nil
}

func (s *Synthesizer) synthesizeUnit(ctx context.Context, u Unit, voice domain.VoiceID) (domain.AudioSegment, error) {
	seg := domain.AudioSegment{Format: s.cfg.Format, Speaker: u.Speaker, Ordinal: u.Ordinal}

	var key string
	if s.cfg.Cache != nil {
		key = CacheKey(s.provider.Name(), voice, u.Text, s.cfg.Format)
		if data, ok := s.cfg.Cache.Get(key); ok {
			s.log.Debug("Cache hit", "unit", u.Ordinal, "bytes", len(data))
			seg.Samples = data
			return seg, nil
		}
	}

	err := retry.Do(ctx, s.cfg.Retry, s.log, func(ctx context.Context, attempt int) error {
		raw, err := s.provider.Synthesize(ctx, u.Text, voice)
		if err != nil {
			s.log.Debug("Synthesis call failed", "unit", u.Ordinal, "attempt", attempt, "err", err)
			return err
		}
		if len(raw.Data) == 0 {
			return &domain.TransientServiceError{Service: s.provider.Name(), Err: errNoAudio}
		}

		pcm, err := Convert(raw, s.cfg.Format)
		if err != nil {
			return &domain.PermanentRequestError{Service: s.provider.Name(), Reason: "unusable audio format", Err: err}
		}
		seg.Samples = pcm
		return nil
	})
	if err != nil {
		return domain.AudioSegment{}, err
	}

	if s.cfg.Cache != nil {
		if err := s.cfg.Cache.Put(key, seg.Samples); err != nil {
			s.log.Debug("Could not cache segment", "unit", u.Ordinal, "err", err)
		}
	}
	return seg, nil
}

func unmapped(s domain.Script, vm domain.VoiceMap) []string {
	var missing []string
	for _, sp := range s.Speakers() {
		if v, ok := vm[sp]; !ok || v == "" {
			missing = append(missing, sp)
		}
	}
	return missing
}
