package synth

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dgnsrekt/asmrgen/internal/domain"
	"github.com/dgnsrekt/asmrgen/internal/retry"
)

// fakeProvider returns a fixed-length tone per call, failing for texts
// listed in failures.
type fakeProvider struct {
	format   domain.AudioFormat
	frames   int
	failures map[string]error
	delay    time.Duration

	mu       sync.Mutex
	calls    map[string]int
	inflight atomic.Int32
	peak     atomic.Int32
}

func newFakeProvider() *fakeProvider {
	return &fakeProvider{
		format:   domain.DefaultAudioFormat(),
		frames:   240,
		failures: map[string]error{},
		calls:    map[string]int{},
	}
}

func (p *fakeProvider) Name() string { return "fake" }

func (p *fakeProvider) Synthesize(ctx context.Context, text string, voice domain.VoiceID) (domain.RawAudio, error) {
	n := p.inflight.Add(1)
	defer p.inflight.Add(-1)
	for {
		peak := p.peak.Load()
		if n <= peak || p.peak.CompareAndSwap(peak, n) {
			break
		}
	}

	p.mu.Lock()
	p.calls[text]++
	p.mu.Unlock()

	if p.delay > 0 {
		select {
		case <-time.After(p.delay):
		case <-ctx.Done():
			return domain.RawAudio{}, errors.Join(domain.ErrCancelled, ctx.Err())
		}
	}
	if err, ok := p.failures[text]; ok {
		return domain.RawAudio{}, err
	}

	data := make([]byte, p.frames*p.format.FrameSize())
	for i := range data {
		data[i] = byte(len(voice) + i%7)
	}
	return domain.RawAudio{Data: data, Format: p.format}, nil
}

func (p *fakeProvider) callCount(text string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.calls[text]
}

func (p *fakeProvider) totalCalls() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, c := range p.calls {
		n += c
	}
	return n
}

func testConfig(concurrency int) Config {
	cfg := DefaultConfig()
	cfg.Concurrency = concurrency
	cfg.Retry = retry.Policy{MaxAttempts: 3, InitialInterval: time.Millisecond, MaxInterval: time.Millisecond, Multiplier: 1}
	return cfg
}

func lines(texts ...string) domain.Script {
	out := make([]domain.ScriptLine, len(texts))
	for i, t := range texts {
		speaker := "a"
		if i%2 == 1 {
			speaker = "b"
		}
		out[i] = domain.ScriptLine{Speaker: speaker, Text: t}
	}
	return domain.NewScript(out...)
}

var voices = domain.VoiceMap{"a": "v1", "b": "v2"}

func TestSynthesizeOrdersSegments(t *testing.T) {
	p := newFakeProvider()
	s, err := New(p, testConfig(4))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	segs, err := s.Synthesize(context.Background(), lines("one", "two", "three", "four", "five", "six"), voices)
	if err != nil {
		t.Fatalf("Synthesize() error: %v", err)
	}
	if len(segs) != 6 {
		t.Fatalf("got %d segments, want 6", len(segs))
	}
	for i, seg := range segs {
		if seg.Ordinal != i {
			t.Errorf("segment %d has ordinal %d", i, seg.Ordinal)
		}
		if seg.Format != domain.DefaultAudioFormat() {
			t.Errorf("segment %d format = %v", i, seg.Format)
		}
		wantSpeaker := "a"
		if i%2 == 1 {
			wantSpeaker = "b"
		}
		if seg.Speaker != wantSpeaker {
			t.Errorf("segment %d speaker = %q, want %q", i, seg.Speaker, wantSpeaker)
		}
	}
}

func TestSynthesizeBoundsConcurrency(t *testing.T) {
	p := newFakeProvider()
	p.delay = 5 * time.Millisecond
	s, err := New(p, testConfig(2))
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	if _, err := s.Synthesize(context.Background(), lines("1", "2", "3", "4", "5", "6", "7", "8"), voices); err != nil {
		t.Fatalf("Synthesize() error: %v", err)
	}
	if peak := p.peak.Load(); peak > 2 {
		t.Errorf("peak concurrency = %d, want <= 2", peak)
	}
}

func TestSynthesizeUnmappedSpeaker(t *testing.T) {
	p := newFakeProvider()
	s, _ := New(p, testConfig(4))

	_, err := s.Synthesize(context.Background(), lines("one", "two"), domain.VoiceMap{"a": "v1"})
	var cfgErr *domain.ConfigurationError
	if !errors.As(err, &cfgErr) {
		t.Fatalf("expected ConfigurationError, got %T %v", err, err)
	}
	if !strings.Contains(cfgErr.Reason, "b") {
		t.Errorf("reason %q does not name the speaker", cfgErr.Reason)
	}
	if p.totalCalls() != 0 {
		t.Errorf("provider called %d times before the mapping check", p.totalCalls())
	}
}

func TestSynthesizePartialAfterTransientExhaustion(t *testing.T) {
	p := newFakeProvider()
	p.failures["three"] = &domain.TransientServiceError{Service: "fake", StatusCode: 503}
	s, _ := New(p, testConfig(1))

	_, err := s.Synthesize(context.Background(), lines("one", "two", "three", "four"), voices)

	var partial *domain.PartialSynthesisError
	if !errors.As(err, &partial) {
		t.Fatalf("expected PartialSynthesisError, got %T %v", err, err)
	}
	if len(partial.Segments) != 2 {
		t.Fatalf("partial carries %d segments, want 2", len(partial.Segments))
	}
	for i, seg := range partial.Segments {
		if seg.Ordinal != i {
			t.Errorf("partial segment %d has ordinal %d", i, seg.Ordinal)
		}
	}
	if partial.Failed != 2 {
		t.Errorf("Failed = %d, want 2", partial.Failed)
	}
	if got := p.callCount("three"); got != 3 {
		t.Errorf("failing unit called %d times, want 3", got)
	}
	if got := p.callCount("four"); got != 0 {
		t.Errorf("unit after the failure was called %d times", got)
	}
	if !domain.IsTransient(partial.Err) {
		t.Errorf("cause should be transient, got %v", partial.Err)
	}
}

// lateFailProvider fails "two" only after every later unit has finished.
type lateFailProvider struct {
	*fakeProvider
	later sync.WaitGroup
}

func (p *lateFailProvider) Synthesize(ctx context.Context, text string, voice domain.VoiceID) (domain.RawAudio, error) {
	if text == "two" {
		done := make(chan struct{})
		go func() { p.later.Wait(); close(done) }()
		select {
		case <-done:
		case <-ctx.Done():
		}
		return domain.RawAudio{}, &domain.PermanentRequestError{Service: "fake", StatusCode: 400}
	}
	raw, err := p.fakeProvider.Synthesize(ctx, text, voice)
	if text == "three" || text == "four" {
		p.later.Done()
	}
	return raw, err
}

func TestSynthesizePartialHasNoGaps(t *testing.T) {
	p := &lateFailProvider{fakeProvider: newFakeProvider()}
	p.later.Add(2)
	s, _ := New(p, testConfig(4))

	_, err := s.Synthesize(context.Background(), lines("one", "two", "three", "four"), voices)

	var partial *domain.PartialSynthesisError
	if !errors.As(err, &partial) {
		t.Fatalf("expected PartialSynthesisError, got %T %v", err, err)
	}
	if partial.Failed != 1 {
		t.Errorf("Failed = %d, want 1", partial.Failed)
	}
	if len(partial.Segments) != 1 || partial.Segments[0].Ordinal != 0 {
		t.Fatalf("partial segments = %d, want only ordinal 0", len(partial.Segments))
	}
	if p.callCount("four") != 1 {
		t.Errorf("later unit called %d times, want 1", p.callCount("four"))
	}
}

func TestSynthesizePermanentNotRetried(t *testing.T) {
	p := newFakeProvider()
	p.failures["one"] = &domain.PermanentRequestError{Service: "fake", StatusCode: 400}
	s, _ := New(p, testConfig(1))

	_, err := s.Synthesize(context.Background(), lines("one", "two"), voices)
	var partial *domain.PartialSynthesisError
	if !errors.As(err, &partial) {
		t.Fatalf("expected PartialSynthesisError, got %v", err)
	}
	if len(partial.Segments) != 0 {
		t.Errorf("partial carries %d segments, want 0", len(partial.Segments))
	}
	if got := p.callCount("one"); got != 1 {
		t.Errorf("permanent failure retried: %d calls", got)
	}
}

func TestSynthesizeCancelled(t *testing.T) {
	p := newFakeProvider()
	p.delay = 50 * time.Millisecond
	s, _ := New(p, testConfig(1))

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(10 * time.Millisecond)
		cancel()
	}()

	segs, err := s.Synthesize(ctx, lines("one", "two", "three"), voices)
	if segs != nil {
		t.Errorf("cancelled synthesis returned %d segments", len(segs))
	}
	if domain.KindOf(err) != domain.KindCancelled {
		t.Errorf("KindOf() = %q, want cancelled (err %v)", domain.KindOf(err), err)
	}
}

func TestSynthesizeResamplesAtBoundary(t *testing.T) {
	p := newFakeProvider()
	p.format = domain.AudioFormat{SampleRate: 48000, Channels: 2, BitDepth: 16}
	p.frames = 4800
	s, _ := New(p, testConfig(2))

	segs, err := s.Synthesize(context.Background(), lines("one", "two"), voices)
	if err != nil {
		t.Fatalf("Synthesize() error: %v", err)
	}
	for _, seg := range segs {
		if seg.Format != domain.DefaultAudioFormat() {
			t.Errorf("segment format = %v, want session format", seg.Format)
		}
		if got := len(seg.Samples); got != 2400*2 {
			t.Errorf("segment bytes = %d, want %d", got, 2400*2)
		}
		if seg.Duration() != 100*time.Millisecond {
			t.Errorf("segment duration = %v, want 100ms", seg.Duration())
		}
	}
}

func TestSynthesizeRejectsUnsupportedBitDepth(t *testing.T) {
	p := newFakeProvider()
	p.format = domain.AudioFormat{SampleRate: 24000, Channels: 1, BitDepth: 8}
	s, _ := New(p, testConfig(1))

	_, err := s.Synthesize(context.Background(), lines("one"), voices)
	var partial *domain.PartialSynthesisError
	if !errors.As(err, &partial) {
		t.Fatalf("expected PartialSynthesisError, got %v", err)
	}
	var perm *domain.PermanentRequestError
	if !errors.As(partial.Err, &perm) {
		t.Errorf("cause should be permanent, got %v", partial.Err)
	}
}

func TestSynthesizeMergeRuns(t *testing.T) {
	p := newFakeProvider()
	cfg := testConfig(2)
	cfg.MergeRuns = true
	s, _ := New(p, cfg)

	script := domain.NewScript(
		domain.ScriptLine{Speaker: "a", Text: "hello"},
		domain.ScriptLine{Speaker: "a", Text: "there"},
		domain.ScriptLine{Speaker: "b", Text: "hi"},
		domain.ScriptLine{Speaker: "a", Text: "bye"},
	)
	segs, err := s.Synthesize(context.Background(), script, voices)
	if err != nil {
		t.Fatalf("Synthesize() error: %v", err)
	}
	if len(segs) != 3 {
		t.Fatalf("got %d segments, want 3", len(segs))
	}
	if p.callCount("hello there") != 1 {
		t.Errorf("merged run was not voiced in one call")
	}
}

type mapCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func (c *mapCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	v, ok := c.data[key]
	return v, ok
}

func (c *mapCache) Put(key string, value []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = value
	return nil
}

func TestSynthesizeCacheHitSkipsProvider(t *testing.T) {
	p := newFakeProvider()
	cfg := testConfig(2)
	cfg.Cache = &mapCache{data: map[string][]byte{}}
	s, _ := New(p, cfg)

	script := lines("one", "two")
	first, err := s.Synthesize(context.Background(), script, voices)
	if err != nil {
		t.Fatalf("Synthesize() error: %v", err)
	}
	second, err := s.Synthesize(context.Background(), script, voices)
	if err != nil {
		t.Fatalf("Synthesize() error: %v", err)
	}
	if p.totalCalls() != 2 {
		t.Errorf("provider calls = %d, want 2", p.totalCalls())
	}
	for i := range first {
		if string(first[i].Samples) != string(second[i].Samples) {
			t.Errorf("cached segment %d differs", i)
		}
	}
}

func TestCacheKeyVariesByInput(t *testing.T) {
	f := domain.DefaultAudioFormat()
	base := CacheKey("gemini", "Puck", "hello", f)
	if base != CacheKey("gemini", "Puck", "hello", f) {
		t.Error("CacheKey is not stable")
	}
	others := []string{
		CacheKey("elevenlabs", "Puck", "hello", f),
		CacheKey("gemini", "Kore", "hello", f),
		CacheKey("gemini", "Puck", "hello!", f),
		CacheKey("gemini", "Puck", "hello", domain.AudioFormat{SampleRate: 44100, Channels: 1, BitDepth: 16}),
	}
	for i, k := range others {
		if k == base {
			t.Errorf("variant %d collides with base key", i)
		}
	}
}
