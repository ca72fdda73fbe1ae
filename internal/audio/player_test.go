package audio

import (
	"context"
	"errors"
	"io"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/dgnsrekt/asmrgen/internal/assemble"
	"github.com/dgnsrekt/asmrgen/internal/domain"
)

// fakeTrack drains its reader at a fixed pace while playing.
type fakeTrack struct {
	r       io.Reader
	chunk   int
	played  atomic.Int64
	playing atomic.Bool
	closed  atomic.Bool
	volume  float64
	stop    chan struct{}
	once    sync.Once
}

func (t *fakeTrack) Play() {
	t.playing.Store(true)
	go func() {
		buf := make([]byte, t.chunk)
		for {
			select {
			case <-t.stop:
				return
			case <-time.After(time.Millisecond):
			}
			n, err := t.r.Read(buf)
			t.played.Add(int64(n))
			if err != nil {
				t.playing.Store(false)
				return
			}
		}
	}()
}

func (t *fakeTrack) Pause() {
	t.once.Do(func() { close(t.stop) })
	t.playing.Store(false)
}

func (t *fakeTrack) IsPlaying() bool     { return t.playing.Load() }
func (t *fakeTrack) SetVolume(v float64) { t.volume = v }
func (t *fakeTrack) Close() error {
	t.closed.Store(true)
	t.once.Do(func() { close(t.stop) })
	return nil
}

type fakeDevice struct {
	chunk  int
	tracks []*fakeTrack
}

func (d *fakeDevice) NewTrack(r io.Reader) track {
	t := &fakeTrack{r: r, chunk: d.chunk, stop: make(chan struct{})}
	d.tracks = append(d.tracks, t)
	return t
}

type opener struct {
	dev     *fakeDevice
	formats []domain.AudioFormat
	err     error
}

func (o *opener) open(f domain.AudioFormat, _ time.Duration) (device, error) {
	o.formats = append(o.formats, f)
	return o.dev, o.err
}

func testPlayer(t *testing.T, chunk int) (*Player, *opener) {
	t.Helper()
	o := &opener{dev: &fakeDevice{chunk: chunk}}
	cfg := DefaultConfig()
	cfg.Volume = 0.5
	cfg.PollInterval = time.Millisecond
	p, err := newPlayer(cfg, o.open)
	if err != nil {
		t.Fatalf("newPlayer() error: %v", err)
	}
	return p, o
}

func writeWAV(t *testing.T, pcm []byte, f domain.AudioFormat) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "asmr_test.wav")
	if err := os.WriteFile(path, assemble.EncodeWAV(pcm, f), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestPlayFilePlaysToEnd(t *testing.T) {
	p, o := testPlayer(t, 4096)
	f := domain.DefaultAudioFormat()
	path := writeWAV(t, make([]byte, 9600), f)

	if err := p.PlayFile(context.Background(), path); err != nil {
		t.Fatalf("PlayFile() error: %v", err)
	}

	if len(o.formats) != 1 || o.formats[0] != f {
		t.Errorf("device opened with %v", o.formats)
	}
	tr := o.dev.tracks[0]
	if tr.played.Load() != 9600 {
		t.Errorf("played %d bytes, want 9600", tr.played.Load())
	}
	if !tr.closed.Load() || tr.volume != 0.5 {
		t.Errorf("track closed=%v volume=%v", tr.closed.Load(), tr.volume)
	}
	if p.State() != StateStopped {
		t.Errorf("State() = %s", p.State())
	}
}

func TestPlayConvertsToDeviceFormat(t *testing.T) {
	p, o := testPlayer(t, 1<<20)
	ctx := context.Background()

	first := domain.DefaultAudioFormat()
	if err := p.Play(ctx, make([]byte, 4800), first); err != nil {
		t.Fatalf("Play() error: %v", err)
	}

	stereo := domain.AudioFormat{SampleRate: 48000, Channels: 2, BitDepth: 16}
	if err := p.Play(ctx, make([]byte, 19200), stereo); err != nil {
		t.Fatalf("Play() error: %v", err)
	}

	if len(o.formats) != 1 {
		t.Fatalf("device opened %d times", len(o.formats))
	}
	// 100ms of 48kHz stereo becomes 100ms of 24kHz mono.
	if got := o.dev.tracks[1].played.Load(); got != 4800 {
		t.Errorf("converted track played %d bytes, want 4800", got)
	}
}

func TestPlayCancelled(t *testing.T) {
	p, o := testPlayer(t, 2)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := p.Play(ctx, make([]byte, 48000), domain.DefaultAudioFormat())
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Fatalf("Play() error = %v, want deadline", err)
	}
	tr := o.dev.tracks[0]
	if tr.IsPlaying() || !tr.closed.Load() {
		t.Error("track still playing after cancel")
	}
	if tr.played.Load() >= 48000 {
		t.Error("cancelled track played to the end")
	}
}

func TestPlayErrors(t *testing.T) {
	p, o := testPlayer(t, 1024)
	ctx := context.Background()

	if err := p.Play(ctx, nil, domain.DefaultAudioFormat()); err == nil {
		t.Error("empty audio accepted")
	}
	if err := p.PlayFile(ctx, filepath.Join(t.TempDir(), "missing.wav")); err == nil {
		t.Error("missing file accepted")
	}

	garbage := filepath.Join(t.TempDir(), "garbage.wav")
	if err := os.WriteFile(garbage, []byte("this is not audio at all"), 0o644); err != nil {
		t.Fatal(err)
	}
	if err := p.PlayFile(ctx, garbage); !errors.Is(err, assemble.ErrNotWAV) {
		t.Errorf("PlayFile(garbage) error = %v", err)
	}

	o.err = errors.New("no device")
	if err := p.Play(ctx, make([]byte, 10), domain.DefaultAudioFormat()); err == nil {
		t.Error("device failure not reported")
	}

	if err := p.Close(); err != nil {
		t.Fatalf("Close() error: %v", err)
	}
	if err := p.Play(ctx, make([]byte, 10), domain.DefaultAudioFormat()); !errors.Is(err, ErrClosed) {
		t.Errorf("Play() after Close = %v", err)
	}
}

func TestConfigValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"volume", func(c *Config) { c.Volume = 1.5 }},
		{"buffer", func(c *Config) { c.BufferSize = 0 }},
		{"poll", func(c *Config) { c.PollInterval = 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.modify(&cfg)
			if _, err := NewPlayer(cfg); err == nil {
				t.Error("invalid config accepted")
			}
		})
	}
}
