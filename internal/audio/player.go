package audio

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"sync"
	"sync/atomic"
	"time"

	"github.com/charmbracelet/log"
	"github.com/ebitengine/oto/v3"

	"github.com/dgnsrekt/asmrgen/internal/assemble"
	"github.com/dgnsrekt/asmrgen/internal/domain"
	"github.com/dgnsrekt/asmrgen/internal/synth"
)

// ErrClosed is returned by a closed player.
var ErrClosed = errors.New("player is closed")

// PlayerState represents the current state of the player.
type PlayerState int32

const (
	StateStopped PlayerState = iota
	StatePlaying
	StateClosed
)

func (s PlayerState) String() string {
	switch s {
	case StateStopped:
		return "stopped"
	case StatePlaying:
		return "playing"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// track is one playing stream. *oto.Player satisfies it.
type track interface {
	Play()
	Pause()
	IsPlaying() bool
	SetVolume(float64)
	Close() error
}

// device creates tracks in its fixed output format.
type device interface {
	NewTrack(r io.Reader) track
}

// openFunc opens the output device for a format.
type openFunc func(f domain.AudioFormat, buffer time.Duration) (device, error)

// Config contains configuration for the player.
type Config struct {
	// Volume is between 0 and 1.
	Volume float64

	// BufferSize is the device buffer length.
	BufferSize time.Duration

	// PollInterval is how often the end of playback is checked.
	PollInterval time.Duration

	Logger *log.Logger
}

// DefaultConfig returns full volume with a 100ms buffer.
func DefaultConfig() Config {
	return Config{
		Volume:       1.0,
		BufferSize:   100 * time.Millisecond,
		PollInterval: 50 * time.Millisecond,
	}
}

// Validate checks the ranges.
func (c Config) Validate() error {
	if c.Volume < 0 || c.Volume > 1 {
		return fmt.Errorf("volume must be between 0.0 and 1.0, got %f", c.Volume)
	}
	if c.BufferSize <= 0 {
		return errors.New("buffer size must be positive")
	}
	if c.PollInterval <= 0 {
		return errors.New("poll interval must be positive")
	}
	return nil
}

// Player plays PCM through a single output device. The device is opened on
// first use in the format of the first file; oto allows one context per
// process, so later files in other formats are converted to it.
type Player struct {
	cfg  Config
	log  *log.Logger
	open openFunc

	state atomic.Int32

	// playMu serialises playback.
	playMu sync.Mutex

	mu     sync.Mutex
	dev    device
	format domain.AudioFormat
}

// NewPlayer creates a player backed by the system audio device.
func NewPlayer(cfg Config) (*Player, error) {
	return newPlayer(cfg, openOto)
}

func newPlayer(cfg Config, open openFunc) (*Player, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	p := &Player{cfg: cfg, log: logger.WithPrefix("audio"), open: open}
	p.state.Store(int32(StateStopped))
	return p, nil
}

// State returns the current player state.
func (p *Player) State() PlayerState {
	return PlayerState(p.state.Load())
}

// PlayFile decodes a WAV file and plays it to the end or until ctx is done.
func (p *Player) PlayFile(ctx context.Context, path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("unable to read audio file: %w", err)
	}
	pcm, format, err := assemble.DecodeWAV(data)
	if err != nil {
		return fmt.Errorf("unable to decode %s: %w", path, err)
	}
	return p.Play(ctx, pcm, format)
}

// Play plays PCM in format f and blocks until it ends or ctx is done. A
// cancelled playback returns the context error.
func (p *Player) Play(ctx context.Context, pcm []byte, f domain.AudioFormat) error {
	if len(pcm) == 0 {
		return errors.New("audio data is empty")
	}

	p.playMu.Lock()
	defer p.playMu.Unlock()

	if p.State() == StateClosed {
		return ErrClosed
	}

	dev, out, err := p.device(f)
	if err != nil {
		return err
	}
	if out != f {
		if pcm, err = synth.Convert(domain.RawAudio{Data: pcm, Format: f}, out); err != nil {
			return fmt.Errorf("unable to convert %s to %s: %w", f, out, err)
		}
	}

	// The reader holds pcm alive until the track is closed.
	t := dev.NewTrack(bytes.NewReader(pcm))
	defer func() { _ = t.Close() }()
	t.SetVolume(p.cfg.Volume)

	p.state.Store(int32(StatePlaying))
	defer p.state.CompareAndSwap(int32(StatePlaying), int32(StateStopped))

	p.log.Debug("Playing audio", "format", out, "duration", out.Duration(len(pcm)))
	t.Play()

	ticker := time.NewTicker(p.cfg.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			t.Pause()
			return ctx.Err()
		case <-ticker.C:
			if !t.IsPlaying() {
				return nil
			}
		}
	}
}

// device opens the output on first use.
func (p *Player) device(f domain.AudioFormat) (device, domain.AudioFormat, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.dev != nil {
		return p.dev, p.format, nil
	}
	if err := f.Validate(); err != nil {
		return nil, domain.AudioFormat{}, err
	}
	dev, err := p.open(f, p.cfg.BufferSize)
	if err != nil {
		return nil, domain.AudioFormat{}, fmt.Errorf("failed to open audio device: %w", err)
	}
	p.dev, p.format = dev, f
	return dev, f, nil
}

// Close stops accepting playback. A playback in progress finishes first.
func (p *Player) Close() error {
	p.playMu.Lock()
	defer p.playMu.Unlock()
	p.state.Store(int32(StateClosed))
	return nil
}

// otoDevice adapts an oto context.
type otoDevice struct {
	ctx *oto.Context
}

func (d otoDevice) NewTrack(r io.Reader) track {
	return d.ctx.NewPlayer(r)
}

func openOto(f domain.AudioFormat, buffer time.Duration) (device, error) {
	if f.BitDepth != 16 {
		return nil, fmt.Errorf("bit depth must be 16, got %d", f.BitDepth)
	}
	ctx, ready, err := oto.NewContext(&oto.NewContextOptions{
		SampleRate:   f.SampleRate,
		ChannelCount: f.Channels,
		Format:       oto.FormatSignedInt16LE,
		BufferSize:   buffer,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create oto context: %w", err)
	}
	<-ready
	return otoDevice{ctx: ctx}, nil
}
