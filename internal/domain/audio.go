package domain

import (
	"fmt"
	"time"
)

// VoiceID is an opaque provider-specific voice identifier.
type VoiceID string

// VoiceMap assigns a voice to every speaker label of a script.
type VoiceMap map[string]VoiceID

// AudioFormat describes signed little-endian PCM audio.
type AudioFormat struct {
	SampleRate int // Hz
	Channels   int // 1 = mono, 2 = stereo
	BitDepth   int // bits per sample
}

// DefaultAudioFormat is the session format: 24kHz mono 16-bit.
func DefaultAudioFormat() AudioFormat {
	return AudioFormat{SampleRate: 24000, Channels: 1, BitDepth: 16}
}

// FrameSize returns the number of bytes per sample frame.
func (f AudioFormat) FrameSize() int {
	return f.Channels * f.BitDepth / 8
}

// ByteRate returns the number of bytes per second of audio.
func (f AudioFormat) ByteRate() int {
	return f.SampleRate * f.FrameSize()
}

// Duration returns the playback length of n bytes of audio.
func (f AudioFormat) Duration(n int) time.Duration {
	fs := f.FrameSize()
	if fs == 0 || f.SampleRate == 0 {
		return 0
	}
	frames := int64(n / fs)
	return time.Duration(frames) * time.Second / time.Duration(f.SampleRate)
}

// BytesFor returns the byte length of d worth of audio, rounded down to
// whole frames.
func (f AudioFormat) BytesFor(d time.Duration) int {
	if d <= 0 {
		return 0
	}
	frames := int64(d) * int64(f.SampleRate) / int64(time.Second)
	return int(frames) * f.FrameSize()
}

// Validate checks that the format is playable 16-bit PCM.
func (f AudioFormat) Validate() error {
	if f.SampleRate < 8000 || f.SampleRate > 96000 {
		return fmt.Errorf("sample rate must be between 8000 and 96000 Hz, got %d", f.SampleRate)
	}
	if f.Channels != 1 && f.Channels != 2 {
		return fmt.Errorf("channels must be 1 or 2, got %d", f.Channels)
	}
	if f.BitDepth != 16 {
		return fmt.Errorf("bit depth must be 16, got %d", f.BitDepth)
	}
	return nil
}

// String implements fmt.Stringer.
func (f AudioFormat) String() string {
	return fmt.Sprintf("%dHz/%dch/%dbit", f.SampleRate, f.Channels, f.BitDepth)
}

// RawAudio is a provider response before session format conversion.
type RawAudio struct {
	Data   []byte
	Format AudioFormat
}

// AudioSegment is one synthesized unit, tagged for reassembly.
type AudioSegment struct {
	Samples []byte
	Format  AudioFormat
	Speaker string
	Ordinal int
}

// Duration returns the playback length of the segment.
func (s AudioSegment) Duration() time.Duration {
	return s.Format.Duration(len(s.Samples))
}

// ContentTypeWAV is the declared container type of assembled assets.
const ContentTypeWAV = "audio/wav"

// AudioAsset is the final assembled output.
type AudioAsset struct {
	ID          string
	Data        []byte
	ContentType string
	Format      AudioFormat
	Duration    time.Duration
	Script      Script
	CreatedAt   time.Time

	// Partial is set when the asset was assembled from an incomplete
	// synthesis at the caller's request.
	Partial bool
}
