package synth

import (
	"encoding/binary"
	"testing"

	"github.com/dgnsrekt/asmrgen/internal/domain"
)

func pcm(samples ...int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

func samplesOf(data []byte) []int16 {
	out := make([]int16, len(data)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return out
}

func TestConvert(t *testing.T) {
	mono24 := domain.DefaultAudioFormat()
	stereo24 := domain.AudioFormat{SampleRate: 24000, Channels: 2, BitDepth: 16}
	mono12 := domain.AudioFormat{SampleRate: 12000, Channels: 1, BitDepth: 16}

	tests := []struct {
		name   string
		raw    domain.RawAudio
		target domain.AudioFormat
		want   []int16
	}{
		{
			name:   "identity",
			raw:    domain.RawAudio{Data: pcm(1, 2, 3), Format: mono24},
			target: mono24,
			want:   []int16{1, 2, 3},
		},
		{
			name:   "identity drops trailing partial frame",
			raw:    domain.RawAudio{Data: append(pcm(1, 2), 0x7f), Format: mono24},
			target: mono24,
			want:   []int16{1, 2},
		},
		{
			name:   "downmix averages channels",
			raw:    domain.RawAudio{Data: pcm(100, 200, -50, 50), Format: stereo24},
			target: mono24,
			want:   []int16{150, 0},
		},
		{
			name:   "upmix duplicates",
			raw:    domain.RawAudio{Data: pcm(7, -7), Format: mono24},
			target: stereo24,
			want:   []int16{7, 7, -7, -7},
		},
		{
			name:   "upsample interpolates",
			raw:    domain.RawAudio{Data: pcm(0, 100, 200), Format: mono12},
			target: mono24,
			want:   []int16{0, 50, 100, 150, 200, 200},
		},
		{
			name:   "downsample",
			raw:    domain.RawAudio{Data: pcm(0, 10, 20, 30), Format: mono24},
			target: mono12,
			want:   []int16{0, 20},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			out, err := Convert(tt.raw, tt.target)
			if err != nil {
				t.Fatalf("Convert() error: %v", err)
			}
			got := samplesOf(out)
			if len(got) != len(tt.want) {
				t.Fatalf("Convert() = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("Convert() = %v, want %v", got, tt.want)
				}
			}
		})
	}
}

func TestConvertLengthIsProportional(t *testing.T) {
	src := domain.AudioFormat{SampleRate: 22050, Channels: 1, BitDepth: 16}
	raw := domain.RawAudio{Data: make([]byte, 22050*2), Format: src}

	out, err := Convert(raw, domain.DefaultAudioFormat())
	if err != nil {
		t.Fatalf("Convert() error: %v", err)
	}
	if got := len(out) / 2; got != 24000 {
		t.Errorf("one second resampled to %d frames, want 24000", got)
	}
}

func TestConvertRejects(t *testing.T) {
	target := domain.DefaultAudioFormat()
	bad := []domain.AudioFormat{
		{SampleRate: 24000, Channels: 1, BitDepth: 8},
		{SampleRate: 24000, Channels: 1, BitDepth: 24},
		{SampleRate: 24000, Channels: 1, BitDepth: 32},
		{SampleRate: 24000, Channels: 6, BitDepth: 16},
		{SampleRate: 0, Channels: 1, BitDepth: 16},
	}
	for _, f := range bad {
		if _, err := Convert(domain.RawAudio{Data: pcm(1, 2), Format: f}, target); err == nil {
			t.Errorf("Convert(%v) succeeded, want error", f)
		}
	}
}
