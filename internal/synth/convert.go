package synth

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/dgnsrekt/asmrgen/internal/domain"
)

// Convert brings provider audio into the session format. Channel layout is
// converted first (down-mix by averaging, up-mix by duplication), then the
// sample rate by linear interpolation. Only 16-bit input is accepted.
func Convert(raw domain.RawAudio, target domain.AudioFormat) ([]byte, error) {
	src := raw.Format
	if src.BitDepth != 16 {
		return nil, fmt.Errorf("unsupported bit depth %d: only 16-bit PCM is accepted", src.BitDepth)
	}
	if src.Channels != 1 && src.Channels != 2 {
		return nil, fmt.Errorf("unsupported channel count %d", src.Channels)
	}
	if src.SampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", src.SampleRate)
	}
	if err := target.Validate(); err != nil {
		return nil, fmt.Errorf("invalid session format: %w", err)
	}

	if src == target {
		n := len(raw.Data) - len(raw.Data)%src.FrameSize()
		return raw.Data[:n], nil
	}

	samples := decode(raw.Data, src.Channels)
	if src.Channels != target.Channels {
		samples = remix(samples, src.Channels, target.Channels)
	}
	if src.SampleRate != target.SampleRate {
		samples = resample(samples, target.Channels, src.SampleRate, target.SampleRate)
	}
	return encode(samples), nil
}

// decode reads whole frames of little-endian int16 samples.
func decode(data []byte, channels int) []int16 {
	frameSize := 2 * channels
	n := (len(data) / frameSize) * channels
	out := make([]int16, n)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(data[i*2:]))
	}
	return out
}

func encode(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

func remix(samples []int16, from, to int) []int16 {
	frames := len(samples) / from
	out := make([]int16, frames*to)
	for f := 0; f < frames; f++ {
		switch {
		case from == 2 && to == 1:
			l, r := int32(samples[f*2]), int32(samples[f*2+1])
			out[f] = int16((l + r) / 2)
		case from == 1 && to == 2:
			out[f*2] = samples[f]
			out[f*2+1] = samples[f]
		}
	}
	return out
}

func resample(samples []int16, channels, from, to int) []int16 {
	frames := len(samples) / channels
	if frames == 0 {
		return nil
	}
	outFrames := int(int64(frames) * int64(to) / int64(from))
	out := make([]int16, outFrames*channels)
	step := float64(from) / float64(to)

	for i := 0; i < outFrames; i++ {
		pos := float64(i) * step
		idx := int(pos)
		frac := pos - float64(idx)

		for ch := 0; ch < channels; ch++ {
			if idx >= frames-1 {
				out[i*channels+ch] = samples[(frames-1)*channels+ch]
				continue
			}
			a := float64(samples[idx*channels+ch])
			b := float64(samples[(idx+1)*channels+ch])
			out[i*channels+ch] = int16(math.Round(a*(1-frac) + b*frac))
		}
	}
	return out
}
