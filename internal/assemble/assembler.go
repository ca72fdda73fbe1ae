// Package assemble joins synthesized segments into a single WAV asset.
package assemble

import (
	"fmt"
	"sort"
	"time"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/asmrgen/internal/domain"
)

// Config holds the silence inserted between segments.
type Config struct {
	// SpeakerGap separates segments of different speakers. Must be positive.
	SpeakerGap time.Duration

	// SameSpeakerGap separates consecutive segments of one speaker. May be
	// zero.
	SameSpeakerGap time.Duration

	Logger *log.Logger
}

// DefaultConfig returns a 500ms speaker change pause and a 150ms breath
// between lines of the same speaker.
func DefaultConfig() Config {
	return Config{
		SpeakerGap:     500 * time.Millisecond,
		SameSpeakerGap: 150 * time.Millisecond,
	}
}

// Validate checks the gap ranges.
func (c Config) Validate() error {
	if c.SpeakerGap <= 0 {
		return fmt.Errorf("speaker gap must be positive, got %s", c.SpeakerGap)
	}
	if c.SameSpeakerGap < 0 {
		return fmt.Errorf("same speaker gap cannot be negative, got %s", c.SameSpeakerGap)
	}
	return nil
}

// Assembler orders segments and writes them into a WAV container.
type Assembler struct {
	cfg Config
	log *log.Logger
}

// New creates an Assembler.
func New(cfg Config) (*Assembler, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid assembly config: %w", err)
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}
	return &Assembler{cfg: cfg, log: logger.WithPrefix("assemble")}, nil
}

// Assemble sorts segments by ordinal, joins them with silence gaps and
// returns a WAV asset. The input slice is not modified, so the output bytes
// do not depend on arrival order. The asset's ID, script and timestamps are
// left for the caller.
func (a *Assembler) Assemble(segments []domain.AudioSegment) (domain.AudioAsset, error) {
	if len(segments) == 0 {
		return domain.AudioAsset{}, &domain.AssemblyError{Reason: "no segments to assemble"}
	}

	ordered := make([]domain.AudioSegment, len(segments))
	copy(ordered, segments)
	sort.SliceStable(ordered, func(i, j int) bool { return ordered[i].Ordinal < ordered[j].Ordinal })

	format := ordered[0].Format
	if err := format.Validate(); err != nil {
		return domain.AudioAsset{}, &domain.AssemblyError{Reason: err.Error()}
	}

	speakerGap := format.BytesFor(a.cfg.SpeakerGap)
	sameGap := format.BytesFor(a.cfg.SameSpeakerGap)

	size := 0
	for i, seg := range ordered {
		if i > 0 && seg.Ordinal == ordered[i-1].Ordinal {
			return domain.AudioAsset{}, &domain.AssemblyError{Reason: fmt.Sprintf("duplicate segment ordinal %d", seg.Ordinal)}
		}
		if seg.Format != format {
			return domain.AudioAsset{}, &domain.AssemblyError{
				Reason: fmt.Sprintf("segment %d is %s, expected %s", seg.Ordinal, seg.Format, format),
			}
		}
		if len(seg.Samples)%format.FrameSize() != 0 {
			return domain.AudioAsset{}, &domain.AssemblyError{Reason: fmt.Sprintf("segment %d is not frame aligned", seg.Ordinal)}
		}
		size += len(seg.Samples)
		if i > 0 {
			size += gapBetween(ordered[i-1], seg, speakerGap, sameGap)
		}
	}

	pcm := make([]byte, 0, size)
	for i, seg := range ordered {
		if i > 0 {
			// make zero-fills, so the gap is silence.
			pcm = append(pcm, make([]byte, gapBetween(ordered[i-1], seg, speakerGap, sameGap))...)
		}
		pcm = append(pcm, seg.Samples...)
	}

	asset := domain.AudioAsset{
		Data:        EncodeWAV(pcm, format),
		ContentType: domain.ContentTypeWAV,
		Format:      format,
		Duration:    format.Duration(len(pcm)),
	}
	a.log.Debug("Assembled audio", "segments", len(ordered), "duration", asset.Duration, "bytes", len(asset.Data))
	return asset, nil
}

func gapBetween(prev, next domain.AudioSegment, speakerGap, sameGap int) int {
	if prev.Speaker == next.Speaker {
		return sameGap
	}
	return speakerGap
}
