package voice

import (
	"fmt"
	"strings"

	"github.com/sahilm/fuzzy"

	"github.com/dgnsrekt/asmrgen/internal/domain"
)

// Voice describes one prebuilt synthesis voice.
type Voice struct {
	ID    domain.VoiceID
	Style string
}

// GeminiVoices lists the prebuilt Gemini speech voices.
var GeminiVoices = []Voice{
	{"Enceladus", "breathy"},
	{"Puck", "upbeat"},
	{"Charon", "informative"},
	{"Kore", "firm"},
	{"Achernar", "soft"},
	{"Achird", "friendly"},
	{"Algenib", "gravelly"},
	{"Algieba", "smooth"},
	{"Alnilam", "firm"},
	{"Aoede", "breezy"},
	{"Autonoe", "bright"},
	{"Callirrhoe", "easy-going"},
	{"Despina", "smooth"},
	{"Erinome", "clear"},
	{"Fenrir", "excitable"},
	{"Gacrux", "mature"},
	{"Iapetus", "clear"},
	{"Laomedeia", "upbeat"},
	{"Leda", "youthful"},
	{"Orus", "firm"},
	{"Pulcherrima", "forward"},
	{"Rasalgethi", "informative"},
	{"Sadachbia", "lively"},
	{"Sadaltager", "knowledgeable"},
	{"Schedar", "even"},
	{"Sulafat", "warm"},
	{"Umbriel", "easy-going"},
	{"Vindemiatrix", "gentle"},
	{"Zephyr", "bright"},
	{"Zubenelgenubi", "casual"},
}

// DefaultPool is the default voice rotation.
var DefaultPool = []domain.VoiceID{"Enceladus", "Puck", "Charon", "Kore"}

// ElevenLabsPool is the default rotation for ElevenLabs, made of premade
// voice IDs (Rachel, Adam, Bella, Antoni). ElevenLabs voices are addressed
// by ID, so overrides for it are used verbatim.
var ElevenLabsPool = []domain.VoiceID{
	"21m00Tcm4TlvDq8ikWAM",
	"pNInz6obpgDQGcFmaJgB",
	"EXAVITQu4vr4xnSDxMaL",
	"ErXwobaYiN019PkySvjV",
}

// Catalog is a searchable list of voices.
type Catalog struct {
	voices []Voice
	names  []string
}

// NewCatalog creates a catalog over voices.
func NewCatalog(voices []Voice) *Catalog {
	c := &Catalog{voices: append([]Voice(nil), voices...)}
	for _, v := range c.voices {
		c.names = append(c.names, string(v.ID))
	}
	return c
}

// Voices returns the catalog entries.
func (c *Catalog) Voices() []Voice {
	return append([]Voice(nil), c.voices...)
}

// Lookup finds the voice best matching name. An exact, case-insensitive
// match wins; otherwise the best fuzzy match is used.
func (c *Catalog) Lookup(name string) (Voice, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return Voice{}, fmt.Errorf("voice name is empty")
	}
	for _, v := range c.voices {
		if strings.EqualFold(string(v.ID), name) {
			return v, nil
		}
	}

	matches := fuzzy.Find(strings.ToLower(name), lowerAll(c.names))
	if len(matches) == 0 {
		return Voice{}, fmt.Errorf("no voice matches %q", name)
	}
	return c.voices[matches[0].Index], nil
}

// ParseOverrides parses "label=voice" pairs. When c is non-nil, voice names
// are looked up in the catalog; otherwise they are used verbatim.
func ParseOverrides(pairs []string, c *Catalog) (domain.VoiceMap, error) {
	out := make(domain.VoiceMap, len(pairs))
	for _, pair := range pairs {
		label, name, ok := strings.Cut(pair, "=")
		label, name = strings.TrimSpace(label), strings.TrimSpace(name)
		if !ok || label == "" || name == "" {
			return nil, &domain.ConfigurationError{Field: "voice", Reason: fmt.Sprintf("%q is not in label=voice form", pair)}
		}
		if err := domain.ValidateLabel(label); err != nil {
			return nil, &domain.ConfigurationError{Field: "voice", Reason: err.Error()}
		}

		id := domain.VoiceID(name)
		if c != nil {
			v, err := c.Lookup(name)
			if err != nil {
				return nil, &domain.ConfigurationError{Field: "voice", Reason: err.Error()}
			}
			id = v.ID
		}
		out[label] = id
	}
	return out, nil
}

func lowerAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = strings.ToLower(s)
	}
	return out
}
