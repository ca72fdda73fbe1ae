// Package textgen turns a generation request into a speaker-tagged script
// by prompting a language model.
package textgen

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/asmrgen/internal/domain"
	"github.com/dgnsrekt/asmrgen/internal/retry"
	"github.com/dgnsrekt/asmrgen/internal/script"
)

var errEmptyResponse = errors.New("model returned no script lines")

// Config holds the generator settings.
type Config struct {
	MinWords       int
	MaxWords       int
	Speakers       []string
	DefaultSpeaker string
	Retry          retry.Policy
	Logger         *log.Logger
}

// DefaultConfig returns a two-voice vocabulary with a 50 to 1500 word range.
func DefaultConfig() Config {
	return Config{
		MinWords:       50,
		MaxWords:       1500,
		Speakers:       []string{domain.DefaultSpeaker, "companion"},
		DefaultSpeaker: domain.DefaultSpeaker,
		Retry:          retry.DefaultPolicy(),
	}
}

// Validate checks the config ranges.
func (c Config) Validate() error {
	if c.MinWords < 1 {
		return fmt.Errorf("min words must be positive, got %d", c.MinWords)
	}
	if c.MaxWords < c.MinWords {
		return fmt.Errorf("max words %d is below min words %d", c.MaxWords, c.MinWords)
	}
	if len(c.Speakers) == 0 {
		return errors.New("speaker vocabulary is empty")
	}
	for _, s := range c.Speakers {
		if err := domain.ValidateLabel(s); err != nil {
			return err
		}
	}
	return c.Retry.Validate()
}

// Generator prompts a TextProvider and parses its answer.
type Generator struct {
	provider domain.TextProvider
	cfg      Config
	parser   *script.Parser
	log      *log.Logger
}

// New creates a Generator.
func New(provider domain.TextProvider, cfg Config) (*Generator, error) {
	if provider == nil {
		return nil, errors.New("text provider is required")
	}
	if cfg.DefaultSpeaker == "" {
		cfg.DefaultSpeaker = domain.DefaultSpeaker
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid text generator config: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	// The default speaker must always be recognisable as a tag.
	vocab := append([]string(nil), cfg.Speakers...)
	if !containsFold(vocab, cfg.DefaultSpeaker) {
		vocab = append(vocab, cfg.DefaultSpeaker)
	}

	return &Generator{
		provider: provider,
		cfg:      cfg,
		parser:   script.NewParser(script.Options{Vocabulary: vocab, DefaultSpeaker: cfg.DefaultSpeaker}),
		log:      logger.WithPrefix("textgen"),
	}, nil
}

// Clamp forces words into the configured range.
func (g *Generator) Clamp(words int) int {
	switch {
	case words < g.cfg.MinWords:
		return g.cfg.MinWords
	case words > g.cfg.MaxWords:
		return g.cfg.MaxWords
	default:
		return words
	}
}

// Generate writes a script for req. Transient provider failures are retried
// under the configured policy. An empty answer is retried once before it
// becomes an EmptyGenerationError.
func (g *Generator) Generate(ctx context.Context, req domain.AIGenerated) (domain.Script, error) {
	if strings.TrimSpace(req.Theme) == "" && strings.TrimSpace(req.CustomPrompt) == "" {
		return domain.Script{}, &domain.ConfigurationError{Field: "theme", Reason: "theme is empty"}
	}

	words := g.Clamp(req.TargetLengthWords)
	if words != req.TargetLengthWords {
		g.log.Debug("Clamped target length", "requested", req.TargetLengthWords, "words", words)
	}
	prompt := g.Prompt(req, words)

	var (
		result    domain.Script
		empties   int
		attempts  int
		lastEmpty bool
	)
	err := retry.Do(ctx, g.cfg.Retry, g.log, func(ctx context.Context, attempt int) error {
		attempts = attempt
		lastEmpty = false

		raw, err := g.provider.Complete(ctx, prompt, words)
		if err != nil {
			g.log.Warn("Text generation failed", "provider", g.provider.Name(), "attempt", attempt, "err", err)
			return err
		}

		s := g.parser.Parse(raw)
		if s.IsEmpty() {
			empties++
			lastEmpty = true
			if empties > 1 {
				return &domain.EmptyGenerationError{Attempts: attempt}
			}
			return &domain.TransientServiceError{Service: g.provider.Name(), Err: errEmptyResponse}
		}

		result = s
		return nil
	})
	if err != nil {
		if lastEmpty && domain.IsTransient(err) {
			return domain.Script{}, &domain.EmptyGenerationError{Attempts: attempts}
		}
		return domain.Script{}, err
	}

	g.log.Debug("Generated script", "lines", result.Len(), "words", result.WordCount(), "speakers", result.Speakers())
	return result, nil
}

// Prompt builds the model prompt for req at the given length.
func (g *Generator) Prompt(req domain.AIGenerated, words int) string {
	var b strings.Builder

	if custom := strings.TrimSpace(req.CustomPrompt); custom != "" {
		b.WriteString(custom)
		b.WriteString("\n\n")
		fmt.Fprintf(&b, "Length: about %d words.\n\n", words)
	} else {
		b.WriteString("Write a calm, intimate ASMR script that will be read aloud by text-to-speech voices.\n\n")
		fmt.Fprintf(&b, "Theme: %s\n", strings.TrimSpace(req.Theme))
		fmt.Fprintf(&b, "Length: about %d words.\n\n", words)
		b.WriteString("Keep the register soft, slow and soothing with short sentences. ")
		b.WriteString("Add delivery cues in square brackets where they help, such as [pause], [whispering] or [soft laugh].\n\n")
	}

	b.WriteString("Format rules:\n")
	b.WriteString("- Start every line with a speaker label followed by a colon.\n")
	fmt.Fprintf(&b, "- Use only these labels: %s.\n", strings.Join(g.cfg.Speakers, ", "))
	fmt.Fprintf(&b, "- Use %q for the main voice.\n", g.cfg.DefaultSpeaker)
	b.WriteString("- Do not add a title, headings, notes or anything that is not spoken.\n")

	return b.String()
}

func containsFold(list []string, s string) bool {
	for _, v := range list {
		if strings.EqualFold(v, s) {
			return true
		}
	}
	return false
}
