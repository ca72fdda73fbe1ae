package main

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	"github.com/charmbracelet/log"
	gap "github.com/muesli/go-app-paths"
	"github.com/spf13/viper"

	"github.com/dgnsrekt/asmrgen/internal/assemble"
	"github.com/dgnsrekt/asmrgen/internal/audio"
	"github.com/dgnsrekt/asmrgen/internal/cache"
	"github.com/dgnsrekt/asmrgen/internal/config"
	"github.com/dgnsrekt/asmrgen/internal/domain"
	"github.com/dgnsrekt/asmrgen/internal/pipeline"
	"github.com/dgnsrekt/asmrgen/internal/store"
	"github.com/dgnsrekt/asmrgen/internal/synth"
	"github.com/dgnsrekt/asmrgen/internal/synth/elevenlabs"
	sgemini "github.com/dgnsrekt/asmrgen/internal/synth/gemini"
	"github.com/dgnsrekt/asmrgen/internal/textgen"
	tgemini "github.com/dgnsrekt/asmrgen/internal/textgen/gemini"
	"github.com/dgnsrekt/asmrgen/internal/voice"
	"github.com/dgnsrekt/asmrgen/ui"
)

// dotenvFiles are loaded before credentials are read from the environment.
var dotenvFiles = []string{".env"}

// app holds the loaded configuration and builds the services commands need.
type app struct {
	cfg   config.Config
	creds config.Credentials
	log   *log.Logger

	closers []func() error
}

func loadApp() (*app, error) {
	cfg, err := config.Load(viper.GetViper())
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	creds, err := config.LoadCredentials(dotenvFiles...)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	return newApp(cfg, creds), nil
}

func newApp(cfg config.Config, creds config.Credentials) *app {
	return &app{cfg: cfg, creds: creds, log: log.Default()}
}

// Close releases clients and caches in reverse order of creation.
func (a *app) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		errs = append(errs, a.closers[i]())
	}
	a.closers = nil
	return errors.Join(errs...)
}

func (a *app) format() domain.AudioFormat {
	return domain.AudioFormat{
		SampleRate: a.cfg.Speech.SampleRate,
		Channels:   a.cfg.Speech.Channels,
		BitDepth:   16,
	}
}

// catalog returns the searchable voice list of the speech provider, or nil
// when the provider addresses voices by opaque ID.
func (a *app) catalog() *voice.Catalog {
	if a.cfg.Speech.Provider == config.ProviderElevenLabs {
		return nil
	}
	return voice.NewCatalog(voice.GeminiVoices)
}

// pool returns the default voice rotation.
func (a *app) pool() ([]domain.VoiceID, error) {
	if len(a.cfg.Speech.Voices) == 0 {
		if a.cfg.Speech.Provider == config.ProviderElevenLabs {
			return voice.ElevenLabsPool, nil
		}
		return voice.DefaultPool, nil
	}

	c := a.catalog()
	pool := make([]domain.VoiceID, 0, len(a.cfg.Speech.Voices))
	for _, name := range a.cfg.Speech.Voices {
		if c == nil {
			pool = append(pool, domain.VoiceID(name))
			continue
		}
		v, err := c.Lookup(name)
		if err != nil {
			return nil, &domain.ConfigurationError{Field: "speech.voices", Reason: err.Error()}
		}
		pool = append(pool, v.ID)
	}
	return pool, nil
}

// overrides parses --voice label=name pairs.
func (a *app) overrides(pairs []string) (domain.VoiceMap, error) {
	return voice.ParseOverrides(pairs, a.catalog()) //nolint:wrapcheck
}

func (a *app) speechProvider() (domain.SpeechProvider, error) {
	sc := a.cfg.Speech
	switch sc.Provider {
	case config.ProviderElevenLabs:
		p, err := elevenlabs.New(elevenlabs.Config{
			APIKey:            a.creds.ElevenLabsAPIKey,
			BaseURL:           sc.ElevenLabs.BaseURL,
			ModelID:           sc.ElevenLabs.ModelID,
			OutputRate:        sc.ElevenLabs.OutputRate,
			Stability:         sc.ElevenLabs.Stability,
			SimilarityBoost:   sc.ElevenLabs.SimilarityBoost,
			RequestsPerMinute: sc.RequestsPerMinute,
			Timeout:           sc.Timeout,
			Logger:            a.log,
		})
		if err != nil {
			return nil, err //nolint:wrapcheck
		}
		return p, nil
	default:
		p, err := sgemini.New(sgemini.Config{
			APIKey:            a.creds.Gemini(),
			BaseURL:           sc.Gemini.BaseURL,
			Model:             sc.Model,
			RequestsPerMinute: sc.RequestsPerMinute,
			Timeout:           sc.Timeout,
			Logger:            a.log,
		})
		if err != nil {
			return nil, err //nolint:wrapcheck
		}
		return p, nil
	}
}

func (a *app) textGenerator(ctx context.Context) (*textgen.Generator, error) {
	tc := a.cfg.Text
	p, err := tgemini.New(ctx, tgemini.Config{
		APIKey:            a.creds.Gemini(),
		Model:             tc.Model,
		Temperature:       float32(tc.Temperature),
		TopP:              float32(tc.TopP),
		RequestsPerMinute: tc.RequestsPerMinute,
		Timeout:           tc.Timeout,
		Logger:            a.log,
	})
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	a.closers = append(a.closers, p.Close)

	return textgen.New(p, textgen.Config{ //nolint:wrapcheck
		MinWords:       tc.MinWords,
		MaxWords:       tc.MaxWords,
		Speakers:       tc.Speakers,
		DefaultSpeaker: tc.DefaultSpeaker,
		Retry:          a.cfg.Retry,
		Logger:         a.log,
	})
}

// segmentCache opens the segment cache, or returns nil when it is disabled.
func (a *app) segmentCache() (synth.Cache, error) {
	cc := a.cfg.Cache
	if !cc.Enabled {
		return nil, nil
	}

	dir := expandPath(cc.Dir)
	if dir == "" {
		d, err := gap.NewScope(gap.User, appName).CacheDir()
		if err != nil {
			return nil, fmt.Errorf("unable to find cache directory: %w", err)
		}
		dir = filepath.Join(d, "segments")
	}

	m, err := cache.New(cache.Config{
		Dir:              dir,
		MemoryBytes:      int64(cc.MemoryMB) << 20,
		DiskBytes:        int64(cc.DiskMB) << 20,
		CompressionLevel: cc.CompressionLevel,
		TTL:              cc.TTL,
		CleanupInterval:  time.Hour,
		Logger:           a.log,
	})
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	a.closers = append(a.closers, m.Close)
	return m, nil
}

// orchestrator wires the pipeline. The text generator is only built when
// needText is set, so manual scripts work without a Gemini key when another
// speech provider is configured.
func (a *app) orchestrator(ctx context.Context, needText bool) (*pipeline.Orchestrator, error) {
	provider, err := a.speechProvider()
	if err != nil {
		return nil, err
	}
	pool, err := a.pool()
	if err != nil {
		return nil, err
	}
	segCache, err := a.segmentCache()
	if err != nil {
		return nil, err
	}

	synthesizer, err := synth.New(provider, synth.Config{
		Format:      a.format(),
		Concurrency: a.cfg.Speech.Concurrency,
		MergeRuns:   a.cfg.Speech.MergeRuns,
		Retry:       a.cfg.Retry,
		Cache:       segCache,
		Logger:      a.log,
	})
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	assembler, err := assemble.New(assemble.Config{
		SpeakerGap:     a.cfg.Assembly.SpeakerGap,
		SameSpeakerGap: a.cfg.Assembly.SameSpeakerGap,
		Logger:         a.log,
	})
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	var text pipeline.TextGenerator
	if needText {
		g, err := a.textGenerator(ctx)
		if err != nil {
			return nil, err
		}
		text = g
	}

	return pipeline.New(pipeline.Config{ //nolint:wrapcheck
		Text:      text,
		Voices:    voice.NewMapper(pool),
		Synth:     synthesizer,
		Assembler: assembler,
		Logger:    a.log,
	})
}

// outputDir returns the local output directory.
func (a *app) outputDir() (string, error) {
	if a.cfg.Output.Dir != "" {
		return expandPath(a.cfg.Output.Dir), nil
	}
	dir, err := gap.NewScope(gap.User, appName).DataPath("generations")
	if err != nil {
		return "", fmt.Errorf("unable to find data directory: %w", err)
	}
	return dir, nil
}

func (a *app) store() (store.Store, error) {
	oc := a.cfg.Output
	if oc.Backend == config.BackendS3 {
		s, err := store.NewS3Store(store.S3Config{
			Bucket:   oc.S3.Bucket,
			Region:   oc.S3.Region,
			Prefix:   oc.S3.Prefix,
			Endpoint: oc.S3.Endpoint,
		}, a.log)
		if err != nil {
			return nil, err //nolint:wrapcheck
		}
		return s, nil
	}

	dir, err := a.outputDir()
	if err != nil {
		return nil, err
	}
	s, err := store.NewFileStore(dir, a.log)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	return s, nil
}

func (a *app) player() (*audio.Player, error) {
	cfg := audio.DefaultConfig()
	cfg.Logger = a.log
	p, err := audio.NewPlayer(cfg)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}
	a.closers = append(a.closers, p.Close)
	return p, nil
}

func (a *app) tuiDeps(ctx context.Context) (ui.Deps, error) {
	orch, err := a.orchestrator(ctx, true)
	if err != nil {
		return ui.Deps{}, err
	}
	st, err := a.store()
	if err != nil {
		return ui.Deps{}, err
	}
	p, err := a.player()
	if err != nil {
		return ui.Deps{}, err
	}
	return ui.Deps{Runner: orch, Store: st, Player: p}, nil
}

func defaultConfigPath() (string, error) {
	p, err := gap.NewScope(gap.User, appName).ConfigPath(appName + ".yml")
	if err != nil {
		return "", fmt.Errorf("unable to find config directory: %w", err)
	}
	return p, nil
}
