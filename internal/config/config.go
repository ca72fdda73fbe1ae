// Package config loads asmrgen settings from the config file, the
// environment and flags.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/dgnsrekt/asmrgen/internal/retry"
)

// Supported providers and backends.
const (
	ProviderGemini     = "gemini"
	ProviderElevenLabs = "elevenlabs"

	BackendLocal = "local"
	BackendS3    = "s3"
)

// Config contains all asmrgen settings.
type Config struct {
	Text     TextConfig     `yaml:"text"`
	Speech   SpeechConfig   `yaml:"speech"`
	Retry    retry.Policy   `yaml:"retry"`
	Assembly AssemblyConfig `yaml:"assembly"`
	Output   OutputConfig   `yaml:"output"`
	Cache    CacheConfig    `yaml:"cache"`
	Log      LogConfig      `yaml:"log"`
}

// TextConfig configures script generation.
type TextConfig struct {
	Provider          string        `yaml:"provider" env:"ASMRGEN_TEXT_PROVIDER" envDefault:"gemini"`
	Model             string        `yaml:"model" env:"ASMRGEN_TEXT_MODEL" envDefault:"gemini-2.0-flash"`
	Temperature       float64       `yaml:"temperature" env:"ASMRGEN_TEXT_TEMPERATURE" envDefault:"0.7"`
	TopP              float64       `yaml:"top_p" env:"ASMRGEN_TEXT_TOP_P" envDefault:"0.95"`
	MinWords          int           `yaml:"min_words" env:"ASMRGEN_TEXT_MIN_WORDS" envDefault:"50"`
	MaxWords          int           `yaml:"max_words" env:"ASMRGEN_TEXT_MAX_WORDS" envDefault:"1500"`
	Speakers          []string      `yaml:"speakers" env:"ASMRGEN_TEXT_SPEAKERS" envDefault:"narrator,companion"`
	DefaultSpeaker    string        `yaml:"default_speaker" env:"ASMRGEN_TEXT_DEFAULT_SPEAKER" envDefault:"narrator"`
	RequestsPerMinute int           `yaml:"requests_per_minute" env:"ASMRGEN_TEXT_REQUESTS_PER_MINUTE" envDefault:"30"`
	Timeout           time.Duration `yaml:"timeout" env:"ASMRGEN_TEXT_TIMEOUT" envDefault:"60s"`
}

// SpeechConfig configures synthesis.
type SpeechConfig struct {
	Provider string `yaml:"provider" env:"ASMRGEN_SPEECH_PROVIDER" envDefault:"gemini"`
	Model    string `yaml:"model" env:"ASMRGEN_SPEECH_MODEL" envDefault:"gemini-2.5-flash-preview-tts"`

	// Voices is the default pool. Empty selects the provider's pool.
	Voices []string `yaml:"voices" env:"ASMRGEN_SPEECH_VOICES"`

	SampleRate        int           `yaml:"sample_rate" env:"ASMRGEN_SPEECH_SAMPLE_RATE" envDefault:"24000"`
	Channels          int           `yaml:"channels" env:"ASMRGEN_SPEECH_CHANNELS" envDefault:"1"`
	Concurrency       int           `yaml:"concurrency" env:"ASMRGEN_SPEECH_CONCURRENCY" envDefault:"4"`
	MergeRuns         bool          `yaml:"merge_runs" env:"ASMRGEN_SPEECH_MERGE_RUNS" envDefault:"false"`
	RequestsPerMinute int           `yaml:"requests_per_minute" env:"ASMRGEN_SPEECH_REQUESTS_PER_MINUTE" envDefault:"60"`
	Timeout           time.Duration `yaml:"timeout" env:"ASMRGEN_SPEECH_TIMEOUT" envDefault:"90s"`

	ElevenLabs ElevenLabsConfig   `yaml:"elevenlabs"`
	Gemini     GeminiSpeechConfig `yaml:"gemini"`
}

// ElevenLabsConfig holds ElevenLabs specific settings.
type ElevenLabsConfig struct {
	BaseURL         string  `yaml:"base_url" env:"ASMRGEN_SPEECH_ELEVENLABS_BASE_URL" envDefault:"https://api.elevenlabs.io"`
	ModelID         string  `yaml:"model_id" env:"ASMRGEN_SPEECH_ELEVENLABS_MODEL_ID" envDefault:"eleven_multilingual_v2"`
	OutputRate      int     `yaml:"output_rate" env:"ASMRGEN_SPEECH_ELEVENLABS_OUTPUT_RATE" envDefault:"22050"`
	Stability       float64 `yaml:"stability" env:"ASMRGEN_SPEECH_ELEVENLABS_STABILITY" envDefault:"0.5"`
	SimilarityBoost float64 `yaml:"similarity_boost" env:"ASMRGEN_SPEECH_ELEVENLABS_SIMILARITY_BOOST" envDefault:"0.75"`
}

// GeminiSpeechConfig holds Gemini speech specific settings.
type GeminiSpeechConfig struct {
	BaseURL string `yaml:"base_url" env:"ASMRGEN_SPEECH_GEMINI_BASE_URL" envDefault:"https://generativelanguage.googleapis.com"`
}

// AssemblyConfig sets the pauses between segments.
type AssemblyConfig struct {
	SpeakerGap     time.Duration `yaml:"speaker_gap" env:"ASMRGEN_ASSEMBLY_SPEAKER_GAP" envDefault:"500ms"`
	SameSpeakerGap time.Duration `yaml:"same_speaker_gap" env:"ASMRGEN_ASSEMBLY_SAME_SPEAKER_GAP" envDefault:"150ms"`
}

// OutputConfig selects where assets and scripts are saved.
type OutputConfig struct {
	Backend string `yaml:"backend" env:"ASMRGEN_OUTPUT_BACKEND" envDefault:"local"`

	// Dir defaults to the user data directory.
	Dir string   `yaml:"dir" env:"ASMRGEN_OUTPUT_DIR"`
	S3  S3Config `yaml:"s3"`
}

// S3Config locates the output bucket.
type S3Config struct {
	Bucket   string `yaml:"bucket" env:"ASMRGEN_OUTPUT_S3_BUCKET"`
	Region   string `yaml:"region" env:"ASMRGEN_OUTPUT_S3_REGION"`
	Prefix   string `yaml:"prefix" env:"ASMRGEN_OUTPUT_S3_PREFIX" envDefault:"asmrgen"`
	Endpoint string `yaml:"endpoint" env:"ASMRGEN_OUTPUT_S3_ENDPOINT"`
}

// CacheConfig configures the synthesized segment cache.
type CacheConfig struct {
	Enabled bool `yaml:"enabled" env:"ASMRGEN_CACHE_ENABLED" envDefault:"false"`

	// Dir defaults to the user cache directory.
	Dir              string        `yaml:"dir" env:"ASMRGEN_CACHE_DIR"`
	MemoryMB         int           `yaml:"memory_mb" env:"ASMRGEN_CACHE_MEMORY_MB" envDefault:"64"`
	DiskMB           int           `yaml:"disk_mb" env:"ASMRGEN_CACHE_DISK_MB" envDefault:"512"`
	CompressionLevel int           `yaml:"compression_level" env:"ASMRGEN_CACHE_COMPRESSION_LEVEL" envDefault:"3"`
	TTL              time.Duration `yaml:"ttl" env:"ASMRGEN_CACHE_TTL" envDefault:"168h"`
}

// LogConfig sets the log file level.
type LogConfig struct {
	Level string `yaml:"level" env:"ASMRGEN_LOG_LEVEL" envDefault:"info"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Text:     DefaultTextConfig(),
		Speech:   DefaultSpeechConfig(),
		Retry:    retry.DefaultPolicy(),
		Assembly: DefaultAssemblyConfig(),
		Output:   DefaultOutputConfig(),
		Cache:    DefaultCacheConfig(),
		Log:      LogConfig{Level: "info"},
	}
}

// DefaultTextConfig returns default script generation settings.
func DefaultTextConfig() TextConfig {
	return TextConfig{
		Provider:          ProviderGemini,
		Model:             "gemini-2.0-flash",
		Temperature:       0.7,
		TopP:              0.95,
		MinWords:          50,
		MaxWords:          1500,
		Speakers:          []string{"narrator", "companion"},
		DefaultSpeaker:    "narrator",
		RequestsPerMinute: 30,
		Timeout:           60 * time.Second,
	}
}

// DefaultSpeechConfig returns default synthesis settings.
func DefaultSpeechConfig() SpeechConfig {
	return SpeechConfig{
		Provider:          ProviderGemini,
		Model:             "gemini-2.5-flash-preview-tts",
		SampleRate:        24000,
		Channels:          1,
		Concurrency:       4,
		RequestsPerMinute: 60,
		Timeout:           90 * time.Second,
		ElevenLabs: ElevenLabsConfig{
			BaseURL:         "https://api.elevenlabs.io",
			ModelID:         "eleven_multilingual_v2",
			OutputRate:      22050,
			Stability:       0.5,
			SimilarityBoost: 0.75,
		},
		Gemini: GeminiSpeechConfig{
			BaseURL: "https://generativelanguage.googleapis.com",
		},
	}
}

// DefaultAssemblyConfig returns the default pauses.
func DefaultAssemblyConfig() AssemblyConfig {
	return AssemblyConfig{
		SpeakerGap:     500 * time.Millisecond,
		SameSpeakerGap: 150 * time.Millisecond,
	}
}

// DefaultOutputConfig saves to the local data directory.
func DefaultOutputConfig() OutputConfig {
	return OutputConfig{
		Backend: BackendLocal,
		S3:      S3Config{Prefix: "asmrgen"},
	}
}

// DefaultCacheConfig returns a disabled cache with room for a few scripts.
func DefaultCacheConfig() CacheConfig {
	return CacheConfig{
		MemoryMB:         64,
		DiskMB:           512,
		CompressionLevel: 3,
		TTL:              7 * 24 * time.Hour,
	}
}

// Validate checks all sections.
func (c Config) Validate() error {
	if err := c.Text.Validate(); err != nil {
		return fmt.Errorf("text: %w", err)
	}
	if err := c.Speech.Validate(); err != nil {
		return fmt.Errorf("speech: %w", err)
	}
	if err := c.Retry.Validate(); err != nil {
		return fmt.Errorf("retry: %w", err)
	}
	if err := c.Assembly.Validate(); err != nil {
		return fmt.Errorf("assembly: %w", err)
	}
	if err := c.Output.Validate(); err != nil {
		return fmt.Errorf("output: %w", err)
	}
	if err := c.Cache.Validate(); err != nil {
		return fmt.Errorf("cache: %w", err)
	}
	if err := c.Log.Validate(); err != nil {
		return fmt.Errorf("log: %w", err)
	}
	return nil
}

// Validate checks the text settings.
func (c TextConfig) Validate() error {
	if c.Provider != ProviderGemini {
		return fmt.Errorf("unsupported provider %q: use %q", c.Provider, ProviderGemini)
	}
	if c.Model == "" {
		return fmt.Errorf("model is empty")
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2, got %.2f", c.Temperature)
	}
	if c.TopP <= 0 || c.TopP > 1 {
		return fmt.Errorf("top_p must be in (0, 1], got %.2f", c.TopP)
	}
	if c.MinWords < 1 || c.MaxWords < c.MinWords {
		return fmt.Errorf("word bounds must satisfy 1 <= min_words <= max_words, got %d and %d", c.MinWords, c.MaxWords)
	}
	if c.RequestsPerMinute < 1 {
		return fmt.Errorf("requests_per_minute must be positive, got %d", c.RequestsPerMinute)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	return nil
}

// Validate checks the speech settings.
func (c SpeechConfig) Validate() error {
	switch c.Provider {
	case ProviderGemini:
		if c.Model == "" {
			return fmt.Errorf("model is empty")
		}
	case ProviderElevenLabs:
		if c.ElevenLabs.ModelID == "" {
			return fmt.Errorf("elevenlabs.model_id is empty")
		}
	default:
		return fmt.Errorf("unsupported provider %q: use %q or %q", c.Provider, ProviderGemini, ProviderElevenLabs)
	}
	if c.SampleRate < 8000 || c.SampleRate > 48000 {
		return fmt.Errorf("sample_rate must be between 8000 and 48000, got %d", c.SampleRate)
	}
	if c.Channels != 1 && c.Channels != 2 {
		return fmt.Errorf("channels must be 1 or 2, got %d", c.Channels)
	}
	if c.Concurrency < 1 || c.Concurrency > 16 {
		return fmt.Errorf("concurrency must be between 1 and 16, got %d", c.Concurrency)
	}
	if c.RequestsPerMinute < 1 {
		return fmt.Errorf("requests_per_minute must be positive, got %d", c.RequestsPerMinute)
	}
	if c.Timeout <= 0 {
		return fmt.Errorf("timeout must be positive, got %s", c.Timeout)
	}
	for _, v := range c.Voices {
		if strings.TrimSpace(v) == "" {
			return fmt.Errorf("voices contains an empty entry")
		}
	}
	return nil
}

// Validate checks the gap ranges.
func (c AssemblyConfig) Validate() error {
	if c.SpeakerGap <= 0 {
		return fmt.Errorf("speaker_gap must be positive, got %s", c.SpeakerGap)
	}
	if c.SameSpeakerGap < 0 {
		return fmt.Errorf("same_speaker_gap cannot be negative, got %s", c.SameSpeakerGap)
	}
	return nil
}

// Validate checks the backend choice.
func (c OutputConfig) Validate() error {
	switch c.Backend {
	case BackendLocal:
		return nil
	case BackendS3:
		if c.S3.Bucket == "" {
			return fmt.Errorf("s3.bucket is required for the s3 backend")
		}
		return nil
	default:
		return fmt.Errorf("unsupported backend %q: use %q or %q", c.Backend, BackendLocal, BackendS3)
	}
}

// Validate checks the cache sizes.
func (c CacheConfig) Validate() error {
	if !c.Enabled {
		return nil
	}
	if c.MemoryMB < 1 || c.MemoryMB > 10000 {
		return fmt.Errorf("memory_mb must be between 1 and 10000, got %d", c.MemoryMB)
	}
	if c.DiskMB < 1 || c.DiskMB > 100000 {
		return fmt.Errorf("disk_mb must be between 1 and 100000, got %d", c.DiskMB)
	}
	if c.CompressionLevel < 0 || c.CompressionLevel > 22 {
		return fmt.Errorf("compression_level must be between 0 and 22, got %d", c.CompressionLevel)
	}
	if c.TTL < 0 {
		return fmt.Errorf("ttl cannot be negative, got %s", c.TTL)
	}
	return nil
}

// Validate checks the level name.
func (c LogConfig) Validate() error {
	switch strings.ToLower(c.Level) {
	case "debug", "info", "warn", "error":
		return nil
	default:
		return fmt.Errorf("unknown level %q", c.Level)
	}
}
