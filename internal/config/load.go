package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Load reads the configuration from v on top of the defaults and validates
// it.
func Load(v *viper.Viper) (Config, error) {
	cfg := Default()

	loadText(v, &cfg.Text)
	loadSpeech(v, &cfg.Speech)

	setInt(v, "retry.max_attempts", &cfg.Retry.MaxAttempts)
	setDuration(v, "retry.initial_backoff", &cfg.Retry.InitialInterval)
	setDuration(v, "retry.max_backoff", &cfg.Retry.MaxInterval)
	setFloat(v, "retry.multiplier", &cfg.Retry.Multiplier)

	setDuration(v, "assembly.speaker_gap", &cfg.Assembly.SpeakerGap)
	setDuration(v, "assembly.same_speaker_gap", &cfg.Assembly.SameSpeakerGap)

	setString(v, "output.backend", &cfg.Output.Backend)
	setString(v, "output.dir", &cfg.Output.Dir)
	setString(v, "output.s3.bucket", &cfg.Output.S3.Bucket)
	setString(v, "output.s3.region", &cfg.Output.S3.Region)
	setString(v, "output.s3.prefix", &cfg.Output.S3.Prefix)
	setString(v, "output.s3.endpoint", &cfg.Output.S3.Endpoint)

	setBool(v, "cache.enabled", &cfg.Cache.Enabled)
	setString(v, "cache.dir", &cfg.Cache.Dir)
	setInt(v, "cache.memory_mb", &cfg.Cache.MemoryMB)
	setInt(v, "cache.disk_mb", &cfg.Cache.DiskMB)
	setInt(v, "cache.compression_level", &cfg.Cache.CompressionLevel)
	setDuration(v, "cache.ttl", &cfg.Cache.TTL)

	setString(v, "log.level", &cfg.Log.Level)

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

func loadText(v *viper.Viper, c *TextConfig) {
	setString(v, "text.provider", &c.Provider)
	setString(v, "text.model", &c.Model)
	setFloat(v, "text.temperature", &c.Temperature)
	setFloat(v, "text.top_p", &c.TopP)
	setInt(v, "text.min_words", &c.MinWords)
	setInt(v, "text.max_words", &c.MaxWords)
	setStrings(v, "text.speakers", &c.Speakers)
	setString(v, "text.default_speaker", &c.DefaultSpeaker)
	setInt(v, "text.requests_per_minute", &c.RequestsPerMinute)
	setDuration(v, "text.timeout", &c.Timeout)
}

func loadSpeech(v *viper.Viper, c *SpeechConfig) {
	setString(v, "speech.provider", &c.Provider)
	setString(v, "speech.model", &c.Model)
	setStrings(v, "speech.voices", &c.Voices)
	setInt(v, "speech.sample_rate", &c.SampleRate)
	setInt(v, "speech.channels", &c.Channels)
	setInt(v, "speech.concurrency", &c.Concurrency)
	setBool(v, "speech.merge_runs", &c.MergeRuns)
	setInt(v, "speech.requests_per_minute", &c.RequestsPerMinute)
	setDuration(v, "speech.timeout", &c.Timeout)

	setString(v, "speech.elevenlabs.base_url", &c.ElevenLabs.BaseURL)
	setString(v, "speech.elevenlabs.model_id", &c.ElevenLabs.ModelID)
	setInt(v, "speech.elevenlabs.output_rate", &c.ElevenLabs.OutputRate)
	setFloat(v, "speech.elevenlabs.stability", &c.ElevenLabs.Stability)
	setFloat(v, "speech.elevenlabs.similarity_boost", &c.ElevenLabs.SimilarityBoost)

	setString(v, "speech.gemini.base_url", &c.Gemini.BaseURL)
}

// SetDefaults registers every key with v so that environment variables are
// picked up for keys missing from the config file.
func SetDefaults(v *viper.Viper) {
	d := Default()

	v.SetDefault("text.provider", d.Text.Provider)
	v.SetDefault("text.model", d.Text.Model)
	v.SetDefault("text.temperature", d.Text.Temperature)
	v.SetDefault("text.top_p", d.Text.TopP)
	v.SetDefault("text.min_words", d.Text.MinWords)
	v.SetDefault("text.max_words", d.Text.MaxWords)
	v.SetDefault("text.speakers", d.Text.Speakers)
	v.SetDefault("text.default_speaker", d.Text.DefaultSpeaker)
	v.SetDefault("text.requests_per_minute", d.Text.RequestsPerMinute)
	v.SetDefault("text.timeout", d.Text.Timeout.String())

	v.SetDefault("speech.provider", d.Speech.Provider)
	v.SetDefault("speech.model", d.Speech.Model)
	v.SetDefault("speech.voices", d.Speech.Voices)
	v.SetDefault("speech.sample_rate", d.Speech.SampleRate)
	v.SetDefault("speech.channels", d.Speech.Channels)
	v.SetDefault("speech.concurrency", d.Speech.Concurrency)
	v.SetDefault("speech.merge_runs", d.Speech.MergeRuns)
	v.SetDefault("speech.requests_per_minute", d.Speech.RequestsPerMinute)
	v.SetDefault("speech.timeout", d.Speech.Timeout.String())
	v.SetDefault("speech.elevenlabs.base_url", d.Speech.ElevenLabs.BaseURL)
	v.SetDefault("speech.elevenlabs.model_id", d.Speech.ElevenLabs.ModelID)
	v.SetDefault("speech.elevenlabs.output_rate", d.Speech.ElevenLabs.OutputRate)
	v.SetDefault("speech.elevenlabs.stability", d.Speech.ElevenLabs.Stability)
	v.SetDefault("speech.elevenlabs.similarity_boost", d.Speech.ElevenLabs.SimilarityBoost)
	v.SetDefault("speech.gemini.base_url", d.Speech.Gemini.BaseURL)

	v.SetDefault("retry.max_attempts", d.Retry.MaxAttempts)
	v.SetDefault("retry.initial_backoff", d.Retry.InitialInterval.String())
	v.SetDefault("retry.max_backoff", d.Retry.MaxInterval.String())
	v.SetDefault("retry.multiplier", d.Retry.Multiplier)

	v.SetDefault("assembly.speaker_gap", d.Assembly.SpeakerGap.String())
	v.SetDefault("assembly.same_speaker_gap", d.Assembly.SameSpeakerGap.String())

	v.SetDefault("output.backend", d.Output.Backend)
	v.SetDefault("output.dir", d.Output.Dir)
	v.SetDefault("output.s3.bucket", d.Output.S3.Bucket)
	v.SetDefault("output.s3.region", d.Output.S3.Region)
	v.SetDefault("output.s3.prefix", d.Output.S3.Prefix)
	v.SetDefault("output.s3.endpoint", d.Output.S3.Endpoint)

	v.SetDefault("cache.enabled", d.Cache.Enabled)
	v.SetDefault("cache.dir", d.Cache.Dir)
	v.SetDefault("cache.memory_mb", d.Cache.MemoryMB)
	v.SetDefault("cache.disk_mb", d.Cache.DiskMB)
	v.SetDefault("cache.compression_level", d.Cache.CompressionLevel)
	v.SetDefault("cache.ttl", d.Cache.TTL.String())

	v.SetDefault("log.level", d.Log.Level)
}

func setString(v *viper.Viper, key string, dst *string) {
	if v.IsSet(key) {
		*dst = v.GetString(key)
	}
}

func setInt(v *viper.Viper, key string, dst *int) {
	if v.IsSet(key) {
		*dst = v.GetInt(key)
	}
}

func setFloat(v *viper.Viper, key string, dst *float64) {
	if v.IsSet(key) {
		*dst = v.GetFloat64(key)
	}
}

func setBool(v *viper.Viper, key string, dst *bool) {
	if v.IsSet(key) {
		*dst = v.GetBool(key)
	}
}

func setDuration(v *viper.Viper, key string, dst *time.Duration) {
	if v.IsSet(key) {
		*dst = v.GetDuration(key)
	}
}

// setStrings accepts YAML lists and comma separated strings from the
// environment.
func setStrings(v *viper.Viper, key string, dst *[]string) {
	if !v.IsSet(key) {
		return
	}
	var out []string
	for _, s := range v.GetStringSlice(key) {
		for _, part := range strings.Split(s, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	*dst = out
}

// Credentials holds the provider API keys. They are read from the
// environment only, never from the config file.
type Credentials struct {
	GeminiAPIKey     string `env:"GEMINI_API_KEY"`
	GoogleAPIKey     string `env:"GOOGLE_API_KEY"`
	ElevenLabsAPIKey string `env:"ELEVENLABS_API_KEY"`
}

// Gemini returns the Gemini key, falling back to GOOGLE_API_KEY.
func (c Credentials) Gemini() string {
	if c.GeminiAPIKey != "" {
		return c.GeminiAPIKey
	}
	return c.GoogleAPIKey
}

// LoadCredentials loads the given dotenv files, skipping missing ones, and
// then parses the environment. Variables already set are not overridden.
func LoadCredentials(dotenvFiles ...string) (Credentials, error) {
	for _, f := range dotenvFiles {
		if _, err := os.Stat(f); errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err := godotenv.Load(f); err != nil {
			return Credentials{}, fmt.Errorf("unable to load %s: %w", f, err)
		}
	}

	creds, err := env.ParseAs[Credentials]()
	if err != nil {
		return Credentials{}, fmt.Errorf("error parsing credentials: %w", err)
	}
	return creds, nil
}
