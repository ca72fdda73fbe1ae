package config

import (
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"
	"time"

	"github.com/spf13/viper"
)

func newViper(t *testing.T, yaml string) *viper.Viper {
	t.Helper()
	v := viper.New()
	v.SetEnvPrefix("asmrgen")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	SetDefaults(v)
	v.SetConfigType("yaml")
	if err := v.ReadConfig(strings.NewReader(yaml)); err != nil {
		t.Fatalf("ReadConfig() error: %v", err)
	}
	return v
}

func TestLoadDefaults(t *testing.T) {
	cfg, err := Load(newViper(t, ""))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if !reflect.DeepEqual(cfg, Default()) {
		t.Errorf("Load() = %+v, want defaults", cfg)
	}
}

func TestLoadFile(t *testing.T) {
	yaml := `
text:
  speakers: [host, guest]
  temperature: 0.9
speech:
  provider: elevenlabs
  voices:
    - abc
    - def
  concurrency: 2
  elevenlabs:
    output_rate: 44100
retry:
  initial_backoff: 250ms
assembly:
  speaker_gap: 1s
output:
  backend: s3
  s3:
    bucket: sounds
cache:
  enabled: true
  ttl: 24h
`
	cfg, err := Load(newViper(t, yaml))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}

	checks := []struct {
		name string
		got  any
		want any
	}{
		{"speakers", cfg.Text.Speakers, []string{"host", "guest"}},
		{"temperature", cfg.Text.Temperature, 0.9},
		{"provider", cfg.Speech.Provider, ProviderElevenLabs},
		{"voices", cfg.Speech.Voices, []string{"abc", "def"}},
		{"concurrency", cfg.Speech.Concurrency, 2},
		{"output rate", cfg.Speech.ElevenLabs.OutputRate, 44100},
		{"initial backoff", cfg.Retry.InitialInterval, 250 * time.Millisecond},
		{"speaker gap", cfg.Assembly.SpeakerGap, time.Second},
		{"same speaker gap", cfg.Assembly.SameSpeakerGap, 150 * time.Millisecond},
		{"backend", cfg.Output.Backend, BackendS3},
		{"bucket", cfg.Output.S3.Bucket, "sounds"},
		{"cache", cfg.Cache.Enabled, true},
		{"ttl", cfg.Cache.TTL, 24 * time.Hour},
	}
	for _, c := range checks {
		if !reflect.DeepEqual(c.got, c.want) {
			t.Errorf("%s = %v, want %v", c.name, c.got, c.want)
		}
	}
}

func TestLoadEnvironment(t *testing.T) {
	t.Setenv("ASMRGEN_SPEECH_CONCURRENCY", "8")
	t.Setenv("ASMRGEN_SPEECH_VOICES", "Kore,Puck")
	t.Setenv("ASMRGEN_LOG_LEVEL", "debug")

	cfg, err := Load(newViper(t, "speech:\n  concurrency: 2\n"))
	if err != nil {
		t.Fatalf("Load() error: %v", err)
	}
	if cfg.Speech.Concurrency != 8 {
		t.Errorf("Concurrency = %d, want env value 8", cfg.Speech.Concurrency)
	}
	if !reflect.DeepEqual(cfg.Speech.Voices, []string{"Kore", "Puck"}) {
		t.Errorf("Voices = %v", cfg.Speech.Voices)
	}
	if cfg.Log.Level != "debug" {
		t.Errorf("Level = %q", cfg.Log.Level)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		modify func(*Config)
	}{
		{"text provider", func(c *Config) { c.Text.Provider = "openai" }},
		{"temperature", func(c *Config) { c.Text.Temperature = 3 }},
		{"word bounds", func(c *Config) { c.Text.MinWords = 500; c.Text.MaxWords = 100 }},
		{"speech provider", func(c *Config) { c.Speech.Provider = "piper" }},
		{"sample rate", func(c *Config) { c.Speech.SampleRate = 1000 }},
		{"channels", func(c *Config) { c.Speech.Channels = 6 }},
		{"concurrency", func(c *Config) { c.Speech.Concurrency = 0 }},
		{"empty voice", func(c *Config) { c.Speech.Voices = []string{"Kore", " "} }},
		{"retry", func(c *Config) { c.Retry.MaxAttempts = 0 }},
		{"speaker gap", func(c *Config) { c.Assembly.SpeakerGap = 0 }},
		{"backend", func(c *Config) { c.Output.Backend = "ftp" }},
		{"s3 bucket", func(c *Config) { c.Output.Backend = BackendS3 }},
		{"cache size", func(c *Config) { c.Cache.Enabled = true; c.Cache.MemoryMB = 0 }},
		{"log level", func(c *Config) { c.Log.Level = "verbose" }},
	}

	if err := Default().Validate(); err != nil {
		t.Fatalf("Default().Validate() error: %v", err)
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.modify(&cfg)
			if err := cfg.Validate(); err == nil {
				t.Error("Validate() accepted invalid config")
			}
		})
	}

	// A disabled cache is not checked.
	cfg := Default()
	cfg.Cache.MemoryMB = 0
	if err := cfg.Validate(); err != nil {
		t.Errorf("disabled cache validated: %v", err)
	}
}

func unsetenv(t *testing.T, keys ...string) {
	t.Helper()
	for _, k := range keys {
		t.Setenv(k, "")
		os.Unsetenv(k)
	}
}

func TestLoadCredentials(t *testing.T) {
	unsetenv(t, "GEMINI_API_KEY", "GOOGLE_API_KEY", "ELEVENLABS_API_KEY")

	dir := t.TempDir()
	dotenv := filepath.Join(dir, ".env")
	if err := os.WriteFile(dotenv, []byte("GOOGLE_API_KEY=from-file\nELEVENLABS_API_KEY=el-file\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("ELEVENLABS_API_KEY", "el-env")

	creds, err := LoadCredentials(filepath.Join(dir, "missing.env"), dotenv)
	if err != nil {
		t.Fatalf("LoadCredentials() error: %v", err)
	}
	if creds.Gemini() != "from-file" {
		t.Errorf("Gemini() = %q, want GOOGLE_API_KEY fallback", creds.Gemini())
	}
	if creds.ElevenLabsAPIKey != "el-env" {
		t.Errorf("ElevenLabsAPIKey = %q, environment must win", creds.ElevenLabsAPIKey)
	}

	creds.GeminiAPIKey = "primary"
	if creds.Gemini() != "primary" {
		t.Errorf("Gemini() = %q", creds.Gemini())
	}
}
