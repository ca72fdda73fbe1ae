// Package elevenlabs implements a speech provider on the ElevenLabs
// text-to-speech API, requesting raw PCM output.
package elevenlabs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/dgnsrekt/asmrgen/internal/domain"
)

const (
	serviceName = "elevenlabs"

	DefaultBaseURL = "https://api.elevenlabs.io"
	DefaultModelID = "eleven_multilingual_v2"

	maxResponseSize = 64 << 20
)

// outputRates are the PCM rates the API can return.
var outputRates = map[int]bool{8000: true, 16000: true, 22050: true, 24000: true, 44100: true, 48000: true}

// Config holds the ElevenLabs provider settings.
type Config struct {
	APIKey  string
	BaseURL string
	ModelID string

	// OutputRate selects the pcm_<rate> output format.
	OutputRate int

	Stability       float64
	SimilarityBoost float64

	RequestsPerMinute int
	Timeout           time.Duration
	HTTPClient        *http.Client
	Logger            *log.Logger
}

// DefaultConfig returns 22.05kHz PCM with moderate stability.
func DefaultConfig() Config {
	return Config{
		BaseURL:           DefaultBaseURL,
		ModelID:           DefaultModelID,
		OutputRate:        22050,
		Stability:         0.5,
		SimilarityBoost:   0.75,
		RequestsPerMinute: 60,
		Timeout:           90 * time.Second,
	}
}

// Validate checks the config ranges.
func (c Config) Validate() error {
	if !outputRates[c.OutputRate] {
		return fmt.Errorf("unsupported output rate %d", c.OutputRate)
	}
	if c.Stability < 0 || c.Stability > 1 {
		return fmt.Errorf("stability must be between 0 and 1, got %g", c.Stability)
	}
	if c.SimilarityBoost < 0 || c.SimilarityBoost > 1 {
		return fmt.Errorf("similarity boost must be between 0 and 1, got %g", c.SimilarityBoost)
	}
	return nil
}

// Provider voices text with ElevenLabs voice IDs.
type Provider struct {
	cfg     Config
	client  *http.Client
	limiter *rate.Limiter
	log     *log.Logger
}

var _ domain.SpeechProvider = (*Provider)(nil)

// New creates a provider.
func New(cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, &domain.ConfigurationError{Field: "ELEVENLABS_API_KEY", Reason: "an API key is required for the elevenlabs speech provider"}
	}
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.ModelID == "" {
		cfg.ModelID = def.ModelID
	}
	if cfg.OutputRate == 0 {
		cfg.OutputRate = def.OutputRate
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = def.RequestsPerMinute
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if err := cfg.Validate(); err != nil {
		return nil, &domain.ConfigurationError{Field: "speech.elevenlabs", Reason: err.Error()}
	}

	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Provider{
		cfg:     cfg,
		client:  client,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1),
		log:     logger.WithPrefix(serviceName),
	}, nil
}

// Name implements domain.SpeechProvider.
func (p *Provider) Name() string { return serviceName }

type ttsRequest struct {
	Text          string        `json:"text"`
	ModelID       string        `json:"model_id"`
	VoiceSettings voiceSettings `json:"voice_settings"`
}

type voiceSettings struct {
	Stability       float64 `json:"stability"`
	SimilarityBoost float64 `json:"similarity_boost"`
}

// Synthesize implements domain.SpeechProvider.
func (p *Provider) Synthesize(ctx context.Context, text string, voice domain.VoiceID) (domain.RawAudio, error) {
	if strings.TrimSpace(text) == "" {
		return domain.RawAudio{}, &domain.PermanentRequestError{Service: serviceName, Reason: "text cannot be empty"}
	}
	if voice == "" {
		return domain.RawAudio{}, &domain.PermanentRequestError{Service: serviceName, Reason: "voice cannot be empty"}
	}

	if err := p.limiter.Wait(ctx); err != nil {
		return domain.RawAudio{}, domain.ThrottleError(ctx, serviceName, err)
	}

	body, err := json.Marshal(ttsRequest{
		Text:    text,
		ModelID: p.cfg.ModelID,
		VoiceSettings: voiceSettings{
			Stability:       p.cfg.Stability,
			SimilarityBoost: p.cfg.SimilarityBoost,
		},
	})
	if err != nil {
		return domain.RawAudio{}, fmt.Errorf("failed to encode request: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, p.endpoint(voice), bytes.NewReader(body))
	if err != nil {
		return domain.RawAudio{}, &domain.PermanentRequestError{Service: serviceName, Reason: "invalid request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "audio/pcm")
	req.Header.Set("xi-api-key", p.cfg.APIKey)

	start := time.Now()
	resp, err := p.client.Do(req)
	if err != nil {
		return domain.RawAudio{}, domain.TransportError(ctx, serviceName, err)
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseSize))
	if err != nil {
		return domain.RawAudio{}, domain.TransportError(ctx, serviceName, err)
	}

	if resp.StatusCode != http.StatusOK {
		return domain.RawAudio{}, domain.StatusError(serviceName, resp.StatusCode, errorReason(resp.StatusCode, payload), nil)
	}

	format := domain.AudioFormat{SampleRate: p.cfg.OutputRate, Channels: 1, BitDepth: 16}
	p.log.Debug("Synthesized text", "voice", voice, "chars", len(text), "bytes", len(payload), "elapsed", time.Since(start))
	return domain.RawAudio{Data: payload, Format: format}, nil
}

func (p *Provider) endpoint(voice domain.VoiceID) string {
	q := url.Values{"output_format": {fmt.Sprintf("pcm_%d", p.cfg.OutputRate)}}
	return strings.TrimRight(p.cfg.BaseURL, "/") + "/v1/text-to-speech/" + url.PathEscape(string(voice)) + "?" + q.Encode()
}

// errorReason extracts the message from an error body. The API returns
// detail either as a string or as {status, message}.
func errorReason(code int, payload []byte) string {
	var body struct {
		Detail json.RawMessage `json:"detail"`
	}
	if json.Unmarshal(payload, &body) == nil && len(body.Detail) > 0 {
		var s string
		if json.Unmarshal(body.Detail, &s) == nil && s != "" {
			return s
		}
		var d struct {
			Status  string `json:"status"`
			Message string `json:"message"`
		}
		if json.Unmarshal(body.Detail, &d) == nil && d.Message != "" {
			return d.Message
		}
	}
	return http.StatusText(code)
}
