// Package gemini implements a speech provider on the Gemini
// generateContent endpoint with audio output.
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"golang.org/x/time/rate"

	"github.com/dgnsrekt/asmrgen/internal/domain"
)

const (
	serviceName = "gemini-tts"

	DefaultBaseURL = "https://generativelanguage.googleapis.com"
	DefaultModel   = "gemini-2.5-flash-preview-tts"

	// maxResponseSize bounds a single base64 audio response.
	maxResponseSize = 64 << 20
)

var errNoAudio = errors.New("response carried no inline audio")

// Config holds the Gemini speech provider settings.
type Config struct {
	APIKey            string
	BaseURL           string
	Model             string
	RequestsPerMinute int
	Timeout           time.Duration

	// HTTPClient defaults to a client without a timeout; per-call timeouts
	// come from Timeout.
	HTTPClient *http.Client
	Logger     *log.Logger
}

// DefaultConfig returns the public endpoint and preview TTS model.
func DefaultConfig() Config {
	return Config{
		BaseURL:           DefaultBaseURL,
		Model:             DefaultModel,
		RequestsPerMinute: 60,
		Timeout:           90 * time.Second,
	}
}

// Provider voices text with Gemini prebuilt voices.
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
		return nil, &domain.ConfigurationError{Field: "GEMINI_API_KEY", Reason: "an API key is required for the gemini speech provider"}
	}
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = def.RequestsPerMinute
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if _, err := url.Parse(cfg.BaseURL); err != nil {
		return nil, &domain.ConfigurationError{Field: "speech.gemini.base_url", Reason: err.Error()}
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

type request struct {
	Contents         []content        `json:"contents"`
	GenerationConfig generationConfig `json:"generationConfig"`
}

type content struct {
	Role  string `json:"role,omitempty"`
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inlineData,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mimeType"`
	Data     []byte `json:"data"`
}

type generationConfig struct {
	ResponseModalities []string     `json:"responseModalities"`
	SpeechConfig       speechConfig `json:"speechConfig"`
}

type speechConfig struct {
	VoiceConfig voiceConfig `json:"voiceConfig"`
}

type voiceConfig struct {
	PrebuiltVoiceConfig prebuiltVoice `json:"prebuiltVoiceConfig"`
}

type prebuiltVoice struct {
	VoiceName string `json:"voiceName"`
}

type response struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

type apiError struct {
	Error struct {
		Code    int    `json:"code"`
		Message string `json:"message"`
		Status  string `json:"status"`
	} `json:"error"`
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

	body, err := json.Marshal(request{
		Contents: []content{{Role: "user", Parts: []part{{Text: text}}}},
		GenerationConfig: generationConfig{
			ResponseModalities: []string{"AUDIO"},
			SpeechConfig: speechConfig{
				VoiceConfig: voiceConfig{PrebuiltVoiceConfig: prebuiltVoice{VoiceName: string(voice)}},
			},
		},
	})
	if err != nil {
		return domain.RawAudio{}, fmt.Errorf("failed to encode request: %w", err)
	}

	callCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(callCtx, http.MethodPost, p.endpoint(), bytes.NewReader(body))
	if err != nil {
		return domain.RawAudio{}, &domain.PermanentRequestError{Service: serviceName, Reason: "invalid request", Err: err}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", p.cfg.APIKey)

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
		var apiErr apiError
		reason := http.StatusText(resp.StatusCode)
		if json.Unmarshal(payload, &apiErr) == nil && apiErr.Error.Message != "" {
			reason = apiErr.Error.Message
		}
		return domain.RawAudio{}, domain.StatusError(serviceName, resp.StatusCode, reason, nil)
	}

	var out response
	if err := json.Unmarshal(payload, &out); err != nil {
		return domain.RawAudio{}, &domain.TransientServiceError{Service: serviceName, StatusCode: resp.StatusCode, Err: fmt.Errorf("malformed response: %w", err)}
	}
	if out.PromptFeedback != nil && out.PromptFeedback.BlockReason != "" {
		return domain.RawAudio{}, &domain.PermanentRequestError{
			Service:    serviceName,
			StatusCode: resp.StatusCode,
			Reason:     "text was blocked: " + out.PromptFeedback.BlockReason,
		}
	}

	audio, ok := firstAudio(out)
	if !ok {
		return domain.RawAudio{}, &domain.TransientServiceError{Service: serviceName, StatusCode: resp.StatusCode, Err: errNoAudio}
	}

	format := ParseMimeType(audio.MimeType)
	p.log.Debug("Synthesized text", "voice", voice, "chars", len(text), "bytes", len(audio.Data), "format", format, "elapsed", time.Since(start))
	return domain.RawAudio{Data: audio.Data, Format: format}, nil
}

func (p *Provider) endpoint() string {
	return strings.TrimRight(p.cfg.BaseURL, "/") + "/v1beta/models/" + url.PathEscape(p.cfg.Model) + ":generateContent"
}

func firstAudio(r response) (*inlineData, bool) {
	for _, c := range r.Candidates {
		for _, p := range c.Content.Parts {
			if p.InlineData != nil && len(p.InlineData.Data) > 0 {
				return p.InlineData, true
			}
		}
	}
	return nil, false
}

// ParseMimeType reads the sample rate and bit depth from an audio mime type
// such as "audio/L16;codec=pcm;rate=24000". Missing or malformed parameters
// fall back to 24000 Hz and 16 bits. Output is always mono.
func ParseMimeType(mime string) domain.AudioFormat {
	f := domain.DefaultAudioFormat()
	for _, param := range strings.Split(mime, ";") {
		param = strings.TrimSpace(param)
		lower := strings.ToLower(param)
		switch {
		case strings.HasPrefix(lower, "rate="):
			if n, err := strconv.Atoi(param[len("rate="):]); err == nil && n > 0 {
				f.SampleRate = n
			}
		case strings.HasPrefix(lower, "audio/l"):
			if n, err := strconv.Atoi(param[len("audio/l"):]); err == nil && n > 0 {
				f.BitDepth = n
			}
		}
	}
	return f
}
