// Package gemini implements a text provider on the Gemini generative
// language API.
package gemini

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/generative-ai-go/genai"
	"golang.org/x/time/rate"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/dgnsrekt/asmrgen/internal/domain"
)

const serviceName = "gemini-text"

// Config holds the Gemini text provider settings.
type Config struct {
	APIKey            string
	Model             string
	Temperature       float32
	TopP              float32
	MinOutputTokens   int32
	RequestsPerMinute int
	Timeout           time.Duration
	Logger            *log.Logger
}

// DefaultConfig returns the settings the scripts were tuned with.
func DefaultConfig() Config {
	return Config{
		Model:             "gemini-2.0-flash",
		Temperature:       0.7,
		TopP:              0.95,
		MinOutputTokens:   1024,
		RequestsPerMinute: 30,
		Timeout:           60 * time.Second,
	}
}

// Provider sends prompts to a Gemini model.
type Provider struct {
	client  *genai.Client
	cfg     Config
	limiter *rate.Limiter
	log     *log.Logger
}

var _ domain.TextProvider = (*Provider)(nil)

// New creates a provider. The client connects lazily.
func New(ctx context.Context, cfg Config) (*Provider, error) {
	if cfg.APIKey == "" {
		return nil, &domain.ConfigurationError{Field: "GEMINI_API_KEY", Reason: "an API key is required for the gemini text provider"}
	}
	def := DefaultConfig()
	if cfg.Model == "" {
		cfg.Model = def.Model
	}
	if cfg.MinOutputTokens <= 0 {
		cfg.MinOutputTokens = def.MinOutputTokens
	}
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = def.RequestsPerMinute
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}

	client, err := genai.NewClient(ctx, option.WithAPIKey(cfg.APIKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create gemini client: %w", err)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = log.Default()
	}

	return &Provider{
		client:  client,
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RequestsPerMinute)), 1),
		log:     logger.WithPrefix(serviceName),
	}, nil
}

// Name implements domain.TextProvider.
func (p *Provider) Name() string { return serviceName }

// Complete implements domain.TextProvider.
func (p *Provider) Complete(ctx context.Context, prompt string, lengthHint int) (string, error) {
	if err := p.limiter.Wait(ctx); err != nil {
		return "", domain.ThrottleError(ctx, serviceName, err)
	}

	callCtx, cancel := context.WithTimeout(ctx, p.cfg.Timeout)
	defer cancel()

	model := p.client.GenerativeModel(p.cfg.Model)
	model.SetTemperature(p.cfg.Temperature)
	model.SetTopP(p.cfg.TopP)
	model.SetMaxOutputTokens(OutputTokens(lengthHint, p.cfg.MinOutputTokens))

	start := time.Now()
	resp, err := model.GenerateContent(callCtx, genai.Text(prompt))
	if err != nil {
		return "", Classify(ctx, err)
	}
	p.log.Debug("Received completion", "model", p.cfg.Model, "elapsed", time.Since(start))

	return ResponseText(resp), nil
}

// Close releases the client connection.
func (p *Provider) Close() error {
	return p.client.Close()
}

// OutputTokens sizes the response budget for a word target, leaving room
// for delivery cues and tags.
func OutputTokens(words int, floor int32) int32 {
	const ceiling = 8192
	n := int32(words) * 2
	if n < floor {
		n = floor
	}
	if n > ceiling {
		n = ceiling
	}
	return n
}

// ResponseText concatenates the text parts of the first candidate.
func ResponseText(resp *genai.GenerateContentResponse) string {
	if resp == nil {
		return ""
	}
	for _, c := range resp.Candidates {
		if c == nil || c.Content == nil {
			continue
		}
		var b strings.Builder
		for _, part := range c.Content.Parts {
			if t, ok := part.(genai.Text); ok {
				b.WriteString(string(t))
			}
		}
		return b.String()
	}
	return ""
}

// Classify maps a client error to the pipeline taxonomy.
func Classify(ctx context.Context, err error) error {
	if ctx.Err() != nil {
		return domain.TransportError(ctx, serviceName, err)
	}

	var blocked *genai.BlockedError
	if errors.As(err, &blocked) {
		return &domain.PermanentRequestError{Service: serviceName, Reason: "content was blocked by the safety filter", Err: err}
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return domain.StatusError(serviceName, apiErr.Code, apiErr.Message, err)
	}

	if s, ok := status.FromError(err); ok && s.Code() != codes.OK {
		return domain.StatusError(serviceName, httpStatus(s.Code()), s.Message(), err)
	}

	return domain.TransportError(ctx, serviceName, err)
}

func httpStatus(c codes.Code) int {
	switch c {
	case codes.InvalidArgument, codes.OutOfRange, codes.FailedPrecondition, codes.Unimplemented:
		return http.StatusBadRequest
	case codes.Unauthenticated:
		return http.StatusUnauthorized
	case codes.PermissionDenied:
		return http.StatusForbidden
	case codes.NotFound:
		return http.StatusNotFound
	case codes.DeadlineExceeded:
		return http.StatusRequestTimeout
	case codes.ResourceExhausted:
		return http.StatusTooManyRequests
	case codes.Unavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
