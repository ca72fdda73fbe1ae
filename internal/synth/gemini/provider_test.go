package gemini

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"golang.org/x/time/rate"

	"github.com/dgnsrekt/asmrgen/internal/domain"
)

func newTestProvider(t *testing.T, h http.HandlerFunc) *Provider {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)

	p, err := New(Config{
		APIKey:            "test-key",
		BaseURL:           srv.URL,
		RequestsPerMinute: 60000,
		Timeout:           2 * time.Second,
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return p
}

func audioResponse(mime string, data []byte) string {
	return fmt.Sprintf(`{"candidates":[{"content":{"parts":[{"inlineData":{"mimeType":%q,"data":%q}}]}}]}`,
		mime, base64.StdEncoding.EncodeToString(data))
}

func TestSynthesize(t *testing.T) {
	pcm := []byte{1, 0, 2, 0, 3, 0, 4, 0}
	var got request

	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			t.Errorf("method = %s", r.Method)
		}
		if !strings.HasSuffix(r.URL.Path, "/v1beta/models/"+DefaultModel+":generateContent") {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.Header.Get("x-goog-api-key") != "test-key" {
			t.Errorf("api key header missing")
		}
		body, _ := io.ReadAll(r.Body)
		if err := json.Unmarshal(body, &got); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		fmt.Fprint(w, audioResponse("audio/L16;codec=pcm;rate=24000", pcm))
	})

	raw, err := p.Synthesize(context.Background(), "hush now", "Puck")
	if err != nil {
		t.Fatalf("Synthesize() error: %v", err)
	}
	if string(raw.Data) != string(pcm) {
		t.Errorf("Data = %v, want %v", raw.Data, pcm)
	}
	if raw.Format != domain.DefaultAudioFormat() {
		t.Errorf("Format = %v", raw.Format)
	}
	if got.GenerationConfig.SpeechConfig.VoiceConfig.PrebuiltVoiceConfig.VoiceName != "Puck" {
		t.Errorf("voice not sent: %+v", got.GenerationConfig)
	}
	if len(got.GenerationConfig.ResponseModalities) != 1 || got.GenerationConfig.ResponseModalities[0] != "AUDIO" {
		t.Errorf("responseModalities = %v", got.GenerationConfig.ResponseModalities)
	}
	if got.Contents[0].Parts[0].Text != "hush now" {
		t.Errorf("text not sent: %+v", got.Contents)
	}
}

func TestSynthesizeClassifiesFailures(t *testing.T) {
	tests := []struct {
		name string
		code int
		body string
		want domain.Kind
	}{
		{"rate limited", http.StatusTooManyRequests, `{"error":{"code":429,"message":"quota"}}`, domain.KindTransient},
		{"unavailable", http.StatusServiceUnavailable, `{}`, domain.KindTransient},
		{"bad request", http.StatusBadRequest, `{"error":{"code":400,"message":"voice not found"}}`, domain.KindPermanent},
		{"forbidden", http.StatusForbidden, ``, domain.KindPermanent},
		{"no audio", http.StatusOK, `{"candidates":[{"content":{"parts":[{"text":"hi"}]}}]}`, domain.KindTransient},
		{"blocked", http.StatusOK, `{"promptFeedback":{"blockReason":"SAFETY"}}`, domain.KindPermanent},
		{"malformed", http.StatusOK, `{"candidates":`, domain.KindTransient},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.code)
				fmt.Fprint(w, tt.body)
			})
			_, err := p.Synthesize(context.Background(), "text", "Kore")
			if got := domain.KindOf(err); got != tt.want {
				t.Errorf("KindOf() = %q, want %q (err %v)", got, tt.want, err)
			}
		})
	}
}

func TestSynthesizeErrorMessageCarriesReason(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		fmt.Fprint(w, `{"error":{"code":400,"message":"voice not found"}}`)
	})
	_, err := p.Synthesize(context.Background(), "text", "Nope")
	var perm *domain.PermanentRequestError
	if !errors.As(err, &perm) {
		t.Fatalf("expected PermanentRequestError, got %v", err)
	}
	if perm.Reason != "voice not found" || perm.StatusCode != http.StatusBadRequest {
		t.Errorf("got %+v", perm)
	}
}

func TestSynthesizeCancelled(t *testing.T) {
	release := make(chan struct{})
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	})
	defer close(release)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(20 * time.Millisecond)
		cancel()
	}()

	_, err := p.Synthesize(ctx, "text", "Kore")
	if !errors.Is(err, domain.ErrCancelled) {
		t.Errorf("expected ErrCancelled, got %v", err)
	}
}

func TestSynthesizeThrottledIsTransient(t *testing.T) {
	var hits atomic.Int32
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		fmt.Fprint(w, audioResponse("audio/L16;codec=pcm;rate=24000", []byte{1, 0}))
	})
	p.limiter = rate.NewLimiter(rate.Every(time.Minute), 1)

	if _, err := p.Synthesize(context.Background(), "first", "Kore"); err != nil {
		t.Fatalf("first call: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := p.Synthesize(ctx, "second", "Kore")
	if !domain.IsTransient(err) {
		t.Errorf("throttled call: got %v, want a transient error", err)
	}
	if n := hits.Load(); n != 1 {
		t.Errorf("server hits = %d, want 1", n)
	}
}

func TestNewRequiresKey(t *testing.T) {
	_, err := New(Config{})
	if domain.KindOf(err) != domain.KindConfiguration {
		t.Errorf("New() error = %v, want configuration error", err)
	}
}

func TestParseMimeType(t *testing.T) {
	tests := map[string]domain.AudioFormat{
		"audio/L16;codec=pcm;rate=24000": {SampleRate: 24000, Channels: 1, BitDepth: 16},
		"audio/L16;rate=16000":           {SampleRate: 16000, Channels: 1, BitDepth: 16},
		"audio/L24; rate=48000":          {SampleRate: 48000, Channels: 1, BitDepth: 24},
		"audio/pcm":                      {SampleRate: 24000, Channels: 1, BitDepth: 16},
		"audio/L16;rate=abc":             {SampleRate: 24000, Channels: 1, BitDepth: 16},
		"":                               {SampleRate: 24000, Channels: 1, BitDepth: 16},
	}
	for in, want := range tests {
		if got := ParseMimeType(in); got != want {
			t.Errorf("ParseMimeType(%q) = %v, want %v", in, got, want)
		}
	}
}
