package elevenlabs

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
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

	cfg := DefaultConfig()
	cfg.APIKey = "xi-test"
	cfg.BaseURL = srv.URL
	cfg.RequestsPerMinute = 60000
	cfg.Timeout = 2 * time.Second
	p, err := New(cfg)
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}
	return p
}

func TestSynthesize(t *testing.T) {
	pcm := []byte{9, 0, 8, 0}
	var got ttsRequest

	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/text-to-speech/voice123" {
			t.Errorf("path = %s", r.URL.Path)
		}
		if r.URL.Query().Get("output_format") != "pcm_22050" {
			t.Errorf("output_format = %s", r.URL.Query().Get("output_format"))
		}
		if r.Header.Get("xi-api-key") != "xi-test" {
			t.Errorf("api key header missing")
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			t.Errorf("bad request body: %v", err)
		}
		w.Write(pcm)
	})

	raw, err := p.Synthesize(context.Background(), "sleep well", "voice123")
	if err != nil {
		t.Fatalf("Synthesize() error: %v", err)
	}
	if string(raw.Data) != string(pcm) {
		t.Errorf("Data = %v", raw.Data)
	}
	want := domain.AudioFormat{SampleRate: 22050, Channels: 1, BitDepth: 16}
	if raw.Format != want {
		t.Errorf("Format = %v, want %v", raw.Format, want)
	}
	if got.Text != "sleep well" || got.ModelID != DefaultModelID || got.VoiceSettings.Stability != 0.5 {
		t.Errorf("request = %+v", got)
	}
}

func TestSynthesizeClassifiesFailures(t *testing.T) {
	tests := []struct {
		name       string
		code       int
		body       string
		want       domain.Kind
		wantReason string
	}{
		{"rate limited", http.StatusTooManyRequests, `{"detail":{"status":"too_many_concurrent_requests","message":"slow down"}}`, domain.KindTransient, ""},
		{"server error", http.StatusInternalServerError, ``, domain.KindTransient, ""},
		{"unauthorized", http.StatusUnauthorized, `{"detail":{"status":"invalid_api_key","message":"Invalid API key"}}`, domain.KindPermanent, "Invalid API key"},
		{"unknown voice", http.StatusNotFound, `{"detail":"voice not found"}`, domain.KindPermanent, "voice not found"},
		{"validation", http.StatusUnprocessableEntity, `not json`, domain.KindPermanent, "Unprocessable Entity"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.code)
				fmt.Fprint(w, tt.body)
			})
			_, err := p.Synthesize(context.Background(), "text", "v")
			if got := domain.KindOf(err); got != tt.want {
				t.Fatalf("KindOf() = %q, want %q (err %v)", got, tt.want, err)
			}
			if tt.wantReason == "" {
				return
			}
			var perm *domain.PermanentRequestError
			if !errors.As(err, &perm) || perm.Reason != tt.wantReason {
				t.Errorf("reason = %+v, want %q", perm, tt.wantReason)
			}
		})
	}
}

func TestSynthesizeThrottledIsTransient(t *testing.T) {
	var hits atomic.Int32
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Write([]byte{1, 0})
	})
	p.limiter = rate.NewLimiter(rate.Every(time.Minute), 1)

	if _, err := p.Synthesize(context.Background(), "first", "voice123"); err != nil {
		t.Fatalf("first call: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := p.Synthesize(ctx, "second", "voice123")
	if !domain.IsTransient(err) {
		t.Errorf("throttled call: got %v, want a transient error", err)
	}
	if n := hits.Load(); n != 1 {
		t.Errorf("server hits = %d, want 1", n)
	}
}

func TestNewValidates(t *testing.T) {
	if _, err := New(Config{}); domain.KindOf(err) != domain.KindConfiguration {
		t.Errorf("missing key: %v", err)
	}
	cfg := DefaultConfig()
	cfg.APIKey = "k"
	cfg.OutputRate = 11025
	if _, err := New(cfg); domain.KindOf(err) != domain.KindConfiguration {
		t.Errorf("bad rate: %v", err)
	}
}

func TestSynthesizeRejectsEmptyText(t *testing.T) {
	p := newTestProvider(t, func(w http.ResponseWriter, r *http.Request) {
		t.Error("no request expected")
	})
	if _, err := p.Synthesize(context.Background(), "  ", "v"); domain.KindOf(err) != domain.KindPermanent {
		t.Errorf("empty text: %v", err)
	}
}
