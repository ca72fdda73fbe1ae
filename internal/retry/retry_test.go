package retry

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/dgnsrekt/asmrgen/internal/domain"
)

func fastPolicy(attempts int) Policy {
	return Policy{
		MaxAttempts:     attempts,
		InitialInterval: time.Millisecond,
		MaxInterval:     2 * time.Millisecond,
		Multiplier:      2,
	}
}

func TestDoRetriesTransientUpToCeiling(t *testing.T) {
	calls := 0
	transient := &domain.TransientServiceError{Service: "test", StatusCode: 503}

	err := Do(context.Background(), fastPolicy(3), nil, func(_ context.Context, attempt int) error {
		calls++
		if attempt != calls {
			t.Errorf("attempt = %d, want %d", attempt, calls)
		}
		return transient
	})

	if calls != 3 {
		t.Errorf("calls = %d, want 3", calls)
	}
	if !errors.Is(err, transient) {
		t.Errorf("expected last transient error, got %v", err)
	}
}

func TestDoStopsOnPermanent(t *testing.T) {
	calls := 0
	perm := &domain.PermanentRequestError{Service: "test", StatusCode: 401}

	err := Do(context.Background(), fastPolicy(5), nil, func(context.Context, int) error {
		calls++
		return perm
	})

	if calls != 1 {
		t.Errorf("calls = %d, want 1", calls)
	}
	var got *domain.PermanentRequestError
	if !errors.As(err, &got) {
		t.Errorf("expected PermanentRequestError, got %T %v", err, err)
	}
}

func TestDoSucceedsAfterTransient(t *testing.T) {
	calls := 0
	err := Do(context.Background(), fastPolicy(3), nil, func(context.Context, int) error {
		calls++
		if calls < 2 {
			return &domain.TransientServiceError{Service: "test"}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if calls != 2 {
		t.Errorf("calls = %d, want 2", calls)
	}
}

func TestDoHonoursCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	calls := 0
	err := Do(ctx, fastPolicy(3), nil, func(context.Context, int) error {
		calls++
		return nil
	})
	if calls != 0 {
		t.Errorf("operation ran %d times on a cancelled context", calls)
	}
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}

func TestPolicyValidate(t *testing.T) {
	tests := []struct {
		name    string
		p       Policy
		wantErr bool
	}{
		{"default", DefaultPolicy(), false},
		{"zero attempts", Policy{MaxAttempts: 0, Multiplier: 2}, true},
		{"inverted intervals", Policy{MaxAttempts: 3, InitialInterval: time.Second, MaxInterval: time.Millisecond, Multiplier: 2}, true},
		{"shrinking multiplier", Policy{MaxAttempts: 3, Multiplier: 0.5}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := tt.p.Validate(); (err != nil) != tt.wantErr {
				t.Errorf("Validate() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}
