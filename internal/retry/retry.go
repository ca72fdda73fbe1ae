// Package retry runs service calls under an exponential backoff policy.
// Only errors classified as transient are retried; anything else stops the
// loop at once.
package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/charmbracelet/log"

	"github.com/dgnsrekt/asmrgen/internal/domain"
)

// Policy bounds the retry loop of a single service call.
type Policy struct {
	MaxAttempts     int           `yaml:"max_attempts" env:"ASMRGEN_RETRY_MAX_ATTEMPTS" envDefault:"3"`
	InitialInterval time.Duration `yaml:"initial_backoff" env:"ASMRGEN_RETRY_INITIAL_BACKOFF" envDefault:"500ms"`
	MaxInterval     time.Duration `yaml:"max_backoff" env:"ASMRGEN_RETRY_MAX_BACKOFF" envDefault:"8s"`
	Multiplier      float64       `yaml:"multiplier" env:"ASMRGEN_RETRY_MULTIPLIER" envDefault:"2.0"`
}

// DefaultPolicy returns three attempts starting at 500ms.
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts:     3,
		InitialInterval: 500 * time.Millisecond,
		MaxInterval:     8 * time.Second,
		Multiplier:      2.0,
	}
}

// Validate checks the policy ranges.
func (p Policy) Validate() error {
	if p.MaxAttempts < 1 || p.MaxAttempts > 10 {
		return fmt.Errorf("max attempts must be between 1 and 10, got %d", p.MaxAttempts)
	}
	if p.InitialInterval < 0 {
		return fmt.Errorf("initial backoff must not be negative, got %v", p.InitialInterval)
	}
	if p.MaxInterval < p.InitialInterval {
		return fmt.Errorf("max backoff %v is shorter than initial backoff %v", p.MaxInterval, p.InitialInterval)
	}
	if p.Multiplier < 1 {
		return fmt.Errorf("multiplier must be at least 1, got %.2f", p.Multiplier)
	}
	return nil
}

func (p Policy) backOff(ctx context.Context) backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialInterval
	b.MaxInterval = p.MaxInterval
	b.Multiplier = p.Multiplier
	b.MaxElapsedTime = 0
	b.Reset()

	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(attempts-1)), ctx)
}

// Operation is one attempt of a service call. attempt starts at 1.
type Operation func(ctx context.Context, attempt int) error

// Do runs op until it succeeds, returns a non-transient error, runs out of
// attempts or ctx is done. The returned error is the last one op produced,
// or ctx.Err() if the context ended the loop.
func Do(ctx context.Context, p Policy, logger *log.Logger, op Operation) error {
	if logger == nil {
		logger = log.Default()
	}

	attempt := 0
	wrapped := func() error {
		if err := ctx.Err(); err != nil {
			return backoff.Permanent(err)
		}
		attempt++
		err := op(ctx, attempt)
		if err == nil {
			return nil
		}
		if !domain.IsTransient(err) {
			return backoff.Permanent(err)
		}
		return err
	}

	notify := func(err error, next time.Duration) {
		logger.Debug("Retrying after transient failure", "attempt", attempt, "backoff", next, "err", err)
	}

	return backoff.RetryNotify(wrapped, p.backOff(ctx), notify)
}
