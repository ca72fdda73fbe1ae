package domain

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
)

// StatusError classifies an HTTP status returned by service. Timeouts, rate
// limits and server errors are transient; every other failure status is
// permanent.
func StatusError(service string, code int, reason string, err error) error {
	switch {
	case code == http.StatusRequestTimeout,
		code == http.StatusTooManyRequests,
		code >= 500:
		return &TransientServiceError{Service: service, StatusCode: code, Err: withReason(reason, err)}
	default:
		return &PermanentRequestError{Service: service, StatusCode: code, Reason: reason, Err: err}
	}
}

// TransportError classifies a failure that happened before a status was
// received. Cancellation of ctx is reported as ErrCancelled; timeouts,
// connection failures and truncated bodies are transient.
func TransportError(ctx context.Context, service string, err error) error {
	if ctx.Err() != nil {
		return errors.Join(ErrCancelled, ctx.Err())
	}

	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, io.ErrUnexpectedEOF),
		errors.Is(err, io.EOF),
		errors.As(err, &netErr):
		return &TransientServiceError{Service: service, Err: err}
	default:
		return &PermanentRequestError{Service: service, Reason: "request failed", Err: err}
	}
}

// ThrottleError classifies a failed wait on a client-side rate limiter. The
// call never reached service, so unless ctx itself is done it is worth
// trying again.
func ThrottleError(ctx context.Context, service string, err error) error {
	if ctx.Err() != nil {
		return errors.Join(ErrCancelled, ctx.Err())
	}
	return &TransientServiceError{Service: service, Err: err}
}

func withReason(reason string, err error) error {
	switch {
	case reason == "":
		return err
	case err == nil:
		return errors.New(reason)
	default:
		return errors.Join(errors.New(reason), err)
	}
}
