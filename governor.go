package tether

import (
	"context"
	"errors"
	"io"
	"net/http"
	"time"
)

const (
	// DefaultTimeout is the governor deadline of a client that sets none.
	DefaultTimeout = 100 * time.Second

	// Infinite disables the governor for a client or a single request.
	Infinite time.Duration = -1
)

// Doer sends HTTP requests. *http.Client implements it.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// DoerFunc adapts a function to the Doer interface.
type DoerFunc func(req *http.Request) (*http.Response, error)

func (f DoerFunc) Do(req *http.Request) (*http.Response, error) {
	return f(req)
}

// errDeadline is the cancellation cause recorded when the governor's timer fires.
var errDeadline = errors.New("tether: governor deadline elapsed")

// Governor enforces a per-request deadline on top of a Doer. The deadline
// comes from WithRequestTimeout on the request context, falling back to the
// governor's default. The timer is armed once per request and is always
// disarmed when the call returns.
//
// A request that runs out of time fails with an error matching ErrTimeout;
// one whose caller context is canceled first fails with an error matching
// ErrCanceled. Other transport errors pass through unchanged.
type Governor struct {
	next    Doer
	timeout time.Duration
}

// NewGovernor wraps next. A zero timeout selects DefaultTimeout.
func NewGovernor(next Doer, timeout time.Duration) *Governor {
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	return &Governor{next: next, timeout: timeout}
}

// Timeout returns the deadline applied to requests without an override.
func (g *Governor) Timeout() time.Duration {
	return g.timeout
}

func (g *Governor) Do(req *http.Request) (*http.Response, error) {
	parent := req.Context()
	timeout := g.timeout
	if d, ok := RequestTimeout(parent); ok && d != 0 {
		timeout = d
	}
	if timeout < 0 {
		resp, err := g.next.Do(req)
		if err != nil {
			return nil, governorError(parent, nil, err, timeout)
		}
		return resp, nil
	}

	ctx, cancel := context.WithCancelCause(parent)
	timer := time.AfterFunc(timeout, func() { cancel(errDeadline) })
	defer timer.Stop()

	resp, err := g.next.Do(req.WithContext(ctx))
	if err == nil && !timer.Stop() {
		// Headers arrived as the timer fired; the body is no longer readable.
		resp.Body.Close()
		err = context.Cause(ctx)
	}
	if err != nil {
		cancel(nil)
		return nil, governorError(parent, ctx, err, timeout)
	}
	resp.Body = &releaseBody{ReadCloser: resp.Body, release: func() { cancel(nil) }}
	return resp, nil
}

// governorError classifies a failed send. The derived context records which
// cancellation happened first.
func governorError(parent, derived context.Context, err error, timeout time.Duration) error {
	if derived != nil && errors.Is(context.Cause(derived), errDeadline) {
		return wrapError(CodeDeadlineExceeded, err, "request timed out after %v", timeout).
			WithDetail("timeout", timeout.String())
	}
	if parent.Err() != nil {
		return wrapError(CodeCanceled, err, "request canceled")
	}
	return err
}

// releaseBody cancels the derived request context once the body is closed.
type releaseBody struct {
	io.ReadCloser
	release func()
}

func (b *releaseBody) Close() error {
	err := b.ReadCloser.Close()
	b.release()
	return err
}
