package tether

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"go.uber.org/goleak"
)

// blockingDoer waits for the request context to end, like a transport
// talking to a server that never answers.
var blockingDoer = DoerFunc(func(req *http.Request) (*http.Response, error) {
	<-req.Context().Done()
	return nil, &url.Error{Op: req.Method, URL: req.URL.String(), Err: req.Context().Err()}
})

func sleepingDoer(d time.Duration) DoerFunc {
	return func(req *http.Request) (*http.Response, error) {
		select {
		case <-time.After(d):
			return okResponse(req), nil
		case <-req.Context().Done():
			return nil, &url.Error{Op: req.Method, URL: req.URL.String(), Err: req.Context().Err()}
		}
	}
}

func newGovernorRequest(ctx context.Context) *http.Request {
	return httptest.NewRequest("GET", "http://example.com/slow", nil).WithContext(ctx)
}

func TestGovernor_DefaultTimeout(t *testing.T) {
	if got := NewGovernor(blockingDoer, 0).Timeout(); got != DefaultTimeout {
		t.Errorf("expected %v, got %v", DefaultTimeout, got)
	}
	if got := NewGovernor(blockingDoer, Infinite).Timeout(); got != Infinite {
		t.Errorf("expected Infinite, got %v", got)
	}
}

func TestGovernor_Timeout(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	g := NewGovernor(blockingDoer, 20*time.Millisecond)
	start := time.Now()
	resp, err := g.Do(newGovernorRequest(context.Background()))
	if resp != nil {
		t.Error("expected nil response")
	}
	if !errors.Is(err, ErrTimeout) {
		t.Fatalf("expected timeout error, got %v", err)
	}
	if errors.Is(err, ErrCanceled) {
		t.Error("a governor timeout must not report as canceled")
	}
	if CodeOf(err) != CodeDeadlineExceeded {
		t.Errorf("expected deadline_exceeded, got %s", CodeOf(err))
	}
	var urlErr *url.Error
	if !errors.As(err, &urlErr) {
		t.Error("expected the transport error to be kept as the cause")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Errorf("timeout took too long: %v", elapsed)
	}
}

func TestGovernor_CallerCancel(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	g := NewGovernor(blockingDoer, 10*time.Second)
	_, err := g.Do(newGovernorRequest(ctx))
	if !errors.Is(err, ErrCanceled) {
		t.Fatalf("expected canceled error, got %v", err)
	}
	if errors.Is(err, ErrTimeout) {
		t.Error("a caller cancellation must not report as a timeout")
	}
}

func TestGovernor_CallerDeadline(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	g := NewGovernor(blockingDoer, 10*time.Second)
	_, err := g.Do(newGovernorRequest(ctx))
	if !errors.Is(err, ErrCanceled) {
		t.Fatalf("expected canceled error, got %v", err)
	}
}

func TestGovernor_Disabled(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	g := NewGovernor(sleepingDoer(50*time.Millisecond), Infinite)
	resp, err := g.Do(newGovernorRequest(context.Background()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	resp.Body.Close()

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)
	_, err = NewGovernor(blockingDoer, Infinite).Do(newGovernorRequest(ctx))
	if !errors.Is(err, ErrCanceled) {
		t.Errorf("expected canceled error with the governor disabled, got %v", err)
	}
}

func TestGovernor_RequestOverride(t *testing.T) {
	tests := []struct {
		name     string
		client   time.Duration
		request  time.Duration
		wantErr  error
		doerWait time.Duration
	}{
		{"shorter override times out", 10 * time.Second, 20 * time.Millisecond, ErrTimeout, time.Second},
		{"longer override succeeds", 20 * time.Millisecond, 10 * time.Second, nil, 60 * time.Millisecond},
		{"infinite override succeeds", 20 * time.Millisecond, Infinite, nil, 60 * time.Millisecond},
		{"zero override keeps client timeout", 10 * time.Second, 0, nil, 20 * time.Millisecond},
		{"zero override still times out at client timeout", 20 * time.Millisecond, 0, ErrTimeout, time.Second},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			g := NewGovernor(sleepingDoer(tt.doerWait), tt.client)
			ctx := WithRequestTimeout(context.Background(), tt.request)
			resp, err := g.Do(newGovernorRequest(ctx))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Errorf("expected %v, got %v", tt.wantErr, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			resp.Body.Close()
		})
	}
}

func TestGovernor_TransportErrorPassthrough(t *testing.T) {
	testErr := errors.New("connection refused")
	g := NewGovernor(DoerFunc(func(*http.Request) (*http.Response, error) {
		return nil, testErr
	}), time.Second)

	if _, err := g.Do(newGovernorRequest(context.Background())); err != testErr {
		t.Errorf("expected the transport error unchanged, got %v", err)
	}
}

func TestGovernor_BodyCloseReleasesContext(t *testing.T) {
	defer goleak.VerifyNone(t, goleak.IgnoreCurrent())

	var sent context.Context
	g := NewGovernor(DoerFunc(func(req *http.Request) (*http.Response, error) {
		sent = req.Context()
		resp := okResponse(req)
		resp.Body = io.NopCloser(strings.NewReader("payload"))
		return resp, nil
	}), 20*time.Millisecond)

	resp, err := g.Do(newGovernorRequest(context.Background()))
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	// The timer is disarmed once the call returns, so the body outlives the deadline.
	time.Sleep(50 * time.Millisecond)
	if sent.Err() != nil {
		t.Fatalf("expected the request context to stay live until Close, got %v", sent.Err())
	}
	data, err := io.ReadAll(resp.Body)
	if err != nil || string(data) != "payload" {
		t.Fatalf("unexpected body %q, %v", data, err)
	}

	resp.Body.Close()
	if sent.Err() == nil {
		t.Error("expected Close to release the request context")
	}
	if errors.Is(context.Cause(sent), errDeadline) {
		t.Error("release must not look like a timeout")
	}
}
