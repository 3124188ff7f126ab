package middleware

import (
	"bytes"
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/broady/tether"
)

func newLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{
		Level: slog.LevelInfo,
	}))
}

func respond(status int) tether.HandlerFunc {
	return func(req *http.Request) (*http.Response, error) {
		return &http.Response{
			StatusCode: status,
			Status:     http.StatusText(status),
			Header:     make(http.Header),
			Body:       io.NopCloser(strings.NewReader("")),
			Request:    req,
		}, nil
	}
}

func TestLoggingInterceptor_Success(t *testing.T) {
	var buf bytes.Buffer
	interceptor := LoggingInterceptor(newLogger(&buf))

	info := &tether.CallInfo{Contract: "PostsAPI", Method: "Get"}
	req := httptest.NewRequest("GET", "http://example.com/posts/1", nil)

	resp, err := interceptor(info, req, respond(http.StatusOK))
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if resp.StatusCode != http.StatusOK {
		t.Errorf("expected 200, got %d", resp.StatusCode)
	}

	logOutput := buf.String()
	if !strings.Contains(logOutput, "request started") {
		t.Error("expected 'request started' in log output")
	}
	if !strings.Contains(logOutput, "request completed") {
		t.Error("expected 'request completed' in log output")
	}
	if !strings.Contains(logOutput, "PostsAPI.Get") {
		t.Error("expected endpoint ID in log output")
	}
	if !strings.Contains(logOutput, "http://example.com/posts/1") {
		t.Error("expected URI in log output")
	}
}

func TestLoggingInterceptor_Error(t *testing.T) {
	var buf bytes.Buffer
	interceptor := LoggingInterceptor(newLogger(&buf))

	info := &tether.CallInfo{Contract: "PostsAPI", Method: "Get"}
	req := httptest.NewRequest("GET", "http://example.com/posts/1", nil)

	testErr := errors.New("test error")
	resp, err := interceptor(info, req, func(*http.Request) (*http.Response, error) {
		return nil, testErr
	})
	if err != testErr {
		t.Errorf("expected test error, got %v", err)
	}
	if resp != nil {
		t.Errorf("expected nil response, got %v", resp)
	}

	logOutput := buf.String()
	if !strings.Contains(logOutput, "request failed") {
		t.Error("expected 'request failed' in log output")
	}
	if !strings.Contains(logOutput, "test error") {
		t.Error("expected error message in log output")
	}
}

func TestLoggingInterceptor_ErrorStatusIsWarning(t *testing.T) {
	var buf bytes.Buffer
	interceptor := LoggingInterceptor(newLogger(&buf))

	info := &tether.CallInfo{Contract: "PostsAPI", Method: "Get"}
	req := httptest.NewRequest("GET", "http://example.com/posts/1", nil)

	if _, err := interceptor(info, req, respond(http.StatusNotFound)); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	logOutput := buf.String()
	if !strings.Contains(logOutput, `"level":"WARN"`) {
		t.Errorf("expected WARN level in log output, got %s", logOutput)
	}
	if !strings.Contains(logOutput, `"status":404`) {
		t.Errorf("expected status in log output, got %s", logOutput)
	}
}

func TestLoggingInterceptor_NilLogger(t *testing.T) {
	// Should not panic with nil logger, should use default
	interceptor := LoggingInterceptor(nil)

	info := &tether.CallInfo{Contract: "PostsAPI", Method: "Get"}
	req := httptest.NewRequest("GET", "http://example.com/posts/1", nil)

	if _, err := interceptor(info, req, respond(http.StatusOK)); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoggingInterceptor_PropagatesContext(t *testing.T) {
	var buf bytes.Buffer
	interceptor := LoggingInterceptor(newLogger(&buf))

	type ctxKey string
	key := ctxKey("test-key")
	ctx := context.WithValue(context.Background(), key, "test-value")
	req := httptest.NewRequest("GET", "http://example.com/posts", nil).WithContext(ctx)

	_, err := interceptor(&tether.CallInfo{Contract: "PostsAPI", Method: "List"}, req, func(req *http.Request) (*http.Response, error) {
		if req.Context().Value(key) != "test-value" {
			t.Error("expected context value to be propagated")
		}
		return respond(http.StatusOK)(req)
	})
	if err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestLoggingInterceptor_EndpointIDInLogs(t *testing.T) {
	var buf bytes.Buffer
	interceptor := LoggingInterceptor(newLogger(&buf))

	tests := []struct {
		contract   string
		method     string
		endpointID string
	}{
		{"UsersAPI", "Create", "UsersAPI.Create"},
		{"PostsAPI", "List", "PostsAPI.List"},
		{"CommentsAPI", "Delete", "CommentsAPI.Delete"},
	}

	for _, tt := range tests {
		t.Run(tt.endpointID, func(t *testing.T) {
			buf.Reset()

			req := httptest.NewRequest("GET", "http://example.com/", nil)
			_, _ = interceptor(&tether.CallInfo{Contract: tt.contract, Method: tt.method}, req, respond(http.StatusOK))

			if !strings.Contains(buf.String(), tt.endpointID) {
				t.Errorf("expected endpoint ID %s in log output", tt.endpointID)
			}
		})
	}
}
