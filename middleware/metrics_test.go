package middleware

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"

	"github.com/broady/tether"
)

func TestMetrics_CountsByStatus(t *testing.T) {
	reg := prometheus.NewRegistry()
	m := NewMetrics(reg, "test")
	interceptor := m.Interceptor()

	info := &tether.CallInfo{Contract: "PostsAPI", Method: "Get"}
	for _, status := range []int{200, 200, 404} {
		req := httptest.NewRequest("GET", "http://example.com/posts/1", nil)
		if _, err := interceptor(info, req, respond(status)); err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}

	if got := testutil.ToFloat64(m.Requests.WithLabelValues("PostsAPI.Get", "GET", "200")); got != 2 {
		t.Errorf("expected 2 requests with status 200, got %v", got)
	}
	if got := testutil.ToFloat64(m.Requests.WithLabelValues("PostsAPI.Get", "GET", "404")); got != 1 {
		t.Errorf("expected 1 request with status 404, got %v", got)
	}
	if n := testutil.CollectAndCount(m.Duration); n != 1 {
		t.Errorf("expected 1 duration series, got %d", n)
	}
}

func TestMetrics_ErrorCodeLabel(t *testing.T) {
	m := NewMetrics(nil, "test")
	interceptor := m.Interceptor()

	info := &tether.CallInfo{Contract: "PostsAPI", Method: "Get"}
	req := httptest.NewRequest("GET", "http://example.com/posts/1", nil)
	_, err := interceptor(info, req, func(*http.Request) (*http.Response, error) {
		return nil, context.Canceled
	})
	if err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	if got := testutil.ToFloat64(m.Requests.WithLabelValues("PostsAPI.Get", "GET", string(tether.CodeCanceled))); got != 1 {
		t.Errorf("expected 1 canceled request, got %v", got)
	}
}

func TestMetrics_Registers(t *testing.T) {
	reg := prometheus.NewRegistry()
	NewMetrics(reg, "test")

	defer func() {
		if recover() == nil {
			t.Error("expected registering the same collectors twice to panic")
		}
	}()
	NewMetrics(reg, "test")
}
