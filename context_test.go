package tether

import (
	"context"
	"testing"
	"time"
)

func TestRequestTimeout(t *testing.T) {
	t.Run("with timeout in context", func(t *testing.T) {
		ctx := WithRequestTimeout(context.Background(), 3*time.Second)
		d, ok := RequestTimeout(ctx)
		if !ok || d != 3*time.Second {
			t.Errorf("expected 3s, got %v (ok=%v)", d, ok)
		}
	})

	t.Run("infinite", func(t *testing.T) {
		ctx := WithRequestTimeout(context.Background(), Infinite)
		d, ok := RequestTimeout(ctx)
		if !ok || d != Infinite {
			t.Errorf("expected Infinite, got %v (ok=%v)", d, ok)
		}
	})

	t.Run("without timeout in context", func(t *testing.T) {
		if _, ok := RequestTimeout(context.Background()); ok {
			t.Error("expected no timeout when none was set")
		}
	})
}

func TestCallInfoFromContext(t *testing.T) {
	t.Run("with call info in context", func(t *testing.T) {
		info := &CallInfo{Contract: "PostsAPI", Method: "Get"}
		got, ok := CallInfoFromContext(withCallInfo(context.Background(), info))
		if !ok || got != info {
			t.Error("expected call info to be returned from context")
		}
	})

	t.Run("without call info in context", func(t *testing.T) {
		if _, ok := CallInfoFromContext(context.Background()); ok {
			t.Error("expected no call info")
		}
	})
}
