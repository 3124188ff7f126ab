package tether

import (
	"context"
	"errors"
	"reflect"
	"strconv"
	"testing"
	"time"
)

func TestFuture_Resolve(t *testing.T) {
	p := newPromise()
	f := newFutureValue(reflect.TypeFor[*Future[int]](), p).Interface().(*Future[int])

	select {
	case <-f.Done():
		t.Fatal("future resolved early")
	default:
	}

	go p.resolve(42, nil)

	v, err := f.Await(context.Background())
	if err != nil || v != 42 {
		t.Errorf("expected 42, got %v, %v", v, err)
	}
	// Results stay available after the first read.
	v, err = f.Result()
	if err != nil || v != 42 {
		t.Errorf("expected 42 again, got %v, %v", v, err)
	}
}

func TestFuture_Error(t *testing.T) {
	testErr := errors.New("failed")
	f := Resolved[*Post](nil, testErr)
	v, err := f.Result()
	if err != testErr {
		t.Errorf("expected test error, got %v", err)
	}
	if v != nil {
		t.Errorf("expected nil value, got %v", v)
	}
}

func TestFuture_NilValueIsZero(t *testing.T) {
	p := newPromise()
	p.resolve(nil, nil)
	f := &Future[Void]{p: p}
	if _, err := f.Result(); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestFuture_AwaitContext(t *testing.T) {
	f := &Future[int]{p: newPromise()}
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	if _, err := f.Await(ctx); !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("expected deadline exceeded, got %v", err)
	}
}

func TestFutureValueType(t *testing.T) {
	tests := []struct {
		future reflect.Type
		want   reflect.Type
	}{
		{reflect.TypeFor[*Future[int]](), reflect.TypeFor[int]()},
		{reflect.TypeFor[*Future[*Post]](), reflect.TypeFor[*Post]()},
		{reflect.TypeFor[*Future[Void]](), voidType},
	}
	for _, tt := range tests {
		if got := futureValueType(tt.future); got != tt.want {
			t.Errorf("futureValueType(%v) = %v, want %v", tt.future, got, tt.want)
		}
	}
}

func TestThen(t *testing.T) {
	f := Then(Resolved(21, nil), func(v int) (string, error) {
		return strconv.Itoa(v * 2), nil
	})
	v, err := f.Result()
	if err != nil || v != "42" {
		t.Errorf("expected \"42\", got %q, %v", v, err)
	}

	testErr := errors.New("failed")
	called := false
	g := Then(Resolved(0, testErr), func(v int) (string, error) {
		called = true
		return "", nil
	})
	if _, err := g.Result(); err != testErr {
		t.Errorf("expected test error, got %v", err)
	}
	if called {
		t.Error("fn must not run when the future failed")
	}
}
