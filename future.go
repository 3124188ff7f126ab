package tether

import (
	"context"
	"reflect"
)

// Future is the pending result of a method declared to return *Future[T].
// The call runs on its own goroutine; the future resolves exactly once.
type Future[T any] struct {
	p *promise
}

type promise struct {
	done  chan struct{}
	value any
	err   error
}

func newPromise() *promise {
	return &promise{done: make(chan struct{})}
}

func (p *promise) resolve(value any, err error) {
	p.value, p.err = value, err
	close(p.done)
}

// futureBinder lets the dispatcher construct a *Future[T] for a T only known
// at run time.
type futureBinder interface {
	bind(p *promise)
	valueType() reflect.Type
}

func (f *Future[T]) bind(p *promise) { f.p = p }

func (*Future[T]) valueType() reflect.Type { return reflect.TypeFor[T]() }

// futureValueType returns T for t = *Future[T].
func futureValueType(t reflect.Type) reflect.Type {
	return reflect.Zero(t).Interface().(futureBinder).valueType()
}

func newFutureValue(t reflect.Type, p *promise) reflect.Value {
	v := reflect.New(t.Elem())
	v.Interface().(futureBinder).bind(p)
	return v
}

// Done returns a channel that is closed once the future has resolved.
func (f *Future[T]) Done() <-chan struct{} {
	return f.p.done
}

// Await waits for the result. If ctx ends first Await returns ctx.Err();
// the call itself keeps running under the context it was started with.
func (f *Future[T]) Await(ctx context.Context) (T, error) {
	select {
	case <-f.p.done:
		return f.result()
	case <-ctx.Done():
		var zero T
		return zero, ctx.Err()
	}
}

// Result blocks until the future resolves.
func (f *Future[T]) Result() (T, error) {
	<-f.p.done
	return f.result()
}

func (f *Future[T]) result() (T, error) {
	v, _ := f.p.value.(T)
	return v, f.p.err
}

// Resolved returns a future that has already resolved to v and err.
func Resolved[T any](v T, err error) *Future[T] {
	p := newPromise()
	p.resolve(v, err)
	return &Future[T]{p: p}
}

// Then returns a future resolving to fn applied to f's value. fn is not
// called when f fails; the error is propagated instead.
func Then[T, U any](f *Future[T], fn func(T) (U, error)) *Future[U] {
	p := newPromise()
	go func() {
		v, err := f.Result()
		if err != nil {
			p.resolve(nil, err)
			return
		}
		p.resolve(fn(v))
	}()
	return &Future[U]{p: p}
}
