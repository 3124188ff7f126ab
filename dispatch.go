package tether

import (
	"context"
	"log/slog"
	"net/http"
	"reflect"
)

// dispatcher performs the calls of one bound contract. It is immutable after
// construction and safe for concurrent use.
type dispatcher struct {
	contract  *Contract
	builder   requestBuilder
	adapter   adapter
	send      HandlerFunc
	intercept Interceptor
	headers   http.Header
	logger    *slog.Logger
}

// boundMethod is one contract method bound to a dispatcher.
type boundMethod struct {
	d        *dispatcher
	entry    *methodEntry
	info     *CallInfo
	ctxIndex int
}

func (d *dispatcher) method(entry *methodEntry) *boundMethod {
	m := &boundMethod{
		d:     d,
		entry: entry,
		info: &CallInfo{
			Contract: d.contract.Name(),
			Method:   entry.call.Method,
			Verb:     entry.call.Verb,
			Path:     entry.call.Path,
			Shape:    entry.call.Shape,
			Async:    entry.call.Async,
		},
		ctxIndex: -1,
	}
	for _, p := range entry.params {
		if p.Role == RoleCancellation {
			m.ctxIndex = p.Index
		}
	}
	return m
}

// call is the body of the function installed in the contract field. Blocking
// methods run on the caller's goroutine; future-returning methods start a
// goroutine and return at once.
func (m *boundMethod) call(args []reflect.Value) []reflect.Value {
	ctx := context.Background()
	if m.ctxIndex >= 0 {
		if c, ok := args[m.ctxIndex].Interface().(context.Context); ok && c != nil {
			ctx = c
		}
	}
	call := &m.entry.call
	if call.Async {
		p := newPromise()
		fut := newFutureValue(m.entry.fn.Out(0), p)
		go func() {
			v, err := m.d.execute(ctx, m, args)
			if err != nil || !v.IsValid() {
				p.resolve(nil, err)
				return
			}
			p.resolve(v.Interface(), nil)
		}()
		return []reflect.Value{fut}
	}

	v, err := m.d.execute(ctx, m, args)
	if m.entry.fn.NumOut() == 1 {
		return []reflect.Value{errorValue(err)}
	}
	out := m.entry.fn.Out(0)
	if err != nil || !v.IsValid() {
		return []reflect.Value{reflect.Zero(out), errorValue(err)}
	}
	return []reflect.Value{assignable(v, out), errorValue(nil)}
}

// execute builds, sends and adapts one call.
func (d *dispatcher) execute(ctx context.Context, m *boundMethod, args []reflect.Value) (reflect.Value, error) {
	call := &m.entry.call
	req, err := d.builder.build(withCallInfo(ctx, m.info), call, m.entry.params, args)
	if err != nil {
		return reflect.Value{}, err
	}
	for k, vs := range d.headers {
		if _, ok := req.Header[k]; !ok {
			req.Header[k] = append([]string(nil), vs...)
		}
	}
	if call.LongRunning {
		req = req.WithContext(WithRequestTimeout(req.Context(), Infinite))
	}

	d.logger.LogAttrs(ctx, slog.LevelDebug, "sending request",
		slog.String("endpoint", m.info.EndpointID()),
		slog.String("method", req.Method),
		slog.String("uri", req.URL.String()))

	var resp *http.Response
	if d.intercept != nil {
		resp, err = d.intercept(m.info, req, d.send)
	} else {
		resp, err = d.send(req)
	}
	if err != nil {
		d.logger.LogAttrs(ctx, slog.LevelDebug, "request failed",
			slog.String("endpoint", m.info.EndpointID()),
			slog.Any("error", err))
		return reflect.Value{}, err
	}
	return d.adapter.adapt(ctx, call, resp)
}

// assignable returns v as a value of exactly type t.
func assignable(v reflect.Value, t reflect.Type) reflect.Value {
	if v.Type() == t {
		return v
	}
	out := reflect.New(t).Elem()
	out.Set(v)
	return out
}
