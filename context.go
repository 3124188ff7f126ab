package tether

import (
	"context"
	"time"
)

type contextKey struct {
	name string
}

var (
	callInfoKey = &contextKey{"call_info"}
	timeoutKey  = &contextKey{"request_timeout"}
)

// CallInfoFromContext returns the contract method being invoked. It is set on
// the context of every request the dispatcher sends.
func CallInfoFromContext(ctx context.Context) (*CallInfo, bool) {
	info, ok := ctx.Value(callInfoKey).(*CallInfo)
	return info, ok
}

func withCallInfo(ctx context.Context, info *CallInfo) context.Context {
	return context.WithValue(ctx, callInfoKey, info)
}

// WithRequestTimeout attaches a per-request governor deadline to ctx. It
// overrides the client's default for requests sent with ctx. Use Infinite to
// disable the governor; zero keeps the client's default.
func WithRequestTimeout(ctx context.Context, d time.Duration) context.Context {
	return context.WithValue(ctx, timeoutKey, d)
}

// RequestTimeout returns the per-request deadline attached by WithRequestTimeout.
func RequestTimeout(ctx context.Context) (time.Duration, bool) {
	d, ok := ctx.Value(timeoutKey).(time.Duration)
	return d, ok
}
