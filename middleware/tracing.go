package middleware

import (
	"net/http"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"

	"github.com/broady/tether"
)

const tracerName = "github.com/broady/tether/middleware"

// TracingInterceptor starts a client span per call and injects its context
// into the request headers. A nil tp uses the global tracer provider; a nil
// prop uses the global propagator.
func TracingInterceptor(tp trace.TracerProvider, prop propagation.TextMapPropagator) tether.Interceptor {
	if tp == nil {
		tp = otel.GetTracerProvider()
	}
	if prop == nil {
		prop = otel.GetTextMapPropagator()
	}
	tracer := tp.Tracer(tracerName)

	return func(info *tether.CallInfo, req *http.Request, next tether.HandlerFunc) (*http.Response, error) {
		ctx, span := tracer.Start(req.Context(), info.EndpointID(),
			trace.WithSpanKind(trace.SpanKindClient),
			trace.WithAttributes(
				attribute.String("http.request.method", req.Method),
				attribute.String("url.full", req.URL.String()),
				attribute.String("rpc.service", info.Contract),
				attribute.String("rpc.method", info.Method),
			),
		)
		defer span.End()

		req = req.Clone(ctx)
		prop.Inject(ctx, propagation.HeaderCarrier(req.Header))

		resp, err := next(req)
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		span.SetAttributes(attribute.Int("http.response.status_code", resp.StatusCode))
		if resp.StatusCode >= 400 {
			span.SetStatus(codes.Error, resp.Status)
		}
		return resp, nil
	}
}
