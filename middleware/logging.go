package middleware

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/broady/tether"
)

// LoggingInterceptor creates an interceptor that logs outbound calls using slog.
// It logs the start and end of each call, including duration, status and error.
func LoggingInterceptor(logger *slog.Logger) tether.Interceptor {
	if logger == nil {
		logger = slog.Default()
	}

	return func(info *tether.CallInfo, req *http.Request, next tether.HandlerFunc) (*http.Response, error) {
		ctx := req.Context()
		start := time.Now()

		logger.InfoContext(ctx, "request started",
			slog.String("endpoint", info.EndpointID()),
			slog.String("method", req.Method),
			slog.String("uri", req.URL.String()),
		)

		resp, err := next(req)
		duration := time.Since(start)

		switch {
		case err != nil:
			logger.ErrorContext(ctx, "request failed",
				slog.String("endpoint", info.EndpointID()),
				slog.Duration("duration", duration),
				slog.String("code", string(tether.CodeOf(err))),
				slog.Any("error", err),
			)
		case resp.StatusCode >= 400:
			logger.WarnContext(ctx, "request completed",
				slog.String("endpoint", info.EndpointID()),
				slog.Duration("duration", duration),
				slog.Int("status", resp.StatusCode),
			)
		default:
			logger.InfoContext(ctx, "request completed",
				slog.String("endpoint", info.EndpointID()),
				slog.Duration("duration", duration),
				slog.Int("status", resp.StatusCode),
			)
		}

		return resp, err
	}
}
