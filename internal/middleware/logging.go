package middleware

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"connectrpc.com/connect"
	"go.opentelemetry.io/otel/trace"
)

// LoggingInterceptor returns a Connect interceptor that logs every RPC call.
// Client errors are logged at WARN, internal failures at ERROR. Install it
// after RequireAuth so the user ID is known.
func LoggingInterceptor() connect.UnaryInterceptorFunc {
	return func(next connect.UnaryFunc) connect.UnaryFunc {
		return func(ctx context.Context, req connect.AnyRequest) (connect.AnyResponse, error) {
			start := time.Now()
			resp, err := next(ctx, req)

			attrs := []any{
				"procedure", req.Spec().Procedure,
				"user_id", GetUserID(ctx),
				"duration_ms", time.Since(start).Milliseconds(),
			}
			if sc := trace.SpanContextFromContext(ctx); sc.HasTraceID() {
				attrs = append(attrs, "trace_id", sc.TraceID().String())
			}

			if err == nil {
				slog.InfoContext(ctx, "RPC ok", attrs...)
				return resp, nil
			}

			var connectErr *connect.Error
			if errors.As(err, &connectErr) && connectErr.Code() != connect.CodeInternal && connectErr.Code() != connect.CodeUnknown {
				attrs = append(attrs, "code", connectErr.Code(), "error", connectErr.Message())
				slog.WarnContext(ctx, "RPC error", attrs...)
			} else {
				attrs = append(attrs, "code", connect.CodeOf(err), "error", err)
				slog.ErrorContext(ctx, "RPC error", attrs...)
			}
			return resp, err
		}
	}
}
