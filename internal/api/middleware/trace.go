package middleware

import (
	"log/slog"
	"net/http"

	"github.com/phrazzld/scry-forge/internal/api/shared"
	"github.com/phrazzld/scry-forge/internal/platform/logger"
)

// NewTraceMiddleware adds a trace ID to the request context and attaches a
// logger carrying it, so every log line of the request can be correlated
// with the error response.
func NewTraceMiddleware(base *slog.Logger) func(http.Handler) http.Handler {
	if base == nil {
		base = slog.Default()
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := shared.SetTraceID(r.Context())
			log := base.With("trace_id", shared.GetTraceID(ctx))
			log.DebugContext(ctx, "request started",
				"method", r.Method,
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr)

			next.ServeHTTP(w, r.WithContext(logger.WithLogger(ctx, log)))
		})
	}
}
