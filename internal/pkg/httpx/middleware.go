package httpx

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
)

// HeaderXRequestID is propagated on every outbound service-to-service call so
// one user action can be followed through the whole fleet.
const HeaderXRequestID = "X-Request-Id"

type contextKey string

// ContextKeyRequestID is the context key under which the request ID is stored.
const ContextKeyRequestID contextKey = "request_id"

// NewRouter builds a chi router with the middleware stack every service uses:
// request IDs, panic recovery, slog request logging, and OTel server spans.
func NewRouter(serviceName string) chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(AttachRequestMetadata)
	r.Use(RequestLogger)
	r.Use(middleware.Recoverer)
	r.Use(func(next http.Handler) http.Handler {
		return otelhttp.NewHandler(next, serviceName)
	})
	return r
}

// AttachRequestMetadata copies the chi request ID into the context under a
// typed key so handlers and outbound clients can read it without importing
// chi's middleware package.
func AttachRequestMetadata(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(HeaderXRequestID)
		if requestID == "" {
			requestID = middleware.GetReqID(r.Context())
		}
		ctx := context.WithValue(r.Context(), ContextKeyRequestID, requestID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// RequestIDFromContext returns the request ID attached by AttachRequestMetadata,
// or "unknown" when the middleware did not run (e.g. in unit tests).
func RequestIDFromContext(ctx context.Context) string {
	if id, ok := ctx.Value(ContextKeyRequestID).(string); ok && id != "" {
		return id
	}
	return "unknown"
}

// RequestLogger logs method, path, status, and latency for every request.
func RequestLogger(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		slog.InfoContext(r.Context(), "request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start).String(),
			"request_id", RequestIDFromContext(r.Context()),
		)
	})
}
