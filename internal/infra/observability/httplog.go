package observability

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

type requestLogKey struct{}

// requestLog collects fields that inner handlers learn while serving a
// request (who the caller is, which trace it belongs to). They are written
// on the single access log line when the request completes.
type requestLog struct {
	mu     sync.Mutex
	fields []zap.Field
}

// AnnotateRequest attaches fields to the access log line of the request
// carried by ctx. It is a no-op outside AccessLog.
func AnnotateRequest(ctx context.Context, fields ...zap.Field) {
	rl, ok := ctx.Value(requestLogKey{}).(*requestLog)
	if !ok {
		return
	}
	rl.mu.Lock()
	rl.fields = append(rl.fields, fields...)
	rl.mu.Unlock()
}

// AccessLog writes one line per request once the handler chain returns.
// The route field is the chi pattern ("/v1/transactions/{id}"), so lines
// group by endpoint without the ids in the path.
func AccessLog(logger *zap.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			rl := &requestLog{}
			r = r.WithContext(context.WithValue(r.Context(), requestLogKey{}, rl))

			defer func() {
				status := ww.Status()
				if status == 0 {
					// handler wrote nothing; net/http sends 200
					status = http.StatusOK
				}

				fields := []zap.Field{
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.Int("status", status),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("latency", time.Since(start)),
					zap.String("request_id", middleware.GetReqID(r.Context())),
					zap.String("remote_addr", r.RemoteAddr),
				}
				if rctx := chi.RouteContext(r.Context()); rctx != nil {
					if pattern := rctx.RoutePattern(); pattern != "" {
						fields = append(fields, zap.String("route", pattern))
					}
				}
				rl.mu.Lock()
				fields = append(fields, rl.fields...)
				rl.mu.Unlock()

				if ce := logger.Check(accessLevel(r.URL.Path, status), "http request"); ce != nil {
					ce.Write(fields...)
				}
			}()

			next.ServeHTTP(ww, r)
		})
	}
}

// accessLevel keeps health and scrape traffic out of info logs.
func accessLevel(path string, status int) zapcore.Level {
	switch {
	case status >= 500:
		return zapcore.ErrorLevel
	case status >= 400:
		return zapcore.WarnLevel
	}
	switch path {
	case "/healthz", "/readyz", "/metrics", "/ping":
		return zapcore.DebugLevel
	}
	return zapcore.InfoLevel
}

// TracingMiddleware continues the caller's trace from the W3C headers and
// tags the access log with its trace id.
func TracingMiddleware(next http.Handler) http.Handler {
	propagator := otel.GetTextMapPropagator()
	if propagator == nil {
		propagator = propagation.TraceContext{}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := propagator.Extract(r.Context(), propagation.HeaderCarrier(r.Header))
		if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
			AnnotateRequest(ctx, zap.String("trace_id", sc.TraceID().String()))
		}
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
