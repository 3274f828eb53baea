package httppresentation

import (
	"strconv"
	"time"

	"github.com/Zhima-Mochi/stock-ledger/internal/observability"
	"github.com/Zhima-Mochi/stock-ledger/internal/observability/logctx"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/trace"
)

const (
	headerRequestID = "X-Request-ID"
	routeUnmatched  = "unmatched"
)

// ObservabilityMiddleware combines:
// - X-Request-ID generation + echo
// - request-scoped logger injection (dynamic fields only)
// - HTTP metrics with the route template as a low-cardinality label
// - one access log line per request
//
// It must run after otelgin so the server span is already on the request context.
func ObservabilityMiddleware(tel observability.Observability) gin.HandlerFunc {
	base, _, metrics := observability.Resolve(tel)
	base = base.With(observability.F("component", componentHTTP))
	requests := metrics.Counter(observability.MHTTPRequests)
	durations := metrics.Histogram(observability.MHTTPRequestDuration)

	return func(c *gin.Context) {
		start := time.Now()

		rid := c.GetHeader(headerRequestID)
		if rid == "" {
			rid = uuid.NewString()
		}
		c.Header(headerRequestID, rid)

		ctx := c.Request.Context()
		fields := []observability.Field{observability.F("request_id", rid)}
		if sc := trace.SpanContextFromContext(ctx); sc.IsValid() {
			fields = append(fields,
				observability.F("trace_id", sc.TraceID().String()),
				observability.F("span_id", sc.SpanID().String()),
			)
		}
		reqLogger := base.With(fields...)
		c.Request = c.Request.WithContext(logctx.With(ctx, reqLogger))

		c.Next()

		route := c.FullPath()
		if route == "" {
			route = routeUnmatched
		}
		status := c.Writer.Status()
		lat := time.Since(start)
		labels := []observability.Label{
			observability.L("method", c.Request.Method),
			observability.L("route", route),
			observability.L("status", strconv.Itoa(status)),
		}
		requests.Add(1, labels...)
		durations.Observe(lat.Seconds(), labels...)

		reqLogger.Info("http_access",
			observability.F("method", c.Request.Method),
			observability.F("route", route),
			observability.F("path", c.Request.URL.Path),
			observability.F("status", status),
			observability.F("latency_ms", lat.Milliseconds()),
			observability.F("client_ip", c.ClientIP()),
		)
	}
}
