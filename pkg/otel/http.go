package otel

import (
	"strconv"

	"github.com/gin-gonic/gin"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	semconv "go.opentelemetry.io/otel/semconv/v1.24.0"
	"go.opentelemetry.io/otel/trace"
)

// GinMiddleware Gin 框架的 HTTP 追踪中间件
func GinMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		propagator := GetTextMapPropagator()
		ctx := propagator.Extract(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))

		route := c.FullPath()
		if route == "" {
			route = c.Request.URL.Path
		}
		ctx, span := Tracer().Start(ctx, c.Request.Method+" "+route,
			trace.WithSpanKind(trace.SpanKindServer),
			trace.WithAttributes(
				attribute.String("http.request.method", c.Request.Method),
				semconv.HTTPRouteKey.String(route),
				attribute.String("url.full", c.Request.URL.String()),
				attribute.String("user_agent.original", c.Request.UserAgent()),
			),
		)
		defer span.End()

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		statusCode := c.Writer.Status()
		span.SetAttributes(
			attribute.Int("http.response.status_code", statusCode),
			attribute.Int("http.response.body.size", c.Writer.Size()),
		)
		if statusCode >= 500 {
			span.SetStatus(codes.Error, "HTTP "+strconv.Itoa(statusCode))
		}

		// 将 trace context 注入响应头
		propagator.Inject(ctx, propagation.HeaderCarrier(c.Writer.Header()))
	}
}
