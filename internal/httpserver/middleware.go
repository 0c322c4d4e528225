package httpserver

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"freelancehub/internal/apperr"
	"freelancehub/internal/handler"
	"freelancehub/internal/service/auth"
	"freelancehub/pkg/logger"
	"freelancehub/pkg/metrics"
	"freelancehub/pkg/rbac"
	"freelancehub/pkg/trace"
	"freelancehub/pkg/util"
)

// TraceMiddleware 读取或生成 X-Trace-ID 并写回响应头
func TraceMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(trace.HeaderName)
		if id == "" {
			id = trace.GenerateTraceID()
		}
		c.Request = c.Request.WithContext(trace.WithContext(c.Request.Context(), id))
		c.Header(trace.HeaderName, id)
		c.Next()
	}
}

// AccessLogMiddleware 请求日志 + 请求耗时指标
func AccessLogMiddleware(log *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		latency := time.Since(start)
		route := c.FullPath()
		if route == "" {
			route = "unmatched"
		}
		metrics.RecordHTTPRequestDuration(c.Request.Method, route, strconv.Itoa(c.Writer.Status()), latency)

		logger.WithTrace(c.Request.Context(), log).Info("HTTP Request",
			zap.String("method", c.Request.Method),
			zap.String("path", path),
			zap.String("query", query),
			zap.Int("status", c.Writer.Status()),
			zap.Duration("latency", latency),
			zap.String("client_ip", c.ClientIP()),
		)
	}
}

// AuthMiddleware resolves the bearer token once per request and stores the
// identity under handler.IdentityKey.
func AuthMiddleware(authorizer *auth.Authorizer) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, err := authorizer.Authorize(util.ExtractToken(c.Request))
		if err != nil {
			abortWith(c, err)
			return
		}
		c.Set(handler.IdentityKey, identity)
		c.Next()
	}
}

// RequirePermission 中间件：要求用户具有指定权限
func RequirePermission(permission string) gin.HandlerFunc {
	return func(c *gin.Context) {
		identity, ok := handler.CurrentIdentity(c)
		if !ok {
			abortWith(c, apperr.Unauthorized("user not authenticated"))
			return
		}

		if err := rbac.CheckPermission(identity.Role, permission); err != nil {
			abortWith(c, apperr.Forbidden(err.Error()))
			return
		}

		c.Next()
	}
}

// AdminTokenMiddleware 管理接口使用静态 token 校验（X-Admin-Token）
func AdminTokenMiddleware(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		got := c.GetHeader("X-Admin-Token")
		if token == "" || subtle.ConstantTimeCompare([]byte(got), []byte(token)) != 1 {
			abortWith(c, apperr.Unauthorized("invalid admin token"))
			return
		}
		c.Next()
	}
}

func abortWith(c *gin.Context, err error) {
	var ae *apperr.Error
	if !errors.As(err, &ae) {
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal server error", "kind": apperr.KindInternal})
		return
	}
	c.AbortWithStatusJSON(apperr.HTTPStatus(ae.Kind), gin.H{"error": ae.Message, "kind": ae.Kind})
}
