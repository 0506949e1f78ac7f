package handler

import (
	"context"
	"net/http"
	"strings"
	"time"

	"couplesystem/internal/errs"
	"couplesystem/internal/service"
	"couplesystem/pkg/response"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/propagation"
	"go.opentelemetry.io/otel/trace"
)

const ctxAccountID = "account_id"

// AuthProvider 把 bearer token 解析成账户ID，令牌签发和校验由外部身份服务负责
type AuthProvider interface {
	Resolve(ctx context.Context, token string) (string, error)
}

var ErrInvalidToken = errs.Domain(errs.CodeUnauthorized, "未登录或登录已过期")

// StaticTokenProvider 从配置读取 token -> 账户ID 的映射，用于本地运行和测试
type StaticTokenProvider struct {
	tokens map[string]string
}

func NewStaticTokenProvider(tokens map[string]string) *StaticTokenProvider {
	return &StaticTokenProvider{tokens: tokens}
}

func (p *StaticTokenProvider) Resolve(ctx context.Context, token string) (string, error) {
	accountID, ok := p.tokens[token]
	if !ok || accountID == "" {
		return "", ErrInvalidToken
	}
	return accountID, nil
}

// AuthMiddleware 校验 bearer token，首次出现的身份自动建档
func AuthMiddleware(provider AuthProvider, identity *service.IdentityService) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		token := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		if header == "" || token == "" || token == header {
			response.Unauthorized(c, ErrInvalidToken.Message)
			return
		}

		accountID, err := provider.Resolve(c.Request.Context(), token)
		if err != nil {
			response.Unauthorized(c, ErrInvalidToken.Message)
			return
		}

		if _, err := identity.EnsureAccount(c.Request.Context(), accountID); err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(ctxAccountID, accountID)
		c.Next()
	}
}

// LoggerMiddleware 请求日志
func LoggerMiddleware(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		query := c.Request.URL.RawQuery

		c.Next()

		if query != "" {
			path = path + "?" + query
		}

		fields := logrus.Fields{
			"status":     c.Writer.Status(),
			"latency":    time.Since(start).String(),
			"client_ip":  c.ClientIP(),
			"method":     c.Request.Method,
			"path":       path,
			"account_id": c.GetString(ctxAccountID),
		}
		if sc := trace.SpanContextFromContext(c.Request.Context()); sc.HasTraceID() {
			fields["trace_id"] = sc.TraceID().String()
		}
		entry := log.WithFields(fields)
		if c.Writer.Status() >= http.StatusInternalServerError {
			entry.Warn("HTTP")
			return
		}
		entry.Info("HTTP")
	}
}

// TracingMiddleware 为每个请求创建 server span，上游带了 traceparent 时接到同一条链路上
func TracingMiddleware() gin.HandlerFunc {
	tracer := otel.Tracer("couplesystem/http")
	return func(c *gin.Context) {
		ctx := otel.GetTextMapPropagator().Extract(c.Request.Context(), propagation.HeaderCarrier(c.Request.Header))
		ctx, span := tracer.Start(ctx, c.Request.Method+" "+c.FullPath(), trace.WithSpanKind(trace.SpanKindServer))
		defer span.End()

		c.Request = c.Request.WithContext(ctx)
		c.Next()

		status := c.Writer.Status()
		span.SetAttributes(attribute.Int("http.status_code", status))
		if status >= http.StatusInternalServerError {
			span.SetStatus(codes.Error, http.StatusText(status))
		}
	}
}

// RecoveryMiddleware 恢复中间件，防止 panic 导致服务崩溃
func RecoveryMiddleware(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			if err := recover(); err != nil {
				log.WithField("panic", err).Error("请求处理发生 panic")
				c.AbortWithStatusJSON(http.StatusInternalServerError, response.Response{
					Code:    errs.CodeServerError,
					Message: "服务器内部错误",
				})
			}
		}()
		c.Next()
	}
}

// CORSMiddleware 跨域中间件
func CORSMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, PUT, DELETE, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Authorization, X-Request-ID")

		if c.Request.Method == http.MethodOptions {
			c.AbortWithStatus(http.StatusNoContent)
			return
		}

		c.Next()
	}
}
