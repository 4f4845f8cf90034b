package httpgin

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/kirinyoku/bpms/internal/domain"
	"github.com/kirinyoku/bpms/internal/service/auth"
)

const (
	ctxRequestID = "request_id"
	ctxSession   = "session"
)

func RequestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		reqID := c.GetHeader("X-Request-ID")
		if reqID == "" {
			reqID = uuid.NewString()
		}

		c.Writer.Header().Set("X-Request-ID", reqID)
		c.Set(ctxRequestID, reqID)

		c.Next()
	}
}

func CORS() gin.HandlerFunc {
	cfg := cors.Config{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{
			"GET", "POST", "PUT", "OPTIONS",
		},
		AllowHeaders: []string{
			"Origin",
			"Content-Type",
			"Accept",
			"X-Requested-With",
			"X-Request-ID",
			"Idempotency-Key",
			"If-None-Match",
		},
		ExposeHeaders: []string{
			"X-Request-ID",
			"ETag",
			"Cache-Control",
			"Retry-After",
			"Idempotency-Key",
		},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}

	return cors.New(cfg)
}

func LoggingMiddleware(logger *slog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		path := c.Request.URL.Path
		if raw := c.Request.URL.RawQuery; raw != "" {
			path = path + "?" + raw
		}

		c.Next()

		status := c.Writer.Status()

		attrs := []any{
			slog.Int("status", status),
			slog.String("method", c.Request.Method),
			slog.String("path", path),
			slog.String("route", c.FullPath()),
			slog.String("ip", c.ClientIP()),
			slog.String("request_id", c.GetString(ctxRequestID)),
			slog.Duration("latency", time.Since(start)),
			slog.Int("bytes_out", c.Writer.Size()),
		}
		if len(c.Errors) > 0 {
			attrs = append(attrs, slog.String("error", c.Errors.String()))
		}

		ctx := c.Request.Context()
		switch {
		case len(c.Errors) > 0 || status >= http.StatusInternalServerError:
			logger.ErrorContext(ctx, "http", slog.Group("http", attrs...))
		case status >= http.StatusBadRequest:
			logger.WarnContext(ctx, "http", slog.Group("http", attrs...))
		default:
			logger.InfoContext(ctx, "http", slog.Group("http", attrs...))
		}
	}
}

// RequireRole rejects requests without a stored session (401) or whose
// session role differs from role (403).
func RequireRole(authSvc *auth.Service, role domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		sess, err := authSvc.Current(c.Request.Context())
		if err != nil {
			respondErr(c, err)
			c.Abort()
			return
		}

		if sess == nil {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "sign in required"})
			return
		}

		if sess.Role != role {
			c.AbortWithStatusJSON(http.StatusForbidden, ErrorResponse{Error: "access restricted to " + string(role)})
			return
		}

		c.Set(ctxSession, *sess)
		c.Next()
	}
}
