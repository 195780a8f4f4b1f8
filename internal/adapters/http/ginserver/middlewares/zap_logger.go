package middlewares

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// ZapLogger logs one line per request; server errors are logged at warn.
func ZapLogger(l *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		method := c.Request.Method
		uri := c.Request.RequestURI

		c.Next()

		latency := time.Since(start)
		status := c.Writer.Status()
		size := max(c.Writer.Size(), 0)

		level := zapcore.InfoLevel
		if status >= http.StatusInternalServerError {
			level = zapcore.WarnLevel
		}
		fields := []zap.Field{
			zap.String("method", method),
			zap.String("uri", uri),
			zap.Int("status", status),
			zap.Int("size", size),
			zap.Duration("duration", latency),
		}
		if db := c.Query("db"); db != "" {
			fields = append(fields, zap.String("db", db))
		} else if db := c.Param("db"); db != "" {
			fields = append(fields, zap.String("db", db))
		}
		if len(c.Errors) > 0 {
			fields = append(fields, zap.String("errors", c.Errors.String()))
		}
		l.Log(level, "http_request", fields...)
	}
}
