package middleware

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"stream-proxy/infrastructure/logger"
)

// RequestID tags every request with a uuid (honoring an inbound X-Request-ID)
// and writes one access-log line when the handler chain finishes.
func RequestID() gin.HandlerFunc {
	return func(ctx *gin.Context) {
		id := ctx.GetHeader("X-Request-ID")
		if id == "" {
			id = uuid.NewString()
		}
		ctx.Set("request_id", id)
		ctx.Header("X-Request-ID", id)

		start := time.Now()
		ctx.Next()

		logger.GetLogger().WithFields(map[string]interface{}{
			"requestId": id,
			"method":    ctx.Request.Method,
			"path":      ctx.Request.URL.Path,
			"status":    ctx.Writer.Status(),
			"elapsedMs": time.Since(start).Milliseconds(),
		}).Debug("Request completed")
	}
}
