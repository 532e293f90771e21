package middleware

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"stream-proxy/domain/dto"
	"stream-proxy/domain/repository"
)

// RateLimit runs sliding-window admission for the given policy before the
// handler. Denial answers 429 with a Retry-After header; it is a normal
// outcome, not a server fault.
func RateLimit(limiter repository.IRateLimiter, policy repository.RatePolicy) gin.HandlerFunc {
	return func(ctx *gin.Context) {
		clientID := ClientKey(ctx)
		decision := limiter.Admit(ctx.Request.Context(), clientID, policy)

		ctx.Header("X-RateLimit-Limit", strconv.Itoa(policy.MaxRequests))
		ctx.Header("X-RateLimit-Remaining", strconv.Itoa(decision.Remaining))

		if !decision.Allowed {
			retryAfter := int(decision.RetryAfter.Seconds())
			if retryAfter < 1 {
				retryAfter = 1
			}
			ctx.Header("Retry-After", strconv.Itoa(retryAfter))
			ctx.AbortWithStatusJSON(http.StatusTooManyRequests, dto.Res{
				ResponseCode:    "429",
				ResponseMessage: "Too many requests",
			})
			return
		}
		ctx.Next()
	}
}

// ClientKey identifies the caller: API key header first, then the original
// client IP from X-Forwarded-For, then the socket address.
func ClientKey(ctx *gin.Context) string {
	if v := strings.TrimSpace(ctx.GetHeader("X-API-Key")); v != "" {
		return v
	}
	if xff := ctx.GetHeader("X-Forwarded-For"); xff != "" {
		if parts := strings.Split(xff, ","); len(parts) > 0 {
			if ip := strings.TrimSpace(parts[0]); ip != "" {
				return ip
			}
		}
	}
	if ip := ctx.ClientIP(); ip != "" {
		return ip
	}
	return "unknown"
}
