package server

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	"stream-proxy/domain/repository"
	httpHandler "stream-proxy/interfaces/http"
	"stream-proxy/interfaces/middleware"
)

// Policies carries the per-call-site rate-limit policies the router attaches
// to its route groups. Reads and downloads have separate scopes and budgets.
type Policies struct {
	Read     repository.RatePolicy
	Download repository.RatePolicy
}

func InitiateRouter(
	streamHandler httpHandler.IStreamHandler,
	batchHandler httpHandler.IBatchHandler,
	adminHandler httpHandler.IAdminHandler,
	limiter repository.IRateLimiter,
	policies Policies,
) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.RequestID())
	router.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "POST", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type", "Accept", "X-Requested-With", "X-API-Key", "X-Request-ID"},
		ExposeHeaders: []string{"Content-Length", "Retry-After", "X-RateLimit-Limit", "X-RateLimit-Remaining", "X-Request-ID"},
		MaxAge:        12 * time.Hour,
	}))

	api := router.Group("api")

	reads := api.Group("")
	reads.Use(middleware.RateLimit(limiter, policies.Read))
	reads.GET("/stream/:platform/:videoId", streamHandler.GetStream)
	reads.GET("/info/:platform/:videoId", streamHandler.GetInfo)
	reads.GET("/download/:platform/:videoId", streamHandler.GetFile)

	downloads := api.Group("")
	downloads.Use(middleware.RateLimit(limiter, policies.Download))
	downloads.POST("/download/:platform/:videoId", streamHandler.Download)

	// Batch items are admitted one by one inside the use case against the
	// read quota; the endpoint itself carries no extra limiter so items are
	// counted exactly once.
	api.POST("/batch/stream", batchHandler.RunBatch)

	api.GET("/system/stats", adminHandler.SystemStats)
	api.POST("/cache/invalidate", adminHandler.InvalidateCache)
	api.GET("/health", adminHandler.Health)

	return router
}
