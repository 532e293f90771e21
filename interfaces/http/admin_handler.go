package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"stream-proxy/domain/dto"
	"stream-proxy/usecase"
)

// IAdminHandler defines the operational HTTP handlers
type IAdminHandler interface {
	SystemStats(ctx *gin.Context)
	InvalidateCache(ctx *gin.Context)
	Health(ctx *gin.Context)
}

// AdminHandler implements the operational HTTP handlers
type AdminHandler struct {
	statsUsecase  usecase.IStatsUsecase
	streamUsecase usecase.IStreamUsecase
}

// NewAdminHandler creates a new admin handler instance
func NewAdminHandler(statsUsecase usecase.IStatsUsecase, streamUsecase usecase.IStreamUsecase) IAdminHandler {
	return &AdminHandler{statsUsecase: statsUsecase, streamUsecase: streamUsecase}
}

// SystemStats handles GET /api/system/stats
func (h *AdminHandler) SystemStats(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, h.statsUsecase.SystemStats())
}

// InvalidateCache handles POST /api/cache/invalidate, used when an operator
// knows a direct URL expired before its TTL.
func (h *AdminHandler) InvalidateCache(ctx *gin.Context) {
	var req dto.InvalidateRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "platform and video_id are required"})
		return
	}
	removed := h.streamUsecase.Invalidate(&req)
	ctx.JSON(http.StatusOK, gin.H{"invalidated": removed})
}

// Health handles GET /api/health
func (h *AdminHandler) Health(ctx *gin.Context) {
	ctx.JSON(http.StatusOK, gin.H{"status": "ok"})
}
