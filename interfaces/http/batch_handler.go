package http

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"stream-proxy/domain/dto"
	"stream-proxy/interfaces/middleware"
	"stream-proxy/usecase"
)

// IBatchHandler defines the batch HTTP handlers
type IBatchHandler interface {
	RunBatch(ctx *gin.Context)
}

// BatchHandler implements the batch HTTP handlers
type BatchHandler struct {
	batchUsecase usecase.IBatchUsecase
}

// NewBatchHandler creates a new batch handler instance
func NewBatchHandler(batchUsecase usecase.IBatchUsecase) IBatchHandler {
	return &BatchHandler{batchUsecase: batchUsecase}
}

// RunBatch handles POST /api/batch/stream. The response is always 200 with
// per-item outcomes; a failing item shows up in the result map, not as a
// request-level failure.
func (h *BatchHandler) RunBatch(ctx *gin.Context) {
	var req dto.BatchRequest
	if err := ctx.ShouldBindJSON(&req); err != nil {
		ctx.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": "invalid batch body"})
		return
	}

	resp, err := h.batchUsecase.RunBatch(ctx.Request.Context(), middleware.ClientKey(ctx), req.Items)
	if err != nil {
		ctx.AbortWithStatusJSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}
	ctx.JSON(http.StatusOK, resp)
}
