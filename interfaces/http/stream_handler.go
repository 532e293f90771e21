package http

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"stream-proxy/domain/dto"
	"stream-proxy/domain/model"
	"stream-proxy/usecase"
)

// IStreamHandler defines the stream HTTP handlers
type IStreamHandler interface {
	GetStream(ctx *gin.Context)
	GetInfo(ctx *gin.Context)
	Download(ctx *gin.Context)
	GetFile(ctx *gin.Context)
}

// StreamHandler implements the stream HTTP handlers
type StreamHandler struct {
	streamUsecase   usecase.IStreamUsecase
	downloadUsecase usecase.IDownloadUsecase
}

// NewStreamHandler creates a new stream handler instance
func NewStreamHandler(streamUsecase usecase.IStreamUsecase, downloadUsecase usecase.IDownloadUsecase) IStreamHandler {
	return &StreamHandler{
		streamUsecase:   streamUsecase,
		downloadUsecase: downloadUsecase,
	}
}

// GetStream handles GET /api/stream/:platform/:videoId and redirects the
// client to the resolved direct media URL.
func (h *StreamHandler) GetStream(ctx *gin.Context) {
	resp, err := h.streamUsecase.Resolve(ctx.Request.Context(), requestFrom(ctx))
	if err != nil {
		abortWithExtractionError(ctx, err)
		return
	}
	ctx.Redirect(http.StatusFound, resp.DirectURL)
}

// GetInfo handles GET /api/info/:platform/:videoId
func (h *StreamHandler) GetInfo(ctx *gin.Context) {
	resp, err := h.streamUsecase.Resolve(ctx.Request.Context(), requestFrom(ctx))
	if err != nil {
		abortWithExtractionError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, resp)
}

// Download handles POST /api/download/:platform/:videoId
func (h *StreamHandler) Download(ctx *gin.Context) {
	resp, err := h.downloadUsecase.Download(ctx.Request.Context(), requestFrom(ctx))
	if err != nil {
		abortWithExtractionError(ctx, err)
		return
	}
	ctx.JSON(http.StatusOK, resp)
}

// GetFile handles GET /api/download/:platform/:videoId and serves a
// previously materialized file, refreshing its access time.
func (h *StreamHandler) GetFile(ctx *gin.Context) {
	path, err := h.downloadUsecase.LocalPath(requestFrom(ctx))
	if err != nil {
		ctx.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "no downloaded file for this request"})
		return
	}
	ctx.File(path)
}

// requestFrom reads the path params and optional hint query params.
func requestFrom(ctx *gin.Context) *dto.StreamRequest {
	req := &dto.StreamRequest{
		Platform: ctx.Param("platform"),
		VideoID:  ctx.Param("videoId"),
		Quality:  ctx.Query("quality"),
		Device:   ctx.Query("device"),
	}
	if v := ctx.Query("bandwidth"); v != "" {
		if kbps, err := strconv.Atoi(v); err == nil && kbps > 0 {
			req.BandwidthKbps = kbps
		}
	}
	return req
}

// abortWithExtractionError maps the error taxonomy onto distinct status codes
// so clients can tell a missing video from a flaky platform.
func abortWithExtractionError(ctx *gin.Context, err error) {
	var extractionErr *model.ExtractionError
	if errors.As(err, &extractionErr) {
		status := http.StatusBadGateway
		switch extractionErr.Kind {
		case model.ErrorKindNotFound:
			status = http.StatusNotFound
		case model.ErrorKindUnsupported:
			status = http.StatusNotImplemented
		}
		ctx.AbortWithStatusJSON(status, gin.H{
			"error": extractionErr.Message,
			"kind":  string(extractionErr.Kind),
		})
		return
	}

	var denied *model.RateLimitDenied
	if errors.As(err, &denied) {
		ctx.Header("Retry-After", strconv.Itoa(int(denied.RetryAfter.Seconds())+1))
		ctx.AbortWithStatusJSON(http.StatusTooManyRequests, dto.Res{
			ResponseCode:    "429",
			ResponseMessage: "Too many requests",
		})
		return
	}

	ctx.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
}
