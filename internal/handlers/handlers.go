package handlers

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/example/body-analyzer/internal/auth"
	"github.com/example/body-analyzer/internal/usecase"
)

// MaxUploadSize caps uploaded image payloads at 10 MiB.
const MaxUploadSize = 10 << 20

var allowedImageTypes = map[string]struct{}{
	"image/jpeg": {},
	"image/png":  {},
	"image/webp": {},
}

// RegisterRoutes wires the HTTP handlers to the Gin router. Everything but
// the health check sits behind the auth middleware.
func RegisterRoutes(router *gin.Engine, uc *usecase.AnalysisUseCase, authMiddleware gin.HandlerFunc) {
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})

	protected := router.Group("/", authMiddleware)
	protected.POST("/analyze", func(c *gin.Context) { handleAnalyze(c, uc) })
	protected.GET("/result/:id", func(c *gin.Context) { handleResult(c, uc) })
	protected.GET("/result/:id/duplicates", func(c *gin.Context) { handleDuplicates(c, uc) })
	protected.GET("/metrics", func(c *gin.Context) { handleMetrics(c, uc) })
}

func handleAnalyze(c *gin.Context, uc *usecase.AnalysisUseCase) {
	userID, ok := auth.GetUserID(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing user identity"})
		return
	}

	file, err := c.FormFile("image")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "image file is required"})
		return
	}
	if file.Size > MaxUploadSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "image exceeds upload limit"})
		return
	}
	if contentType := file.Header.Get("Content-Type"); contentType != "" {
		if _, ok := allowedImageTypes[contentType]; !ok {
			c.JSON(http.StatusUnsupportedMediaType, gin.H{"error": "unsupported image type"})
			return
		}
	}

	src, err := file.Open()
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "unable to open image"})
		return
	}
	defer src.Close()

	data, err := io.ReadAll(io.LimitReader(src, MaxUploadSize+1))
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read image"})
		return
	}
	if len(data) > MaxUploadSize {
		c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "image exceeds upload limit"})
		return
	}

	requestID, result, err := uc.AnalyzeImage(c.Request.Context(), userID, data)
	if err != nil {
		c.JSON(http.StatusBadGateway, gin.H{"error": "analysis failed"})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"request_id": requestID,
		"result":     result,
	})
}

func handleResult(c *gin.Context, uc *usecase.AnalysisUseCase) {
	userID, ok := auth.GetUserID(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing user identity"})
		return
	}
	requestID := c.Param("id")
	if requestID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "id is required"})
		return
	}

	log, err := uc.GetResult(c.Request.Context(), userID, requestID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "result not found"})
		return
	}

	result := json.RawMessage(log.Result)
	if len(result) == 0 {
		result = json.RawMessage(`{}`)
	}

	c.JSON(http.StatusOK, gin.H{
		"request_id": log.RequestID,
		"user_id":    log.UserID,
		"body_shape": log.BodyShape,
		"skin_tone":  log.SkinTone,
		"result":     result,
		"created_at": log.CreatedAt,
	})
}

func handleDuplicates(c *gin.Context, uc *usecase.AnalysisUseCase) {
	userID, ok := auth.GetUserID(c.Request.Context())
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "missing user identity"})
		return
	}
	requestID := c.Param("id")

	report, err := uc.GetDuplicateReport(c.Request.Context(), userID, requestID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "result not found"})
		return
	}

	duplicates := make([]gin.H, 0, len(report.Duplicates))
	for _, d := range report.Duplicates {
		duplicates = append(duplicates, gin.H{
			"request_id": d.RequestID,
			"created_at": d.CreatedAt,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"request_id":      report.Request.RequestID,
		"sha1_hash":       report.Request.SHA1Hash,
		"duplicate_count": len(report.Duplicates),
		"duplicates":      duplicates,
	})
}

func handleMetrics(c *gin.Context, uc *usecase.AnalysisUseCase) {
	summary, err := uc.GetMetricsSummary(c.Request.Context())
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to aggregate metrics"})
		return
	}
	c.JSON(http.StatusOK, summary)
}
