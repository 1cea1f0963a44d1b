package handler

import (
	"errors"
	"net/http"
	"strconv"

	"txtinspect/internal/dataset"
	"txtinspect/internal/llm"
	"txtinspect/internal/models"
	"txtinspect/internal/repository"
	"txtinspect/internal/service"
	"txtinspect/internal/session"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// Handler handles HTTP requests
type Handler struct {
	inspector      *service.Inspector
	maxUploadBytes int64
	logger         *zap.Logger
}

// NewHandler creates a new API handler. maxUploadBytes caps the upload request
// body; <= 0 disables the check.
func NewHandler(inspector *service.Inspector, maxUploadBytes int64, logger *zap.Logger) *Handler {
	return &Handler{
		inspector:      inspector,
		maxUploadBytes: maxUploadBytes,
		logger:         logger,
	}
}

// RegisterRoutes registers all API routes
func (h *Handler) RegisterRoutes(r *gin.Engine) {
	api := r.Group("/api/v1")
	{
		// Sessions
		api.POST("/sessions", h.CreateSession)
		api.GET("/sessions/:id", h.GetSession)
		api.DELETE("/sessions/:id", h.DeleteSession)

		// Navigation
		api.GET("/sessions/:id/record", h.CurrentRecord)
		api.POST("/sessions/:id/cursor", h.MoveCursor)
		api.GET("/sessions/:id/preview", h.Preview)
		api.POST("/sessions/:id/preview", h.ResizePreview)

		// Edits
		api.GET("/sessions/:id/edits", h.ListEdits)
		api.POST("/sessions/:id/edits", h.QueueEdit)
		api.DELETE("/sessions/:id/edits", h.ClearEdits)
		api.POST("/sessions/:id/commit", h.Commit)
		api.GET("/sessions/:id/export", h.Export)

		// Model helpers
		api.POST("/sessions/:id/suggest", h.Suggest)
		api.POST("/sessions/:id/summarize", h.Summarize)
		api.POST("/sessions/:id/evaluate", h.StartEvaluation)
		api.GET("/jobs/:id", h.GetJob)

		// History
		api.GET("/exports", h.ListExports)
	}

	// Health check
	r.GET("/health", h.HealthCheck)
}

type cursorRequest struct {
	Direction string `json:"direction" binding:"required"`
}

type previewRequest struct {
	Delta int `json:"delta"`
}

type summarizeRequest struct {
	Ratio float64 `json:"ratio"`
}

type evaluateRequest struct {
	Limit int `json:"limit"`
}

// CreateSession handles CSV upload
func (h *Handler) CreateSession(c *gin.Context) {
	if h.maxUploadBytes > 0 {
		if c.Request.ContentLength > h.maxUploadBytes {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
			return
		}
		// Bounds the multipart parse itself, including chunked bodies of unknown length
		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, h.maxUploadBytes)
	}

	file, err := c.FormFile("file")
	if err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			c.JSON(http.StatusRequestEntityTooLarge, gin.H{"error": "file too large"})
			return
		}
		c.JSON(http.StatusBadRequest, gin.H{"error": "multipart field \"file\" is required"})
		return
	}

	minWords := -1
	if raw := c.Query("min_words"); raw != "" {
		minWords, err = strconv.Atoi(raw)
		if err != nil || minWords < 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "min_words must be a non-negative integer"})
			return
		}
	}

	f, err := file.Open()
	if err != nil {
		h.logger.Error("Failed to open upload", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "failed to read upload"})
		return
	}
	defer f.Close()

	view, stats, err := h.inspector.CreateSession(f, file.Filename, minWords)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusCreated, gin.H{
		"session": view,
		"load":    stats,
	})
}

// GetSession returns session state
func (h *Handler) GetSession(c *gin.Context) {
	view, err := h.inspector.GetSession(c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// DeleteSession discards a session
func (h *Handler) DeleteSession(c *gin.Context) {
	if err := h.inspector.DeleteSession(c.Param("id")); err != nil {
		h.fail(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// CurrentRecord returns the record under the cursor
func (h *Handler) CurrentRecord(c *gin.Context) {
	rec, err := h.inspector.CurrentRecord(c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, rec)
}

// MoveCursor moves the cursor to the next or previous record
func (h *Handler) MoveCursor(c *gin.Context) {
	var req cursorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	view, err := h.inspector.MoveCursor(c.Param("id"), req.Direction)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, view)
}

// Preview returns the first rows of the dataset
func (h *Handler) Preview(c *gin.Context) {
	rows, n, err := h.inspector.Preview(c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"preview_rows": n, "records": rows})
}

// ResizePreview adds or removes preview rows
func (h *Handler) ResizePreview(c *gin.Context) {
	var req previewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	rows, n, err := h.inspector.ResizePreview(c.Param("id"), req.Delta)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"preview_rows": n, "records": rows})
}

// ListEdits returns the pending edits and the queued indexes
func (h *Handler) ListEdits(c *gin.Context) {
	view, err := h.inspector.GetSession(c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"queue": view.Queue, "indexes": view.Indexes})
}

// QueueEdit queues a drop or relabel
func (h *Handler) QueueEdit(c *gin.Context) {
	var req service.EditRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	view, err := h.inspector.QueueEdit(c.Param("id"), req)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"queue": view.Queue, "indexes": view.Indexes})
}

// ClearEdits empties the edit queue
func (h *Handler) ClearEdits(c *gin.Context) {
	view, err := h.inspector.ClearEdits(c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"queue": view.Queue, "indexes": view.Indexes})
}

// Commit returns the derived dataset without clearing the queue
func (h *Handler) Commit(c *gin.Context) {
	ds, stats, err := h.inspector.Commit(c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"columns": ds.Columns,
		"records": models.Indexed(ds.Records),
		"total":   ds.Len(),
		"stats":   stats,
	})
}

// Export downloads the committed dataset as CSV
func (h *Handler) Export(c *gin.Context) {
	exp, err := h.inspector.Export(c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}

	c.Header("Content-Disposition", "attachment; filename="+exp.FileName)
	c.Data(http.StatusOK, dataset.ExportContentType, exp.Data)
}

// Suggest asks the model for labels for the current record
func (h *Handler) Suggest(c *gin.Context) {
	suggestion, err := h.inspector.Suggest(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, suggestion)
}

// Summarize summarizes the current record
func (h *Handler) Summarize(c *gin.Context) {
	var req summarizeRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	summary, err := h.inspector.Summarize(c.Request.Context(), c.Param("id"), req.Ratio)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// StartEvaluation starts an async evaluation job
func (h *Handler) StartEvaluation(c *gin.Context) {
	var req evaluateRequest
	if c.Request.ContentLength > 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
			return
		}
	}

	job, err := h.inspector.StartEvaluation(c.Param("id"), req.Limit)
	if err != nil {
		h.fail(c, err)
		return
	}

	c.JSON(http.StatusAccepted, gin.H{
		"job_id":  job.ID,
		"status":  job.Status,
		"total":   job.TotalCount,
		"message": "Evaluation started. Check /api/v1/jobs/" + job.ID + " for status",
	})
}

// GetJob returns evaluation job status
func (h *Handler) GetJob(c *gin.Context) {
	job, err := h.inspector.GetJob(c.Param("id"))
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}

// ListExports returns the export history
func (h *Handler) ListExports(c *gin.Context) {
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "100"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid limit"})
		return
	}

	exports, err := h.inspector.ListExports(c.Query("session_id"), limit)
	if err != nil {
		h.fail(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{
		"exports": exports,
		"total":   len(exports),
	})
}

// HealthCheck returns service health
func (h *Handler) HealthCheck(c *gin.Context) {
	resp := gin.H{
		"status":   "healthy",
		"service":  "txtinspect",
		"version":  "1.0.0",
		"sessions": h.inspector.ActiveSessions(),
	}
	if info := h.inspector.ModelInfo(); info != nil {
		resp["model"] = info
	}
	if providers := h.inspector.ProvidersInfo(); providers != nil {
		resp["providers"] = providers
	}
	c.JSON(http.StatusOK, resp)
}

// fail maps service errors onto HTTP statuses
func (h *Handler) fail(c *gin.Context, err error) {
	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, session.ErrSessionNotFound),
		errors.Is(err, service.ErrRecordNotFound),
		errors.Is(err, repository.ErrJobNotFound):
		status = http.StatusNotFound
	case errors.Is(err, service.ErrInvalidDataset),
		errors.Is(err, service.ErrInvalidRequest),
		errors.Is(err, service.ErrNothingToEvaluate):
		status = http.StatusBadRequest
	case errors.Is(err, service.ErrLLMUnavailable):
		status = http.StatusServiceUnavailable
	case errors.Is(err, llm.ErrAllProvidersFailed):
		status = http.StatusBadGateway
	}

	if status >= http.StatusInternalServerError {
		h.logger.Error("Request failed",
			zap.String("path", c.FullPath()),
			zap.Error(err))
	}
	c.JSON(status, gin.H{"error": err.Error()})
}
