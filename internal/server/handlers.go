package server

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/joseph-ayodele/nfse-reader/constants"
	"github.com/joseph-ayodele/nfse-reader/internal/common"
	"github.com/joseph-ayodele/nfse-reader/internal/entity"
	"github.com/joseph-ayodele/nfse-reader/internal/repository"
)

// Tasks is the task lifecycle as seen by HTTP callers.
type Tasks interface {
	Submit(ctx context.Context, name string, r io.Reader) (int64, error)
	Status(ctx context.Context, taskID int64) (*entity.TaskStatusView, error)
	Result(ctx context.Context, taskID int64) (*entity.ExtractedRecord, error)
}

type Exporter interface {
	TasksXLSX(ctx context.Context) ([]byte, error)
}

// HealthFunc reports whether the service's dependencies are reachable.
type HealthFunc func(ctx context.Context) error

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

type Handler struct {
	tasks    Tasks
	webhooks repository.WebhookRepository
	export   Exporter
	health   HealthFunc
	logger   *slog.Logger
}

func NewHandler(tasks Tasks, webhooks repository.WebhookRepository, export Exporter, health HealthFunc, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{tasks: tasks, webhooks: webhooks, export: export, health: health, logger: logger}
}

type webhookRequest struct {
	URL     string `json:"url" binding:"required"`
	Actions string `json:"actions" binding:"required"`
}

// Upload accepts a multipart "file" field holding a PDF and returns the new task id.
func (h *Handler) Upload(c *gin.Context) {
	file, header, err := c.Request.FormFile("file")
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "no file provided"})
		return
	}
	defer file.Close()

	if !constants.IsAllowedFile(header.Filename) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "file must have a .pdf extension"})
		return
	}

	id, err := h.tasks.Submit(c.Request.Context(), header.Filename, file)
	switch {
	case err == nil:
		c.JSON(http.StatusOK, gin.H{"task_id": id})
	case errors.Is(err, common.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case id != 0:
		// the task exists but could not be scheduled; it has been marked failed
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": "task could not be scheduled", "task_id": id})
	default:
		h.logger.Error("upload failed", "file", header.Filename, "error", err, "request_id", GetRequestID(c))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "upload failed"})
	}
}

func (h *Handler) Status(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}
	view, err := h.tasks.Status(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("status lookup failed", "task_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "status lookup failed"})
		return
	}
	if view == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "task not found"})
		return
	}
	c.JSON(http.StatusOK, view)
}

func (h *Handler) Result(c *gin.Context) {
	id, ok := taskID(c)
	if !ok {
		return
	}
	rec, err := h.tasks.Result(c.Request.Context(), id)
	if err != nil {
		h.logger.Error("result lookup failed", "task_id", id, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "result lookup failed"})
		return
	}
	if rec == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "result not available"})
		return
	}
	c.JSON(http.StatusOK, rec)
}

func (h *Handler) CreateWebhook(c *gin.Context) {
	var req webhookRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url and actions are required"})
		return
	}
	if !validWebhookURL(req.URL) {
		c.JSON(http.StatusBadRequest, gin.H{"error": "url must be an absolute http or https URL"})
		return
	}
	if len(constants.ParseActions(req.Actions)) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "actions must name at least one event"})
		return
	}

	wh, err := h.webhooks.Create(c.Request.Context(), strings.TrimSpace(req.URL), req.Actions)
	if err != nil {
		h.logger.Error("webhook create failed", "url", req.URL, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "webhook create failed"})
		return
	}
	c.JSON(http.StatusOK, wh)
}

func (h *Handler) ListWebhooks(c *gin.Context) {
	limit := repository.DefaultWebhookLimit
	if s := c.Query("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			c.JSON(http.StatusBadRequest, gin.H{"error": "limit must be a positive integer"})
			return
		}
		limit = n
	}
	hooks, err := h.webhooks.List(c.Request.Context(), limit)
	if err != nil {
		h.logger.Error("webhook list failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "webhook list failed"})
		return
	}
	if hooks == nil {
		hooks = []*entity.Webhook{}
	}
	c.JSON(http.StatusOK, hooks)
}

func (h *Handler) Health(c *gin.Context) {
	if h.health != nil {
		ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
		defer cancel()
		if err := h.health(ctx); err != nil {
			h.logger.Warn("health check failed", "error", err)
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *Handler) ExportXLSX(c *gin.Context) {
	data, err := h.export.TasksXLSX(c.Request.Context())
	if err != nil {
		h.logger.Error("export.xlsx.failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "export failed"})
		return
	}
	c.Header("Content-Disposition", `attachment; filename="nfse.xlsx"`)
	c.Data(http.StatusOK, xlsxContentType, data)
}

func taskID(c *gin.Context) (int64, bool) {
	id, err := strconv.ParseInt(c.Param("id"), 10, 64)
	if err != nil || id <= 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "task id must be a positive integer"})
		return 0, false
	}
	return id, true
}

func validWebhookURL(raw string) bool {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || u.Host == "" {
		return false
	}
	return u.Scheme == "http" || u.Scheme == "https"
}
