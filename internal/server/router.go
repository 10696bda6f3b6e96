package server

import (
	"log/slog"

	"github.com/gin-gonic/gin"
)

// NewRouter wires the HTTP routes. The caller sets gin's mode.
func NewRouter(h *Handler, logger *slog.Logger) *gin.Engine {
	r := gin.New()
	r.Use(RequestID(), Recovery(logger), RequestLogger(logger))
	r.MaxMultipartMemory = 32 << 20

	r.POST("/upload-nfse", h.Upload)
	r.GET("/status/:id", h.Status)
	r.GET("/result/:id", h.Result)
	r.POST("/webhook", h.CreateWebhook)
	r.GET("/webhook", h.ListWebhooks)
	r.GET("/health", h.Health)
	r.GET("/export.xlsx", h.ExportXLSX)
	return r
}
