package handlers

import (
	"path/filepath"
	"strings"

	"scicat/internal/service"

	"github.com/gin-gonic/gin"
)

type ReportHandler struct {
	service service.ReportService
}

func NewReportHandler(service service.ReportService) *ReportHandler {
	return &ReportHandler{service: service}
}

func (h *ReportHandler) Summary(c *gin.Context) {
	summary, err := h.service.Summary(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, summary)
}

// Export writes the requested report and serves it as a download.
func (h *ReportHandler) Export(c *gin.Context) {
	kind := strings.ToLower(c.DefaultQuery("kind", service.ExportResources))
	format := strings.ToLower(c.DefaultQuery("format", service.FormatCSV))
	if format == "excel" {
		format = service.FormatXLSX
	}

	path, err := h.service.Export(c.Request.Context(), kind, format)
	if err != nil {
		writeError(c, err)
		return
	}

	c.FileAttachment(path, filepath.Base(path))
}

func (h *ReportHandler) BrokenLinks(c *gin.Context) {
	resources, err := h.service.BrokenLinks(c.Request.Context())
	if err != nil {
		writeError(c, err)
		return
	}
	ok(c, gin.H{
		"count":     len(resources),
		"resources": resources,
	})
}
