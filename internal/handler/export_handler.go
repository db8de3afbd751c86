package handler

import (
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/atelierworks/atelier-api/internal/service"
	appErrors "github.com/atelierworks/atelier-api/pkg/errors"
	"github.com/atelierworks/atelier-api/pkg/response"
)

// ExportHandler exposes roster and attendance sheet downloads.
type ExportHandler struct {
	exports *service.ExportService
}

// NewExportHandler constructs ExportHandler.
func NewExportHandler(exports *service.ExportService) *ExportHandler {
	return &ExportHandler{exports: exports}
}

func exportFormat(c *gin.Context) (service.ExportFormat, error) {
	format := service.ExportFormat(c.DefaultQuery("format", string(service.ExportFormatCSV)))
	switch format {
	case service.ExportFormatCSV, service.ExportFormatPDF:
		return format, nil
	default:
		return "", appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}
}

func serveDocument(c *gin.Context, doc *service.ExportDocument) {
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", doc.Filename))
	c.Data(http.StatusOK, doc.ContentType, doc.Payload)
}

// MonthRoster godoc
// @Summary Download a professor's resolved month roster
// @Tags Exports
// @Produce octet-stream
// @Param id path string true "Professor ID"
// @Param year query int false "Year (defaults to current)"
// @Param month query int false "Month 1-12 (defaults to current)"
// @Param format query string false "csv or pdf"
// @Success 200 {file} byte
// @Router /professors/{id}/exports/roster [get]
func (h *ExportHandler) MonthRoster(c *gin.Context) {
	year, month, err := yearMonthQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	format, err := exportFormat(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	doc, err := h.exports.MonthRoster(c.Request.Context(), c.Param("id"), year, month, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	serveDocument(c, doc)
}

// AttendanceSheet godoc
// @Summary Download a professor's attendance sheet for a month
// @Tags Exports
// @Produce octet-stream
// @Param id path string true "Professor ID"
// @Param year query int false "Year (defaults to current)"
// @Param month query int false "Month 1-12 (defaults to current)"
// @Param format query string false "csv or pdf"
// @Success 200 {file} byte
// @Router /professors/{id}/exports/attendance [get]
func (h *ExportHandler) AttendanceSheet(c *gin.Context) {
	year, month, err := yearMonthQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	format, err := exportFormat(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	doc, err := h.exports.AttendanceSheet(c.Request.Context(), c.Param("id"), year, month, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	serveDocument(c, doc)
}
