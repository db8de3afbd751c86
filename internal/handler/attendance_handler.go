package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/atelierworks/atelier-api/internal/models"
	"github.com/atelierworks/atelier-api/internal/repository"
	"github.com/atelierworks/atelier-api/internal/service"
	appErrors "github.com/atelierworks/atelier-api/pkg/errors"
	"github.com/atelierworks/atelier-api/pkg/response"
)

// AttendanceHandler exposes attendance administration endpoints.
type AttendanceHandler struct {
	attendance *service.AttendanceService
}

// NewAttendanceHandler constructs AttendanceHandler.
func NewAttendanceHandler(attendance *service.AttendanceService) *AttendanceHandler {
	return &AttendanceHandler{attendance: attendance}
}

// List godoc
// @Summary List attendance records
// @Tags Attendance
// @Produce json
// @Param professorId query string false "Filter by professor"
// @Param studentId query string false "Filter by student"
// @Param branchId query string false "Filter by branch"
// @Param from query string false "Range start (RFC3339)"
// @Param to query string false "Range end (RFC3339)"
// @Param origin query string false "Filter by origin (regular, adhoc)"
// @Param includeRemoved query bool false "Include removed records"
// @Param page query int false "Page"
// @Param limit query int false "Page size"
// @Success 200 {object} response.Envelope
// @Router /attendance [get]
func (h *AttendanceHandler) List(c *gin.Context) {
	filter := repository.AttendanceFilter{
		ProfessorID: c.Query("professorId"),
		StudentID:   c.Query("studentId"),
		BranchID:    c.Query("branchId"),
		IncludeGone: c.Query("includeRemoved") == "true",
	}
	if raw := c.Query("from"); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid from"))
			return
		}
		filter.From = &from
	}
	if raw := c.Query("to"); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid to"))
			return
		}
		filter.To = &to
	}
	if raw := c.Query("origin"); raw != "" {
		origin := models.AttendanceOrigin(raw)
		filter.Origin = &origin
	}
	if page, err := strconv.Atoi(c.DefaultQuery("page", "1")); err == nil {
		filter.Page = page
	}
	if size, err := strconv.Atoi(c.DefaultQuery("limit", "20")); err == nil {
		filter.PageSize = size
	}

	records, total, err := h.attendance.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}
	pagination := &models.Pagination{Page: filter.Page, PageSize: filter.PageSize, TotalCount: total}
	response.JSON(c, http.StatusOK, records, pagination)
}

// MarkOccurrence godoc
// @Summary Mark attendance for a concrete occurrence
// @Description Upserts the regular record for an enrollment's occurrence, creating it with the enrollment's slot snapshot when none exists.
// @Tags Attendance
// @Accept json
// @Produce json
// @Param payload body models.MarkOccurrenceRequest true "Occurrence payload"
// @Success 200 {object} response.Envelope
// @Router /attendance [post]
func (h *AttendanceHandler) MarkOccurrence(c *gin.Context) {
	var req models.MarkOccurrenceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	markedBy := ""
	if claims := claimsFromContext(c); claims != nil {
		markedBy = claims.Subject
	}

	record, err := h.attendance.MarkOccurrence(c.Request.Context(), req, markedBy)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// Mark godoc
// @Summary Set the status of an attendance record
// @Tags Attendance
// @Accept json
// @Produce json
// @Param id path string true "Record ID"
// @Param payload body models.MarkAttendanceRequest true "Status payload"
// @Success 200 {object} response.Envelope
// @Router /attendance/{id} [put]
func (h *AttendanceHandler) Mark(c *gin.Context) {
	var req models.MarkAttendanceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	markedBy := ""
	if claims := claimsFromContext(c); claims != nil {
		markedBy = claims.Subject
	}

	record, err := h.attendance.Mark(c.Request.Context(), c.Param("id"), req, markedBy)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, record, nil)
}

// Remove godoc
// @Summary Soft-remove an attendance record
// @Tags Attendance
// @Produce json
// @Param id path string true "Record ID"
// @Success 204
// @Router /attendance/{id} [delete]
func (h *AttendanceHandler) Remove(c *gin.Context) {
	if err := h.attendance.Remove(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
