package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/atelierworks/atelier-api/internal/service"
	"github.com/atelierworks/atelier-api/pkg/response"
)

// OccurrenceHandler exposes resolved monthly occurrence listings.
type OccurrenceHandler struct {
	occurrences *service.OccurrenceService
}

// NewOccurrenceHandler constructs OccurrenceHandler.
func NewOccurrenceHandler(occurrences *service.OccurrenceService) *OccurrenceHandler {
	return &OccurrenceHandler{occurrences: occurrences}
}

// ListForProfessor godoc
// @Summary Resolved monthly occurrences for a professor
// @Tags Occurrences
// @Produce json
// @Param id path string true "Professor ID"
// @Param year query int false "Year (defaults to current)"
// @Param month query int false "Month 1-12 (defaults to current)"
// @Success 200 {object} response.Envelope
// @Router /professors/{id}/occurrences [get]
func (h *OccurrenceHandler) ListForProfessor(c *gin.Context) {
	year, month, err := yearMonthQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	occurrences, err := h.occurrences.ListForProfessor(c.Request.Context(), c.Param("id"), year, month)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, occurrences, nil)
}

// ListForStudent godoc
// @Summary Resolved monthly occurrences for a student
// @Tags Occurrences
// @Produce json
// @Param id path string true "Student ID"
// @Param year query int false "Year (defaults to current)"
// @Param month query int false "Month 1-12 (defaults to current)"
// @Success 200 {object} response.Envelope
// @Router /students/{id}/occurrences [get]
func (h *OccurrenceHandler) ListForStudent(c *gin.Context) {
	year, month, err := yearMonthQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	occurrences, err := h.occurrences.ListForStudent(c.Request.Context(), c.Param("id"), year, month)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, occurrences, nil)
}
