package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/atelierworks/atelier-api/internal/models"
	"github.com/atelierworks/atelier-api/internal/service"
	appErrors "github.com/atelierworks/atelier-api/pkg/errors"
	"github.com/atelierworks/atelier-api/pkg/response"
)

// RescheduleHandler exposes single-occurrence reschedule endpoints.
type RescheduleHandler struct {
	reschedules *service.RescheduleService
}

// NewRescheduleHandler constructs RescheduleHandler.
func NewRescheduleHandler(reschedules *service.RescheduleService) *RescheduleHandler {
	return &RescheduleHandler{reschedules: reschedules}
}

// Create godoc
// @Summary Move one occurrence of an enrollment
// @Tags Reschedules
// @Accept json
// @Produce json
// @Param payload body models.CreateRescheduleRequest true "Reschedule payload"
// @Success 201 {object} response.Envelope
// @Router /reschedules [post]
func (h *RescheduleHandler) Create(c *gin.Context) {
	var req models.CreateRescheduleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	actor := models.RescheduleByStudent
	if claims := claimsFromContext(c); claims != nil && claims.Staff() {
		actor = models.RescheduleByStaff
	}

	reschedule, err := h.reschedules.Create(c.Request.Context(), req, actor)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, reschedule)
}

// Cancel godoc
// @Summary Cancel the reschedule for an enrollment month
// @Tags Reschedules
// @Produce json
// @Param id path string true "Enrollment ID"
// @Param year query int false "Year (defaults to current)"
// @Param month query int false "Month 1-12 (defaults to current)"
// @Success 204
// @Router /enrollments/{id}/reschedule [delete]
func (h *RescheduleHandler) Cancel(c *gin.Context) {
	year, month, err := yearMonthQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	if err := h.reschedules.Cancel(c.Request.Context(), c.Param("id"), year, int(month)); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
