package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/atelierworks/atelier-api/internal/models"
	"github.com/atelierworks/atelier-api/internal/service"
	appErrors "github.com/atelierworks/atelier-api/pkg/errors"
	"github.com/atelierworks/atelier-api/pkg/response"
)

// CheckInHandler exposes token-based check-in endpoints.
type CheckInHandler struct {
	checkins *service.CheckInService
}

// NewCheckInHandler constructs CheckInHandler.
func NewCheckInHandler(checkins *service.CheckInService) *CheckInHandler {
	return &CheckInHandler{checkins: checkins}
}

// CheckIn godoc
// @Summary Check in the authenticated student for an occurrence
// @Tags CheckIn
// @Accept json
// @Produce json
// @Param payload body models.CheckInRequest true "Check-in payload"
// @Success 200 {object} response.Envelope
// @Router /check-in [post]
func (h *CheckInHandler) CheckIn(c *gin.Context) {
	var req models.CheckInRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	claims := claimsFromContext(c)
	if claims == nil || claims.Subject == "" {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	result, err := h.checkins.CheckIn(c.Request.Context(), req.Token, claims.Subject, claims.Subject)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// IssueToken godoc
// @Summary Issue a signed check-in token for one occurrence
// @Tags CheckIn
// @Accept json
// @Produce json
// @Param payload body models.IssueTokenRequest true "Token payload"
// @Success 201 {object} response.Envelope
// @Router /check-in/tokens [post]
func (h *CheckInHandler) IssueToken(c *gin.Context) {
	var req models.IssueTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	token, err := h.checkins.IssueToken(c.Request.Context(), req.BranchID, req.Start, req.SlotKey, req.EnrollmentID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusCreated, gin.H{"token": token}, nil)
}
