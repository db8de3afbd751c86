package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/atelierworks/atelier-api/internal/models"
	"github.com/atelierworks/atelier-api/internal/service"
	appErrors "github.com/atelierworks/atelier-api/pkg/errors"
	"github.com/atelierworks/atelier-api/pkg/response"
)

// AdhocHandler exposes ad-hoc session endpoints.
type AdhocHandler struct {
	adhoc *service.AdhocService
}

// NewAdhocHandler constructs AdhocHandler.
func NewAdhocHandler(adhoc *service.AdhocService) *AdhocHandler {
	return &AdhocHandler{adhoc: adhoc}
}

// CreateSession godoc
// @Summary Create a one-off session with its own capacity
// @Tags Adhoc
// @Accept json
// @Produce json
// @Param payload body models.CreateAdhocSessionRequest true "Session payload"
// @Success 201 {object} response.Envelope
// @Router /adhoc-sessions [post]
func (h *AdhocHandler) CreateSession(c *gin.Context) {
	var req models.CreateAdhocSessionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}
	session, err := h.adhoc.CreateSession(c.Request.Context(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, session)
}

// RegisterParticipant godoc
// @Summary Register a walk-in participant for a session
// @Tags Adhoc
// @Accept json
// @Produce json
// @Param id path string true "Session ID"
// @Param payload body models.RegisterAdhocParticipantRequest true "Participant payload"
// @Success 201 {object} response.Envelope
// @Router /adhoc-sessions/{id}/participants [post]
func (h *AdhocHandler) RegisterParticipant(c *gin.Context) {
	var req models.RegisterAdhocParticipantRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid payload"))
		return
	}

	registeredBy := ""
	if claims := claimsFromContext(c); claims != nil {
		registeredBy = claims.Subject
	}

	record, err := h.adhoc.RegisterParticipant(c.Request.Context(), c.Param("id"), req.StudentID, registeredBy)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, record)
}

// ListSessions godoc
// @Summary List a professor's ad-hoc sessions for a month
// @Tags Adhoc
// @Produce json
// @Param id path string true "Professor ID"
// @Param year query int false "Year (defaults to current)"
// @Param month query int false "Month 1-12 (defaults to current)"
// @Success 200 {object} response.Envelope
// @Router /professors/{id}/adhoc-sessions [get]
func (h *AdhocHandler) ListSessions(c *gin.Context) {
	year, month, err := yearMonthQuery(c)
	if err != nil {
		response.Error(c, err)
		return
	}
	sessions, err := h.adhoc.ListSessions(c.Request.Context(), c.Param("id"), year, month)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, sessions, nil)
}
