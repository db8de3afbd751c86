package handler

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/atelierworks/atelier-api/internal/middleware"
	"github.com/atelierworks/atelier-api/internal/models"
	appErrors "github.com/atelierworks/atelier-api/pkg/errors"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

// yearMonthQuery reads the year and month query parameters, defaulting to the
// current UTC month when both are absent.
func yearMonthQuery(c *gin.Context) (int, time.Month, error) {
	now := time.Now().UTC()
	yearRaw := c.DefaultQuery("year", strconv.Itoa(now.Year()))
	monthRaw := c.DefaultQuery("month", strconv.Itoa(int(now.Month())))

	year, err := strconv.Atoi(yearRaw)
	if err != nil || year < 2000 || year > 2200 {
		return 0, 0, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid year")
	}
	month, err := strconv.Atoi(monthRaw)
	if err != nil || month < 1 || month > 12 {
		return 0, 0, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "invalid month")
	}
	return year, time.Month(month), nil
}
