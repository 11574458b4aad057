package transport

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/joshuakessell/club-ops-deploy-sub008/internal/entity"
)

// SuccessResponse представляет успешный ответ
type SuccessResponse struct {
	Success bool        `json:"success"`
	Message string      `json:"message,omitempty"`
	Data    interface{} `json:"data,omitempty"`
}

// ErrorResponse представляет ответ с ошибкой
type ErrorResponse struct {
	Success bool   `json:"success"`
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
}

// respondError normalizes every failure to the API taxonomy. Storage and
// internal errors are logged with context and returned opaquely.
func respondError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, entity.ErrInvalidInput):
		c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})

	case errors.Is(err, entity.ErrUnauthenticated):
		c.JSON(http.StatusUnauthorized, ErrorResponse{Error: "authentication required"})

	case errors.Is(err, entity.ErrReauthRequired):
		c.JSON(http.StatusForbidden, ErrorResponse{Error: err.Error(), Code: "REAUTH_REQUIRED"})

	case errors.Is(err, entity.ErrReauthExpired):
		c.JSON(http.StatusForbidden, ErrorResponse{Error: err.Error(), Code: "REAUTH_EXPIRED"})

	case errors.Is(err, entity.ErrForbidden), errors.Is(err, entity.ErrBadPin):
		c.JSON(http.StatusForbidden, ErrorResponse{Error: err.Error()})

	case errors.Is(err, entity.ErrSessionNotFound),
		errors.Is(err, entity.ErrEntryNotFound),
		errors.Is(err, entity.ErrResourceNotFound),
		errors.Is(err, entity.ErrCustomerNotFound),
		errors.Is(err, entity.ErrChallengeNotFound):
		c.JSON(http.StatusNotFound, ErrorResponse{Error: err.Error()})

	case errors.Is(err, entity.ErrResourceConflict),
		errors.Is(err, entity.ErrResourceOccupied),
		errors.Is(err, entity.ErrResourceNotClean),
		errors.Is(err, entity.ErrSessionActive),
		errors.Is(err, entity.ErrBadTransition),
		errors.Is(err, entity.ErrEntryNotActive),
		errors.Is(err, entity.ErrEntryTerminal),
		errors.Is(err, entity.ErrOccupancyMismatch):
		c.JSON(http.StatusConflict, ErrorResponse{Error: err.Error()})

	default:
		logrus.WithFields(logrus.Fields{
			"method": c.Request.Method,
			"path":   c.Request.URL.Path,
		}).Errorf("Internal error: %v", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{Error: "internal server error"})
	}
}

func respondValidation(c *gin.Context, err error) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: err.Error()})
}
