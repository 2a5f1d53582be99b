package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/untron/untron-v3-engine/internal/api/shared/errors"
	"github.com/untron/untron-v3-engine/internal/domain"
	"github.com/untron/untron-v3-engine/internal/logger"
)

// accessErrors are protocol errors raised because the caller lacks a role
var accessErrors = map[string]bool{
	domain.ErrUnauthorized.Name:     true,
	domain.ErrNotRealtor.Name:       true,
	domain.ErrNotLessee.Name:        true,
	domain.ErrLpNotAllowlisted.Name: true,
}

// respondBadRequest responds with a bad request error
func respondBadRequest(c *gin.Context, message string, details ...string) {
	c.JSON(http.StatusBadRequest, errors.NewBadRequestError(message, details...))
}

// respondValidationError responds with a validation error
func respondValidationError(c *gin.Context, message string) {
	c.JSON(http.StatusUnprocessableEntity, errors.NewValidationError(message))
}

// respondError maps an executor error to its HTTP status
func respondError(c *gin.Context, err error) {
	apiErr := errors.FromError(err)
	status := statusOf(apiErr)
	if status >= http.StatusInternalServerError {
		logger.ErrorCtx(c.Request.Context(), err)
	}
	c.JSON(status, apiErr)
}

func statusOf(apiErr *errors.APIError) int {
	switch apiErr.Code {
	case errors.ErrCodeBadRequest:
		return http.StatusBadRequest
	case errors.ErrCodeNotFound:
		return http.StatusNotFound
	case errors.ErrCodeValidationFailed:
		return http.StatusUnprocessableEntity
	case errors.ErrCodeUnauthorized:
		return http.StatusUnauthorized
	case errors.ErrCodeForbidden:
		return http.StatusForbidden
	case errors.ErrCodeRateLimited:
		return http.StatusTooManyRequests
	case errors.ErrCodeProtocolError:
		if accessErrors[apiErr.Name] {
			return http.StatusForbidden
		}
		return http.StatusConflict
	case errors.ErrCodeServiceError:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
