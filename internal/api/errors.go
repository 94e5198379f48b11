package api

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	apperrors "basket-index/internal/errors"
)

// statusFor maps the error taxonomy onto HTTP status codes.
func statusFor(err error) int {
	switch {
	case apperrors.Is(err, apperrors.ErrInvalidInput):
		return http.StatusBadRequest
	case apperrors.Is(err, apperrors.ErrUnknownBasket), apperrors.Is(err, apperrors.ErrNotFound):
		return http.StatusNotFound
	case apperrors.Is(err, apperrors.ErrComputationGuard), apperrors.Is(err, apperrors.ErrInsufficientData):
		return http.StatusUnprocessableEntity
	case apperrors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// outcome is the metrics label for an engine result.
func outcome(err error) string {
	if err == nil {
		return "ok"
	}
	switch statusFor(err) {
	case http.StatusBadRequest:
		return "invalid_input"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusUnprocessableEntity:
		return "guard"
	case http.StatusGatewayTimeout:
		return "timeout"
	default:
		return "error"
	}
}

// respondError writes the failure body and logs server-side failures.
func (s *Server) respondError(c *gin.Context, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error().Err(err).Str("path", c.Request.URL.Path).Msg("Request failed")
	}
	c.AbortWithStatusJSON(status, ErrorResponse{Error: true, Message: err.Error()})
}
