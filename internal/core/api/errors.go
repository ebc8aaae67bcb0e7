package api

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/solatis/shelfkeeper/internal/core/shelves"
	"github.com/solatis/shelfkeeper/internal/types"
)

// ErrorResponse is the body of every error reply.
type ErrorResponse struct {
	Error string `json:"error"`
}

// statusFor maps service errors to HTTP status codes. Anything unrecognized
// is a 500 and its message is not exposed.
func statusFor(err error) int {
	switch {
	case errors.Is(err, types.ErrShelfNotFound),
		errors.Is(err, types.ErrBookNotFound),
		errors.Is(err, types.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, types.ErrShelfForbidden),
		errors.Is(err, types.ErrAdminRequired):
		return http.StatusForbidden
	case errors.Is(err, types.ErrShelfNameTaken):
		return http.StatusConflict
	case shelves.IsClientError(err):
		return http.StatusBadRequest
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout
	default:
		return http.StatusInternalServerError
	}
}

// respondError writes err as JSON with its mapped status.
func respondError(c *gin.Context, logger *slog.Logger, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		logger.Error("request failed",
			"method", c.Request.Method,
			"path", c.FullPath(),
			"error", err)
		c.JSON(status, ErrorResponse{Error: http.StatusText(status)})
		return
	}
	c.JSON(status, ErrorResponse{Error: err.Error()})
}

func respondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, ErrorResponse{Error: message})
}
