package handler

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dentalab/erpsync/internal/domain/sync"
	"github.com/dentalab/erpsync/internal/interfaces/http/dto"
)

// BaseHandler provides common handler utilities
type BaseHandler struct{}

// getRequestID extracts the request ID from the context
func getRequestID(c *gin.Context) string {
	if id := c.GetString("request_id"); id != "" {
		return id
	}
	return c.GetHeader("X-Request-ID")
}

// Success sends a success response
func (h *BaseHandler) Success(c *gin.Context, data any) {
	c.JSON(http.StatusOK, dto.NewSuccessResponse(data))
}

// Error sends an error response with the appropriate status code
func (h *BaseHandler) Error(c *gin.Context, statusCode int, code, message string) {
	requestID := getRequestID(c)
	c.JSON(statusCode, dto.NewErrorResponseWithRequestID(code, message, requestID))
}

// ErrorWithCode sends an error response, deriving status code from error code
func (h *BaseHandler) ErrorWithCode(c *gin.Context, code, message string) {
	h.Error(c, dto.GetHTTPStatus(code), code, message)
}

// BadRequest sends a 400 bad request response
func (h *BaseHandler) BadRequest(c *gin.Context, message string) {
	h.Error(c, http.StatusBadRequest, dto.ErrCodeBadRequest, message)
}

// NotFound sends a 404 not found response
func (h *BaseHandler) NotFound(c *gin.Context, message string) {
	h.Error(c, http.StatusNotFound, dto.ErrCodeNotFound, message)
}

// InternalError sends a 500 internal server error response
func (h *BaseHandler) InternalError(c *gin.Context, message string) {
	h.Error(c, http.StatusInternalServerError, dto.ErrCodeInternal, message)
}

// HandleSyncError converts sync domain errors to HTTP responses
func (h *BaseHandler) HandleSyncError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, sync.ErrBusy):
		h.ErrorWithCode(c, dto.ErrCodeSyncBusy, err.Error())
	case errors.Is(err, sync.ErrUnknownModule):
		h.ErrorWithCode(c, dto.ErrCodeUnknownModule, err.Error())
	case errors.Is(err, sync.ErrTransport):
		h.ErrorWithCode(c, dto.ErrCodeERPUnavailable, err.Error())
	case errors.Is(err, sync.ErrAuth):
		h.ErrorWithCode(c, dto.ErrCodeERPAuth, err.Error())
	default:
		h.InternalError(c, "An unexpected error occurred")
	}
}
