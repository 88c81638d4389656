package errorx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"runtime"
	"time"

	"github.com/Brownbull/gabeda-backend/internal/common/cnst"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// Mapper converts errors of a package the handler does not know about.
// It returns nil when it does not recognise err.
type Mapper func(err error) *APIError

// ErrorHandler provides unified error handling capabilities
type ErrorHandler struct {
	logger  *zap.Logger
	mappers []Mapper
}

func NewErrorHandler(logger *zap.Logger, mappers ...Mapper) *ErrorHandler {
	return &ErrorHandler{
		logger:  logger,
		mappers: mappers,
	}
}

// HandleError converts any error to APIError and writes it as the response
func (h *ErrorHandler) HandleError(c *gin.Context, err error) {
	if err == nil {
		return
	}

	apiErr := h.ConvertToAPIError(err).clone()
	apiErr.TraceID = uuid.New().String()
	apiErr.Timestamp = time.Now().UTC().Format(time.RFC3339)

	h.logError(c, apiErr, err)

	c.AbortWithStatusJSON(apiErr.HTTPStatus, gin.H{
		"error": apiErr,
	})
}

// ConvertToAPIError converts any error to APIError
func (h *ErrorHandler) ConvertToAPIError(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	for _, m := range h.mappers {
		if mapped := m(err); mapped != nil {
			return mapped
		}
	}

	switch {
	case errors.Is(err, cnst.ErrAccessDenied):
		return ErrForbidden
	case errors.Is(err, cnst.ErrAttemptNotFound):
		return ErrAttemptNotFound
	case errors.Is(err, cnst.ErrTenantNotFound):
		return ErrTenantNotFound
	case errors.Is(err, cnst.ErrDuplicateUpload):
		return ErrDuplicateUpload
	case errors.Is(err, cnst.ErrInvalidTransition):
		return ErrInvalidTransition
	case errors.Is(err, cnst.ErrInvalidKind):
		return ErrInvalidResultKind
	case errors.Is(err, cnst.ErrQueueFull), errors.Is(err, cnst.ErrRunnerStopped):
		return ErrPipelineBusy
	case errors.Is(err, context.DeadlineExceeded):
		return ErrPipelineBusy.WithMessage("The request timed out")
	}

	return ErrInternalServer.WithDetail("original_error", err.Error())
}

// logError logs the error with request context and a stack trace for critical errors
func (h *ErrorHandler) logError(c *gin.Context, apiErr *APIError, originalErr error) {
	fields := []zap.Field{
		zap.String("trace_id", apiErr.TraceID),
		zap.String("error_code", apiErr.Code),
		zap.String("category", string(apiErr.Category)),
		zap.Int("http_status", apiErr.HTTPStatus),
		zap.String("path", c.Request.URL.Path),
		zap.String("method", c.Request.Method),
		zap.String("client_ip", c.ClientIP()),
	}
	if originalErr != nil && originalErr.Error() != apiErr.Message {
		fields = append(fields, zap.Error(originalErr))
	}
	if len(apiErr.Details) > 0 {
		detailsJSON, _ := json.Marshal(apiErr.Details)
		fields = append(fields, zap.String("details", string(detailsJSON)))
	}

	switch apiErr.Severity {
	case SeverityInfo:
		h.logger.Info(apiErr.Message, fields...)
	case SeverityWarning:
		h.logger.Warn(apiErr.Message, fields...)
	case SeverityCritical:
		buf := make([]byte, 1024*4)
		n := runtime.Stack(buf, false)
		fields = append(fields, zap.String("stack_trace", string(buf[:n])))
		h.logger.Error(apiErr.Message, fields...)
	default:
		h.logger.Error(apiErr.Message, fields...)
	}
}

// ErrorMiddleware writes the last error a handler attached with c.Error
func (h *ErrorHandler) ErrorMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()
		if len(c.Errors) > 0 && !c.Writer.Written() {
			h.HandleError(c, c.Errors.Last().Err)
		}
	}
}

// RecoveryMiddleware turns a handler panic into an E5000 response
func (h *ErrorHandler) RecoveryMiddleware() gin.HandlerFunc {
	return gin.CustomRecoveryWithWriter(nil, func(c *gin.Context, err any) {
		h.HandleError(c, &APIError{
			Code:       "E5000",
			Message:    "Server panic occurred",
			Category:   CategoryInternal,
			Severity:   SeverityCritical,
			HTTPStatus: http.StatusInternalServerError,
			Details: map[string]any{
				"panic": fmt.Sprintf("%v", err),
			},
		})
	})
}

// ValidationError creates a validation error for one field
func ValidationError(field string, value any, reason string) *APIError {
	return ErrInvalidInput.WithDetail("field", field).
		WithDetail("value", value).
		WithDetail("reason", reason)
}

// NotFoundError creates a not found error for a specific resource
func NotFoundError(resourceType string, identifier string) *APIError {
	return ErrResourceNotFound.WithDetail("resource_type", resourceType).
		WithDetail("identifier", identifier)
}
