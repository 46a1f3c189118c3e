// Package response defines the JSON envelope every HTTP endpoint returns.
package response

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"eduadvise-backend/pkg/errors"
)

// Response is the standard API envelope
type Response struct {
	Success bool         `json:"success"`
	Data    interface{}  `json:"data,omitempty"`
	Error   *ErrorDetail `json:"error,omitempty"`
	Meta    Meta         `json:"meta"`
}

// ErrorDetail carries a machine-readable code plus a human message
type ErrorDetail struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// Meta carries response metadata
type Meta struct {
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id,omitempty"`
}

// Success sends a successful response
func Success(c *gin.Context, statusCode int, data interface{}) {
	c.JSON(statusCode, Response{
		Success: true,
		Data:    data,
		Meta:    meta(c),
	})
}

// Error sends an error response
func Error(c *gin.Context, statusCode int, errorCode, errorMessage string) {
	c.JSON(statusCode, Response{
		Success: false,
		Error:   &ErrorDetail{Code: errorCode, Message: errorMessage},
		Meta:    meta(c),
	})
}

// FromError renders an application error with its mapped HTTP status.
// Non-AppError values fall back to a generic 500.
func FromError(c *gin.Context, err error) {
	appErr := errors.GetAppError(err)
	Error(c, appErr.StatusCode, string(appErr.Code), appErr.Message)
}

// ValidationError sends a 400 with the binding failure message
func ValidationError(c *gin.Context, message string) {
	Error(c, http.StatusBadRequest, "VALIDATION_ERROR", message)
}

// Unauthorized sends a 401
func Unauthorized(c *gin.Context, message string) {
	Error(c, http.StatusUnauthorized, "UNAUTHORIZED", message)
}

// Forbidden sends a 403
func Forbidden(c *gin.Context, message string) {
	Error(c, http.StatusForbidden, "FORBIDDEN", message)
}

// InternalError sends a 500
func InternalError(c *gin.Context, message string) {
	Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", message)
}

func meta(c *gin.Context) Meta {
	m := Meta{Timestamp: time.Now().UTC()}
	if requestID, ok := c.Get("request_id"); ok {
		if id, ok := requestID.(string); ok {
			m.RequestID = id
		}
	}
	return m
}
