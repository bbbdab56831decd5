// Package httpx holds the gin plumbing shared by the POS handlers: request
// ids, request logging, actor extraction and the error response format.
package httpx

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/gin-gonic/gin"

	"restaurant-pos/internal/logger"
	"restaurant-pos/internal/models"
)

const (
	HeaderRequestID = "X-Request-ID"
	HeaderActorID   = "X-Actor-ID"
	HeaderActorRole = "X-Actor-Role"

	requestIDKey = "request_id"
)

// ErrorResponse is the body of every non-2xx answer
type ErrorResponse struct {
	Error     string `json:"error"`
	Field     string `json:"field,omitempty"`
	Timestamp string `json:"timestamp"`
	RequestID string `json:"request_id"`
}

// RequestID returns the id assigned by Logging, or a fresh one
func RequestID(c *gin.Context) string {
	if id := c.GetString(requestIDKey); id != "" {
		return id
	}
	return logger.GenerateRequestID()
}

// Actor reads the caller identity set by the upstream gateway
func Actor(c *gin.Context) (models.Actor, error) {
	id := strings.TrimSpace(c.GetHeader(HeaderActorID))
	if id == "" {
		return models.Actor{}, models.NewValidationError(HeaderActorID, "header is required")
	}
	role := strings.ToLower(strings.TrimSpace(c.GetHeader(HeaderActorRole)))
	switch role {
	case models.RoleWaiter, models.RoleCashier, models.RoleKitchen:
	default:
		return models.Actor{}, models.NewValidationError(HeaderActorRole, "unknown role %q", role)
	}
	return models.Actor{ID: id, Role: role}, nil
}

// Logging assigns a request id and logs every request at debug level,
// completion with status and duration.
func Logging(log *logger.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		requestID := c.GetHeader(HeaderRequestID)
		if requestID == "" {
			requestID = logger.GenerateRequestID()
		}
		c.Set(requestIDKey, requestID)
		c.Header(HeaderRequestID, requestID)

		log.Debug("request_started", fmt.Sprintf("%s %s", c.Request.Method, c.Request.URL.Path), requestID, map[string]interface{}{
			"method":      c.Request.Method,
			"path":        c.Request.URL.Path,
			"remote_addr": c.ClientIP(),
			"user_agent":  c.Request.UserAgent(),
		})

		c.Next()

		log.Debug("request_completed", fmt.Sprintf("%s %s - %d", c.Request.Method, c.Request.URL.Path, c.Writer.Status()), requestID, map[string]interface{}{
			"method":      c.Request.Method,
			"path":        c.FullPath(),
			"status_code": c.Writer.Status(),
			"duration_ms": time.Since(start).Milliseconds(),
		})
	}
}

// StatusFor maps a service error onto an HTTP status
func StatusFor(err error) int {
	switch {
	case errors.Is(err, models.ErrValidation),
		errors.Is(err, models.ErrInvalidSplitCount),
		errors.Is(err, models.ErrOverAssignedItem):
		return http.StatusBadRequest
	case errors.Is(err, models.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, models.ErrInvalidState),
		errors.Is(err, models.ErrInvalidTransition),
		errors.Is(err, models.ErrInvalidItemTransition),
		errors.Is(err, models.ErrConflict),
		errors.Is(err, models.ErrAlreadyPaid),
		errors.Is(err, models.ErrAlreadySettled),
		errors.Is(err, models.ErrSplitInProgress),
		errors.Is(err, models.ErrDirectPaymentInProgress):
		return http.StatusConflict
	case errors.Is(err, models.ErrExternalService):
		return http.StatusBadGateway
	}
	return http.StatusInternalServerError
}

// WriteError answers with the mapped status. Unmapped errors are logged and
// hidden behind a generic message.
func WriteError(c *gin.Context, log *logger.Logger, action string, err error) {
	requestID := RequestID(c)
	status := StatusFor(err)
	message := err.Error()
	if status == http.StatusInternalServerError {
		log.Error(action, "Request failed", requestID, err, map[string]interface{}{
			"path": c.FullPath(),
		})
		message = "Internal server error"
	}

	resp := ErrorResponse{
		Error:     message,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
		RequestID: requestID,
	}
	var verr models.ValidationError
	if errors.As(err, &verr) {
		resp.Field = verr.Field
	}
	c.AbortWithStatusJSON(status, resp)
}

// BindJSON decodes the body into dst, turning decode failures into
// validation errors.
func BindJSON(c *gin.Context, dst interface{}) error {
	if err := c.ShouldBindJSON(dst); err != nil {
		return models.NewValidationError("body", "invalid JSON: %v", err)
	}
	return nil
}

// Health answers GET /health from check
func Health(service string, check func(c *gin.Context) bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		healthy := check(c)
		resp := gin.H{
			"status":    "ok",
			"timestamp": time.Now().UTC().Format(time.RFC3339),
			"service":   service,
			"healthy":   healthy,
		}
		if !healthy {
			resp["status"] = "unhealthy"
			c.JSON(http.StatusServiceUnavailable, resp)
			return
		}
		c.JSON(http.StatusOK, resp)
	}
}
