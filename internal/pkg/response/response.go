package response

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// Envelope is the body of every error response.
type Envelope struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// OK sends a 200 response.
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, data)
}

// Created sends a 201 response.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, data)
}

// NoContent sends a 204 response.
func NoContent(c *gin.Context) {
	c.Status(http.StatusNoContent)
}

// Message sends a non-error envelope, e.g. for health checks.
func Message(c *gin.Context, status int, message string) {
	c.JSON(status, Envelope{Code: status, Message: message})
}

// Abort stops the chain with the error envelope.
func Abort(c *gin.Context, status int, message string) {
	c.AbortWithStatusJSON(status, Envelope{Code: status, Message: message})
}

func BadRequest(c *gin.Context, message string) {
	Abort(c, http.StatusBadRequest, message)
}

func Forbidden(c *gin.Context, message string) {
	Abort(c, http.StatusForbidden, message)
}

func NotFound(c *gin.Context, message string) {
	Abort(c, http.StatusNotFound, message)
}

// InternalError hides err from the caller and attaches it to the context for the request logger.
func InternalError(c *gin.Context, err error) {
	if err != nil {
		_ = c.Error(err)
	}
	Abort(c, http.StatusInternalServerError, "Internal server error")
}

// TooManyRequests sends a 429 with a Retry-After hint in seconds.
func TooManyRequests(c *gin.Context, retryAfter string) {
	c.Header("Retry-After", retryAfter)
	Abort(c, http.StatusTooManyRequests, "Too many requests, slow down")
}

// MethodNotAllowed sends a 405 error response.
func MethodNotAllowed(c *gin.Context) {
	Abort(c, http.StatusMethodNotAllowed, "Method not allowed")
}
