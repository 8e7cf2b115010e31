package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
)

// Error is a domain failure that already knows its HTTP status.
type Error struct {
	Status  int
	Message string
	Cause   error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

func (e *Error) Unwrap() error { return e.Cause }

func NewError(status int, message string, cause error) *Error {
	return &Error{Status: status, Message: message, Cause: cause}
}

func ErrBadRequest(message string) *Error { return NewError(http.StatusBadRequest, message, nil) }
func ErrForbidden(message string) *Error  { return NewError(http.StatusForbidden, message, nil) }
func ErrNotFound(message string) *Error   { return NewError(http.StatusNotFound, message, nil) }

// Fail writes err as the error envelope. Anything that is not an *Error becomes a generic 500.
func Fail(c *gin.Context, err error) {
	var e *Error
	if !errors.As(err, &e) {
		InternalError(c, err)
		return
	}
	if e.Cause != nil || e.Status >= http.StatusInternalServerError {
		_ = c.Error(err)
	}
	if e.Status >= http.StatusInternalServerError {
		Abort(c, e.Status, "Internal server error")
		return
	}
	Abort(c, e.Status, e.Message)
}
