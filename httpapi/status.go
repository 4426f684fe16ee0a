// Package httpapi exposes configuration over HTTP and maps store errors to
// status codes.
//
// Every error response has the body {"code": n, "message": "..."} where code
// identifies a StatusCode independently of the HTTP status.
package httpapi

import (
	"errors"
	"fmt"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/jacentio/arbor/store"
)

// StatusCode is an application status with its HTTP status.
type StatusCode struct {
	Code       int
	Message    string
	HTTPStatus int
}

// Status catalog.
var (
	OK                  = StatusCode{0, "OK", http.StatusOK}
	NotFound            = StatusCode{1, "endpoint not found", http.StatusNotFound}
	MethodNotAllowed    = StatusCode{3, "method not allowed", http.StatusMethodNotAllowed}
	ParamNotFound       = StatusCode{4, "mandatory parameter not found", http.StatusBadRequest}
	InvalidParam        = StatusCode{5, "unexpected parameter value", http.StatusBadRequest}
	ResourceNotFound    = StatusCode{6, "resource not found", http.StatusNotFound}
	ConstraintViolation = StatusCode{7, "constraint violated", http.StatusBadRequest}
	Conflict            = StatusCode{8, "conflict", http.StatusConflict}
	Unexpected          = StatusCode{999, "unexpected error occurred", http.StatusInternalServerError}
)

// StatusOf classifies err.
func StatusOf(err error) StatusCode {
	var apiErr *Error
	switch {
	case err == nil:
		return OK
	case errors.As(err, &apiErr):
		return apiErr.Status
	case errors.Is(err, store.ErrUnique), errors.Is(err, store.ErrReferentialRestriction):
		return Conflict
	case errors.Is(err, store.ErrMandatory),
		errors.Is(err, store.ErrReadOnly),
		errors.Is(err, store.ErrAutoGenerated),
		errors.Is(err, store.ErrTypeMismatch),
		errors.Is(err, store.ErrIllegalArgument):
		return ConstraintViolation
	}
	return Unexpected
}

// Error is an error carrying its response status.
type Error struct {
	Status  StatusCode
	Message string
}

// Errorf builds an Error with a formatted message.
func Errorf(status StatusCode, format string, args ...any) *Error {
	return &Error{Status: status, Message: fmt.Sprintf(format, args...)}
}

func (e *Error) Error() string {
	if e.Message == "" {
		return e.Status.Message
	}
	return e.Status.Message + ": " + e.Message
}

// errorBody is the JSON body of error responses.
type errorBody struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

// abort writes the response for err and stops the handler chain.
func abort(c *gin.Context, err error) {
	status := StatusOf(err)
	if status == Unexpected {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(status.HTTPStatus, errorBody{
		Code:    status.Code,
		Message: err.Error(),
	})
}
