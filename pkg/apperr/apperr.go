// Package apperr carries a small error taxonomy across the service layer so
// handlers can map failures to HTTP responses without string matching.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

type Code string

const (
	CodeValidation   Code = "invalid-argument"
	CodeUnauthorized Code = "unauthenticated"
	CodeForbidden    Code = "permission-denied"
	CodeNotFound     Code = "not-found"
	CodeConflict     Code = "failed-precondition"
	CodeDependency   Code = "unavailable"
	CodeInternal     Code = "internal"
)

var statusByCode = map[Code]int{
	CodeValidation:   http.StatusBadRequest,
	CodeUnauthorized: http.StatusUnauthorized,
	CodeForbidden:    http.StatusForbidden,
	CodeNotFound:     http.StatusNotFound,
	CodeConflict:     http.StatusConflict,
	CodeDependency:   http.StatusBadGateway,
	CodeInternal:     http.StatusInternalServerError,
}

type Error struct {
	code    Code
	message string
	err     error
	details map[string]string
}

func New(code Code, message string) *Error {
	return &Error{code: code, message: message}
}

func Wrap(code Code, err error, message string) *Error {
	return &Error{code: code, message: message, err: err}
}

func Validation(format string, args ...any) *Error {
	return New(CodeValidation, fmt.Sprintf(format, args...))
}

func Forbidden(format string, args ...any) *Error {
	return New(CodeForbidden, fmt.Sprintf(format, args...))
}

func NotFound(format string, args ...any) *Error {
	return New(CodeNotFound, fmt.Sprintf(format, args...))
}

func Conflict(format string, args ...any) *Error {
	return New(CodeConflict, fmt.Sprintf(format, args...))
}

func (e *Error) WithDetails(details map[string]string) *Error {
	e.details = details
	return e
}

func (e *Error) Error() string {
	if e.err != nil {
		return fmt.Sprintf("%s: %v", e.message, e.err)
	}
	return e.message
}

func (e *Error) Unwrap() error { return e.err }

func (e *Error) Code() Code { return e.code }

// Message is the text safe to show to the caller.
func (e *Error) Message() string { return e.message }

func (e *Error) Details() map[string]string { return e.details }

// As returns the first *Error in err's chain, or nil.
func As(err error) *Error {
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return nil
}

// CodeOf returns the code of err, CodeInternal for uncoded errors.
func CodeOf(err error) Code {
	if e := As(err); e != nil {
		return e.code
	}
	return CodeInternal
}

func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// HTTPStatus maps err to a response status.
func HTTPStatus(err error) int {
	if status, ok := statusByCode[CodeOf(err)]; ok {
		return status
	}
	return http.StatusInternalServerError
}
