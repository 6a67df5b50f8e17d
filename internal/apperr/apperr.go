// Package apperr carries the portal's error taxonomy: machine-readable codes that
// survive wrapping and map onto HTTP statuses at the handler boundary.
package apperr

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is a machine-readable error code.
type Code string

const (
	// CodeUnknown represents an unclassified error.
	CodeUnknown Code = "UNKNOWN"

	// CodeValidation is a ValidationError: input rejected locally, never reaches the store.
	CodeValidation Code = "VALIDATION_FAILED"
	// CodePersistence is a PersistenceError: a preference or plan store call failed.
	CodePersistence Code = "PERSISTENCE_FAILED"
	// CodeGeneration is a GenerationError: the plan or action generator failed.
	CodeGeneration Code = "GENERATION_FAILED"

	CodeNotFound     Code = "NOT_FOUND"
	CodeConflict     Code = "CONFLICT"
	CodeUnauthorized Code = "UNAUTHORIZED"
)

// Error is a classified error.
type Error struct {
	Code    Code
	Op      string
	Message string
	Err     error
}

func (e *Error) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	} else if e.Err != nil {
		msg = msg + ": " + e.Err.Error()
	}
	if e.Op != "" {
		return e.Op + ": " + msg
	}
	return msg
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Validation returns a ValidationError.
func Validation(format string, args ...any) *Error {
	return &Error{Code: CodeValidation, Message: fmt.Sprintf(format, args...)}
}

// Persistence wraps a store failure as a PersistenceError.
func Persistence(op string, err error) *Error {
	return &Error{Code: CodePersistence, Op: op, Err: err}
}

// Generation wraps a generator failure as a GenerationError.
func Generation(op string, err error) *Error {
	return &Error{Code: CodeGeneration, Op: op, Err: err}
}

func NotFound(format string, args ...any) *Error {
	return &Error{Code: CodeNotFound, Message: fmt.Sprintf(format, args...)}
}

func Conflict(format string, args ...any) *Error {
	return &Error{Code: CodeConflict, Message: fmt.Sprintf(format, args...)}
}

func Unauthorized(format string, args ...any) *Error {
	return &Error{Code: CodeUnauthorized, Message: fmt.Sprintf(format, args...)}
}

// CodeOf returns the code of the outermost classified error in err's chain.
func CodeOf(err error) Code {
	if err == nil {
		return ""
	}
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeUnknown
}

// Is reports whether err carries the given code.
func Is(err error, code Code) bool {
	return err != nil && CodeOf(err) == code
}

// HTTPStatus maps a code to the status handlers respond with.
func HTTPStatus(code Code) int {
	switch code {
	case CodeValidation:
		return http.StatusUnprocessableEntity
	case CodeNotFound:
		return http.StatusNotFound
	case CodeConflict:
		return http.StatusConflict
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodePersistence:
		return http.StatusServiceUnavailable
	case CodeGeneration:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
