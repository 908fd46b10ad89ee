package engine

import (
	"errors"
	"fmt"
	"net/http"
)

// Code is a stable machine-readable error code, safe to serialize to clients.
type Code string

const (
	CodeConfig       Code = "CONFIG_ERROR"
	CodeField        Code = "FIELD_ERROR"
	CodeValidation   Code = "VALIDATION_ERROR"
	CodeDialect      Code = "DIALECT_ERROR"
	CodeAccessDenied Code = "ACCESS_DENIED"
	CodeNotFound     Code = "NOT_FOUND"
	CodeQuery        Code = "QUERY_ERROR"
)

// Error is the engine's typed error. Status is an HTTP-style hint; Message
// never contains generated SQL.
type Error struct {
	Code    Code
	Status  int
	Message string
}

func (e *Error) Error() string { return fmt.Sprintf("%s: %s", e.Code, e.Message) }

func configErrf(format string, args ...any) *Error {
	return &Error{Code: CodeConfig, Status: http.StatusInternalServerError, Message: fmt.Sprintf(format, args...)}
}

func fieldErrf(format string, args ...any) *Error {
	return &Error{Code: CodeField, Status: http.StatusBadRequest, Message: fmt.Sprintf(format, args...)}
}

func validationErrf(format string, args ...any) *Error {
	return &Error{Code: CodeValidation, Status: http.StatusBadRequest, Message: fmt.Sprintf(format, args...)}
}

func dialectErrf(format string, args ...any) *Error {
	return &Error{Code: CodeDialect, Status: http.StatusBadRequest, Message: fmt.Sprintf(format, args...)}
}

func accessErrf(format string, args ...any) *Error {
	return &Error{Code: CodeAccessDenied, Status: http.StatusForbidden, Message: fmt.Sprintf(format, args...)}
}

// NotFoundErr reports an unregistered table or missing record.
func NotFoundErr(message string) *Error {
	return &Error{Code: CodeNotFound, Status: http.StatusNotFound, Message: message}
}

// QueryErr replaces an executor failure without exposing query internals.
func QueryErr(_ error) *Error {
	return &Error{Code: CodeQuery, Status: http.StatusInternalServerError, Message: "query execution failed"}
}

// CodeOf extracts the engine code from err, or CodeQuery for foreign errors.
func CodeOf(err error) Code {
	var e *Error
	if errors.As(err, &e) {
		return e.Code
	}
	return CodeQuery
}

// StatusOf extracts the HTTP status hint from err, defaulting to 500.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return http.StatusInternalServerError
}
