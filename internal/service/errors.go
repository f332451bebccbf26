package service

import (
	"errors"
	"fmt"
)

// Code classifies a precondition failure.
type Code string

const (
	CodeInvalidArgument  Code = "INVALID_ARGUMENT"
	CodeDayClosed        Code = "DAY_CLOSED"
	CodeCapacityReached  Code = "CAPACITY_REACHED"
	CodeNotFound         Code = "NOT_FOUND"
	CodeTillClosed       Code = "TILL_CLOSED"
	CodeMenuLimitReached Code = "MENU_LIMIT"
)

// Error is a precondition failure whose Message is shown to the user as is.
type Error struct {
	Code    Code
	Message string
}

func (e *Error) Error() string { return e.Message }

func newError(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// CodeOf extracts the Code of a domain error.
func CodeOf(err error) (Code, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Code, true
	}
	return "", false
}

// IsCode reports whether err is a domain error with the given code.
func IsCode(err error, code Code) bool {
	c, ok := CodeOf(err)
	return ok && c == code
}
