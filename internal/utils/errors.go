package utils

import (
	"errors"
	"fmt"
	"net/http"
)

// CustomError carries the HTTP status a failure should be reported with.
type CustomError struct {
	Code    int
	Message string
	Err     error
}

func (e *CustomError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("Code: %d, Message: %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("Code: %d, Message: %s", e.Code, e.Message)
}

func (e *CustomError) Unwrap() error { return e.Err }

func New(code int, message string) error {
	return &CustomError{
		Code:    code,
		Message: message,
	}
}

// Wrap attaches a status and a client-safe message to err.
func Wrap(code int, message string, err error) error {
	return &CustomError{
		Code:    code,
		Message: message,
		Err:     err,
	}
}

// StatusOf returns the status carried by err, or 500.
func StatusOf(err error) int {
	var ce *CustomError
	if errors.As(err, &ce) && ce.Code != 0 {
		return ce.Code
	}
	return http.StatusInternalServerError
}

// MessageOf returns the client-safe message carried by err.
func MessageOf(err error) string {
	var ce *CustomError
	if errors.As(err, &ce) && ce.Message != "" {
		return ce.Message
	}
	return http.StatusText(StatusOf(err))
}
