package api

import (
	"context"
	"errors"
	"fmt"
)

// Error is the typed failure every network call is turned into.
// Status is 0 when no HTTP response was received.
type Error struct {
	Message string
	Status  int
}

func (e *Error) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s (status %d)", e.Message, e.Status)
	}
	return e.Message
}

// AsError converts any error into an *Error. nil stays nil.
func AsError(err error) *Error {
	if err == nil {
		return nil
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr
	}
	switch {
	case errors.Is(err, context.Canceled):
		return &Error{Message: "request cancelled"}
	case errors.Is(err, context.DeadlineExceeded):
		return &Error{Message: "request timed out"}
	}
	return &Error{Message: err.Error()}
}

// IsNotFound reports whether err is an HTTP 404.
func IsNotFound(err error) bool {
	var apiErr *Error
	return errors.As(err, &apiErr) && apiErr.Status == 404
}
