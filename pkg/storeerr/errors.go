package storeerr

import (
	"context"
	"errors"
	"fmt"
)

type Code string

const (
	PermissionDenied   Code = "permission-denied"
	Unavailable        Code = "unavailable"
	DeadlineExceeded   Code = "deadline-exceeded"
	ResourceExhausted  Code = "resource-exhausted"
	Unauthenticated    Code = "unauthenticated"
	NotFound           Code = "not-found"
	AlreadyExists      Code = "already-exists"
	InvalidArgument    Code = "invalid-argument"
	FailedPrecondition Code = "failed-precondition"
	Aborted            Code = "aborted"
	Unknown            Code = "unknown"
)

var messages = map[Code]string{
	PermissionDenied:   "you do not have permission to perform this action",
	Unavailable:        "the data service is temporarily unavailable, try again",
	DeadlineExceeded:   "the operation took too long to complete",
	ResourceExhausted:  "quota exceeded, try again later",
	Unauthenticated:    "sign in to continue",
	NotFound:           "the requested record does not exist",
	AlreadyExists:      "the record already exists",
	InvalidArgument:    "the request contains invalid data",
	FailedPrecondition: "the operation cannot be performed in the current state",
	Aborted:            "the operation was aborted, try again",
	Unknown:            "unexpected error",
}

// Retryable reports whether an operation failed with this code may succeed if repeated.
func (c Code) Retryable() bool {
	switch c {
	case Unavailable, DeadlineExceeded, ResourceExhausted, Aborted:
		return true
	default:
		return false
	}
}

type Error struct {
	Code Code
	Op   string
	Err  error
}

func New(code Code, op string, err error) *Error {
	return &Error{Code: code, Op: op, Err: err}
}

func Errorf(code Code, op string, format string, args ...any) *Error {
	return &Error{Code: code, Op: op, Err: fmt.Errorf(format, args...)}
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}

	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Op, e.Code)
	}

	return fmt.Sprintf("%s: %s: %s", e.Op, e.Code, e.Err.Error())
}

func (e *Error) Unwrap() error {
	return e.Err
}

func Classify(err error) Code {
	if err == nil {
		return ""
	}

	var se *Error
	if errors.As(err, &se) {
		return se.Code
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return DeadlineExceeded
	case errors.Is(err, context.Canceled):
		return Aborted
	}

	return Unknown
}

func IsRetryable(err error) bool {
	return Classify(err).Retryable()
}

func Is(err error, code Code) bool {
	return err != nil && Classify(err) == code
}

// Message returns a text suitable for showing to the user.
func Message(err error) string {
	if err == nil {
		return ""
	}

	return messages[Classify(err)]
}
