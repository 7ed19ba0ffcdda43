package beatoven

import (
	"errors"
	"fmt"
)

// Error is the single error type returned by every client operation.
// The root cause is preserved through Unwrap so callers can log or inspect
// it, but no structured subtypes are exposed.
type Error struct {
	msg   string
	cause error
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("beatoven: %s: %v", e.msg, e.cause)
	}
	return fmt.Sprintf("beatoven: %s", e.msg)
}

func (e *Error) Unwrap() error {
	return e.cause
}

func newError(format string, args ...any) *Error {
	return &Error{msg: fmt.Sprintf(format, args...)}
}

func wrapError(err error, format string, args ...any) *Error {
	return &Error{msg: fmt.Sprintf(format, args...), cause: err}
}

// asError converts err into an *Error unless it already is one.
// Domain errors pass through all layers unchanged.
func asError(err error, format string, args ...any) error {
	var domainErr *Error
	if errors.As(err, &domainErr) {
		return err
	}
	return wrapError(err, format, args...)
}

// ValidationError reports an invalid track request at construction time.
// It is a separate channel from *Error, which is reserved for failures of
// the remote flow.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("beatoven: invalid %s: %s", e.Field, e.Reason)
}
