package models

import (
	"errors"
	"fmt"
)

// ErrorCode categorizes engine errors.
type ErrorCode string

const (
	// ErrCodePermissionDenied indicates a required capability is not granted.
	ErrCodePermissionDenied ErrorCode = "PERMISSION_DENIED"

	// ErrCodeNotFound indicates a rule or one of its parts does not exist.
	ErrCodeNotFound ErrorCode = "NOT_FOUND"

	// ErrCodeMalformedParameters indicates a parameter blob is missing or invalid for its kind.
	ErrCodeMalformedParameters ErrorCode = "MALFORMED_PARAMETERS"

	// ErrCodeTransientIO indicates a timeout or a failed call to a host primitive.
	ErrCodeTransientIO ErrorCode = "TRANSIENT_IO"

	// ErrCodeActionFailed indicates a hardware or system call failed while executing an action.
	ErrCodeActionFailed ErrorCode = "ACTION_FAILED"
)

// Error is the engine error type.
//
// Op names the operation that failed, ID the rule/trigger/action it concerned.
// Hint is set for permission errors and names the settings surface that fixes them.
type Error struct {
	Code ErrorCode
	Op   string
	ID   string
	Hint string
	Err  error
}

// Error implements the error interface.
func (e *Error) Error() string {
	msg := string(e.Code)
	if e.Op != "" {
		msg = fmt.Sprintf("%s: %s", e.Op, msg)
	}
	if e.ID != "" {
		msg = fmt.Sprintf("%s (id=%s)", msg, e.ID)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	if e.Hint != "" {
		msg = fmt.Sprintf("%s [open %s]", msg, e.Hint)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// NewPermissionError reports a missing permission with the settings surface that grants it.
func NewPermissionError(op, permission, surface string) *Error {
	return &Error{Code: ErrCodePermissionDenied, Op: op, Hint: surface, Err: fmt.Errorf("%s not granted", permission)}
}

// NewNotFoundError reports a missing rule or rule part.
func NewNotFoundError(op, id string) *Error {
	return &Error{Code: ErrCodeNotFound, Op: op, ID: id}
}

// NewMalformedError reports an invalid parameter blob.
func NewMalformedError(op string, err error) *Error {
	return &Error{Code: ErrCodeMalformedParameters, Op: op, Err: err}
}

// NewTransientError reports a timeout or host primitive failure.
func NewTransientError(op string, err error) *Error {
	return &Error{Code: ErrCodeTransientIO, Op: op, Err: err}
}

// NewActionError reports a failed action execution.
func NewActionError(op, id string, err error) *Error {
	return &Error{Code: ErrCodeActionFailed, Op: op, ID: id, Err: err}
}

func hasCode(err error, code ErrorCode) bool {
	var e *Error
	if errors.As(err, &e) {
		return e.Code == code
	}
	return false
}

// IsPermissionDenied returns true if err is a permission error.
func IsPermissionDenied(err error) bool { return hasCode(err, ErrCodePermissionDenied) }

// IsNotFound returns true if err is a not-found error.
func IsNotFound(err error) bool { return hasCode(err, ErrCodeNotFound) }

// IsMalformed returns true if err is a malformed-parameters error.
func IsMalformed(err error) bool { return hasCode(err, ErrCodeMalformedParameters) }

// IsTransient returns true if err is a transient I/O error.
func IsTransient(err error) bool { return hasCode(err, ErrCodeTransientIO) }

// IsActionFailure returns true if err is an action execution failure.
func IsActionFailure(err error) bool { return hasCode(err, ErrCodeActionFailed) }

// Hint returns the remediation hint carried by a permission error, if any.
func Hint(err error) string {
	var e *Error
	if errors.As(err, &e) {
		return e.Hint
	}
	return ""
}
