package usecase

import (
	"errors"
	"fmt"
)

type ErrorCode string

const (
	// ErrorStorage is a local read/write failure. It never undoes an in-memory
	// transition.
	ErrorStorage ErrorCode = "STORAGE_FAULT"
	// ErrorChatRequest is a network or backend failure during a chat turn.
	ErrorChatRequest ErrorCode = "CHAT_REQUEST_FAULT"
	// ErrorAuth is a failed login or signup.
	ErrorAuth ErrorCode = "AUTH_FAULT"
	// ErrorRejected means the operation was refused without any state change.
	ErrorRejected ErrorCode = "REJECTED"
)

// Rejection reasons.
const (
	ReasonNotReady        = "not_ready"
	ReasonUnauthenticated = "unauthenticated"
	ReasonEmptyMessage    = "empty_message"
	ReasonMessageTooLong  = "message_too_long"
	ReasonSendInFlight    = "send_in_flight"
	ReasonMissingField    = "missing_field"
)

type Error struct {
	Code   ErrorCode
	Reason string
	// Detail is user-facing text, set for auth failures.
	Detail string
	Err    error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	if e.Err == nil {
		return fmt.Sprintf("usecase: %s (%s)", e.Code, e.Reason)
	}
	return fmt.Sprintf("usecase: %s (%s): %v", e.Code, e.Reason, e.Err)
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

func newError(code ErrorCode, reason string, err error) *Error {
	return &Error{Code: code, Reason: reason, Err: err}
}

// HasCode reports whether any error in err's tree is an *Error with code.
func HasCode(err error, code ErrorCode) bool {
	if err == nil {
		return false
	}
	var e *Error
	if errors.As(err, &e) && e.Code == code {
		return true
	}
	if joined, ok := err.(interface{ Unwrap() []error }); ok {
		for _, inner := range joined.Unwrap() {
			if HasCode(inner, code) {
				return true
			}
		}
	}
	return false
}

// IsRejected reports whether err is a rejection with the given reason.
func IsRejected(err error, reason string) bool {
	var e *Error
	return errors.As(err, &e) && e.Code == ErrorRejected && e.Reason == reason
}
