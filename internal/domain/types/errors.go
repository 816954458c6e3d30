package types

import (
	"errors"
	"fmt"
)

// ErrorKind classifies a failure so callers can decide what to do with it
// without inspecting messages.
type ErrorKind string

const (
	KindAuthFailed        ErrorKind = "AuthFailed"
	KindInvalidAccount    ErrorKind = "InvalidAccount"
	KindAccountNotFound   ErrorKind = "AccountNotFound"
	KindInsufficientFunds ErrorKind = "InsufficientFunds"
	KindAuthRequired      ErrorKind = "AuthRequired"
	KindUnavailable       ErrorKind = "Unavailable"   // transient fault, retries exhausted
	KindProtocolError     ErrorKind = "ProtocolError" // malformed response
	KindClientError       ErrorKind = "ClientError"   // 4xx not otherwise classified
)

// String returns the kind name.
func (k ErrorKind) String() string { return string(k) }

// Error is a classified failure. Status carries the HTTP status when the
// failure came from a response.
type Error struct {
	Kind    ErrorKind
	Status  int
	Message string
	Err     error
}

// Sentinels for errors.Is. A classified *Error matches the sentinel of its kind.
var (
	ErrAuthFailed        = &Error{Kind: KindAuthFailed}
	ErrInvalidAccount    = &Error{Kind: KindInvalidAccount}
	ErrAccountNotFound   = &Error{Kind: KindAccountNotFound}
	ErrInsufficientFunds = &Error{Kind: KindInsufficientFunds}
	ErrAuthRequired      = &Error{Kind: KindAuthRequired}
	ErrUnavailable       = &Error{Kind: KindUnavailable}
	ErrProtocol          = &Error{Kind: KindProtocolError}
	ErrClient            = &Error{Kind: KindClientError}
)

// NewError returns an *Error of the given kind with a formatted message.
func NewError(kind ErrorKind, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// WrapError classifies err under kind, keeping it reachable via errors.Unwrap.
func WrapError(kind ErrorKind, err error, format string, args ...any) *Error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...), Err: err}
}

func (e *Error) Error() string {
	msg := e.Message
	switch {
	case msg == "" && e.Err != nil:
		msg = e.Err.Error()
	case msg != "" && e.Err != nil:
		msg += ": " + e.Err.Error()
	}
	if msg == "" {
		return string(e.Kind)
	}
	if e.Status != 0 {
		return fmt.Sprintf("%s (status %d): %s", e.Kind, e.Status, msg)
	}
	return fmt.Sprintf("%s: %s", e.Kind, msg)
}

func (e *Error) Unwrap() error { return e.Err }

// Is reports whether target is the sentinel for e's kind.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	if !ok {
		return false
	}
	return t.Kind == e.Kind && t.Message == "" && t.Status == 0 && t.Err == nil
}

// KindOf returns the kind of the first *Error in err's chain, or "" if none.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// StatusOf returns the HTTP status recorded on err, or 0.
func StatusOf(err error) int {
	var e *Error
	if errors.As(err, &e) {
		return e.Status
	}
	return 0
}
